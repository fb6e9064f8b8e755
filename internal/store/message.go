package store

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/portalchat/internal/chat"
)

// AppendMessage inserts a message and its initial readers and makes it the
// conversation summary with snippet, all in one transaction.
func (db *DB) AppendMessage(ctx context.Context, m *chat.Message, snippet string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, sender_name, sender_role, content, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.SenderID, m.SenderName, string(m.SenderRole), m.Content, toUnix(m.Timestamp)); err != nil {
		return fmt.Errorf("insert message %q: %w", m.ID, err)
	}

	now := time.Now().UnixNano()
	for _, reader := range m.ReadBy {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO message_reads (message_id, reader_id, read_at) VALUES (?, ?, ?)`,
			m.ID, reader, now); err != nil {
			return fmt.Errorf("insert reader %q: %w", reader, err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE conversations SET
			last_message_snippet = ?,
			last_message_at = ?,
			last_message_sender_id = ?
		WHERE id = ?`, snippet, toUnix(m.Timestamp), m.SenderID, m.ConversationID)
	if err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update summary: %w", err)
	} else if n == 0 {
		return fmt.Errorf("update summary: conversation %q not found", m.ConversationID)
	}
	return tx.Commit()
}

// ListMessages returns all messages of a conversation in insertion order
// (ascending timestamp).
func (db *DB) ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, sender_name, sender_role, content, timestamp
		FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp ASC, seq ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []chat.Message
	index := make(map[string]int)
	for rows.Next() {
		var (
			m    chat.Message
			role string
			ts   int64
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName, &role, &m.Content, &ts); err != nil {
			return nil, err
		}
		m.SenderRole = chat.Role(role)
		m.Timestamp = fromUnix(ts)
		index[m.ID] = len(msgs)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	_ = rows.Close()

	if len(msgs) == 0 {
		return msgs, nil
	}

	reads, err := db.QueryContext(ctx, `
		SELECT r.message_id, r.reader_id
		FROM message_reads r
		JOIN messages m ON m.id = r.message_id
		WHERE m.conversation_id = ?
		ORDER BY r.read_at ASC, r.rowid ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load readers: %w", err)
	}
	defer func() { _ = reads.Close() }()

	for reads.Next() {
		var msgID, reader string
		if err := reads.Scan(&msgID, &reader); err != nil {
			return nil, err
		}
		if i, ok := index[msgID]; ok {
			msgs[i].ReadBy = append(msgs[i].ReadBy, reader)
		}
	}
	return msgs, reads.Err()
}

// MarkRead records readerID as a reader of every message in messageIDs.
func (db *DB) MarkRead(ctx context.Context, readerID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixNano()
	for _, id := range messageIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO message_reads (message_id, reader_id, read_at) VALUES (?, ?, ?)`,
			id, readerID, now); err != nil {
			return fmt.Errorf("mark %q read: %w", id, err)
		}
	}
	return tx.Commit()
}

// MessageCount returns the total number of messages.
func (db *DB) MessageCount(ctx context.Context) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
