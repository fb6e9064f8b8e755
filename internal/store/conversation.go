package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/matheus3301/portalchat/internal/chat"
)

// CreateConversation inserts a conversation and its participant snapshots.
// A duplicate 1:1 pair yields ErrDirectExists.
func (db *DB) CreateConversation(ctx context.Context, c *chat.Conversation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var directKey sql.NullString
	if k := c.DirectKey(); k != "" {
		directKey = sql.NullString{String: k, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, name, direct_key, created_at, last_message_snippet, last_message_at, last_message_sender_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, directKey, toUnix(c.CreatedAt), c.LastMessageSnippet, toUnix(c.LastMessageAt), c.LastMessageSenderID); err != nil {
		if isUniqueViolation(err) {
			return ErrDirectExists
		}
		return fmt.Errorf("insert conversation %q: %w", c.ID, err)
	}

	for i, id := range c.ParticipantIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id, name, role, position)
			VALUES (?, ?, ?, ?, ?)`,
			c.ID, id, c.ParticipantNames[id], string(c.ParticipantRoles[id]), i); err != nil {
			return fmt.Errorf("insert participant %q: %w", id, err)
		}
	}
	return tx.Commit()
}

// GetConversation returns a conversation by id, or nil if it does not exist.
func (db *DB) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	c, err := scanConversation(db.QueryRowContext(ctx, `
		SELECT id, name, created_at, last_message_snippet, last_message_at, last_message_sender_id
		FROM conversations WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := db.loadParticipants(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// FindDirectConversation returns the 1:1 conversation between a and b, or nil.
func (db *DB) FindDirectConversation(ctx context.Context, a, b string) (*chat.Conversation, error) {
	var id string
	err := db.QueryRowContext(ctx, `SELECT id FROM conversations WHERE direct_key = ?`, chat.PairKey(a, b)).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return db.GetConversation(ctx, id)
}

// ListConversationsFor returns every conversation userID participates in,
// most recent activity first.
func (db *DB) ListConversationsFor(ctx context.Context, userID string) ([]chat.Conversation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.id, c.name, c.created_at, c.last_message_snippet, c.last_message_at, c.last_message_sender_id
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = ?
		ORDER BY c.last_message_at DESC, c.created_at DESC, c.id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []*chat.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Release the connection before issuing the participant queries.
	_ = rows.Close()

	out := make([]chat.Conversation, 0, len(convs))
	for _, c := range convs {
		if err := db.loadParticipants(ctx, c); err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

// ConversationCount returns the total number of conversations.
func (db *DB) ConversationCount(ctx context.Context) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*chat.Conversation, error) {
	var (
		c                 chat.Conversation
		createdAt, lastAt int64
	)
	if err := row.Scan(&c.ID, &c.Name, &createdAt, &c.LastMessageSnippet, &lastAt, &c.LastMessageSenderID); err != nil {
		return nil, err
	}
	c.CreatedAt = fromUnix(createdAt)
	c.LastMessageAt = fromUnix(lastAt)
	return &c, nil
}

func (db *DB) loadParticipants(ctx context.Context, c *chat.Conversation) error {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id, name, role FROM conversation_participants
		WHERE conversation_id = ? ORDER BY position ASC`, c.ID)
	if err != nil {
		return fmt.Errorf("load participants of %q: %w", c.ID, err)
	}
	defer func() { _ = rows.Close() }()

	c.ParticipantIDs = nil
	c.ParticipantNames = make(map[string]string)
	c.ParticipantRoles = make(map[string]chat.Role)
	for rows.Next() {
		var id, name, role string
		if err := rows.Scan(&id, &name, &role); err != nil {
			return err
		}
		c.ParticipantIDs = append(c.ParticipantIDs, id)
		c.ParticipantNames[id] = name
		c.ParticipantRoles[id] = chat.Role(role)
	}
	return rows.Err()
}
