package messaging

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/matheus3301/portalchat/internal/bus"
	"github.com/matheus3301/portalchat/internal/chat"
	"go.uber.org/zap"
)

// LoadMessagesForConversation opens a conversation for me: its messages are
// loaded if needed, it becomes the active conversation of me and every message
// from other participants is marked as read by me.
func (e *Engine) LoadMessagesForConversation(ctx context.Context, me *chat.User, conversationID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkViewer(me); err != nil {
		return err
	}
	c, err := e.participantLocked(ctx, me, conversationID)
	if err != nil {
		return err
	}
	if err := e.ensureMessagesLocked(ctx, c.ID); err != nil {
		return err
	}

	var unread []*chat.Message
	for _, m := range e.messages[c.ID] {
		if !m.IsReadBy(me.ID) {
			unread = append(unread, m)
		}
	}
	if len(unread) > 0 {
		ids := make([]string, len(unread))
		for i, m := range unread {
			ids[i] = m.ID
		}
		if err := e.store.MarkRead(ctx, me.ID, ids); err != nil {
			return fmt.Errorf("mark read: %w", err)
		}
	}

	v := e.viewerFor(me.ID)
	v.add(c.ID)
	if err := v.activate(c.ID); err != nil {
		return err
	}
	for _, m := range unread {
		m.MarkReadBy(me.ID)
	}

	if len(unread) > 0 {
		e.metrics.Read(len(unread))
		e.publish(bus.MessageRead, ReadReceipt{ConversationID: c.ID, ReaderID: me.ID, Count: len(unread)})
	}
	e.logger.Debug("conversation opened",
		zap.String("user_id", me.ID),
		zap.String("conversation_id", c.ID),
		zap.Int("marked_read", len(unread)),
	)
	return nil
}

// SendMessage appends content from me to a conversation and, when replies are
// simulated, schedules the other party's answer. Blank content is ignored.
func (e *Engine) SendMessage(ctx context.Context, me *chat.User, conversationID, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkViewer(me); err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}
	c, err := e.participantLocked(ctx, me, conversationID)
	if err != nil {
		return err
	}
	if err := e.ensureMessagesLocked(ctx, c.ID); err != nil {
		return err
	}

	sender, _ := c.Participant(me.ID)
	if me.Name != "" {
		sender = *me
	}
	if _, err := e.appendLocked(ctx, c, sender, content, false); err != nil {
		return err
	}
	e.viewerFor(me.ID).add(c.ID)
	e.shareLocked(c)

	if !e.cfg.SimulateReplies {
		return nil
	}
	replierID := e.replier(c, me.ID)
	if replierID == "" || !c.HasParticipant(replierID) {
		e.logger.Debug("no replier for conversation", zap.String("conversation_id", c.ID))
		return nil
	}
	senderID, convID := me.ID, c.ID
	e.scheduler.Schedule(replyKey(convID, senderID), e.cfg.ReplyDelay, func() {
		e.deliverReply(convID, senderID, replierID, content)
	})
	return nil
}

// UnreadCount returns how many messages of a conversation me has not read.
func (e *Engine) UnreadCount(me *chat.User, conversationID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if me == nil {
		return 0
	}
	return e.unreadLocked(me.ID, conversationID)
}

// TotalUnread sums UnreadCount over the working set of me.
func (e *Engine) TotalUnread(me *chat.User) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if me == nil {
		return 0
	}
	v, ok := e.viewers[me.ID]
	if !ok {
		return 0
	}
	n := 0
	for id := range v.activity {
		n += e.unreadLocked(me.ID, id)
	}
	return n
}

// MessagesByConversation returns the loaded message lists of the working set of me.
func (e *Engine) MessagesByConversation(me *chat.User) map[string][]chat.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string][]chat.Message)
	if me == nil {
		return out
	}
	v, ok := e.viewers[me.ID]
	if !ok {
		return out
	}
	for id, state := range v.activity {
		if state == Unopened {
			continue
		}
		if msgs, ok := e.messages[id]; ok {
			out[id] = cloneMessages(msgs)
		}
	}
	return out
}

// Messages returns the loaded messages of one conversation, oldest first.
// It returns nil when me is not a participant or the list is not loaded.
func (e *Engine) Messages(me *chat.User, conversationID string) []chat.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	if me == nil {
		return nil
	}
	c, ok := e.conversations[conversationID]
	if !ok || !c.HasParticipant(me.ID) {
		return nil
	}
	msgs, ok := e.messages[conversationID]
	if !ok {
		return nil
	}
	return cloneMessages(msgs)
}

// ActiveConversationID returns the conversation me has open, or "".
func (e *Engine) ActiveConversationID(me *chat.User) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if me == nil {
		return ""
	}
	if v, ok := e.viewers[me.ID]; ok {
		return v.active
	}
	return ""
}

// State returns the lifecycle state of a conversation for me.
func (e *Engine) State(me *chat.User, conversationID string) ConversationState {
	e.mu.Lock()
	defer e.mu.Unlock()

	if me == nil {
		return Unopened
	}
	if v, ok := e.viewers[me.ID]; ok {
		return v.state(conversationID)
	}
	return Unopened
}

// participantLocked resolves a conversation and checks that me belongs to it.
func (e *Engine) participantLocked(ctx context.Context, me *chat.User, conversationID string) (*chat.Conversation, error) {
	c, err := e.conversationLocked(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	if !c.HasParticipant(me.ID) {
		return nil, ErrNotParticipant
	}
	return c, nil
}

func (e *Engine) ensureMessagesLocked(ctx context.Context, conversationID string) error {
	if _, ok := e.messages[conversationID]; ok {
		return nil
	}
	stored, err := e.store.ListMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	msgs := make([]*chat.Message, len(stored))
	for i := range stored {
		msgs[i] = &stored[i]
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	e.messages[conversationID] = msgs
	return nil
}

// appendLocked persists a new message, updates the conversation summary and
// publishes it. The timestamp never goes backwards within a conversation.
func (e *Engine) appendLocked(ctx context.Context, c *chat.Conversation, sender chat.User, content string, reply bool, readers ...string) (*chat.Message, error) {
	ts := e.now()
	msgs := e.messages[c.ID]
	if n := len(msgs); n > 0 && msgs[n-1].Timestamp.After(ts) {
		ts = msgs[n-1].Timestamp
	}

	m, err := chat.NewMessage(e.newID(), c.ID, sender, content, ts)
	if err != nil {
		return nil, err
	}
	for _, r := range readers {
		m.MarkReadBy(r)
	}
	snippet := e.snippet(content)
	if err := e.store.AppendMessage(ctx, m, snippet); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	e.messages[c.ID] = append(msgs, m)
	c.SetSummary(snippet, m.Timestamp, m.SenderID)

	e.metrics.MessageAppended(reply)
	e.publish(bus.MessageAppended, m.Clone())
	return m, nil
}

func (e *Engine) unreadLocked(userID, conversationID string) int {
	c, ok := e.conversations[conversationID]
	if !ok || !c.HasParticipant(userID) {
		return 0
	}
	n := 0
	for _, m := range e.messages[conversationID] {
		if !m.IsReadBy(userID) {
			n++
		}
	}
	return n
}

func cloneMessages(msgs []*chat.Message) []chat.Message {
	out := make([]chat.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
