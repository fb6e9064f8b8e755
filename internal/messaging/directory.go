package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/portalchat/internal/bus"
	"github.com/matheus3301/portalchat/internal/chat"
	"github.com/matheus3301/portalchat/internal/store"
	"go.uber.org/zap"
)

// LoadUserConversations fills the working set of me with every conversation
// it participates in and loads their messages. Calling it again refreshes the
// set without duplicating entries. A nil me ends every session.
func (e *Engine) LoadUserConversations(ctx context.Context, me *chat.User) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if me == nil {
		for id := range e.viewers {
			e.endSessionLocked(id)
		}
		return nil
	}
	if err := e.checkViewer(me); err != nil {
		return err
	}

	convs, err := e.store.ListConversationsFor(ctx, me.ID)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}

	v := e.viewerFor(me.ID)
	for i := range convs {
		c := convs[i]
		if cached, ok := e.conversations[c.ID]; ok {
			// The cache may hold a newer summary than the row just read.
			if c.LastMessageAt.After(cached.LastMessageAt) {
				cached.SetSummary(c.LastMessageSnippet, c.LastMessageAt, c.LastMessageSenderID)
			}
		} else {
			e.conversations[c.ID] = &c
		}
		if err := e.ensureMessagesLocked(ctx, c.ID); err != nil {
			return err
		}
		v.add(c.ID)
		if v.state(c.ID) == Unopened {
			if err := v.transition(c.ID, Loaded); err != nil {
				return err
			}
		}
	}

	e.logger.Debug("conversations loaded", zap.String("user_id", me.ID), zap.Int("count", len(convs)))
	return nil
}

// StartOrGetConversation returns the 1:1 conversation between me and
// recipient, creating it if it does not exist yet.
func (e *Engine) StartOrGetConversation(ctx context.Context, me *chat.User, recipient chat.User) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkViewer(me); err != nil {
		return "", err
	}
	if err := recipient.Validate(); err != nil {
		return "", err
	}
	if recipient.ID == me.ID {
		return "", chat.ErrTooFewParticipants
	}
	return e.directLocked(ctx, me, recipient, "")
}

// StartConversation creates a new conversation between me and participants.
// Groups are never deduplicated; a two-member conversation resolves to the
// existing 1:1 conversation of the pair when there is one.
func (e *Engine) StartConversation(ctx context.Context, me *chat.User, participants []chat.User, groupName string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkViewer(me); err != nil {
		return "", err
	}

	var others []chat.User
	seen := map[string]bool{me.ID: true}
	for _, u := range participants {
		if err := u.Validate(); err != nil {
			return "", err
		}
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		others = append(others, u)
	}

	switch len(others) {
	case 0:
		return "", chat.ErrTooFewParticipants
	case 1:
		return e.directLocked(ctx, me, others[0], groupName)
	}

	c, err := chat.NewConversation(e.newID(), *me, others, groupName, e.now())
	if err != nil {
		return "", err
	}
	if err := e.createLocked(ctx, c); err != nil {
		return "", err
	}
	return c.ID, nil
}

// Conversations returns the working set of me, most recent activity first.
func (e *Engine) Conversations(me *chat.User) []chat.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()

	if me == nil {
		return nil
	}
	v, ok := e.viewers[me.ID]
	if !ok {
		return nil
	}
	out := make([]chat.Conversation, 0, len(v.activity))
	for id := range v.activity {
		if c, ok := e.conversations[id]; ok {
			out = append(out, c.Clone())
		}
	}
	chat.SortByActivity(out)
	return out
}

// Conversation returns one conversation of the working set of me.
func (e *Engine) Conversation(me *chat.User, id string) (chat.Conversation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if me == nil {
		return chat.Conversation{}, false
	}
	v, ok := e.viewers[me.ID]
	if !ok || !v.has(id) {
		return chat.Conversation{}, false
	}
	c, ok := e.conversations[id]
	if !ok {
		return chat.Conversation{}, false
	}
	return c.Clone(), true
}

// directLocked finds or creates the 1:1 conversation of me and other.
func (e *Engine) directLocked(ctx context.Context, me *chat.User, other chat.User, name string) (string, error) {
	existing, err := e.store.FindDirectConversation(ctx, me.ID, other.ID)
	if err != nil {
		return "", fmt.Errorf("find direct conversation: %w", err)
	}
	if existing != nil {
		e.adoptLocked(existing)
		e.viewerFor(me.ID).add(existing.ID)
		return existing.ID, nil
	}

	c, err := chat.NewConversation(e.newID(), *me, []chat.User{other}, name, e.now())
	if err != nil {
		return "", err
	}
	err = e.createLocked(ctx, c)
	if errors.Is(err, store.ErrDirectExists) {
		// Another writer on the same database won the race.
		existing, ferr := e.store.FindDirectConversation(ctx, me.ID, other.ID)
		if ferr != nil || existing == nil {
			return "", fmt.Errorf("find direct conversation: %w", err)
		}
		e.adoptLocked(existing)
		e.viewerFor(me.ID).add(existing.ID)
		return existing.ID, nil
	}
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

// createLocked writes the initial summary, persists c and publishes it to
// every signed-in participant.
func (e *Engine) createLocked(ctx context.Context, c *chat.Conversation) error {
	c.SetSummary(ConversationStartedSnippet, c.CreatedAt, c.ParticipantIDs[0])
	if err := e.store.CreateConversation(ctx, c); err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}

	e.conversations[c.ID] = c
	e.messages[c.ID] = []*chat.Message{}

	creator := e.viewerFor(c.ParticipantIDs[0])
	creator.add(c.ID)
	_ = creator.transition(c.ID, Loaded)
	e.shareLocked(c)

	e.metrics.ConversationCreated(c.IsDirect())
	e.logger.Info("conversation created",
		zap.String("conversation_id", c.ID),
		zap.Int("participants", len(c.ParticipantIDs)),
		zap.Bool("direct", c.IsDirect()),
	)
	e.publish(bus.ConversationCreated, c.Clone())
	return nil
}

// adoptLocked caches a conversation read from the store unless already cached.
func (e *Engine) adoptLocked(c *chat.Conversation) *chat.Conversation {
	if cached, ok := e.conversations[c.ID]; ok {
		return cached
	}
	e.conversations[c.ID] = c
	return c
}

// shareLocked adds c to the working set of every participant that has a session.
func (e *Engine) shareLocked(c *chat.Conversation) {
	_, loaded := e.messages[c.ID]
	for _, id := range c.ParticipantIDs {
		v, ok := e.viewers[id]
		if !ok {
			continue
		}
		v.add(c.ID)
		if loaded && v.state(c.ID) == Unopened {
			_ = v.transition(c.ID, Loaded)
		}
	}
}

// IsParticipant reports whether userID belongs to a known conversation.
func (e *Engine) IsParticipant(conversationID, userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.conversations[conversationID]
	return ok && c.HasParticipant(userID)
}

// HasConversation reports whether the engine knows conversationID.
func (e *Engine) HasConversation(conversationID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.conversations[conversationID]
	return ok
}
