package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/matheus3301/portalchat/internal/chat"
)

// Memory is an in-process repository. It is the default backing store and
// holds no state beyond the lifetime of the value.
type Memory struct {
	mu            sync.RWMutex
	conversations map[string]*chat.Conversation
	direct        map[string]string
	messages      map[string][]*chat.Message
	byID          map[string]*chat.Message
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string]*chat.Conversation),
		direct:        make(map[string]string),
		messages:      make(map[string][]*chat.Message),
		byID:          make(map[string]*chat.Message),
	}
}

// CreateConversation stores a copy of c.
func (s *Memory) CreateConversation(_ context.Context, c *chat.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[c.ID]; ok {
		return fmt.Errorf("conversation %q already exists", c.ID)
	}
	if k := c.DirectKey(); k != "" {
		if _, ok := s.direct[k]; ok {
			return ErrDirectExists
		}
		s.direct[k] = c.ID
	}
	cp := c.Clone()
	s.conversations[c.ID] = &cp
	return nil
}

// GetConversation returns a copy of the conversation, or nil if missing.
func (s *Memory) GetConversation(_ context.Context, id string) (*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	cp := c.Clone()
	return &cp, nil
}

// FindDirectConversation returns the 1:1 conversation between a and b, or nil.
func (s *Memory) FindDirectConversation(ctx context.Context, a, b string) (*chat.Conversation, error) {
	s.mu.RLock()
	id, ok := s.direct[chat.PairKey(a, b)]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.GetConversation(ctx, id)
}

// ListConversationsFor returns copies of userID's conversations, most recent first.
func (s *Memory) ListConversationsFor(_ context.Context, userID string) ([]chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Conversation, 0)
	for _, c := range s.conversations {
		if c.HasParticipant(userID) {
			out = append(out, c.Clone())
		}
	}
	chat.SortByActivity(out)
	return out, nil
}

// AppendMessage stores a copy of m at the end of its conversation and makes
// it the conversation summary with snippet.
func (s *Memory) AppendMessage(_ context.Context, m *chat.Message, snippet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[m.ConversationID]
	if !ok {
		return fmt.Errorf("insert message %q: conversation %q not found", m.ID, m.ConversationID)
	}
	if _, ok := s.byID[m.ID]; ok {
		return fmt.Errorf("insert message %q: duplicate id", m.ID)
	}
	cp := m.Clone()
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], &cp)
	s.byID[m.ID] = &cp
	c.SetSummary(snippet, m.Timestamp, m.SenderID)
	return nil
}

// ListMessages returns copies of a conversation's messages in ascending
// timestamp order, ties kept in insertion order.
func (s *Memory) ListMessages(_ context.Context, conversationID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.messages[conversationID]
	out := make([]chat.Message, 0, len(src))
	for _, m := range src {
		out = append(out, m.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// MarkRead records readerID as a reader of the given messages.
func (s *Memory) MarkRead(_ context.Context, readerID string, messageIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range messageIDs {
		if m, ok := s.byID[id]; ok {
			m.MarkReadBy(readerID)
		}
	}
	return nil
}

// ConversationCount returns the total number of conversations.
func (s *Memory) ConversationCount(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.conversations)), nil
}

// MessageCount returns the total number of messages.
func (s *Memory) MessageCount(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byID)), nil
}
