package api

import (
	"time"

	"github.com/matheus3301/portalchat/internal/chat"
	"github.com/matheus3301/portalchat/internal/messaging"
)

// User identifies the acting or referenced user of a request.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

type Conversation struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name,omitempty"`
	DisplayName         string   `json:"display_name"`
	Participants        []User   `json:"participants"`
	Direct              bool     `json:"direct"`
	CreatedAtUnixMs     int64    `json:"created_at_unix_ms"`
	LastMessageSnippet  string   `json:"last_message_snippet,omitempty"`
	LastMessageAtUnixMs int64    `json:"last_message_at_unix_ms,omitempty"`
	LastMessageSenderID string   `json:"last_message_sender_id,omitempty"`
	UnreadCount         int      `json:"unread_count"`
	State               string   `json:"state,omitempty"`
	ParticipantIDs      []string `json:"participant_ids"`
}

type Message struct {
	ID              string   `json:"id"`
	ConversationID  string   `json:"conversation_id"`
	SenderID        string   `json:"sender_id"`
	SenderName      string   `json:"sender_name,omitempty"`
	SenderRole      string   `json:"sender_role,omitempty"`
	Content         string   `json:"content"`
	TimestampUnixMs int64    `json:"timestamp_unix_ms"`
	Read            bool     `json:"read"`
	ReadBy          []string `json:"read_by,omitempty"`
}

type LoadConversationsRequest struct {
	Viewer *User `json:"viewer"`
}

type LoadConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	TotalUnread   int            `json:"total_unread"`
}

type StartOrGetConversationRequest struct {
	Viewer    *User `json:"viewer"`
	Recipient User  `json:"recipient"`
}

type StartConversationRequest struct {
	Viewer       *User  `json:"viewer"`
	Participants []User `json:"participants"`
	Name         string `json:"name,omitempty"`
}

type ConversationResponse struct {
	ConversationID string        `json:"conversation_id"`
	Conversation   *Conversation `json:"conversation,omitempty"`
}

type OpenConversationRequest struct {
	Viewer         *User  `json:"viewer"`
	ConversationID string `json:"conversation_id"`
}

type ListMessagesRequest struct {
	Viewer         *User  `json:"viewer"`
	ConversationID string `json:"conversation_id"`
}

type ListMessagesResponse struct {
	Messages    []Message `json:"messages"`
	UnreadCount int       `json:"unread_count"`
	Active      bool      `json:"active"`
}

type SendMessageRequest struct {
	Viewer         *User  `json:"viewer"`
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

type SendMessageResponse struct {
	// Accepted is false when the content was blank and nothing was sent.
	Accepted bool `json:"accepted"`
}

type UnreadCountRequest struct {
	Viewer         *User  `json:"viewer"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
	Total int `json:"total"`
}

type StatusRequest struct{}

type StatusResponse struct {
	Profile           string `json:"profile"`
	Status            string `json:"status"`
	UptimeMs          int64  `json:"uptime_ms"`
	StoreDriver       string `json:"store_driver"`
	ConversationCount int64  `json:"conversation_count"`
	MessageCount      int64  `json:"message_count"`
	StateSinceMs      int64  `json:"state_since_ms"`
	PendingReplies    int    `json:"pending_replies"`
	DroppedEvents     uint64 `json:"dropped_events"`
}

type WatchEventsRequest struct {
	Viewer *User `json:"viewer"`
}

// Event is one bus event as seen by a viewer.
type Event struct {
	EventID          string        `json:"event_id"`
	Profile          string        `json:"profile"`
	Kind             string        `json:"kind"`
	OccurredAtUnixMs int64         `json:"occurred_at_unix_ms"`
	Conversation     *Conversation `json:"conversation,omitempty"`
	Message          *Message      `json:"message,omitempty"`
	Receipt          *ReadReceipt  `json:"receipt,omitempty"`
	Status           *StatusChange `json:"status,omitempty"`
}

type ReadReceipt struct {
	ConversationID string `json:"conversation_id"`
	ReaderID       string `json:"reader_id"`
	Count          int    `json:"count"`
}

type StatusChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (u *User) toChat() *chat.User {
	if u == nil {
		return nil
	}
	return &chat.User{ID: u.ID, Name: u.Name, Role: chat.Role(u.Role)}
}

func userFromChat(u chat.User) User {
	return User{ID: u.ID, Name: u.Name, Role: string(u.Role)}
}

func conversationToWire(c chat.Conversation, viewerID string) Conversation {
	out := Conversation{
		ID:                  c.ID,
		Name:                c.Name,
		DisplayName:         c.DisplayName(viewerID),
		Direct:              c.IsDirect(),
		CreatedAtUnixMs:     unixMs(c.CreatedAt),
		LastMessageSnippet:  c.LastMessageSnippet,
		LastMessageAtUnixMs: unixMs(c.LastMessageAt),
		LastMessageSenderID: c.LastMessageSenderID,
		ParticipantIDs:      c.ParticipantIDs,
	}
	for _, id := range c.ParticipantIDs {
		u, _ := c.Participant(id)
		out.Participants = append(out.Participants, userFromChat(u))
	}
	return out
}

func messageToWire(m chat.Message, viewerID string) Message {
	return Message{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		SenderName:      m.SenderName,
		SenderRole:      string(m.SenderRole),
		Content:         m.Content,
		TimestampUnixMs: unixMs(m.Timestamp),
		Read:            m.IsReadBy(viewerID),
		ReadBy:          m.ReadBy,
	}
}

func receiptToWire(r messaging.ReadReceipt) *ReadReceipt {
	return &ReadReceipt{ConversationID: r.ConversationID, ReaderID: r.ReaderID, Count: r.Count}
}

func unixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// Time converts a wire timestamp back to local time.
func Time(unixMs int64) time.Time {
	if unixMs == 0 {
		return time.Time{}
	}
	return time.UnixMilli(unixMs)
}

// Chat converts a wire message back to the domain type.
func (m *Message) Chat() chat.Message {
	return chat.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		SenderRole:     chat.Role(m.SenderRole),
		Content:        m.Content,
		Timestamp:      Time(m.TimestampUnixMs),
		ReadBy:         append([]string(nil), m.ReadBy...),
	}
}
