package chat

import (
	"errors"
	"slices"
	"sort"
	"strings"
	"time"
)

var (
	// ErrInvalidUser is returned when a user reference has no id.
	ErrInvalidUser = errors.New("user id is required")
	// ErrTooFewParticipants is returned when a conversation would have fewer than two members.
	ErrTooFewParticipants = errors.New("conversation needs at least two participants")
	// ErrBlankContent is returned when a message has no visible content.
	ErrBlankContent = errors.New("message content is blank")
)

// Role is the portal role of a user (e.g. EDUCATOR, ADMIN). Opaque to the engine.
type Role string

// User is a snapshot of the acting or referenced identity.
type User struct {
	ID   string
	Name string
	Role Role
}

// Validate reports whether the user can be attributed as an author or participant.
func (u User) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return ErrInvalidUser
	}
	return nil
}

// Conversation is a channel joining two or more participants.
type Conversation struct {
	ID               string
	ParticipantIDs   []string
	ParticipantNames map[string]string
	ParticipantRoles map[string]Role
	Name             string
	CreatedAt        time.Time

	LastMessageSnippet  string
	LastMessageAt       time.Time
	LastMessageSenderID string
}

// NewConversation builds a conversation with creator first followed by others
// in order. Duplicate ids (including the creator) are dropped. When name is
// empty and the conversation has more than two members, a name is derived from
// the other participants' display names.
func NewConversation(id string, creator User, others []User, name string, now time.Time) (*Conversation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("conversation id is required")
	}
	if err := creator.Validate(); err != nil {
		return nil, err
	}

	c := &Conversation{
		ID:               id,
		ParticipantNames: make(map[string]string, len(others)+1),
		ParticipantRoles: make(map[string]Role, len(others)+1),
		Name:             strings.TrimSpace(name),
		CreatedAt:        now,
	}
	c.add(creator)

	var names []string
	for _, u := range others {
		if err := u.Validate(); err != nil {
			return nil, err
		}
		if c.add(u) {
			names = append(names, u.Name)
		}
	}
	if len(c.ParticipantIDs) < 2 {
		return nil, ErrTooFewParticipants
	}
	if c.Name == "" && len(c.ParticipantIDs) > 2 {
		c.Name = strings.Join(names, ", ")
	}
	return c, nil
}

func (c *Conversation) add(u User) bool {
	if c.HasParticipant(u.ID) {
		return false
	}
	c.ParticipantIDs = append(c.ParticipantIDs, u.ID)
	c.ParticipantNames[u.ID] = u.Name
	c.ParticipantRoles[u.ID] = u.Role
	return true
}

// IsDirect reports whether this is a 1:1 conversation.
func (c *Conversation) IsDirect() bool {
	return len(c.ParticipantIDs) == 2
}

// HasParticipant reports whether userID is a member.
func (c *Conversation) HasParticipant(userID string) bool {
	return slices.Contains(c.ParticipantIDs, userID)
}

// Participant returns the creation-time snapshot of a member.
func (c *Conversation) Participant(userID string) (User, bool) {
	if !c.HasParticipant(userID) {
		return User{}, false
	}
	return User{ID: userID, Name: c.ParticipantNames[userID], Role: c.ParticipantRoles[userID]}, true
}

// Others returns the participant ids except userID, in participant order.
func (c *Conversation) Others(userID string) []string {
	out := make([]string, 0, len(c.ParticipantIDs))
	for _, id := range c.ParticipantIDs {
		if id != userID {
			out = append(out, id)
		}
	}
	return out
}

// DisplayName returns the name the viewer should see for this conversation.
func (c *Conversation) DisplayName(viewerID string) string {
	if c.Name != "" {
		return c.Name
	}
	var names []string
	for _, id := range c.Others(viewerID) {
		if n := c.ParticipantNames[id]; n != "" {
			names = append(names, n)
		} else {
			names = append(names, id)
		}
	}
	return strings.Join(names, ", ")
}

// DirectKey identifies the unordered participant pair of a 1:1 conversation.
// It is empty for group conversations.
func (c *Conversation) DirectKey() string {
	if !c.IsDirect() {
		return ""
	}
	return PairKey(c.ParticipantIDs[0], c.ParticipantIDs[1])
}

// PairKey returns the order-independent key of two user ids.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

// HasSummary reports whether a last-message summary has been written.
func (c *Conversation) HasSummary() bool {
	return !c.LastMessageAt.IsZero()
}

// SetSummary overwrites the denormalized last-message fields.
func (c *Conversation) SetSummary(snippet string, at time.Time, senderID string) {
	c.LastMessageSnippet = snippet
	c.LastMessageAt = at
	c.LastMessageSenderID = senderID
}

// Clone returns a deep copy safe to hand to readers.
func (c *Conversation) Clone() Conversation {
	out := *c
	out.ParticipantIDs = slices.Clone(c.ParticipantIDs)
	out.ParticipantNames = make(map[string]string, len(c.ParticipantNames))
	for k, v := range c.ParticipantNames {
		out.ParticipantNames[k] = v
	}
	out.ParticipantRoles = make(map[string]Role, len(c.ParticipantRoles))
	for k, v := range c.ParticipantRoles {
		out.ParticipantRoles[k] = v
	}
	return out
}

// Message is a timestamped unit of content authored by one participant.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	SenderName     string
	SenderRole     Role
	Content        string
	Timestamp      time.Time
	// ReadBy lists the users that have read the message. The sender is always included.
	ReadBy []string
}

// NewMessage builds a message already read by its sender.
func NewMessage(id, conversationID string, sender User, content string, ts time.Time) (*Message, error) {
	if err := sender.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrBlankContent
	}
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       sender.ID,
		SenderName:     sender.Name,
		SenderRole:     sender.Role,
		Content:        content,
		Timestamp:      ts,
		ReadBy:         []string{sender.ID},
	}, nil
}

// IsReadBy reports whether userID has read the message.
func (m *Message) IsReadBy(userID string) bool {
	return m.SenderID == userID || slices.Contains(m.ReadBy, userID)
}

// MarkReadBy records userID as a reader. It returns false if already read.
func (m *Message) MarkReadBy(userID string) bool {
	if m.IsReadBy(userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, userID)
	return true
}

// Clone returns a copy that does not share the reader list.
func (m *Message) Clone() Message {
	out := *m
	out.ReadBy = slices.Clone(m.ReadBy)
	return out
}

// SortByActivity orders conversations by most recent summary, then by
// creation time, then by id.
func SortByActivity(convs []Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		a, b := convs[i], convs[j]
		if !a.LastMessageAt.Equal(b.LastMessageAt) {
			return a.LastMessageAt.After(b.LastMessageAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
