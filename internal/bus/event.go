package bus

import "time"

// Event kinds published by the messaging engine and the daemon.
const (
	ConversationCreated = "conversation.created" // Payload: chat.Conversation
	MessageAppended     = "message.appended"     // Payload: chat.Message
	MessageRead         = "message.read"         // Payload: messaging.ReadReceipt
	StatusChanged       = "session.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
