package messaging

import (
	"context"
	"strings"

	"github.com/matheus3301/portalchat/internal/chat"
	"go.uber.org/zap"
)

// ReplierPolicy picks who answers a message sent by senderID in c. An empty
// result means nobody replies.
type ReplierPolicy func(c *chat.Conversation, senderID string) string

// FirstOtherParticipant answers with the first participant that is not the sender.
func FirstOtherParticipant(c *chat.Conversation, senderID string) string {
	for _, id := range c.ParticipantIDs {
		if id != senderID {
			return id
		}
	}
	return ""
}

// deliverReply runs on a timer goroutine. It is a no-op when the engine was
// closed, the sender's session ended or the conversation left its working set.
func (e *Engine) deliverReply(conversationID, senderID, replierID, original string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	log := e.logger.With(zap.String("conversation_id", conversationID), zap.String("replier_id", replierID))
	if e.closed {
		log.Debug("reply dropped: engine closed")
		e.metrics.Dropped()
		return
	}
	c, ok := e.conversations[conversationID]
	v, live := e.viewers[senderID]
	if !ok || !live || !v.has(conversationID) {
		log.Debug("reply dropped: conversation no longer live")
		e.metrics.Dropped()
		return
	}
	replier, ok := c.Participant(replierID)
	if !ok {
		log.Debug("reply dropped: replier left")
		e.metrics.Dropped()
		return
	}

	var readers []string
	if v.active == conversationID {
		readers = append(readers, senderID)
	}
	content := strings.ReplaceAll(e.cfg.ReplyTemplate, "{message}", original)
	if _, err := e.appendLocked(context.Background(), c, replier, content, true, readers...); err != nil {
		log.Error("failed to deliver reply", zap.Error(err))
		e.metrics.Dropped()
		return
	}
	e.shareLocked(c)
	log.Debug("reply delivered")
}
