package notify

import (
	"context"
	"time"

	"github.com/matheus3301/portalchat/internal/bus"
	"github.com/matheus3301/portalchat/internal/chat"
	"go.uber.org/zap"
)

// DefaultRecentWindow bounds how old a message may be to raise a toast.
const DefaultRecentWindow = 10 * time.Second

// Membership reports whether userID participates in a conversation.
type Membership interface {
	IsParticipant(conversationID, userID string) bool
}

// Watcher turns appended messages into toasts for one viewer.
type Watcher struct {
	bus     *bus.Bus
	members Membership
	toasts  *Toasts
	viewer  string
	window  time.Duration
	now     func() time.Time
	logger  *zap.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWatcher creates a watcher for viewerID. A non-positive window uses DefaultRecentWindow.
func NewWatcher(b *bus.Bus, members Membership, toasts *Toasts, viewerID string, window time.Duration, logger *zap.Logger) *Watcher {
	if window <= 0 {
		window = DefaultRecentWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		bus:     b,
		members: members,
		toasts:  toasts,
		viewer:  viewerID,
		window:  window,
		now:     time.Now,
		logger:  logger,
	}
}

// Start subscribes to appended messages until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	ch, unsub := w.bus.Subscribe(bus.MessageAppended, 64)
	go func() {
		defer close(w.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if m, ok := evt.Payload.(chat.Message); ok {
					w.Handle(m)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the watcher and waits for its loop to exit.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
}

// Handle raises a toast for m if it is a recent, unread message from someone
// else in a conversation the viewer belongs to. It reports whether it did.
func (w *Watcher) Handle(m chat.Message) bool {
	if m.SenderID == w.viewer || m.IsReadBy(w.viewer) {
		return false
	}
	if w.now().Sub(m.Timestamp) > w.window {
		return false
	}
	if w.members != nil && !w.members.IsParticipant(m.ConversationID, w.viewer) {
		return false
	}
	name := m.SenderName
	if name == "" {
		name = m.SenderID
	}
	w.toasts.Push("New message from "+name, m.ConversationID)
	w.logger.Debug("toast raised", zap.String("conversation_id", m.ConversationID), zap.String("sender_id", m.SenderID))
	return true
}
