// Package notify raises transient notifications for incoming messages.
package notify

import (
	"sync"
	"time"
)

// DefaultToastTTL is how long a toast stays visible.
const DefaultToastTTL = 5 * time.Second

// Toast is one transient notification.
type Toast struct {
	ID             uint64
	Text           string
	ConversationID string
	Expires        time.Time
}

// Toasts holds notifications that expire after a fixed TTL.
type Toasts struct {
	mu      sync.Mutex
	entries []Toast
	next    uint64
	ttl     time.Duration
	now     func() time.Time
}

// NewToasts creates an empty toast list. A non-positive ttl uses DefaultToastTTL.
func NewToasts(ttl time.Duration) *Toasts {
	if ttl <= 0 {
		ttl = DefaultToastTTL
	}
	return &Toasts{ttl: ttl, now: time.Now}
}

// Push adds a toast and returns it.
func (t *Toasts) Push(text, conversationID string) Toast {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	toast := Toast{
		ID:             t.next,
		Text:           text,
		ConversationID: conversationID,
		Expires:        t.now().Add(t.ttl),
	}
	t.entries = append(t.entries, toast)
	return toast
}

// Active returns the toasts that have not expired, oldest first.
func (t *Toasts) Active() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	live := t.entries[:0]
	for _, toast := range t.entries {
		if now.Before(toast.Expires) {
			live = append(live, toast)
		}
	}
	t.entries = live
	out := make([]Toast, len(live))
	copy(out, live)
	return out
}

// Latest returns the text of the newest active toast, or empty.
func (t *Toasts) Latest() string {
	active := t.Active()
	if len(active) == 0 {
		return ""
	}
	return active[len(active)-1].Text
}
