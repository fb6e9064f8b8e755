package model

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/portalchat/internal/api"
	"github.com/matheus3301/portalchat/internal/bus"
	"github.com/matheus3301/portalchat/internal/notify"
)

// Client is the subset of the daemon API the view model drives.
type Client interface {
	LoadConversations(ctx context.Context, req *api.LoadConversationsRequest) (*api.LoadConversationsResponse, error)
	StartOrGetConversation(ctx context.Context, req *api.StartOrGetConversationRequest) (*api.ConversationResponse, error)
	StartConversation(ctx context.Context, req *api.StartConversationRequest) (*api.ConversationResponse, error)
	OpenConversation(ctx context.Context, req *api.OpenConversationRequest) (*api.ListMessagesResponse, error)
	SendMessage(ctx context.Context, req *api.SendMessageRequest) (*api.SendMessageResponse, error)
	Status(ctx context.Context) (*api.StatusResponse, error)
	WatchEvents(ctx context.Context, req *api.WatchEventsRequest, fn func(*api.Event) error) error
}

// ViewModel caches what the daemon told us for one viewer and signals UI
// refreshes. Events from the daemon stream are replayed on a local bus so the
// toast watcher sees them the same way it would in-process.
type ViewModel struct {
	mu sync.RWMutex

	client        Client
	viewer        api.User
	Conversations []api.Conversation
	Messages      []api.Message
	ActiveID      string
	TotalUnread   int
	Status        string
	Toasts        *notify.Toasts

	events    *bus.Bus
	watcher   *notify.Watcher
	logger    *zap.Logger
	refreshCh chan struct{}
}

// Options tunes toast behaviour. Zero values use the notify defaults.
type Options struct {
	RecentWindow time.Duration
	ToastTTL     time.Duration
	Logger       *zap.Logger
}

// NewViewModel creates a view model acting as viewer.
func NewViewModel(c Client, viewer api.User, opts Options) *ViewModel {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	vm := &ViewModel{
		client:    c,
		viewer:    viewer,
		Toasts:    notify.NewToasts(opts.ToastTTL),
		events:    bus.New(),
		logger:    logger,
		refreshCh: make(chan struct{}, 1),
	}
	vm.watcher = notify.NewWatcher(vm.events, vm, vm.Toasts, viewer.ID, opts.RecentWindow, logger)
	return vm
}

// Viewer returns the user the view model acts as.
func (vm *ViewModel) Viewer() api.User { return vm.viewer }

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// IsParticipant reports whether userID is listed in a cached conversation.
func (vm *ViewModel) IsParticipant(conversationID, userID string) bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.Conversations {
		if c.ID == conversationID {
			return slices.Contains(c.ParticipantIDs, userID)
		}
	}
	return false
}

// LoadStatus fetches the daemon status line.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.client.Status(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Status = resp.Status
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadConversations fetches the viewer's conversation list.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	resp, err := vm.client.LoadConversations(ctx, &api.LoadConversationsRequest{Viewer: &vm.viewer})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Conversations = resp.Conversations
	vm.TotalUnread = resp.TotalUnread
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// Open makes id the active conversation and loads its messages.
func (vm *ViewModel) Open(ctx context.Context, id string) error {
	resp, err := vm.client.OpenConversation(ctx, &api.OpenConversationRequest{Viewer: &vm.viewer, ConversationID: id})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.ActiveID = id
	vm.Messages = resp.Messages
	for i := range vm.Conversations {
		if vm.Conversations[i].ID == id {
			vm.TotalUnread -= vm.Conversations[i].UnreadCount
			vm.Conversations[i].UnreadCount = 0
		}
	}
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// StartDirect opens (creating if needed) the direct conversation with
// recipient and returns its id.
func (vm *ViewModel) StartDirect(ctx context.Context, recipient api.User) (string, error) {
	resp, err := vm.client.StartOrGetConversation(ctx, &api.StartOrGetConversationRequest{Viewer: &vm.viewer, Recipient: recipient})
	if err != nil {
		return "", err
	}
	return resp.ConversationID, vm.LoadConversations(ctx)
}

// StartGroup creates a group conversation and returns its id.
func (vm *ViewModel) StartGroup(ctx context.Context, name string, participants []api.User) (string, error) {
	resp, err := vm.client.StartConversation(ctx, &api.StartConversationRequest{Viewer: &vm.viewer, Participants: participants, Name: name})
	if err != nil {
		return "", err
	}
	return resp.ConversationID, vm.LoadConversations(ctx)
}

// Send posts content to the active conversation.
func (vm *ViewModel) Send(ctx context.Context, content string) error {
	vm.mu.RLock()
	id := vm.ActiveID
	vm.mu.RUnlock()
	if id == "" {
		return nil
	}
	_, err := vm.client.SendMessage(ctx, &api.SendMessageRequest{Viewer: &vm.viewer, ConversationID: id, Content: content})
	return err
}

// Watch streams daemon events into the view model until ctx is done.
func (vm *ViewModel) Watch(ctx context.Context) error {
	vm.watcher.Start(ctx)
	defer vm.watcher.Stop()
	return vm.client.WatchEvents(ctx, &api.WatchEventsRequest{Viewer: &vm.viewer}, func(evt *api.Event) error {
		vm.Apply(evt)
		return nil
	})
}

// Apply folds one daemon event into the cached state.
func (vm *ViewModel) Apply(evt *api.Event) {
	switch evt.Kind {
	case bus.ConversationCreated:
		if evt.Conversation != nil {
			vm.upsert(*evt.Conversation)
		}
	case bus.MessageAppended:
		if evt.Message == nil {
			return
		}
		vm.appendMessage(*evt.Message)
		vm.events.Publish(bus.Event{Kind: bus.MessageAppended, Timestamp: time.Now(), Payload: evt.Message.Chat()})
	case bus.StatusChanged:
		if evt.Status != nil {
			vm.mu.Lock()
			vm.Status = evt.Status.To
			vm.mu.Unlock()
		}
	}
	vm.signalRefresh()
}

func (vm *ViewModel) upsert(c api.Conversation) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for i := range vm.Conversations {
		if vm.Conversations[i].ID == c.ID {
			c.UnreadCount = vm.Conversations[i].UnreadCount
			vm.Conversations[i] = c
			return
		}
	}
	vm.Conversations = append([]api.Conversation{c}, vm.Conversations...)
}

func (vm *ViewModel) appendMessage(m api.Message) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	idx := -1
	for i := range vm.Conversations {
		if vm.Conversations[i].ID == m.ConversationID {
			idx = i
			break
		}
	}
	if idx >= 0 {
		c := vm.Conversations[idx]
		c.LastMessageSnippet = m.Content
		c.LastMessageAtUnixMs = m.TimestampUnixMs
		c.LastMessageSenderID = m.SenderID
		unread := !m.Read && m.SenderID != vm.viewer.ID && !slices.Contains(m.ReadBy, vm.viewer.ID)
		if unread && m.ConversationID != vm.ActiveID {
			c.UnreadCount++
			vm.TotalUnread++
		}
		// Most recent activity first.
		vm.Conversations = slices.Delete(vm.Conversations, idx, idx+1)
		vm.Conversations = append([]api.Conversation{c}, vm.Conversations...)
	}

	if m.ConversationID != vm.ActiveID {
		return
	}
	for _, existing := range vm.Messages {
		if existing.ID == m.ID {
			return
		}
	}
	vm.Messages = append(vm.Messages, m)
}

// GetConversations returns a copy of the cached conversation list.
func (vm *ViewModel) GetConversations() []api.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return slices.Clone(vm.Conversations)
}

// GetMessages returns a copy of the active conversation's messages.
func (vm *ViewModel) GetMessages() []api.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return slices.Clone(vm.Messages)
}

// GetActive returns the active conversation, if any.
func (vm *ViewModel) GetActive() (api.Conversation, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.Conversations {
		if c.ID == vm.ActiveID {
			return c, true
		}
	}
	return api.Conversation{}, false
}

// GetTotalUnread returns the cached unread total.
func (vm *ViewModel) GetTotalUnread() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.TotalUnread
}

// GetStatus returns the last known daemon status.
func (vm *ViewModel) GetStatus() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Status
}

// Flash returns the newest live toast text, or "".
func (vm *ViewModel) Flash() string {
	return vm.Toasts.Latest()
}
