// Package messaging is the conversation and messaging engine: a directory of
// conversations per viewer, an append-only message store with per-reader read
// state, and a delivery simulator that answers sent messages on behalf of the
// other party after a delay.
//
// Every operation takes the acting user explicitly. A nil user means nobody
// is signed in: authoring operations fail with ErrNoViewer and queries return
// nothing. All operations are serialized by one mutex, so none is observable
// half-applied; simulated replies run on timer goroutines under the same lock.
package messaging

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/matheus3301/portalchat/internal/bus"
	"github.com/matheus3301/portalchat/internal/chat"
	"github.com/matheus3301/portalchat/internal/delivery"
	"github.com/matheus3301/portalchat/internal/metrics"
	"go.uber.org/zap"
)

var (
	ErrNoViewer             = errors.New("no signed-in user")
	ErrNotParticipant       = errors.New("user is not a participant of the conversation")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrClosed               = errors.New("messaging engine is closed")
)

// ConversationStartedSnippet is the summary written when a conversation is created.
const ConversationStartedSnippet = "Conversation started"

// Store is the backing repository the engine reads from and writes through to.
type Store interface {
	CreateConversation(ctx context.Context, c *chat.Conversation) error
	GetConversation(ctx context.Context, id string) (*chat.Conversation, error)
	FindDirectConversation(ctx context.Context, a, b string) (*chat.Conversation, error)
	ListConversationsFor(ctx context.Context, userID string) ([]chat.Conversation, error)
	// AppendMessage stores m and makes it the conversation summary with
	// snippet. Either both happen or neither does.
	AppendMessage(ctx context.Context, m *chat.Message, snippet string) error
	ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error)
	MarkRead(ctx context.Context, readerID string, messageIDs []string) error
}

// Config tunes the engine.
type Config struct {
	// ReplyDelay is how long the simulated other party takes to answer.
	ReplyDelay time.Duration
	// SnippetLength caps the conversation summary, in runes. Zero keeps the
	// whole message.
	SnippetLength int
	// ReplyTemplate is the simulated reply; {message} is replaced by the original text.
	ReplyTemplate string
	// SimulateReplies turns the delivery simulation on.
	SimulateReplies bool
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		ReplyDelay:      1500 * time.Millisecond,
		ReplyTemplate:   `Thanks for your message: "{message}"`,
		SimulateReplies: true,
	}
}

// ReadReceipt is the payload of bus.MessageRead.
type ReadReceipt struct {
	ConversationID string
	ReaderID       string
	Count          int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator replaces the uuid generator used for conversation and message ids.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// WithReplier replaces the policy choosing who answers a message.
func WithReplier(p ReplierPolicy) Option {
	return func(e *Engine) {
		if p != nil {
			e.replier = p
		}
	}
}

// WithMetrics records engine activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Engine owns the conversation directory, the message store and the pending
// simulated replies.
type Engine struct {
	mu sync.Mutex

	store     Store
	bus       *bus.Bus
	logger    *zap.Logger
	metrics   *metrics.Metrics
	scheduler *delivery.Scheduler
	cfg       Config
	now       func() time.Time
	newID     func() string
	replier   ReplierPolicy

	conversations map[string]*chat.Conversation
	messages      map[string][]*chat.Message
	viewers       map[string]*viewer
	closed        bool
}

// New creates an engine over store. b and logger may be nil.
func New(store Store, b *bus.Bus, logger *zap.Logger, cfg Config, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.SnippetLength < 0 {
		cfg.SnippetLength = 0
	}
	if cfg.ReplyTemplate == "" {
		cfg.ReplyTemplate = def.ReplyTemplate
	}
	if cfg.ReplyDelay < 0 {
		cfg.ReplyDelay = 0
	}

	e := &Engine{
		store:         store,
		bus:           b,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
		newID:         func() string { return uuid.New().String() },
		replier:       FirstOtherParticipant,
		conversations: make(map[string]*chat.Conversation),
		messages:      make(map[string][]*chat.Message),
		viewers:       make(map[string]*viewer),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.scheduler = delivery.NewScheduler(logger.Named("delivery"), delivery.WithPendingGauge(e.metrics.Pending()))
	return e
}

// EndSession drops the working set of userID and cancels the pending replies
// to messages userID sent. Replies owed to other users are left alone. It
// returns the number of cancelled replies.
func (e *Engine) EndSession(userID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.endSessionLocked(userID)
}

func (e *Engine) endSessionLocked(userID string) int {
	v, ok := e.viewers[userID]
	if !ok {
		return 0
	}
	n := 0
	for id := range v.activity {
		n += e.scheduler.Cancel(replyKey(id, userID))
	}
	delete(e.viewers, userID)
	e.metrics.Cancelled(n)
	e.logger.Info("session ended", zap.String("user_id", userID), zap.Int("cancelled_replies", n))
	return n
}

// Close cancels every pending reply and rejects further operations. Replies
// whose timer already fired become no-ops. Safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	n := e.scheduler.Stop()
	e.metrics.Cancelled(n)
	e.viewers = make(map[string]*viewer)
	e.logger.Info("messaging engine closed", zap.Int("cancelled_replies", n))
	return nil
}

// PendingReplies returns how many simulated replies are waiting for conversationID.
func (e *Engine) PendingReplies(conversationID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.conversations[conversationID]
	if !ok {
		return 0
	}
	n := 0
	for _, id := range c.ParticipantIDs {
		n += e.scheduler.Pending(replyKey(conversationID, id))
	}
	return n
}

// TotalPendingReplies returns the number of simulated replies waiting across
// every conversation.
func (e *Engine) TotalPendingReplies() int {
	return e.scheduler.Total()
}

// replyKey groups pending replies by conversation and original sender.
func replyKey(conversationID, senderID string) string {
	return conversationID + "/" + senderID
}

// checkViewer validates the acting user and the engine state. Must be called with e.mu held.
func (e *Engine) checkViewer(me *chat.User) error {
	if me == nil {
		return ErrNoViewer
	}
	if err := me.Validate(); err != nil {
		return err
	}
	if e.closed {
		return ErrClosed
	}
	return nil
}

func (e *Engine) viewerFor(userID string) *viewer {
	v, ok := e.viewers[userID]
	if !ok {
		v = newViewer()
		e.viewers[userID] = v
	}
	return v
}

// conversationLocked returns the cached conversation, loading it on a miss.
// It returns nil if the conversation does not exist.
func (e *Engine) conversationLocked(ctx context.Context, id string) (*chat.Conversation, error) {
	if c, ok := e.conversations[id]; ok {
		return c, nil
	}
	c, err := e.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if c != nil {
		e.conversations[id] = c
	}
	return c, nil
}

func (e *Engine) publish(kind string, payload any) {
	e.bus.Publish(bus.Event{Kind: kind, Timestamp: e.now(), Payload: payload})
}

// snippet is content itself unless SnippetLength caps it.
func (e *Engine) snippet(content string) string {
	if e.cfg.SnippetLength <= 0 || utf8.RuneCountInString(content) <= e.cfg.SnippetLength {
		return content
	}
	return string([]rune(content)[:e.cfg.SnippetLength])
}
