package api

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/portalchat/internal/bus"
	"github.com/matheus3301/portalchat/internal/chat"
	"github.com/matheus3301/portalchat/internal/messaging"
	"github.com/matheus3301/portalchat/internal/status"
	"go.uber.org/zap"
)

// Counter reports repository totals for Status.
type Counter interface {
	ConversationCount(ctx context.Context) (int64, error)
	MessageCount(ctx context.Context) (int64, error)
}

// MessagingService implements MessagingServer on top of the engine.
type MessagingService struct {
	engine      *messaging.Engine
	bus         *bus.Bus
	machine     *status.Machine
	counter     Counter
	limiter     *Limiter
	logger      *zap.Logger
	profile     string
	storeDriver string
	startedAt   time.Time
}

// ServiceOptions carries the collaborators that only Status and rate limiting need.
type ServiceOptions struct {
	Profile     string
	StoreDriver string
	Machine     *status.Machine
	Counter     Counter
	Limiter     *Limiter
	Logger      *zap.Logger
}

// NewMessagingService creates the gRPC service.
func NewMessagingService(engine *messaging.Engine, b *bus.Bus, opts ServiceOptions) *MessagingService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessagingService{
		engine:      engine,
		bus:         b,
		machine:     opts.Machine,
		counter:     opts.Counter,
		limiter:     opts.Limiter,
		logger:      logger,
		profile:     opts.Profile,
		storeDriver: opts.StoreDriver,
		startedAt:   time.Now(),
	}
}

func (s *MessagingService) LoadConversations(ctx context.Context, req *LoadConversationsRequest) (*LoadConversationsResponse, error) {
	me := req.Viewer.toChat()
	if me == nil {
		return nil, toStatus(messaging.ErrNoViewer)
	}
	if err := s.engine.LoadUserConversations(ctx, me); err != nil {
		return nil, toStatus(err)
	}
	resp := &LoadConversationsResponse{TotalUnread: s.engine.TotalUnread(me)}
	for _, c := range s.engine.Conversations(me) {
		resp.Conversations = append(resp.Conversations, s.conversation(me, c))
	}
	return resp, nil
}

func (s *MessagingService) StartOrGetConversation(ctx context.Context, req *StartOrGetConversationRequest) (*ConversationResponse, error) {
	me := req.Viewer.toChat()
	id, err := s.engine.StartOrGetConversation(ctx, me, *req.Recipient.toChat())
	if err != nil {
		return nil, toStatus(err)
	}
	return s.conversationResponse(me, id), nil
}

func (s *MessagingService) StartConversation(ctx context.Context, req *StartConversationRequest) (*ConversationResponse, error) {
	me := req.Viewer.toChat()
	participants := make([]chat.User, 0, len(req.Participants))
	for i := range req.Participants {
		participants = append(participants, *req.Participants[i].toChat())
	}
	id, err := s.engine.StartConversation(ctx, me, participants, req.Name)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.conversationResponse(me, id), nil
}

func (s *MessagingService) OpenConversation(ctx context.Context, req *OpenConversationRequest) (*ListMessagesResponse, error) {
	me := req.Viewer.toChat()
	if err := s.engine.LoadMessagesForConversation(ctx, me, req.ConversationID); err != nil {
		return nil, toStatus(err)
	}
	return s.messages(me, req.ConversationID), nil
}

func (s *MessagingService) ListMessages(_ context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	me := req.Viewer.toChat()
	if me == nil {
		return nil, toStatus(messaging.ErrNoViewer)
	}
	if !s.engine.HasConversation(req.ConversationID) {
		return nil, toStatus(messaging.ErrConversationNotFound)
	}
	if !s.engine.IsParticipant(req.ConversationID, me.ID) {
		return nil, toStatus(messaging.ErrNotParticipant)
	}
	return s.messages(me, req.ConversationID), nil
}

func (s *MessagingService) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	me := req.Viewer.toChat()
	if me != nil && !s.limiter.Allow(me.ID) {
		s.logger.Warn("send rate exceeded", zap.String("user_id", me.ID))
		return nil, toStatus(ErrRateLimited)
	}
	if err := s.engine.SendMessage(ctx, me, req.ConversationID, req.Content); err != nil {
		return nil, toStatus(err)
	}
	return &SendMessageResponse{Accepted: strings.TrimSpace(req.Content) != ""}, nil
}

func (s *MessagingService) UnreadCount(_ context.Context, req *UnreadCountRequest) (*UnreadCountResponse, error) {
	me := req.Viewer.toChat()
	if me == nil {
		return nil, toStatus(messaging.ErrNoViewer)
	}
	resp := &UnreadCountResponse{Total: s.engine.TotalUnread(me)}
	if req.ConversationID != "" {
		resp.Count = s.engine.UnreadCount(me, req.ConversationID)
	}
	return resp, nil
}

func (s *MessagingService) Status(ctx context.Context, _ *StatusRequest) (*StatusResponse, error) {
	resp := &StatusResponse{
		Profile:        s.profile,
		UptimeMs:       time.Since(s.startedAt).Milliseconds(),
		StoreDriver:    s.storeDriver,
		PendingReplies: s.engine.TotalPendingReplies(),
	}
	if s.machine != nil {
		resp.Status = string(s.machine.Current())
		resp.StateSinceMs = time.Since(s.machine.Since()).Milliseconds()
	}
	if s.bus != nil {
		resp.DroppedEvents = s.bus.Dropped()
	}
	if s.counter != nil {
		if n, err := s.counter.ConversationCount(ctx); err == nil {
			resp.ConversationCount = n
		}
		if n, err := s.counter.MessageCount(ctx); err == nil {
			resp.MessageCount = n
		}
	}
	return resp, nil
}

// WatchEvents streams engine events relevant to the viewer until the client
// goes away. Without a viewer only status changes are sent.
func (s *MessagingService) WatchEvents(req *WatchEventsRequest, stream EventStream) error {
	me := req.Viewer.toChat()
	ch, unsub := s.bus.Subscribe("", 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			out, ok := s.event(me, evt)
			if !ok {
				continue
			}
			if err := stream.Send(out); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func (s *MessagingService) event(me *chat.User, evt bus.Event) (*Event, bool) {
	out := &Event{
		EventID:          uuid.New().String(),
		Profile:          s.profile,
		Kind:             evt.Kind,
		OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
	}
	switch p := evt.Payload.(type) {
	case status.StatusChange:
		out.Status = &StatusChange{From: string(p.From), To: string(p.To)}
		return out, true
	case chat.Conversation:
		if me == nil || !p.HasParticipant(me.ID) {
			return nil, false
		}
		c := s.conversation(me, p)
		out.Conversation = &c
	case chat.Message:
		if me == nil || !s.engine.IsParticipant(p.ConversationID, me.ID) {
			return nil, false
		}
		m := messageToWire(p, me.ID)
		out.Message = &m
	case messaging.ReadReceipt:
		if me == nil || !s.engine.IsParticipant(p.ConversationID, me.ID) {
			return nil, false
		}
		out.Receipt = receiptToWire(p)
	default:
		return nil, false
	}
	return out, true
}

func (s *MessagingService) conversation(me *chat.User, c chat.Conversation) Conversation {
	out := conversationToWire(c, me.ID)
	out.UnreadCount = s.engine.UnreadCount(me, c.ID)
	out.State = string(s.engine.State(me, c.ID))
	return out
}

func (s *MessagingService) conversationResponse(me *chat.User, id string) *ConversationResponse {
	resp := &ConversationResponse{ConversationID: id}
	if c, ok := s.engine.Conversation(me, id); ok {
		wire := s.conversation(me, c)
		resp.Conversation = &wire
	}
	return resp
}

func (s *MessagingService) messages(me *chat.User, id string) *ListMessagesResponse {
	resp := &ListMessagesResponse{
		UnreadCount: s.engine.UnreadCount(me, id),
		Active:      s.engine.ActiveConversationID(me) == id,
	}
	for _, m := range s.engine.Messages(me, id) {
		resp.Messages = append(resp.Messages, messageToWire(m, me.ID))
	}
	return resp
}
