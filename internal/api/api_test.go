package api

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/portalchat/internal/bus"
	"github.com/matheus3301/portalchat/internal/messaging"
	"github.com/matheus3301/portalchat/internal/status"
	"github.com/matheus3301/portalchat/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

var (
	alice = &User{ID: "u1", Name: "Alice", Role: "ADMIN"}
	bob   = &User{ID: "u2", Name: "Bob", Role: "EDUCATOR"}
	carol = &User{ID: "u3", Name: "Carol", Role: "LEARNER"}
)

type fixture struct {
	client  *Client
	engine  *messaging.Engine
	machine *status.Machine
}

func startServer(t *testing.T, cfg messaging.Config, limiter *Limiter) *fixture {
	t.Helper()
	b := bus.New()
	mem := store.NewMemory()
	engine := messaging.New(mem, b, nil, cfg)
	machine := status.NewMachine(b)
	if err := machine.Transition(status.Ready); err != nil {
		t.Fatal(err)
	}
	svc := NewMessagingService(engine, b, ServiceOptions{
		Profile:     "test",
		StoreDriver: "memory",
		Machine:     machine,
		Counter:     mem,
		Limiter:     limiter,
	})

	socket := filepath.Join(t.TempDir(), "d.sock")
	lis, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatal(err)
	}
	srv := grpc.NewServer()
	RegisterMessagingServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()

	client, err := Dial(socket)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = client.Close()
		srv.Stop()
		_ = engine.Close()
	})
	return &fixture{client: client, engine: engine, machine: machine}
}

func quiet() messaging.Config {
	cfg := messaging.DefaultConfig()
	cfg.SimulateReplies = false
	return cfg
}

func code(err error) codes.Code {
	return grpcstatus.Code(err)
}

func TestRoundTripOverUnixSocket(t *testing.T) {
	ctx := context.Background()
	f := startServer(t, quiet(), nil)

	started, err := f.client.StartOrGetConversation(ctx, &StartOrGetConversationRequest{Viewer: alice, Recipient: *bob})
	if err != nil {
		t.Fatal(err)
	}
	if started.Conversation == nil || started.Conversation.DisplayName != "Bob" {
		t.Fatalf("unexpected conversation %+v", started.Conversation)
	}
	id := started.ConversationID

	sent, err := f.client.SendMessage(ctx, &SendMessageRequest{Viewer: alice, ConversationID: id, Content: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if !sent.Accepted {
		t.Error("expected message to be accepted")
	}
	blank, err := f.client.SendMessage(ctx, &SendMessageRequest{Viewer: alice, ConversationID: id, Content: "  "})
	if err != nil {
		t.Fatal(err)
	}
	if blank.Accepted {
		t.Error("blank message should not be accepted")
	}

	loaded, err := f.client.LoadConversations(ctx, &LoadConversationsRequest{Viewer: bob})
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Conversations) != 1 || loaded.TotalUnread != 1 {
		t.Fatalf("expected 1 conversation with 1 unread, got %+v", loaded)
	}
	if c := loaded.Conversations[0]; c.UnreadCount != 1 || c.LastMessageSnippet != "hi" || len(c.Participants) != 2 {
		t.Errorf("unexpected conversation %+v", c)
	}

	opened, err := f.client.OpenConversation(ctx, &OpenConversationRequest{Viewer: bob, ConversationID: id})
	if err != nil {
		t.Fatal(err)
	}
	if len(opened.Messages) != 1 || !opened.Messages[0].Read || !opened.Active || opened.UnreadCount != 0 {
		t.Errorf("unexpected open response %+v", opened)
	}

	unread, err := f.client.UnreadCount(ctx, &UnreadCountRequest{Viewer: bob, ConversationID: id})
	if err != nil {
		t.Fatal(err)
	}
	if unread.Count != 0 || unread.Total != 0 {
		t.Errorf("expected no unread, got %+v", unread)
	}

	st, err := f.client.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != string(status.Ready) || st.ConversationCount != 1 || st.MessageCount != 1 || st.Profile != "test" {
		t.Errorf("unexpected status %+v", st)
	}
	if st.PendingReplies != 0 || st.DroppedEvents != 0 || st.StateSinceMs < 0 || st.StateSinceMs > st.UptimeMs+1000 {
		t.Errorf("unexpected status counters %+v", st)
	}
}

func TestStatusReportsPendingReplies(t *testing.T) {
	ctx := context.Background()
	cfg := messaging.DefaultConfig()
	cfg.ReplyDelay = time.Hour
	f := startServer(t, cfg, nil)

	started, err := f.client.StartOrGetConversation(ctx, &StartOrGetConversationRequest{Viewer: alice, Recipient: *bob})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.client.SendMessage(ctx, &SendMessageRequest{Viewer: alice, ConversationID: started.ConversationID, Content: "hi"}); err != nil {
		t.Fatal(err)
	}

	st, err := f.client.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.PendingReplies != 1 {
		t.Errorf("pending replies = %d, want 1", st.PendingReplies)
	}
}

func TestGroupConversationOverAPI(t *testing.T) {
	ctx := context.Background()
	f := startServer(t, quiet(), nil)

	resp, err := f.client.StartConversation(ctx, &StartConversationRequest{Viewer: alice, Participants: []User{*bob, *carol}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Conversation == nil || resp.Conversation.Name != "Bob, Carol" || resp.Conversation.Direct {
		t.Errorf("unexpected group %+v", resp.Conversation)
	}

	list, err := f.client.ListMessages(ctx, &ListMessagesRequest{Viewer: alice, ConversationID: resp.ConversationID})
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Messages) != 0 {
		t.Errorf("expected empty conversation, got %d messages", len(list.Messages))
	}
}

func TestErrorCodes(t *testing.T) {
	ctx := context.Background()
	f := startServer(t, quiet(), nil)

	started, err := f.client.StartOrGetConversation(ctx, &StartOrGetConversationRequest{Viewer: alice, Recipient: *bob})
	if err != nil {
		t.Fatal(err)
	}
	id := started.ConversationID

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"no viewer", func() error {
			_, err := f.client.SendMessage(ctx, &SendMessageRequest{ConversationID: id, Content: "x"})
			return err
		}, codes.FailedPrecondition},
		{"load without viewer", func() error {
			_, err := f.client.LoadConversations(ctx, &LoadConversationsRequest{})
			return err
		}, codes.FailedPrecondition},
		{"not participant", func() error {
			_, err := f.client.OpenConversation(ctx, &OpenConversationRequest{Viewer: carol, ConversationID: id})
			return err
		}, codes.PermissionDenied},
		{"list not participant", func() error {
			_, err := f.client.ListMessages(ctx, &ListMessagesRequest{Viewer: carol, ConversationID: id})
			return err
		}, codes.PermissionDenied},
		{"not found", func() error {
			_, err := f.client.OpenConversation(ctx, &OpenConversationRequest{Viewer: alice, ConversationID: "missing"})
			return err
		}, codes.NotFound},
		{"self conversation", func() error {
			_, err := f.client.StartOrGetConversation(ctx, &StartOrGetConversationRequest{Viewer: alice, Recipient: *alice})
			return err
		}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := code(tt.call()); got != tt.want {
				t.Errorf("code = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSendRateLimit(t *testing.T) {
	ctx := context.Background()
	f := startServer(t, quiet(), NewLimiter(0.001, 2))

	started, err := f.client.StartOrGetConversation(ctx, &StartOrGetConversationRequest{Viewer: alice, Recipient: *bob})
	if err != nil {
		t.Fatal(err)
	}
	req := &SendMessageRequest{Viewer: alice, ConversationID: started.ConversationID, Content: "spam"}
	for i := 0; i < 2; i++ {
		if _, err := f.client.SendMessage(ctx, req); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	_, err = f.client.SendMessage(ctx, req)
	if code(err) != codes.ResourceExhausted {
		t.Errorf("expected ResourceExhausted, got %v", err)
	}

	// Limits are per viewer.
	req.Viewer = bob
	if _, err := f.client.SendMessage(ctx, req); err != nil {
		t.Errorf("bob should not be limited: %v", err)
	}
}

func TestWatchEventsDeliversReply(t *testing.T) {
	cfg := messaging.DefaultConfig()
	cfg.ReplyDelay = 20 * time.Millisecond
	f := startServer(t, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	started, err := f.client.StartOrGetConversation(ctx, &StartOrGetConversationRequest{Viewer: alice, Recipient: *bob})
	if err != nil {
		t.Fatal(err)
	}

	got := make(chan *Event, 1)
	errs := make(chan error, 1)
	go func() {
		errs <- f.client.WatchEvents(ctx, &WatchEventsRequest{Viewer: alice}, func(evt *Event) error {
			if evt.Message != nil && evt.Message.SenderID == bob.ID {
				select {
				case got <- evt:
				default:
				}
			}
			return nil
		})
	}()

	// The stream subscribes asynchronously; keep sending until the reply shows up.
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	req := &SendMessageRequest{Viewer: alice, ConversationID: started.ConversationID, Content: "Hello Bob"}
	if _, err := f.client.SendMessage(ctx, req); err != nil {
		t.Fatal(err)
	}
	for {
		select {
		case evt := <-got:
			if evt.Message.Content != `Thanks for your message: "Hello Bob"` || evt.Message.Read {
				t.Errorf("unexpected reply %+v", evt.Message)
			}
			return
		case err := <-errs:
			t.Fatalf("stream ended: %v", err)
		case <-ticker.C:
			if _, err := f.client.SendMessage(ctx, req); err != nil {
				t.Fatal(err)
			}
		case <-ctx.Done():
			t.Fatal("timed out waiting for reply event")
		}
	}
}

func TestLimiterDefaults(t *testing.T) {
	l := NewLimiter(0, 0)
	allowed := 0
	for i := 0; i < 20; i++ {
		if l.Allow("u1") {
			allowed++
		}
	}
	if allowed < 10 || allowed > 11 {
		t.Errorf("expected burst of 10, got %d", allowed)
	}
	var none *Limiter
	if !none.Allow("u1") {
		t.Error("nil limiter should allow")
	}
}
