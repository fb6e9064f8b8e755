package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/portalchat/internal/chat"
)

// repository is the surface both backends implement.
type repository interface {
	CreateConversation(ctx context.Context, c *chat.Conversation) error
	GetConversation(ctx context.Context, id string) (*chat.Conversation, error)
	FindDirectConversation(ctx context.Context, a, b string) (*chat.Conversation, error)
	ListConversationsFor(ctx context.Context, userID string) ([]chat.Conversation, error)
	AppendMessage(ctx context.Context, m *chat.Message, snippet string) error
	ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error)
	MarkRead(ctx context.Context, readerID string, messageIDs []string) error
	ConversationCount(ctx context.Context) (int64, error)
	MessageCount(ctx context.Context) (int64, error)
}

var (
	alice = chat.User{ID: "u1", Name: "Alice", Role: "ADMIN"}
	bob   = chat.User{ID: "u2", Name: "Bob", Role: "EDUCATOR"}
	carol = chat.User{ID: "u3", Name: "Carol", Role: "LEARNER"}
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func backends(t *testing.T) map[string]func(t *testing.T) repository {
	t.Helper()
	return map[string]func(t *testing.T) repository{
		"memory": func(*testing.T) repository { return NewMemory() },
		"sqlite": func(t *testing.T) repository { return testDB(t) },
	}
}

func mustConversation(t *testing.T, id string, creator chat.User, others ...chat.User) *chat.Conversation {
	t.Helper()
	c, err := chat.NewConversation(id, creator, others, "", time.UnixMilli(1000))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func mustMessage(t *testing.T, id, convID string, sender chat.User, content string, ts int64) *chat.Message {
	t.Helper()
	m, err := chat.NewMessage(id, convID, sender, content, time.UnixMilli(ts))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate once.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed() {
		t.Error("second Migrate() should report no change")
	}
	if result.From != 1 || result.Version != 1 {
		t.Errorf("versions = %d -> %d, want 1 -> 1", result.From, result.Version)
	}
	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Errorf("SchemaVersion() = %d, want 1", v)
	}
}

func TestMigrateFreshDatabase(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	if v, err := db.SchemaVersion(); err != nil || v != 0 {
		t.Fatalf("SchemaVersion() before migrate = %d, %v", v, err)
	}
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Changed() || result.From != 0 || result.Version != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestOpenMemory(t *testing.T) {
	db, err := Open(MemoryPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := db.CreateConversation(ctx, mustConversation(t, "c1", alice, bob)); err != nil {
		t.Fatal(err)
	}
	n, err := db.ConversationCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestConversationRoundTrip(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			ctx := context.Background()

			group := mustConversation(t, "g1", alice, bob, carol)
			if err := repo.CreateConversation(ctx, group); err != nil {
				t.Fatal(err)
			}

			got, err := repo.GetConversation(ctx, "g1")
			if err != nil {
				t.Fatal(err)
			}
			if got == nil {
				t.Fatal("conversation not found")
			}
			if got.Name != "Bob, Carol" {
				t.Errorf("name = %q, want Bob, Carol", got.Name)
			}
			want := []string{"u1", "u2", "u3"}
			if len(got.ParticipantIDs) != 3 {
				t.Fatalf("participants = %v, want %v", got.ParticipantIDs, want)
			}
			for i := range want {
				if got.ParticipantIDs[i] != want[i] {
					t.Errorf("participant[%d] = %q, want %q", i, got.ParticipantIDs[i], want[i])
				}
			}
			if got.ParticipantRoles["u3"] != "LEARNER" || got.ParticipantNames["u2"] != "Bob" {
				t.Errorf("snapshots not preserved: %v %v", got.ParticipantNames, got.ParticipantRoles)
			}
			if got.HasSummary() {
				t.Error("summary should be absent")
			}

			missing, err := repo.GetConversation(ctx, "nope")
			if err != nil {
				t.Fatal(err)
			}
			if missing != nil {
				t.Error("expected nil for missing conversation")
			}
		})
	}
}

func TestDirectConversationUnique(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			ctx := context.Background()

			if err := repo.CreateConversation(ctx, mustConversation(t, "c1", alice, bob)); err != nil {
				t.Fatal(err)
			}
			err := repo.CreateConversation(ctx, mustConversation(t, "c2", bob, alice))
			if !errors.Is(err, ErrDirectExists) {
				t.Fatalf("err = %v, want ErrDirectExists", err)
			}

			found, err := repo.FindDirectConversation(ctx, "u2", "u1")
			if err != nil {
				t.Fatal(err)
			}
			if found == nil || found.ID != "c1" {
				t.Errorf("found = %v, want c1", found)
			}

			none, err := repo.FindDirectConversation(ctx, "u1", "u3")
			if err != nil {
				t.Fatal(err)
			}
			if none != nil {
				t.Errorf("found %v for a pair without a conversation", none.ID)
			}

			// Groups with identical membership are distinct.
			if err := repo.CreateConversation(ctx, mustConversation(t, "g1", alice, bob, carol)); err != nil {
				t.Fatal(err)
			}
			if err := repo.CreateConversation(ctx, mustConversation(t, "g2", alice, bob, carol)); err != nil {
				t.Fatal(err)
			}
			n, err := repo.ConversationCount(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if n != 3 {
				t.Errorf("count = %d, want 3", n)
			}
		})
	}
}

func TestListConversationsForOrdersByActivity(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			ctx := context.Background()

			for _, c := range []*chat.Conversation{
				mustConversation(t, "c1", alice, bob),
				mustConversation(t, "c2", alice, carol),
				mustConversation(t, "c3", bob, carol),
			} {
				if err := repo.CreateConversation(ctx, c); err != nil {
					t.Fatal(err)
				}
			}
			if err := repo.AppendMessage(ctx, mustMessage(t, "m1", "c1", alice, "old", 2000), "old"); err != nil {
				t.Fatal(err)
			}
			if err := repo.AppendMessage(ctx, mustMessage(t, "m2", "c2", carol, "new", 3000), "new"); err != nil {
				t.Fatal(err)
			}

			convs, err := repo.ListConversationsFor(ctx, "u1")
			if err != nil {
				t.Fatal(err)
			}
			if len(convs) != 2 {
				t.Fatalf("got %d conversations, want 2", len(convs))
			}
			if convs[0].ID != "c2" || convs[1].ID != "c1" {
				t.Errorf("order = [%s %s], want [c2 c1]", convs[0].ID, convs[1].ID)
			}
			if convs[0].LastMessageSnippet != "new" || convs[0].LastMessageSenderID != "u3" {
				t.Errorf("summary = %+v", convs[0])
			}
			if !convs[0].LastMessageAt.Equal(time.UnixMilli(3000)) {
				t.Errorf("last message at = %v, want 3000ms", convs[0].LastMessageAt)
			}

		})
	}
}

func TestMessagesOrderedAndReadState(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			ctx := context.Background()

			if err := repo.CreateConversation(ctx, mustConversation(t, "c1", alice, bob)); err != nil {
				t.Fatal(err)
			}
			// Equal timestamps keep insertion order.
			msgs := []*chat.Message{
				mustMessage(t, "m1", "c1", alice, "one", 1000),
				mustMessage(t, "m2", "c1", bob, "two", 2000),
				mustMessage(t, "m3", "c1", bob, "three", 2000),
			}
			for _, m := range msgs {
				if err := repo.AppendMessage(ctx, m, m.Content); err != nil {
					t.Fatal(err)
				}
			}

			got, err := repo.ListMessages(ctx, "c1")
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 3 {
				t.Fatalf("got %d messages, want 3", len(got))
			}
			for i, id := range []string{"m1", "m2", "m3"} {
				if got[i].ID != id {
					t.Errorf("message[%d] = %q, want %q", i, got[i].ID, id)
				}
			}
			if got[1].SenderRole != "EDUCATOR" || got[1].SenderName != "Bob" {
				t.Errorf("sender snapshot = %q/%q", got[1].SenderName, got[1].SenderRole)
			}
			if !got[0].IsReadBy("u1") || got[1].IsReadBy("u1") {
				t.Error("initial read state wrong")
			}

			if err := repo.MarkRead(ctx, "u1", []string{"m2", "m3"}); err != nil {
				t.Fatal(err)
			}
			// Marking twice is harmless.
			if err := repo.MarkRead(ctx, "u1", []string{"m2"}); err != nil {
				t.Fatal(err)
			}
			got, err = repo.ListMessages(ctx, "c1")
			if err != nil {
				t.Fatal(err)
			}
			for _, m := range got {
				if !m.IsReadBy("u1") {
					t.Errorf("%s not read by u1", m.ID)
				}
			}

			n, err := repo.MessageCount(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if n != 3 {
				t.Errorf("message count = %d, want 3", n)
			}
		})
	}
}

func TestAppendMessageRequiresConversation(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			err := repo.AppendMessage(context.Background(), mustMessage(t, "m1", "ghost", alice, "hi", 1000), "hi")
			if err == nil {
				t.Error("appending to a missing conversation should fail")
			}
		})
	}
}

func TestListMessagesEmpty(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			msgs, err := open(t).ListMessages(context.Background(), "none")
			if err != nil {
				t.Fatal(err)
			}
			if len(msgs) != 0 {
				t.Errorf("got %d messages, want 0", len(msgs))
			}
		})
	}
}

func TestAppendMessageSetsSummaryAtomically(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			ctx := context.Background()
			if err := repo.CreateConversation(ctx, mustConversation(t, "c1", alice, bob)); err != nil {
				t.Fatal(err)
			}
			if err := repo.AppendMessage(ctx, mustMessage(t, "m1", "c1", bob, "  spaced out  ", 5000), "  spaced out  "); err != nil {
				t.Fatal(err)
			}
			c, err := repo.GetConversation(ctx, "c1")
			if err != nil {
				t.Fatal(err)
			}
			if c.LastMessageSnippet != "  spaced out  " || c.LastMessageSenderID != "u2" || !c.LastMessageAt.Equal(time.UnixMilli(5000)) {
				t.Errorf("summary = %q/%s/%v", c.LastMessageSnippet, c.LastMessageSenderID, c.LastMessageAt)
			}

			// A rejected duplicate leaves both the messages and the summary alone.
			if err := repo.AppendMessage(ctx, mustMessage(t, "m1", "c1", alice, "again", 6000), "again"); err == nil {
				t.Fatal("duplicate message id accepted")
			}
			c, err = repo.GetConversation(ctx, "c1")
			if err != nil {
				t.Fatal(err)
			}
			if c.LastMessageSnippet != "  spaced out  " {
				t.Errorf("summary changed by failed append: %q", c.LastMessageSnippet)
			}
			n, err := repo.MessageCount(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if n != 1 {
				t.Errorf("message count = %d, want 1", n)
			}
		})
	}
}
