package chat

import (
	"errors"
	"testing"
	"time"
)

var (
	alice = User{ID: "u1", Name: "Alice", Role: "ADMIN"}
	bob   = User{ID: "u2", Name: "Bob", Role: "EDUCATOR"}
	carol = User{ID: "u3", Name: "Carol", Role: "LEARNER"}
)

func TestNewConversationDirect(t *testing.T) {
	c, err := NewConversation("c1", alice, []User{bob}, "", time.UnixMilli(1000))
	if err != nil {
		t.Fatal(err)
	}
	if !c.IsDirect() {
		t.Error("IsDirect() = false, want true")
	}
	if c.Name != "" {
		t.Errorf("name = %q, want empty for 1:1", c.Name)
	}
	if got := c.DisplayName("u1"); got != "Bob" {
		t.Errorf("DisplayName(u1) = %q, want Bob", got)
	}
	if got := c.DisplayName("u2"); got != "Alice" {
		t.Errorf("DisplayName(u2) = %q, want Alice", got)
	}
	if c.ParticipantRoles["u2"] != "EDUCATOR" {
		t.Errorf("role = %q, want EDUCATOR", c.ParticipantRoles["u2"])
	}
	if c.HasSummary() {
		t.Error("new conversation should have no summary")
	}
}

func TestNewConversationDerivesGroupName(t *testing.T) {
	c, err := NewConversation("c1", alice, []User{bob, carol}, "", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != "Bob, Carol" {
		t.Errorf("name = %q, want %q", c.Name, "Bob, Carol")
	}
	if c.DirectKey() != "" {
		t.Error("group conversation must not have a direct key")
	}

	named, err := NewConversation("c2", alice, []User{bob, carol}, "  Faculty  ", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if named.Name != "Faculty" {
		t.Errorf("name = %q, want Faculty", named.Name)
	}
}

func TestNewConversationDropsDuplicates(t *testing.T) {
	c, err := NewConversation("c1", alice, []User{bob, alice, bob, carol}, "", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"u1", "u2", "u3"}
	if len(c.ParticipantIDs) != len(want) {
		t.Fatalf("participants = %v, want %v", c.ParticipantIDs, want)
	}
	for i, id := range want {
		if c.ParticipantIDs[i] != id {
			t.Errorf("participant[%d] = %q, want %q", i, c.ParticipantIDs[i], id)
		}
	}
}

func TestNewConversationRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		creator User
		others  []User
		wantErr error
	}{
		{"alone", alice, nil, ErrTooFewParticipants},
		{"only self", alice, []User{alice}, ErrTooFewParticipants},
		{"empty creator", User{}, []User{bob}, ErrInvalidUser},
		{"empty participant", alice, []User{{Name: "nobody"}}, ErrInvalidUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConversation("c1", tt.creator, tt.others, "", time.Now())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPairKeyIsOrderIndependent(t *testing.T) {
	if PairKey("a", "b") != PairKey("b", "a") {
		t.Error("PairKey must not depend on argument order")
	}
	c1, _ := NewConversation("c1", alice, []User{bob}, "", time.Now())
	c2, _ := NewConversation("c2", bob, []User{alice}, "", time.Now())
	if c1.DirectKey() != c2.DirectKey() {
		t.Error("direct keys differ for the same pair")
	}
}

func TestCloneDoesNotShareState(t *testing.T) {
	c, _ := NewConversation("c1", alice, []User{bob}, "", time.Now())
	cp := c.Clone()
	cp.ParticipantIDs[0] = "x"
	cp.ParticipantNames["u2"] = "Robert"
	if c.ParticipantIDs[0] != "u1" || c.ParticipantNames["u2"] != "Bob" {
		t.Error("Clone shares participant state with the original")
	}

	m, _ := NewMessage("m1", "c1", alice, "hi", time.Now())
	mc := m.Clone()
	mc.MarkReadBy("u2")
	if m.IsReadBy("u2") {
		t.Error("Clone shares reader list with the original")
	}
}

func TestNewMessageReadState(t *testing.T) {
	m, err := NewMessage("m1", "c1", alice, "Hello Bob", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsReadBy("u1") {
		t.Error("sender's own message must be read")
	}
	if m.IsReadBy("u2") {
		t.Error("recipient must not have read a new message")
	}
	if !m.MarkReadBy("u2") {
		t.Error("first MarkReadBy should report a change")
	}
	if m.MarkReadBy("u2") {
		t.Error("second MarkReadBy should be a no-op")
	}
	if m.MarkReadBy("u1") {
		t.Error("sender is always a reader")
	}
}

func TestNewMessageRejectsBlank(t *testing.T) {
	for _, content := range []string{"", "   ", "\n\t"} {
		if _, err := NewMessage("m1", "c1", alice, content, time.Now()); !errors.Is(err, ErrBlankContent) {
			t.Errorf("NewMessage(%q) err = %v, want ErrBlankContent", content, err)
		}
	}
	if _, err := NewMessage("m1", "c1", User{}, "hi", time.Now()); !errors.Is(err, ErrInvalidUser) {
		t.Errorf("err = %v, want ErrInvalidUser", err)
	}
}

func TestSortByActivity(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	convs := []Conversation{
		{ID: "old", CreatedAt: base, LastMessageAt: base.Add(time.Minute)},
		{ID: "b-quiet", CreatedAt: base.Add(time.Hour)},
		{ID: "fresh", CreatedAt: base, LastMessageAt: base.Add(2 * time.Minute)},
		{ID: "a-quiet", CreatedAt: base.Add(time.Hour)},
	}
	SortByActivity(convs)

	want := []string{"fresh", "old", "a-quiet", "b-quiet"}
	for i, id := range want {
		if convs[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, convs[i].ID, id)
		}
	}
}
