package views

import (
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/portalchat/internal/api"
)

func TestSanitizeForTerminal(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"👍\U0001F3FB", "👍"},
		{"\U0001F468\u200D\U0001F469\u200D\U0001F467", "\U0001F468\U0001F469\U0001F467"},
		{"\u2764\uFE0F", "\u2764"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeForTerminal(tt.in); got != tt.want {
			t.Errorf("sanitizeForTerminal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"today", time.Date(2026, 3, 10, 9, 5, 0, 0, time.Local), "09:05"},
		{"this year", time.Date(2026, 1, 2, 9, 5, 0, 0, time.Local), "Jan 02"},
		{"older", time.Date(2024, 1, 2, 9, 5, 0, 0, time.Local), "2024-01-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatTimestamp(tt.at.UnixMilli(), now); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
	if got := formatTimestamp(0, now); got != "" {
		t.Errorf("zero timestamp = %q", got)
	}
}

func TestClip(t *testing.T) {
	if got := clip("short", 10); got != "short" {
		t.Errorf("clip short = %q", got)
	}
	if got := clip("abcdefghij", 5); got != "abcd…" {
		t.Errorf("clip long = %q", got)
	}
}

func TestFormatMessage(t *testing.T) {
	now := time.Now()
	own := formatMessage(api.Message{SenderID: "u1", SenderName: "Alice", Content: "hi [red]x", TimestampUnixMs: now.UnixMilli(), Read: true}, "u1", now)
	if !strings.HasPrefix(own, "[::b]You[-:-:-]") {
		t.Errorf("own message = %q", own)
	}
	if strings.Contains(own, "[red]x") {
		t.Errorf("content tags not escaped: %q", own)
	}

	other := formatMessage(api.Message{SenderID: "u2", Content: "yo", TimestampUnixMs: now.UnixMilli()}, "u1", now)
	if !strings.HasPrefix(other, "[::b]u2[-:-:-]") || !strings.Contains(other, "●") {
		t.Errorf("unread message from u2 = %q", other)
	}
}

func TestStatusBarLine(t *testing.T) {
	sb := NewStatusBar("main", "Alice")
	now := time.Date(2026, 3, 10, 15, 4, 0, 0, time.Local)
	if line := sb.line(now); !strings.Contains(line, "connecting") || !strings.Contains(line, "15:04") {
		t.Errorf("initial line = %q", line)
	}
	sb.SetStatus("READY")
	sb.SetUnread(3)
	sb.SetFlash("New message from Bob")
	sb.SetHints([]string{"q:quit"})
	line := sb.line(now)
	for _, want := range []string{"READY", "3 unread", "New message from Bob", "q:quit"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestComposerSubmit(t *testing.T) {
	c := NewComposer()
	var sent, commands []string
	c.SetOnSend(func(text string) { sent = append(sent, text) })
	c.SetOnCommand(func(cmd string) { commands = append(commands, cmd) })

	c.submit("hello")
	c.submit("   ")
	c.submit(":new u2:Bob")

	if len(sent) != 1 || sent[0] != "hello" {
		t.Errorf("sent = %v", sent)
	}
	if len(commands) != 1 || commands[0] != "new u2:Bob" {
		t.Errorf("commands = %v", commands)
	}
}

func TestConversationListSelection(t *testing.T) {
	cl := NewConversationList()
	convs := []api.Conversation{
		{ID: "c1", DisplayName: "Bob", UnreadCount: 2},
		{ID: "c2", DisplayName: "Team"},
	}
	cl.Update(convs, 2)
	if got := cl.Selected(); got != "c1" {
		t.Errorf("selected = %q, want c1", got)
	}
	cl.Select(2, 0)
	// Reordered list keeps the same conversation selected.
	cl.Update([]api.Conversation{convs[1], convs[0]}, 2)
	if got := cl.Selected(); got != "c2" {
		t.Errorf("selected after reorder = %q, want c2", got)
	}
	if got := cl.GetCell(2, 0).Text; got != "* Bob (2)" {
		t.Errorf("unread cell = %q", got)
	}
}
