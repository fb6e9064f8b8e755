package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/portalchat/internal/api"
)

const snippetWidth = 48

// ConversationList shows the viewer's conversations, most recent first.
type ConversationList struct {
	*tview.Table
	conversations []api.Conversation
}

// NewConversationList creates the conversation table.
func NewConversationList() *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	table.SetBorder(true).SetTitle(" Conversations ")
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(tcell.ColorBlack).
		Background(tcell.ColorAqua))
	return &ConversationList{Table: table}
}

// Update replaces the rows, keeping the selection on the same conversation
// when it is still listed.
func (cl *ConversationList) Update(convs []api.Conversation, totalUnread int) {
	selected := cl.Selected()
	cl.Clear()
	cl.conversations = convs

	title := " Conversations "
	if totalUnread > 0 {
		title = fmt.Sprintf(" Conversations (%d unread) ", totalUnread)
	}
	cl.SetTitle(title)

	for col, h := range []string{"NAME", "LAST MESSAGE", "TIME"} {
		cl.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold))
	}

	row := 1
	for i, c := range convs {
		name := sanitizeForTerminal(c.DisplayName)
		if c.UnreadCount > 0 {
			name = fmt.Sprintf("* %s (%d)", name, c.UnreadCount)
		}
		nameCell := tview.NewTableCell(tview.Escape(name)).SetExpansion(1)
		if c.UnreadCount > 0 {
			nameCell.SetAttributes(tcell.AttrBold)
		}
		cl.SetCell(i+1, 0, nameCell)
		cl.SetCell(i+1, 1, tview.NewTableCell(tview.Escape(clip(sanitizeForTerminal(c.LastMessageSnippet), snippetWidth))).SetExpansion(2))
		cl.SetCell(i+1, 2, tview.NewTableCell(formatTimestamp(c.LastMessageAtUnixMs, time.Now())))
		if c.ID == selected {
			row = i + 1
		}
	}
	if len(convs) > 0 {
		cl.Select(row, 0)
	}
}

// Selected returns the id of the highlighted conversation, or "".
func (cl *ConversationList) Selected() string {
	row, _ := cl.GetSelection()
	if row < 1 || row > len(cl.conversations) {
		return ""
	}
	return cl.conversations[row-1].ID
}

// formatTimestamp shows the time for today and the date otherwise.
func formatTimestamp(unixMs int64, now time.Time) string {
	if unixMs == 0 {
		return ""
	}
	t := api.Time(unixMs)
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return t.Format("15:04")
	}
	if y1 == y2 {
		return t.Format("Jan 02")
	}
	return t.Format("2006-01-02")
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
