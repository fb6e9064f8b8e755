package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/portalchat/internal/api"
)

// MessageView displays the thread of the active conversation.
type MessageView struct {
	*tview.TextView
	viewerID string
}

// NewMessageView creates a message view for viewerID.
func NewMessageView(viewerID string) *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")
	return &MessageView{TextView: tv, viewerID: viewerID}
}

// SetConversation updates the title.
func (mv *MessageView) SetConversation(c api.Conversation) {
	title := c.DisplayName
	if !c.Direct {
		title = fmt.Sprintf("%s [%d]", title, len(c.ParticipantIDs))
	}
	mv.SetTitle(" " + tview.Escape(sanitizeForTerminal(title)) + " ")
}

// Update redraws the thread, oldest first.
func (mv *MessageView) Update(msgs []api.Message) {
	mv.Clear()
	now := time.Now()
	for _, m := range msgs {
		_, _ = fmt.Fprint(mv, formatMessage(m, mv.viewerID, now))
	}
	mv.ScrollToEnd()
}

func formatMessage(m api.Message, viewerID string, now time.Time) string {
	sender := m.SenderName
	if sender == "" {
		sender = m.SenderID
	}
	if m.SenderID == viewerID {
		sender = "You"
	}
	marker := ""
	if !m.Read {
		marker = " [yellow]●[-]"
	}
	return fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
		tview.Escape(sanitizeForTerminal(sender)),
		formatTimestamp(m.TimestampUnixMs, now),
		marker,
		tview.Escape(sanitizeForTerminal(m.Content)))
}
