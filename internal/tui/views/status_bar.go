package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"
)

// StatusBar shows profile, viewer, daemon status, unread total, the newest
// toast and key hints.
type StatusBar struct {
	*tview.TextView
	profile string
	viewer  string
	status  string
	unread  int
	flash   string
	hints   []string
}

// NewStatusBar creates a new status bar.
func NewStatusBar(profile, viewer string) *StatusBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	sb := &StatusBar{TextView: tv, profile: profile, viewer: viewer}
	sb.render()
	return sb
}

// SetStatus updates the daemon status.
func (sb *StatusBar) SetStatus(status string) {
	sb.status = status
	sb.render()
}

// SetUnread updates the unread total.
func (sb *StatusBar) SetUnread(n int) {
	sb.unread = n
	sb.render()
}

// SetFlash sets the toast text; "" clears it.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

// SetHints sets the key hints for the current page.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()
	_, _ = fmt.Fprint(sb, sb.line(time.Now()))
}

func (sb *StatusBar) line(now time.Time) string {
	status := sb.status
	if status == "" {
		status = "connecting"
	}
	line := fmt.Sprintf(" [::b]%s[-:-:-] %s | %s | %s",
		tview.Escape(sb.profile), tview.Escape(sb.viewer), status, now.Format("15:04"))
	if sb.unread > 0 {
		line += fmt.Sprintf(" | [red]%d unread[-]", sb.unread)
	}
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", tview.Escape(sanitizeForTerminal(sb.flash)))
	}
	if len(sb.hints) > 0 {
		line += " | [::d]" + strings.Join(sb.hints, " ") + "[-:-:-]"
	}
	return line
}
