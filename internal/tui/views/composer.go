package views

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Composer is the input line. Text starting with ':' is a command.
type Composer struct {
	*tview.InputField
	onSend    func(text string)
	onCommand func(cmd string)
}

// NewComposer creates a new message composer.
func NewComposer() *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)

	c := &Composer{InputField: input}
	input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := c.GetText()
		c.SetText("")
		c.submit(text)
	})
	return c
}

func (c *Composer) submit(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if cmd, ok := strings.CutPrefix(text, ":"); ok {
		if c.onCommand != nil {
			c.onCommand(cmd)
		}
		return
	}
	if c.onSend != nil {
		c.onSend(text)
	}
}

// SetOnSend sets the callback for message text.
func (c *Composer) SetOnSend(fn func(text string)) {
	c.onSend = fn
}

// SetOnCommand sets the callback for ':' commands.
func (c *Composer) SetOnCommand(fn func(cmd string)) {
	c.onCommand = fn
}
