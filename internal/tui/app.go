// Package tui is the terminal client. It talks to the daemon over the API
// socket and renders one viewer's conversations.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/matheus3301/portalchat/internal/tui/keys"
	"github.com/matheus3301/portalchat/internal/tui/model"
	"github.com/matheus3301/portalchat/internal/tui/views"
)

const (
	pageList = "conversations"
	pageChat = "chat"

	refreshInterval = 5 * time.Second
)

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	vm        *model.ViewModel
	registry  *keys.Registry
	statusBar *views.StatusBar
	convList  *views.ConversationList
	msgView   *views.MessageView
	composer  *views.Composer
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI for the view model's viewer.
func NewApp(vm *model.ViewModel, profile string, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	viewer := vm.Viewer()
	label := viewer.ID
	if viewer.Name != "" {
		label = viewer.Name
	}

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        vm,
		registry:  keys.NewRegistry(),
		statusBar: views.NewStatusBar(profile, label),
		convList:  views.NewConversationList(),
		msgView:   views.NewMessageView(viewer.ID),
		composer:  views.NewComposer(),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Name: "quit", Key: tcell.KeyRune, Rune: 'q',
		Description: "q:quit", Visible: true,
		Handler: a.Stop,
	})
	a.registry.AddGlobal(&keys.Action{
		Name: "command", Key: tcell.KeyRune, Rune: ':',
		Description: "::command", Visible: true,
		Handler: func() {
			a.composer.SetText(":")
			a.app.SetFocus(a.composer.InputField)
		},
	})
	a.registry.AddPage(pageList, &keys.Action{
		Name: "reload", Key: tcell.KeyRune, Rune: 'r',
		Description: "r:reload", Visible: true,
		Handler: func() { go a.reload() },
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Name: "compose", Key: tcell.KeyRune, Rune: 'i',
		Description: "i:compose", Visible: true,
		Handler: func() { a.app.SetFocus(a.composer.InputField) },
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Name: "back", Key: tcell.KeyEscape,
		Description: "esc:back", Visible: true,
		Handler: a.showList,
	})
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, col int) {
		if id := a.convList.Selected(); id != "" {
			a.openConversation(id)
		}
	})

	a.composer.SetOnSend(func(text string) {
		go func() {
			if err := a.vm.Send(a.ctx, text); err != nil {
				a.flashError("send failed", err)
			}
		}()
	})
	a.composer.SetOnCommand(func(line string) {
		go a.runCommand(ParseCommand(line))
	})
}

func (a *App) setupLayout() {
	chat := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false)

	a.pages.AddPage(pageList, a.convList, true, true)
	a.pages.AddPage(pageChat, chat, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.composer, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)
	a.app.SetRoot(root, true)
	a.statusBar.SetHints(a.registry.Hints(pageList))

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		page, _ := a.pages.GetFrontPage()

		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			if event.Key() == tcell.KeyEscape {
				a.composer.SetText("")
				a.focusPage(page)
				return nil
			}
			return event
		}
		if a.registry.HandleEvent(page, event) {
			return nil
		}
		return event
	})
}

func (a *App) focusPage(page string) {
	if page == pageChat {
		a.app.SetFocus(a.msgView)
		return
	}
	a.app.SetFocus(a.convList)
}

func (a *App) showList() {
	a.pages.SwitchToPage(pageList)
	a.statusBar.SetHints(a.registry.Hints(pageList))
	a.app.SetFocus(a.convList)
}

func (a *App) openConversation(id string) {
	go func() {
		if err := a.vm.Open(a.ctx, id); err != nil {
			a.flashError("open failed", err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			if c, ok := a.vm.GetActive(); ok {
				a.msgView.SetConversation(c)
			}
			a.msgView.Update(a.vm.GetMessages())
			a.pages.SwitchToPage(pageChat)
			a.statusBar.SetHints(a.registry.Hints(pageChat))
			a.app.SetFocus(a.composer.InputField)
		})
	}()
}

func (a *App) runCommand(cmd Command) {
	var (
		id  string
		err error
	)
	switch cmd.Name {
	case "q", "quit":
		a.app.QueueUpdate(a.Stop)
		return
	case "new", "dm":
		if len(cmd.Args) != 1 {
			err = fmt.Errorf("usage: new <id[:name]>")
			break
		}
		recipient, perr := ParseUser(cmd.Args[0])
		if perr != nil {
			err = perr
			break
		}
		id, err = a.vm.StartDirect(a.ctx, recipient)
	case "group":
		name, users, perr := groupArgs(cmd.Args)
		if perr != nil {
			err = perr
			break
		}
		id, err = a.vm.StartGroup(a.ctx, name, users)
	default:
		err = fmt.Errorf("unknown command %q", cmd.Name)
	}
	if err != nil {
		a.flashError(cmd.Name, err)
		return
	}
	a.openConversation(id)
}

func (a *App) flashError(what string, err error) {
	a.logger.Warn(what, zap.Error(err))
	a.vm.Toasts.Push(fmt.Sprintf("%s: %v", what, err), "")
	a.app.QueueUpdateDraw(func() { a.statusBar.SetFlash(a.vm.Flash()) })
}

func (a *App) reload() {
	if err := a.vm.LoadConversations(a.ctx); err != nil {
		a.flashError("load failed", err)
	}
	if err := a.vm.LoadStatus(a.ctx); err != nil {
		a.flashError("status failed", err)
	}
}

// Run starts the TUI and blocks until it exits.
func (a *App) Run() error {
	go func() {
		a.reload()
		go a.watch()
		a.refreshLoop()
	}()
	return a.app.Run()
}

func (a *App) watch() {
	for a.ctx.Err() == nil {
		if err := a.vm.Watch(a.ctx); err != nil && a.ctx.Err() == nil {
			a.flashError("event stream", err)
		}
		select {
		case <-time.After(time.Second):
		case <-a.ctx.Done():
		}
	}
}

// refreshLoop redraws on view model changes and on a timer, which also
// expires toasts.
func (a *App) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.vm.RefreshCh():
		case <-ticker.C:
		case <-a.ctx.Done():
			return
		}
		a.app.QueueUpdateDraw(a.render)
	}
}

func (a *App) render() {
	a.convList.Update(a.vm.GetConversations(), a.vm.GetTotalUnread())
	if page, _ := a.pages.GetFrontPage(); page == pageChat {
		a.msgView.Update(a.vm.GetMessages())
	}
	a.statusBar.SetStatus(a.vm.GetStatus())
	a.statusBar.SetUnread(a.vm.GetTotalUnread())
	a.statusBar.SetFlash(a.vm.Flash())
}

// Stop shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
