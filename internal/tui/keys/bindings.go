package keys

import "github.com/gdamore/tcell/v2"

// Action is one keybinding.
type Action struct {
	Name        string
	Key         tcell.Key
	Rune        rune
	Description string
	Handler     func()
	Visible     bool
}

// Matches returns true if key and r trigger this action. r is only
// compared for tcell.KeyRune.
func (a *Action) Matches(key tcell.Key, r rune) bool {
	if a.Key != tcell.KeyRune {
		return key == a.Key
	}
	return key == tcell.KeyRune && r == a.Rune
}

// Registry holds keybindings per page, in registration order.
type Registry struct {
	global []*Action
	pages  map[string][]*Action
}

// NewRegistry creates a new keybinding registry.
func NewRegistry() *Registry {
	return &Registry{pages: make(map[string][]*Action)}
}

// AddGlobal registers a binding active on every page. A later binding with
// the same name replaces the earlier one.
func (r *Registry) AddGlobal(a *Action) {
	r.global = upsert(r.global, a)
}

// AddPage registers a binding for one page.
func (r *Registry) AddPage(page string, a *Action) {
	r.pages[page] = upsert(r.pages[page], a)
}

func upsert(list []*Action, a *Action) []*Action {
	for i, existing := range list {
		if existing.Name == a.Name {
			list[i] = a
			return list
		}
	}
	return append(list, a)
}

// Hints returns visible descriptions for page, page bindings first.
func (r *Registry) Hints(page string) []string {
	var hints []string
	for _, a := range r.pages[page] {
		if a.Visible {
			hints = append(hints, a.Description)
		}
	}
	for _, a := range r.global {
		if a.Visible {
			hints = append(hints, a.Description)
		}
	}
	return hints
}

// HandleEvent runs the binding matching ev on page. It reports whether one matched.
func (r *Registry) HandleEvent(page string, ev *tcell.EventKey) bool {
	return r.HandleKey(page, ev.Key(), ev.Rune())
}

// HandleKey runs the first binding matching key and ch, checking page
// bindings before global ones.
func (r *Registry) HandleKey(page string, key tcell.Key, ch rune) bool {
	for _, a := range r.pages[page] {
		if a.Matches(key, ch) {
			a.Handler()
			return true
		}
	}
	for _, a := range r.global {
		if a.Matches(key, ch) {
			a.Handler()
			return true
		}
	}
	return false
}
