package messaging

import "fmt"

// ConversationState is the lifecycle of a conversation as seen by one viewer.
type ConversationState string

const (
	// Unopened conversations are in the directory but their messages are not loaded.
	Unopened ConversationState = "UNOPENED"
	// Loaded conversations have their message list cached.
	Loaded ConversationState = "LOADED"
	// Active is the conversation the viewer currently has open.
	Active ConversationState = "ACTIVE"
)

var validTransitions = map[ConversationState][]ConversationState{
	Unopened: {Loaded, Active},
	Loaded:   {Active},
	Active:   {Loaded},
}

// CanTransition reports whether from -> to is allowed. Staying in the same
// state is always allowed.
func CanTransition(from, to ConversationState) bool {
	if from == to {
		return true
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// viewer is the working set of one signed-in user.
type viewer struct {
	activity map[string]ConversationState
	active   string
}

func newViewer() *viewer {
	return &viewer{activity: make(map[string]ConversationState)}
}

func (v *viewer) has(conversationID string) bool {
	_, ok := v.activity[conversationID]
	return ok
}

// add puts a conversation in the working set without changing its state.
func (v *viewer) add(conversationID string) {
	if !v.has(conversationID) {
		v.activity[conversationID] = Unopened
	}
}

func (v *viewer) state(conversationID string) ConversationState {
	if s, ok := v.activity[conversationID]; ok {
		return s
	}
	return Unopened
}

func (v *viewer) transition(conversationID string, to ConversationState) error {
	from := v.state(conversationID)
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid conversation transition: %s -> %s", from, to)
	}
	v.activity[conversationID] = to
	if to == Active {
		v.active = conversationID
	} else if v.active == conversationID {
		v.active = ""
	}
	return nil
}

// activate makes conversationID the active one, demoting the previous.
func (v *viewer) activate(conversationID string) error {
	if v.active != "" && v.active != conversationID {
		if err := v.transition(v.active, Loaded); err != nil {
			return err
		}
	}
	return v.transition(conversationID, Active)
}
