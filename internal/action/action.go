// Package action defines the unit of asynchronous work tracked by a
// tracker.Tracker.
//
// An Action reaches exactly one terminal state, completed or errored, and
// notifies its listeners when it does. Concrete actions embed *Base, which
// owns the listener lists, the optional timeout and the terminal-state
// guard, and implement Start to kick off their own work. When that work
// finishes they call Complete or Fail on the embedded Base.
package action

// CompleteFunc is called with the action that completed.
type CompleteFunc func(a Action)

// ErrorFunc is called with the action that failed and the failure.
// err.Error() is the failure message.
type ErrorFunc func(a Action, err error)

// Action is the capability a tracker needs from a unit of work.
type Action interface {
	// OnCompleted appends a completion listener and returns the action.
	OnCompleted(fn CompleteFunc) Action
	// OnError appends an error listener and returns the action.
	OnError(fn ErrorFunc) Action
	// Start begins the work. It must eventually lead to exactly one
	// Complete or Fail on the action.
	Start() Action
}

// Identified is implemented by actions that embed *Base.
type Identified interface {
	ID() string
	Name() string
}

// State is the terminal state of an action.
type State int32

const (
	Pending State = iota
	Completed
	Errored
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Completed:
		return "completed"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}
