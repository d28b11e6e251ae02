package domain

// State is the lifecycle state of a session's agent.
type State string

const (
	StateIdle            State = "idle"              // No work in flight
	StateProcessing      State = "processing"        // A turn is being served
	StateWaitingForInput State = "waiting_for_input" // Blocked on a clarification from the user
	StateError           State = "error"             // Last turn failed; requires recover
)

// Event drives a state transition.
type Event string

const (
	EventSubmitRequest      Event = "submit_request"
	EventCompleteSuccess    Event = "complete_success"
	EventNeedsClarification Event = "needs_clarification"
	EventFail               Event = "fail"
	EventRecover            Event = "recover"
)

// Effects are the side effects a transition carries. They are applied by the
// caller atomically with the state change, or not at all.
type Effects struct {
	// ClearWorkflow drops the session's in-flight workflow reference.
	ClearWorkflow bool
}

type transition struct {
	next    State
	effects Effects
}

// transitions is the full table. Any (state, event) pair absent here is an
// InvalidTransitionError.
var transitions = map[State]map[Event]transition{
	StateIdle: {
		EventSubmitRequest: {next: StateProcessing},
	},
	StateProcessing: {
		EventCompleteSuccess:    {next: StateIdle},
		EventNeedsClarification: {next: StateWaitingForInput},
		EventFail:               {next: StateError},
	},
	StateWaitingForInput: {
		EventSubmitRequest: {next: StateProcessing},
	},
	StateError: {
		EventRecover: {next: StateIdle, effects: Effects{ClearWorkflow: true}},
	},
}

// Apply is the pure transition function (state, event) -> (next, effects).
// It never mutates anything; on an illegal event it returns the current
// state unchanged together with an InvalidTransitionError.
func Apply(current State, event Event) (State, Effects, error) {
	row, ok := transitions[current]
	if !ok {
		return current, Effects{}, &InvalidTransitionError{State: current, Event: event}
	}
	tr, ok := row[event]
	if !ok {
		return current, Effects{}, &InvalidTransitionError{State: current, Event: event}
	}
	return tr.next, tr.effects, nil
}
