package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrSessionNotFound is returned when a session ID cannot be found.
var ErrSessionNotFound = errors.New("session not found")

// ErrRecordNotFound is returned by data stores when a key has no record.
var ErrRecordNotFound = errors.New("record not found")

// ErrAgentClosed is returned when a turn is submitted after shutdown.
var ErrAgentClosed = errors.New("agent is closed")

// ValidationError rejects malformed input before any session mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// InvalidTransitionError is returned when an event is not legal in the
// session's current state. The session is left untouched.
type InvalidTransitionError struct {
	State State
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: event %q not allowed in state %q", e.Event, e.State)
}

// TurnTimeoutError is surfaced when the global per-turn deadline elapses
// while a workflow is still in flight. The workflow is cancelled first.
type TurnTimeoutError struct {
	SessionID string
	Limit     time.Duration
}

func (e *TurnTimeoutError) Error() string {
	return fmt.Sprintf("turn timed out after %s (session %s)", e.Limit, e.SessionID)
}

// DataAccessError wraps failures from the data-access collaborator so raw
// driver errors never cross the core boundary.
type DataAccessError struct {
	Op  string
	Key string
	Err error
}

func (e *DataAccessError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("data access: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("data access: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }
