package workflow

import (
	"fmt"
	"time"
)

// UnknownTaskError rejects a submission referencing an unregistered
// executable unit. Raised during validation, before any task runs.
type UnknownTaskError struct {
	TaskID string
	Uses   string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("workflow: task %q uses unregistered unit %q", e.TaskID, e.Uses)
}

// CyclicGraphError rejects a submission whose dependency graph has a cycle.
type CyclicGraphError struct {
	TaskID string
}

func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("workflow: dependency cycle involving task %q", e.TaskID)
}

// TaskTimeoutError is one attempt exceeding its task timeout. Consumed by
// the normal retry path.
type TaskTimeoutError struct {
	TaskID  string
	Timeout time.Duration
}

func (e *TaskTimeoutError) Error() string {
	return fmt.Sprintf("workflow: task %q timed out after %s", e.TaskID, e.Timeout)
}

// TaskExhaustedRetriesError is the permanent failure of a task after its
// last attempt.
type TaskExhaustedRetriesError struct {
	TaskID   string
	Attempts int
	Last     error
}

func (e *TaskExhaustedRetriesError) Error() string {
	return fmt.Sprintf("workflow: task %q failed after %d attempt(s): %v", e.TaskID, e.Attempts, e.Last)
}

func (e *TaskExhaustedRetriesError) Unwrap() error { return e.Last }

// WorkflowCancelledError is returned for executions that were cancelled
// before reaching success or failure.
type WorkflowCancelledError struct {
	ExecutionID string
}

func (e *WorkflowCancelledError) Error() string {
	return fmt.Sprintf("workflow: execution %s cancelled", e.ExecutionID)
}
