package workflow

// TaskStatus is the per-task state machine:
// Pending -> Ready -> Running -> {Succeeded | Failed | Skipped | Cancelled},
// with Failed attempts looping back to Ready while retries remain.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskReady     TaskStatus = "ready"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
	TaskCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the status is final; terminal tasks are never
// mutated again.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskSucceeded, TaskFailed, TaskSkipped, TaskCancelled:
		return true
	}
	return false
}

// Status is the workflow-level status. It is always derived from the
// constituent task statuses, never stored, so it cannot drift.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// deriveStatus recomputes the overall status. Optional tasks never affect
// it. Precedence among terminal outcomes: Failed > Cancelled > Succeeded.
func deriveStatus(tasks map[string]*taskState) Status {
	anyFailed := false
	anyCancelled := false
	for _, ts := range tasks {
		if !ts.status.Terminal() {
			return StatusRunning
		}
		if ts.spec.Optional {
			continue
		}
		switch ts.status {
		case TaskFailed:
			anyFailed = true
		case TaskCancelled:
			anyCancelled = true
		}
	}
	if anyFailed {
		return StatusFailed
	}
	if anyCancelled {
		return StatusCancelled
	}
	return StatusSucceeded
}
