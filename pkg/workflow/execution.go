package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arbor-sh/arbor/pkg/registry"
)

// taskState is the runtime state of one task. It is mutated only by the
// scheduler goroutine, always under the execution mutex, so readers see a
// consistent picture.
type taskState struct {
	spec      TaskSpec
	status    TaskStatus
	attempts  int
	remaining int // unresolved dependencies
	result    any
	err       error
	duration  time.Duration
}

// TaskSnapshot is a point-in-time view of one task, safe to retain.
type TaskSnapshot struct {
	ID       string
	Uses     string
	Status   TaskStatus
	Attempts int
	Duration time.Duration
	Err      error
}

// completion is what a worker reports back to the scheduler after an
// attempt finishes or times out.
type completion struct {
	id       string
	result   any
	err      error
	duration time.Duration
}

// Execution is a single run of a workflow spec. All methods are safe for
// concurrent use.
type Execution struct {
	ID string

	spec    Spec
	session map[string]any

	mu         sync.RWMutex
	tasks      map[string]*taskState
	order      []string            // submission order
	dependents map[string][]string // task id -> direct dependents

	// scheduler plumbing; workers only ever send, the scheduler only ever
	// receives, and both channels are buffered wide enough that a send can
	// never block after the scheduler has exited.
	completions chan completion
	wake        chan string

	runCtx    context.Context
	runCancel context.CancelFunc

	cancelOnce sync.Once
	cancelCh   chan struct{}

	done     chan struct{}
	finalSt  Status
	finalErr error
}

func newExecution(id string, spec Spec, session map[string]any) *Execution {
	runCtx, runCancel := context.WithCancel(context.Background())

	exec := &Execution{
		ID:          id,
		spec:        spec,
		session:     session,
		tasks:       make(map[string]*taskState, len(spec.Tasks)),
		order:       make([]string, 0, len(spec.Tasks)),
		dependents:  make(map[string][]string, len(spec.Tasks)),
		completions: make(chan completion, len(spec.Tasks)),
		wake:        make(chan string, len(spec.Tasks)),
		runCtx:      runCtx,
		runCancel:   runCancel,
		cancelCh:    make(chan struct{}),
		done:        make(chan struct{}),
	}

	for _, t := range spec.Tasks {
		exec.tasks[t.ID] = &taskState{
			spec:      t,
			status:    TaskPending,
			remaining: len(t.DependsOn),
		}
		exec.order = append(exec.order, t.ID)
		for _, dep := range t.DependsOn {
			exec.dependents[dep] = append(exec.dependents[dep], t.ID)
		}
	}
	return exec
}

// Cancel requests cooperative cancellation. Idempotent; it returns
// immediately, use Wait or Done to observe completion.
func (x *Execution) Cancel() {
	x.cancelOnce.Do(func() { close(x.cancelCh) })
}

// Done is closed when the execution reaches a terminal status.
func (x *Execution) Done() <-chan struct{} {
	return x.done
}

// Wait blocks until the execution finishes or ctx expires. On ctx expiry
// the execution keeps running; callers that want it stopped must Cancel.
func (x *Execution) Wait(ctx context.Context) (Status, error) {
	select {
	case <-x.done:
		return x.finalSt, x.finalErr
	case <-ctx.Done():
		return x.Status(), ctx.Err()
	}
}

// Status derives the current workflow status from task states.
func (x *Execution) Status() Status {
	select {
	case <-x.done:
		return x.finalSt
	default:
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	return deriveStatus(x.tasks)
}

// Err returns the terminal error, or nil while running or on success.
func (x *Execution) Err() error {
	select {
	case <-x.done:
		return x.finalErr
	default:
		return nil
	}
}

// Snapshot returns per-task state in submission order.
func (x *Execution) Snapshot() []TaskSnapshot {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]TaskSnapshot, 0, len(x.order))
	for _, id := range x.order {
		ts := x.tasks[id]
		out = append(out, TaskSnapshot{
			ID:       id,
			Uses:     ts.spec.Uses,
			Status:   ts.status,
			Attempts: ts.attempts,
			Duration: ts.duration,
			Err:      ts.err,
		})
	}
	return out
}

// TaskResult returns the result of a succeeded task.
func (x *Execution) TaskResult(id string) (any, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	ts, ok := x.tasks[id]
	if !ok || ts.status != TaskSucceeded {
		return nil, false
	}
	return ts.result, true
}

// run is the scheduler: a single goroutine that owns every task-state
// transition. Workers execute attempts and report back over the completions
// channel; all bookkeeping happens here, which keeps the state machine
// linearizable without fine-grained locking.
func (e *Engine) run(ctx context.Context, exec *Execution) {
	var (
		ready      []string // FIFO, submission order among ties
		running    int
		cancelling bool
		graceCh    <-chan time.Time
	)
	// Nilled out after the first cancel signal so the closed channel cannot
	// spin the select.
	cancelCh := exec.cancelCh
	ctxDone := ctx.Done()

	exec.mu.Lock()
	for _, id := range exec.order {
		ts := exec.tasks[id]
		if ts.remaining == 0 {
			ts.status = TaskReady
			ready = append(ready, id)
		}
	}
	exec.mu.Unlock()

	finalize := func() {
		exec.mu.Lock()
		exec.finalSt = deriveStatus(exec.tasks)
		switch exec.finalSt {
		case StatusFailed:
			for _, id := range exec.order {
				ts := exec.tasks[id]
				if ts.status == TaskFailed && !ts.spec.Optional {
					exec.finalErr = ts.err
					break
				}
			}
		case StatusCancelled:
			exec.finalErr = &WorkflowCancelledError{ExecutionID: exec.ID}
		}
		exec.mu.Unlock()

		exec.runCancel()
		close(exec.done)

		e.logger.Debug("workflow finished",
			"execution_id", exec.ID,
			"workflow", exec.spec.Name,
			"status", string(exec.finalSt),
		)
		e.metrics.Emit("workflow_completed", 1, map[string]string{
			"workflow": exec.spec.Name,
			"status":   string(exec.finalSt),
		})
	}

	// beginCancel flips the execution into draining mode: nothing new is
	// dispatched, queued tasks become Cancelled, running tasks get their
	// contexts cancelled and a grace period to come back.
	beginCancel := func() {
		if cancelling {
			return
		}
		cancelling = true
		ready = nil
		cancelCh = nil
		ctxDone = nil

		exec.mu.Lock()
		for _, ts := range exec.tasks {
			if ts.status == TaskPending || ts.status == TaskReady {
				ts.status = TaskCancelled
				e.emitTask(exec, ts)
			}
		}
		exec.mu.Unlock()

		exec.runCancel()
		if running > 0 {
			graceCh = time.After(e.cancelGrace)
		}
	}

	for {
		// Dispatch as many ready tasks as worker slots allow.
		for !cancelling && running < e.maxWorkers && len(ready) > 0 {
			id := ready[0]
			ready = ready[1:]
			running++
			e.dispatch(exec, id)
		}

		if running == 0 && len(ready) == 0 {
			exec.mu.RLock()
			settled := deriveStatus(exec.tasks) != StatusRunning
			exec.mu.RUnlock()
			if settled {
				finalize()
				return
			}
			// Not settled and nothing runnable: tasks are parked in
			// retry backoff, waiting on the wake channel.
		}

		select {
		case c := <-exec.completions:
			running--
			ready = append(ready, e.settle(exec, c, cancelling)...)

		case id := <-exec.wake:
			exec.mu.Lock()
			ts := exec.tasks[id]
			if ts.status == TaskPending {
				ts.status = TaskReady
				ready = append(ready, id)
			}
			exec.mu.Unlock()

		case <-cancelCh:
			beginCancel()

		case <-ctxDone:
			beginCancel()

		case <-graceCh:
			// Grace expired: detach whatever is still running. Their
			// eventual completions land in the buffered channel and are
			// simply never read.
			exec.mu.Lock()
			for _, ts := range exec.tasks {
				if ts.status == TaskRunning {
					ts.status = TaskCancelled
					ts.err = context.Canceled
					e.emitTask(exec, ts)
				}
			}
			exec.mu.Unlock()
			finalize()
			return
		}
	}
}

// dispatch marks a task Running and launches a worker for one attempt.
func (e *Engine) dispatch(exec *Execution, id string) {
	exec.mu.Lock()
	ts := exec.tasks[id]
	ts.status = TaskRunning
	ts.attempts++
	attempt := ts.attempts

	deps := make(map[string]any, len(ts.spec.DependsOn))
	for _, dep := range ts.spec.DependsOn {
		deps[dep] = exec.tasks[dep].result
	}

	spec := ts.spec
	exec.mu.Unlock()

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = e.taskTimeout
	}

	fn, _ := e.registry.Resolve(spec.Uses)
	in := registry.Input{
		Args:    spec.Args,
		Session: exec.session,
		Deps:    deps,
	}

	e.logger.Debug("task dispatched",
		"execution_id", exec.ID,
		"task", id,
		"uses", spec.Uses,
		"attempt", attempt,
	)

	go e.attempt(exec, id, fn, in, timeout)
}

// attempt runs one bounded attempt. On timeout the worker slot is released
// immediately; the overrunning function keeps its goroutine until it honors
// context cancellation, and its result is discarded.
func (e *Engine) attempt(exec *Execution, id string, fn registry.TaskFunc, in registry.Input, timeout time.Duration) {
	tctx, cancel := context.WithTimeout(exec.runCtx, timeout)
	defer cancel()

	start := time.Now()
	resCh := make(chan completion, 1)
	go func() {
		result, err := fn(tctx, in)
		resCh <- completion{id: id, result: result, err: err}
	}()

	select {
	case c := <-resCh:
		c.duration = time.Since(start)
		exec.completions <- c
	case <-tctx.Done():
		err := tctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = &TaskTimeoutError{TaskID: id, Timeout: timeout}
		}
		exec.completions <- completion{id: id, err: err, duration: time.Since(start)}
	}
}

// settle applies one attempt outcome and returns task ids that became
// ready. Failure handling covers the retry loop, terminal failure with
// cascade skip, and the draining path after cancellation.
func (e *Engine) settle(exec *Execution, c completion, cancelling bool) []string {
	exec.mu.Lock()
	defer exec.mu.Unlock()

	ts := exec.tasks[c.id]
	if ts.status != TaskRunning {
		// Already force-cancelled; a late completion is stale.
		return nil
	}
	ts.duration += c.duration

	if c.err == nil {
		ts.status = TaskSucceeded
		ts.result = c.result
		ts.err = nil
		e.emitTask(exec, ts)

		if cancelling {
			return nil
		}
		var ready []string
		for _, dep := range exec.dependents[c.id] {
			dts := exec.tasks[dep]
			dts.remaining--
			if dts.remaining == 0 && dts.status == TaskPending {
				dts.status = TaskReady
				ready = append(ready, dep)
			}
		}
		return ready
	}

	if cancelling {
		ts.status = TaskCancelled
		ts.err = c.err
		e.emitTask(exec, ts)
		return nil
	}

	if ts.attempts <= ts.spec.MaxRetries {
		// Park the task through the backoff window; the timer re-readies
		// it via the wake channel.
		ts.status = TaskPending
		ts.err = c.err
		delay := e.backoff.Delay(ts.attempts)

		e.logger.Debug("task retry scheduled",
			"execution_id", exec.ID,
			"task", c.id,
			"attempt", ts.attempts,
			"delay", delay,
			"err", c.err,
		)

		id := c.id
		time.AfterFunc(delay, func() {
			select {
			case exec.wake <- id:
			case <-exec.done:
			}
		})
		return nil
	}

	ts.status = TaskFailed
	ts.err = &TaskExhaustedRetriesError{
		TaskID:   c.id,
		Attempts: ts.attempts,
		Last:     c.err,
	}
	e.emitTask(exec, ts)

	e.logger.Warn("task failed",
		"execution_id", exec.ID,
		"task", c.id,
		"attempts", ts.attempts,
		"err", c.err,
	)

	// Cascade: everything downstream of a dead task can never run.
	e.skipDependents(exec, c.id)
	return nil
}

// skipDependents marks the transitive closure of dependents Skipped. Called
// with the execution mutex held, synchronously with the failure, so a
// doomed task is never observed as Pending after its ancestor failed.
func (e *Engine) skipDependents(exec *Execution, id string) {
	queue := append([]string(nil), exec.dependents[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		ts := exec.tasks[next]
		if ts.status != TaskPending {
			continue
		}
		ts.status = TaskSkipped
		e.emitTask(exec, ts)
		queue = append(queue, exec.dependents[next]...)
	}
}

// emitTask reports a terminal task transition. Called with the execution
// mutex held; sinks must not block.
func (e *Engine) emitTask(exec *Execution, ts *taskState) {
	e.metrics.Emit("workflow_task_total", 1, map[string]string{
		"workflow": exec.spec.Name,
		"task":     ts.spec.ID,
		"status":   string(ts.status),
	})
	if ts.duration > 0 {
		e.metrics.Emit("workflow_task_duration_seconds", ts.duration.Seconds(), map[string]string{
			"workflow": exec.spec.Name,
			"task":     ts.spec.ID,
		})
	}
}
