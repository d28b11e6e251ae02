package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arbor-sh/arbor/internal/logging"
	"github.com/arbor-sh/arbor/pkg/ports"
	"github.com/arbor-sh/arbor/pkg/registry"
)

const (
	// DefaultMaxWorkers bounds concurrent Running tasks per execution.
	DefaultMaxWorkers = 4

	// DefaultTaskTimeout bounds a single attempt when the spec omits one.
	DefaultTaskTimeout = 30 * time.Second

	// DefaultCancelGrace is how long the engine waits for running tasks
	// after a cancel signal before marking them Cancelled and discarding
	// their eventual results.
	DefaultCancelGrace = 5 * time.Second
)

// Engine validates and executes workflow specs. Safe for concurrent use;
// distinct executions share nothing but the (sealed) registry and the
// metrics sink.
type Engine struct {
	registry    *registry.Registry
	maxWorkers  int
	backoff     Backoff
	cancelGrace time.Duration
	taskTimeout time.Duration
	metrics     ports.MetricsSink
	logger      *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithMaxWorkers sets the worker pool width.
func WithMaxWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxWorkers = n
		}
	}
}

// WithBackoff sets the retry delay policy.
func WithBackoff(b Backoff) Option {
	return func(e *Engine) {
		e.backoff = b
	}
}

// WithCancelGrace bounds the wait for running tasks after cancellation.
func WithCancelGrace(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.cancelGrace = d
		}
	}
}

// WithDefaultTaskTimeout sets the attempt timeout for specs that omit one.
func WithDefaultTaskTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.taskTimeout = d
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(sink ports.MetricsSink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.metrics = sink
		}
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an Engine over the given registry and seals it: the
// name -> executable mapping is immutable from here on.
func NewEngine(reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:    reg,
		maxWorkers:  DefaultMaxWorkers,
		backoff:     DefaultBackoff,
		cancelGrace: DefaultCancelGrace,
		taskTimeout: DefaultTaskTimeout,
		metrics:     ports.NopSink{},
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	reg.Seal()
	return e
}

// Submit validates the spec wholly — unique ids, known dependencies,
// acyclicity, registry lookups — and, only if everything passes, starts
// executing it. Validation failures happen before any task exists
// (fail-fast, no partial execution).
//
// session is snapshotted here; later mutations by the caller are not seen
// by tasks.
func (e *Engine) Submit(ctx context.Context, spec Spec, session map[string]any) (*Execution, error) {
	if _, err := spec.validate(); err != nil {
		return nil, err
	}
	for _, t := range spec.Tasks {
		if _, ok := e.registry.Resolve(t.Uses); !ok {
			return nil, &UnknownTaskError{TaskID: t.ID, Uses: t.Uses}
		}
	}

	snapshot := make(map[string]any, len(session))
	for k, v := range session {
		snapshot[k] = v
	}

	exec := newExecution(uuid.NewString(), spec, snapshot)

	e.logger.Debug("workflow submitted",
		"execution_id", exec.ID,
		"workflow", spec.Name,
		"tasks", len(spec.Tasks),
	)
	e.metrics.Emit("workflow_submitted", 1, map[string]string{"workflow": spec.Name})

	go e.run(ctx, exec)

	return exec, nil
}
