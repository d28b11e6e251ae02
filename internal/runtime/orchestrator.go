// Package runtime composes the state controller, decision engine and
// workflow engine into the per-turn pipeline.
package runtime

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/arbor-sh/arbor/internal/config"
	"github.com/arbor-sh/arbor/internal/logging"
	"github.com/arbor-sh/arbor/pkg/decision"
	"github.com/arbor-sh/arbor/pkg/domain"
	"github.com/arbor-sh/arbor/pkg/ports"
	"github.com/arbor-sh/arbor/pkg/registry"
	"github.com/arbor-sh/arbor/pkg/session"
	"github.com/arbor-sh/arbor/pkg/workflow"
)

// Orchestrator serves conversational turns. One instance handles many
// sessions concurrently; per-session work is serialized by the session
// manager, everything else is shared read-only.
type Orchestrator struct {
	cfg      config.Config
	store    ports.DataStore
	resolver ports.IntentResolver
	metrics  ports.MetricsSink
	logger   *slog.Logger

	sessions *session.Manager
	engine   *workflow.Engine
	validate *validator.Validate
	triage   *decision.Tree

	mu         sync.Mutex
	executions map[string]*workflow.Execution // session id -> latest execution
	closed     bool
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(sink ports.MetricsSink) Option {
	return func(o *Orchestrator) {
		if sink != nil {
			o.metrics = sink
		}
	}
}

// New builds an Orchestrator over the given collaborators: the data store
// backing catalog tasks and the resolver turning raw text into structured
// intents.
func New(cfg config.Config, store ports.DataStore, resolver ports.IntentResolver, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:        cfg,
		store:      store,
		resolver:   resolver,
		metrics:    ports.NopSink{},
		logger:     logging.NewNop(),
		validate:   validator.New(),
		executions: make(map[string]*workflow.Execution),
	}
	for _, opt := range opts {
		opt(o)
	}

	triage, err := newTriageTree()
	if err != nil {
		return nil, err
	}
	o.triage = triage

	reg := registry.New()
	if err := registerTasks(reg, store, cfg); err != nil {
		return nil, err
	}

	o.engine = workflow.NewEngine(reg,
		workflow.WithMaxWorkers(cfg.MaxWorkers),
		workflow.WithBackoff(workflow.Backoff{Base: cfg.BackoffBase.Std(), Cap: cfg.BackoffCap.Std()}),
		workflow.WithCancelGrace(cfg.CancelGrace.Std()),
		workflow.WithDefaultTaskTimeout(cfg.DefaultTaskTimeout.Std()),
		workflow.WithMetrics(o.metrics),
		workflow.WithLogger(o.logger),
	)
	o.sessions = session.NewManager(session.WithLogger(o.logger))

	return o, nil
}

// SubmitTurn serves one conversational turn end to end. Errors that reject
// the turn before any session mutation (validation, illegal transition,
// closed agent) return a zero response; errors during processing return a
// structured failure response alongside the error, with the session moved
// to Error.
func (o *Orchestrator) SubmitTurn(ctx context.Context, req domain.TurnRequest) (domain.TurnResponse, error) {
	if err := o.checkOpen(); err != nil {
		return domain.TurnResponse{}, err
	}
	if err := o.validateRequest(req); err != nil {
		return domain.TurnResponse{}, err
	}

	start := time.Now()
	o.metrics.Emit("active_turns", 1, nil)
	defer o.metrics.Emit("active_turns", -1, nil)

	// Phase 1: admit the turn. The transition to Processing is the gate
	// that rejects concurrent turns on the same session.
	var turnContext map[string]any
	err := o.sessions.WithSession(ctx, req.SessionID, func(s *domain.Session) error {
		s.HistoryLimit = o.cfg.HistoryLimit
		if err := s.Transition(domain.EventSubmitRequest); err != nil {
			return err
		}
		s.MergeContext(req.Context)
		s.Touch()
		turnContext = s.Clone().Context
		return nil
	})
	if err != nil {
		return domain.TurnResponse{}, err
	}

	// Phase 2: the long part, outside the session lock.
	tctx, cancel := context.WithTimeout(ctx, o.cfg.TurnTimeout.Std())
	defer cancel()

	var out turnOutcome
	intent, rerr := o.resolver.Resolve(tctx, req.Utterance)
	if rerr != nil {
		out = failedOutcome(intent, rerr)
	} else {
		out = o.execute(tctx, req, intent, turnContext)
	}

	// Phase 3: commit the outcome. Finalization must run even when the
	// caller's context is already dead, or the session would be stuck in
	// Processing forever.
	resp := out.response
	resp.SessionID = req.SessionID
	resp.Intent = string(intent.Name)
	resp.Latency = time.Since(start)

	endCtx := context.WithoutCancel(ctx)
	ferr := o.sessions.WithSession(endCtx, req.SessionID, func(s *domain.Session) error {
		if terr := s.Transition(out.event); terr != nil {
			o.logger.Error("outcome transition rejected", "session_id", req.SessionID, "event", string(out.event), "err", terr)
		}
		s.WorkflowID = out.workflowID
		s.AppendHistory(domain.TurnRecord{
			Timestamp: start,
			Utterance: req.Utterance,
			Intent:    string(intent.Name),
			Outcome:   resp.Type,
			Latency:   resp.Latency,
		})
		s.Touch()
		resp.State = s.State
		return nil
	})
	if ferr != nil {
		o.logger.Error("turn finalization failed", "session_id", req.SessionID, "err", ferr)
	}

	o.metrics.Emit("turns_total", 1, map[string]string{
		"intent": string(intent.Name),
		"status": resp.Type,
	})
	o.metrics.Emit("turn_duration_seconds", resp.Latency.Seconds(), map[string]string{
		"intent": string(intent.Name),
	})

	o.logger.Debug("turn served",
		"session_id", req.SessionID,
		"intent", string(intent.Name),
		"outcome", resp.Type,
		"latency", resp.Latency,
	)

	return resp, out.err
}

// TurnStatus is a point-in-time view of a session and its latest workflow.
type TurnStatus struct {
	SessionID      string
	State          domain.State
	WorkflowID     string
	WorkflowStatus workflow.Status
	Tasks          []domain.TaskReport
}

// Status reports the session state and, when a workflow ran this or the
// previous turn, its per-task progress.
func (o *Orchestrator) Status(ctx context.Context, sessionID string) (TurnStatus, error) {
	snap, err := o.sessions.Snapshot(ctx, sessionID)
	if err != nil {
		return TurnStatus{}, err
	}

	status := TurnStatus{
		SessionID:  sessionID,
		State:      snap.State,
		WorkflowID: snap.WorkflowID,
	}
	if exec := o.execution(sessionID); exec != nil {
		status.WorkflowID = exec.ID
		status.WorkflowStatus = exec.Status()
		status.Tasks = taskReports(exec.Snapshot())
	}
	return status, nil
}

// CancelTurn requests cancellation of the session's in-flight workflow.
// It returns immediately; the turn that owns the workflow observes the
// cancellation and finishes normally.
func (o *Orchestrator) CancelTurn(ctx context.Context, sessionID string) error {
	if _, err := o.sessions.Snapshot(ctx, sessionID); err != nil {
		return err
	}
	if exec := o.execution(sessionID); exec != nil {
		exec.Cancel()
	}
	return nil
}

// Recover moves a session out of Error back to Idle, dropping the workflow
// reference.
func (o *Orchestrator) Recover(ctx context.Context, sessionID string) error {
	err := o.sessions.WithExisting(ctx, sessionID, func(s *domain.Session) error {
		if err := s.Transition(domain.EventRecover); err != nil {
			return err
		}
		s.Touch()
		return nil
	})
	if err != nil {
		return err
	}
	o.dropExecution(sessionID, true)
	return nil
}

// ResetSession destroys the session entirely.
func (o *Orchestrator) ResetSession(ctx context.Context, sessionID string) error {
	o.dropExecution(sessionID, true)
	return o.sessions.Delete(ctx, sessionID)
}

// EvictIdleSessions removes sessions idle beyond the configured timeout,
// releasing their workflow executions along with the session state.
func (o *Orchestrator) EvictIdleSessions() int {
	if o.cfg.SessionIdleTimeout <= 0 {
		return 0
	}
	evicted := o.sessions.EvictIdle(o.cfg.SessionIdleTimeout.Std())
	for _, id := range evicted {
		o.dropExecution(id, true)
	}
	return len(evicted)
}

// Close rejects new turns and cancels every in-flight workflow, waiting for
// each to drain (bounded by the engine's cancel grace).
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	pending := make([]*workflow.Execution, 0, len(o.executions))
	for _, exec := range o.executions {
		pending = append(pending, exec)
	}
	o.mu.Unlock()

	for _, exec := range pending {
		exec.Cancel()
	}
	for _, exec := range pending {
		<-exec.Done()
	}
	return nil
}

func (o *Orchestrator) checkOpen() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return domain.ErrAgentClosed
	}
	return nil
}

// validateRequest rejects malformed input before any session state is
// touched.
func (o *Orchestrator) validateRequest(req domain.TurnRequest) error {
	err := o.validate.Struct(req)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		return &domain.ValidationError{
			Field:  strings.ToLower(fe.Field()),
			Reason: "failed " + fe.Tag() + " check",
		}
	}
	return &domain.ValidationError{Reason: err.Error()}
}

func (o *Orchestrator) trackExecution(sessionID string, exec *workflow.Execution) {
	o.mu.Lock()
	o.executions[sessionID] = exec
	o.mu.Unlock()
}

func (o *Orchestrator) execution(sessionID string) *workflow.Execution {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.executions[sessionID]
}

func (o *Orchestrator) dropExecution(sessionID string, cancel bool) {
	o.mu.Lock()
	exec := o.executions[sessionID]
	delete(o.executions, sessionID)
	o.mu.Unlock()
	if cancel && exec != nil {
		exec.Cancel()
	}
}
