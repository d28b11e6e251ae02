package arbor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arbor-sh/arbor/internal/config"
	"github.com/arbor-sh/arbor/internal/logging"
	"github.com/arbor-sh/arbor/internal/runtime"
	"github.com/arbor-sh/arbor/pkg/adapters/keyword"
	"github.com/arbor-sh/arbor/pkg/adapters/memory"
	"github.com/arbor-sh/arbor/pkg/domain"
	"github.com/arbor-sh/arbor/pkg/ports"
)

// Agent is the high-level entry point. It wraps the internal runtime and
// provides a simplified API for consumers. Safe for concurrent use.
type Agent struct {
	orch    *runtime.Orchestrator
	cfg     config.Config
	initErr error
	logger  *slog.Logger

	store    ports.DataStore
	resolver ports.IntentResolver
	metrics  ports.MetricsSink
	catalog  []domain.Record

	sweepStop chan struct{}
	sweepDone chan struct{}
	closeOnce sync.Once
}

// New initializes an Agent. With no options it runs fully in-process: an
// empty in-memory store, the keyword resolver, no metrics.
func New(opts ...Option) (*Agent, error) {
	a := &Agent{
		cfg:     config.Default(),
		logger:  logging.NewNop(),
		metrics: ports.NopSink{},
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.initErr != nil {
		return nil, a.initErr
	}

	if a.store == nil {
		store := memory.NewStore()
		store.Seed(a.catalog)
		a.store = store
	}
	if a.resolver == nil {
		a.resolver = keyword.NewResolver()
	}

	orch, err := runtime.New(a.cfg, a.store, a.resolver,
		runtime.WithLogger(a.logger),
		runtime.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, err
	}
	a.orch = orch

	if a.cfg.SessionIdleTimeout > 0 {
		a.sweepStop = make(chan struct{})
		a.sweepDone = make(chan struct{})
		go a.sweep(a.cfg.SessionIdleTimeout.Std())
	}

	return a, nil
}

// sweep evicts idle sessions periodically until Close.
func (a *Agent) sweep(idle time.Duration) {
	defer close(a.sweepDone)

	interval := idle / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.orch.EvictIdleSessions()
		case <-a.sweepStop:
			return
		}
	}
}

// SubmitTurn serves one conversational turn.
func (a *Agent) SubmitTurn(ctx context.Context, req domain.TurnRequest) (domain.TurnResponse, error) {
	return a.orch.SubmitTurn(ctx, req)
}

// TurnStatus is a point-in-time view of a session and its latest workflow.
type TurnStatus struct {
	SessionID      string              `json:"session_id"`
	State          domain.State        `json:"state"`
	WorkflowID     string              `json:"workflow_id,omitempty"`
	WorkflowStatus string              `json:"workflow_status,omitempty"`
	Tasks          []domain.TaskReport `json:"tasks,omitempty"`
}

// TurnStatus reports the session state and per-task workflow progress.
func (a *Agent) TurnStatus(ctx context.Context, sessionID string) (TurnStatus, error) {
	st, err := a.orch.Status(ctx, sessionID)
	if err != nil {
		return TurnStatus{}, err
	}
	return TurnStatus{
		SessionID:      st.SessionID,
		State:          st.State,
		WorkflowID:     st.WorkflowID,
		WorkflowStatus: string(st.WorkflowStatus),
		Tasks:          st.Tasks,
	}, nil
}

// CancelTurn requests cancellation of the session's in-flight workflow.
func (a *Agent) CancelTurn(ctx context.Context, sessionID string) error {
	return a.orch.CancelTurn(ctx, sessionID)
}

// Recover moves a session from Error back to Idle.
func (a *Agent) Recover(ctx context.Context, sessionID string) error {
	return a.orch.Recover(ctx, sessionID)
}

// ResetSession destroys the session and its history.
func (a *Agent) ResetSession(ctx context.Context, sessionID string) error {
	return a.orch.ResetSession(ctx, sessionID)
}

// Close rejects new turns and drains in-flight work. Idempotent.
func (a *Agent) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.sweepStop != nil {
			close(a.sweepStop)
			<-a.sweepDone
		}
		err = a.orch.Close()
	})
	return err
}
