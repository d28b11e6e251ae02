package arbor

import (
	"log/slog"
	"time"

	"github.com/arbor-sh/arbor/internal/config"
	"github.com/arbor-sh/arbor/pkg/domain"
	"github.com/arbor-sh/arbor/pkg/ports"
)

// Option defines a functional option for configuring the Agent.
type Option func(*Agent)

// WithConfigFile loads configuration from a YAML file over the defaults.
// A missing file means defaults; a malformed one fails New. Options are
// applied in order, so place granular setters after this one to override
// file values.
func WithConfigFile(path string) Option {
	return func(a *Agent) {
		cfg, err := config.Load(path)
		if err != nil {
			a.initErr = err
			return
		}
		a.cfg = cfg
	}
}

// WithTurnTimeout sets the global per-turn deadline.
func WithTurnTimeout(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.cfg.TurnTimeout = config.Duration(d)
		}
	}
}

// WithMaxWorkers bounds concurrent tasks per workflow execution.
func WithMaxWorkers(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.cfg.MaxWorkers = n
		}
	}
}

// WithHistoryLimit bounds per-session conversation history.
func WithHistoryLimit(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.cfg.HistoryLimit = n
		}
	}
}

// WithSessionIdleTimeout sets the idle-eviction horizon. Zero disables
// eviction.
func WithSessionIdleTimeout(d time.Duration) Option {
	return func(a *Agent) {
		a.cfg.SessionIdleTimeout = config.Duration(d)
	}
}

// WithStore injects a custom data store, bypassing the default in-memory
// one.
func WithStore(store ports.DataStore) Option {
	return func(a *Agent) {
		a.store = store
	}
}

// WithResolver injects a custom intent resolver.
func WithResolver(resolver ports.IntentResolver) Option {
	return func(a *Agent) {
		a.resolver = resolver
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(sink ports.MetricsSink) Option {
	return func(a *Agent) {
		if sink != nil {
			a.metrics = sink
		}
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithCatalog seeds the default in-memory store. Ignored when WithStore is
// also given; external stores own their own data.
func WithCatalog(records []domain.Record) Option {
	return func(a *Agent) {
		a.catalog = records
	}
}
