// Package config holds the runtime configuration, loaded from YAML with
// sensible defaults for every field.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML can carry "5s"-style strings.
type Duration time.Duration

// UnmarshalYAML accepts a Go duration string or a plain integer of
// nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("config: invalid duration value")
	}
	*d = Duration(n)
	return nil
}

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full runtime configuration.
type Config struct {
	// MaxWorkers bounds concurrent tasks per workflow execution.
	MaxWorkers int `yaml:"max_workers"`

	// TurnTimeout is the global per-turn budget.
	TurnTimeout Duration `yaml:"turn_timeout"`

	// DefaultTaskTimeout bounds a task attempt when the spec omits one.
	DefaultTaskTimeout Duration `yaml:"default_task_timeout"`

	// DefaultMaxRetries applies to built-in workflow tasks.
	DefaultMaxRetries int `yaml:"default_max_retries"`

	// BackoffBase and BackoffCap shape the retry delay curve.
	BackoffBase Duration `yaml:"backoff_base"`
	BackoffCap  Duration `yaml:"backoff_cap"`

	// CancelGrace bounds the wait for running tasks after cancellation.
	CancelGrace Duration `yaml:"cancel_grace"`

	// HistoryLimit bounds per-session conversation history.
	HistoryLimit int `yaml:"history_limit"`

	// SessionIdleTimeout evicts sessions with no activity. Zero disables
	// eviction.
	SessionIdleTimeout Duration `yaml:"session_idle_timeout"`

	// WeightProfiles maps a priority name to MCDM criteria weights.
	WeightProfiles map[string]map[string]float64 `yaml:"weight_profiles"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		MaxWorkers:         4,
		TurnTimeout:        Duration(30 * time.Second),
		DefaultTaskTimeout: Duration(10 * time.Second),
		DefaultMaxRetries:  2,
		BackoffBase:        Duration(100 * time.Millisecond),
		BackoffCap:         Duration(5 * time.Second),
		CancelGrace:        Duration(5 * time.Second),
		HistoryLimit:       50,
		SessionIdleTimeout: Duration(30 * time.Minute),
		WeightProfiles: map[string]map[string]float64{
			"performance": {"cpu": 0.4, "ram": 0.3, "storage": 0.2, "price": 0.1},
			"budget":      {"cpu": 0.2, "ram": 0.2, "storage": 0.2, "price": 0.4},
			"storage":     {"cpu": 0.2, "ram": 0.2, "storage": 0.4, "price": 0.2},
			"balanced":    {"cpu": 0.25, "ram": 0.25, "storage": 0.25, "price": 0.25},
		},
	}
}

// Load reads a YAML file over the defaults: absent fields keep their
// default values. A missing file is not an error; it means defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.MaxWorkers < 1 {
		return fmt.Errorf("config: max_workers must be positive, got %d", c.MaxWorkers)
	}
	if c.TurnTimeout <= 0 {
		return fmt.Errorf("config: turn_timeout must be positive")
	}
	if c.BackoffBase <= 0 || c.BackoffCap < c.BackoffBase {
		return fmt.Errorf("config: backoff_cap must be >= backoff_base > 0")
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("config: history_limit must be positive")
	}
	return nil
}

// Weights returns the profile for the priority, falling back to balanced.
func (c Config) Weights(priority string) map[string]float64 {
	if w, ok := c.WeightProfiles[priority]; ok {
		return w
	}
	return c.WeightProfiles["balanced"]
}
