package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromSink translates core measurement events into Prometheus collectors.
// Unknown event names are dropped silently: the sink contract forbids
// failing the caller.
type PromSink struct {
	turns         *prometheus.CounterVec
	turnDuration  *prometheus.HistogramVec
	submitted     *prometheus.CounterVec
	completed     *prometheus.CounterVec
	tasks         *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	activeTurns   prometheus.Gauge
	droppedEvents prometheus.Counter
}

// NewPromSink registers the collectors with reg. Pass
// prometheus.DefaultRegisterer for the usual global registry; tests pass
// their own prometheus.NewRegistry to stay isolated.
func NewPromSink(reg prometheus.Registerer) *PromSink {
	factory := promauto.With(reg)

	return &PromSink{
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbor",
			Name:      "turns_total",
			Help:      "Completed turns by intent and outcome",
		}, []string{"intent", "status"}),
		turnDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "arbor",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"intent"}),
		submitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbor",
			Name:      "workflows_submitted_total",
			Help:      "Workflow executions accepted by the engine",
		}, []string{"workflow"}),
		completed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbor",
			Name:      "workflows_completed_total",
			Help:      "Workflow executions by terminal status",
		}, []string{"workflow", "status"}),
		tasks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbor",
			Name:      "tasks_total",
			Help:      "Task terminal transitions by status",
		}, []string{"workflow", "task", "status"}),
		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "arbor",
			Name:      "task_duration_seconds",
			Help:      "Cumulative task execution time across attempts",
			Buckets:   prometheus.DefBuckets,
		}, []string{"workflow", "task"}),
		activeTurns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "arbor",
			Name:      "active_turns",
			Help:      "Turns currently in flight",
		}),
		droppedEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "arbor",
			Name:      "dropped_metric_events_total",
			Help:      "Events dropped by the async sink under backpressure",
		}),
	}
}

func tag(tags map[string]string, key string) string {
	if v, ok := tags[key]; ok {
		return v
	}
	return "unknown"
}

// Emit routes one event to its collector.
func (s *PromSink) Emit(name string, value float64, tags map[string]string) {
	switch name {
	case "turns_total":
		s.turns.WithLabelValues(tag(tags, "intent"), tag(tags, "status")).Add(value)
	case "turn_duration_seconds":
		s.turnDuration.WithLabelValues(tag(tags, "intent")).Observe(value)
	case "workflow_submitted":
		s.submitted.WithLabelValues(tag(tags, "workflow")).Add(value)
	case "workflow_completed":
		s.completed.WithLabelValues(tag(tags, "workflow"), tag(tags, "status")).Add(value)
	case "workflow_task_total":
		s.tasks.WithLabelValues(tag(tags, "workflow"), tag(tags, "task"), tag(tags, "status")).Add(value)
	case "workflow_task_duration_seconds":
		s.taskDuration.WithLabelValues(tag(tags, "workflow"), tag(tags, "task")).Observe(value)
	case "active_turns":
		s.activeTurns.Add(value)
	case "dropped_metric_events":
		s.droppedEvents.Add(value)
	}
}
