package observability

import "log/slog"

// LogSink writes each event as a debug log line. Handy in development and
// in the demo command, where a Prometheus endpoint is overkill.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink writing to the given logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit logs the event.
func (s *LogSink) Emit(name string, value float64, tags map[string]string) {
	attrs := make([]any, 0, 2+2*len(tags))
	attrs = append(attrs, "value", value)
	for k, v := range tags {
		attrs = append(attrs, k, v)
	}
	s.logger.Debug("metric "+name, attrs...)
}
