package ports

// MetricsSink receives measurement events from the core. Emit is
// fire-and-forget: implementations must never block the calling turn and
// must swallow their own failures.
type MetricsSink interface {
	Emit(name string, value float64, tags map[string]string)
}

// NopSink discards every event. Used as the default sink.
type NopSink struct{}

func (NopSink) Emit(string, float64, map[string]string) {}
