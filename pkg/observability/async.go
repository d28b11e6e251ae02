package observability

import (
	"sync"
	"sync/atomic"

	"github.com/arbor-sh/arbor/pkg/ports"
)

// event is one buffered Emit call.
type event struct {
	name  string
	value float64
	tags  map[string]string
}

// AsyncSink decorates another sink with a bounded queue drained by a single
// goroutine. Emit never blocks: when the queue is full the event is counted
// as dropped and discarded. Losing a measurement is acceptable; stalling a
// turn is not.
type AsyncSink struct {
	next    ports.MetricsSink
	events  chan event
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

// NewAsyncSink wraps next with a queue of the given size.
func NewAsyncSink(next ports.MetricsSink, buffer int) *AsyncSink {
	if buffer <= 0 {
		buffer = 1
	}

	s := &AsyncSink{
		next:   next,
		events: make(chan event, buffer),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for ev := range s.events {
			s.next.Emit(ev.name, ev.value, ev.tags)
		}
	}()

	return s
}

// Emit enqueues the event, dropping it when the queue is full or the sink
// is closed.
func (s *AsyncSink) Emit(name string, value float64, tags map[string]string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.events <- event{name: name, value: value, tags: tags}:
	default:
		s.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded.
func (s *AsyncSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close drains the queue and reports the final drop count downstream.
// Emit calls after Close are counted as dropped. Idempotent.
func (s *AsyncSink) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()
		s.wg.Wait()

		if n := s.dropped.Load(); n > 0 {
			s.next.Emit("dropped_metric_events", float64(n), nil)
		}
	})
}
