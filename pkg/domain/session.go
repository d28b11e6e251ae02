package domain

import "time"

// DefaultHistoryLimit bounds the conversation history buffer when the
// caller does not configure one.
const DefaultHistoryLimit = 50

// TurnRecord is one completed turn in a session's history.
type TurnRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	Utterance string        `json:"utterance"`
	Intent    string        `json:"intent"`
	Outcome   string        `json:"outcome"`
	Latency   time.Duration `json:"latency"`
}

// Session is the per-conversation unit of ownership. It is never shared by
// reference across goroutines; all mutation happens under the session
// manager's per-session serialization boundary.
type Session struct {
	ID      string
	State   State
	Context map[string]any

	// History is a bounded buffer of prior turns; oldest entries are
	// evicted first.
	History      []TurnRecord
	HistoryLimit int

	// WorkflowID references the at-most-one in-flight workflow execution.
	WorkflowID string

	// LastActive drives idle-timeout eviction.
	LastActive time.Time
}

// NewSession creates a clean session starting at Idle.
func NewSession(id string) *Session {
	return &Session{
		ID:           id,
		State:        StateIdle,
		Context:      make(map[string]any),
		HistoryLimit: DefaultHistoryLimit,
		LastActive:   time.Now(),
	}
}

// Transition applies the event to the session, committing the state change
// and its side effects atomically. On error the session is untouched.
func (s *Session) Transition(event Event) error {
	next, effects, err := Apply(s.State, event)
	if err != nil {
		return err
	}
	s.State = next
	if effects.ClearWorkflow {
		s.WorkflowID = ""
	}
	return nil
}

// AppendHistory records a completed turn, evicting the oldest entry when
// the buffer is full.
func (s *Session) AppendHistory(rec TurnRecord) {
	limit := s.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s.History = append(s.History, rec)
	if len(s.History) > limit {
		s.History = s.History[len(s.History)-limit:]
	}
}

// Touch refreshes the idle-eviction clock.
func (s *Session) Touch() {
	s.LastActive = time.Now()
}

// MergeContext folds new key/values into the session context. Used when a
// turn resumes a WaitingForInput session with fresh input.
func (s *Session) MergeContext(extra map[string]any) {
	for k, v := range extra {
		s.Context[k] = v
	}
}

// Clone returns a deep copy safe to read outside the session lock.
func (s *Session) Clone() Session {
	out := *s
	out.Context = make(map[string]any, len(s.Context))
	for k, v := range s.Context {
		out.Context[k] = v
	}
	out.History = append([]TurnRecord(nil), s.History...)
	return out
}
