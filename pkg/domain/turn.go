package domain

import "time"

// TurnRequest is the in-process contract for submitting one conversational
// turn. Validation happens before any session state is touched.
type TurnRequest struct {
	SessionID string         `json:"session_id" validate:"required"`
	Utterance string         `json:"utterance" validate:"required"`
	Context   map[string]any `json:"context,omitempty"`
}

// TaskReport is the per-task slice of a turn response.
type TaskReport struct {
	ID       string        `json:"id"`
	Status   string        `json:"status"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Suggestion pairs a ranked catalog record with its generated pitch line.
type Suggestion struct {
	Record Record  `json:"record"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

// TurnResponse is the single coherent reply produced per turn.
type TurnResponse struct {
	Type        string         `json:"type"`
	SessionID   string         `json:"session_id"`
	Intent      string         `json:"intent"`
	Message     string         `json:"message,omitempty"`
	Results     []Record       `json:"results,omitempty"`
	Suggestions []Suggestion   `json:"suggestions,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
	Tasks       []TaskReport   `json:"tasks,omitempty"`
	State       State          `json:"state"`
	Latency     time.Duration  `json:"latency"`
	Extra       map[string]any `json:"extra,omitempty"`
}
