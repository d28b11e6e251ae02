package workflow

import (
	"fmt"
	"time"
)

// TaskSpec describes one task in a workflow. It is plain immutable data;
// runtime state lives in the engine's taskState, never here.
type TaskSpec struct {
	// ID is unique within the spec.
	ID string

	// Uses names the registered executable unit.
	Uses string

	// Args are passed verbatim to the executable unit.
	Args map[string]any

	// DependsOn lists task IDs that must succeed before this one runs.
	DependsOn []string

	// MaxRetries is the number of re-attempts after the first failure.
	// The task executes at most MaxRetries+1 times.
	MaxRetries int

	// Timeout bounds a single attempt. Zero means the engine default.
	Timeout time.Duration

	// Optional tasks never affect the workflow's overall status.
	Optional bool
}

// Spec is an immutable workflow description. Construct it fully, then
// Submit it; the engine validates the whole graph in one pass before any
// task is created.
type Spec struct {
	Name  string
	Tasks []TaskSpec
}

// validate checks structural integrity and returns a deterministic
// topological order (Kahn's algorithm, submission order among ties).
func (s Spec) validate() ([]string, error) {
	if len(s.Tasks) == 0 {
		return nil, fmt.Errorf("workflow %q: no tasks", s.Name)
	}

	index := make(map[string]int, len(s.Tasks))
	for i, t := range s.Tasks {
		if t.ID == "" {
			return nil, fmt.Errorf("workflow %q: task with empty id", s.Name)
		}
		if t.Uses == "" {
			return nil, fmt.Errorf("workflow %q: task %q has no executable unit", s.Name, t.ID)
		}
		if t.MaxRetries < 0 {
			return nil, fmt.Errorf("workflow %q: task %q has negative retries", s.Name, t.ID)
		}
		if _, dup := index[t.ID]; dup {
			return nil, fmt.Errorf("workflow %q: duplicate task id %q", s.Name, t.ID)
		}
		index[t.ID] = i
	}

	indegree := make(map[string]int, len(s.Tasks))
	dependents := make(map[string][]string, len(s.Tasks))
	for _, t := range s.Tasks {
		indegree[t.ID] += 0
		for _, dep := range t.DependsOn {
			if _, ok := index[dep]; !ok {
				return nil, fmt.Errorf("workflow %q: task %q depends on unknown task %q", s.Name, t.ID, dep)
			}
			if dep == t.ID {
				return nil, &CyclicGraphError{TaskID: t.ID}
			}
			indegree[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	// Kahn's algorithm with a submission-ordered frontier keeps the result
	// deterministic for a fixed spec.
	frontier := make([]string, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		if indegree[t.ID] == 0 {
			frontier = append(frontier, t.ID)
		}
	}

	order := make([]string, 0, len(s.Tasks))
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		order = append(order, id)

		released := make([]string, 0, len(dependents[id]))
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				released = append(released, dep)
			}
		}
		// Re-sort newly released tasks by submission order before they
		// join the frontier.
		for i := range released {
			for j := i + 1; j < len(released); j++ {
				if index[released[j]] < index[released[i]] {
					released[i], released[j] = released[j], released[i]
				}
			}
		}
		frontier = append(frontier, released...)
	}

	if len(order) != len(s.Tasks) {
		for _, t := range s.Tasks {
			if indegree[t.ID] > 0 {
				return nil, &CyclicGraphError{TaskID: t.ID}
			}
		}
		return nil, &CyclicGraphError{TaskID: ""}
	}

	return order, nil
}
