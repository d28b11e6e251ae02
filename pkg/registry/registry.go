package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Input is what an executable unit receives per attempt.
type Input struct {
	// Args are the static arguments from the task spec.
	Args map[string]any

	// Session is a snapshot of the session context taken at workflow
	// submission. Read-only by convention; units get their own copy.
	Session map[string]any

	// Deps holds the results of direct dependencies, keyed by task id.
	Deps map[string]any
}

// TaskFunc is the signature of an executable unit. It returns a result or
// an error; implementations must honor ctx cancellation if they block.
type TaskFunc func(ctx context.Context, in Input) (any, error)

// Registry maps task names to executable units. It is populated during
// startup and sealed before the workflow engine accepts submissions; after
// sealing it is read-only and safe for unsynchronized concurrent reads.
type Registry struct {
	mu     sync.RWMutex
	sealed bool
	tasks  map[string]TaskFunc
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		tasks: make(map[string]TaskFunc),
	}
}

// Register adds a task under the given name. Registering after Seal or
// re-registering an existing name is an error.
func (r *Registry) Register(name string, fn TaskFunc) error {
	if name == "" {
		return fmt.Errorf("registry: empty task name")
	}
	if fn == nil {
		return fmt.Errorf("registry: nil task func for %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("registry: sealed; cannot register %q", name)
	}
	if _, exists := r.tasks[name]; exists {
		return fmt.Errorf("registry: task %q already registered", name)
	}
	r.tasks[name] = fn
	return nil
}

// Seal freezes the registry. Idempotent.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Resolve looks up a task by name.
func (r *Registry) Resolve(name string) (TaskFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.tasks[name]
	return fn, ok
}

// Names returns the registered task names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
