package host

import (
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/webconsole/internal/console"
)

// Operation is a named action a server can stream.
type Operation struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Run         Action `json:"-"`
}

// Registry maps names to operations. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]Operation
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Operation)}
}

// Register adds op. Names must be unique and non-empty.
func (r *Registry) Register(op Operation) error {
	if op.Name == "" || op.Run == nil {
		return fmt.Errorf("%w: operation needs a name and an action", console.ErrConfiguration)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ops[op.Name]; exists {
		return fmt.Errorf("%w: operation %q already registered", console.ErrConfiguration, op.Name)
	}
	r.ops[op.Name] = op
	return nil
}

// Get looks an operation up by name.
func (r *Registry) Get(name string) (Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	return op, ok
}

// List returns every operation sorted by name.
func (r *Registry) List() []Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Operation, 0, len(r.ops))
	for _, op := range r.ops {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
