package worker

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xraph/jobqueue"
)

// Registry maps worker names to workers and remembers registration order.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]*Worker
	order   []string
}

// NewRegistry creates an empty worker registry.
func NewRegistry() *Registry {
	return &Registry{
		workers: make(map[string]*Worker),
	}
}

// Register adds w. Names must be non-empty and unique.
func (r *Registry) Register(w *Worker) error {
	if w == nil || strings.TrimSpace(w.Name()) == "" {
		return jobqueue.ErrInvalidWorkerName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workers[w.Name()]; exists {
		return fmt.Errorf("%w: %q", jobqueue.ErrDuplicateWorker, w.Name())
	}
	r.workers[w.Name()] = w
	r.order = append(r.order, w.Name())
	return nil
}

// Remove deregisters the named worker and reports whether it was present.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workers[name]; !ok {
		return false
	}
	delete(r.workers, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the named worker.
// Returns false if no worker is registered under name.
func (r *Registry) Get(name string) (*Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[name]
	return w, ok
}

// Names returns all registered worker names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Workers returns all registered workers in registration order.
func (r *Registry) Workers() []*Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Worker, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.workers[n])
	}
	return out
}
