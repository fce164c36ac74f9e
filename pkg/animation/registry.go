package animation

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds named animations in registration order.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Animation
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Animation)}
}

// Register adds an animation under its name.
func (r *Registry) Register(a Animation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := a.Name()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	r.byName[name] = a
	r.order = append(r.order, name)
	return nil
}

// Get returns the named animation.
func (r *Registry) Get(name string) (Animation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[name]
	return a, ok
}

// MustGet returns the named animation or an error wrapping ErrNotFound.
func (r *Registry) MustGet(name string) (Animation, error) {
	a, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return a, nil
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns the animations in registration order.
func (r *Registry) All() []Animation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Animation, len(r.order))
	for i, name := range r.order {
		out[i] = r.byName[name]
	}
	return out
}

// Len returns the number of registered animations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
