// Package bridge is the boundary through which the expression evaluator and
// the validation engine call host-provided native functions. The registry is
// explicitly constructed and passed by reference into the engine, never a
// process-wide singleton, so instances and tests stay isolated. Only names
// registered ahead of time are ever executed; names sourced from
// configuration that were not registered fail with ErrNotRegistered.
package bridge

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNotRegistered is returned when execution is requested for an unknown
// function name.
var ErrNotRegistered = errors.New("formengine/bridge: function not registered")

// Func is a host-provided native function. Implementations receive resolved
// argument values and return a single result. The core imposes no timeout;
// hosts registering unbounded functions should wrap them before registration.
type Func func(args []any) (any, error)

// Registry maps names to native functions. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: map[string]Func{}}
}

// Register binds a name to a function. Blank names and nil functions are
// rejected; re-registering a name replaces the previous binding.
func (r *Registry) Register(name string, fn Func) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errors.New("formengine/bridge: function name is required")
	}
	if fn == nil {
		return fmt.Errorf("formengine/bridge: function %q is nil", trimmed)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[trimmed] = fn
	return nil
}

// Unregister removes a binding; unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.funcs, strings.TrimSpace(name))
}

// Has reports whether a name is registered.
func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[strings.TrimSpace(name)]
	return ok
}

// Names lists registered function names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Execute dispatches to a registered function. A nil registry behaves like an
// empty one, failing with ErrNotRegistered.
func (r *Registry) Execute(name string, args []any) (any, error) {
	trimmed := strings.TrimSpace(name)
	if r == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, trimmed)
	}
	r.mu.RLock()
	fn, ok := r.funcs[trimmed]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, trimmed)
	}
	return fn(args)
}
