package handler

import (
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/morezero/valuestore/pkg/typeinfo"
)

// Registry maps type descriptors to handlers. Registration is expected to
// finish before concurrent lookups begin, but both are safe at any time.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds h to t. Parameterized types are registered under their full
// form (name plus arguments), everything else under the raw name.
func (r *Registry) Register(t typeinfo.TypeInfo, h Handler) error {
	if h == nil {
		return fmt.Errorf("handler for %q must not be nil", t)
	}
	key := t.String()
	if key == "" {
		return fmt.Errorf("cannot register a handler for an unnamed type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[key]; exists {
		return fmt.Errorf("handler for %q is already registered", key)
	}
	r.handlers[key] = h
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(t typeinfo.TypeInfo, h Handler) {
	if err := r.Register(t, h); err != nil {
		panic(err)
	}
}

// Lookup returns the handler for t. A parameterized type without a handler
// of its own falls back to the handler of its raw type.
func (r *Registry) Lookup(t typeinfo.TypeInfo) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.handlers[t.String()]; ok {
		return h, true
	}
	if t.IsParameterized() {
		h, ok := r.handlers[t.Raw().String()]
		return h, ok
	}
	return nil, false
}

// IsRegistered reports whether t has a handler of its own.
func (r *Registry) IsRegistered(t typeinfo.TypeInfo) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[t.String()]
	return ok
}

// Types returns the registered keys, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewRegistry()
	maps.Copy(clone.handlers, r.handlers)
	return clone
}
