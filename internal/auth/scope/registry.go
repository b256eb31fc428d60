// Package scope holds the registry of permission scopes the server may
// grant. The registry is populated during startup wiring and handed to the
// services that need it; reads are safe from any number of request
// goroutines once serving begins.
package scope

import (
	"strings"
	"sync"
)

// Definition describes a single registered scope.
type Definition struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Registry is the authoritative list of grantable scopes. No scope that was
// never registered can ever be granted.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]Definition
	order []string // registration order, for stable output
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register upserts a scope definition. Registering an existing key replaces
// its metadata without changing its position.
func (r *Registry) Register(key, name, description string, required bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[key]; !ok {
		r.order = append(r.order, key)
	}
	r.defs[key] = Definition{Key: key, Name: name, Description: description, Required: required}
}

// Known reports whether key has been registered.
func (r *Registry) Known(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.defs[key]
	return ok
}

// Validate filters a requested scope list down to what may be granted.
// An empty request grants exactly the required set. Otherwise the request
// is intersected with the registered scopes and the required set is always
// force-included, so a client can never opt out of a required scope.
func (r *Registry) Validate(requested []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(requested) == 0 {
		return r.requiredLocked()
	}

	granted := make([]string, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, key := range requested {
		if _, ok := r.defs[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		granted = append(granted, key)
	}

	for _, key := range r.requiredLocked() {
		if _, ok := seen[key]; !ok {
			granted = append(granted, key)
		}
	}

	return granted
}

// ValidateString is Validate over a space-delimited scope string, returning
// the granted set in the same wire format.
func (r *Registry) ValidateString(requested string) string {
	return strings.Join(r.Validate(strings.Fields(requested)), " ")
}

// Describe returns display metadata for the given scopes, e.g. for a
// consent screen. Unregistered keys fall back to the key itself so callers
// always get one entry per input scope.
func (r *Registry) Describe(scopes []string) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Definition, 0, len(scopes))
	for _, key := range scopes {
		if def, ok := r.defs[key]; ok {
			out = append(out, def)
			continue
		}
		out = append(out, Definition{Key: key, Name: key, Description: key})
	}
	return out
}

// Keys returns all registered scope keys in registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, len(r.order))
	copy(keys, r.order)
	return keys
}

// DefaultScopeString returns every registered scope, space-joined. Used as
// the default client scope at registration.
func (r *Registry) DefaultScopeString() string {
	return strings.Join(r.Keys(), " ")
}

func (r *Registry) requiredLocked() []string {
	var required []string
	for _, key := range r.order {
		if r.defs[key].Required {
			required = append(required, key)
		}
	}
	return required
}
