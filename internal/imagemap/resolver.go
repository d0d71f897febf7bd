// Package imagemap maps the resource paths named in an item list to the
// locations where the operator actually uploaded those files.
package imagemap

import (
	"maps"
	"strings"
	"sync"

	"merchbatch/internal/services"
)

// Resolver is a concurrency-safe original→resolved path table.
type Resolver struct {
	mu       sync.RWMutex
	mappings map[string]string
}

// New returns an empty resolver.
func New() *Resolver {
	return &Resolver{mappings: make(map[string]string)}
}

// Submit records or overwrites the mapping for original. Last write wins.
// Keys are matched with surrounding whitespace ignored; resolved is stored
// exactly as given.
func (r *Resolver) Submit(original, resolved string) error {
	original = strings.TrimSpace(original)
	if original == "" || strings.TrimSpace(resolved) == "" {
		return services.Wrap(services.ErrValidation, "imagemap", "submit", "original and resolved paths are required", nil)
	}
	r.mu.Lock()
	r.mappings[original] = resolved
	r.mu.Unlock()
	return nil
}

// Resolve returns the mapped path for original, or original when unmapped.
func (r *Resolver) Resolve(original string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if resolved, ok := r.mappings[strings.TrimSpace(original)]; ok {
		return resolved
	}
	return original
}

// Len reports how many mappings are recorded.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mappings)
}

// Mappings returns a copy of the table.
func (r *Resolver) Mappings() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.mappings)
}
