package flow

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrUnknownFlow is returned when an advance target does not name a
// registered flow.
var ErrUnknownFlow = errors.New("flow: unknown flow")

// Registry holds named flows in registration order. Building is two-phase:
// Add collects flows, Validate resolves every declared advance target and
// keyword, then seals the registry. Forward references between flows are
// therefore legal during Add and checked exactly once.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	flows    map[string]*Flow
	keywords map[string]string
	sealed   bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		flows:    make(map[string]*Flow),
		keywords: make(map[string]string),
	}
}

// Add registers a flow. Registration order determines entry dispatch
// precedence.
func (r *Registry) Add(f *Flow) error {
	if f == nil || f.Name == "" {
		return fmt.Errorf("flow: invalid flow registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("flow: registry is sealed, cannot add %q", f.Name)
	}
	if _, exists := r.flows[f.Name]; exists {
		return fmt.Errorf("flow: duplicate flow name %q", f.Name)
	}
	r.flows[f.Name] = f
	r.order = append(r.order, f.Name)
	return nil
}

// Validate resolves every step's advance targets and each flow's keywords,
// failing fast on the first unresolved name. On success the registry is
// sealed against further registration.
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		f := r.flows[name]
		for i := range f.Steps {
			for _, target := range f.Steps[i].Targets {
				if _, ok := r.flows[target]; !ok {
					return fmt.Errorf("flow %q step %d: %w %q", name, i, ErrUnknownFlow, target)
				}
			}
		}
		for _, kw := range f.Keywords {
			norm := Normalize(kw)
			if norm == "" {
				return fmt.Errorf("flow %q: empty keyword", name)
			}
			if owner, dup := r.keywords[norm]; dup {
				return fmt.Errorf("flow %q: keyword %q already registered by %q", name, kw, owner)
			}
			r.keywords[norm] = name
		}
	}
	r.sealed = true
	return nil
}

// Lookup returns a flow by name.
func (r *Registry) Lookup(name string) (*Flow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flows[name]
	return f, ok
}

// Match tests the normalized message text against each flow's keyword set in
// registration order and returns the first match.
func (r *Registry) Match(text string) (*Flow, bool) {
	norm := Normalize(text)
	if norm == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		f := r.flows[name]
		for _, kw := range f.Keywords {
			if Normalize(kw) == norm {
				return f, true
			}
		}
	}
	return nil, false
}

// Names returns flow names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Normalize case-folds and trims message text for keyword comparison.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
