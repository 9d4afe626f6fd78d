package blobx

import (
	"fmt"
	"sort"
)

// Registration binds a backend to its provider tag. DefaultBucket is the
// bucket used by provider-scoped calls that do not name one.
type Registration struct {
	Provider      Provider
	Backend       Backend
	DefaultBucket string
}

// Registry maps provider tags to backends. It is immutable once built and
// safe for concurrent use.
type Registry struct {
	backends map[Provider]Registration
	order    []Provider
}

// NewRegistry builds a registry from the given registrations. An empty set
// is rejected so that a misconfigured gateway fails at startup.
func NewRegistry(regs ...Registration) (*Registry, error) {
	if len(regs) == 0 {
		return nil, ErrNoProviders
	}

	r := &Registry{backends: make(map[Provider]Registration, len(regs))}
	for _, reg := range regs {
		if !reg.Provider.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, reg.Provider)
		}
		if reg.Backend == nil {
			return nil, fmt.Errorf("%w: nil backend for provider %s", ErrInvalidConfig, reg.Provider)
		}
		if _, dup := r.backends[reg.Provider]; dup {
			return nil, fmt.Errorf("%w: provider %s registered twice", ErrInvalidConfig, reg.Provider)
		}
		r.backends[reg.Provider] = reg
		r.order = append(r.order, reg.Provider)
	}

	sort.Slice(r.order, func(i, j int) bool {
		return providerRank(r.order[i]) < providerRank(r.order[j])
	})

	return r, nil
}

// Resolve returns the backend registered for p.
func (r *Registry) Resolve(p Provider) (Backend, error) {
	reg, ok := r.backends[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, p)
	}
	return reg.Backend, nil
}

// Has reports whether a backend is registered for p.
func (r *Registry) Has(p Provider) bool {
	_, ok := r.backends[p]
	return ok
}

// Providers returns the registered tags in canonical order.
func (r *Registry) Providers() []Provider {
	out := make([]Provider, len(r.order))
	copy(out, r.order)
	return out
}

// DefaultBucket returns the configured default bucket for p, if any.
func (r *Registry) DefaultBucket(p Provider) (string, bool) {
	reg, ok := r.backends[p]
	if !ok || reg.DefaultBucket == "" {
		return "", false
	}
	return reg.DefaultBucket, true
}
