package providers

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderAlreadyRegistered is returned when two providers share a name
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// Registry is the ordered, immutable set of providers built at startup.
// It is safe for concurrent reads because nothing mutates it after NewRegistry.
type Registry struct {
	order     []string
	providers map[string]Provider
}

// NewRegistry builds a registry preserving argument order
func NewRegistry(list ...Provider) (*Registry, error) {
	r := &Registry{
		order:     make([]string, 0, len(list)),
		providers: make(map[string]Provider, len(list)),
	}

	for _, p := range list {
		if p == nil {
			return nil, errors.New("provider cannot be nil")
		}
		name := p.Name()
		if name == "" {
			return nil, errors.New("provider name cannot be empty")
		}
		if _, exists := r.providers[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrProviderAlreadyRegistered, name)
		}
		r.providers[name] = p
		r.order = append(r.order, name)
	}

	return r, nil
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return p, nil
}

// Names returns provider names in registry order
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Providers returns providers in registry order
func (r *Registry) Providers() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// Len returns the number of registered providers
func (r *Registry) Len() int {
	return len(r.order)
}

// Resolve turns a priority list into providers. Unknown and repeated names
// are ignored. When appendRest is set, registered providers missing from
// the list follow in registry order.
func (r *Registry) Resolve(priority []string, appendRest bool) []Provider {
	seen := make(map[string]bool, len(r.order))
	out := make([]Provider, 0, len(r.order))

	for _, name := range priority {
		p, ok := r.providers[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, p)
	}

	if appendRest {
		for _, name := range r.order {
			if !seen[name] {
				out = append(out, r.providers[name])
			}
		}
	}

	return out
}
