package provider

import (
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/apperr"
)

// Registry holds all configured identity providers and allows
// lookup by provider name. It performs no auth logic itself.
type Registry struct {
	providers map[string]IdentityProvider
}

// NewRegistry registers the given providers by name.
// Provider names must be unique.
func NewRegistry(list ...IdentityProvider) *Registry {
	m := make(map[string]IdentityProvider, len(list))
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider by name or a NotFound error if not registered.
func (r *Registry) Get(name string) (IdentityProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, apperr.NotFound("unknown identity provider: " + name).WithCode("unknown_provider")
	}
	return p, nil
}
