package adapters

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/privatedrops/internal/payment/domain"
)

// Registry maps a gateway name to the factory that builds its adapter.
type Registry struct {
	factories map[string]domain.AdapterFactory
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	r := &Registry{factories: make(map[string]domain.AdapterFactory, len(factories))}
	for _, f := range factories {
		if f == nil {
			continue
		}
		if name := normalizeProvider(f.Provider()); name != "" {
			r.factories[name] = f
		}
	}
	return r
}

// Open builds the adapter registered for provider.
func (r *Registry) Open(provider string, cfg domain.AdapterConfig) (domain.PaymentAdapter, error) {
	name := normalizeProvider(provider)
	if r == nil || r.factories[name] == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrProviderNotFound, provider)
	}
	adapter, err := r.factories[name].NewAdapter(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s adapter: %w", name, err)
	}
	return adapter, nil
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
