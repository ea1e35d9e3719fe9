package providers

import (
	"fmt"
	"sort"

	"github.com/sellerhub/backend/internal/domain/connection"
)

// StaticRegistry is a fixed set of provider adapters assembled at startup.
// The provider set is closed: adding a platform means adding an adapter and
// registering it here, never conditional logic elsewhere.
type StaticRegistry struct {
	adapters map[connection.ProviderCode]connection.ProviderAdapter
}

// NewStaticRegistry creates a registry from the given adapters.
// Registering two adapters for the same provider code is a wiring bug.
func NewStaticRegistry(adapters ...connection.ProviderAdapter) (*StaticRegistry, error) {
	byCode := make(map[connection.ProviderCode]connection.ProviderAdapter, len(adapters))
	for _, adapter := range adapters {
		code := adapter.Metadata().Code
		if !code.IsValid() {
			return nil, fmt.Errorf("registry: adapter declares unknown provider code %q", code)
		}
		if _, exists := byCode[code]; exists {
			return nil, fmt.Errorf("registry: duplicate adapter for provider %s", code)
		}
		byCode[code] = adapter
	}
	return &StaticRegistry{adapters: byCode}, nil
}

// Get returns the adapter for the given provider code
func (r *StaticRegistry) Get(code connection.ProviderCode) (connection.ProviderAdapter, error) {
	adapter, ok := r.adapters[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", connection.ErrProviderNotRegistered, code)
	}
	return adapter, nil
}

// List returns all registered adapters in stable provider-code order
func (r *StaticRegistry) List() []connection.ProviderAdapter {
	list := make([]connection.ProviderAdapter, 0, len(r.adapters))
	for _, adapter := range r.adapters {
		list = append(list, adapter)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Metadata().Code < list[j].Metadata().Code
	})
	return list
}

// Ensure StaticRegistry implements connection.AdapterRegistry
var _ connection.AdapterRegistry = (*StaticRegistry)(nil)
