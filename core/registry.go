package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var ErrProviderAlreadyRegistered = errors.New("core: provider already registered")

// ProviderRegistry holds provider adapters keyed by lower-cased id. Ids are
// kept sorted so listings are stable.
type ProviderRegistry struct {
	mu        sync.RWMutex
	ids       []string
	providers map[string]ProviderAdapter
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[string]ProviderAdapter)}
}

func (r *ProviderRegistry) Register(provider ProviderAdapter) error {
	if provider == nil {
		return fmt.Errorf("core: provider is nil")
	}
	id := normalizeProviderID(provider.ID())
	if id == "" {
		return fmt.Errorf("core: provider id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	pos, found := slices.BinarySearch(r.ids, id)
	if found {
		return fmt.Errorf("%w: %s", ErrProviderAlreadyRegistered, id)
	}
	r.ids = slices.Insert(r.ids, pos, id)
	r.providers[id] = provider
	return nil
}

// Unregister drops a provider and reports whether it was present.
func (r *ProviderRegistry) Unregister(providerID string) bool {
	id := normalizeProviderID(providerID)
	r.mu.Lock()
	defer r.mu.Unlock()
	pos, found := slices.BinarySearch(r.ids, id)
	if !found {
		return false
	}
	r.ids = slices.Delete(r.ids, pos, pos+1)
	delete(r.providers, id)
	return true
}

func (r *ProviderRegistry) Get(providerID string) (ProviderAdapter, bool) {
	id := normalizeProviderID(providerID)
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.providers[id]
	return provider, ok
}

func (r *ProviderRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.ids)
}

func (r *ProviderRegistry) List() []ProviderAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ProviderAdapter, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.providers[id])
	}
	return out
}

func normalizeProviderID(providerID string) string {
	return strings.ToLower(strings.TrimSpace(providerID))
}
