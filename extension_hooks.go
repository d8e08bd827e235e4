package credvault

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/goliatone/go-credvault/core"
)

// ProviderPack is a named set of provider adapters a host contributes on top
// of the built-in Outlook and Pipedrive adapters.
type ProviderPack struct {
	Name      string
	Providers []core.ProviderAdapter
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

// Installation is what Install produced for one service.
type Installation struct {
	Providers []string
	Bundles   map[string]any
}

type ExtensionHooks struct {
	mu sync.RWMutex

	packs   []ProviderPack
	bundles map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{bundles: map[string]CommandQueryBundleFactory{}}
}

func (h *ExtensionHooks) RegisterProviderPack(pack ProviderPack) error {
	if h == nil {
		return fmt.Errorf("credvault: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("credvault: provider pack name is required")
	}
	if len(pack.Providers) == 0 {
		return fmt.Errorf("credvault: provider pack %q has no providers", name)
	}
	for _, provider := range pack.Providers {
		if provider == nil {
			return fmt.Errorf("credvault: provider pack %q contains a nil provider", name)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, existing := range h.packs {
		if existing.Name == name {
			return fmt.Errorf("credvault: provider pack %q already registered", name)
		}
	}
	h.packs = append(h.packs, ProviderPack{Name: name, Providers: slices.Clone(pack.Providers)})
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(name string, factory CommandQueryBundleFactory) error {
	if h == nil {
		return fmt.Errorf("credvault: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("credvault: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("credvault: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("credvault: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ProviderPacks returns packs in registration order.
func (h *ExtensionHooks) ProviderPacks() []ProviderPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ProviderPack, 0, len(h.packs))
	for _, pack := range h.packs {
		out = append(out, ProviderPack{Name: pack.Name, Providers: slices.Clone(pack.Providers)})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ApplyProviderPacks registers every pack provider. A provider id that is
// already registered fails the whole call.
func (h *ExtensionHooks) ApplyProviderPacks(registry core.Registry) ([]string, error) {
	if h == nil {
		return nil, nil
	}
	if registry == nil {
		return nil, fmt.Errorf("credvault: registry is required")
	}
	var ids []string
	for _, pack := range h.ProviderPacks() {
		for _, provider := range pack.Providers {
			if err := registry.Register(provider); err != nil {
				return ids, fmt.Errorf("credvault: provider pack %q: %w", pack.Name, err)
			}
			ids = append(ids, provider.ID())
		}
	}
	return ids, nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(service CommandQueryService) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("credvault: command/query service is required")
	}

	h.mu.RLock()
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(factories))
	for _, name := range h.BundleNames() {
		factory, ok := factories[name]
		if !ok {
			continue
		}
		bundle, err := factory(service)
		if err != nil {
			return nil, fmt.Errorf("credvault: build bundle %q: %w", name, err)
		}
		result[name] = bundle
	}
	return result, nil
}

// Install applies provider packs to the service registry and builds every
// bundle against the service.
func (h *ExtensionHooks) Install(svc *Service) (Installation, error) {
	if svc == nil {
		return Installation{}, fmt.Errorf("credvault: service is required")
	}
	ids, err := h.ApplyProviderPacks(svc.Registry())
	if err != nil {
		return Installation{}, err
	}
	bundles, err := h.BuildCommandQueryBundles(svc)
	if err != nil {
		return Installation{}, err
	}
	return Installation{Providers: ids, Bundles: bundles}, nil
}
