package core

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

// RawConfigFunc adapts a function to RawConfigLoader.
type RawConfigFunc func(ctx context.Context) (map[string]any, error)

func (f RawConfigFunc) LoadRaw(ctx context.Context) (map[string]any, error) {
	if f == nil {
		return map[string]any{}, nil
	}
	return f(ctx)
}

// StaticConfigLoader serves a copy of a fixed raw config map.
func StaticConfigLoader(values map[string]any) RawConfigLoader {
	return RawConfigFunc(func(context.Context) (map[string]any, error) {
		if values == nil {
			return map[string]any{}, nil
		}
		return maps.Clone(values), nil
	})
}

// CfgxConfigProvider decodes a raw map over the defaults and validates the
// result.
type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil || p.Loader == nil {
		return buildConfig(map[string]any{}, defaults)
	}
	raw, err := p.Loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	return buildConfig(raw, defaults)
}

func buildConfig(raw map[string]any, defaults Config) (Config, error) {
	return cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
}

// Scope names of the GoOptionsResolver layers, lowest priority first.
const (
	layerDefaults = "defaults"
	layerConfig   = "config"
	layerRuntime  = "runtime"
)

// GoOptionsResolver merges defaults < loaded config < runtime overrides with a
// go-options stack. Only the defaults layer contributes zero values, so an
// unset runtime field never clears a loaded one.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(opts.NewScope(layerDefaults, 0), configLayer(defaults, true),
			opts.WithSnapshotID[map[string]any](layerDefaults)),
		opts.NewLayer(opts.NewScope(layerConfig, 10), configLayer(loaded, false),
			opts.WithSnapshotID[map[string]any](layerConfig)),
		opts.NewLayer(opts.NewScope(layerRuntime, 20), configLayer(runtime, false),
			opts.WithSnapshotID[map[string]any](layerRuntime)),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	return buildConfig(merged.Value, defaults)
}

// configLayer flattens cfg into the nested map shape cfgx decodes.
func configLayer(cfg Config, withZero bool) map[string]any {
	layer := map[string]any{}
	set := func(target map[string]any, key string, value any, zero bool) {
		if withZero || !zero {
			target[key] = value
		}
	}
	text := func(target map[string]any, key string, value string) {
		set(target, key, value, strings.TrimSpace(value) == "")
	}
	nest := func(key string, section map[string]any) {
		if len(section) > 0 {
			layer[key] = section
		}
	}

	text(layer, "service_name", cfg.ServiceName)
	text(layer, "environment", cfg.Environment)

	encryption := map[string]any{}
	text(encryption, "key", cfg.Encryption.Key)
	text(encryption, "key_id", cfg.Encryption.KeyID)
	set(encryption, "version", cfg.Encryption.Version, cfg.Encryption.Version == 0)
	nest("encryption", encryption)

	oauth := map[string]any{}
	text(oauth, "base_url", cfg.OAuth.BaseURL)
	set(oauth, "state_ttl", cfg.OAuth.StateTTL, cfg.OAuth.StateTTL == 0)
	nest("oauth", oauth)

	providers := map[string]any{}
	for name, provider := range map[string]ProviderConfig{
		"outlook":   cfg.Providers.Outlook,
		"pipedrive": cfg.Providers.Pipedrive,
	} {
		entry := map[string]any{}
		text(entry, "client_id", provider.ClientID)
		text(entry, "client_secret", provider.ClientSecret)
		text(entry, "redirect_uri", provider.RedirectURI)
		if len(entry) > 0 {
			providers[name] = entry
		}
	}
	nest("providers", providers)
	return layer
}
