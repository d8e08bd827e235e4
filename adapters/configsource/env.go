package configsource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goliatone/go-credvault/core"
)

// vaultEnv lists the environment variables the vault reads. ENCRYPTION_KEY is
// the legacy name for CREDENTIAL_ENCRYPTION_KEY.
type vaultEnv struct {
	Environment         string        `env:"ENVIRONMENT"`
	EncryptionKey       string        `env:"CREDENTIAL_ENCRYPTION_KEY"`
	LegacyEncryptionKey string        `env:"ENCRYPTION_KEY"`
	EncryptionKeyID     string        `env:"ENCRYPTION_KEY_ID"`
	BaseURL             string        `env:"BASE_URL"`
	StateTTL            time.Duration `env:"OAUTH_STATE_TTL"`

	OutlookClientID     string `env:"OUTLOOK_CLIENT_ID"`
	OutlookClientSecret string `env:"OUTLOOK_CLIENT_SECRET"`
	OutlookRedirectURI  string `env:"OUTLOOK_REDIRECT_URI"`

	PipedriveClientID     string `env:"PIPEDRIVE_CLIENT_ID"`
	PipedriveClientSecret string `env:"PIPEDRIVE_CLIENT_SECRET"`
	PipedriveRedirectURI  string `env:"PIPEDRIVE_REDIRECT_URI"`
}

type EnvLoader struct {
	// Environment replaces the process environment when set.
	Environment map[string]string
}

func NewEnvLoader() *EnvLoader {
	return &EnvLoader{}
}

// LoadRaw returns only the keys whose variables are set, so unset variables
// fall through to lower config layers.
func (l *EnvLoader) LoadRaw(context.Context) (map[string]any, error) {
	var raw vaultEnv
	opts := env.Options{}
	if l != nil && l.Environment != nil {
		opts.Environment = l.Environment
	}
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return nil, fmt.Errorf("configsource: parse env: %w", err)
	}

	out := map[string]any{}
	putString(out, raw.Environment, "environment")
	key := raw.EncryptionKey
	if strings.TrimSpace(key) == "" {
		key = raw.LegacyEncryptionKey
	}
	putString(out, key, "encryption", "key")
	putString(out, raw.EncryptionKeyID, "encryption", "key_id")
	putString(out, raw.BaseURL, "oauth", "base_url")
	if raw.StateTTL > 0 {
		putValue(out, raw.StateTTL, "oauth", "state_ttl")
	}
	putString(out, raw.OutlookClientID, "providers", "outlook", "client_id")
	putString(out, raw.OutlookClientSecret, "providers", "outlook", "client_secret")
	putString(out, raw.OutlookRedirectURI, "providers", "outlook", "redirect_uri")
	putString(out, raw.PipedriveClientID, "providers", "pipedrive", "client_id")
	putString(out, raw.PipedriveClientSecret, "providers", "pipedrive", "client_secret")
	putString(out, raw.PipedriveRedirectURI, "providers", "pipedrive", "redirect_uri")
	return out, nil
}

func putString(target map[string]any, value string, path ...string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	putValue(target, value, path...)
}

func putValue(target map[string]any, value any, path ...string) {
	if len(path) == 0 {
		return
	}
	node := target
	for _, key := range path[:len(path)-1] {
		next, ok := node[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[key] = next
		}
		node = next
	}
	node[path[len(path)-1]] = value
}

var _ core.RawConfigLoader = (*EnvLoader)(nil)
