package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"
)

type EncryptionConfig struct {
	Key     string `koanf:"key" mapstructure:"key"`
	KeyID   string `koanf:"key_id" mapstructure:"key_id"`
	Version int    `koanf:"version" mapstructure:"version"`
}

type OAuthConfig struct {
	BaseURL  string        `koanf:"base_url" mapstructure:"base_url"`
	StateTTL time.Duration `koanf:"state_ttl" mapstructure:"state_ttl"`
}

type ProviderConfig struct {
	ClientID     string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string `koanf:"client_secret" mapstructure:"client_secret"`
	RedirectURI  string `koanf:"redirect_uri" mapstructure:"redirect_uri"`
}

// Configured reports whether the provider has client credentials.
func (c ProviderConfig) Configured() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

type ProvidersConfig struct {
	Outlook   ProviderConfig `koanf:"outlook" mapstructure:"outlook"`
	Pipedrive ProviderConfig `koanf:"pipedrive" mapstructure:"pipedrive"`
}

type Config struct {
	ServiceName string           `koanf:"service_name" mapstructure:"service_name"`
	Environment string           `koanf:"environment" mapstructure:"environment"`
	Encryption  EncryptionConfig `koanf:"encryption" mapstructure:"encryption"`
	OAuth       OAuthConfig      `koanf:"oauth" mapstructure:"oauth"`
	Providers   ProvidersConfig  `koanf:"providers" mapstructure:"providers"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "credvault",
		Environment: EnvironmentDevelopment,
		Encryption: EncryptionConfig{
			KeyID:   "app-key",
			Version: 1,
		},
		OAuth: OAuthConfig{
			BaseURL:  "http://localhost:8000",
			StateTTL: DefaultOAuthStateTTL,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.OAuth.StateTTL < 0 {
		return fmt.Errorf("core: oauth.state_ttl must not be negative")
	}
	if c.Encryption.Version < 0 {
		return fmt.Errorf("core: encryption.version must not be negative")
	}
	if c.IsProduction() && strings.TrimSpace(c.Encryption.Key) == "" {
		return fmt.Errorf("core: encryption.key is required in production")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), EnvironmentProduction)
}

// RedirectURI returns the configured callback for a provider, falling back to
// {base_url}/api/auth/{provider}/callback.
func (c Config) RedirectURI(providerID string) string {
	providerID = strings.ToLower(strings.TrimSpace(providerID))
	var configured string
	switch providerID {
	case "outlook":
		configured = c.Providers.Outlook.RedirectURI
	case "pipedrive":
		configured = c.Providers.Pipedrive.RedirectURI
	}
	if trimmed := strings.TrimSpace(configured); trimmed != "" {
		return trimmed
	}
	base := strings.TrimRight(strings.TrimSpace(c.OAuth.BaseURL), "/")
	return fmt.Sprintf("%s/api/auth/%s/callback", base, providerID)
}
