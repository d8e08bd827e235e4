package credvault

import (
	"fmt"

	"github.com/goliatone/go-credvault/core"
	"github.com/goliatone/go-credvault/identity"
	"github.com/goliatone/go-credvault/security"
)

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type UserStore = core.UserStore
type CredentialStore = core.CredentialStore
type OAuthStateStore = core.OAuthStateStore
type ProviderAdapter = core.ProviderAdapter
type Encryptor = core.Encryptor
type UserResolver = core.UserResolver
type UserRef = core.UserRef
type RefreshBackoffScheduler = core.RefreshBackoffScheduler
type RefreshRunOptions = core.RefreshRunOptions
type RefreshRunResult = core.RefreshRunResult

type BeginRequest = core.BeginRequest
type BeginResponse = core.BeginResponse
type CompleteRequest = core.CompleteRequest
type CompleteResult = core.CompleteResult
type PutCredentialRequest = core.PutCredentialRequest
type StoreAPIKeyRequest = core.StoreAPIKeyRequest
type RefreshRequest = core.RefreshRequest
type EnsureFreshTokensRequest = core.EnsureFreshTokensRequest

var (
	WithLogger                  = core.WithLogger
	WithLoggerProvider          = core.WithLoggerProvider
	WithMetricsRecorder         = core.WithMetricsRecorder
	WithErrorFactory            = core.WithErrorFactory
	WithErrorMapper             = core.WithErrorMapper
	WithEncryptor               = core.WithEncryptor
	WithEncryptorFactory        = core.WithEncryptorFactory
	WithPersistenceClient       = core.WithPersistenceClient
	WithRepositoryFactory       = core.WithRepositoryFactory
	WithConfigProvider          = core.WithConfigProvider
	WithOptionsResolver         = core.WithOptionsResolver
	WithRegistry                = core.WithRegistry
	WithUserStore               = core.WithUserStore
	WithCredentialStore         = core.WithCredentialStore
	WithOAuthStateStore         = core.WithOAuthStateStore
	WithUserResolver            = core.WithUserResolver
	WithUserResolverFactory     = core.WithUserResolverFactory
	WithCredentialCodec         = core.WithCredentialCodec
	WithRefreshBackoffScheduler = core.WithRefreshBackoffScheduler
	WithClock                   = core.WithClock
)

var ParseUserRef = core.ParseUserRef

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

// Setup builds a service with the AES-GCM encryptor and the identity resolver
// installed, then registers every provider whose client credentials are
// configured. Options passed by the caller take precedence.
func Setup(cfg Config, opts ...Option) (*Service, error) {
	defaults := []Option{
		core.WithEncryptorFactory(security.NewEncryptorFactory()),
		core.WithUserResolverFactory(identity.Factory()),
	}
	svc, err := core.NewService(cfg, append(defaults, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := RegisterConfiguredProviders(svc.Registry(), svc.Config()); err != nil {
		return nil, err
	}
	return svc, nil
}

// RegisterConfiguredProviders adds the Outlook and Pipedrive adapters for
// providers that carry a client id and secret. Providers already present in
// the registry are left alone.
func RegisterConfiguredProviders(registry core.Registry, cfg Config) error {
	if registry == nil {
		return fmt.Errorf("credvault: registry is required")
	}
	builders := []struct {
		id         string
		configured bool
		build      func() (core.ProviderAdapter, error)
	}{
		{
			id:         "outlook",
			configured: cfg.Providers.Outlook.Configured(),
			build: func() (core.ProviderAdapter, error) {
				return OutlookProviderFromConfig(cfg)
			},
		},
		{
			id:         "pipedrive",
			configured: cfg.Providers.Pipedrive.Configured(),
			build: func() (core.ProviderAdapter, error) {
				return PipedriveProviderFromConfig(cfg)
			},
		},
	}
	for _, builder := range builders {
		if !builder.configured {
			continue
		}
		if _, exists := registry.Get(builder.id); exists {
			continue
		}
		provider, err := builder.build()
		if err != nil {
			return fmt.Errorf("credvault: build %s provider: %w", builder.id, err)
		}
		if err := registry.Register(provider); err != nil {
			return err
		}
	}
	return nil
}
