package core

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// EncryptorFactory builds the encryption engine once the final config is known.
type EncryptorFactory func(cfg Config, logger Logger) (Encryptor, error)

// UserResolverFactory builds the identity resolver over the configured user store.
type UserResolverFactory func(users UserStore, logger Logger) UserResolver

type serviceBuilder struct {
	runtimeConfig       Config
	logger              Logger
	loggerProvider      LoggerProvider
	metricsRecorder     MetricsRecorder
	errorFactory        ErrorFactory
	errorMapper         ErrorMapper
	encryptor           Encryptor
	encryptorFactory    EncryptorFactory
	persistenceClient   any
	repositoryFactory   any
	configProvider      ConfigProvider
	optionsResolver     OptionsResolver
	registry            Registry
	userStore           UserStore
	credentialStore     CredentialStore
	oauthStateStore     OAuthStateStore
	userResolver        UserResolver
	userResolverFactory UserResolverFactory
	credentialCodec     CredentialCodec
	refreshScheduler    RefreshBackoffScheduler
	clock               func() time.Time
}

type Option func(*serviceBuilder)

// Observability.

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) { b.logger = logger }
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) { b.loggerProvider = provider }
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) { b.metricsRecorder = recorder }
}

// Errors.

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) { b.errorFactory = factory }
}

// WithErrorMapper replaces the CREDVAULT_* mapping applied to every error the
// service returns.
func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) { b.errorMapper = mapper }
}

// Configuration.

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) { b.configProvider = provider }
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) { b.optionsResolver = resolver }
}

// Encryption. A concrete encryptor wins over a factory.

func WithEncryptor(encryptor Encryptor) Option {
	return func(b *serviceBuilder) { b.encryptor = encryptor }
}

func WithEncryptorFactory(factory EncryptorFactory) Option {
	return func(b *serviceBuilder) { b.encryptorFactory = factory }
}

func WithCredentialCodec(codec CredentialCodec) Option {
	return func(b *serviceBuilder) { b.credentialCodec = codec }
}

// Storage. Stores set explicitly win over the ones built by the repository
// factory.

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) { b.persistenceClient = client }
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) { b.repositoryFactory = factory }
}

func WithUserStore(store UserStore) Option {
	return func(b *serviceBuilder) { b.userStore = store }
}

func WithCredentialStore(store CredentialStore) Option {
	return func(b *serviceBuilder) { b.credentialStore = store }
}

func WithOAuthStateStore(store OAuthStateStore) Option {
	return func(b *serviceBuilder) { b.oauthStateStore = store }
}

// Identity and providers.

func WithUserResolver(resolver UserResolver) Option {
	return func(b *serviceBuilder) { b.userResolver = resolver }
}

func WithUserResolverFactory(factory UserResolverFactory) Option {
	return func(b *serviceBuilder) { b.userResolverFactory = factory }
}

func WithRegistry(registry Registry) Option {
	return func(b *serviceBuilder) { b.registry = registry }
}

func WithRefreshBackoffScheduler(scheduler RefreshBackoffScheduler) Option {
	return func(b *serviceBuilder) { b.refreshScheduler = scheduler }
}

// WithClock overrides the wall clock used for expiry checks and token issuance.
func WithClock(clock func() time.Time) Option {
	return func(b *serviceBuilder) { b.clock = clock }
}

func newServiceBuilder(runtime Config, options []Option) serviceBuilder {
	builder := serviceBuilder{runtimeConfig: runtime}
	for _, opt := range options {
		if opt != nil {
			opt(&builder)
		}
	}
	builder.fillDefaults()
	return builder
}

// fillDefaults backfills every collaborator that no option supplied. Stores,
// the encryptor and the user resolver are resolved later because they depend
// on the final config.
func (b *serviceBuilder) fillDefaults() {
	if b.errorFactory == nil {
		b.errorFactory = goerrors.New
	}
	if b.errorMapper == nil {
		b.errorMapper = defaultErrorMapper
	}
	if b.metricsRecorder == nil {
		b.metricsRecorder = NopMetricsRecorder{}
	}
	if b.configProvider == nil {
		b.configProvider = NewCfgxConfigProvider(nil)
	}
	if b.optionsResolver == nil {
		b.optionsResolver = GoOptionsResolver{}
	}
	if b.registry == nil {
		b.registry = NewProviderRegistry()
	}
	if b.credentialCodec == nil {
		b.credentialCodec = JSONCredentialCodec{}
	}
	if b.refreshScheduler == nil {
		b.refreshScheduler = ExponentialBackoffScheduler{
			Initial: defaultRefreshInitialBackoff,
			Max:     defaultRefreshMaxBackoff,
		}
	}
	if b.clock == nil {
		b.clock = func() time.Time { return time.Now().UTC() }
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return serviceErrorMapper(err)
}
