package core

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

func minimalOptions() []Option {
	return []Option{
		WithEncryptor(testEncryptor{}),
		WithUserResolverFactory(func(store UserStore, _ Logger) UserResolver {
			return testUserResolver{users: store}
		}),
	}
}

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := NewService(Config{}, minimalOptions()...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deps := svc.Dependencies()
	if deps.Logger == nil {
		t.Fatalf("expected default logger")
	}
	if deps.LoggerProvider == nil {
		t.Fatalf("expected default logger provider")
	}
	if deps.ErrorFactory == nil || deps.ErrorMapper == nil {
		t.Fatalf("expected default error factory and mapper")
	}
	if deps.ConfigProvider == nil || deps.OptionsResolver == nil {
		t.Fatalf("expected default config provider and options resolver")
	}
	if _, ok := deps.UserStore.(*MemoryUserStore); !ok {
		t.Fatalf("expected memory user store by default, got %T", deps.UserStore)
	}
	if _, ok := deps.CredentialStore.(*MemoryCredentialStore); !ok {
		t.Fatalf("expected memory credential store by default, got %T", deps.CredentialStore)
	}
	if _, ok := deps.OAuthStateStore.(*MemoryOAuthStateStore); !ok {
		t.Fatalf("expected memory oauth state store by default, got %T", deps.OAuthStateStore)
	}
	cfg := svc.Config()
	if cfg.ServiceName != "credvault" {
		t.Fatalf("expected default service_name=credvault, got %q", cfg.ServiceName)
	}
	if cfg.OAuth.StateTTL != DefaultOAuthStateTTL {
		t.Fatalf("expected default state ttl, got %v", cfg.OAuth.StateTTL)
	}
}

func TestNewService_RequiresEncryptorAndResolver(t *testing.T) {
	if _, err := NewService(Config{}); err == nil {
		t.Fatalf("expected missing encryptor error")
	}
	if _, err := NewService(Config{}, WithEncryptor(testEncryptor{})); err == nil {
		t.Fatalf("expected missing resolver error")
	}
}

func TestNewService_EncryptorFactoryReceivesResolvedConfig(t *testing.T) {
	var seen Config
	_, err := NewService(Config{Encryption: EncryptionConfig{Key: "runtime-key"}},
		WithEncryptorFactory(func(cfg Config, _ Logger) (Encryptor, error) {
			seen = cfg
			return testEncryptor{}, nil
		}),
		WithUserResolver(testUserResolver{users: NewMemoryUserStore()}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if seen.Encryption.Key != "runtime-key" || seen.Encryption.KeyID != "app-key" {
		t.Fatalf("expected merged encryption config, got %#v", seen.Encryption)
	}

	failing := errors.New("no key")
	_, err = NewService(Config{},
		WithEncryptorFactory(func(Config, Logger) (Encryptor, error) { return nil, failing }),
		WithUserResolver(testUserResolver{users: NewMemoryUserStore()}),
	)
	if err == nil {
		t.Fatalf("expected encryptor factory error to fail construction")
	}
}

func TestNewService_WithXOverrides(t *testing.T) {
	customLogger := stubLogger{}
	customProvider := stubLoggerProvider{logger: customLogger}
	customFactory := func(message string, category ...goerrors.Category) *goerrors.Error {
		return goerrors.New("custom:"+message, category...)
	}
	sentinel := errors.New("sentinel")
	customMapper := func(error) *goerrors.Error {
		return goerrors.Wrap(sentinel, goerrors.CategoryOperation, "mapped")
	}
	persistenceClient := &struct{ Name string }{Name: "persistence"}
	repositoryFactory := &struct{ Name string }{Name: "repo"}
	configProvider := &fixedConfigProvider{cfg: Config{ServiceName: "from-provider"}}
	optionsResolver := &fixedOptionsResolver{cfg: Config{ServiceName: "resolved"}}

	svc, err := NewService(Config{ServiceName: "runtime"},
		append(minimalOptions(),
			WithLogger(customLogger),
			WithLoggerProvider(customProvider),
			WithErrorFactory(customFactory),
			WithErrorMapper(customMapper),
			WithPersistenceClient(persistenceClient),
			WithRepositoryFactory(repositoryFactory),
			WithConfigProvider(configProvider),
			WithOptionsResolver(optionsResolver),
		)...,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := svc.Dependencies()
	if deps.Logger != customLogger {
		t.Fatalf("expected custom logger override")
	}
	if resolved := deps.LoggerProvider.GetLogger("credvault.override"); resolved != customLogger {
		t.Fatalf("expected logger provider to resolve custom logger")
	}
	if deps.PersistenceClient != persistenceClient {
		t.Fatalf("expected custom persistence client override")
	}
	if deps.RepositoryFactory != repositoryFactory {
		t.Fatalf("expected custom repository factory override")
	}
	if deps.ConfigProvider != configProvider {
		t.Fatalf("expected custom config provider override")
	}
	if deps.OptionsResolver != optionsResolver {
		t.Fatalf("expected custom options resolver override")
	}
	if got := svc.Config().ServiceName; got != "resolved" {
		t.Fatalf("expected options resolver output config, got %q", got)
	}
	var rich *goerrors.Error
	if mapped := svc.mapError(errors.New("boom")); !goerrors.As(mapped, &rich) || rich.Category != goerrors.CategoryOperation {
		t.Fatalf("expected custom mapper to be used, got %v", mapped)
	}
}

func TestNewService_ConfigLayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name": "from-config",
		"oauth": map[string]any{
			"base_url":  "https://vault.example",
			"state_ttl": 2 * time.Minute,
		},
		"providers": map[string]any{
			"outlook": map[string]any{"client_id": "cfg-client", "client_secret": "cfg-secret"},
		},
	}})

	svc, err := NewService(Config{ServiceName: "from-runtime"}, append(minimalOptions(), WithConfigProvider(provider))...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cfg := svc.Config()
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime value to override config/default, got %q", cfg.ServiceName)
	}
	if cfg.OAuth.BaseURL != "https://vault.example" || cfg.OAuth.StateTTL != 2*time.Minute {
		t.Fatalf("expected config layer oauth values, got %#v", cfg.OAuth)
	}
	if !cfg.Providers.Outlook.Configured() || cfg.Providers.Pipedrive.Configured() {
		t.Fatalf("expected only outlook to be configured, got %#v", cfg.Providers)
	}
	if got := cfg.RedirectURI("outlook"); got != "https://vault.example/api/auth/outlook/callback" {
		t.Fatalf("unexpected redirect uri %q", got)
	}
	if svc.StateRegistry().TTL() != 2*time.Minute {
		t.Fatalf("expected state registry to use configured ttl")
	}
}

func TestConfigValidate_ProductionRequiresKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Environment = EnvironmentProduction
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected production without key to fail validation")
	}
	cfg.Encryption.Key = "k"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected production with key to validate, got %v", err)
	}
}

func TestStaticConfigLoader_ReturnsCopies(t *testing.T) {
	values := map[string]any{"service_name": "vault"}
	loader := StaticConfigLoader(values)
	first, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	first["service_name"] = "mutated"
	second, _ := loader.LoadRaw(context.Background())
	if second["service_name"] != "vault" {
		t.Fatalf("expected loader to hand out copies, got %#v", second)
	}

	var empty RawConfigFunc
	if raw, err := empty.LoadRaw(context.Background()); err != nil || len(raw) != 0 {
		t.Fatalf("expected nil func to load an empty map, got %#v %v", raw, err)
	}

	cfg, err := NewCfgxConfigProvider(loader).Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceName != "vault" || cfg.Encryption.KeyID != DefaultConfig().Encryption.KeyID {
		t.Fatalf("expected loaded value over defaults, got %#v", cfg)
	}
}
