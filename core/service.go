package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config                  Config
	logger                  Logger
	loggerProvider          LoggerProvider
	metricsRecorder         MetricsRecorder
	errorFactory            ErrorFactory
	errorMapper             ErrorMapper
	encryptor               Encryptor
	persistenceClient       any
	repositoryFactory       any
	configProvider          ConfigProvider
	optionsResolver         OptionsResolver
	registry                Registry
	userStore               UserStore
	credentialStore         CredentialStore
	oauthStateStore         OAuthStateStore
	stateRegistry           *StateRegistry
	userResolver            UserResolver
	credentialCodec         CredentialCodec
	refreshBackoffScheduler RefreshBackoffScheduler
	now                     func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	Encryptor         Encryptor
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	Registry          Registry
	UserStore         UserStore
	CredentialStore   CredentialStore
	OAuthStateStore   OAuthStateStore
	UserResolver      UserResolver
	CredentialCodec   CredentialCodec
	RefreshScheduler  RefreshBackoffScheduler
}

type BeginRequest struct {
	Provider string
	UserRef  UserRef
	Metadata StateMetadata
}

type BeginResponse struct {
	AuthURL string
	State   string
}

type CompleteRequest struct {
	Provider string
	Code     string
	State    string
}

type CompleteResult struct {
	UserID     string
	Provider   string
	Tokens     TokenSet
	Identity   ProviderIdentity
	Credential CredentialSummary
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := newServiceBuilder(cfg, opts)

	provider, logger := glog.Resolve("credvault", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("credvault"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.repositoryFactory != nil &&
		(builder.userStore == nil || builder.credentialStore == nil || builder.oauthStateStore == nil) {
		var stores StoreProvider
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			built, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			stores = built
		} else if provider, ok := builder.repositoryFactory.(StoreProvider); ok {
			stores = provider
		}
		if stores != nil {
			if builder.userStore == nil {
				builder.userStore = stores.UserStore()
			}
			if builder.credentialStore == nil {
				builder.credentialStore = stores.CredentialStore()
			}
			if builder.oauthStateStore == nil {
				builder.oauthStateStore = stores.OAuthStateStore()
			}
		}
	}
	if builder.userStore == nil {
		builder.userStore = NewMemoryUserStore()
	}
	if builder.credentialStore == nil {
		builder.credentialStore = NewMemoryCredentialStore()
	}
	if builder.oauthStateStore == nil {
		builder.oauthStateStore = NewMemoryOAuthStateStore()
	}

	if builder.encryptor == nil && builder.encryptorFactory != nil {
		encryptor, encErr := builder.encryptorFactory(finalConfig, logger)
		if encErr != nil {
			return nil, mapBuildError(builder.errorMapper, encErr)
		}
		builder.encryptor = encryptor
	}
	if builder.encryptor == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: encryptor is required"))
	}
	if builder.userResolver == nil && builder.userResolverFactory != nil {
		builder.userResolver = builder.userResolverFactory(builder.userStore, logger)
	}
	if builder.userResolver == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: user resolver is required"))
	}

	stateRegistry := NewStateRegistry(builder.oauthStateStore, builder.userResolver, finalConfig.OAuth.StateTTL)
	stateRegistry.now = builder.clock

	return &Service{
		config:                  finalConfig,
		logger:                  logger,
		loggerProvider:          provider,
		metricsRecorder:         builder.metricsRecorder,
		errorFactory:            builder.errorFactory,
		errorMapper:             builder.errorMapper,
		encryptor:               builder.encryptor,
		persistenceClient:       builder.persistenceClient,
		repositoryFactory:       builder.repositoryFactory,
		configProvider:          builder.configProvider,
		optionsResolver:         builder.optionsResolver,
		registry:                builder.registry,
		userStore:               builder.userStore,
		credentialStore:         builder.credentialStore,
		oauthStateStore:         builder.oauthStateStore,
		stateRegistry:           stateRegistry,
		userResolver:            builder.userResolver,
		credentialCodec:         builder.credentialCodec,
		refreshBackoffScheduler: builder.refreshScheduler,
		now:                     builder.clock,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Registry() Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) StateRegistry() *StateRegistry {
	if s == nil {
		return nil
	}
	return s.stateRegistry
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		Encryptor:         s.encryptor,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		Registry:          s.registry,
		UserStore:         s.userStore,
		CredentialStore:   s.credentialStore,
		OAuthStateStore:   s.oauthStateStore,
		UserResolver:      s.userResolver,
		CredentialCodec:   s.credentialCodec,
		RefreshScheduler:  s.refreshBackoffScheduler,
	}
}

// Begin issues a state bound to the user and returns the provider consent URL.
func (s *Service) Begin(ctx context.Context, req BeginRequest) (response BeginResponse, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider": req.Provider,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "begin", err, fields)
	}()

	provider, err := s.resolveProvider(req.Provider)
	if err != nil {
		return BeginResponse{}, err
	}
	providerID := normalizeProviderID(provider.ID())

	metadata := req.Metadata.clone()
	if strings.TrimSpace(metadata.RedirectURI) == "" {
		metadata.RedirectURI = s.config.RedirectURI(providerID)
	}

	state, err := s.stateRegistry.Issue(ctx, req.UserRef, providerID, metadata)
	if err != nil {
		err = s.mapError(err)
		return BeginResponse{}, err
	}
	authURL, err := provider.AuthorizationURL(ctx, AuthorizationRequest{
		State:       state,
		RedirectURI: metadata.RedirectURI,
		Metadata:    metadata,
	})
	if err != nil {
		err = s.mapError(err)
		return BeginResponse{}, err
	}
	return BeginResponse{AuthURL: authURL, State: state}, nil
}

// Complete consumes the state, exchanges the code, fetches the identity and
// persists the tokens. Nothing is written unless every upstream step succeeds.
func (s *Service) Complete(ctx context.Context, req CompleteRequest) (result CompleteResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider": req.Provider,
	}
	defer func() {
		if result.UserID != "" {
			fields["user_id"] = result.UserID
			fields["credential_type"] = result.Credential.CredentialType
		}
		s.observeOperation(ctx, startedAt, "complete", err, fields)
	}()

	provider, err := s.resolveProvider(req.Provider)
	if err != nil {
		return CompleteResult{}, err
	}
	providerID := normalizeProviderID(provider.ID())

	code := strings.TrimSpace(req.Code)
	if code == "" {
		err = s.mapError(badInputError("authorization code is required", "code"))
		return CompleteResult{}, err
	}
	if strings.TrimSpace(req.State) == "" {
		err = s.mapError(badInputError("state is required", "state"))
		return CompleteResult{}, err
	}

	binding, ok, err := s.stateRegistry.Validate(ctx, req.State)
	if err != nil {
		err = s.mapError(err)
		return CompleteResult{}, err
	}
	if !ok {
		err = oauthStateInvalidError()
		return CompleteResult{}, err
	}
	if normalizeProviderID(binding.Provider) != providerID {
		fields["state_provider"] = binding.Provider
		err = oauthStateInvalidError()
		return CompleteResult{}, err
	}

	issuedAt := s.now().UTC()
	tokens, err := provider.ExchangeCode(ctx, code, binding)
	if err != nil {
		err = s.mapError(err)
		return CompleteResult{}, err
	}
	identity, err := provider.UserInfo(ctx, tokens.AccessToken)
	if err != nil {
		err = s.mapError(err)
		return CompleteResult{}, err
	}

	summary, err := PersistTokenSet(ctx, s, binding.UserID, providerID, tokens, identity, issuedAt)
	if err != nil {
		err = s.mapError(err)
		return CompleteResult{}, err
	}

	result = CompleteResult{
		UserID:     binding.UserID,
		Provider:   providerID,
		Tokens:     tokens,
		Identity:   identity,
		Credential: summary,
	}
	return result, nil
}

// Disconnect removes the OAuth credential for the provider. Removing a
// credential that does not exist is not an error.
func (s *Service) Disconnect(ctx context.Context, providerID string, ref UserRef) (removed bool, err error) {
	startedAt := time.Now().UTC()
	credentialType := OAuthCredentialType(providerID)
	fields := map[string]any{
		"provider":        providerID,
		"credential_type": credentialType,
	}
	defer func() {
		fields["removed"] = removed
		s.observeOperation(ctx, startedAt, "disconnect", err, fields)
	}()

	if normalizeProviderID(providerID) == "" {
		err = s.mapError(badInputError("provider is required", "provider"))
		return false, err
	}
	userID, err := s.resolveUser(ctx, ref)
	if err != nil {
		return false, err
	}
	removed, err = s.credentialStore.Delete(ctx, userID, credentialType)
	if err != nil {
		err = s.mapError(err)
		return false, err
	}
	return removed, nil
}

var serviceCredentialTypes = map[string]string{
	"outlook":   OAuthCredentialType("outlook"),
	"pipedrive": OAuthCredentialType("pipedrive"),
	"openai":    APIKeyCredentialType("openai"),
	"anthropic": APIKeyCredentialType("anthropic"),
}

// ServiceStatus reports which of the known services the user is connected to.
// An active credential counts while it is unexpired, and an expired OAuth
// credential still counts when its token set carries a refresh token.
func (s *Service) ServiceStatus(ctx context.Context, ref UserRef) (map[string]bool, error) {
	userID, err := s.resolveUser(ctx, ref)
	if err != nil {
		return nil, err
	}
	credentials, err := s.credentialStore.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.mapError(err)
	}
	now := s.now()
	available := make(map[string]bool, len(credentials))
	for _, credential := range credentials {
		if s.connected(ctx, credential, now) {
			available[credential.CredentialType] = true
		}
	}
	status := make(map[string]bool, len(serviceCredentialTypes))
	for service, credentialType := range serviceCredentialTypes {
		status[service] = available[credentialType]
	}
	return status, nil
}

func (s *Service) connected(ctx context.Context, credential Credential, now time.Time) bool {
	if !credential.IsActive {
		return false
	}
	if !credential.Expired(now) {
		return true
	}
	if !strings.HasSuffix(credential.CredentialType, CredentialTypeOAuthSuffix) {
		return false
	}
	value, ok, err := s.openCredential(ctx, credential)
	if err != nil || !ok || !value.Structured {
		return false
	}
	return strings.TrimSpace(TokenSetFromMap(value.Data).RefreshToken) != ""
}

var apiKeyProviders = map[string]struct{}{
	"openai":    {},
	"anthropic": {},
}

type StoreAPIKeyRequest struct {
	UserRef  UserRef
	Provider string
	APIKey   string
}

func (s *Service) StoreAPIKey(ctx context.Context, req StoreAPIKeyRequest) (summary CredentialSummary, err error) {
	startedAt := time.Now().UTC()
	providerID := normalizeProviderID(req.Provider)
	fields := map[string]any{
		"provider":        providerID,
		"credential_type": APIKeyCredentialType(providerID),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "store_api_key", err, fields)
	}()

	if _, ok := apiKeyProviders[providerID]; !ok {
		err = s.mapError(badInputError(fmt.Sprintf("api keys are not accepted for provider %q", req.Provider), "provider"))
		return CredentialSummary{}, err
	}
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		err = s.mapError(badInputError("api key is required", "api_key"))
		return CredentialSummary{}, err
	}
	userID, err := s.resolveUser(ctx, req.UserRef)
	if err != nil {
		return CredentialSummary{}, err
	}
	summary, err = s.StoreCredential(ctx, userID, APIKeyCredentialType(providerID), apiKey, nil, nil)
	if err != nil {
		err = s.mapError(err)
		return CredentialSummary{}, err
	}
	return summary, nil
}

// GetOAuthTokens returns the stored token set for the provider, or false when
// the user has no usable credential for it.
func (s *Service) GetOAuthTokens(ctx context.Context, providerID string, ref UserRef) (TokenSet, bool, error) {
	if normalizeProviderID(providerID) == "" {
		return TokenSet{}, false, s.mapError(badInputError("provider is required", "provider"))
	}
	value, ok, err := s.GetCredential(ctx, ref, OAuthCredentialType(providerID))
	if err != nil || !ok {
		return TokenSet{}, false, err
	}
	if !value.Structured {
		s.logWarn(ctx, "oauth credential payload is not structured", map[string]any{
			"provider": providerID,
		})
		return TokenSet{}, false, nil
	}
	return TokenSetFromMap(value.Data), true, nil
}

func (s *Service) resolveProvider(providerID string) (ProviderAdapter, error) {
	if s == nil || s.registry == nil {
		return nil, s.mapError(fmt.Errorf("core: registry unavailable"))
	}
	providerID = normalizeProviderID(providerID)
	if providerID == "" {
		return nil, s.mapError(badInputError("provider is required", "provider"))
	}
	provider, ok := s.registry.Get(providerID)
	if ok {
		return provider, nil
	}
	wrapped := s.errorFactory(
		fmt.Sprintf("provider %q is not registered", providerID),
		goerrors.CategoryNotFound,
	).WithTextCode(ServiceErrorProviderNotFound)
	return nil, ensureServiceErrorEnvelope(wrapped.WithMetadata(map[string]any{"provider": providerID}))
}

func (s *Service) resolveUser(ctx context.Context, ref UserRef) (string, error) {
	if s == nil || s.userResolver == nil {
		return "", s.mapError(fmt.Errorf("core: user resolver is not configured"))
	}
	if err := ref.Validate(); err != nil {
		return "", s.mapError(err)
	}
	userID, err := s.userResolver.Resolve(ctx, ref)
	if err != nil {
		return "", s.mapError(err)
	}
	return userID, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
