package core

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

type testProvider struct {
	id string

	mu           sync.Mutex
	tokens       TokenSet
	refreshed    TokenSet
	identity     ProviderIdentity
	exchangeErr  error
	userInfoErr  error
	refreshErr   error
	exchanges    int
	refreshes    int
	lastBinding  StateBinding
	lastRefresh  string
	lastAuthReq  AuthorizationRequest
	refreshFails int
}

func newTestProvider(id string) *testProvider {
	return &testProvider{
		id: id,
		tokens: TokenSet{
			AccessToken:  "access-" + id,
			RefreshToken: "refresh-" + id,
			ExpiresIn:    3600,
			TokenType:    DefaultTokenType,
		},
		refreshed: TokenSet{
			AccessToken: "access-" + id + "-2",
			ExpiresIn:   3600,
			TokenType:   DefaultTokenType,
		},
		identity: ProviderIdentity{
			ID:    "ext-" + id,
			Email: "jane@example.com",
			Name:  "Jane Doe",
		},
	}
}

func (p *testProvider) ID() string { return p.id }

func (p *testProvider) AuthorizationURL(_ context.Context, req AuthorizationRequest) (string, error) {
	p.mu.Lock()
	p.lastAuthReq = req
	p.mu.Unlock()
	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", "client-"+p.id)
	values.Set("redirect_uri", req.RedirectURI)
	values.Set("state", req.State)
	return "https://auth.example/" + p.id + "?" + values.Encode(), nil
}

func (p *testProvider) ExchangeCode(_ context.Context, code string, binding StateBinding) (TokenSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchanges++
	p.lastBinding = binding
	if p.exchangeErr != nil {
		return TokenSet{}, p.exchangeErr
	}
	if code == "" {
		return TokenSet{}, fmt.Errorf("test provider: code is required")
	}
	return p.tokens, nil
}

func (p *testProvider) Refresh(_ context.Context, refreshToken string) (TokenSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshes++
	p.lastRefresh = refreshToken
	if p.refreshFails > 0 {
		p.refreshFails--
		return TokenSet{}, &UpstreamError{Provider: p.id, Operation: "refresh", StatusCode: 503, Message: "temporarily unavailable"}
	}
	if p.refreshErr != nil {
		return TokenSet{}, p.refreshErr
	}
	return p.refreshed, nil
}

func (p *testProvider) UserInfo(_ context.Context, accessToken string) (ProviderIdentity, error) {
	if p.userInfoErr != nil {
		return ProviderIdentity{}, p.userInfoErr
	}
	if accessToken == "" {
		return ProviderIdentity{}, fmt.Errorf("test provider: access token is required")
	}
	return p.identity, nil
}

func (p *testProvider) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchanges, p.refreshes
}

type testEncryptor struct{}

func (testEncryptor) Encrypt(_ context.Context, plaintext []byte) (string, error) {
	if len(plaintext) == 0 {
		return "", nil
	}
	return "enc:" + base64.StdEncoding.EncodeToString(plaintext), nil
}

func (testEncryptor) Decrypt(_ context.Context, token string) ([]byte, bool) {
	if token == "" {
		return []byte{}, true
	}
	if !strings.HasPrefix(token, "enc:") {
		return nil, false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(token, "enc:"))
	if err != nil {
		return nil, false
	}
	return decoded, true
}

type testUserResolver struct {
	users UserStore
}

func (r testUserResolver) Resolve(ctx context.Context, ref UserRef) (string, error) {
	switch ref.Kind {
	case UserRefCanonical:
		user, err := r.users.GetByID(ctx, ref.Value)
		if err != nil {
			return "", err
		}
		return user.ID, nil
	case UserRefEmailFallback:
		user, err := r.users.GetByEmail(ctx, ref.Value)
		if err == nil {
			return user.ID, nil
		}
		if !errors.Is(err, ErrUserNotFound) {
			return "", err
		}
		record, profile, limits, err := NewUserRecords(CreateUserInput{Email: ref.Value}, time.Now().UTC())
		if err != nil {
			return "", err
		}
		created, err := r.users.CreateWithDefaults(ctx, record, profile, limits)
		if err != nil {
			return "", err
		}
		return created.ID, nil
	default:
		return "", fmt.Errorf("test resolver: unsupported ref kind %q", ref.Kind)
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now.UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testHarness struct {
	service     *Service
	users       *MemoryUserStore
	credentials *MemoryCredentialStore
	states      *MemoryOAuthStateStore
	clock       *testClock
	providers   map[string]*testProvider
}

func newTestHarness(t *testing.T, opts ...Option) *testHarness {
	t.Helper()
	clock := newTestClock(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
	users := NewMemoryUserStore()
	credentials := NewMemoryCredentialStore()
	credentials.nowFn = clock.Now
	states := NewMemoryOAuthStateStore()

	registry := NewProviderRegistry()
	providers := map[string]*testProvider{}
	for _, id := range []string{"outlook", "pipedrive"} {
		provider := newTestProvider(id)
		if err := registry.Register(provider); err != nil {
			t.Fatalf("register provider %s: %v", id, err)
		}
		providers[id] = provider
	}

	base := []Option{
		WithRegistry(registry),
		WithUserStore(users),
		WithCredentialStore(credentials),
		WithOAuthStateStore(states),
		WithEncryptor(testEncryptor{}),
		WithUserResolverFactory(func(store UserStore, _ Logger) UserResolver {
			return testUserResolver{users: store}
		}),
		WithRefreshBackoffScheduler(ExponentialBackoffScheduler{Initial: time.Nanosecond, Max: time.Nanosecond}),
		WithClock(clock.Now),
	}
	svc, err := NewService(DefaultConfig(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &testHarness{
		service:     svc,
		users:       users,
		credentials: credentials,
		states:      states,
		clock:       clock,
		providers:   providers,
	}
}

func (h *testHarness) createUser(t *testing.T, email string) User {
	t.Helper()
	user, err := h.service.CreateUser(context.Background(), CreateUserInput{Email: email, Name: "Test User"})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

// connect runs a full begin/complete round trip for the user.
func (h *testHarness) connect(t *testing.T, providerID string, userID string) CompleteResult {
	t.Helper()
	ctx := context.Background()
	begin, err := h.service.Begin(ctx, BeginRequest{Provider: providerID, UserRef: CanonicalUserRef(userID)})
	if err != nil {
		t.Fatalf("begin %s: %v", providerID, err)
	}
	result, err := h.service.Complete(ctx, CompleteRequest{Provider: providerID, Code: "code-1", State: begin.State})
	if err != nil {
		t.Fatalf("complete %s: %v", providerID, err)
	}
	return result
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}
