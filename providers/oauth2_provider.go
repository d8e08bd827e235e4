package providers

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/goliatone/go-credvault/core"
	"golang.org/x/oauth2"
)

const defaultTokenRequestTimeout = 30 * time.Second

type OAuth2Config struct {
	ID           string
	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	// AuthParams are appended to the authorization URL, e.g. response_mode.
	AuthParams          map[string]string
	TokenRequestTimeout time.Duration
	HTTPClient          *http.Client
	UserInfo            *UserInfoClient
}

// OAuth2Provider implements the authorization code flow shared by every
// built-in adapter. Provider packages only supply endpoints and identity mapping.
type OAuth2Provider struct {
	cfg        OAuth2Config
	httpClient *http.Client
}

func NewOAuth2Provider(cfg OAuth2Config) (*OAuth2Provider, error) {
	cfg.ID = strings.TrimSpace(strings.ToLower(cfg.ID))
	if cfg.ID == "" {
		return nil, fmt.Errorf("providers: provider id is required")
	}
	if strings.TrimSpace(cfg.AuthURL) == "" {
		return nil, fmt.Errorf("providers: auth url is required for provider %q", cfg.ID)
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, fmt.Errorf("providers: token url is required for provider %q", cfg.ID)
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("providers: client id is required for provider %q", cfg.ID)
	}
	if cfg.UserInfo == nil {
		return nil, fmt.Errorf("providers: user info client is required for provider %q", cfg.ID)
	}

	cfg.AuthURL = strings.TrimSpace(cfg.AuthURL)
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.RedirectURI = strings.TrimSpace(cfg.RedirectURI)
	cfg.Scopes = normalizeScopes(cfg.Scopes)
	cfg.AuthParams = maps.Clone(cfg.AuthParams)
	if cfg.TokenRequestTimeout <= 0 {
		cfg.TokenRequestTimeout = defaultTokenRequestTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.TokenRequestTimeout}
	}

	return &OAuth2Provider{
		cfg:        cfg,
		httpClient: httpClient,
	}, nil
}

func (p *OAuth2Provider) ID() string {
	if p == nil {
		return ""
	}
	return p.cfg.ID
}

func (p *OAuth2Provider) Scopes() []string {
	if p == nil {
		return []string{}
	}
	return slices.Clone(p.cfg.Scopes)
}

func (p *OAuth2Provider) AuthorizationURL(_ context.Context, req core.AuthorizationRequest) (string, error) {
	if p == nil {
		return "", fmt.Errorf("providers: oauth2 provider is nil")
	}
	state := strings.TrimSpace(req.State)
	if state == "" {
		return "", fmt.Errorf("providers: state is required")
	}
	redirectURI := firstNonEmpty(req.RedirectURI, req.Metadata.RedirectURI, p.cfg.RedirectURI)
	if redirectURI == "" {
		return "", fmt.Errorf("providers: redirect uri is required for provider %q", p.cfg.ID)
	}

	opts := make([]oauth2.AuthCodeOption, 0, len(p.cfg.AuthParams))
	for _, key := range slices.Sorted(maps.Keys(p.cfg.AuthParams)) {
		opts = append(opts, oauth2.SetAuthURLParam(key, p.cfg.AuthParams[key]))
	}
	return p.oauthConfig(redirectURI).AuthCodeURL(state, opts...), nil
}

func (p *OAuth2Provider) ExchangeCode(ctx context.Context, code string, binding core.StateBinding) (core.TokenSet, error) {
	if p == nil {
		return core.TokenSet{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return core.TokenSet{}, fmt.Errorf("providers: auth code is required")
	}
	redirectURI := firstNonEmpty(binding.Metadata.RedirectURI, p.cfg.RedirectURI)

	ctx, cancel := p.requestContext(ctx)
	defer cancel()

	token, err := p.oauthConfig(redirectURI).Exchange(ctx, code)
	if err != nil {
		return core.TokenSet{}, p.upstreamError("token_exchange", err)
	}
	return tokenSetFromOAuth2(token, ""), nil
}

func (p *OAuth2Provider) Refresh(ctx context.Context, refreshToken string) (core.TokenSet, error) {
	if p == nil {
		return core.TokenSet{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return core.TokenSet{}, fmt.Errorf("providers: refresh token is required")
	}

	ctx, cancel := p.requestContext(ctx)
	defer cancel()

	source := p.oauthConfig(p.cfg.RedirectURI).TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return core.TokenSet{}, p.upstreamError("token_refresh", err)
	}
	return tokenSetFromOAuth2(token, refreshToken), nil
}

func (p *OAuth2Provider) UserInfo(ctx context.Context, accessToken string) (core.ProviderIdentity, error) {
	if p == nil {
		return core.ProviderIdentity{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	return p.cfg.UserInfo.Fetch(ctx, accessToken)
}

func (p *OAuth2Provider) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.cfg.AuthURL,
			TokenURL:  p.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: redirectURI,
		Scopes:      slices.Clone(p.cfg.Scopes),
	}
}

func (p *OAuth2Provider) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	return context.WithTimeout(ctx, p.cfg.TokenRequestTimeout)
}

func (p *OAuth2Provider) upstreamError(operation string, err error) error {
	upstream := &core.UpstreamError{
		Provider:  p.cfg.ID,
		Operation: operation,
		Err:       err,
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil {
			upstream.StatusCode = retrieveErr.Response.StatusCode
		}
		upstream.ErrorCode = strings.TrimSpace(retrieveErr.ErrorCode)
		upstream.Message = strings.TrimSpace(retrieveErr.ErrorDescription)
	}
	return upstream
}

// tokenSetFromOAuth2 normalizes the token response. fallbackRefresh is kept
// when the provider does not rotate refresh tokens.
func tokenSetFromOAuth2(token *oauth2.Token, fallbackRefresh string) core.TokenSet {
	expiresIn := token.ExpiresIn
	if expiresIn <= 0 && !token.Expiry.IsZero() {
		expiresIn = int64(time.Until(token.Expiry).Round(time.Second) / time.Second)
	}
	if expiresIn <= 0 {
		expiresIn = core.DefaultTokenExpiresIn
	}
	tokenType := strings.TrimSpace(token.TokenType)
	if tokenType == "" {
		tokenType = core.DefaultTokenType
	}
	refresh := strings.TrimSpace(token.RefreshToken)
	if refresh == "" {
		refresh = fallbackRefresh
	}
	return core.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: refresh,
		ExpiresIn:    expiresIn,
		TokenType:    tokenType,
	}
}

func normalizeScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		trimmed := strings.TrimSpace(scope)
		if trimmed == "" || slices.Contains(out, trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var _ core.ProviderAdapter = (*OAuth2Provider)(nil)
