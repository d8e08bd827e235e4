package outlook

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goliatone/go-credvault/core"
	"github.com/goliatone/go-credvault/providers"
)

const (
	ProviderID  = "outlook"
	AuthURL     = "https://login.microsoftonline.com/common/oauth2/v2.0/authorize"
	TokenURL    = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
	UserInfoURL = "https://graph.microsoft.com/v1.0/me"
)

type Config struct {
	ClientID            string
	ClientSecret        string
	RedirectURI         string
	AuthURL             string
	TokenURL            string
	UserInfoURL         string
	Scopes              []string
	TokenRequestTimeout time.Duration
	HTTPClient          *http.Client
}

func DefaultConfig() Config {
	return Config{
		AuthURL:     AuthURL,
		TokenURL:    TokenURL,
		UserInfoURL: UserInfoURL,
		Scopes:      []string{"offline_access", "Mail.Read", "Mail.Send", "User.Read"},
	}
}

func New(cfg Config) (*providers.OAuth2Provider, error) {
	defaults := DefaultConfig()
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaults.UserInfoURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}

	var doer providers.HTTPDoer
	if cfg.HTTPClient != nil {
		doer = cfg.HTTPClient
	}
	userInfo, err := providers.NewUserInfoClient(providers.UserInfoConfig{
		Provider:   ProviderID,
		URL:        cfg.UserInfoURL,
		HTTPClient: doer,
		Mapper:     mapIdentity,
	})
	if err != nil {
		return nil, err
	}
	return providers.NewOAuth2Provider(providers.OAuth2Config{
		ID:                  ProviderID,
		AuthURL:             cfg.AuthURL,
		TokenURL:            cfg.TokenURL,
		ClientID:            cfg.ClientID,
		ClientSecret:        cfg.ClientSecret,
		RedirectURI:         cfg.RedirectURI,
		Scopes:              cfg.Scopes,
		AuthParams:          map[string]string{"response_mode": "query"},
		TokenRequestTimeout: cfg.TokenRequestTimeout,
		HTTPClient:          cfg.HTTPClient,
		UserInfo:            userInfo,
	})
}

// mapIdentity reads a Microsoft Graph /me document. Work accounts often
// leave mail empty, so the principal name is the fallback.
func mapIdentity(payload map[string]any) (core.ProviderIdentity, error) {
	id := providers.ReadString(payload, "id")
	if id == "" {
		return core.ProviderIdentity{}, fmt.Errorf("outlook: identity is missing id")
	}
	email := providers.ReadString(payload, "mail")
	if email == "" {
		email = providers.ReadString(payload, "userPrincipalName")
	}
	return core.ProviderIdentity{
		ID:    id,
		Email: email,
		Name:  providers.ReadString(payload, "displayName"),
		Raw: map[string]any{
			"given_name": providers.ReadString(payload, "givenName"),
			"surname":    providers.ReadString(payload, "surname"),
		},
	}, nil
}
