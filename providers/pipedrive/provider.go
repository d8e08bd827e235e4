package pipedrive

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goliatone/go-credvault/core"
	"github.com/goliatone/go-credvault/providers"
)

const (
	ProviderID  = "pipedrive"
	AuthURL     = "https://oauth.pipedrive.com/oauth/authorize"
	TokenURL    = "https://oauth.pipedrive.com/oauth/token"
	UserInfoURL = "https://api.pipedrive.com/v1/users/me"
)

type Config struct {
	ClientID            string
	ClientSecret        string
	RedirectURI         string
	AuthURL             string
	TokenURL            string
	UserInfoURL         string
	TokenRequestTimeout time.Duration
	HTTPClient          *http.Client
}

func DefaultConfig() Config {
	return Config{
		AuthURL:     AuthURL,
		TokenURL:    TokenURL,
		UserInfoURL: UserInfoURL,
	}
}

// New builds the Pipedrive adapter. Pipedrive grants the scopes configured on
// the app itself, so no scope parameter is sent.
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
		TokenRequestTimeout: cfg.TokenRequestTimeout,
		HTTPClient:          cfg.HTTPClient,
		UserInfo:            userInfo,
	})
}

func mapIdentity(payload map[string]any) (core.ProviderIdentity, error) {
	data := providers.ReadObject(payload, "data")
	if data == nil {
		return core.ProviderIdentity{}, fmt.Errorf("pipedrive: identity response has no data envelope")
	}
	id := providers.ReadString(data, "id")
	if id == "" {
		return core.ProviderIdentity{}, fmt.Errorf("pipedrive: identity is missing id")
	}
	return core.ProviderIdentity{
		ID:    id,
		Email: providers.ReadString(data, "email"),
		Name:  providers.ReadString(data, "name"),
		Raw: map[string]any{
			"company_id":     providers.ReadString(data, "company_id"),
			"company_domain": providers.ReadString(data, "company_domain"),
		},
	}, nil
}
