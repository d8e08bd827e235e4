package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-credvault/core"
)

const (
	defaultUserInfoTimeout   = 10 * time.Second
	maxProfileResponseBytes  = 1 << 20 // 1 MiB
	userInfoOperation        = "userinfo"
	defaultUserInfoUserAgent = "go-credvault"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// IdentityMapper converts a decoded identity payload into a ProviderIdentity.
// Numbers arrive as json.Number.
type IdentityMapper func(payload map[string]any) (core.ProviderIdentity, error)

type UserInfoConfig struct {
	Provider   string
	URL        string
	Timeout    time.Duration
	HTTPClient HTTPDoer
	Mapper     IdentityMapper
}

// UserInfoClient fetches the identity of the account behind an access token.
type UserInfoClient struct {
	provider   string
	url        string
	timeout    time.Duration
	httpClient HTTPDoer
	mapper     IdentityMapper
}

func NewUserInfoClient(cfg UserInfoConfig) (*UserInfoClient, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider == "" {
		return nil, fmt.Errorf("providers: user info provider is required")
	}
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		return nil, fmt.Errorf("providers: user info url is required for provider %q", provider)
	}
	if cfg.Mapper == nil {
		return nil, fmt.Errorf("providers: identity mapper is required for provider %q", provider)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultUserInfoTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &UserInfoClient{
		provider:   provider,
		url:        endpoint,
		timeout:    timeout,
		httpClient: httpClient,
		mapper:     cfg.Mapper,
	}, nil
}

func (c *UserInfoClient) Fetch(ctx context.Context, accessToken string) (core.ProviderIdentity, error) {
	if c == nil {
		return core.ProviderIdentity{}, fmt.Errorf("providers: user info client is nil")
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return core.ProviderIdentity{}, fmt.Errorf("providers: access token is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, c.url, nil)
	if err != nil {
		return core.ProviderIdentity{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", defaultUserInfoUserAgent)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return core.ProviderIdentity{}, c.upstreamError(0, "", err)
	}
	defer res.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(res.Body, maxProfileResponseBytes+1))
	if readErr != nil {
		return core.ProviderIdentity{}, c.upstreamError(res.StatusCode, "", fmt.Errorf("read profile response: %w", readErr))
	}
	if int64(len(body)) > maxProfileResponseBytes {
		return core.ProviderIdentity{}, c.upstreamError(res.StatusCode, fmt.Sprintf("profile response exceeds %d bytes", maxProfileResponseBytes), nil)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return core.ProviderIdentity{}, c.upstreamError(res.StatusCode, fmt.Sprintf("identity endpoint returned status %d", res.StatusCode), nil)
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var payload map[string]any
	if err := decoder.Decode(&payload); err != nil || payload == nil {
		return core.ProviderIdentity{}, c.upstreamError(res.StatusCode, "identity response is not a json object", err)
	}
	identity, err := c.mapper(payload)
	if err != nil {
		return core.ProviderIdentity{}, c.upstreamError(res.StatusCode, err.Error(), err)
	}
	if identity.Raw == nil {
		identity.Raw = payload
	}
	return identity, nil
}

func (c *UserInfoClient) upstreamError(status int, message string, err error) error {
	return &core.UpstreamError{
		Provider:   c.provider,
		Operation:  userInfoOperation,
		StatusCode: status,
		Message:    message,
		Err:        err,
	}
}

// ReadString reads a payload field as text, formatting numeric ids.
func ReadString(payload map[string]any, key string) string {
	switch typed := payload[key].(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	case float64:
		return strconv.FormatInt(int64(typed), 10)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	default:
		return ""
	}
}

// ReadObject returns a nested object field or nil.
func ReadObject(payload map[string]any, key string) map[string]any {
	nested, _ := payload[key].(map[string]any)
	return nested
}
