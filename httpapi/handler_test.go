package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/goliatone/go-credvault/core"
	"github.com/goliatone/go-credvault/identity"
	"github.com/goliatone/go-credvault/security"
)

type stubProvider struct {
	id string
}

func (p stubProvider) ID() string { return p.id }

func (p stubProvider) AuthorizationURL(_ context.Context, req core.AuthorizationRequest) (string, error) {
	values := url.Values{}
	values.Set("state", req.State)
	values.Set("redirect_uri", req.RedirectURI)
	return "https://auth.example/" + p.id + "?" + values.Encode(), nil
}

func (p stubProvider) ExchangeCode(context.Context, string, core.StateBinding) (core.TokenSet, error) {
	return core.TokenSet{AccessToken: "access-" + p.id, RefreshToken: "refresh-" + p.id, ExpiresIn: 3600, TokenType: "Bearer"}, nil
}

func (p stubProvider) Refresh(context.Context, string) (core.TokenSet, error) {
	return core.TokenSet{AccessToken: "access-2", ExpiresIn: 3600, TokenType: "Bearer"}, nil
}

func (p stubProvider) UserInfo(context.Context, string) (core.ProviderIdentity, error) {
	return core.ProviderIdentity{ID: "ext-1", Email: "jane@example.com", Name: "Jane Doe"}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *core.Service) {
	t.Helper()
	registry := core.NewProviderRegistry()
	if err := registry.Register(stubProvider{id: "outlook"}); err != nil {
		t.Fatalf("register provider: %v", err)
	}
	svc, err := core.NewService(core.DefaultConfig(),
		core.WithRegistry(registry),
		core.WithEncryptorFactory(security.NewEncryptorFactory()),
		core.WithUserResolverFactory(identity.Factory()),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := NewHandler(svc)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)
	return server, svc
}

func doJSON(t *testing.T, method string, target string, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, target, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, target, err)
		}
	}
	return resp.StatusCode
}

func TestHandler_UserLifecycle(t *testing.T) {
	server, _ := newTestServer(t)

	var created userResponse
	status := doJSON(t, http.MethodPost, server.URL+"/api/auth/users", `{"email":"Jane@Example.com","name":"Jane"}`, &created)
	if status != http.StatusCreated || created.Email != "jane@example.com" {
		t.Fatalf("unexpected create: %d %#v", status, created)
	}

	var conflict errorResponse
	status = doJSON(t, http.MethodPost, server.URL+"/api/auth/users", `{"email":"jane@example.com"}`, &conflict)
	if status != http.StatusConflict || conflict.Error.Code != core.ServiceErrorUserEmailExists {
		t.Fatalf("expected email conflict, got %d %#v", status, conflict)
	}

	var fetched userResponse
	if status := doJSON(t, http.MethodGet, server.URL+"/api/auth/users/"+created.ID, "", &fetched); status != http.StatusOK || fetched.ID != created.ID {
		t.Fatalf("unexpected get user: %d %#v", status, fetched)
	}
	if status := doJSON(t, http.MethodGet, server.URL+"/api/auth/users/email/jane@example.com", "", &fetched); status != http.StatusOK || fetched.ID != created.ID {
		t.Fatalf("unexpected get by email: %d %#v", status, fetched)
	}

	var profile profileResponse
	status = doJSON(t, http.MethodPut, server.URL+"/api/auth/users/"+created.ID+"/profile", `{"monitoring_enabled":true}`, &profile)
	if status != http.StatusOK || !profile.MonitoringEnabled || profile.AIModelPreference != core.DefaultAIModelPreference {
		t.Fatalf("unexpected profile update: %d %#v", status, profile)
	}

	var limits usageLimitResponse
	if status := doJSON(t, http.MethodGet, server.URL+"/api/auth/users/"+created.ID+"/usage-limits", "", &limits); status != http.StatusOK || limits.UserID != created.ID {
		t.Fatalf("unexpected usage limits: %d %#v", status, limits)
	}
	status = doJSON(t, http.MethodPut, server.URL+"/api/auth/users/"+created.ID+"/usage-limits", `{"daily_email_limit":250,"monthly_spend_limit":80.5}`, &limits)
	if status != http.StatusOK || limits.DailyEmailLimit != 250 || limits.MonthlySpendLimit != 80.5 || limits.MonthlyTokenLimit != 50000 {
		t.Fatalf("unexpected usage limits update: %d %#v", status, limits)
	}
	if status := doJSON(t, http.MethodGet, server.URL+"/api/auth/users/"+created.ID+"/usage-limits", "", &limits); status != http.StatusOK || limits.DailyEmailLimit != 250 {
		t.Fatalf("expected usage limits update to persist: %d %#v", status, limits)
	}
	var badLimits errorResponse
	status = doJSON(t, http.MethodPut, server.URL+"/api/auth/users/"+created.ID+"/usage-limits", `{"daily_spend_limit":-1}`, &badLimits)
	if status != http.StatusBadRequest || badLimits.Error.Code != core.ServiceErrorBadInput {
		t.Fatalf("expected negative limit rejection, got %d %#v", status, badLimits)
	}

	var missing errorResponse
	status = doJSON(t, http.MethodGet, server.URL+"/api/auth/users/6f2c1d7e-0000-4000-8000-000000000000", "", &missing)
	if status != http.StatusNotFound || missing.Error.Code != core.ServiceErrorUserNotFound {
		t.Fatalf("expected user not found, got %d %#v", status, missing)
	}
}

func TestHandler_CredentialsAndAPIKeys(t *testing.T) {
	server, svc := newTestServer(t)
	user, err := svc.CreateUser(context.Background(), core.CreateUserInput{Email: "keys@example.com"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	base := server.URL + "/api/auth/users/" + user.ID

	var summary credentialResponse
	status := doJSON(t, http.MethodPost, base+"/api-keys", `{"provider":"openai","api_key":"sk-secret"}`, &summary)
	if status != http.StatusCreated || summary.CredentialType != "openai_api_key" {
		t.Fatalf("unexpected api key store: %d %#v", status, summary)
	}

	var rejected errorResponse
	status = doJSON(t, http.MethodPost, base+"/api-keys", `{"provider":"cohere","api_key":"k"}`, &rejected)
	if status != http.StatusBadRequest || rejected.Error.Code != core.ServiceErrorBadInput {
		t.Fatalf("expected unsupported provider rejection, got %d %#v", status, rejected)
	}

	status = doJSON(t, http.MethodPost, base+"/credentials", `{"credential_type":"custom","data":{"token":"abc"},"metadata":{"source":"test"}}`, &summary)
	if status != http.StatusCreated || summary.CredentialType != "custom" {
		t.Fatalf("unexpected credential put: %d %#v", status, summary)
	}

	var listed []credentialResponse
	if status := doJSON(t, http.MethodGet, base+"/credentials", "", &listed); status != http.StatusOK || len(listed) != 2 {
		t.Fatalf("unexpected credential list: %d %#v", status, listed)
	}

	var serviceStatus map[string]bool
	if status := doJSON(t, http.MethodGet, base+"/service-status", "", &serviceStatus); status != http.StatusOK {
		t.Fatalf("unexpected status code %d", status)
	}
	if !serviceStatus["openai"] || serviceStatus["outlook"] || len(serviceStatus) != 4 {
		t.Fatalf("unexpected service status: %#v", serviceStatus)
	}

	var deleted messageResponse
	if status := doJSON(t, http.MethodDelete, base+"/credentials/custom", "", &deleted); status != http.StatusOK {
		t.Fatalf("unexpected delete status %d", status)
	}
	var notFound errorResponse
	status = doJSON(t, http.MethodDelete, base+"/credentials/custom", "", &notFound)
	if status != http.StatusNotFound || notFound.Error.Code != core.ServiceErrorCredentialMissing {
		t.Fatalf("expected missing credential, got %d %#v", status, notFound)
	}
}

func TestHandler_OAuthConnectCallbackAndReplay(t *testing.T) {
	server, svc := newTestServer(t)
	user, err := svc.CreateUser(context.Background(), core.CreateUserInput{Email: "oauth@example.com"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	var begin beginResponse
	status := doJSON(t, http.MethodGet, server.URL+"/api/auth/outlook/connect?redirect=false&user_id="+user.ID, "", &begin)
	if status != http.StatusOK || begin.State == "" {
		t.Fatalf("unexpected begin: %d %#v", status, begin)
	}
	authURL, err := url.Parse(begin.AuthURL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	if authURL.Query().Get("redirect_uri") != "http://localhost:8000/api/auth/outlook/callback" {
		t.Fatalf("unexpected redirect uri %q", authURL.Query().Get("redirect_uri"))
	}

	callback := server.URL + "/api/auth/outlook/callback?code=c1&state=" + url.QueryEscape(begin.State)
	var completed map[string]any
	if status := doJSON(t, http.MethodGet, callback, "", &completed); status != http.StatusOK {
		t.Fatalf("unexpected callback status %d: %#v", status, completed)
	}
	if completed["user_id"] != user.ID || completed["email"] != "jane@example.com" {
		t.Fatalf("unexpected callback payload: %#v", completed)
	}
	for _, key := range []string{"access_token", "refresh_token", "tokens"} {
		if _, ok := completed[key]; ok {
			t.Fatalf("callback response leaked %q", key)
		}
	}

	var replay errorResponse
	status = doJSON(t, http.MethodGet, callback, "", &replay)
	if status != http.StatusBadRequest || replay.Error.Code != core.ServiceErrorOAuthStateInvalid {
		t.Fatalf("expected replayed state rejection, got %d %#v", status, replay)
	}
	if replay.Error.Message != core.OAuthStateInvalidMessage {
		t.Fatalf("expected uniform state message, got %q", replay.Error.Message)
	}

	var disconnected disconnectResponse
	if status := doJSON(t, http.MethodDelete, server.URL+"/api/auth/outlook/connection?user_id="+user.ID, "", &disconnected); status != http.StatusOK || !disconnected.Removed {
		t.Fatalf("unexpected disconnect: %d %#v", status, disconnected)
	}
}

func TestHandler_ConnectRedirectsByDefault(t *testing.T) {
	server, svc := newTestServer(t)
	user, err := svc.CreateUser(context.Background(), core.CreateUserInput{Email: "redirect@example.com"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/auth/outlook/connect?user_id="+user.ID, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("connect redirect: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || !strings.HasPrefix(resp.Header.Get("Location"), "https://auth.example/outlook") {
		t.Fatalf("unexpected redirect: %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	var unknown errorResponse
	status := doJSON(t, http.MethodGet, server.URL+"/api/auth/dropbox/connect?user_id="+user.ID, "", &unknown)
	if status != http.StatusNotFound || unknown.Error.Code != core.ServiceErrorProviderNotFound {
		t.Fatalf("expected unknown provider, got %d %#v", status, unknown)
	}

	var badRef errorResponse
	status = doJSON(t, http.MethodGet, server.URL+"/api/auth/outlook/connect?user_id=", "", &badRef)
	if status != http.StatusBadRequest || badRef.Error.Code != core.ServiceErrorBadInput {
		t.Fatalf("expected bad user ref, got %d %#v", status, badRef)
	}

	var denied errorResponse
	status = doJSON(t, http.MethodGet, server.URL+"/api/auth/outlook/callback?error=access_denied", "", &denied)
	if status != http.StatusBadRequest || denied.Error.Code != core.ServiceErrorBadInput || !strings.Contains(denied.Error.Message, "access_denied") {
		t.Fatalf("expected provider denial, got %d %#v", status, denied)
	}

	var badBody errorResponse
	status = doJSON(t, http.MethodPost, server.URL+"/api/auth/users", `{not json`, &badBody)
	if status != http.StatusBadRequest {
		t.Fatalf("expected malformed body rejection, got %d", status)
	}
}

func TestNewHandler_RequiresService(t *testing.T) {
	if _, err := NewHandler(nil); err == nil {
		t.Fatalf("expected nil service to fail")
	}
}
