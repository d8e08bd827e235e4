package pipedrive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/goliatone/go-credvault/core"
)

func TestNew_AuthorizationURLHasNoScope(t *testing.T) {
	provider, err := New(Config{
		ClientID:    "pd-client",
		RedirectURI: "http://localhost:8000/api/auth/pipedrive/callback",
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	authURL, err := provider.AuthorizationURL(context.Background(), core.AuthorizationRequest{State: "xyz"})
	if err != nil {
		t.Fatalf("authorization url: %v", err)
	}
	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	query := parsed.Query()
	if query.Has("scope") {
		t.Fatalf("expected no scope parameter, got %q", query.Get("scope"))
	}
	if query.Get("client_id") != "pd-client" || query.Get("state") != "xyz" {
		t.Fatalf("unexpected query: %v", query)
	}
}

func TestExchangeAndUserInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("code") != "pd-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "pd-access",
			"refresh_token": "pd-refresh",
			"expires_in":    3599,
			"token_type":    "Bearer",
			"api_domain":    "https://acme.pipedrive.com",
		})
	})
	mux.HandleFunc("/v1/users/me", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":987,"email":"rep@acme.com","name":"Rep","company_id":55,"company_domain":"acme"}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	provider, err := New(Config{
		ClientID:     "pd-client",
		ClientSecret: "pd-secret",
		RedirectURI:  "http://localhost/cb",
		TokenURL:     server.URL + "/oauth/token",
		UserInfoURL:  server.URL + "/v1/users/me",
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	tokens, err := provider.ExchangeCode(context.Background(), "pd-code", core.StateBinding{})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if tokens.AccessToken != "pd-access" || tokens.ExpiresIn != 3599 {
		t.Fatalf("unexpected tokens: %#v", tokens)
	}

	identity, err := provider.UserInfo(context.Background(), tokens.AccessToken)
	if err != nil {
		t.Fatalf("user info: %v", err)
	}
	if identity.ID != "987" || identity.Email != "rep@acme.com" || identity.Name != "Rep" {
		t.Fatalf("unexpected identity: %#v", identity)
	}
	if identity.Raw["company_domain"] != "acme" {
		t.Fatalf("expected company domain in raw: %#v", identity.Raw)
	}

	if _, err := provider.ExchangeCode(context.Background(), "bad-code", core.StateBinding{}); err == nil {
		t.Fatalf("expected rejected code to fail")
	}
}

func TestMapIdentityRequiresEnvelope(t *testing.T) {
	if _, err := mapIdentity(map[string]any{"id": 1}); err == nil {
		t.Fatalf("expected missing data envelope to fail")
	}
}
