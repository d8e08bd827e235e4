package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/go-credvault/core"
)

func TestUserInfoClient_Fetch(t *testing.T) {
	var authorization string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":{"id":12345,"email":"rep@example.com"}}`))
	}))
	defer server.Close()

	client, err := NewUserInfoClient(UserInfoConfig{
		Provider: "crm",
		URL:      server.URL,
		Mapper: func(payload map[string]any) (core.ProviderIdentity, error) {
			data := ReadObject(payload, "data")
			return core.ProviderIdentity{ID: ReadString(data, "id"), Email: ReadString(data, "email")}, nil
		},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	identity, err := client.Fetch(context.Background(), "access-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if authorization != "Bearer access-1" {
		t.Fatalf("expected bearer header, got %q", authorization)
	}
	if identity.ID != "12345" || identity.Email != "rep@example.com" {
		t.Fatalf("unexpected identity: %#v", identity)
	}
	if identity.Raw == nil {
		t.Fatalf("expected raw payload to be kept")
	}
}

func TestUserInfoClient_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"expired"}`))
		},
		"not json": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html></html>`))
		},
		"array": func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode([]string{"a"})
		},
		"oversized": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"pad":"` + strings.Repeat("x", maxProfileResponseBytes) + `"}`))
		},
	}
	for name, handler := range cases {
		server := httptest.NewServer(handler)
		client, err := NewUserInfoClient(UserInfoConfig{
			Provider: "crm",
			URL:      server.URL,
			Mapper: func(payload map[string]any) (core.ProviderIdentity, error) {
				return core.ProviderIdentity{ID: "x"}, nil
			},
		})
		if err != nil {
			server.Close()
			t.Fatalf("%s: new client: %v", name, err)
		}
		_, err = client.Fetch(context.Background(), "access-1")
		server.Close()

		var upstream *core.UpstreamError
		if !errors.As(err, &upstream) {
			t.Fatalf("%s: expected upstream error, got %v", name, err)
		}
		if upstream.Operation != "userinfo" || upstream.Provider != "crm" {
			t.Fatalf("%s: unexpected labels %#v", name, upstream)
		}
		if name == "status" && upstream.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 status, got %d", upstream.StatusCode)
		}
	}
}

func TestUserInfoClient_MapperErrorIsUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()
	client, _ := NewUserInfoClient(UserInfoConfig{
		Provider: "crm",
		URL:      server.URL,
		Mapper: func(map[string]any) (core.ProviderIdentity, error) {
			return core.ProviderIdentity{}, errors.New("identity is missing id")
		},
	})
	_, err := client.Fetch(context.Background(), "access-1")
	if err == nil || !strings.Contains(err.Error(), "identity is missing id") {
		t.Fatalf("expected mapper error, got %v", err)
	}
	if _, err := client.Fetch(context.Background(), ""); err == nil {
		t.Fatalf("expected empty token to fail")
	}
}
