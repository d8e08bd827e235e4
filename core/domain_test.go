package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCredentialAvailability(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Minute)

	cases := []struct {
		name       string
		credential Credential
		available  bool
	}{
		{name: "no expiry", credential: Credential{IsActive: true}, available: true},
		{name: "future expiry", credential: Credential{IsActive: true, ExpiresAt: &future}, available: true},
		{name: "expired", credential: Credential{IsActive: true, ExpiresAt: &past}, available: false},
		{name: "expires exactly now", credential: Credential{IsActive: true, ExpiresAt: &now}, available: false},
		{name: "inactive", credential: Credential{IsActive: false}, available: false},
	}
	for _, tc := range cases {
		if got := tc.credential.Available(now); got != tc.available {
			t.Fatalf("%s: expected available=%v, got %v", tc.name, tc.available, got)
		}
	}
}

func TestCredentialSummaryDropsPayload(t *testing.T) {
	expires := time.Date(2026, 1, 10, 13, 0, 0, 0, time.UTC)
	credential := Credential{
		ID:               "cred-1",
		CredentialType:   "outlook_oauth",
		EncryptedPayload: "ciphertext",
		ExpiresAt:        &expires,
		IsActive:         true,
		Metadata:         map[string]any{"user_info": map[string]any{"email": "a@b.co"}},
	}
	summary := credential.Summary()
	encoded, err := json.Marshal(summary)
	if err != nil {
		t.Fatalf("marshal summary: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if _, ok := decoded["EncryptedPayload"]; ok {
		t.Fatalf("expected summary to omit payload")
	}

	*summary.ExpiresAt = expires.Add(time.Hour)
	summary.Metadata["user_info"] = "mutated"
	if !credential.ExpiresAt.Equal(expires) {
		t.Fatalf("expected summary expiry to be a copy")
	}
	if _, ok := credential.Metadata["user_info"].(map[string]any); !ok {
		t.Fatalf("expected summary metadata to be a copy")
	}
}

func TestTokenSetExpiresAt(t *testing.T) {
	issued := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	expires := TokenSet{ExpiresIn: 3600}.ExpiresAt(issued)
	if expires == nil || !expires.Equal(issued.Add(time.Hour)) {
		t.Fatalf("expected issued+1h, got %v", expires)
	}
	if (TokenSet{}).ExpiresAt(issued) != nil {
		t.Fatalf("expected nil expiry without a lifetime")
	}
}

func TestTokenSetFromMapReadsMixedNumbers(t *testing.T) {
	for _, raw := range []any{3600, int64(3600), float64(3600), json.Number("3600"), "3600"} {
		tokens := TokenSetFromMap(map[string]any{"access_token": "a", "expires_in": raw})
		if tokens.ExpiresIn != 3600 {
			t.Fatalf("expected 3600 for %T, got %d", raw, tokens.ExpiresIn)
		}
	}
	tokens := TokenSetFromMap(map[string]any{"access_token": "a", "expires_in": "soon"})
	if tokens.ExpiresIn != 0 {
		t.Fatalf("expected unparseable lifetime to be ignored, got %d", tokens.ExpiresIn)
	}
}

func TestStateMetadataMapRoundTrip(t *testing.T) {
	in := StateMetadata{
		RedirectURI: "https://app.example.com/cb",
		ReturnTo:    "/settings",
		Extra:       map[string]string{"source": "onboarding"},
	}
	out := StateMetadataFromMap(in.Map())
	if out.RedirectURI != in.RedirectURI || out.ReturnTo != in.ReturnTo || out.Extra["source"] != "onboarding" {
		t.Fatalf("unexpected metadata after round trip: %#v", out)
	}
	if len((StateMetadata{}).Map()) != 0 {
		t.Fatalf("expected empty metadata map")
	}
}

func TestCredentialTypeNames(t *testing.T) {
	if OAuthCredentialType(" Outlook ") != "outlook_oauth" {
		t.Fatalf("unexpected oauth credential type")
	}
	if APIKeyCredentialType("OpenAI") != "openai_api_key" {
		t.Fatalf("unexpected api key credential type")
	}
}
