package security

import (
	"bytes"
	"strings"
	"testing"
)

func TestAppKeySecretProvider_SealOpenRoundTrip(t *testing.T) {
	provider, err := NewAppKeySecretProviderFromString("super-secret-test-key", WithKeyID("credvault-v1"), WithVersion(3))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	plaintext := []byte("token-value-123")
	sealed, err := provider.Seal(plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if strings.Contains(sealed, string(plaintext)) {
		t.Fatalf("expected sealed token to hide plaintext")
	}
	if !strings.HasPrefix(sealed, envelopePrefix) {
		t.Fatalf("expected envelope prefix")
	}

	metadata, err := ParseEnvelopeMetadata(sealed)
	if err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	if metadata.KeyID != "credvault-v1" || metadata.Version != 3 || metadata.Algorithm != envelopeAlgorithm {
		t.Fatalf("unexpected envelope metadata: %#v", metadata)
	}

	opened, err := provider.DecryptWithMetadataCheck(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("expected roundtrip plaintext; got %q", string(opened))
	}
}

func TestAppKeySecretProvider_RejectsMetadataMismatch(t *testing.T) {
	issuer, err := NewAppKeySecretProviderFromString("super-secret-test-key", WithKeyID("credvault-v1"), WithVersion(1))
	if err != nil {
		t.Fatalf("new issuer provider: %v", err)
	}
	receiver, err := NewAppKeySecretProviderFromString("super-secret-test-key", WithKeyID("credvault-v2"), WithVersion(2))
	if err != nil {
		t.Fatalf("new receiver provider: %v", err)
	}

	sealed, err := issuer.Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := receiver.DecryptWithMetadataCheck(sealed); err == nil {
		t.Fatalf("expected metadata mismatch error")
	}
	if _, err := receiver.Open(sealed); err != nil {
		t.Fatalf("expected same key material to open without metadata check: %v", err)
	}
}

func TestAppKeySecretProvider_RequiresKeyMaterial(t *testing.T) {
	if _, err := NewAppKeySecretProvider([]byte("   ")); err == nil {
		t.Fatalf("expected empty key material to fail")
	}
}

func TestNormalizeKey(t *testing.T) {
	exact := []byte("0123456789abcdef0123456789abcdef")
	if got := normalizeKey(exact); !bytes.Equal(got, exact) {
		t.Fatalf("expected 32 byte key to be kept")
	}
	derived := normalizeKey([]byte("short"))
	if len(derived) != 32 {
		t.Fatalf("expected derived key of 32 bytes, got %d", len(derived))
	}
}
