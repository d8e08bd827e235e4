package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultCredentialExpiringSoonWindow = 5 * time.Minute
	DefaultCredentialRefreshLeadWindow  = 5 * time.Minute
)

// CredentialTokenState captures access/refresh lifecycle state derived from a stored token set.
type CredentialTokenState struct {
	ExpiresAt       *time.Time
	HasAccessToken  bool
	HasRefreshToken bool
	CanAutoRefresh  bool
	IsExpired       bool
	IsExpiringSoon  bool
}

// EnsureFreshTokensRequest loads OAuth tokens for a user and refreshes them when they are close to expiry.
type EnsureFreshTokensRequest struct {
	Provider           string
	UserRef            UserRef
	RefreshLeadWindow  time.Duration
	ExpiringSoonWindow time.Duration
}

type EnsureFreshTokensResult struct {
	Tokens           TokenSet
	State            CredentialTokenState
	Available        bool
	RefreshAttempted bool
	Refreshed        bool
}

// ResolveCredentialTokenState evaluates expiry and refreshability flags for a token set.
func ResolveCredentialTokenState(now time.Time, expiresAt *time.Time, tokens TokenSet, expiringSoonWindow time.Duration) CredentialTokenState {
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	if expiringSoonWindow <= 0 {
		expiringSoonWindow = DefaultCredentialExpiringSoonWindow
	}

	state := CredentialTokenState{
		HasAccessToken:  strings.TrimSpace(tokens.AccessToken) != "",
		HasRefreshToken: strings.TrimSpace(tokens.RefreshToken) != "",
		CanAutoRefresh:  strings.TrimSpace(tokens.RefreshToken) != "",
	}
	if expiresAt == nil {
		return state
	}
	expires := expiresAt.UTC()
	state.ExpiresAt = &expires
	if !expires.After(now) {
		state.IsExpired = true
		return state
	}
	state.IsExpiringSoon = !expires.After(now.Add(expiringSoonWindow))
	return state
}

// ShouldRefreshCredential returns true when refresh should be attempted before handing tokens out.
func ShouldRefreshCredential(now time.Time, state CredentialTokenState, refreshLeadWindow time.Duration) bool {
	if !state.CanAutoRefresh {
		return false
	}
	if !state.HasAccessToken {
		return true
	}
	if state.ExpiresAt == nil {
		return false
	}
	if refreshLeadWindow <= 0 {
		refreshLeadWindow = DefaultCredentialRefreshLeadWindow
	}
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	return !state.ExpiresAt.UTC().After(now.Add(refreshLeadWindow))
}

// EnsureFreshTokens returns usable tokens for the provider, refreshing first
// when the stored access token expires within the lead window.
func (s *Service) EnsureFreshTokens(ctx context.Context, req EnsureFreshTokensRequest) (EnsureFreshTokensResult, error) {
	if s == nil {
		return EnsureFreshTokensResult{}, fmt.Errorf("core: service is nil")
	}
	providerID := normalizeProviderID(req.Provider)
	if providerID == "" {
		return EnsureFreshTokensResult{}, s.mapError(badInputError("provider is required", "provider"))
	}
	userID, err := s.resolveUser(ctx, req.UserRef)
	if err != nil {
		return EnsureFreshTokensResult{}, err
	}

	credential, tokens, ok, err := s.loadOAuthTokens(ctx, userID, OAuthCredentialType(providerID))
	if err != nil || !ok {
		return EnsureFreshTokensResult{}, err
	}

	now := s.now()
	state := ResolveCredentialTokenState(now, credential.ExpiresAt, tokens, req.ExpiringSoonWindow)
	result := EnsureFreshTokensResult{
		Tokens:    tokens,
		State:     state,
		Available: !state.IsExpired && state.HasAccessToken,
	}
	if !ShouldRefreshCredential(now, state, req.RefreshLeadWindow) {
		if !result.Available {
			result.Tokens = TokenSet{}
		}
		return result, nil
	}

	result.RefreshAttempted = true
	refreshed, err := s.RefreshCredential(ctx, RefreshRequest{
		Provider: providerID,
		UserRef:  CanonicalUserRef(userID),
	})
	if err != nil {
		if !result.Available {
			result.Tokens = TokenSet{}
		}
		return result, err
	}
	result.Tokens = refreshed.Tokens
	result.State = ResolveCredentialTokenState(now, refreshed.Credential.ExpiresAt, refreshed.Tokens, req.ExpiringSoonWindow)
	result.Available = true
	result.Refreshed = true
	return result, nil
}

// loadOAuthTokens reads an active OAuth credential regardless of expiry.
func (s *Service) loadOAuthTokens(ctx context.Context, userID string, credentialType string) (Credential, TokenSet, bool, error) {
	credential, err := s.credentialStore.Get(ctx, userID, credentialType)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return Credential{}, TokenSet{}, false, nil
		}
		return Credential{}, TokenSet{}, false, s.mapError(err)
	}
	if !credential.IsActive {
		return Credential{}, TokenSet{}, false, nil
	}
	value, ok, err := s.openCredential(ctx, credential)
	if err != nil || !ok {
		return Credential{}, TokenSet{}, false, err
	}
	if !value.Structured {
		return Credential{}, TokenSet{}, false, nil
	}
	return credential, TokenSetFromMap(value.Data), true, nil
}
