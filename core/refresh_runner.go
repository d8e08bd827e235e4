package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultRefreshMaxAttempts    = 3
	defaultRefreshInitialBackoff = 500 * time.Millisecond
	defaultRefreshMaxBackoff     = 10 * time.Second
)

type RefreshBackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = defaultRefreshInitialBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultRefreshMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

type RefreshRequest struct {
	Provider string
	UserRef  UserRef
}

type RefreshResult struct {
	UserID     string
	Tokens     TokenSet
	Credential CredentialSummary
}

type RefreshRunResult struct {
	Attempts      int
	PendingReauth bool
	Result        RefreshResult
}

type RefreshRunOptions struct {
	MaxAttempts int
}

// RefreshCredential trades the stored refresh token for a new token set and
// re-persists it, keeping the identity snapshot from the original connect.
func (s *Service) RefreshCredential(ctx context.Context, req RefreshRequest) (result RefreshResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider": req.Provider,
	}
	defer func() {
		if result.UserID != "" {
			fields["user_id"] = result.UserID
		}
		s.observeOperation(ctx, startedAt, "refresh", err, fields)
	}()

	provider, err := s.resolveProvider(req.Provider)
	if err != nil {
		return RefreshResult{}, err
	}
	providerID := normalizeProviderID(provider.ID())
	credentialType := OAuthCredentialType(providerID)
	fields["credential_type"] = credentialType

	userID, err := s.resolveUser(ctx, req.UserRef)
	if err != nil {
		return RefreshResult{}, err
	}

	credential, current, ok, err := s.loadOAuthTokens(ctx, userID, credentialType)
	if err != nil {
		return RefreshResult{}, err
	}
	if !ok {
		err = s.mapError(fmt.Errorf("%w: %s is unavailable, reauthorization required", ErrCredentialNotFound, credentialType))
		return RefreshResult{}, err
	}
	if strings.TrimSpace(current.RefreshToken) == "" {
		err = s.mapError(badInputError("stored credential has no refresh token", "refresh_token"))
		return RefreshResult{}, err
	}

	issuedAt := s.now().UTC()
	refreshed, err := provider.Refresh(ctx, current.RefreshToken)
	if err != nil {
		err = s.mapError(err)
		return RefreshResult{}, err
	}
	if strings.TrimSpace(refreshed.RefreshToken) == "" {
		refreshed.RefreshToken = current.RefreshToken
	}

	summary, err := s.StoreCredential(
		ctx,
		userID,
		credentialType,
		refreshed,
		refreshed.ExpiresAt(issuedAt),
		credential.Metadata,
	)
	if err != nil {
		err = s.mapError(err)
		return RefreshResult{}, err
	}
	result = RefreshResult{UserID: userID, Tokens: refreshed, Credential: summary}
	return result, nil
}

// RunRefreshWithRetry retries transient refresh failures with backoff. An
// unrecoverable failure deactivates the credential and reports PendingReauth.
func (s *Service) RunRefreshWithRetry(ctx context.Context, req RefreshRequest, opts RefreshRunOptions) (RefreshRunResult, error) {
	if s == nil {
		return RefreshRunResult{}, fmt.Errorf("core: service is nil")
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = defaultRefreshMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := s.RefreshCredential(ctx, req)
		if err == nil {
			return RefreshRunResult{Attempts: attempt, Result: result}, nil
		}
		lastErr = err

		if isUnrecoverableRefreshError(err) {
			s.markPendingReauth(ctx, req, err)
			return RefreshRunResult{Attempts: attempt, PendingReauth: true}, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := defaultRefreshInitialBackoff
		if s.refreshBackoffScheduler != nil {
			delay = s.refreshBackoffScheduler.NextDelay(attempt)
		}
		if waitErr := waitWithContext(ctx, delay); waitErr != nil {
			return RefreshRunResult{Attempts: attempt}, s.mapError(waitErr)
		}
	}
	return RefreshRunResult{Attempts: maxAttempts}, lastErr
}

func (s *Service) markPendingReauth(ctx context.Context, req RefreshRequest, source error) {
	providerID := normalizeProviderID(req.Provider)
	userID, err := s.resolveUser(ctx, req.UserRef)
	if err != nil {
		return
	}
	credentialType := OAuthCredentialType(providerID)
	if err := s.credentialStore.Deactivate(ctx, userID, credentialType); err != nil && !errors.Is(err, ErrCredentialNotFound) {
		s.logError(ctx, "credential deactivation failed", map[string]any{
			"user_id":         userID,
			"credential_type": credentialType,
			"error":           err.Error(),
		})
		return
	}
	s.logWarn(ctx, "credential requires reauthorization", map[string]any{
		"user_id":         userID,
		"credential_type": credentialType,
		"reason":          strings.TrimSpace(fmt.Sprint(source)),
	})
}

func isUnrecoverableRefreshError(err error) bool {
	if err == nil {
		return false
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		switch strings.ToLower(strings.TrimSpace(upstream.ErrorCode)) {
		case "invalid_grant", "unauthorized_client", "invalid_client":
			return true
		}
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryValidation, goerrors.CategoryNotFound, goerrors.CategoryBadInput:
			return true
		}
		if code, ok := richErr.Metadata["upstream_error"].(string); ok {
			switch strings.ToLower(strings.TrimSpace(code)) {
			case "invalid_grant", "unauthorized_client", "invalid_client":
				return true
			}
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "invalid_grant") ||
		strings.Contains(msg, "invalid refresh token") ||
		strings.Contains(msg, "reauthorization required")
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
