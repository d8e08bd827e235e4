package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ServiceErrorBadInput          = "CREDVAULT_BAD_INPUT"
	ServiceErrorProviderNotFound  = "CREDVAULT_PROVIDER_NOT_FOUND"
	ServiceErrorUserNotFound      = "CREDVAULT_USER_NOT_FOUND"
	ServiceErrorUserEmailExists   = "CREDVAULT_USER_EMAIL_EXISTS"
	ServiceErrorCredentialMissing = "CREDVAULT_CREDENTIAL_NOT_FOUND"
	ServiceErrorOAuthStateInvalid = "CREDVAULT_OAUTH_STATE_INVALID"
	ServiceErrorUpstream          = "CREDVAULT_UPSTREAM_ERROR"
	ServiceErrorConflict          = "CREDVAULT_CONFLICT"
	ServiceErrorInternal          = "CREDVAULT_INTERNAL_ERROR"
)

// OAuthStateInvalidMessage is returned for every state failure so callers cannot
// tell a missing state from an expired or replayed one.
const OAuthStateInvalidMessage = "invalid or expired state"

var (
	ErrProviderNotFound   = errors.New("core: provider not found")
	ErrUserNotFound       = errors.New("core: user not found")
	ErrUserEmailExists    = errors.New("core: user with this email already exists")
	ErrCredentialNotFound = errors.New("core: credential not found")
	ErrOAuthStateNotFound = errors.New("core: oauth state not found")
	ErrOAuthStateExists   = errors.New("core: oauth state already exists")
)

// UpstreamError reports a failed call to a provider token or identity endpoint.
type UpstreamError struct {
	Provider   string
	Operation  string
	StatusCode int
	ErrorCode  string
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return ""
	}
	parts := []string{fmt.Sprintf("providers: %s %s failed", e.Provider, e.Operation)}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status %d", e.StatusCode))
	}
	if e.ErrorCode != "" {
		parts = append(parts, "error "+e.ErrorCode)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *UpstreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *UpstreamError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{
		"provider":  e.Provider,
		"operation": e.Operation,
	}
	if e.StatusCode > 0 {
		metadata["upstream_status"] = e.StatusCode
	}
	if e.ErrorCode != "" {
		metadata["upstream_error"] = e.ErrorCode
	}
	return goerrors.New(e.Error(), goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(ServiceErrorUpstream).
		WithMetadata(metadata)
}

// ServiceError maps any error onto the vault's error envelope with a
// CREDVAULT_* text code and an HTTP status.
func ServiceError(err error) *goerrors.Error {
	return serviceErrorMapper(err)
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return ensureServiceErrorEnvelope(upstream.ToServiceError())
	}

	switch {
	case errors.Is(err, ErrProviderNotFound):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ServiceErrorProviderNotFound)
	case errors.Is(err, ErrUserNotFound):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ServiceErrorUserNotFound)
	case errors.Is(err, ErrUserEmailExists):
		return newServiceError("User with this email already exists", goerrors.CategoryConflict, ServiceErrorUserEmailExists)
	case errors.Is(err, ErrCredentialNotFound):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ServiceErrorCredentialMissing)
	case errors.Is(err, ErrOAuthStateNotFound):
		return oauthStateInvalidError()
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "provider") && strings.Contains(msg, "not registered"):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ServiceErrorProviderNotFound)
	case strings.Contains(msg, "oauth state"):
		return oauthStateInvalidError()
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "malformed"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func badInputError(message string, field string) *goerrors.Error {
	return goerrors.NewValidation(message, goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorBadInput)
}

// MissingDependencyError reports a handler wired without its service.
func MissingDependencyError(scope string, dependency string) *goerrors.Error {
	return goerrors.New(scopedMessage(scope, dependency+" is required"), goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ServiceErrorInternal)
}

// RequiredFieldError reports a message field that failed validation.
func RequiredFieldError(scope string, field string, message string) *goerrors.Error {
	return goerrors.NewValidation(scopedMessage(scope, "validation failed"), goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func InvalidInputError(scope string, message string) *goerrors.Error {
	return goerrors.New(scopedMessage(scope, message), goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorBadInput)
}

// WrapInvalidInput keeps err as the cause. It returns nil for a nil err.
func WrapInvalidInput(err error, scope string, message string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, scopedMessage(scope, message)).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorBadInput)
}

func scopedMessage(scope string, message string) string {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return message
	}
	return scope + ": " + message
}

func oauthStateInvalidError() *goerrors.Error {
	return goerrors.New(OAuthStateInvalidMessage, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorOAuthStateInvalid)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ServiceErrorBadInput
	case goerrors.CategoryNotFound:
		return ServiceErrorUserNotFound
	case goerrors.CategoryConflict:
		return ServiceErrorConflict
	case goerrors.CategoryExternal:
		return ServiceErrorUpstream
	default:
		return ServiceErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
