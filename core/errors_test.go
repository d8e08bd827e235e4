package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func assertTextCode(t *testing.T, err error, textCode string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", textCode)
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope for %s, got %T: %v", textCode, err, err)
	}
	if rich.TextCode != textCode {
		t.Fatalf("expected text code %s, got %s (%v)", textCode, rich.TextCode, err)
	}
}

func TestServiceErrorMapper_Sentinels(t *testing.T) {
	cases := []struct {
		err      error
		textCode string
		status   int
	}{
		{err: fmt.Errorf("lookup: %w", ErrUserNotFound), textCode: ServiceErrorUserNotFound, status: 404},
		{err: ErrUserEmailExists, textCode: ServiceErrorUserEmailExists, status: 409},
		{err: ErrCredentialNotFound, textCode: ServiceErrorCredentialMissing, status: 404},
		{err: ErrOAuthStateNotFound, textCode: ServiceErrorOAuthStateInvalid, status: 400},
		{err: ErrProviderNotFound, textCode: ServiceErrorProviderNotFound, status: 404},
		{err: errors.New("core: provider id is required"), textCode: ServiceErrorBadInput, status: 400},
	}
	for _, tc := range cases {
		mapped := serviceErrorMapper(tc.err)
		if mapped == nil {
			t.Fatalf("expected mapping for %v", tc.err)
		}
		if mapped.TextCode != tc.textCode {
			t.Fatalf("%v: expected %s, got %s", tc.err, tc.textCode, mapped.TextCode)
		}
		if mapped.Code != tc.status {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.status, mapped.Code)
		}
	}
}

func TestServiceErrorMapper_UpstreamError(t *testing.T) {
	err := fmt.Errorf("exchange: %w", &UpstreamError{
		Provider:   "pipedrive",
		Operation:  "token_exchange",
		StatusCode: 400,
		ErrorCode:  "invalid_grant",
		Message:    "code expired",
	})
	mapped := serviceErrorMapper(err)
	if mapped.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %v", mapped.Category)
	}
	if mapped.Code != 502 || mapped.TextCode != ServiceErrorUpstream {
		t.Fatalf("expected 502 upstream envelope, got %d/%s", mapped.Code, mapped.TextCode)
	}
	if mapped.Metadata["upstream_error"] != "invalid_grant" || mapped.Metadata["upstream_status"] != 400 {
		t.Fatalf("expected upstream metadata, got %#v", mapped.Metadata)
	}
}

func TestServiceErrorMapper_StateMessagesAreUniform(t *testing.T) {
	for _, err := range []error{
		ErrOAuthStateNotFound,
		errors.New("core: oauth state expired"),
	} {
		mapped := serviceErrorMapper(err)
		if mapped.Message != OAuthStateInvalidMessage {
			t.Fatalf("expected uniform message for %v, got %q", err, mapped.Message)
		}
	}
}

func TestServiceErrorMapper_PassesThroughRichErrors(t *testing.T) {
	original := goerrors.New("already mapped", goerrors.CategoryConflict)
	mapped := serviceErrorMapper(original)
	if mapped.Code != 409 || mapped.TextCode != ServiceErrorConflict {
		t.Fatalf("expected envelope defaults to be filled, got %d/%s", mapped.Code, mapped.TextCode)
	}
}

func TestScopedErrorConstructors(t *testing.T) {
	missing := MissingDependencyError("command", "auth service")
	if missing.Message != "command: auth service is required" || missing.TextCode != ServiceErrorInternal {
		t.Fatalf("unexpected dependency error: %q %q", missing.Message, missing.TextCode)
	}

	field := RequiredFieldError("query", "provider", "provider is required")
	if field.Category != goerrors.CategoryValidation || field.Code != http.StatusBadRequest {
		t.Fatalf("unexpected field error: %#v", field)
	}
	if len(field.ValidationErrors) != 1 || field.ValidationErrors[0].Field != "provider" {
		t.Fatalf("expected provider field error, got %#v", field.ValidationErrors)
	}

	if WrapInvalidInput(nil, "command", "ignored") != nil {
		t.Fatalf("expected nil wrap for nil error")
	}
	cause := errors.New("bad email")
	wrapped := WrapInvalidInput(cause, "", "a valid email is required")
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected wrapped cause to be preserved")
	}
	if mapped := ServiceError(wrapped); mapped.TextCode != ServiceErrorBadInput {
		t.Fatalf("expected bad input text code, got %q", mapped.TextCode)
	}
}
