package query

import (
	"context"
	"testing"

	"github.com/goliatone/go-credvault/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestMessages_ValidateReturnsBadInputEnvelopes(t *testing.T) {
	cases := []struct {
		name     string
		msg      interface{ Validate() error }
		category goerrors.Category
		field    string
	}{
		{"credential without type", GetCredentialMessage{UserRef: core.CanonicalUserRef(testUserID)}, goerrors.CategoryValidation, "credential_type"},
		{"tokens without provider", GetOAuthTokensMessage{UserRef: core.CanonicalUserRef(testUserID)}, goerrors.CategoryValidation, "provider"},
		{"user without id", GetUserMessage{}, goerrors.CategoryValidation, "user_id"},
		{"status without ref", ServiceStatusMessage{}, goerrors.CategoryValidation, "user_id"},
		{"resolve blank identifier", ResolveUserMessage{Identifier: " "}, goerrors.CategoryBadInput, ""},
		{"resolve malformed identifier", ResolveUserMessage{Identifier: "user-not-an-email"}, goerrors.CategoryValidation, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rich *goerrors.Error
			if !goerrors.As(tc.msg.Validate(), &rich) {
				t.Fatalf("expected go-errors envelope")
			}
			if rich.Category != tc.category || rich.TextCode != core.ServiceErrorBadInput {
				t.Fatalf("unexpected envelope: %q %q", rich.Category, rich.TextCode)
			}
			if tc.field == "" {
				return
			}
			fields := rich.AllValidationErrors()
			if len(fields) == 0 || fields[0].Field != tc.field {
				t.Fatalf("expected %s field error, got %#v", tc.field, fields)
			}
		})
	}
}

func TestQueries_NilReaderReturnsInternalEnvelope(t *testing.T) {
	var credential *GetCredentialQuery
	_, credentialErr := credential.Query(context.Background(), GetCredentialMessage{})
	var user *GetUserQuery
	_, userErr := user.Query(context.Background(), GetUserMessage{})

	for name, err := range map[string]error{"credential": credentialErr, "user": userErr} {
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("%s: expected go-errors envelope, got %T", name, err)
		}
		if rich.Category != goerrors.CategoryInternal || rich.TextCode != core.ServiceErrorInternal {
			t.Fatalf("%s: unexpected envelope %q %q", name, rich.Category, rich.TextCode)
		}
	}
}
