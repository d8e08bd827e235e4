package query

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-credvault/core"
)

const testUserID = "2f1c3a4e-5b6d-4e7f-8a9b-0c1d2e3f4a5b"

type stubReader struct {
	getCredentialFn   func(context.Context, core.UserRef, string) (core.CredentialValue, bool, error)
	listCredentialsFn func(context.Context, core.UserRef) ([]core.CredentialSummary, error)
	getTokensFn       func(context.Context, string, core.UserRef) (core.TokenSet, bool, error)
	statusFn          func(context.Context, core.UserRef) (map[string]bool, error)
	getUserFn         func(context.Context, string) (core.User, error)
	resolveUserFn     func(context.Context, string) (string, error)
	getProfileFn      func(context.Context, core.UserRef) (core.UserProfile, error)
	getLimitsFn       func(context.Context, core.UserRef) (core.UsageLimit, error)
}

func (s stubReader) GetCredential(ctx context.Context, ref core.UserRef, credentialType string) (core.CredentialValue, bool, error) {
	if s.getCredentialFn == nil {
		return core.CredentialValue{}, false, nil
	}
	return s.getCredentialFn(ctx, ref, credentialType)
}

func (s stubReader) ListCredentials(ctx context.Context, ref core.UserRef) ([]core.CredentialSummary, error) {
	if s.listCredentialsFn == nil {
		return nil, nil
	}
	return s.listCredentialsFn(ctx, ref)
}

func (s stubReader) GetOAuthTokens(ctx context.Context, providerID string, ref core.UserRef) (core.TokenSet, bool, error) {
	if s.getTokensFn == nil {
		return core.TokenSet{}, false, nil
	}
	return s.getTokensFn(ctx, providerID, ref)
}

func (s stubReader) ServiceStatus(ctx context.Context, ref core.UserRef) (map[string]bool, error) {
	if s.statusFn == nil {
		return map[string]bool{}, nil
	}
	return s.statusFn(ctx, ref)
}

func (s stubReader) GetUser(ctx context.Context, id string) (core.User, error) {
	if s.getUserFn == nil {
		return core.User{}, nil
	}
	return s.getUserFn(ctx, id)
}

func (s stubReader) ResolveUser(ctx context.Context, raw string) (string, error) {
	if s.resolveUserFn == nil {
		return "", nil
	}
	return s.resolveUserFn(ctx, raw)
}

func (s stubReader) GetProfile(ctx context.Context, ref core.UserRef) (core.UserProfile, error) {
	if s.getProfileFn == nil {
		return core.UserProfile{}, nil
	}
	return s.getProfileFn(ctx, ref)
}

func (s stubReader) GetUsageLimits(ctx context.Context, ref core.UserRef) (core.UsageLimit, error) {
	if s.getLimitsFn == nil {
		return core.UsageLimit{}, nil
	}
	return s.getLimitsFn(ctx, ref)
}

func TestGetCredentialQuery_WrapsLookup(t *testing.T) {
	reader := stubReader{
		getCredentialFn: func(_ context.Context, ref core.UserRef, credentialType string) (core.CredentialValue, bool, error) {
			if ref.Value != testUserID || credentialType != "openai_api_key" {
				t.Fatalf("unexpected lookup: %#v %q", ref, credentialType)
			}
			return core.CredentialValue{Text: "sk-test"}, true, nil
		},
	}
	lookup, err := NewGetCredentialQuery(reader).Query(context.Background(), GetCredentialMessage{
		UserRef:        core.CanonicalUserRef(testUserID),
		CredentialType: "openai_api_key",
	})
	if err != nil {
		t.Fatalf("query credential: %v", err)
	}
	if !lookup.Found || lookup.Value.Text != "sk-test" {
		t.Fatalf("unexpected lookup: %#v", lookup)
	}
}

func TestGetCredentialQuery_AbsentIsNotAnError(t *testing.T) {
	lookup, err := NewGetCredentialQuery(stubReader{}).Query(context.Background(), GetCredentialMessage{
		UserRef:        core.CanonicalUserRef(testUserID),
		CredentialType: "outlook_oauth",
	})
	if err != nil {
		t.Fatalf("query credential: %v", err)
	}
	if lookup.Found {
		t.Fatalf("expected absent credential, got %#v", lookup)
	}
}

func TestReadQueries_DelegateToReader(t *testing.T) {
	ref := core.CanonicalUserRef(testUserID)

	t.Run("list credentials", func(t *testing.T) {
		reader := stubReader{
			listCredentialsFn: func(context.Context, core.UserRef) ([]core.CredentialSummary, error) {
				return []core.CredentialSummary{{CredentialType: "outlook_oauth", IsActive: true}}, nil
			},
		}
		summaries, err := NewListCredentialsQuery(reader).Query(context.Background(), ListCredentialsMessage{UserRef: ref})
		if err != nil {
			t.Fatalf("list credentials: %v", err)
		}
		if len(summaries) != 1 || summaries[0].CredentialType != "outlook_oauth" {
			t.Fatalf("unexpected summaries: %#v", summaries)
		}
	})

	t.Run("oauth tokens", func(t *testing.T) {
		reader := stubReader{
			getTokensFn: func(_ context.Context, provider string, _ core.UserRef) (core.TokenSet, bool, error) {
				if provider != "pipedrive" {
					t.Fatalf("expected pipedrive, got %q", provider)
				}
				return core.TokenSet{AccessToken: "at", TokenType: "Bearer"}, true, nil
			},
		}
		lookup, err := NewGetOAuthTokensQuery(reader).Query(context.Background(), GetOAuthTokensMessage{
			Provider: "pipedrive",
			UserRef:  ref,
		})
		if err != nil {
			t.Fatalf("get tokens: %v", err)
		}
		if !lookup.Found || lookup.Tokens.AccessToken != "at" {
			t.Fatalf("unexpected tokens: %#v", lookup)
		}
	})

	t.Run("service status", func(t *testing.T) {
		reader := stubReader{
			statusFn: func(context.Context, core.UserRef) (map[string]bool, error) {
				return map[string]bool{"outlook": true, "pipedrive": false}, nil
			},
		}
		status, err := NewServiceStatusQuery(reader).Query(context.Background(), ServiceStatusMessage{UserRef: ref})
		if err != nil {
			t.Fatalf("service status: %v", err)
		}
		if !status["outlook"] || status["pipedrive"] {
			t.Fatalf("unexpected status: %#v", status)
		}
	})

	t.Run("resolve user", func(t *testing.T) {
		reader := stubReader{
			resolveUserFn: func(_ context.Context, raw string) (string, error) {
				if raw != "someone@example.com" {
					t.Fatalf("unexpected identifier %q", raw)
				}
				return testUserID, nil
			},
		}
		id, err := NewResolveUserQuery(reader).Query(context.Background(), ResolveUserMessage{Identifier: "someone@example.com"})
		if err != nil {
			t.Fatalf("resolve user: %v", err)
		}
		if id != testUserID {
			t.Fatalf("unexpected id %q", id)
		}
	})

	t.Run("profile and limits", func(t *testing.T) {
		reader := stubReader{
			getProfileFn: func(context.Context, core.UserRef) (core.UserProfile, error) {
				return core.DefaultUserProfile(testUserID), nil
			},
			getLimitsFn: func(context.Context, core.UserRef) (core.UsageLimit, error) {
				return core.UsageLimit{UserID: testUserID, DailyEmailLimit: 100}, nil
			},
		}
		profile, err := NewGetProfileQuery(reader).Query(context.Background(), GetProfileMessage{UserRef: ref})
		if err != nil {
			t.Fatalf("get profile: %v", err)
		}
		if profile.AIModelPreference != core.DefaultAIModelPreference {
			t.Fatalf("unexpected profile: %#v", profile)
		}
		limits, err := NewGetUsageLimitsQuery(reader).Query(context.Background(), GetUsageLimitsMessage{UserRef: ref})
		if err != nil {
			t.Fatalf("get limits: %v", err)
		}
		if limits.DailyEmailLimit != 100 {
			t.Fatalf("unexpected limits: %#v", limits)
		}
	})
}

func TestReadQueries_PropagateReaderErrors(t *testing.T) {
	reader := stubReader{
		getUserFn: func(context.Context, string) (core.User, error) {
			return core.User{}, core.ErrUserNotFound
		},
	}
	_, err := NewGetUserQuery(reader).Query(context.Background(), GetUserMessage{UserID: testUserID})
	if !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestQueryMessages_Validate(t *testing.T) {
	ref := core.CanonicalUserRef(testUserID)
	cases := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{name: "credential ok", msg: GetCredentialMessage{UserRef: ref, CredentialType: "openai_api_key"}},
		{name: "credential missing type", msg: GetCredentialMessage{UserRef: ref}, wantErr: true},
		{name: "credential missing user", msg: GetCredentialMessage{CredentialType: "openai_api_key"}, wantErr: true},
		{name: "tokens missing provider", msg: GetOAuthTokensMessage{UserRef: ref}, wantErr: true},
		{name: "status ok", msg: ServiceStatusMessage{UserRef: ref}},
		{name: "user missing id", msg: GetUserMessage{}, wantErr: true},
		{name: "resolve email", msg: ResolveUserMessage{Identifier: "someone@example.com"}},
		{name: "resolve blank", msg: ResolveUserMessage{Identifier: "  "}, wantErr: true},
		{name: "profile missing user", msg: GetProfileMessage{}, wantErr: true},
		{name: "limits ok", msg: GetUsageLimitsMessage{UserRef: ref}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}
