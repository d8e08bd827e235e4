package query

import (
	"context"

	"github.com/goliatone/go-credvault/core"
)

type CredentialReader interface {
	GetCredential(ctx context.Context, ref core.UserRef, credentialType string) (core.CredentialValue, bool, error)
	ListCredentials(ctx context.Context, ref core.UserRef) ([]core.CredentialSummary, error)
	GetOAuthTokens(ctx context.Context, providerID string, ref core.UserRef) (core.TokenSet, bool, error)
}

type StatusReader interface {
	ServiceStatus(ctx context.Context, ref core.UserRef) (map[string]bool, error)
}

type UserReader interface {
	GetUser(ctx context.Context, id string) (core.User, error)
	ResolveUser(ctx context.Context, raw string) (string, error)
	GetProfile(ctx context.Context, ref core.UserRef) (core.UserProfile, error)
	GetUsageLimits(ctx context.Context, ref core.UserRef) (core.UsageLimit, error)
}

type Reader interface {
	CredentialReader
	StatusReader
	UserReader
}

// CredentialLookup reports a decrypted credential. Found is false when the
// row is missing, inactive, expired or cannot be decrypted.
type CredentialLookup struct {
	Value core.CredentialValue
	Found bool
}

type TokenLookup struct {
	Tokens core.TokenSet
	Found  bool
}

type GetCredentialQuery struct {
	reader CredentialReader
}

func NewGetCredentialQuery(reader CredentialReader) *GetCredentialQuery {
	return &GetCredentialQuery{reader: reader}
}

func (q *GetCredentialQuery) Query(ctx context.Context, msg GetCredentialMessage) (CredentialLookup, error) {
	if q == nil || q.reader == nil {
		return CredentialLookup{}, missingDependency("credential reader")
	}
	value, found, err := q.reader.GetCredential(ctx, msg.UserRef, msg.CredentialType)
	if err != nil {
		return CredentialLookup{}, err
	}
	return CredentialLookup{Value: value, Found: found}, nil
}

type ListCredentialsQuery struct {
	reader CredentialReader
}

func NewListCredentialsQuery(reader CredentialReader) *ListCredentialsQuery {
	return &ListCredentialsQuery{reader: reader}
}

func (q *ListCredentialsQuery) Query(ctx context.Context, msg ListCredentialsMessage) ([]core.CredentialSummary, error) {
	if q == nil || q.reader == nil {
		return nil, missingDependency("credential reader")
	}
	return q.reader.ListCredentials(ctx, msg.UserRef)
}

type GetOAuthTokensQuery struct {
	reader CredentialReader
}

func NewGetOAuthTokensQuery(reader CredentialReader) *GetOAuthTokensQuery {
	return &GetOAuthTokensQuery{reader: reader}
}

func (q *GetOAuthTokensQuery) Query(ctx context.Context, msg GetOAuthTokensMessage) (TokenLookup, error) {
	if q == nil || q.reader == nil {
		return TokenLookup{}, missingDependency("credential reader")
	}
	tokens, found, err := q.reader.GetOAuthTokens(ctx, msg.Provider, msg.UserRef)
	if err != nil {
		return TokenLookup{}, err
	}
	return TokenLookup{Tokens: tokens, Found: found}, nil
}

type ServiceStatusQuery struct {
	reader StatusReader
}

func NewServiceStatusQuery(reader StatusReader) *ServiceStatusQuery {
	return &ServiceStatusQuery{reader: reader}
}

func (q *ServiceStatusQuery) Query(ctx context.Context, msg ServiceStatusMessage) (map[string]bool, error) {
	if q == nil || q.reader == nil {
		return nil, missingDependency("status reader")
	}
	return q.reader.ServiceStatus(ctx, msg.UserRef)
}

type GetUserQuery struct {
	reader UserReader
}

func NewGetUserQuery(reader UserReader) *GetUserQuery {
	return &GetUserQuery{reader: reader}
}

func (q *GetUserQuery) Query(ctx context.Context, msg GetUserMessage) (core.User, error) {
	if q == nil || q.reader == nil {
		return core.User{}, missingDependency("user reader")
	}
	return q.reader.GetUser(ctx, msg.UserID)
}

type ResolveUserQuery struct {
	reader UserReader
}

func NewResolveUserQuery(reader UserReader) *ResolveUserQuery {
	return &ResolveUserQuery{reader: reader}
}

func (q *ResolveUserQuery) Query(ctx context.Context, msg ResolveUserMessage) (string, error) {
	if q == nil || q.reader == nil {
		return "", missingDependency("user reader")
	}
	return q.reader.ResolveUser(ctx, msg.Identifier)
}

type GetProfileQuery struct {
	reader UserReader
}

func NewGetProfileQuery(reader UserReader) *GetProfileQuery {
	return &GetProfileQuery{reader: reader}
}

func (q *GetProfileQuery) Query(ctx context.Context, msg GetProfileMessage) (core.UserProfile, error) {
	if q == nil || q.reader == nil {
		return core.UserProfile{}, missingDependency("user reader")
	}
	return q.reader.GetProfile(ctx, msg.UserRef)
}

type GetUsageLimitsQuery struct {
	reader UserReader
}

func NewGetUsageLimitsQuery(reader UserReader) *GetUsageLimitsQuery {
	return &GetUsageLimitsQuery{reader: reader}
}

func (q *GetUsageLimitsQuery) Query(ctx context.Context, msg GetUsageLimitsMessage) (core.UsageLimit, error) {
	if q == nil || q.reader == nil {
		return core.UsageLimit{}, missingDependency("user reader")
	}
	return q.reader.GetUsageLimits(ctx, msg.UserRef)
}
