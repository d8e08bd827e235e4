package query

import (
	"strings"

	"github.com/goliatone/go-credvault/core"
)

const (
	TypeGetCredential   = "credvault.query.credential.get"
	TypeListCredentials = "credvault.query.credential.list"
	TypeGetOAuthTokens  = "credvault.query.credential.oauth_tokens"
	TypeServiceStatus   = "credvault.query.auth.status"
	TypeGetUser         = "credvault.query.user.get"
	TypeResolveUser     = "credvault.query.user.resolve"
	TypeGetProfile      = "credvault.query.user.profile"
	TypeGetUsageLimits  = "credvault.query.user.usage_limits"
)

type GetCredentialMessage struct {
	UserRef        core.UserRef
	CredentialType string
}

func (GetCredentialMessage) Type() string { return TypeGetCredential }

func (m GetCredentialMessage) Validate() error {
	if strings.TrimSpace(m.CredentialType) == "" {
		return requiredField("credential_type", "credential type is required")
	}
	return validateUserRef(m.UserRef)
}

type ListCredentialsMessage struct {
	UserRef core.UserRef
}

func (ListCredentialsMessage) Type() string { return TypeListCredentials }

func (m ListCredentialsMessage) Validate() error {
	return validateUserRef(m.UserRef)
}

type GetOAuthTokensMessage struct {
	Provider string
	UserRef  core.UserRef
}

func (GetOAuthTokensMessage) Type() string { return TypeGetOAuthTokens }

func (m GetOAuthTokensMessage) Validate() error {
	if strings.TrimSpace(m.Provider) == "" {
		return requiredField("provider", "provider is required")
	}
	return validateUserRef(m.UserRef)
}

type ServiceStatusMessage struct {
	UserRef core.UserRef
}

func (ServiceStatusMessage) Type() string { return TypeServiceStatus }

func (m ServiceStatusMessage) Validate() error {
	return validateUserRef(m.UserRef)
}

type GetUserMessage struct {
	UserID string
}

func (GetUserMessage) Type() string { return TypeGetUser }

func (m GetUserMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return requiredField("user_id", "user id is required")
	}
	return nil
}

// ResolveUserMessage carries a raw caller identifier, canonical or email
// fallback.
type ResolveUserMessage struct {
	Identifier string
}

func (ResolveUserMessage) Type() string { return TypeResolveUser }

func (m ResolveUserMessage) Validate() error {
	if strings.TrimSpace(m.Identifier) == "" {
		return invalidInput("user identifier is required")
	}
	if _, err := core.ParseUserRef(m.Identifier); err != nil {
		return wrapInvalidInput(err, "user identifier is invalid")
	}
	return nil
}

type GetProfileMessage struct {
	UserRef core.UserRef
}

func (GetProfileMessage) Type() string { return TypeGetProfile }

func (m GetProfileMessage) Validate() error {
	return validateUserRef(m.UserRef)
}

type GetUsageLimitsMessage struct {
	UserRef core.UserRef
}

func (GetUsageLimitsMessage) Type() string { return TypeGetUsageLimits }

func (m GetUsageLimitsMessage) Validate() error {
	return validateUserRef(m.UserRef)
}

func validateUserRef(ref core.UserRef) error {
	if err := ref.Validate(); err != nil {
		return wrapInvalidInput(err, "user reference is invalid")
	}
	return nil
}
