package command

import (
	"strings"

	"github.com/goliatone/go-credvault/core"
)

const (
	TypeBeginAuth         = "credvault.command.auth.begin"
	TypeCompleteAuth      = "credvault.command.auth.complete"
	TypeDisconnect        = "credvault.command.auth.disconnect"
	TypePutCredential     = "credvault.command.credential.put"
	TypeDeleteCredential  = "credvault.command.credential.delete"
	TypeStoreAPIKey       = "credvault.command.credential.api_key"
	TypeRefreshCredential = "credvault.command.credential.refresh"
	TypeEnsureFreshTokens = "credvault.command.credential.ensure_fresh"
	TypeCreateUser        = "credvault.command.user.create"
	TypeUpdateProfile     = "credvault.command.user.update_profile"
	TypeUpdateUsageLimits = "credvault.command.user.update_usage_limits"
)

type BeginAuthMessage struct {
	Request core.BeginRequest
}

func (BeginAuthMessage) Type() string { return TypeBeginAuth }

func (m BeginAuthMessage) Validate() error {
	if strings.TrimSpace(m.Request.Provider) == "" {
		return requiredField("provider", "provider is required")
	}
	return validateUserRef(m.Request.UserRef)
}

type CompleteAuthMessage struct {
	Request core.CompleteRequest
}

func (CompleteAuthMessage) Type() string { return TypeCompleteAuth }

func (m CompleteAuthMessage) Validate() error {
	if strings.TrimSpace(m.Request.Provider) == "" {
		return requiredField("provider", "provider is required")
	}
	if strings.TrimSpace(m.Request.Code) == "" {
		return requiredField("code", "authorization code is required")
	}
	if strings.TrimSpace(m.Request.State) == "" {
		return requiredField("state", "state is required")
	}
	return nil
}

type DisconnectMessage struct {
	Provider string
	UserRef  core.UserRef
}

func (DisconnectMessage) Type() string { return TypeDisconnect }

func (m DisconnectMessage) Validate() error {
	if strings.TrimSpace(m.Provider) == "" {
		return requiredField("provider", "provider is required")
	}
	return validateUserRef(m.UserRef)
}

type PutCredentialMessage struct {
	Request core.PutCredentialRequest
}

func (PutCredentialMessage) Type() string { return TypePutCredential }

func (m PutCredentialMessage) Validate() error {
	if strings.TrimSpace(m.Request.CredentialType) == "" {
		return requiredField("credential_type", "credential type is required")
	}
	if m.Request.Data == nil {
		return requiredField("data", "credential data is required")
	}
	return validateUserRef(m.Request.UserRef)
}

type DeleteCredentialMessage struct {
	UserRef        core.UserRef
	CredentialType string
}

func (DeleteCredentialMessage) Type() string { return TypeDeleteCredential }

func (m DeleteCredentialMessage) Validate() error {
	if strings.TrimSpace(m.CredentialType) == "" {
		return requiredField("credential_type", "credential type is required")
	}
	return validateUserRef(m.UserRef)
}

type StoreAPIKeyMessage struct {
	Request core.StoreAPIKeyRequest
}

func (StoreAPIKeyMessage) Type() string { return TypeStoreAPIKey }

func (m StoreAPIKeyMessage) Validate() error {
	if strings.TrimSpace(m.Request.Provider) == "" {
		return requiredField("provider", "provider is required")
	}
	if strings.TrimSpace(m.Request.APIKey) == "" {
		return requiredField("api_key", "api key is required")
	}
	return validateUserRef(m.Request.UserRef)
}

type RefreshCredentialMessage struct {
	Request core.RefreshRequest
}

func (RefreshCredentialMessage) Type() string { return TypeRefreshCredential }

func (m RefreshCredentialMessage) Validate() error {
	if strings.TrimSpace(m.Request.Provider) == "" {
		return requiredField("provider", "provider is required")
	}
	return validateUserRef(m.Request.UserRef)
}

type EnsureFreshTokensMessage struct {
	Request core.EnsureFreshTokensRequest
}

func (EnsureFreshTokensMessage) Type() string { return TypeEnsureFreshTokens }

func (m EnsureFreshTokensMessage) Validate() error {
	if strings.TrimSpace(m.Request.Provider) == "" {
		return requiredField("provider", "provider is required")
	}
	if m.Request.RefreshLeadWindow < 0 || m.Request.ExpiringSoonWindow < 0 {
		return invalidInput("freshness windows must not be negative")
	}
	return validateUserRef(m.Request.UserRef)
}

type CreateUserMessage struct {
	Input core.CreateUserInput
}

func (CreateUserMessage) Type() string { return TypeCreateUser }

func (m CreateUserMessage) Validate() error {
	if err := core.ValidateEmail(core.NormalizeEmail(m.Input.Email)); err != nil {
		return wrapInvalidInput(err, "a valid email is required")
	}
	return nil
}

type UpdateProfileMessage struct {
	UserRef core.UserRef
	Input   core.UpdateProfileInput
}

func (UpdateProfileMessage) Type() string { return TypeUpdateProfile }

func (m UpdateProfileMessage) Validate() error {
	if m.Input.MonitoringEnabled == nil && m.Input.AIModelPreference == nil && m.Input.PipedriveDomain == nil {
		return invalidInput("profile update has no fields")
	}
	return validateUserRef(m.UserRef)
}

type UpdateUsageLimitsMessage struct {
	UserRef core.UserRef
	Input   core.UpdateUsageLimitsInput
}

func (UpdateUsageLimitsMessage) Type() string { return TypeUpdateUsageLimits }

func (m UpdateUsageLimitsMessage) Validate() error {
	in := m.Input
	if in.DailyEmailLimit == nil && in.MonthlyTokenLimit == nil && in.DailySpendLimit == nil && in.MonthlySpendLimit == nil {
		return invalidInput("usage limits update has no fields")
	}
	return validateUserRef(m.UserRef)
}

func validateUserRef(ref core.UserRef) error {
	if err := ref.Validate(); err != nil {
		return wrapInvalidInput(err, "user reference is invalid")
	}
	return nil
}
