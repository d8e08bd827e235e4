package httpapi

import (
	"time"

	"github.com/goliatone/go-credvault/core"
)

type createUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

type updateProfileRequest struct {
	MonitoringEnabled *bool   `json:"monitoring_enabled"`
	AIModelPreference *string `json:"ai_model_preference"`
	PipedriveDomain   *string `json:"pipedrive_domain"`
}

type updateUsageLimitsRequest struct {
	DailyEmailLimit   *int     `json:"daily_email_limit"`
	MonthlyTokenLimit *int     `json:"monthly_token_limit"`
	DailySpendLimit   *float64 `json:"daily_spend_limit"`
	MonthlySpendLimit *float64 `json:"monthly_spend_limit"`
}

type putCredentialRequest struct {
	CredentialType string         `json:"credential_type"`
	Data           any            `json:"data"`
	ExpiresAt      *time.Time     `json:"expires_at"`
	Metadata       map[string]any `json:"metadata"`
}

type apiKeyRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

type beginResponse struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

// completeResponse never carries tokens.
type completeResponse struct {
	UserID     string             `json:"user_id"`
	Provider   string             `json:"provider"`
	Email      string             `json:"email,omitempty"`
	Name       string             `json:"name,omitempty"`
	Credential credentialResponse `json:"credential"`
}

type disconnectResponse struct {
	Removed bool `json:"removed"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func newUserResponse(user core.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Image:     user.Image,
		CreatedAt: formatTime(user.CreatedAt),
		UpdatedAt: formatTime(user.UpdatedAt),
	}
}

type profileResponse struct {
	UserID            string `json:"user_id"`
	MonitoringEnabled bool   `json:"monitoring_enabled"`
	AIModelPreference string `json:"ai_model_preference"`
	PipedriveDomain   string `json:"pipedrive_domain,omitempty"`
	UpdatedAt         string `json:"updated_at"`
}

func newProfileResponse(profile core.UserProfile) profileResponse {
	return profileResponse{
		UserID:            profile.UserID,
		MonitoringEnabled: profile.MonitoringEnabled,
		AIModelPreference: profile.AIModelPreference,
		PipedriveDomain:   profile.PipedriveDomain,
		UpdatedAt:         formatTime(profile.UpdatedAt),
	}
}

type usageLimitResponse struct {
	UserID            string  `json:"user_id"`
	DailyEmailLimit   int     `json:"daily_email_limit"`
	MonthlyTokenLimit int     `json:"monthly_token_limit"`
	DailySpendLimit   float64 `json:"daily_spend_limit"`
	MonthlySpendLimit float64 `json:"monthly_spend_limit"`
}

func newUsageLimitResponse(limits core.UsageLimit) usageLimitResponse {
	return usageLimitResponse{
		UserID:            limits.UserID,
		DailyEmailLimit:   limits.DailyEmailLimit,
		MonthlyTokenLimit: limits.MonthlyTokenLimit,
		DailySpendLimit:   limits.DailySpendLimit,
		MonthlySpendLimit: limits.MonthlySpendLimit,
	}
}

// credentialResponse describes a stored credential without its payload.
type credentialResponse struct {
	ID             string         `json:"id"`
	CredentialType string         `json:"credential_type"`
	IsActive       bool           `json:"is_active"`
	ExpiresAt      string         `json:"expires_at,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
}

func newCredentialResponse(summary core.CredentialSummary) credentialResponse {
	out := credentialResponse{
		ID:             summary.ID,
		CredentialType: summary.CredentialType,
		IsActive:       summary.IsActive,
		Metadata:       summary.Metadata,
		CreatedAt:      formatTime(summary.CreatedAt),
		UpdatedAt:      formatTime(summary.UpdatedAt),
	}
	if summary.ExpiresAt != nil {
		out.ExpiresAt = formatTime(*summary.ExpiresAt)
	}
	return out
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Fields  []fieldError `json:"fields,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
