package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	CredentialTypeOAuthSuffix  = "_oauth"
	CredentialTypeAPIKeySuffix = "_api_key"

	DefaultAIModelPreference = "gpt-4o-mini"
	DefaultTokenExpiresIn    = int64(3600)
	DefaultTokenType         = "Bearer"
)

var allowedAIModelPreferences = []string{"gpt-4o-mini", "claude-sonnet-4"}

type User struct {
	ID        string
	Email     string
	Name      string
	Image     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateUserInput struct {
	Email string
	Name  string
	Image string
}

type UserProfile struct {
	UserID            string
	MonitoringEnabled bool
	AIModelPreference string
	PipedriveDomain   string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type UpdateProfileInput struct {
	MonitoringEnabled *bool
	AIModelPreference *string
	PipedriveDomain   *string
}

type UsageLimit struct {
	UserID            string
	DailyEmailLimit   int
	MonthlyTokenLimit int
	DailySpendLimit   float64
	MonthlySpendLimit float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UpdateUsageLimitsInput carries the limits to change. Nil fields keep their
// stored value.
type UpdateUsageLimitsInput struct {
	DailyEmailLimit   *int
	MonthlyTokenLimit *int
	DailySpendLimit   *float64
	MonthlySpendLimit *float64
}

func DefaultUserProfile(userID string) UserProfile {
	return UserProfile{
		UserID:            userID,
		MonitoringEnabled: false,
		AIModelPreference: DefaultAIModelPreference,
	}
}

func DefaultUsageLimit(userID string) UsageLimit {
	return UsageLimit{
		UserID:            userID,
		DailyEmailLimit:   100,
		MonthlyTokenLimit: 50000,
		DailySpendLimit:   5.00,
		MonthlySpendLimit: 50.00,
	}
}

type Credential struct {
	ID               string
	UserID           string
	CredentialType   string
	EncryptedPayload string
	ExpiresAt        *time.Time
	IsActive         bool
	Metadata         map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Expired reports whether the credential carries an expiry that is not after now.
func (c Credential) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !c.ExpiresAt.After(now)
}

// Available reports whether reads should return the credential payload.
func (c Credential) Available(now time.Time) bool {
	return c.IsActive && !c.Expired(now)
}

// Summary drops the payload. Listing paths must only ever return summaries.
func (c Credential) Summary() CredentialSummary {
	return CredentialSummary{
		ID:             c.ID,
		CredentialType: c.CredentialType,
		IsActive:       c.IsActive,
		ExpiresAt:      cloneTimePointer(c.ExpiresAt),
		Metadata:       copyAnyMap(c.Metadata),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

type CredentialSummary struct {
	ID             string
	CredentialType string
	IsActive       bool
	ExpiresAt      *time.Time
	Metadata       map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type UpsertCredentialInput struct {
	UserID           string
	CredentialType   string
	EncryptedPayload string
	ExpiresAt        *time.Time
	Metadata         map[string]any
}

// CredentialValue is a decrypted credential. Structured payloads decode into
// Data; anything else is returned verbatim in Text.
type CredentialValue struct {
	Structured bool
	Data       map[string]any
	Text       string
}

func (v CredentialValue) Value() any {
	if v.Structured {
		return copyAnyMap(v.Data)
	}
	return v.Text
}

type StateMetadata struct {
	RedirectURI string
	ReturnTo    string
	Extra       map[string]string
}

func (m StateMetadata) Map() map[string]any {
	out := map[string]any{}
	if strings.TrimSpace(m.RedirectURI) != "" {
		out["redirect_uri"] = m.RedirectURI
	}
	if strings.TrimSpace(m.ReturnTo) != "" {
		out["return_to"] = m.ReturnTo
	}
	if len(m.Extra) > 0 {
		extra := make(map[string]any, len(m.Extra))
		for key, value := range m.Extra {
			extra[key] = value
		}
		out["extra"] = extra
	}
	return out
}

func StateMetadataFromMap(in map[string]any) StateMetadata {
	out := StateMetadata{
		RedirectURI: readString(in, "redirect_uri"),
		ReturnTo:    readString(in, "return_to"),
	}
	if extra, ok := in["extra"].(map[string]any); ok && len(extra) > 0 {
		out.Extra = make(map[string]string, len(extra))
		for key, value := range extra {
			if text, ok := value.(string); ok {
				out.Extra[key] = text
			}
		}
	}
	return out
}

func (m StateMetadata) clone() StateMetadata {
	out := m
	if m.Extra != nil {
		out.Extra = make(map[string]string, len(m.Extra))
		for key, value := range m.Extra {
			out.Extra[key] = value
		}
	}
	return out
}

type OAuthStateRecord struct {
	ID        string
	State     string
	UserID    string
	Provider  string
	Metadata  StateMetadata
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (r OAuthStateRecord) Binding() StateBinding {
	return StateBinding{
		UserID:    r.UserID,
		Provider:  r.Provider,
		CreatedAt: r.CreatedAt,
		Metadata:  r.Metadata.clone(),
	}
}

// StateBinding is what a consumed state resolves to.
type StateBinding struct {
	UserID    string
	Provider  string
	CreatedAt time.Time
	Metadata  StateMetadata
}

type AuthorizationRequest struct {
	State       string
	RedirectURI string
	Metadata    StateMetadata
}

type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	TokenType    string
}

func (t TokenSet) Map() map[string]any {
	out := map[string]any{
		"access_token": t.AccessToken,
		"expires_in":   t.ExpiresIn,
		"token_type":   t.TokenType,
	}
	if strings.TrimSpace(t.RefreshToken) != "" {
		out["refresh_token"] = t.RefreshToken
	}
	return out
}

// ExpiresAt returns issuedAt + expires_in, or nil when the token has no lifetime.
func (t TokenSet) ExpiresAt(issuedAt time.Time) *time.Time {
	if t.ExpiresIn <= 0 {
		return nil
	}
	expires := issuedAt.UTC().Add(time.Duration(t.ExpiresIn) * time.Second)
	return &expires
}

func TokenSetFromMap(in map[string]any) TokenSet {
	return TokenSet{
		AccessToken:  readString(in, "access_token"),
		RefreshToken: readString(in, "refresh_token"),
		ExpiresIn:    readInt64(in, "expires_in"),
		TokenType:    readString(in, "token_type"),
	}
}

type ProviderIdentity struct {
	ID    string
	Email string
	Name  string
	Raw   map[string]any
}

func (p ProviderIdentity) Map() map[string]any {
	out := map[string]any{
		"id":    p.ID,
		"email": p.Email,
		"name":  p.Name,
	}
	if len(p.Raw) > 0 {
		out["raw"] = copyAnyMap(p.Raw)
	}
	return out
}

// OAuthCredentialType returns the credential type tokens from provider are stored under.
func OAuthCredentialType(providerID string) string {
	return strings.ToLower(strings.TrimSpace(providerID)) + CredentialTypeOAuthSuffix
}

func APIKeyCredentialType(providerID string) string {
	return strings.ToLower(strings.TrimSpace(providerID)) + CredentialTypeAPIKeySuffix
}

func readString(in map[string]any, key string) string {
	if in == nil {
		return ""
	}
	switch typed := in[key].(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	case nil:
		return ""
	default:
		return ""
	}
}

func readInt64(in map[string]any, key string) int64 {
	if in == nil {
		return 0
	}
	switch typed := in[key].(type) {
	case int:
		return int64(typed)
	case int32:
		return int64(typed)
	case int64:
		return typed
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return 0
		}
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err != nil {
			return 0
		}
		return parsed
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
