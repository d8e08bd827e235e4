package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-credvault/core"
	"github.com/uptrace/bun"
)

type userRecord struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string    `bun:"id,pk"`
	Email     string    `bun:"email,notnull"`
	Name      string    `bun:"name,notnull"`
	Image     string    `bun:"image,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type userProfileRecord struct {
	bun.BaseModel `bun:"table:user_profiles,alias:up"`

	UserID            string    `bun:"user_id,pk"`
	MonitoringEnabled bool      `bun:"monitoring_enabled,notnull"`
	AIModelPreference string    `bun:"ai_model_preference,notnull"`
	PipedriveDomain   string    `bun:"pipedrive_domain,notnull"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type usageLimitRecord struct {
	bun.BaseModel `bun:"table:usage_limits,alias:ul"`

	UserID            string    `bun:"user_id,pk"`
	DailyEmailLimit   int       `bun:"daily_email_limit,notnull"`
	MonthlyTokenLimit int       `bun:"monthly_token_limit,notnull"`
	DailySpendLimit   float64   `bun:"daily_spend_limit,notnull"`
	MonthlySpendLimit float64   `bun:"monthly_spend_limit,notnull"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type credentialRecord struct {
	bun.BaseModel `bun:"table:credentials,alias:cr"`

	ID               string         `bun:"id,pk"`
	UserID           string         `bun:"user_id,notnull"`
	CredentialType   string         `bun:"credential_type,notnull"`
	EncryptedPayload string         `bun:"encrypted_payload,notnull"`
	ExpiresAt        *time.Time     `bun:"expires_at,nullzero"`
	IsActive         bool           `bun:"is_active,notnull"`
	Metadata         map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt        time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type oauthStateRecord struct {
	bun.BaseModel `bun:"table:oauth_states,alias:os"`

	ID        string         `bun:"id,pk"`
	State     string         `bun:"state,notnull"`
	UserID    string         `bun:"user_id,notnull"`
	Provider  string         `bun:"provider,notnull"`
	Metadata  map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	ExpiresAt time.Time      `bun:"expires_at,notnull"`
}

func newUserRecord(user core.User) *userRecord {
	return &userRecord{
		ID:        strings.TrimSpace(user.ID),
		Email:     core.NormalizeEmail(user.Email),
		Name:      user.Name,
		Image:     user.Image,
		CreatedAt: user.CreatedAt.UTC(),
		UpdatedAt: user.UpdatedAt.UTC(),
	}
}

func (r *userRecord) toDomain() core.User {
	if r == nil {
		return core.User{}
	}
	return core.User{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		Image:     r.Image,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func newUserProfileRecord(profile core.UserProfile) *userProfileRecord {
	return &userProfileRecord{
		UserID:            strings.TrimSpace(profile.UserID),
		MonitoringEnabled: profile.MonitoringEnabled,
		AIModelPreference: profile.AIModelPreference,
		PipedriveDomain:   profile.PipedriveDomain,
		CreatedAt:         profile.CreatedAt.UTC(),
		UpdatedAt:         profile.UpdatedAt.UTC(),
	}
}

func (r *userProfileRecord) toDomain() core.UserProfile {
	if r == nil {
		return core.UserProfile{}
	}
	return core.UserProfile{
		UserID:            r.UserID,
		MonitoringEnabled: r.MonitoringEnabled,
		AIModelPreference: r.AIModelPreference,
		PipedriveDomain:   r.PipedriveDomain,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

func newUsageLimitRecord(limits core.UsageLimit) *usageLimitRecord {
	return &usageLimitRecord{
		UserID:            strings.TrimSpace(limits.UserID),
		DailyEmailLimit:   limits.DailyEmailLimit,
		MonthlyTokenLimit: limits.MonthlyTokenLimit,
		DailySpendLimit:   limits.DailySpendLimit,
		MonthlySpendLimit: limits.MonthlySpendLimit,
		CreatedAt:         limits.CreatedAt.UTC(),
		UpdatedAt:         limits.UpdatedAt.UTC(),
	}
}

func (r *usageLimitRecord) toDomain() core.UsageLimit {
	if r == nil {
		return core.UsageLimit{}
	}
	return core.UsageLimit{
		UserID:            r.UserID,
		DailyEmailLimit:   r.DailyEmailLimit,
		MonthlyTokenLimit: r.MonthlyTokenLimit,
		DailySpendLimit:   r.DailySpendLimit,
		MonthlySpendLimit: r.MonthlySpendLimit,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

func (r *credentialRecord) toDomain() core.Credential {
	if r == nil {
		return core.Credential{}
	}
	return core.Credential{
		ID:               r.ID,
		UserID:           r.UserID,
		CredentialType:   r.CredentialType,
		EncryptedPayload: r.EncryptedPayload,
		ExpiresAt:        utcTimePointer(r.ExpiresAt),
		IsActive:         r.IsActive,
		Metadata:         copyAnyMap(r.Metadata),
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func newOAuthStateRecord(record core.OAuthStateRecord) *oauthStateRecord {
	return &oauthStateRecord{
		ID:        strings.TrimSpace(record.ID),
		State:     strings.TrimSpace(record.State),
		UserID:    strings.TrimSpace(record.UserID),
		Provider:  strings.TrimSpace(record.Provider),
		Metadata:  record.Metadata.Map(),
		CreatedAt: record.CreatedAt.UTC(),
		ExpiresAt: record.ExpiresAt.UTC(),
	}
}

func (r *oauthStateRecord) toDomain() core.OAuthStateRecord {
	if r == nil {
		return core.OAuthStateRecord{}
	}
	return core.OAuthStateRecord{
		ID:        r.ID,
		State:     r.State,
		UserID:    r.UserID,
		Provider:  r.Provider,
		Metadata:  core.StateMetadataFromMap(r.Metadata),
		CreatedAt: r.CreatedAt.UTC(),
		ExpiresAt: r.ExpiresAt.UTC(),
	}
}

func utcTimePointer(input *time.Time) *time.Time {
	if input == nil || input.IsZero() {
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
