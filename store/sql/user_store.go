package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-credvault/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type UserStore struct {
	db          *bun.DB
	users       repository.Repository[*userRecord]
	profiles    repository.Repository[*userProfileRecord]
	usageLimits repository.Repository[*usageLimitRecord]
}

func NewUserStore(db *bun.DB) (*UserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	users := repository.NewRepository[*userRecord](db, userHandlers())
	if validator, ok := users.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid user repository wiring: %w", err)
		}
	}
	profiles := repository.NewRepository[*userProfileRecord](db, userProfileHandlers())
	if validator, ok := profiles.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid user profile repository wiring: %w", err)
		}
	}
	usageLimits := repository.NewRepository[*usageLimitRecord](db, usageLimitHandlers())
	if validator, ok := usageLimits.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid usage limit repository wiring: %w", err)
		}
	}
	return &UserStore{
		db:          db,
		users:       users,
		profiles:    profiles,
		usageLimits: usageLimits,
	}, nil
}

// CreateWithDefaults writes the user row together with its profile and usage
// limits. Either all three rows exist afterwards or none do.
func (s *UserStore) CreateWithDefaults(
	ctx context.Context,
	user core.User,
	profile core.UserProfile,
	limits core.UsageLimit,
) (core.User, error) {
	if s == nil || s.db == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	user.Email = core.NormalizeEmail(user.Email)
	if user.Email == "" {
		return core.User{}, fmt.Errorf("sqlstore: user email is required")
	}
	if strings.TrimSpace(user.ID) == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	profile.UserID = user.ID
	limits.UserID = user.ID
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = user.CreatedAt
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = profile.CreatedAt
	}
	if limits.CreatedAt.IsZero() {
		limits.CreatedAt = user.CreatedAt
	}
	if limits.UpdatedAt.IsZero() {
		limits.UpdatedAt = limits.CreatedAt
	}

	userRow := newUserRecord(user)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(userRow).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return core.ErrUserEmailExists
			}
			return err
		}
		if _, err := tx.NewInsert().Model(newUserProfileRecord(profile)).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(newUsageLimitRecord(limits)).Exec(ctx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return core.User{}, err
	}
	return userRow.toDomain(), nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (core.User, error) {
	return s.findUser(ctx, "id", strings.TrimSpace(id))
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (core.User, error) {
	return s.findUser(ctx, "email", core.NormalizeEmail(email))
}

func (s *UserStore) findUser(ctx context.Context, column string, value string) (core.User, error) {
	if s == nil || s.users == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	if value == "" {
		return core.User{}, core.ErrUserNotFound
	}
	records, _, err := s.users.List(ctx,
		repository.SelectBy(column, "=", value),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.User{}, err
	}
	if len(records) == 0 {
		return core.User{}, core.ErrUserNotFound
	}
	return records[0].toDomain(), nil
}

func (s *UserStore) GetProfile(ctx context.Context, userID string) (core.UserProfile, error) {
	if s == nil || s.profiles == nil {
		return core.UserProfile{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	records, _, err := s.profiles.List(ctx,
		repository.SelectBy("user_id", "=", strings.TrimSpace(userID)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.UserProfile{}, err
	}
	if len(records) == 0 {
		return core.UserProfile{}, core.ErrUserNotFound
	}
	return records[0].toDomain(), nil
}

func (s *UserStore) UpdateProfile(ctx context.Context, profile core.UserProfile) (core.UserProfile, error) {
	if s == nil || s.db == nil {
		return core.UserProfile{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	userID := strings.TrimSpace(profile.UserID)
	if userID == "" {
		return core.UserProfile{}, core.ErrUserNotFound
	}
	updatedAt := profile.UpdatedAt.UTC()
	if profile.UpdatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	var updated core.UserProfile
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*userProfileRecord)(nil)).
			Set("monitoring_enabled = ?", profile.MonitoringEnabled).
			Set("ai_model_preference = ?", profile.AIModelPreference).
			Set("pipedrive_domain = ?", profile.PipedriveDomain).
			Set("updated_at = ?", updatedAt).
			Where("user_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, rowsErr := res.RowsAffected(); rowsErr == nil && affected == 0 {
			return core.ErrUserNotFound
		}
		record := &userProfileRecord{}
		if err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.user_id = ?", userID).
			Limit(1).
			Scan(ctx); err != nil {
			return err
		}
		updated = record.toDomain()
		return nil
	})
	if err != nil {
		return core.UserProfile{}, err
	}
	return updated, nil
}

func (s *UserStore) GetUsageLimits(ctx context.Context, userID string) (core.UsageLimit, error) {
	if s == nil || s.usageLimits == nil {
		return core.UsageLimit{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	records, _, err := s.usageLimits.List(ctx,
		repository.SelectBy("user_id", "=", strings.TrimSpace(userID)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.UsageLimit{}, err
	}
	if len(records) == 0 {
		return core.UsageLimit{}, core.ErrUserNotFound
	}
	return records[0].toDomain(), nil
}

// UpdateUsageLimits upserts the limits row keyed by user_id and returns the
// stored values.
func (s *UserStore) UpdateUsageLimits(ctx context.Context, limits core.UsageLimit) (core.UsageLimit, error) {
	if s == nil || s.db == nil {
		return core.UsageLimit{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	limits.UserID = strings.TrimSpace(limits.UserID)
	if limits.UserID == "" {
		return core.UsageLimit{}, core.ErrUserNotFound
	}
	now := time.Now().UTC()
	if limits.CreatedAt.IsZero() {
		limits.CreatedAt = now
	}
	if limits.UpdatedAt.IsZero() {
		limits.UpdatedAt = now
	}

	var updated core.UsageLimit
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*userRecord)(nil)).
			Where("?TableAlias.id = ?", limits.UserID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return core.ErrUserNotFound
		}
		if _, err := tx.NewInsert().
			Model(newUsageLimitRecord(limits)).
			On("CONFLICT (user_id) DO UPDATE").
			Set("daily_email_limit = EXCLUDED.daily_email_limit").
			Set("monthly_token_limit = EXCLUDED.monthly_token_limit").
			Set("daily_spend_limit = EXCLUDED.daily_spend_limit").
			Set("monthly_spend_limit = EXCLUDED.monthly_spend_limit").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx); err != nil {
			return err
		}
		record := &usageLimitRecord{}
		if err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.user_id = ?", limits.UserID).
			Limit(1).
			Scan(ctx); err != nil {
			return err
		}
		updated = record.toDomain()
		return nil
	})
	if err != nil {
		return core.UsageLimit{}, err
	}
	return updated, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
