package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewUserRecords prepares a user with its default profile and usage limits.
// Stores persist the three rows together.
func NewUserRecords(in CreateUserInput, now time.Time) (User, UserProfile, UsageLimit, error) {
	email := NormalizeEmail(in.Email)
	if err := ValidateEmail(email); err != nil {
		return User{}, UserProfile{}, UsageLimit{}, badInputError("a valid email is required", "email")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	user := User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      strings.TrimSpace(in.Name),
		Image:     strings.TrimSpace(in.Image),
		CreatedAt: now,
		UpdatedAt: now,
	}
	profile := DefaultUserProfile(user.ID)
	profile.CreatedAt = now
	profile.UpdatedAt = now
	limits := DefaultUsageLimit(user.ID)
	limits.CreatedAt = now
	limits.UpdatedAt = now
	return user, profile, limits, nil
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (user User, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		if user.ID != "" {
			fields["user_id"] = user.ID
		}
		s.observeOperation(ctx, startedAt, "create_user", err, fields)
	}()

	record, profile, limits, err := NewUserRecords(in, s.now())
	if err != nil {
		err = s.mapError(err)
		return User{}, err
	}
	user, err = s.userStore.CreateWithDefaults(ctx, record, profile, limits)
	if err != nil {
		err = s.mapError(err)
		return User{}, err
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return User{}, s.mapError(badInputError("user id is malformed", "user_id"))
	}
	user, err := s.userStore.GetByID(ctx, parsed.String())
	if err != nil {
		return User{}, s.mapError(err)
	}
	return user, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return User{}, s.mapError(badInputError("a valid email is required", "email"))
	}
	user, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		return User{}, s.mapError(err)
	}
	return user, nil
}

// ResolveUser parses a caller supplied identifier and returns the canonical id.
func (s *Service) ResolveUser(ctx context.Context, raw string) (string, error) {
	ref, err := ParseUserRef(raw)
	if err != nil {
		return "", s.mapError(err)
	}
	return s.resolveUser(ctx, ref)
}

func (s *Service) GetProfile(ctx context.Context, ref UserRef) (UserProfile, error) {
	userID, err := s.resolveUser(ctx, ref)
	if err != nil {
		return UserProfile{}, err
	}
	profile, err := s.userStore.GetProfile(ctx, userID)
	if err != nil {
		return UserProfile{}, s.mapError(err)
	}
	return profile, nil
}

func (s *Service) UpdateProfile(ctx context.Context, ref UserRef, in UpdateProfileInput) (profile UserProfile, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_profile", err, fields)
	}()

	if in.AIModelPreference != nil && !slices.Contains(allowedAIModelPreferences, strings.TrimSpace(*in.AIModelPreference)) {
		err = s.mapError(badInputError(
			fmt.Sprintf("ai_model_preference must be one of %s", strings.Join(allowedAIModelPreferences, ", ")),
			"ai_model_preference",
		))
		return UserProfile{}, err
	}
	userID, err := s.resolveUser(ctx, ref)
	if err != nil {
		return UserProfile{}, err
	}
	fields["user_id"] = userID

	profile, err = s.userStore.GetProfile(ctx, userID)
	if err != nil {
		err = s.mapError(err)
		return UserProfile{}, err
	}
	if in.MonitoringEnabled != nil {
		profile.MonitoringEnabled = *in.MonitoringEnabled
	}
	if in.AIModelPreference != nil {
		profile.AIModelPreference = strings.TrimSpace(*in.AIModelPreference)
	}
	if in.PipedriveDomain != nil {
		profile.PipedriveDomain = strings.TrimSpace(*in.PipedriveDomain)
	}
	profile.UpdatedAt = s.now()

	profile, err = s.userStore.UpdateProfile(ctx, profile)
	if err != nil {
		err = s.mapError(err)
		return UserProfile{}, err
	}
	return profile, nil
}

func (s *Service) GetUsageLimits(ctx context.Context, ref UserRef) (UsageLimit, error) {
	userID, err := s.resolveUser(ctx, ref)
	if err != nil {
		return UsageLimit{}, err
	}
	limits, err := s.userStore.GetUsageLimits(ctx, userID)
	if err != nil {
		return UsageLimit{}, s.mapError(err)
	}
	return limits, nil
}

// UpdateUsageLimits applies the supplied limits. A user whose limits row is
// missing gets the defaults before the update.
func (s *Service) UpdateUsageLimits(ctx context.Context, ref UserRef, in UpdateUsageLimitsInput) (limits UsageLimit, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_usage_limits", err, fields)
	}()

	if err = validateUsageLimitsInput(in); err != nil {
		err = s.mapError(err)
		return UsageLimit{}, err
	}
	userID, err := s.resolveUser(ctx, ref)
	if err != nil {
		return UsageLimit{}, err
	}
	fields["user_id"] = userID

	now := s.now()
	limits, err = s.userStore.GetUsageLimits(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		limits = DefaultUsageLimit(userID)
		limits.CreatedAt = now
		err = nil
	}
	if err != nil {
		err = s.mapError(err)
		return UsageLimit{}, err
	}
	if in.DailyEmailLimit != nil {
		limits.DailyEmailLimit = *in.DailyEmailLimit
	}
	if in.MonthlyTokenLimit != nil {
		limits.MonthlyTokenLimit = *in.MonthlyTokenLimit
	}
	if in.DailySpendLimit != nil {
		limits.DailySpendLimit = *in.DailySpendLimit
	}
	if in.MonthlySpendLimit != nil {
		limits.MonthlySpendLimit = *in.MonthlySpendLimit
	}
	limits.UpdatedAt = now

	limits, err = s.userStore.UpdateUsageLimits(ctx, limits)
	if err != nil {
		err = s.mapError(err)
		return UsageLimit{}, err
	}
	return limits, nil
}

func validateUsageLimitsInput(in UpdateUsageLimitsInput) error {
	switch {
	case in.DailyEmailLimit != nil && *in.DailyEmailLimit < 0:
		return badInputError("daily_email_limit must not be negative", "daily_email_limit")
	case in.MonthlyTokenLimit != nil && *in.MonthlyTokenLimit < 0:
		return badInputError("monthly_token_limit must not be negative", "monthly_token_limit")
	case in.DailySpendLimit != nil && (*in.DailySpendLimit < 0 || math.IsNaN(*in.DailySpendLimit)):
		return badInputError("daily_spend_limit must not be negative", "daily_spend_limit")
	case in.MonthlySpendLimit != nil && (*in.MonthlySpendLimit < 0 || math.IsNaN(*in.MonthlySpendLimit)):
		return badInputError("monthly_spend_limit must not be negative", "monthly_spend_limit")
	}
	return nil
}
