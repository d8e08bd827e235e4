package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-credvault/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const userCacheKeyPrefix = "go-credvault::users::v1"

// CachedUserStore serves id lookups, profiles and usage limits through a
// read-through cache. Email lookups and creation always hit the base store.
type CachedUserStore struct {
	base  core.UserStore
	cache repositorycache.CacheService
}

func NewCachedUserStore(base core.UserStore, cacheService repositorycache.CacheService) (*CachedUserStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base user store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: user cache service is required")
	}
	return &CachedUserStore{base: base, cache: cacheService}, nil
}

// UserCacheKey returns go-credvault::users::v1::<kind>::<user_id> with the id
// URL-path escaped.
func UserCacheKey(kind string, userID string) (string, error) {
	kind = strings.TrimSpace(strings.ToLower(kind))
	userID = strings.TrimSpace(userID)
	if kind == "" || userID == "" {
		return "", fmt.Errorf("sqlstore: cache key kind and user id are required")
	}
	return strings.Join([]string{userCacheKeyPrefix, kind, url.PathEscape(userID)}, "::"), nil
}

func (s *CachedUserStore) CreateWithDefaults(
	ctx context.Context,
	user core.User,
	profile core.UserProfile,
	limits core.UsageLimit,
) (core.User, error) {
	if s == nil || s.base == nil {
		return core.User{}, fmt.Errorf("sqlstore: cached user store is not configured")
	}
	return s.base.CreateWithDefaults(ctx, user, profile, limits)
}

func (s *CachedUserStore) GetByID(ctx context.Context, id string) (core.User, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.User{}, fmt.Errorf("sqlstore: cached user store is not configured")
	}
	cacheKey, err := UserCacheKey("user", id)
	if err != nil {
		return core.User{}, core.ErrUserNotFound
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.User, error) {
		return s.base.GetByID(ctx, strings.TrimSpace(id))
	})
}

func (s *CachedUserStore) GetByEmail(ctx context.Context, email string) (core.User, error) {
	if s == nil || s.base == nil {
		return core.User{}, fmt.Errorf("sqlstore: cached user store is not configured")
	}
	return s.base.GetByEmail(ctx, email)
}

func (s *CachedUserStore) GetProfile(ctx context.Context, userID string) (core.UserProfile, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.UserProfile{}, fmt.Errorf("sqlstore: cached user store is not configured")
	}
	cacheKey, err := UserCacheKey("profile", userID)
	if err != nil {
		return core.UserProfile{}, core.ErrUserNotFound
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.UserProfile, error) {
		return s.base.GetProfile(ctx, strings.TrimSpace(userID))
	})
}

func (s *CachedUserStore) UpdateProfile(ctx context.Context, profile core.UserProfile) (core.UserProfile, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.UserProfile{}, fmt.Errorf("sqlstore: cached user store is not configured")
	}
	updated, err := s.base.UpdateProfile(ctx, profile)
	if err != nil {
		return core.UserProfile{}, err
	}
	cacheKey, err := UserCacheKey("profile", updated.UserID)
	if err != nil {
		return core.UserProfile{}, err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return core.UserProfile{}, err
	}
	return updated, nil
}

func (s *CachedUserStore) UpdateUsageLimits(ctx context.Context, limits core.UsageLimit) (core.UsageLimit, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.UsageLimit{}, fmt.Errorf("sqlstore: cached user store is not configured")
	}
	updated, err := s.base.UpdateUsageLimits(ctx, limits)
	if err != nil {
		return core.UsageLimit{}, err
	}
	cacheKey, err := UserCacheKey("limits", updated.UserID)
	if err != nil {
		return core.UsageLimit{}, err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return core.UsageLimit{}, err
	}
	return updated, nil
}

func (s *CachedUserStore) GetUsageLimits(ctx context.Context, userID string) (core.UsageLimit, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.UsageLimit{}, fmt.Errorf("sqlstore: cached user store is not configured")
	}
	cacheKey, err := UserCacheKey("limits", userID)
	if err != nil {
		return core.UsageLimit{}, core.ErrUserNotFound
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.UsageLimit, error) {
		return s.base.GetUsageLimits(ctx, strings.TrimSpace(userID))
	})
}
