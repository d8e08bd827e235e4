package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryUserStore struct {
	mu       sync.RWMutex
	users    map[string]User
	byEmail  map[string]string
	profiles map[string]UserProfile
	limits   map[string]UsageLimit
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:    map[string]User{},
		byEmail:  map[string]string{},
		profiles: map[string]UserProfile{},
		limits:   map[string]UsageLimit{},
	}
}

func (s *MemoryUserStore) CreateWithDefaults(_ context.Context, user User, profile UserProfile, limits UsageLimit) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("core: user store is not configured")
	}
	user.Email = NormalizeEmail(user.Email)
	if strings.TrimSpace(user.ID) == "" {
		user.ID = uuid.NewString()
	}
	if user.Email == "" {
		return User{}, fmt.Errorf("core: user email is required")
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[user.Email]; exists {
		return User{}, ErrUserEmailExists
	}
	if _, exists := s.users[user.ID]; exists {
		return User{}, fmt.Errorf("core: user id already exists")
	}
	profile.UserID = user.ID
	limits.UserID = user.ID
	s.users[user.ID] = user
	s.byEmail[user.Email] = user.ID
	s.profiles[user.ID] = profile
	s.limits[user.ID] = limits
	return user, nil
}

func (s *MemoryUserStore) GetByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[strings.TrimSpace(id)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (s *MemoryUserStore) GetByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *MemoryUserStore) GetProfile(_ context.Context, userID string) (UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[strings.TrimSpace(userID)]
	if !ok {
		return UserProfile{}, ErrUserNotFound
	}
	return profile, nil
}

func (s *MemoryUserStore) UpdateProfile(_ context.Context, profile UserProfile) (UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.profiles[strings.TrimSpace(profile.UserID)]
	if !ok {
		return UserProfile{}, ErrUserNotFound
	}
	profile.CreatedAt = current.CreatedAt
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = time.Now().UTC()
	}
	s.profiles[profile.UserID] = profile
	return profile, nil
}

func (s *MemoryUserStore) GetUsageLimits(_ context.Context, userID string) (UsageLimit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limits, ok := s.limits[strings.TrimSpace(userID)]
	if !ok {
		return UsageLimit{}, ErrUserNotFound
	}
	return limits, nil
}

func (s *MemoryUserStore) UpdateUsageLimits(_ context.Context, limits UsageLimit) (UsageLimit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limits.UserID = strings.TrimSpace(limits.UserID)
	if _, ok := s.users[limits.UserID]; !ok {
		return UsageLimit{}, ErrUserNotFound
	}
	now := time.Now().UTC()
	if current, ok := s.limits[limits.UserID]; ok {
		limits.CreatedAt = current.CreatedAt
	} else if limits.CreatedAt.IsZero() {
		limits.CreatedAt = now
	}
	if limits.UpdatedAt.IsZero() {
		limits.UpdatedAt = now
	}
	s.limits[limits.UserID] = limits
	return limits, nil
}

type MemoryCredentialStore struct {
	mu          sync.RWMutex
	credentials map[string]Credential
	nowFn       func() time.Time
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		credentials: map[string]Credential{},
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

func credentialKey(userID string, credentialType string) string {
	return strings.TrimSpace(userID) + "\x00" + strings.TrimSpace(credentialType)
}

func (s *MemoryCredentialStore) Upsert(_ context.Context, in UpsertCredentialInput) (Credential, error) {
	if s == nil {
		return Credential{}, fmt.Errorf("core: credential store is not configured")
	}
	userID := strings.TrimSpace(in.UserID)
	credentialType := strings.TrimSpace(in.CredentialType)
	if userID == "" || credentialType == "" {
		return Credential{}, fmt.Errorf("core: user id and credential type are required")
	}
	now := s.nowFn()
	key := credentialKey(userID, credentialType)

	s.mu.Lock()
	defer s.mu.Unlock()
	credential, exists := s.credentials[key]
	if !exists {
		credential = Credential{
			ID:             uuid.NewString(),
			UserID:         userID,
			CredentialType: credentialType,
			CreatedAt:      now,
		}
	}
	credential.EncryptedPayload = in.EncryptedPayload
	credential.ExpiresAt = cloneTimePointer(in.ExpiresAt)
	credential.Metadata = copyAnyMap(in.Metadata)
	credential.IsActive = true
	credential.UpdatedAt = now
	s.credentials[key] = credential
	return cloneCredential(credential), nil
}

func (s *MemoryCredentialStore) Get(_ context.Context, userID string, credentialType string) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credential, ok := s.credentials[credentialKey(userID, credentialType)]
	if !ok {
		return Credential{}, ErrCredentialNotFound
	}
	return cloneCredential(credential), nil
}

func (s *MemoryCredentialStore) Delete(_ context.Context, userID string, credentialType string) (bool, error) {
	key := credentialKey(userID, credentialType)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credentials[key]; !ok {
		return false, nil
	}
	delete(s.credentials, key)
	return true, nil
}

func (s *MemoryCredentialStore) Deactivate(_ context.Context, userID string, credentialType string) error {
	key := credentialKey(userID, credentialType)
	s.mu.Lock()
	defer s.mu.Unlock()
	credential, ok := s.credentials[key]
	if !ok {
		return ErrCredentialNotFound
	}
	credential.IsActive = false
	credential.UpdatedAt = s.nowFn()
	s.credentials[key] = credential
	return nil
}

func (s *MemoryCredentialStore) ListByUser(_ context.Context, userID string) ([]Credential, error) {
	userID = strings.TrimSpace(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Credential, 0)
	for _, credential := range s.credentials {
		if credential.UserID == userID {
			out = append(out, cloneCredential(credential))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CredentialType < out[j].CredentialType
	})
	return out, nil
}

func cloneCredential(credential Credential) Credential {
	cloned := credential
	cloned.ExpiresAt = cloneTimePointer(credential.ExpiresAt)
	cloned.Metadata = copyAnyMap(credential.Metadata)
	return cloned
}
