package core

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultOAuthStateTTL = 5 * time.Minute
	OAuthStateLength     = 32

	oauthStateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// StateRegistry issues and validates single-use CSRF states for the
// authorization code flow.
type StateRegistry struct {
	store    OAuthStateStore
	resolver UserResolver
	ttl      time.Duration
	now      func() time.Time
}

func NewStateRegistry(store OAuthStateStore, resolver UserResolver, ttl time.Duration) *StateRegistry {
	if ttl <= 0 {
		ttl = DefaultOAuthStateTTL
	}
	return &StateRegistry{
		store:    store,
		resolver: resolver,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *StateRegistry) TTL() time.Duration {
	if r == nil {
		return DefaultOAuthStateTTL
	}
	return r.ttl
}

// Issue binds a fresh state to the resolved user and provider. A collision with
// a pending state fails the call instead of replacing it.
func (r *StateRegistry) Issue(ctx context.Context, ref UserRef, providerID string, metadata StateMetadata) (string, error) {
	if r == nil || r.store == nil {
		return "", fmt.Errorf("core: oauth state store is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return "", badInputError("provider is required", "provider")
	}
	userID, err := r.resolveUser(ctx, ref)
	if err != nil {
		return "", err
	}

	state, err := generateOAuthState()
	if err != nil {
		return "", err
	}
	createdAt := r.now().UTC()
	record := OAuthStateRecord{
		ID:        uuid.NewString(),
		State:     state,
		UserID:    userID,
		Provider:  providerID,
		Metadata:  metadata.clone(),
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(r.ttl),
	}
	if err := r.store.Insert(ctx, record); err != nil {
		if errors.Is(err, ErrOAuthStateExists) {
			return "", fmt.Errorf("core: oauth state collision, retry authorization: %w", err)
		}
		return "", err
	}
	return state, nil
}

// Validate consumes the state. It reports false for unknown, expired, or
// already consumed states; errors are reserved for storage failures.
func (r *StateRegistry) Validate(ctx context.Context, state string) (StateBinding, bool, error) {
	if r == nil || r.store == nil {
		return StateBinding{}, false, fmt.Errorf("core: oauth state store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return StateBinding{}, false, nil
	}
	record, err := r.store.Consume(ctx, state, r.now().UTC())
	if err != nil {
		if errors.Is(err, ErrOAuthStateNotFound) {
			return StateBinding{}, false, nil
		}
		return StateBinding{}, false, err
	}
	return record.Binding(), true, nil
}

func (r *StateRegistry) PruneExpired(ctx context.Context) (int, error) {
	if r == nil || r.store == nil {
		return 0, fmt.Errorf("core: oauth state store is not configured")
	}
	return r.store.PruneExpired(ctx, r.now().UTC())
}

func (r *StateRegistry) resolveUser(ctx context.Context, ref UserRef) (string, error) {
	if err := ref.Validate(); err != nil {
		return "", err
	}
	if r.resolver == nil {
		return "", fmt.Errorf("core: user resolver is required")
	}
	return r.resolver.Resolve(ctx, ref)
}

type MemoryOAuthStateStore struct {
	mu      sync.Mutex
	entries map[string]OAuthStateRecord
}

func NewMemoryOAuthStateStore() *MemoryOAuthStateStore {
	return &MemoryOAuthStateStore{entries: map[string]OAuthStateRecord{}}
}

func (s *MemoryOAuthStateStore) Insert(_ context.Context, record OAuthStateRecord) error {
	if s == nil {
		return fmt.Errorf("core: oauth state store is not configured")
	}
	state := strings.TrimSpace(record.State)
	if state == "" {
		return fmt.Errorf("core: oauth state is required")
	}
	if record.ExpiresAt.IsZero() {
		return fmt.Errorf("core: oauth state expiry is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[state]; exists {
		return ErrOAuthStateExists
	}
	s.entries[state] = cloneOAuthStateRecord(record)
	return nil
}

func (s *MemoryOAuthStateStore) Consume(_ context.Context, state string, now time.Time) (OAuthStateRecord, error) {
	if s == nil {
		return OAuthStateRecord{}, fmt.Errorf("core: oauth state store is not configured")
	}
	state = strings.TrimSpace(state)

	s.mu.Lock()
	record, ok := s.entries[state]
	if ok {
		delete(s.entries, state)
	}
	s.mu.Unlock()

	if !ok || !now.Before(record.ExpiresAt) {
		return OAuthStateRecord{}, ErrOAuthStateNotFound
	}
	return cloneOAuthStateRecord(record), nil
}

func (s *MemoryOAuthStateStore) PruneExpired(_ context.Context, now time.Time) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("core: oauth state store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for state, record := range s.entries {
		if !now.Before(record.ExpiresAt) {
			delete(s.entries, state)
			pruned++
		}
	}
	return pruned, nil
}

func generateOAuthState() (string, error) {
	limit := big.NewInt(int64(len(oauthStateAlphabet)))
	var builder strings.Builder
	builder.Grow(OAuthStateLength)
	for range OAuthStateLength {
		index, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("core: generate oauth state: %w", err)
		}
		builder.WriteByte(oauthStateAlphabet[index.Int64()])
	}
	return builder.String(), nil
}

func cloneOAuthStateRecord(record OAuthStateRecord) OAuthStateRecord {
	cloned := record
	cloned.Metadata = record.Metadata.clone()
	return cloned
}
