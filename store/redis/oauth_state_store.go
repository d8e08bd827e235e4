package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-credvault/core"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "credvault:oauth_state:"

type Option func(*OAuthStateStore)

func WithKeyPrefix(prefix string) Option {
	return func(s *OAuthStateStore) {
		if trimmed := strings.TrimSpace(prefix); trimmed != "" {
			s.prefix = trimmed
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *OAuthStateStore) {
		if now != nil {
			s.now = now
		}
	}
}

// OAuthStateStore keeps pending states as JSON strings whose Redis TTL matches
// the state expiry. SETNX rejects duplicates and GETDEL makes consumption a
// single atomic step.
type OAuthStateStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

type stateEnvelope struct {
	ID        string         `json:"id"`
	State     string         `json:"state"`
	UserID    string         `json:"user_id"`
	Provider  string         `json:"provider"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

func NewOAuthStateStore(client redis.UniversalClient, opts ...Option) (*OAuthStateStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redisstore: redis client is required")
	}
	store := &OAuthStateStore{
		client: client,
		prefix: DefaultKeyPrefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *OAuthStateStore) Insert(ctx context.Context, record core.OAuthStateRecord) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redisstore: oauth state store is not configured")
	}
	state := strings.TrimSpace(record.State)
	if state == "" {
		return fmt.Errorf("redisstore: oauth state is required")
	}
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	payload, err := json.Marshal(stateEnvelope{
		ID:        record.ID,
		State:     state,
		UserID:    strings.TrimSpace(record.UserID),
		Provider:  strings.TrimSpace(record.Provider),
		Metadata:  record.Metadata.Map(),
		CreatedAt: record.CreatedAt.UTC(),
		ExpiresAt: record.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("redisstore: encode oauth state: %w", err)
	}

	ttl := record.ExpiresAt.Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	stored, err := s.client.SetNX(ctx, s.key(state), payload, ttl).Result()
	if err != nil {
		return err
	}
	if !stored {
		return core.ErrOAuthStateExists
	}
	return nil
}

func (s *OAuthStateStore) Consume(ctx context.Context, state string, now time.Time) (core.OAuthStateRecord, error) {
	if s == nil || s.client == nil {
		return core.OAuthStateRecord{}, fmt.Errorf("redisstore: oauth state store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return core.OAuthStateRecord{}, core.ErrOAuthStateNotFound
	}
	raw, err := s.client.GetDel(ctx, s.key(state)).Result()
	if errors.Is(err, redis.Nil) {
		return core.OAuthStateRecord{}, core.ErrOAuthStateNotFound
	}
	if err != nil {
		return core.OAuthStateRecord{}, err
	}

	var envelope stateEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return core.OAuthStateRecord{}, core.ErrOAuthStateNotFound
	}
	if !now.Before(envelope.ExpiresAt) {
		return core.OAuthStateRecord{}, core.ErrOAuthStateNotFound
	}
	return core.OAuthStateRecord{
		ID:        envelope.ID,
		State:     envelope.State,
		UserID:    envelope.UserID,
		Provider:  envelope.Provider,
		Metadata:  core.StateMetadataFromMap(envelope.Metadata),
		CreatedAt: envelope.CreatedAt.UTC(),
		ExpiresAt: envelope.ExpiresAt.UTC(),
	}, nil
}

// PruneExpired is a no-op: Redis expires keys on its own.
func (s *OAuthStateStore) PruneExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *OAuthStateStore) key(state string) string {
	return s.prefix + state
}

var _ core.OAuthStateStore = (*OAuthStateStore)(nil)
