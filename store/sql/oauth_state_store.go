package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-credvault/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type OAuthStateStore struct {
	db *bun.DB
}

func NewOAuthStateStore(db *bun.DB) (*OAuthStateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &OAuthStateStore{db: db}, nil
}

func (s *OAuthStateStore) Insert(ctx context.Context, record core.OAuthStateRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: oauth state store is not configured")
	}
	if strings.TrimSpace(record.State) == "" {
		return fmt.Errorf("sqlstore: oauth state is required")
	}
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.NewInsert().Model(newOAuthStateRecord(record)).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.ErrOAuthStateExists
		}
		return err
	}
	return nil
}

// Consume deletes the state row inside the transaction that reads it. A
// concurrent consumer that loses the delete sees ErrOAuthStateNotFound. Expired
// rows are removed as well but never returned.
func (s *OAuthStateStore) Consume(ctx context.Context, state string, now time.Time) (core.OAuthStateRecord, error) {
	if s == nil || s.db == nil {
		return core.OAuthStateRecord{}, fmt.Errorf("sqlstore: oauth state store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return core.OAuthStateRecord{}, core.ErrOAuthStateNotFound
	}

	var consumed core.OAuthStateRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &oauthStateRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.state = ?", state).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrOAuthStateNotFound
		}
		if err != nil {
			return err
		}

		res, err := tx.NewDelete().
			Model((*oauthStateRecord)(nil)).
			Where("id = ?", record.ID).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected != 1 {
			return core.ErrOAuthStateNotFound
		}
		consumed = record.toDomain()
		return nil
	})
	if err != nil {
		return core.OAuthStateRecord{}, err
	}
	if !now.Before(consumed.ExpiresAt) {
		return core.OAuthStateRecord{}, core.ErrOAuthStateNotFound
	}
	return consumed, nil
}

func (s *OAuthStateStore) PruneExpired(ctx context.Context, now time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: oauth state store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*oauthStateRecord)(nil)).
		Where("expires_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
