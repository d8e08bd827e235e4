package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-credvault/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type CredentialStore struct {
	db    *bun.DB
	repo  repository.Repository[*credentialRecord]
	nowFn func() time.Time
}

func NewCredentialStore(db *bun.DB) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*credentialRecord](db, credentialHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credential repository wiring: %w", err)
		}
	}
	return &CredentialStore{
		db:    db,
		repo:  repo,
		nowFn: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Upsert relies on the (user_id, credential_type) unique index so concurrent
// writers for the same pair converge on one row.
func (s *CredentialStore) Upsert(ctx context.Context, in core.UpsertCredentialInput) (core.Credential, error) {
	if s == nil || s.db == nil {
		return core.Credential{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	userID := strings.TrimSpace(in.UserID)
	credentialType := strings.TrimSpace(in.CredentialType)
	if userID == "" || credentialType == "" {
		return core.Credential{}, fmt.Errorf("sqlstore: user id and credential type are required")
	}
	now := s.nowFn()
	record := &credentialRecord{
		ID:               uuid.NewString(),
		UserID:           userID,
		CredentialType:   credentialType,
		EncryptedPayload: in.EncryptedPayload,
		ExpiresAt:        utcTimePointer(in.ExpiresAt),
		IsActive:         true,
		Metadata:         copyAnyMap(in.Metadata),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var stored core.Credential
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(record).
			On("CONFLICT (user_id, credential_type) DO UPDATE").
			Set("encrypted_payload = EXCLUDED.encrypted_payload").
			Set("expires_at = EXCLUDED.expires_at").
			Set("metadata = EXCLUDED.metadata").
			Set("is_active = EXCLUDED.is_active").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return err
		}
		current, err := selectCredential(ctx, tx, userID, credentialType)
		if err != nil {
			return err
		}
		stored = current.toDomain()
		return nil
	})
	if err != nil {
		return core.Credential{}, err
	}
	return stored, nil
}

func (s *CredentialStore) Get(ctx context.Context, userID string, credentialType string) (core.Credential, error) {
	if s == nil || s.db == nil {
		return core.Credential{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	record, err := selectCredential(ctx, s.db, strings.TrimSpace(userID), strings.TrimSpace(credentialType))
	if err != nil {
		return core.Credential{}, err
	}
	return record.toDomain(), nil
}

func (s *CredentialStore) Delete(ctx context.Context, userID string, credentialType string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: credential store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Where("credential_type = ?", strings.TrimSpace(credentialType)).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *CredentialStore) Deactivate(ctx context.Context, userID string, credentialType string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	res, err := s.db.NewUpdate().
		Model((*credentialRecord)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", s.nowFn()).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Where("credential_type = ?", strings.TrimSpace(credentialType)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, rowsErr := res.RowsAffected(); rowsErr == nil && affected == 0 {
		return core.ErrCredentialNotFound
	}
	return nil
}

func (s *CredentialStore) ListByUser(ctx context.Context, userID string) ([]core.Credential, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: credential store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", strings.TrimSpace(userID)),
		repository.OrderBy("credential_type ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Credential, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func selectCredential(ctx context.Context, db bun.IDB, userID string, credentialType string) (*credentialRecord, error) {
	record := &credentialRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.credential_type = ?", credentialType).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}
