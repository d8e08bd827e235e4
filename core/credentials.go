package core

import (
	"context"
	"errors"
	"strings"
	"time"
)

type PutCredentialRequest struct {
	UserRef        UserRef
	CredentialType string
	Data           any
	ExpiresAt      *time.Time
	Metadata       map[string]any
}

// CredentialWriter stores a credential for an already resolved user id.
type CredentialWriter interface {
	StoreCredential(
		ctx context.Context,
		userID string,
		credentialType string,
		data any,
		expiresAt *time.Time,
		metadata map[string]any,
	) (CredentialSummary, error)
}

func (s *Service) PutCredential(ctx context.Context, req PutCredentialRequest) (summary CredentialSummary, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"credential_type": req.CredentialType,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "put_credential", err, fields)
	}()

	userID, err := s.resolveUser(ctx, req.UserRef)
	if err != nil {
		return CredentialSummary{}, err
	}
	fields["user_id"] = userID
	summary, err = s.StoreCredential(ctx, userID, req.CredentialType, req.Data, req.ExpiresAt, req.Metadata)
	if err != nil {
		err = s.mapError(err)
		return CredentialSummary{}, err
	}
	return summary, nil
}

// StoreCredential encodes, encrypts and upserts a credential. The row is
// reactivated when it already exists.
func (s *Service) StoreCredential(
	ctx context.Context,
	userID string,
	credentialType string,
	data any,
	expiresAt *time.Time,
	metadata map[string]any,
) (CredentialSummary, error) {
	if s == nil || s.credentialStore == nil || s.encryptor == nil {
		return CredentialSummary{}, errors.New("core: credential vault is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return CredentialSummary{}, badInputError("user id is required", "user_id")
	}
	credentialType = strings.TrimSpace(credentialType)
	if credentialType == "" {
		return CredentialSummary{}, badInputError("credential type is required", "credential_type")
	}
	text, err := s.credentialCodec.Encode(data)
	if err != nil {
		return CredentialSummary{}, badInputError(err.Error(), "data")
	}
	sealed, err := s.encryptor.Encrypt(ctx, []byte(text))
	if err != nil {
		return CredentialSummary{}, err
	}
	stored, err := s.credentialStore.Upsert(ctx, UpsertCredentialInput{
		UserID:           userID,
		CredentialType:   credentialType,
		EncryptedPayload: sealed,
		ExpiresAt:        cloneTimePointer(expiresAt),
		Metadata:         copyAnyMap(metadata),
	})
	if err != nil {
		return CredentialSummary{}, err
	}
	return stored.Summary(), nil
}

// GetCredential returns the decrypted credential. It reports false when the
// row is missing, inactive, expired, or cannot be decrypted.
func (s *Service) GetCredential(ctx context.Context, ref UserRef, credentialType string) (CredentialValue, bool, error) {
	credentialType = strings.TrimSpace(credentialType)
	if credentialType == "" {
		return CredentialValue{}, false, s.mapError(badInputError("credential type is required", "credential_type"))
	}
	userID, err := s.resolveUser(ctx, ref)
	if err != nil {
		return CredentialValue{}, false, err
	}
	credential, ok, err := s.loadAvailableCredential(ctx, userID, credentialType)
	if err != nil || !ok {
		return CredentialValue{}, false, err
	}
	return s.openCredential(ctx, credential)
}

func (s *Service) DeleteCredential(ctx context.Context, ref UserRef, credentialType string) (removed bool, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"credential_type": credentialType,
	}
	defer func() {
		fields["removed"] = removed
		s.observeOperation(ctx, startedAt, "delete_credential", err, fields)
	}()

	credentialType = strings.TrimSpace(credentialType)
	if credentialType == "" {
		err = s.mapError(badInputError("credential type is required", "credential_type"))
		return false, err
	}
	userID, err := s.resolveUser(ctx, ref)
	if err != nil {
		return false, err
	}
	removed, err = s.credentialStore.Delete(ctx, userID, credentialType)
	if err != nil {
		err = s.mapError(err)
		return false, err
	}
	return removed, nil
}

// ListCredentials returns summaries only; payloads never leave through listing.
func (s *Service) ListCredentials(ctx context.Context, ref UserRef) ([]CredentialSummary, error) {
	userID, err := s.resolveUser(ctx, ref)
	if err != nil {
		return nil, err
	}
	credentials, err := s.credentialStore.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.mapError(err)
	}
	summaries := make([]CredentialSummary, 0, len(credentials))
	for _, credential := range credentials {
		summaries = append(summaries, credential.Summary())
	}
	return summaries, nil
}

func (s *Service) loadAvailableCredential(ctx context.Context, userID string, credentialType string) (Credential, bool, error) {
	credential, err := s.credentialStore.Get(ctx, userID, credentialType)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return Credential{}, false, nil
		}
		return Credential{}, false, s.mapError(err)
	}
	if !credential.Available(s.now()) {
		return Credential{}, false, nil
	}
	return credential, true, nil
}

func (s *Service) openCredential(ctx context.Context, credential Credential) (CredentialValue, bool, error) {
	plaintext, ok := s.encryptor.Decrypt(ctx, credential.EncryptedPayload)
	if !ok {
		s.logError(ctx, "credential decryption failed", map[string]any{
			"user_id":         credential.UserID,
			"credential_type": credential.CredentialType,
		})
		return CredentialValue{}, false, nil
	}
	return s.credentialCodec.Decode(string(plaintext)), true, nil
}
