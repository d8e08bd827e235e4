package core

import (
	"context"
	"strings"
	"time"
)

const credentialMetadataUserInfo = "user_info"

// PersistTokenSet stores provider tokens under "{provider}_oauth" with the
// identity snapshot kept in metadata. Expiry is issuedAt + expires_in.
func PersistTokenSet(
	ctx context.Context,
	vault CredentialWriter,
	userID string,
	providerID string,
	tokens TokenSet,
	identity ProviderIdentity,
	issuedAt time.Time,
) (CredentialSummary, error) {
	if vault == nil {
		return CredentialSummary{}, badInputError("credential vault is required", "vault")
	}
	providerID = normalizeProviderID(providerID)
	if providerID == "" {
		return CredentialSummary{}, badInputError("provider is required", "provider")
	}
	if strings.TrimSpace(tokens.AccessToken) == "" {
		return CredentialSummary{}, badInputError("access token is required", "access_token")
	}
	if issuedAt.IsZero() {
		issuedAt = time.Now().UTC()
	}
	metadata := map[string]any{
		credentialMetadataUserInfo: identity.Map(),
	}
	return vault.StoreCredential(
		ctx,
		userID,
		OAuthCredentialType(providerID),
		tokens,
		tokens.ExpiresAt(issuedAt),
		metadata,
	)
}
