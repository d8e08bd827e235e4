package core

import (
	"context"
	"fmt"
	"strings"
)

const (
	JobIDRefreshCredential = "credvault.refresh_credential"
	JobIDPruneOAuthStates  = "credvault.prune_oauth_states"

	jobParamProvider = "provider"
	jobParamUserID   = "user_id"
)

// NewRefreshJobMessage builds the job message that refreshes one OAuth
// credential. The idempotency key collapses duplicate refreshes per credential.
func NewRefreshJobMessage(providerID string, userID string) (*JobExecutionMessage, error) {
	providerID = normalizeProviderID(providerID)
	userID = strings.TrimSpace(userID)
	if providerID == "" {
		return nil, badInputError("provider is required", "provider")
	}
	if userID == "" {
		return nil, badInputError("user id is required", "user_id")
	}
	return &JobExecutionMessage{
		JobID:          JobIDRefreshCredential,
		ScriptPath:     JobIDRefreshCredential,
		Parameters:     map[string]any{jobParamProvider: providerID, jobParamUserID: userID},
		IdempotencyKey: JobIDRefreshCredential + ":" + userID + ":" + OAuthCredentialType(providerID),
		DedupPolicy:    "drop",
	}, nil
}

func NewPruneOAuthStatesJobMessage() *JobExecutionMessage {
	return &JobExecutionMessage{
		JobID:      JobIDPruneOAuthStates,
		ScriptPath: JobIDPruneOAuthStates,
		Parameters: map[string]any{},
	}
}

// HandleJob runs the vault's background jobs.
func (s *Service) HandleJob(ctx context.Context, msg *JobExecutionMessage) error {
	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	if msg == nil {
		return fmt.Errorf("core: job message is required")
	}
	switch strings.TrimSpace(msg.JobID) {
	case JobIDRefreshCredential:
		ref, err := ParseUserRef(readString(msg.Parameters, jobParamUserID))
		if err != nil {
			return err
		}
		result, err := s.RunRefreshWithRetry(ctx, RefreshRequest{
			Provider: readString(msg.Parameters, jobParamProvider),
			UserRef:  ref,
		}, RefreshRunOptions{MaxAttempts: 1})
		if result.PendingReauth {
			// Deactivated already. The user has to reconnect.
			return nil
		}
		return err
	case JobIDPruneOAuthStates:
		pruned, err := s.stateRegistry.PruneExpired(ctx)
		if err != nil {
			return s.mapError(err)
		}
		s.logInfo(ctx, "expired oauth states pruned", map[string]any{"pruned": pruned})
		return nil
	default:
		return fmt.Errorf("core: unsupported job %q", msg.JobID)
	}
}
