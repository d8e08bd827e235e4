package gocommand

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	vaultcommand "github.com/goliatone/go-credvault/command"
	"github.com/goliatone/go-credvault/core"
	vaultquery "github.com/goliatone/go-credvault/query"
)

// VaultSubscriptions holds the dispatcher subscriptions created by
// RegisterVault so callers can detach them together.
type VaultSubscriptions struct {
	subscriptions []commanddispatcher.Subscription
}

func (s *VaultSubscriptions) Len() int {
	if s == nil {
		return 0
	}
	return len(s.subscriptions)
}

func (s *VaultSubscriptions) Unsubscribe() {
	if s == nil {
		return
	}
	for _, sub := range s.subscriptions {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
	s.subscriptions = nil
}

// RegisterVault registers every vault command against mutating and every
// vault query against reader, subscribing each to the global dispatcher.
// On failure the subscriptions already made are released.
func RegisterVault(
	adapter *RegistryAdapter,
	mutating vaultcommand.MutatingService,
	reader vaultquery.Reader,
) (*VaultSubscriptions, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if mutating == nil {
		return nil, fmt.Errorf("gocommand: mutating service is required")
	}
	if reader == nil {
		return nil, fmt.Errorf("gocommand: reader is required")
	}

	out := &VaultSubscriptions{}
	steps := []func() (commanddispatcher.Subscription, error){
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[vaultcommand.BeginAuthMessage](adapter, vaultcommand.NewBeginAuthCommand(mutating))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[vaultcommand.CompleteAuthMessage](adapter, vaultcommand.NewCompleteAuthCommand(mutating))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[vaultcommand.DisconnectMessage](adapter, vaultcommand.NewDisconnectCommand(mutating))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[vaultcommand.PutCredentialMessage](adapter, vaultcommand.NewPutCredentialCommand(mutating))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[vaultcommand.DeleteCredentialMessage](adapter, vaultcommand.NewDeleteCredentialCommand(mutating))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[vaultcommand.StoreAPIKeyMessage](adapter, vaultcommand.NewStoreAPIKeyCommand(mutating))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[vaultcommand.RefreshCredentialMessage](adapter, vaultcommand.NewRefreshCredentialCommand(mutating))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[vaultcommand.EnsureFreshTokensMessage](adapter, vaultcommand.NewEnsureFreshTokensCommand(mutating))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[vaultcommand.CreateUserMessage](adapter, vaultcommand.NewCreateUserCommand(mutating))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[vaultcommand.UpdateProfileMessage](adapter, vaultcommand.NewUpdateProfileCommand(mutating))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[vaultcommand.UpdateUsageLimitsMessage](adapter, vaultcommand.NewUpdateUsageLimitsCommand(mutating))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[vaultquery.GetCredentialMessage, vaultquery.CredentialLookup](adapter, vaultquery.NewGetCredentialQuery(reader))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[vaultquery.ListCredentialsMessage, []core.CredentialSummary](adapter, vaultquery.NewListCredentialsQuery(reader))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[vaultquery.GetOAuthTokensMessage, vaultquery.TokenLookup](adapter, vaultquery.NewGetOAuthTokensQuery(reader))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[vaultquery.ServiceStatusMessage, map[string]bool](adapter, vaultquery.NewServiceStatusQuery(reader))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[vaultquery.GetUserMessage, core.User](adapter, vaultquery.NewGetUserQuery(reader))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[vaultquery.GetProfileMessage, core.UserProfile](adapter, vaultquery.NewGetProfileQuery(reader))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[vaultquery.GetUsageLimitsMessage, core.UsageLimit](adapter, vaultquery.NewGetUsageLimitsQuery(reader))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[vaultquery.ResolveUserMessage, string](adapter, vaultquery.NewResolveUserQuery(reader))
		},
	}
	for _, step := range steps {
		sub, err := step()
		if err != nil {
			out.Unsubscribe()
			return nil, err
		}
		out.subscriptions = append(out.subscriptions, sub)
	}
	return out, nil
}
