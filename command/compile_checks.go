package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-credvault/core"
)

var (
	_ gocmd.Commander[BeginAuthMessage]         = (*BeginAuthCommand)(nil)
	_ gocmd.Commander[CompleteAuthMessage]      = (*CompleteAuthCommand)(nil)
	_ gocmd.Commander[DisconnectMessage]        = (*DisconnectCommand)(nil)
	_ gocmd.Commander[PutCredentialMessage]     = (*PutCredentialCommand)(nil)
	_ gocmd.Commander[DeleteCredentialMessage]  = (*DeleteCredentialCommand)(nil)
	_ gocmd.Commander[StoreAPIKeyMessage]       = (*StoreAPIKeyCommand)(nil)
	_ gocmd.Commander[RefreshCredentialMessage] = (*RefreshCredentialCommand)(nil)
	_ gocmd.Commander[EnsureFreshTokensMessage] = (*EnsureFreshTokensCommand)(nil)
	_ gocmd.Commander[CreateUserMessage]        = (*CreateUserCommand)(nil)
	_ gocmd.Commander[UpdateProfileMessage]     = (*UpdateProfileCommand)(nil)
	_ gocmd.Commander[UpdateUsageLimitsMessage] = (*UpdateUsageLimitsCommand)(nil)

	_ MutatingService = (*core.Service)(nil)
)
