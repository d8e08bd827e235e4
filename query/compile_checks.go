package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-credvault/core"
)

var (
	_ gocmd.Querier[GetCredentialMessage, CredentialLookup]             = (*GetCredentialQuery)(nil)
	_ gocmd.Querier[ListCredentialsMessage, []core.CredentialSummary]   = (*ListCredentialsQuery)(nil)
	_ gocmd.Querier[GetOAuthTokensMessage, TokenLookup]                 = (*GetOAuthTokensQuery)(nil)
	_ gocmd.Querier[ServiceStatusMessage, map[string]bool]              = (*ServiceStatusQuery)(nil)
	_ gocmd.Querier[GetUserMessage, core.User]                          = (*GetUserQuery)(nil)
	_ gocmd.Querier[ResolveUserMessage, string]                         = (*ResolveUserQuery)(nil)
	_ gocmd.Querier[GetProfileMessage, core.UserProfile]                = (*GetProfileQuery)(nil)
	_ gocmd.Querier[GetUsageLimitsMessage, core.UsageLimit]             = (*GetUsageLimitsQuery)(nil)

	_ Reader = (*core.Service)(nil)
)
