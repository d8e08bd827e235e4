package sqlstore

import "github.com/goliatone/go-credvault/core"

var (
	_ core.UserStore              = (*UserStore)(nil)
	_ core.UserStore              = (*CachedUserStore)(nil)
	_ core.CredentialStore        = (*CredentialStore)(nil)
	_ core.OAuthStateStore        = (*OAuthStateStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
