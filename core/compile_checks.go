package core

var (
	_ Registry         = (*ProviderRegistry)(nil)
	_ OAuthStateStore  = (*MemoryOAuthStateStore)(nil)
	_ UserStore        = (*MemoryUserStore)(nil)
	_ CredentialStore  = (*MemoryCredentialStore)(nil)
	_ CredentialCodec  = JSONCredentialCodec{}
	_ CredentialWriter = (*Service)(nil)
	_ JobHandler       = (*Service)(nil)
	_ ConfigProvider   = (*CfgxConfigProvider)(nil)
	_ OptionsResolver  = GoOptionsResolver{}
)
