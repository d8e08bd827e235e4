package credvault

import (
	"github.com/goliatone/go-credvault/core"
	"github.com/goliatone/go-credvault/providers/outlook"
	"github.com/goliatone/go-credvault/providers/pipedrive"
)

func OutlookProvider(cfg outlook.Config) (core.ProviderAdapter, error) {
	return outlook.New(cfg)
}

func PipedriveProvider(cfg pipedrive.Config) (core.ProviderAdapter, error) {
	return pipedrive.New(cfg)
}

// OutlookProviderFromConfig builds the Outlook adapter from the service
// configuration, defaulting the redirect uri to the callback route.
func OutlookProviderFromConfig(cfg Config) (core.ProviderAdapter, error) {
	return OutlookProvider(outlook.Config{
		ClientID:     cfg.Providers.Outlook.ClientID,
		ClientSecret: cfg.Providers.Outlook.ClientSecret,
		RedirectURI:  cfg.RedirectURI(outlook.ProviderID),
	})
}

func PipedriveProviderFromConfig(cfg Config) (core.ProviderAdapter, error) {
	return PipedriveProvider(pipedrive.Config{
		ClientID:     cfg.Providers.Pipedrive.ClientID,
		ClientSecret: cfg.Providers.Pipedrive.ClientSecret,
		RedirectURI:  cfg.RedirectURI(pipedrive.ProviderID),
	})
}
