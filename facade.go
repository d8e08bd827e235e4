package credvault

import (
	"fmt"

	vaultcommand "github.com/goliatone/go-credvault/command"
	vaultquery "github.com/goliatone/go-credvault/query"
)

type CommandQueryService interface {
	vaultcommand.MutatingService
	vaultquery.Reader
}

type Commands struct {
	BeginAuth         *vaultcommand.BeginAuthCommand
	CompleteAuth      *vaultcommand.CompleteAuthCommand
	Disconnect        *vaultcommand.DisconnectCommand
	PutCredential     *vaultcommand.PutCredentialCommand
	DeleteCredential  *vaultcommand.DeleteCredentialCommand
	StoreAPIKey       *vaultcommand.StoreAPIKeyCommand
	RefreshCredential *vaultcommand.RefreshCredentialCommand
	EnsureFreshTokens *vaultcommand.EnsureFreshTokensCommand
	CreateUser        *vaultcommand.CreateUserCommand
	UpdateProfile     *vaultcommand.UpdateProfileCommand
	UpdateUsageLimits *vaultcommand.UpdateUsageLimitsCommand
}

type Queries struct {
	GetCredential   *vaultquery.GetCredentialQuery
	ListCredentials *vaultquery.ListCredentialsQuery
	GetOAuthTokens  *vaultquery.GetOAuthTokensQuery
	ServiceStatus   *vaultquery.ServiceStatusQuery
	GetUser         *vaultquery.GetUserQuery
	ResolveUser     *vaultquery.ResolveUserQuery
	GetProfile      *vaultquery.GetProfileQuery
	GetUsageLimits  *vaultquery.GetUsageLimitsQuery
}

// Facade groups the command and query handlers bound to one service so hosts
// can register them with their own dispatcher.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("credvault: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		BeginAuth:         vaultcommand.NewBeginAuthCommand(service),
		CompleteAuth:      vaultcommand.NewCompleteAuthCommand(service),
		Disconnect:        vaultcommand.NewDisconnectCommand(service),
		PutCredential:     vaultcommand.NewPutCredentialCommand(service),
		DeleteCredential:  vaultcommand.NewDeleteCredentialCommand(service),
		StoreAPIKey:       vaultcommand.NewStoreAPIKeyCommand(service),
		RefreshCredential: vaultcommand.NewRefreshCredentialCommand(service),
		EnsureFreshTokens: vaultcommand.NewEnsureFreshTokensCommand(service),
		CreateUser:        vaultcommand.NewCreateUserCommand(service),
		UpdateProfile:     vaultcommand.NewUpdateProfileCommand(service),
		UpdateUsageLimits: vaultcommand.NewUpdateUsageLimitsCommand(service),
	}
	facade.queries = Queries{
		GetCredential:   vaultquery.NewGetCredentialQuery(service),
		ListCredentials: vaultquery.NewListCredentialsQuery(service),
		GetOAuthTokens:  vaultquery.NewGetOAuthTokensQuery(service),
		ServiceStatus:   vaultquery.NewServiceStatusQuery(service),
		GetUser:         vaultquery.NewGetUserQuery(service),
		ResolveUser:     vaultquery.NewResolveUserQuery(service),
		GetProfile:      vaultquery.NewGetProfileQuery(service),
		GetUsageLimits:  vaultquery.NewGetUsageLimitsQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
