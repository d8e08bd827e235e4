package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-credvault/core"
)

type AuthService interface {
	Begin(ctx context.Context, req core.BeginRequest) (core.BeginResponse, error)
	Complete(ctx context.Context, req core.CompleteRequest) (core.CompleteResult, error)
	Disconnect(ctx context.Context, providerID string, ref core.UserRef) (bool, error)
}

type CredentialService interface {
	PutCredential(ctx context.Context, req core.PutCredentialRequest) (core.CredentialSummary, error)
	DeleteCredential(ctx context.Context, ref core.UserRef, credentialType string) (bool, error)
	StoreAPIKey(ctx context.Context, req core.StoreAPIKeyRequest) (core.CredentialSummary, error)
	RefreshCredential(ctx context.Context, req core.RefreshRequest) (core.RefreshResult, error)
	EnsureFreshTokens(ctx context.Context, req core.EnsureFreshTokensRequest) (core.EnsureFreshTokensResult, error)
}

type UserService interface {
	CreateUser(ctx context.Context, in core.CreateUserInput) (core.User, error)
	UpdateProfile(ctx context.Context, ref core.UserRef, in core.UpdateProfileInput) (core.UserProfile, error)
	UpdateUsageLimits(ctx context.Context, ref core.UserRef, in core.UpdateUsageLimitsInput) (core.UsageLimit, error)
}

type MutatingService interface {
	AuthService
	CredentialService
	UserService
}

type BeginAuthCommand struct {
	service AuthService
}

func NewBeginAuthCommand(service AuthService) *BeginAuthCommand {
	return &BeginAuthCommand{service: service}
}

func (c *BeginAuthCommand) Execute(ctx context.Context, msg BeginAuthMessage) error {
	if c == nil || c.service == nil {
		return missingDependency("auth service")
	}
	out, err := c.service.Begin(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteAuthCommand struct {
	service AuthService
}

func NewCompleteAuthCommand(service AuthService) *CompleteAuthCommand {
	return &CompleteAuthCommand{service: service}
}

func (c *CompleteAuthCommand) Execute(ctx context.Context, msg CompleteAuthMessage) error {
	if c == nil || c.service == nil {
		return missingDependency("callback service")
	}
	out, err := c.service.Complete(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DisconnectCommand struct {
	service AuthService
}

func NewDisconnectCommand(service AuthService) *DisconnectCommand {
	return &DisconnectCommand{service: service}
}

func (c *DisconnectCommand) Execute(ctx context.Context, msg DisconnectMessage) error {
	if c == nil || c.service == nil {
		return missingDependency("disconnect service")
	}
	removed, err := c.service.Disconnect(ctx, msg.Provider, msg.UserRef)
	if err != nil {
		return err
	}
	storeResult(ctx, removed)
	return nil
}

type PutCredentialCommand struct {
	service CredentialService
}

func NewPutCredentialCommand(service CredentialService) *PutCredentialCommand {
	return &PutCredentialCommand{service: service}
}

func (c *PutCredentialCommand) Execute(ctx context.Context, msg PutCredentialMessage) error {
	if c == nil || c.service == nil {
		return missingDependency("credential service")
	}
	out, err := c.service.PutCredential(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteCredentialCommand struct {
	service CredentialService
}

func NewDeleteCredentialCommand(service CredentialService) *DeleteCredentialCommand {
	return &DeleteCredentialCommand{service: service}
}

func (c *DeleteCredentialCommand) Execute(ctx context.Context, msg DeleteCredentialMessage) error {
	if c == nil || c.service == nil {
		return missingDependency("credential service")
	}
	removed, err := c.service.DeleteCredential(ctx, msg.UserRef, msg.CredentialType)
	if err != nil {
		return err
	}
	storeResult(ctx, removed)
	return nil
}

type StoreAPIKeyCommand struct {
	service CredentialService
}

func NewStoreAPIKeyCommand(service CredentialService) *StoreAPIKeyCommand {
	return &StoreAPIKeyCommand{service: service}
}

func (c *StoreAPIKeyCommand) Execute(ctx context.Context, msg StoreAPIKeyMessage) error {
	if c == nil || c.service == nil {
		return missingDependency("credential service")
	}
	out, err := c.service.StoreAPIKey(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshCredentialCommand struct {
	service CredentialService
}

func NewRefreshCredentialCommand(service CredentialService) *RefreshCredentialCommand {
	return &RefreshCredentialCommand{service: service}
}

func (c *RefreshCredentialCommand) Execute(ctx context.Context, msg RefreshCredentialMessage) error {
	if c == nil || c.service == nil {
		return missingDependency("refresh service")
	}
	out, err := c.service.RefreshCredential(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type EnsureFreshTokensCommand struct {
	service CredentialService
}

func NewEnsureFreshTokensCommand(service CredentialService) *EnsureFreshTokensCommand {
	return &EnsureFreshTokensCommand{service: service}
}

func (c *EnsureFreshTokensCommand) Execute(ctx context.Context, msg EnsureFreshTokensMessage) error {
	if c == nil || c.service == nil {
		return missingDependency("refresh service")
	}
	out, err := c.service.EnsureFreshTokens(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateUserCommand struct {
	service UserService
}

func NewCreateUserCommand(service UserService) *CreateUserCommand {
	return &CreateUserCommand{service: service}
}

func (c *CreateUserCommand) Execute(ctx context.Context, msg CreateUserMessage) error {
	if c == nil || c.service == nil {
		return missingDependency("user service")
	}
	out, err := c.service.CreateUser(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateProfileCommand struct {
	service UserService
}

func NewUpdateProfileCommand(service UserService) *UpdateProfileCommand {
	return &UpdateProfileCommand{service: service}
}

func (c *UpdateProfileCommand) Execute(ctx context.Context, msg UpdateProfileMessage) error {
	if c == nil || c.service == nil {
		return missingDependency("user service")
	}
	out, err := c.service.UpdateProfile(ctx, msg.UserRef, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateUsageLimitsCommand struct {
	service UserService
}

func NewUpdateUsageLimitsCommand(service UserService) *UpdateUsageLimitsCommand {
	return &UpdateUsageLimitsCommand{service: service}
}

func (c *UpdateUsageLimitsCommand) Execute(ctx context.Context, msg UpdateUsageLimitsMessage) error {
	if c == nil || c.service == nil {
		return missingDependency("user service")
	}
	out, err := c.service.UpdateUsageLimits(ctx, msg.UserRef, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
