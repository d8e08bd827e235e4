package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	vaultcommand "github.com/goliatone/go-credvault/command"
	"github.com/goliatone/go-credvault/core"
	"github.com/goliatone/go-credvault/identity"
	vaultquery "github.com/goliatone/go-credvault/query"
	"github.com/goliatone/go-credvault/security"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

type okMessage struct{}

func (okMessage) Type() string { return "credvault.test.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "credvault.test.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "credvault.test.test" }

type queueMessage struct{}

func (queueMessage) Type() string { return "credvault.test.queue" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	if _, err := RegisterAndSubscribe(adapter, cmd); err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	if err := adapter.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

func TestRegisterAndSubscribe_RejectsUntypedAndDuplicateMessages(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	untyped := command.CommandFunc[invalidMessage](func(context.Context, invalidMessage) error { return nil })
	if _, err := RegisterAndSubscribe(adapter, untyped); err == nil {
		t.Fatalf("expected empty message type to be rejected")
	}

	cmd := command.CommandFunc[okMessage](func(context.Context, okMessage) error { return nil })
	sub, err := RegisterAndSubscribe(adapter, cmd)
	if err != nil {
		t.Fatalf("register ok message: %v", err)
	}
	defer sub.Unsubscribe()
	if _, err := RegisterAndSubscribe(adapter, cmd); err == nil {
		t.Fatalf("expected duplicate message type to be rejected")
	}
	if types := adapter.Types(); len(types) != 1 || types[0] != "credvault.test.ok" {
		t.Fatalf("unexpected bound types: %v", types)
	}
}

func TestQueueResolverHookWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("credvault.test.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

func TestRegisterVault_DispatchesCommandsAndQueries(t *testing.T) {
	svc, err := core.NewService(core.DefaultConfig(),
		core.WithEncryptorFactory(security.NewEncryptorFactory()),
		core.WithUserResolverFactory(identity.Factory()),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	adapter := NewRegistryAdapter(command.NewRegistry())
	subs, err := RegisterVault(adapter, svc, svc)
	if err != nil {
		t.Fatalf("register vault: %v", err)
	}
	defer subs.Unsubscribe()
	if subs.Len() != 19 || len(adapter.Types()) != 19 {
		t.Fatalf("expected 19 subscriptions, got %d (%d types)", subs.Len(), len(adapter.Types()))
	}
	if _, err := RegisterVault(adapter, svc, svc); err == nil {
		t.Fatalf("expected second vault registration on the same adapter to fail")
	}
	if len(adapter.Types()) != 19 {
		t.Fatalf("expected failed registration to leave bound types intact, got %d", len(adapter.Types()))
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	ctx := context.Background()
	if err := Dispatch(ctx, vaultcommand.CreateUserMessage{Input: core.CreateUserInput{Email: "Dispatch@Example.com"}}); err != nil {
		t.Fatalf("dispatch create user: %v", err)
	}
	userID, err := Query[vaultquery.ResolveUserMessage, string](ctx, vaultquery.ResolveUserMessage{Identifier: "dispatch@example.com"})
	if err != nil {
		t.Fatalf("query resolve user: %v", err)
	}
	if userID == "" {
		t.Fatalf("expected resolved user id")
	}

	ref := core.CanonicalUserRef(userID)
	if err := Dispatch(ctx, vaultcommand.StoreAPIKeyMessage{Request: core.StoreAPIKeyRequest{
		UserRef:  ref,
		Provider: "openai",
		APIKey:   "sk-dispatch",
	}}); err != nil {
		t.Fatalf("dispatch store api key: %v", err)
	}
	lookup, err := Query[vaultquery.GetCredentialMessage, vaultquery.CredentialLookup](ctx, vaultquery.GetCredentialMessage{
		UserRef:        ref,
		CredentialType: core.APIKeyCredentialType("openai"),
	})
	if err != nil {
		t.Fatalf("query credential: %v", err)
	}
	if !lookup.Found || lookup.Value.Text != "sk-dispatch" {
		t.Fatalf("expected stored api key, got %#v", lookup)
	}

	emails := 42
	if err := Dispatch(ctx, vaultcommand.UpdateUsageLimitsMessage{
		UserRef: ref,
		Input:   core.UpdateUsageLimitsInput{DailyEmailLimit: &emails},
	}); err != nil {
		t.Fatalf("dispatch update usage limits: %v", err)
	}
	limits, err := Query[vaultquery.GetUsageLimitsMessage, core.UsageLimit](ctx, vaultquery.GetUsageLimitsMessage{UserRef: ref})
	if err != nil {
		t.Fatalf("query usage limits: %v", err)
	}
	if limits.DailyEmailLimit != 42 {
		t.Fatalf("expected dispatched usage limits update, got %#v", limits)
	}
}

func TestRegisterVault_RequiresDependencies(t *testing.T) {
	if _, err := RegisterVault(nil, nil, nil); err == nil {
		t.Fatalf("expected nil adapter to fail")
	}
	adapter := NewRegistryAdapter(command.NewRegistry())
	if _, err := RegisterVault(adapter, nil, nil); err == nil {
		t.Fatalf("expected nil service to fail")
	}
}
