package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// Encryptor seals credential payloads into text-safe tokens. Decrypt reports
// false for malformed, tampered, or foreign tokens instead of failing.
type Encryptor interface {
	Encrypt(ctx context.Context, plaintext []byte) (string, error)
	Decrypt(ctx context.Context, token string) ([]byte, bool)
}

type ProviderAdapter interface {
	ID() string
	AuthorizationURL(ctx context.Context, req AuthorizationRequest) (string, error)
	ExchangeCode(ctx context.Context, code string, binding StateBinding) (TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (TokenSet, error)
	UserInfo(ctx context.Context, accessToken string) (ProviderIdentity, error)
}

type Registry interface {
	Register(provider ProviderAdapter) error
	Get(providerID string) (ProviderAdapter, bool)
	List() []ProviderAdapter
}

type UserStore interface {
	CreateWithDefaults(ctx context.Context, user User, profile UserProfile, limits UsageLimit) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetProfile(ctx context.Context, userID string) (UserProfile, error)
	UpdateProfile(ctx context.Context, profile UserProfile) (UserProfile, error)
	GetUsageLimits(ctx context.Context, userID string) (UsageLimit, error)
	// UpdateUsageLimits writes the full limits row, creating it when missing.
	UpdateUsageLimits(ctx context.Context, limits UsageLimit) (UsageLimit, error)
}

// CredentialStore persists one row per (user, credential type). Upsert must be
// atomic with respect to that uniqueness constraint.
type CredentialStore interface {
	Upsert(ctx context.Context, in UpsertCredentialInput) (Credential, error)
	Get(ctx context.Context, userID string, credentialType string) (Credential, error)
	Delete(ctx context.Context, userID string, credentialType string) (bool, error)
	Deactivate(ctx context.Context, userID string, credentialType string) error
	ListByUser(ctx context.Context, userID string) ([]Credential, error)
}

// OAuthStateStore keeps pending authorization states. Insert fails on a
// duplicate state and Consume removes the record in the same atomic step that
// finds it.
type OAuthStateStore interface {
	Insert(ctx context.Context, record OAuthStateRecord) error
	Consume(ctx context.Context, state string, now time.Time) (OAuthStateRecord, error)
	PruneExpired(ctx context.Context, now time.Time) (int, error)
}

type UserResolver interface {
	Resolve(ctx context.Context, ref UserRef) (string, error)
}

type StoreProvider interface {
	UserStore() UserStore
	CredentialStore() CredentialStore
	OAuthStateStore() OAuthStateStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobHandler interface {
	HandleJob(ctx context.Context, msg *JobExecutionMessage) error
}
