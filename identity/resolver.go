package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-credvault/core"
	glog "github.com/goliatone/go-logger/glog"
)

type Option func(*Resolver)

// Resolver turns a caller supplied UserRef into a canonical user id. Email
// fallback refs create the user on first sight.
type Resolver struct {
	users  core.UserStore
	logger core.Logger
	now    func() time.Time
}

func WithLogger(logger core.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func NewResolver(users core.UserStore, opts ...Option) *Resolver {
	_, logger := glog.Resolve("credvault.identity", nil, nil)
	resolver := &Resolver{
		users:  users,
		logger: glog.Ensure(logger),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(resolver)
	}
	return resolver
}

// Factory adapts NewResolver to the service builder.
func Factory(opts ...Option) core.UserResolverFactory {
	return func(users core.UserStore, logger core.Logger) core.UserResolver {
		return NewResolver(users, append([]Option{WithLogger(logger)}, opts...)...)
	}
}

func (r *Resolver) Resolve(ctx context.Context, ref core.UserRef) (string, error) {
	if r == nil || r.users == nil {
		return "", fmt.Errorf("identity: user store is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ref.Validate(); err != nil {
		return "", err
	}

	switch ref.Kind {
	case core.UserRefCanonical:
		user, err := r.users.GetByID(ctx, ref.Value)
		if err != nil {
			return "", err
		}
		return user.ID, nil
	case core.UserRefEmailFallback:
		return r.resolveEmail(ctx, core.NormalizeEmail(ref.Value))
	default:
		return "", fmt.Errorf("identity: unsupported user reference kind %q", ref.Kind)
	}
}

func (r *Resolver) resolveEmail(ctx context.Context, email string) (string, error) {
	user, err := r.users.GetByEmail(ctx, email)
	if err == nil {
		return user.ID, nil
	}
	if !errors.Is(err, core.ErrUserNotFound) {
		return "", err
	}

	newUser, profile, limits, err := core.NewUserRecords(core.CreateUserInput{
		Email: email,
		Name:  localPart(email),
	}, r.now())
	if err != nil {
		return "", err
	}
	created, err := r.users.CreateWithDefaults(ctx, newUser, profile, limits)
	if err == nil {
		r.logger.Info("user created from email fallback", "user_id", created.ID)
		return created.ID, nil
	}
	if !errors.Is(err, core.ErrUserEmailExists) {
		return "", err
	}

	// Lost a race with a concurrent first request for the same email.
	existing, err := r.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return existing.ID, nil
}

func localPart(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}

var _ core.UserResolver = (*Resolver)(nil)
