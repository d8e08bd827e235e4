package security

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goliatone/go-credvault/core"
	glog "github.com/goliatone/go-logger/glog"
)

const ephemeralKeySize = 32

type EngineOption func(*Engine)

// Engine is the credential Encryptor. It seals with the active key and opens
// tokens sealed by the active key or by a retired key still inside its window.
type Engine struct {
	active    *AppKeySecretProvider
	retired   []retiredKey
	ephemeral bool
	logger    core.Logger
	now       func() time.Time
}

func WithEngineClock(now func() time.Time) EngineOption {
	return func(engine *Engine) {
		if now != nil {
			engine.now = now
		}
	}
}

// NewEngine builds the encryptor from configuration. Production requires a
// configured key; other environments fall back to a random per-process key.
func NewEngine(cfg core.EncryptionConfig, environment string, logger core.Logger, opts ...EngineOption) (*Engine, error) {
	_, logger = glog.Resolve("credvault.security", nil, logger)
	logger = glog.Ensure(logger)

	keyMaterial := []byte(strings.TrimSpace(cfg.Key))
	ephemeral := false
	if len(keyMaterial) == 0 {
		if strings.EqualFold(strings.TrimSpace(environment), core.EnvironmentProduction) {
			return nil, fmt.Errorf("security: encryption key is required in production")
		}
		keyMaterial = make([]byte, ephemeralKeySize)
		if _, err := io.ReadFull(rand.Reader, keyMaterial); err != nil {
			return nil, fmt.Errorf("security: generate ephemeral key: %w", err)
		}
		ephemeral = true
		logger.Warn(
			"encryption key not configured, using an ephemeral key; stored credentials will not survive a restart",
			"environment", environment,
		)
	}

	active, err := NewAppKeySecretProvider(keyMaterial, WithKeyID(cfg.KeyID), WithVersion(cfg.Version))
	if err != nil {
		return nil, err
	}
	engine := &Engine{
		active:    active,
		ephemeral: ephemeral,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(engine)
	}
	return engine, nil
}

// NewEncryptorFactory adapts NewEngine to the service builder.
func NewEncryptorFactory(opts ...EngineOption) core.EncryptorFactory {
	return func(cfg core.Config, logger core.Logger) (core.Encryptor, error) {
		return NewEngine(cfg.Encryption, cfg.Environment, logger, opts...)
	}
}

func (e *Engine) Encrypt(_ context.Context, plaintext []byte) (string, error) {
	if e == nil || e.active == nil {
		return "", fmt.Errorf("security: encryption engine is not configured")
	}
	if len(plaintext) == 0 {
		return "", nil
	}
	return e.active.Seal(plaintext)
}

func (e *Engine) Decrypt(_ context.Context, token string) ([]byte, bool) {
	if e == nil || e.active == nil {
		return nil, false
	}
	if strings.TrimSpace(token) == "" {
		return []byte{}, true
	}
	parsed, err := decodeEnvelope(token)
	if err != nil {
		return nil, false
	}
	provider := e.providerFor(parsed)
	if provider == nil {
		return nil, false
	}
	plaintext, err := provider.open(parsed)
	if err != nil {
		return nil, false
	}
	return plaintext, true
}

// NeedsReencrypt reports whether token was sealed by a key other than the
// active one.
func (e *Engine) NeedsReencrypt(token string) bool {
	if e == nil || e.active == nil || strings.TrimSpace(token) == "" {
		return false
	}
	parsed, err := decodeEnvelope(token)
	if err != nil {
		return false
	}
	return e.active.checkMetadata(parsed) != nil
}

func (e *Engine) Ephemeral() bool {
	return e != nil && e.ephemeral
}

func (e *Engine) Metadata() (string, int) {
	if e == nil {
		return "", 0
	}
	return e.active.Metadata()
}

func (e *Engine) providerFor(parsed envelope) *AppKeySecretProvider {
	if e.active.checkMetadata(parsed) == nil {
		return e.active
	}
	return e.retiredFor(parsed, e.now())
}

var _ core.Encryptor = (*Engine)(nil)
