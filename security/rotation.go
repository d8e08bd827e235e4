package security

import "time"

// KeyRotationWindow bounds when a retired key may still open tokens. A zero
// bound is open on that side.
type KeyRotationWindow struct {
	NotBefore time.Time
	NotAfter  time.Time
}

func (w KeyRotationWindow) Allows(at time.Time) bool {
	at = at.UTC()
	switch {
	case !w.NotBefore.IsZero() && at.Before(w.NotBefore.UTC()):
		return false
	case !w.NotAfter.IsZero() && at.After(w.NotAfter.UTC()):
		return false
	}
	return true
}

type retiredKey struct {
	provider *AppKeySecretProvider
	window   KeyRotationWindow
}

// WithRetiredKey keeps a previous key available for decryption while rows are
// re-encrypted under the active key. Invalid key material is logged and
// skipped.
func WithRetiredKey(keyMaterial string, keyID string, version int, window KeyRotationWindow) EngineOption {
	return func(engine *Engine) {
		provider, err := NewAppKeySecretProviderFromString(keyMaterial, WithKeyID(keyID), WithVersion(version))
		if err != nil {
			engine.logger.Warn("retired encryption key ignored", "key_id", keyID, "error", err.Error())
			return
		}
		engine.retired = append(engine.retired, retiredKey{provider: provider, window: window})
	}
}

// retiredFor returns the first retired key whose id and version match the
// envelope. A matching key outside its window closes the lookup.
func (e *Engine) retiredFor(parsed envelope, at time.Time) *AppKeySecretProvider {
	for _, candidate := range e.retired {
		if candidate.provider.checkMetadata(parsed) != nil {
			continue
		}
		if candidate.window.Allows(at) {
			return candidate.provider
		}
		return nil
	}
	return nil
}

// RetiredKeys lists the id and version of every retired key, active or not.
func (e *Engine) RetiredKeys() []KeyRef {
	if e == nil {
		return nil
	}
	out := make([]KeyRef, 0, len(e.retired))
	for _, candidate := range e.retired {
		id, version := candidate.provider.Metadata()
		out = append(out, KeyRef{ID: id, Version: version})
	}
	return out
}

type KeyRef struct {
	ID      string
	Version int
}
