package core

import (
	"slices"
	"strings"
)

const RedactedValue = "[REDACTED]"

// Substrings that mark a log field as secret. Matching is case-insensitive.
var secretKeyMarkers = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"api_key",
	"apikey",
	"refresh",
	"credential",
	"payload",
	"code",
	"state",
	"client_secret",
}

// Keys that correlate log lines. They stay visible even when they contain a
// secret marker, for example credential_type or error_text_code.
var correlationKeys = []string{
	"provider",
	"state_provider",
	"error_category",
	"error_text_code",
	"user_id",
	"credential_type",
	"credential_types",
	"event_type",
	"status",
	"idempotency_key",
	"trace_id",
	"request_id",
}

// RedactSensitiveMap returns a copy of fields with secret-looking keys masked
// at any depth. String values carrying a bearer header are masked under any
// key.
func RedactSensitiveMap(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		if isSecretKey(key) {
			out[key] = RedactedValue
			continue
		}
		out[key] = redactValue(value)
	}
	return out
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return RedactSensitiveMap(typed)
	case map[string]string:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = item
		}
		return RedactSensitiveMap(out)
	case []any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, redactValue(item))
		}
		return out
	case []map[string]any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, RedactSensitiveMap(item))
		}
		return out
	case string:
		if looksLikeBearer(typed) {
			return RedactedValue
		}
		return typed
	default:
		return value
	}
}

func isSecretKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || slices.Contains(correlationKeys, key) {
		return false
	}
	return slices.ContainsFunc(secretKeyMarkers, func(marker string) bool {
		return strings.Contains(key, marker)
	})
}

func looksLikeBearer(value string) bool {
	value = strings.TrimSpace(value)
	return len(value) > len("bearer ") && strings.EqualFold(value[:len("bearer ")], "bearer ")
}
