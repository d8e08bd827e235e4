package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// CredentialCodec converts credential payloads to the canonical text that gets
// encrypted, and back.
type CredentialCodec interface {
	Format() string
	Encode(data any) (string, error)
	Decode(text string) CredentialValue
}

// JSONCredentialCodec keeps strings verbatim and stores everything else as JSON.
// Decode yields a structured value only for JSON objects.
type JSONCredentialCodec struct{}

func (JSONCredentialCodec) Format() string {
	return "json"
}

func (JSONCredentialCodec) Encode(data any) (string, error) {
	switch typed := data.(type) {
	case nil:
		return "", fmt.Errorf("core: credential data is required")
	case string:
		return typed, nil
	case []byte:
		return string(typed), nil
	case json.RawMessage:
		return string(typed), nil
	case TokenSet:
		return encodeJSON(typed.Map())
	default:
		return encodeJSON(typed)
	}
}

func (JSONCredentialCodec) Decode(text string) CredentialValue {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		decoder := json.NewDecoder(bytes.NewReader([]byte(trimmed)))
		decoder.UseNumber()
		var data map[string]any
		if err := decoder.Decode(&data); err == nil && data != nil && !decoder.More() {
			return CredentialValue{Structured: true, Data: data}
		}
	}
	return CredentialValue{Text: text}
}

func encodeJSON(value any) (string, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("core: encode credential data: %w", err)
	}
	return string(encoded), nil
}
