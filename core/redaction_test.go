package core

import "testing"

func TestRedactSensitiveMapPreservesTraceabilityMetadata(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"trace_id":        "trace_1",
		"user_id":         "user_1",
		"credential_type": "outlook_oauth",
		"access_token":    "secret-token",
		"authorization":   "Bearer secret-token",
		"state":           "AbCdEf",
		"nested":          map[string]any{"refresh_token": "refresh", "trace_id": "trace_nested"},
		"events":          []any{map[string]any{"api_key": "key_1"}, map[string]any{"provider": "outlook"}},
	})

	if redacted["trace_id"] != "trace_1" {
		t.Fatalf("expected trace_id to remain visible, got %#v", redacted["trace_id"])
	}
	if redacted["credential_type"] != "outlook_oauth" {
		t.Fatalf("expected credential_type to remain visible, got %#v", redacted["credential_type"])
	}
	if redacted["access_token"] != RedactedValue {
		t.Fatalf("expected access_token to be redacted, got %#v", redacted["access_token"])
	}
	if redacted["state"] != RedactedValue {
		t.Fatalf("expected state to be redacted, got %#v", redacted["state"])
	}
	nested, ok := redacted["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested redacted map")
	}
	if nested["refresh_token"] != RedactedValue {
		t.Fatalf("expected nested refresh_token to be redacted, got %#v", nested["refresh_token"])
	}
	events, ok := redacted["events"].([]any)
	if !ok || len(events) != 2 {
		t.Fatalf("expected redacted events slice, got %#v", redacted["events"])
	}
	if first, _ := events[0].(map[string]any); first["api_key"] != RedactedValue {
		t.Fatalf("expected api_key inside slice to be redacted, got %#v", first["api_key"])
	}
	if second, _ := events[1].(map[string]any); second["provider"] != "outlook" {
		t.Fatalf("expected provider inside slice to remain visible, got %#v", second["provider"])
	}
}

func TestRedactSensitiveMap_TypedCollectionsAndBearerValues(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"headers": map[string]string{"Authorization": "Bearer abc", "Accept": "application/json"},
		"items":   []map[string]any{{"client_secret": "shh"}},
		"detail":  "bearer leaked-token",
		"note":    "bearer",
	})

	headers, ok := redacted["headers"].(map[string]any)
	if !ok || headers["Authorization"] != RedactedValue || headers["Accept"] != "application/json" {
		t.Fatalf("unexpected headers: %#v", redacted["headers"])
	}
	items, ok := redacted["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("unexpected items: %#v", redacted["items"])
	}
	if first, _ := items[0].(map[string]any); first["client_secret"] != RedactedValue {
		t.Fatalf("expected client_secret to be redacted, got %#v", first)
	}
	if redacted["detail"] != RedactedValue {
		t.Fatalf("expected bearer value to be redacted, got %#v", redacted["detail"])
	}
	if redacted["note"] != "bearer" {
		t.Fatalf("expected bare word to stay visible, got %#v", redacted["note"])
	}
	if out := RedactSensitiveMap(nil); out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil map, got %#v", out)
	}
}
