package schema

import (
	"encoding/json"
	"testing"
)

func TestValidateSchema(t *testing.T) {
	schemaData := []byte(`{"type":"object","properties":{"repo_root":{"type":"string"}},"required":["repo_root"]}`)
	if err := ValidateSchema("test", schemaData, map[string]any{"repo_root": "/srv/repo"}); err != nil {
		t.Fatalf("expected valid payload: %v", err)
	}
	if err := ValidateSchema("test", schemaData, map[string]any{"nope": "bad"}); err == nil {
		t.Fatal("expected schema validation error")
	}
}

func TestNormalizeValue(t *testing.T) {
	val, err := normalizeValue(json.RawMessage(`{"k":"v"}`))
	if err != nil {
		t.Fatalf("normalize raw: %v", err)
	}
	m, ok := val.(map[string]any)
	if !ok || m["k"] != "v" {
		t.Fatal("unexpected normalized value")
	}
	if _, err := normalizeValue([]byte(`{"k":`)); err == nil {
		t.Fatal("truncated payload accepted")
	}
}

func TestValidateSchemaEmpty(t *testing.T) {
	if err := ValidateSchema("test", nil, nil); err == nil {
		t.Fatal("expected error for empty schema")
	}
}
