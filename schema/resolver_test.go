package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/tettuan/climpt/core"
)

func writeSchemaFile(t *testing.T, dir, name string, doc map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal fixture %s: %v", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
}

func TestResolverClosesPlainObject(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "flow.schema.json", map[string]interface{}{
		"$defs": map[string]interface{}{
			"Review": map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"summary": map[string]interface{}{"type": "string"}},
			},
		},
	})

	r := NewResolver(dir, nil)
	out, err := r.Resolve("flow.schema.json", "Review")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out["additionalProperties"] != false {
		t.Errorf("expected additionalProperties injected as false, got %v", out["additionalProperties"])
	}
}

func TestResolverPreservesExplicitAdditionalProperties(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "flow.schema.json", map[string]interface{}{
		"$defs": map[string]interface{}{
			"Open": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": true,
			},
		},
	})

	r := NewResolver(dir, nil)
	out, err := r.Resolve("flow.schema.json", "Open")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out["additionalProperties"] != true {
		t.Errorf("expected explicit additionalProperties=true to survive, got %v", out["additionalProperties"])
	}
}

func TestResolverFollowsSameFileRef(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "flow.schema.json", map[string]interface{}{
		"$defs": map[string]interface{}{
			"Name": map[string]interface{}{"type": "string"},
			"Review": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{"$ref": "#/$defs/Name"},
				},
			},
		},
	})

	r := NewResolver(dir, nil)
	out, err := r.Resolve("flow.schema.json", "Review")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	props := out["properties"].(map[string]interface{})
	name := props["name"].(map[string]interface{})
	if name["type"] != "string" {
		t.Errorf("expected $ref to same-file $defs to resolve, got %v", name)
	}
}

func TestResolverFollowsCrossFileRef(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "common.schema.json", map[string]interface{}{
		"definitions": map[string]interface{}{
			"Timestamp": map[string]interface{}{"type": "string", "format": "date-time"},
		},
	})
	writeSchemaFile(t, dir, "flow.schema.json", map[string]interface{}{
		"$defs": map[string]interface{}{
			"Review": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"at": map[string]interface{}{"$ref": "common.schema.json#/definitions/Timestamp"},
				},
			},
		},
	})

	r := NewResolver(dir, nil)
	out, err := r.Resolve("flow.schema.json", "Review")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	props := out["properties"].(map[string]interface{})
	at := props["at"].(map[string]interface{})
	if at["format"] != "date-time" {
		t.Errorf("expected cross-file $ref to resolve, got %v", at)
	}
}

func TestResolverAllOfMergesRequiredAndProperties(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "flow.schema.json", map[string]interface{}{
		"$defs": map[string]interface{}{
			"Base": map[string]interface{}{
				"type":       "object",
				"required":   []interface{}{"id"},
				"properties": map[string]interface{}{"id": map[string]interface{}{"type": "string"}},
			},
			"Extended": map[string]interface{}{
				"allOf": []interface{}{
					map[string]interface{}{"$ref": "#/$defs/Base"},
					map[string]interface{}{
						"required":   []interface{}{"summary"},
						"properties": map[string]interface{}{"summary": map[string]interface{}{"type": "string"}},
					},
				},
			},
		},
	})

	r := NewResolver(dir, nil)
	out, err := r.Resolve("flow.schema.json", "Extended")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	required := out["required"].([]interface{})
	if len(required) != 2 {
		t.Fatalf("expected required union of 2 fields, got %v", required)
	}

	props := out["properties"].(map[string]interface{})
	if _, ok := props["id"]; !ok {
		t.Error("expected merged properties to include id from Base")
	}
	if _, ok := props["summary"]; !ok {
		t.Error("expected merged properties to include summary from the allOf member")
	}
	if out["additionalProperties"] != false {
		t.Errorf("expected allOf result to be closed, got %v", out["additionalProperties"])
	}
}

func TestResolverCyclicRefDoesNotRecurseForever(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "a.schema.json", map[string]interface{}{
		"$defs": map[string]interface{}{
			"A": map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"b": map[string]interface{}{"$ref": "b.schema.json#/$defs/B"}},
			},
		},
	})
	writeSchemaFile(t, dir, "b.schema.json", map[string]interface{}{
		"$defs": map[string]interface{}{
			"B": map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"a": map[string]interface{}{"$ref": "a.schema.json#/$defs/A"}},
			},
		},
	})

	r := NewResolver(dir, nil)
	out, err := r.Resolve("a.schema.json", "A")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	b := out["properties"].(map[string]interface{})["b"].(map[string]interface{})
	a2 := b["properties"].(map[string]interface{})["a"]
	if _, ok := a2.(map[string]interface{}); !ok {
		t.Fatalf("expected the cyclic edge to resolve to an (empty) object, got %v (%T)", a2, a2)
	}
}

func TestResolverMissingPointerIsSchemaPointerError(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "flow.schema.json", map[string]interface{}{"$defs": map[string]interface{}{}})

	r := NewResolver(dir, nil)
	_, err := r.Resolve("flow.schema.json", "DoesNotExist")
	if err == nil {
		t.Fatal("expected an error for a missing schema name")
	}
	var spe *core.SchemaPointerError
	if _, ok := err.(*core.SchemaPointerError); !ok {
		t.Errorf("expected *core.SchemaPointerError, got %T (%v)", err, err)
	}
	_ = spe
}

func TestResolverStatsTracksHitsAndMisses(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "flow.schema.json", map[string]interface{}{
		"$defs": map[string]interface{}{"Ok": map[string]interface{}{"type": "object"}},
	})

	r := NewResolver(dir, nil)
	if _, err := r.Resolve("flow.schema.json", "Ok"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := r.Resolve("flow.schema.json", "Missing"); err == nil {
		t.Fatal("expected an error")
	}

	stats := r.Stats()
	if stats["hits"] != int64(1) || stats["misses"] != int64(1) {
		t.Errorf("expected 1 hit and 1 miss, got %v", stats)
	}
}
