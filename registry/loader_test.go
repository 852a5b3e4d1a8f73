package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tettuan/climpt/core"
)

const validRegistryJSON = `{
  "agentId": "demo-agent",
  "version": "1.0.0",
  "c1": "demo",
  "entryStep": "initial.review",
  "steps": {
    "initial.review": {
      "structuredGate": {"allowedIntents": ["next"], "intentField": "next_action.action"},
      "transitions": {},
      "outputSchemaRef": {"file": "flow.schema.json", "schema": "Review"}
    }
  }
}`

const validRegistryYAML = `
agentId: demo-agent
version: 1.0.0
c1: demo
entryStep: initial.review
steps:
  initial.review:
    structuredGate:
      allowedIntents: ["next"]
      intentField: next_action.action
    transitions: {}
    outputSchemaRef:
      file: flow.schema.json
      schema: Review
`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadJSONRegistry(t *testing.T) {
	path := writeFixture(t, "steps_registry.json", validRegistryJSON)
	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reg.AgentID != "demo-agent" || reg.EntryStep != "initial.review" {
		t.Errorf("unexpected registry: %+v", reg)
	}
	if _, ok := reg.Steps["initial.review"]; !ok {
		t.Error("expected initial.review step to be present")
	}
}

func TestLoadYAMLRegistry(t *testing.T) {
	path := writeFixture(t, "steps_registry.yaml", validRegistryYAML)
	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reg.AgentID != "demo-agent" {
		t.Errorf("unexpected registry: %+v", reg)
	}
}

func TestLoadJSONAndYAMLProduceEquivalentRegistries(t *testing.T) {
	jsonPath := writeFixture(t, "steps_registry.json", validRegistryJSON)
	yamlPath := writeFixture(t, "steps_registry.yaml", validRegistryYAML)

	jsonReg, err := Load(jsonPath)
	require.NoError(t, err)
	yamlReg, err := Load(yamlPath)
	require.NoError(t, err)

	require.Equal(t, jsonReg.AgentID, yamlReg.AgentID)
	require.Equal(t, jsonReg.EntryStep, yamlReg.EntryStep)
}

func TestLoadMissingRequiredKeyIsConfigurationError(t *testing.T) {
	path := writeFixture(t, "steps_registry.json", `{"agentId": "demo-agent", "steps": {}}`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected a configuration error for missing required keys")
	}
	if _, ok := err.(*core.ConfigurationError); !ok {
		t.Errorf("expected *core.ConfigurationError, got %T", err)
	}
}

func TestLoadIncompleteStepFailsValidation(t *testing.T) {
	path := writeFixture(t, "steps_registry.json", `{
		"agentId": "demo-agent", "version": "1.0.0", "c1": "demo",
		"steps": {"initial.review": {}}
	}`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an incomplete non-template step to fail ValidateFlowSteps")
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	path := writeFixture(t, "steps_registry.json", `{not valid json`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}
