// Package registry loads and validates a step registry document from
// disk — either JSON or an equivalent YAML form — into a core.Registry
// (spec.md §6).
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tettuan/climpt/core"
	"github.com/tettuan/climpt/schema"
	"gopkg.in/yaml.v3"
)

// requiredKeys are the top-level fields spec.md §6 requires on every
// registry document, JSON or YAML.
var requiredKeys = []string{"agentId", "version", "c1", "steps"}

// Load reads path (steps_registry.json or steps_registry.yaml/.yml),
// decodes it, validates the required top-level keys and the per-step
// invariant via schema.ValidateFlowSteps, and returns the ready-to-use
// Registry.
func Load(path string) (*core.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: reading %s: %w", path, err)
	}

	raw := make(map[string]interface{})
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("registry: parsing YAML %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("registry: parsing JSON %s: %w", path, err)
		}
	}

	if err := checkRequiredKeys(raw); err != nil {
		return nil, err
	}

	// Re-marshal through JSON regardless of source format so the decoded
	// tree always passes through core.Registry/core.Step's JSON tag
	// contract (yaml.v3 decodes nested maps as map[string]interface{}
	// already, so this round trip is lossless for our document shape).
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("registry: normalizing %s: %w", path, err)
	}

	var reg core.Registry
	if err := json.Unmarshal(normalized, &reg); err != nil {
		return nil, fmt.Errorf("registry: decoding %s: %w", path, err)
	}

	if err := schema.ValidateFlowSteps(&reg); err != nil {
		return nil, err
	}

	return &reg, nil
}

func checkRequiredKeys(raw map[string]interface{}) error {
	var missing []string
	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &core.ConfigurationError{Issues: []string{fmt.Sprintf("registry document missing required keys: %v", missing)}}
	}
	return nil
}
