package core

import (
	"encoding/json"
	"strings"
)

// GateConfig is the per-step rule for interpreting structured output into
// an intent (spec.md §3, "Gate configuration").
type GateConfig struct {
	AllowedIntents  []Intent `json:"allowedIntents"`
	IntentField     string   `json:"intentField"`
	IntentSchemaRef string   `json:"intentSchemaRef"`
	TargetField     string   `json:"targetField,omitempty"`
	HandoffFields   []string `json:"handoffFields,omitempty"`
	FailFast        *bool    `json:"failFast,omitempty"`
	FallbackIntent  Intent   `json:"fallbackIntent,omitempty"`
}

// FailFastEnabled returns the effective failFast value: true unless
// explicitly set to false (spec.md §3 default).
func (g *GateConfig) FailFastEnabled() bool {
	return g.FailFast == nil || *g.FailFast
}

// Allows reports whether intent i is in the step's allowedIntents set.
func (g *GateConfig) Allows(i Intent) bool {
	for _, x := range g.AllowedIntents {
		if x == i {
			return true
		}
	}
	return false
}

// FirstAllowed returns the first configured allowed intent, used as the
// last resort of the fallback cascade in GateInterpreter.interpret.
func (g *GateConfig) FirstAllowed() (Intent, bool) {
	if len(g.AllowedIntents) == 0 {
		return "", false
	}
	return g.AllowedIntents[0], true
}

// ConditionalTransition routes on the value of handoff[Condition].
type ConditionalTransition struct {
	Condition string            `json:"condition"`
	Targets   map[string]string `json:"targets"`
}

// Lookup resolves a condition value to a target stepId, falling back to
// "default" when present. ok is false when neither matches.
func (c *ConditionalTransition) Lookup(value string) (string, bool) {
	if target, ok := c.Targets[value]; ok {
		return target, true
	}
	if target, ok := c.Targets["default"]; ok {
		return target, true
	}
	return "", false
}

// TransitionTarget is a per-intent transition: a concrete stepId, nil
// (signal completion), or a conditional routing rule (spec.md §3).
type TransitionTarget struct {
	Complete    bool
	StepID      string
	Conditional *ConditionalTransition
}

// IsConditional reports whether this transition consults a handoff value.
func (t TransitionTarget) IsConditional() bool { return t.Conditional != nil }

func (t *TransitionTarget) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		t.Complete = true
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		t.StepID = s
		return nil
	}
	var cond ConditionalTransition
	if err := json.Unmarshal(data, &cond); err != nil {
		return err
	}
	t.Conditional = &cond
	return nil
}

func (t TransitionTarget) MarshalJSON() ([]byte, error) {
	switch {
	case t.Complete:
		return []byte("null"), nil
	case t.Conditional != nil:
		return json.Marshal(t.Conditional)
	default:
		return json.Marshal(t.StepID)
	}
}

// OutputSchemaRef names the JSON Schema enforced on a step's structured
// output: a file within the registry's schemasBase and a schema name or
// JSON Pointer inside that file.
type OutputSchemaRef struct {
	File   string `json:"file"`
	Schema string `json:"schema"`
}

// Valid reports whether the reference has the minimal required shape.
func (r *OutputSchemaRef) Valid() bool {
	return r != nil && r.File != "" && r.Schema != ""
}

// Step is one named phase of the flow (spec.md §3).
type Step struct {
	ID              string           `json:"-"`
	Kind            StepKind         `json:"-"`
	Name            string           `json:"name"`
	StructuredGate  *GateConfig      `json:"structuredGate,omitempty"`
	Transitions     map[string]TransitionTarget `json:"transitions,omitempty"`
	OutputSchemaRef *OutputSchemaRef `json:"outputSchemaRef,omitempty"`
}

// IsTemplate reports whether a step is a "section." template step, exempt
// from the structuredGate/transitions/outputSchemaRef invariant.
func (s *Step) IsTemplate() bool {
	return strings.HasPrefix(s.ID, "section.")
}

// CompletionStepConfig configures CompletionChain validation for a step
// declared as a completion point (spec.md §4.6).
type CompletionStepConfig struct {
	OutputSchema         map[string]interface{} `json:"outputSchema,omitempty"`
	CompletionConditions []string                `json:"completionConditions,omitempty"`
}

// Registry is the loaded, validated, read-only set of steps for a run
// (spec.md §3, §6).
type Registry struct {
	AgentID            string                           `json:"agentId"`
	Version            string                           `json:"version"`
	C1                 interface{}                      `json:"c1"`
	Steps              map[string]*Step                 `json:"steps"`
	SchemasBase        string                            `json:"schemasBase,omitempty"`
	EntryStep          string                            `json:"entryStep,omitempty"`
	EntryStepMapping   map[string]string                 `json:"entryStepMapping,omitempty"`
	CompletionPatterns map[string]interface{}            `json:"completionPatterns,omitempty"`
	Validators         map[string]interface{}            `json:"validators,omitempty"`
	CompletionSteps    map[string]*CompletionStepConfig  `json:"completionSteps,omitempty"`
}

// StepByID looks up a step, reporting whether it exists.
func (r *Registry) StepByID(id string) (*Step, bool) {
	s, ok := r.Steps[id]
	return s, ok
}

// HasStep reports whether id names a known step.
func (r *Registry) HasStep(id string) bool {
	_, ok := r.Steps[id]
	return ok
}

// EntryStepFor resolves the entry step for a run, consulting
// entryStepMapping by completion type first, then the flat entryStep.
func (r *Registry) EntryStepFor(completionType string) (string, bool) {
	if completionType != "" && r.EntryStepMapping != nil {
		if id, ok := r.EntryStepMapping[completionType]; ok {
			return id, true
		}
	}
	if r.EntryStep != "" {
		return r.EntryStep, true
	}
	return "", false
}
