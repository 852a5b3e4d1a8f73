package core

import (
	"encoding/json"
	"testing"
)

func TestTransitionTargetUnmarshalVariants(t *testing.T) {
	var nullTarget TransitionTarget
	if err := json.Unmarshal([]byte("null"), &nullTarget); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !nullTarget.Complete {
		t.Error("expected null to unmarshal to Complete=true")
	}

	var strTarget TransitionTarget
	if err := json.Unmarshal([]byte(`"continuation.review"`), &strTarget); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if strTarget.StepID != "continuation.review" {
		t.Errorf("expected StepID=continuation.review, got %q", strTarget.StepID)
	}

	var condTarget TransitionTarget
	raw := `{"condition":"testResult","targets":{"pass":"s_review","default":"s_retry"}}`
	if err := json.Unmarshal([]byte(raw), &condTarget); err != nil {
		t.Fatalf("unmarshal conditional: %v", err)
	}
	if !condTarget.IsConditional() {
		t.Fatal("expected IsConditional() to be true")
	}
	if got, ok := condTarget.Conditional.Lookup("pass"); !ok || got != "s_review" {
		t.Errorf("expected (s_review, true), got (%q, %v)", got, ok)
	}
	if got, ok := condTarget.Conditional.Lookup("unknown-value"); !ok || got != "s_retry" {
		t.Errorf("expected default fallback (s_retry, true), got (%q, %v)", got, ok)
	}
}

func TestConditionalTransitionNoDefault(t *testing.T) {
	cond := ConditionalTransition{Condition: "x", Targets: map[string]string{"pass": "a"}}
	if _, ok := cond.Lookup("fail"); ok {
		t.Error("expected no match and no default to report ok=false")
	}
}

func TestGateConfigFailFastDefault(t *testing.T) {
	g := &GateConfig{}
	if !g.FailFastEnabled() {
		t.Error("expected FailFastEnabled to default to true when unset")
	}
	disabled := false
	g.FailFast = &disabled
	if g.FailFastEnabled() {
		t.Error("expected FailFastEnabled to honor an explicit false")
	}
}

func TestGateConfigAllowsAndFirstAllowed(t *testing.T) {
	g := &GateConfig{AllowedIntents: []Intent{IntentNext, IntentRepeat}}
	if !g.Allows(IntentNext) || g.Allows(IntentJump) {
		t.Error("Allows did not reflect the configured set")
	}
	first, ok := g.FirstAllowed()
	if !ok || first != IntentNext {
		t.Errorf("expected (next, true), got (%v, %v)", first, ok)
	}

	empty := &GateConfig{}
	if _, ok := empty.FirstAllowed(); ok {
		t.Error("expected FirstAllowed to report false on an empty set")
	}
}

func TestStepIsTemplate(t *testing.T) {
	s := &Step{ID: "section.intro"}
	if !s.IsTemplate() {
		t.Error("expected section.* step to be a template")
	}
	s2 := &Step{ID: "initial.review"}
	if s2.IsTemplate() {
		t.Error("did not expect initial.* step to be a template")
	}
}

func TestRegistryEntryStepFor(t *testing.T) {
	reg := &Registry{
		EntryStep:        "initial.default",
		EntryStepMapping: map[string]string{"bugfix": "initial.bugfix"},
	}

	if id, ok := reg.EntryStepFor("bugfix"); !ok || id != "initial.bugfix" {
		t.Errorf("expected mapped entry step, got (%q, %v)", id, ok)
	}
	if id, ok := reg.EntryStepFor("unknown-type"); !ok || id != "initial.default" {
		t.Errorf("expected fallback to flat entryStep, got (%q, %v)", id, ok)
	}

	bare := &Registry{}
	if _, ok := bare.EntryStepFor(""); ok {
		t.Error("expected no entry step to report ok=false")
	}
}

func TestOutputSchemaRefValid(t *testing.T) {
	var nilRef *OutputSchemaRef
	if nilRef.Valid() {
		t.Error("expected nil ref to be invalid")
	}
	empty := &OutputSchemaRef{}
	if empty.Valid() {
		t.Error("expected empty ref to be invalid")
	}
	full := &OutputSchemaRef{File: "flow.schema.json", Schema: "ReviewOutput"}
	if !full.Valid() {
		t.Error("expected fully populated ref to be valid")
	}
}
