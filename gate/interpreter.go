// Package gate extracts routing information — intent, target, handoff —
// from a step's structured output, applying alias mapping and the
// failFast/fallback policy described in spec.md §4.3.
package gate

import (
	"fmt"

	"github.com/tettuan/climpt/core"
)

// aliasTable maps the wire vocabulary a model may emit onto the bounded
// intent set. Unknown values fall through to the fallback path.
var aliasTable = map[string]core.Intent{
	"next":     core.IntentNext,
	"continue": core.IntentNext,
	"repeat":   core.IntentRepeat,
	"retry":    core.IntentRepeat,
	"jump":     core.IntentJump,
	"closing":  core.IntentClosing,
	"done":     core.IntentClosing,
	"complete": core.IntentClosing,
	"handoff":  core.IntentHandoff,
	"abort":    core.IntentAbort,
	"escalate": core.IntentEscalate,
}

// reasonCandidates is the small ordered probe list for extracting a
// human-readable reason (spec.md §4.3 step 8).
var reasonCandidates = []string{
	"next_action.reason",
	"reason",
	"next_action.details.reason",
	"message",
}

// Interpretation is the result of interpreting one step's structured
// output (spec.md §4.3).
type Interpretation struct {
	Intent       core.Intent
	Target       string
	Handoff      map[string]interface{}
	UsedFallback bool
	Reason       string
}

// Interpreter implements the GateInterpreter component.
type Interpreter struct {
	logger core.Logger
}

// NewInterpreter builds an Interpreter that logs spec-violation fallbacks
// through logger.
func NewInterpreter(logger core.Logger) *Interpreter {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Interpreter{logger: logger}
}

// Interpret runs the gate algorithm from spec.md §4.3 against step's
// structured output.
func (g *Interpreter) Interpret(step *core.Step, output core.Record) (*Interpretation, error) {
	gateCfg := step.StructuredGate
	if gateCfg == nil {
		return &Interpretation{Intent: core.IntentNext, UsedFallback: true}, nil
	}

	raw, ok := core.GetPathString(output, gateCfg.IntentField)
	var mapped core.Intent
	mappedOK := false
	if ok {
		if aliased, found := aliasTable[raw]; found {
			mapped = aliased
			mappedOK = true
		}
	}

	if mappedOK && gateCfg.Allows(mapped) {
		interp := &Interpretation{Intent: mapped}
		g.extractTarget(gateCfg, output, interp)
		g.extractHandoff(gateCfg, output, interp)
		interp.Reason = extractReason(output)
		return interp, nil
	}

	return g.fallback(step, gateCfg, output)
}

func (g *Interpreter) fallback(step *core.Step, gateCfg *core.GateConfig, output core.Record) (*Interpretation, error) {
	reason := fmt.Sprintf("no allowed intent extracted at %q", gateCfg.IntentField)

	if gateCfg.FailFastEnabled() {
		return nil, &core.GateInterpretationError{StepID: step.ID, Reason: reason}
	}

	g.logger.Warn("[StepFlow] spec violation: gate fallback used", map[string]interface{}{
		"stepId": step.ID, "reason": reason,
	})

	chosen, ok := chooseFallbackIntent(gateCfg)
	if !ok {
		return nil, &core.GateInterpretationError{StepID: step.ID, Reason: "no allowed intent available for fallback"}
	}

	interp := &Interpretation{Intent: chosen, UsedFallback: true, Reason: reason}
	g.extractTarget(gateCfg, output, interp)
	g.extractHandoff(gateCfg, output, interp)
	return interp, nil
}

func chooseFallbackIntent(gateCfg *core.GateConfig) (core.Intent, bool) {
	if gateCfg.FallbackIntent != "" && gateCfg.Allows(gateCfg.FallbackIntent) {
		return gateCfg.FallbackIntent, true
	}
	if gateCfg.Allows(core.IntentNext) {
		return core.IntentNext, true
	}
	return gateCfg.FirstAllowed()
}

func (g *Interpreter) extractTarget(gateCfg *core.GateConfig, output core.Record, interp *Interpretation) {
	if interp.Intent != core.IntentJump || gateCfg.TargetField == "" {
		return
	}
	if v, ok := core.GetPath(output, gateCfg.TargetField); ok {
		if s, ok := v.(string); ok {
			interp.Target = s
		}
	}
}

func (g *Interpreter) extractHandoff(gateCfg *core.GateConfig, output core.Record, interp *Interpretation) {
	if len(gateCfg.HandoffFields) == 0 {
		return
	}
	handoff := make(map[string]interface{})
	for _, path := range gateCfg.HandoffFields {
		if v, ok := core.GetPath(output, path); ok {
			handoff[core.LastSegment(path)] = v
		}
	}
	if len(handoff) > 0 {
		interp.Handoff = handoff
	}
}

func extractReason(output core.Record) string {
	for _, path := range reasonCandidates {
		if s, ok := core.GetPathStringExact(output, path); ok && s != "" {
			return s
		}
	}
	return ""
}
