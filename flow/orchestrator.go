// Package flow drives the per-iteration stepId bookkeeping: which step is
// canonical for iteration i, correcting any stepId the model returned,
// recording structured output into the StepContext, and delegating to the
// gate interpreter and workflow router for the transition decision
// (spec.md §4.5).
package flow

import (
	"fmt"

	"github.com/tettuan/climpt/core"
	"github.com/tettuan/climpt/gate"
	"github.com/tettuan/climpt/router"
)

// Orchestrator implements the FlowOrchestrator component.
type Orchestrator struct {
	registry       *core.Registry
	ctx            *core.StepContext
	gate           *gate.Interpreter
	router         *router.Router
	logger         core.Logger
	routingEnabled bool
}

// New builds an Orchestrator over registry. routingEnabled mirrors the
// runner configuration that can disable transition routing entirely
// (e.g. single-step diagnostic runs).
func New(registry *core.Registry, gateInterp *gate.Interpreter, rtr *router.Router, logger core.Logger, routingEnabled bool) *Orchestrator {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Orchestrator{
		registry:       registry,
		ctx:            core.NewStepContext(),
		gate:           gateInterp,
		router:         rtr,
		logger:         logger,
		routingEnabled: routingEnabled,
	}
}

// Context exposes the StepContext owned by this orchestrator.
func (o *Orchestrator) Context() *core.StepContext { return o.ctx }

// RoutingEnabled reports whether this orchestrator will compute
// transitions at all.
func (o *Orchestrator) RoutingEnabled() bool { return o.routingEnabled }

// InitializeStepContext primes the context to entryStep. Safe to call more
// than once; only the first call has effect (spec.md §3 lifecycle).
func (o *Orchestrator) InitializeStepContext(entryStep string) {
	o.ctx.Initialize(entryStep)
}

// GetStepIdForIteration resolves the canonical stepId for iteration i
// (spec.md §4.5). completionType selects entryStepMapping for i==1.
func (o *Orchestrator) GetStepIdForIteration(i int, completionType string) (string, error) {
	if i == 1 {
		id, ok := o.registry.EntryStepFor(completionType)
		if !ok {
			return "", fmt.Errorf("flow: no entryStep or entryStepMapping configured for completion type %q", completionType)
		}
		return id, nil
	}
	if !o.ctx.Initialized() {
		return "", fmt.Errorf("flow: step context not initialized before iteration %d (programming error)", i)
	}
	return o.ctx.CurrentStepID(), nil
}

// NormalizeStructuredOutputStepId overwrites a differing stepId in the
// model's structured output with canonical, logging the correction
// (spec.md §4.5). A stepId the model never returned is left absent.
func (o *Orchestrator) NormalizeStructuredOutputStepId(canonical string, summary *core.IterationSummary) {
	if summary.StructuredOutput == nil {
		return
	}
	got, ok := summary.StructuredOutput["stepId"].(string)
	if !ok || got == canonical {
		return
	}
	summary.StructuredOutput["stepId"] = canonical
	o.logger.Info(fmt.Sprintf("[StepFlow] stepId corrected: %q -> %q", got, canonical), map[string]interface{}{
		"got": got, "canonical": canonical,
	})
}

// RecordStepOutput merges structured output plus iteration/session/error
// metadata into StepContext[stepId]. A no-op before the context is
// initialized (spec.md §4.5).
func (o *Orchestrator) RecordStepOutput(stepID string, summary *core.IterationSummary) {
	if !o.ctx.Initialized() {
		return
	}
	values := make(map[string]interface{}, len(summary.StructuredOutput)+3)
	for k, v := range summary.StructuredOutput {
		values[k] = v
	}
	values["iteration"] = summary.Iteration
	values["sessionId"] = summary.SessionID
	values["errorCount"] = len(summary.Errors)
	o.ctx.Merge(stepID, values)
}

// HandleStepTransition interprets and routes the iteration's structured
// output, storing any captured handoff and advancing the context's
// current step on success (spec.md §4.5). Returns nil when schema
// resolution previously failed, routing is disabled, or there is no
// structured output — callers are responsible for applying the
// missing-intent rule (spec.md §4.5) to distinguish a benign nil from a
// fatal one.
func (o *Orchestrator) HandleStepTransition(stepID string, summary *core.IterationSummary) (*router.Result, error) {
	if summary.SchemaResolutionFailed || !o.routingEnabled || !summary.HasStructuredOutput() {
		return nil, nil
	}

	step, ok := o.registry.StepByID(stepID)
	if !ok {
		return nil, fmt.Errorf("flow: unknown step %q", stepID)
	}

	interp, err := o.gate.Interpret(step, summary.StructuredOutput)
	if err != nil {
		return nil, err
	}

	result, err := o.router.Route(o.registry, step, interp)
	if err != nil {
		return nil, err
	}

	if interp.Handoff != nil {
		o.ctx.Merge(stepID, interp.Handoff)
	}
	if !result.SignalCompletion {
		o.ctx.SetCurrentStepID(result.NextStepID)
	}
	return result, nil
}
