// Package router maps (current step, gate interpretation) pairs onto a
// routing decision: the next stepId, or a signal that the run should
// complete, enforcing the step-kind rules from spec.md §4.4.
package router

import (
	"fmt"

	"github.com/tettuan/climpt/core"
	"github.com/tettuan/climpt/gate"
)

// Result is the outcome of routing one iteration's interpretation.
type Result struct {
	NextStepID       string
	SignalCompletion bool
	Reason           string
	Intent           core.Intent
}

// Router implements the WorkflowRouter component.
type Router struct {
	logger core.Logger
}

// NewRouter builds a Router.
func NewRouter(logger core.Logger) *Router {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Router{logger: logger}
}

// Route applies the rules in spec.md §4.4 to decide the next step.
func (r *Router) Route(reg *core.Registry, step *core.Step, interp *gate.Interpretation) (*Result, error) {
	reason := interp.Reason
	if reason == "" {
		reason = fmt.Sprintf("Intent: %s", interp.Intent)
	}

	switch interp.Intent {
	case core.IntentClosing:
		return r.routeClosing(reg, step, interp, reason)
	case core.IntentAbort:
		return &Result{SignalCompletion: true, Reason: reason, Intent: interp.Intent}, nil
	case core.IntentRepeat:
		return &Result{NextStepID: step.ID, Reason: reason, Intent: interp.Intent}, nil
	case core.IntentJump:
		return r.routeJump(reg, step, interp, reason)
	case core.IntentEscalate:
		return r.routeEscalate(reg, step, interp, reason)
	case core.IntentHandoff:
		return r.routeHandoff(reg, step, interp, reason)
	default:
		return r.routeTransition(reg, step, interp, reason)
	}
}

func (r *Router) routeClosing(reg *core.Registry, step *core.Step, interp *gate.Interpretation, reason string) (*Result, error) {
	if step.Kind == core.KindClosure {
		return &Result{SignalCompletion: true, Reason: reason, Intent: interp.Intent}, nil
	}
	// Backward-compat shortcut: only when an explicit "closing" transition
	// exists on this work step (spec.md §4.4, §9 open question).
	if _, ok := step.Transitions["closing"]; ok {
		return r.resolveTransition(reg, step, interp, "closing", reason)
	}
	return nil, &core.RoutingError{
		StepID:  step.ID,
		Intent:  string(interp.Intent),
		Message: fmt.Sprintf("Intent '%s' not allowed for work step", interp.Intent),
	}
}

func (r *Router) routeJump(reg *core.Registry, step *core.Step, interp *gate.Interpretation, reason string) (*Result, error) {
	if interp.Target == "" {
		return nil, &core.RoutingError{StepID: step.ID, Intent: string(interp.Intent), Message: "jump intent missing target"}
	}
	if !reg.HasStep(interp.Target) {
		return nil, &core.RoutingError{StepID: step.ID, Intent: string(interp.Intent), Message: fmt.Sprintf("jump target %q is not a known step", interp.Target)}
	}
	return &Result{NextStepID: interp.Target, Reason: reason, Intent: interp.Intent}, nil
}

func (r *Router) routeEscalate(reg *core.Registry, step *core.Step, interp *gate.Interpretation, reason string) (*Result, error) {
	if step.Kind != core.KindVerification {
		return nil, &core.RoutingError{StepID: step.ID, Intent: string(interp.Intent), Message: "escalate intent only allowed from verification steps"}
	}
	if _, ok := step.Transitions["escalate"]; !ok {
		return nil, &core.RoutingError{StepID: step.ID, Intent: string(interp.Intent), Message: "escalate intent requires an explicit escalate transition"}
	}
	return r.resolveTransition(reg, step, interp, "escalate", reason)
}

// routeHandoff advances via step.Transitions["handoff"] when the step
// declares one (spec.md §8 scenarios 1-2: a continuation step's handoff
// advances the flow to its closure step), falling back to signaling
// completion only when no such transition is configured.
func (r *Router) routeHandoff(reg *core.Registry, step *core.Step, interp *gate.Interpretation, reason string) (*Result, error) {
	if step.Kind == core.KindInitial || step.Kind == core.KindClosure {
		return nil, &core.RoutingError{
			StepID:  step.ID,
			Intent:  string(core.IntentHandoff),
			Message: fmt.Sprintf("handoff intent not allowed from %s step", step.Kind),
		}
	}
	if _, ok := step.Transitions["handoff"]; ok {
		return r.resolveTransition(reg, step, interp, "handoff", reason)
	}
	return &Result{SignalCompletion: true, Reason: reason, Intent: core.IntentHandoff}, nil
}

// routeTransition handles "next" (and, defensively, any intent reaching
// here) by consulting step.transitions[intent].
func (r *Router) routeTransition(reg *core.Registry, step *core.Step, interp *gate.Interpretation, reason string) (*Result, error) {
	intentKey := string(interp.Intent)
	if _, ok := step.Transitions[intentKey]; ok {
		return r.resolveTransition(reg, step, interp, intentKey, reason)
	}

	if interp.Intent == core.IntentNext && step.Kind == core.KindInitial {
		if domain, ok := core.StepDomain(step.ID); ok {
			continuationID := "continuation." + domain
			if reg.HasStep(continuationID) {
				return &Result{NextStepID: continuationID, Reason: reason, Intent: interp.Intent}, nil
			}
		}
		return &Result{SignalCompletion: true, Reason: reason, Intent: interp.Intent}, nil
	}

	return nil, &core.RoutingError{
		StepID:  step.ID,
		Intent:  intentKey,
		Message: fmt.Sprintf("no transition configured for intent %q", intentKey),
	}
}

func (r *Router) resolveTransition(reg *core.Registry, step *core.Step, interp *gate.Interpretation, intentKey, reason string) (*Result, error) {
	target := step.Transitions[intentKey]

	if target.Complete {
		return &Result{SignalCompletion: true, Reason: reason, Intent: interp.Intent}, nil
	}

	if target.IsConditional() {
		raw, _ := interp.Handoff[target.Conditional.Condition]
		value := fmt.Sprintf("%v", raw)
		resolved, ok := target.Conditional.Lookup(value)
		if !ok {
			return nil, &core.RoutingError{
				StepID:  step.ID,
				Intent:  intentKey,
				Message: fmt.Sprintf("conditional transition on %q has no match for value %q and no default", target.Conditional.Condition, value),
			}
		}
		if !reg.HasStep(resolved) {
			return nil, &core.RoutingError{StepID: step.ID, Intent: intentKey, Message: fmt.Sprintf("conditional target %q is not a known step", resolved)}
		}
		return &Result{NextStepID: resolved, Reason: reason, Intent: interp.Intent}, nil
	}

	if !reg.HasStep(target.StepID) {
		return nil, &core.RoutingError{StepID: step.ID, Intent: intentKey, Message: fmt.Sprintf("transition target %q is not a known step", target.StepID)}
	}
	return &Result{NextStepID: target.StepID, Reason: reason, Intent: interp.Intent}, nil
}
