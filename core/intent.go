package core

// Intent is the bounded set of routing signals a step's structured output
// can carry once interpreted by the GateInterpreter.
type Intent string

const (
	IntentNext     Intent = "next"
	IntentRepeat   Intent = "repeat"
	IntentJump     Intent = "jump"
	IntentClosing  Intent = "closing"
	IntentHandoff  Intent = "handoff"
	IntentAbort    Intent = "abort"
	IntentEscalate Intent = "escalate"
)

// allIntents backs IsKnownIntent. Load-time validation
// (schema.ValidateFlowSteps) does not check allowedIntents against it.
var allIntents = map[Intent]bool{
	IntentNext: true, IntentRepeat: true, IntentJump: true, IntentClosing: true,
	IntentHandoff: true, IntentAbort: true, IntentEscalate: true,
}

// IsKnownIntent reports whether s names one of the seven recognized intents.
func IsKnownIntent(s string) bool {
	return allIntents[Intent(s)]
}

// StepKind governs which intents are legal for a step (spec.md §3).
type StepKind string

const (
	KindInitial       StepKind = "initial"
	KindContinuation  StepKind = "continuation"
	KindClosure       StepKind = "closure"
	KindVerification  StepKind = "verification"
)

// ParseStepKind extracts the kind prefix from a structured stepId of the
// form "<kind>.<domain>". Unknown prefixes are returned verbatim so callers
// can treat them as "unknown-kind work" per the router's handoff rule.
func ParseStepKind(stepID string) StepKind {
	for i := 0; i < len(stepID); i++ {
		if stepID[i] == '.' {
			return StepKind(stepID[:i])
		}
	}
	return StepKind(stepID)
}

// StepDomain returns the portion of a stepId after the first ".", used by
// the router's default initial->continuation transition.
func StepDomain(stepID string) (string, bool) {
	for i := 0; i < len(stepID); i++ {
		if stepID[i] == '.' {
			return stepID[i+1:], true
		}
	}
	return "", false
}
