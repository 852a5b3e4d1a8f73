package core

// StepContext accumulates per-step key/value data across iterations (the
// "handoff store", spec.md §3). It is owned and mutated only by the
// FlowOrchestrator in the single iteration loop: no concurrent writers are
// expected (spec.md §5), so no internal locking is used.
type StepContext struct {
	entries       map[string]map[string]interface{}
	currentStepID string
	initialized   bool
}

// NewStepContext allocates an empty, uninitialized context. Call
// Initialize before recording any output.
func NewStepContext() *StepContext {
	return &StepContext{entries: make(map[string]map[string]interface{})}
}

// Initialize primes currentStepID to the entry step. Safe to call once;
// subsequent calls are no-ops, matching "created on first iteration"
// (spec.md §3 lifecycle).
func (c *StepContext) Initialize(entryStep string) {
	if c.initialized {
		return
	}
	c.currentStepID = entryStep
	c.initialized = true
}

// Initialized reports whether the context has been primed.
func (c *StepContext) Initialized() bool { return c.initialized }

// CurrentStepID returns the step the orchestrator considers canonical for
// the next iteration.
func (c *StepContext) CurrentStepID() string { return c.currentStepID }

// SetCurrentStepID advances the canonical step, called after each routing
// decision.
func (c *StepContext) SetCurrentStepID(id string) { c.currentStepID = id }

// Merge appends values into stepID's entry, creating it if absent.
// Existing keys are overwritten by new values for the same key, but no
// value is ever cleared by omission: "additional keys may accumulate"
// (spec.md §3). A no-op when the context has not been initialized.
func (c *StepContext) Merge(stepID string, values map[string]interface{}) {
	if !c.initialized || values == nil {
		return
	}
	existing, ok := c.entries[stepID]
	if !ok {
		existing = make(map[string]interface{}, len(values))
		c.entries[stepID] = existing
	}
	for k, v := range values {
		existing[k] = v
	}
}

// Get returns the accumulated entry for stepID, if any.
func (c *StepContext) Get(stepID string) (map[string]interface{}, bool) {
	v, ok := c.entries[stepID]
	return v, ok
}

// Handoff returns an independent snapshot of stepID's accumulated entry,
// or an empty map when none was recorded. Conditional transitions in the
// router read the current iteration's interpretation handoff, not this
// snapshot.
func (c *StepContext) Handoff(stepID string) map[string]interface{} {
	v, ok := c.entries[stepID]
	if !ok {
		return map[string]interface{}{}
	}
	snapshot := make(map[string]interface{}, len(v))
	for k, val := range v {
		snapshot[k] = val
	}
	return snapshot
}
