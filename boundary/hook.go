// Package boundary implements the BoundaryHook component: a single,
// narrow extension surface fired exactly once, when a run is about to
// close, so an embedding application can persist or react to the final
// structured output without reaching into the runner's internals
// (spec.md §4.7).
package boundary

import (
	"context"

	"github.com/tettuan/climpt/core"
	"github.com/tettuan/climpt/events"
)

// Payload is the single contract shape passed to a Handler. StepKind is
// always core.KindClosure — the hook never fires from any other step
// kind.
type Payload struct {
	StepID           string
	StepKind         core.StepKind
	StructuredOutput core.Record
}

// Handler reacts to a closing boundary. Returning an error surfaces as a
// recoverable core.FrameworkError to the runner; it does not undo the
// routing decision already made.
type Handler interface {
	HandleBoundary(ctx context.Context, payload Payload) error
}

// Hook implements the BoundaryHook component.
type Hook struct {
	logger  core.Logger
	emitter *events.Emitter
	handler Handler
}

// New builds a Hook. handler may be nil, in which case the boundary is
// still observable via the emitter's events.BoundaryHook event but
// nothing else happens.
func New(logger core.Logger, emitter *events.Emitter, handler Handler) *Hook {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Hook{logger: logger, emitter: emitter, handler: handler}
}

// Fire runs the boundary check for one iteration's routing outcome. It is
// a no-op unless all three conditions hold: the step is a closure step,
// the gate's intent was "closing", and the completion chain validated
// (spec.md §4.7). Callers pass completionValid=true when no completion
// conditions were declared for the step (CompletionChain already treats
// an absent contract as satisfied).
func (h *Hook) Fire(ctx context.Context, stepID string, stepKind core.StepKind, intent core.Intent, completionValid bool, output core.Record) error {
	if stepKind != core.KindClosure || intent != core.IntentClosing || !completionValid {
		return nil
	}

	payload := Payload{StepID: stepID, StepKind: stepKind, StructuredOutput: output}

	if h.emitter != nil {
		h.emitter.Emit(events.BoundaryHook, payload)
	}

	if h.handler == nil {
		return nil
	}
	if err := h.handler.HandleBoundary(ctx, payload); err != nil {
		return &core.FrameworkError{
			Code: core.CodeCompletionError, Op: "BoundaryHook.Fire",
			Message: "boundary handler returned an error", Recoverable: true, Err: err,
		}
	}
	return nil
}
