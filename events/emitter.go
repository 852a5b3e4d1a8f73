// Package events implements the EventEmitter component: a small
// synchronous, in-order pub/sub used to observe the runner's lifecycle
// without coupling observers to its internals (spec.md §4.9).
package events

import (
	"fmt"

	"github.com/tettuan/climpt/core"
)

// Name enumerates the fixed set of event points the runner emits.
type Name string

const (
	Initialized       Name = "initialized"
	IterationStart    Name = "iterationStart"
	IterationEnd      Name = "iterationEnd"
	PromptBuilt       Name = "promptBuilt"
	QueryExecuted     Name = "queryExecuted"
	CompletionChecked Name = "completionChecked"
	StateChange       Name = "stateChange"
	BoundaryHook      Name = "boundaryHook"
	Error             Name = "error"
	Completed         Name = "completed"
)

// Handler observes one emitted event. data's shape is event-specific;
// handlers type-assert it for the Name they registered against.
type Handler func(data interface{})

// Emitter dispatches events to registered handlers synchronously and in
// registration order. A handler that panics or is otherwise misbehaved
// never aborts dispatch or propagates to the caller — event observation
// must not be able to break the run it is observing (spec.md §4.9).
type Emitter struct {
	logger   core.Logger
	handlers map[Name][]Handler
}

// New builds an empty Emitter.
func New(logger core.Logger) *Emitter {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Emitter{logger: logger, handlers: make(map[Name][]Handler)}
}

// On registers handler for name. Multiple handlers for the same name are
// called in the order registered.
func (e *Emitter) On(name Name, handler Handler) {
	e.handlers[name] = append(e.handlers[name], handler)
}

// Emit dispatches data to every handler registered for name.
func (e *Emitter) Emit(name Name, data interface{}) {
	for _, h := range e.handlers[name] {
		e.safeCall(name, h, data)
	}
}

func (e *Emitter) safeCall(name Name, h Handler, data interface{}) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("[StepFlow] event handler panicked", map[string]interface{}{
				"event": string(name), "recovered": fmt.Sprintf("%v", r),
			})
		}
	}()
	h(data)
}
