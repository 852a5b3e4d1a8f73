package events

import "testing"

func TestEmitDispatchesInRegistrationOrder(t *testing.T) {
	e := New(nil)
	var order []int
	e.On(IterationStart, func(data interface{}) { order = append(order, 1) })
	e.On(IterationStart, func(data interface{}) { order = append(order, 2) })

	e.Emit(IterationStart, nil)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("expected handlers called in registration order, got %v", order)
	}
}

func TestEmitOnlyCallsHandlersForMatchingName(t *testing.T) {
	e := New(nil)
	called := false
	e.On(IterationEnd, func(data interface{}) { called = true })

	e.Emit(IterationStart, nil)
	if called {
		t.Error("expected no handler to fire for an unrelated event name")
	}
}

func TestEmitPassesDataThrough(t *testing.T) {
	e := New(nil)
	var got interface{}
	e.On(PromptBuilt, func(data interface{}) { got = data })

	e.Emit(PromptBuilt, "the prompt")
	if got != "the prompt" {
		t.Errorf("expected data to pass through unchanged, got %v", got)
	}
}

func TestEmitRecoversFromPanickingHandler(t *testing.T) {
	e := New(nil)
	var secondCalled bool
	e.On(Error, func(data interface{}) { panic("boom") })
	e.On(Error, func(data interface{}) { secondCalled = true })

	e.Emit(Error, nil) // must not panic out of Emit
	if !secondCalled {
		t.Error("expected dispatch to continue to the next handler after a panic")
	}
}

func TestEmitWithNoHandlersIsANoOp(t *testing.T) {
	e := New(nil)
	e.Emit(Completed, nil) // must not panic
}
