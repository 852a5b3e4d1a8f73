package events

import "testing"

func TestRecorderRetainsEventsOldestFirst(t *testing.T) {
	r := NewRecorder(0)
	r.Record(IterationStart, 1)
	r.Record(IterationEnd, 2)

	got := r.Events()
	if len(got) != 2 || got[0].Name != IterationStart || got[1].Name != IterationEnd {
		t.Errorf("unexpected events: %v", got)
	}
}

func TestRecorderTrimsToMax(t *testing.T) {
	r := NewRecorder(2)
	r.Record(IterationStart, 1)
	r.Record(IterationStart, 2)
	r.Record(IterationStart, 3)

	got := r.Events()
	if len(got) != 2 {
		t.Fatalf("expected trimming to max=2, got %d events", len(got))
	}
	if got[0].Data != 2 || got[1].Data != 3 {
		t.Errorf("expected the two most recent events retained, got %v", got)
	}
}

func TestRecorderLastFindsMostRecentMatchingName(t *testing.T) {
	r := NewRecorder(0)
	r.Record(IterationStart, "a")
	r.Record(IterationEnd, "b")
	r.Record(IterationStart, "c")

	last, ok := r.Last(IterationStart)
	if !ok || last.Data != "c" {
		t.Errorf("expected the most recent IterationStart, got %v ok=%v", last, ok)
	}
}

func TestRecorderLastReportsAbsence(t *testing.T) {
	r := NewRecorder(0)
	if _, ok := r.Last(Completed); ok {
		t.Error("expected Last to report not-found on an empty recorder")
	}
}

func TestRecorderBoundAsEmitterHandler(t *testing.T) {
	e := New(nil)
	r := NewRecorder(0)
	e.On(StateChange, func(data interface{}) { r.Record(StateChange, data) })

	e.Emit(StateChange, "step-a -> step-b")

	last, ok := r.Last(StateChange)
	if !ok || last.Data != "step-a -> step-b" {
		t.Errorf("expected the emitted data recorded, got %v ok=%v", last, ok)
	}
}
