package core

import "testing"

func TestGetPathNested(t *testing.T) {
	rec := Record{
		"next_action": map[string]interface{}{
			"action": "Closing",
			"target": "continuation.review",
		},
	}

	v, ok := GetPath(rec, "next_action.action")
	if !ok || v != "Closing" {
		t.Errorf("expected (\"Closing\", true), got (%v, %v)", v, ok)
	}

	if _, ok := GetPath(rec, "next_action.missing"); ok {
		t.Error("expected missing leaf to report ok=false")
	}

	if _, ok := GetPath(rec, "next_action.action.sub"); ok {
		t.Error("expected indexing through a non-object to report ok=false")
	}

	if _, ok := GetPath(rec, ""); ok {
		t.Error("expected empty path to report ok=false")
	}
}

func TestGetPathStringLowercases(t *testing.T) {
	rec := Record{"next_action": map[string]interface{}{"action": "CLOSING"}}

	s, ok := GetPathString(rec, "next_action.action")
	if !ok || s != "closing" {
		t.Errorf("expected (\"closing\", true), got (%q, %v)", s, ok)
	}
}

func TestGetPathStringExactPreservesCase(t *testing.T) {
	rec := Record{"reason": "Needs Review"}

	s, ok := GetPathStringExact(rec, "reason")
	if !ok || s != "Needs Review" {
		t.Errorf("expected (\"Needs Review\", true), got (%q, %v)", s, ok)
	}
}

func TestLastSegment(t *testing.T) {
	cases := map[string]string{
		"next_action.details.testResult": "testResult",
		"reason":                         "reason",
		"":                               "",
	}
	for path, want := range cases {
		if got := LastSegment(path); got != want {
			t.Errorf("LastSegment(%q) = %q, want %q", path, got, want)
		}
	}
}
