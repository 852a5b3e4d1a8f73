package core

import "strings"

// Record is the open mapping structured output is modeled as at the wire
// boundary (spec.md §9: "dynamic records"). Interpreters narrow it via
// explicit path reads rather than reflective deserialization.
type Record map[string]interface{}

// GetPath reads a dot-separated path out of a Record, requiring an object
// (map[string]interface{}) at every intermediate segment. It returns
// (nil, false) on any mismatch, matching the spec's dot-path rule in §4.3.
func GetPath(rec Record, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	var cur interface{} = map[string]interface{}(rec)
	for _, seg := range segments {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// GetPathString reads a string value at path and lowercases it, the form
// the GateInterpreter needs for alias lookups. A non-string value reports
// ("", false).
func GetPathString(rec Record, path string) (string, bool) {
	v, ok := GetPath(rec, path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return strings.ToLower(s), true
}

// GetPathStringExact reads a path and returns its string value verbatim
// (no case coercion), for fields like a reason message where case matters.
func GetPathStringExact(rec Record, path string) (string, bool) {
	v, ok := GetPath(rec, path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// LastSegment returns the final "."-delimited component of a dot-path,
// used to key captured handoff values by their field name.
func LastSegment(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}
