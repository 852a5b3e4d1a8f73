// Package schema resolves {file, schema} references into fully
// dereferenced JSON Schemas for structured-output enforcement: $ref and
// allOf resolution, cycle detection, a depth cap, and closed-object
// injection (spec.md §4.1), plus the per-step 2-strike fail-fast wrapper
// (spec.md §4.2).
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tettuan/climpt/core"
)

// MaxDepth is the hard stop on recursive $ref resolution (spec.md §4.1).
const MaxDepth = 50

// Resolver loads and deeply resolves JSON Schema references rooted at a
// base directory. Loaded files are cached in-process; the cache is
// read-only after first insert and shared across every step in a run
// (spec.md §5).
type Resolver struct {
	baseDir string
	logger  core.Logger

	mu        sync.Mutex
	fileCache map[string]map[string]interface{}

	hits   int64
	misses int64
}

// NewResolver creates a Resolver rooted at baseDir.
func NewResolver(baseDir string, logger core.Logger) *Resolver {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Resolver{
		baseDir:   baseDir,
		logger:    logger,
		fileCache: make(map[string]map[string]interface{}),
	}
}

// Resolve dereferences schemaName within file into a fully resolved,
// closed-object schema. schemaName may be a JSON Pointer ("#/$defs/foo"),
// or a bare name looked up first in "definitions", then "$defs", then the
// file's top level (spec.md §4.1).
func (r *Resolver) Resolve(file, schemaName string) (map[string]interface{}, error) {
	doc, err := r.loadFile(file)
	if err != nil {
		return nil, err
	}

	target, err := lookupSchema(doc, schemaName)
	if err != nil {
		if spe, ok := err.(*core.SchemaPointerError); ok {
			spe.File = file
		}
		atomic.AddInt64(&r.misses, 1)
		return nil, err
	}

	cloned := deepClone(target)
	ctx := &resolveCtx{visited: make(map[string]bool)}
	resolved, err := r.resolveNode(file, cloned, ctx)
	if err != nil {
		atomic.AddInt64(&r.misses, 1)
		return nil, err
	}

	m, ok := resolved.(map[string]interface{})
	if !ok {
		atomic.AddInt64(&r.misses, 1)
		return nil, fmt.Errorf("resolved schema %q in %q is not an object", schemaName, file)
	}

	atomic.AddInt64(&r.hits, 1)
	return m, nil
}

// Stats reports resolver hit/miss counters for observability: a hit is a
// successful Resolve call, a miss one whose schema lookup or resolution
// failed; calls that fail to load the file are not counted. Mirrors the teacher's
// RedisSchemaCache.Stats() (read-only, no effect on resolution behavior).
func (r *Resolver) Stats() map[string]interface{} {
	hits := atomic.LoadInt64(&r.hits)
	misses := atomic.LoadInt64(&r.misses)
	total := hits + misses
	stats := map[string]interface{}{
		"hits":          hits,
		"misses":        misses,
		"total_lookups": total,
	}
	if total > 0 {
		stats["hit_rate"] = float64(hits) / float64(total)
	}
	return stats
}

func (r *Resolver) loadFile(file string) (map[string]interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.fileCache[file]; ok {
		return cached, nil
	}

	path := filepath.Join(r.baseDir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.SchemaPointerError{Pointer: "(file)", File: file}
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("schema file %q is not valid JSON: %w", file, err)
	}

	r.fileCache[file] = parsed
	return parsed, nil
}

// resolveCtx tracks the current DFS path for cycle detection. It must not
// outlive a single Resolve call: cycles are only invalid within one
// top-level resolution, not across different ones (spec.md §9).
type resolveCtx struct {
	visited map[string]bool
	depth   int
}

func (r *Resolver) resolveNode(file string, node interface{}, ctx *resolveCtx) (interface{}, error) {
	switch v := node.(type) {
	case map[string]interface{}:
		if refRaw, ok := v["$ref"]; ok {
			return r.resolveRef(file, refRaw, ctx)
		}
		if allOfRaw, ok := v["allOf"]; ok {
			return r.resolveAllOf(file, v, allOfRaw, ctx)
		}
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			rv, err := r.resolveNode(file, val, ctx)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return closeObject(out), nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			rv, err := r.resolveNode(file, item, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

func (r *Resolver) resolveRef(file string, refRaw interface{}, ctx *resolveCtx) (interface{}, error) {
	ref, _ := refRaw.(string)
	key := file + "#" + ref
	if ctx.visited[key] {
		return map[string]interface{}{}, nil
	}
	if ctx.depth >= MaxDepth {
		return nil, fmt.Errorf("schema resolution depth exceeded (%d) resolving %q in %q", MaxDepth, ref, file)
	}

	targetFile, targetPointer := splitRef(file, ref)
	doc, err := r.loadFile(targetFile)
	if err != nil {
		return nil, err
	}

	target, err := lookupSchema(doc, targetPointer)
	if err != nil {
		if spe, ok := err.(*core.SchemaPointerError); ok {
			spe.File = targetFile
		}
		return nil, err
	}

	ctx.visited[key] = true
	ctx.depth++
	cloned := deepClone(target)
	resolved, err := r.resolveNode(targetFile, cloned, ctx)
	ctx.depth--
	delete(ctx.visited, key)
	return resolved, err
}

func (r *Resolver) resolveAllOf(file string, obj map[string]interface{}, allOfRaw interface{}, ctx *resolveCtx) (interface{}, error) {
	allOf, _ := allOfRaw.([]interface{})

	merged := make(map[string]interface{}, len(obj))
	for k, val := range obj {
		if k == "allOf" {
			continue
		}
		rv, err := r.resolveNode(file, val, ctx)
		if err != nil {
			return nil, err
		}
		merged[k] = rv
	}

	requiredSeen := map[string]bool{}
	var requiredUnion []string
	if req, ok := merged["required"].([]interface{}); ok {
		for _, x := range req {
			if s, ok := x.(string); ok && !requiredSeen[s] {
				requiredSeen[s] = true
				requiredUnion = append(requiredUnion, s)
			}
		}
	}
	propsMerged, _ := merged["properties"].(map[string]interface{})
	if propsMerged == nil {
		propsMerged = map[string]interface{}{}
	}

	for _, memberRaw := range allOf {
		memberResolved, err := r.resolveNode(file, memberRaw, ctx)
		if err != nil {
			return nil, err
		}
		member, ok := memberResolved.(map[string]interface{})
		if !ok {
			continue
		}
		for k, val := range member {
			switch k {
			case "required":
				if req, ok := val.([]interface{}); ok {
					for _, x := range req {
						if s, ok := x.(string); ok && !requiredSeen[s] {
							requiredSeen[s] = true
							requiredUnion = append(requiredUnion, s)
						}
					}
				}
			case "properties":
				if props, ok := val.(map[string]interface{}); ok {
					for pk, pv := range props {
						if _, exists := propsMerged[pk]; !exists {
							propsMerged[pk] = pv
						}
					}
				}
			default:
				if _, exists := merged[k]; !exists {
					merged[k] = val
				}
			}
		}
	}

	if len(requiredUnion) > 0 {
		reqSlice := make([]interface{}, len(requiredUnion))
		for i, s := range requiredUnion {
			reqSlice[i] = s
		}
		merged["required"] = reqSlice
	}
	if len(propsMerged) > 0 {
		merged["properties"] = propsMerged
	}
	delete(merged, "allOf")

	return closeObject(merged), nil
}

// closeObject injects additionalProperties:false into any object schema
// (type:"object" or a schema with "properties") unless already explicit
// (spec.md §4.1).
func closeObject(m map[string]interface{}) map[string]interface{} {
	isObject := false
	if t, ok := m["type"].(string); ok && t == "object" {
		isObject = true
	}
	if _, hasProps := m["properties"]; hasProps {
		isObject = true
	}
	if isObject {
		if _, explicit := m["additionalProperties"]; !explicit {
			m["additionalProperties"] = false
		}
	}
	return m
}

func lookupSchema(doc map[string]interface{}, name string) (interface{}, error) {
	stripped := stripPointerPrefix(name)
	if strings.HasPrefix(stripped, "/") {
		return resolveJSONPointer(doc, stripped)
	}

	if defs, ok := doc["definitions"].(map[string]interface{}); ok {
		if v, ok := defs[stripped]; ok {
			return v, nil
		}
	}
	if defs, ok := doc["$defs"].(map[string]interface{}); ok {
		if v, ok := defs[stripped]; ok {
			return v, nil
		}
	}
	if v, ok := doc[stripped]; ok {
		return v, nil
	}
	return nil, &core.SchemaPointerError{Pointer: name}
}

// stripPointerPrefix removes every leading '#', including malformed
// doubled prefixes such as "##/...".
func stripPointerPrefix(s string) string {
	for strings.HasPrefix(s, "#") {
		s = s[1:]
	}
	return s
}

func resolveJSONPointer(doc map[string]interface{}, pointer string) (interface{}, error) {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return doc, nil
	}
	segments := strings.Split(pointer, "/")
	var cur interface{} = doc
	for _, seg := range segments {
		seg = unescapePointerSegment(seg)
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, &core.SchemaPointerError{Pointer: pointer}
		}
		v, ok := m[seg]
		if !ok {
			return nil, &core.SchemaPointerError{Pointer: pointer}
		}
		cur = v
	}
	return cur, nil
}

func unescapePointerSegment(s string) string {
	s = strings.ReplaceAll(s, "~1", "/")
	s = strings.ReplaceAll(s, "~0", "~")
	return s
}

// splitRef resolves a $ref value relative to the file it appears in,
// returning the target file and the pointer portion (with leading '#'
// intact). A ref without '#' is returned unchanged as a bare name in the
// current file.
func splitRef(currentFile, ref string) (file, pointer string) {
	if idx := strings.Index(ref, "#"); idx >= 0 {
		filePart := ref[:idx]
		pointerPart := ref[idx:]
		if filePart == "" {
			return currentFile, pointerPart
		}
		return joinRelative(currentFile, filePart), pointerPart
	}
	return currentFile, ref
}

func joinRelative(currentFile, rel string) string {
	dir := filepath.Dir(currentFile)
	if dir == "." {
		return rel
	}
	return filepath.Join(dir, rel)
}

func deepClone(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = deepClone(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = deepClone(val)
		}
		return out
	default:
		return v
	}
}
