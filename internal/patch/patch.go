// Package patch implements the minimal slash-path patch applier used
// for partial field updates on an entity's data bag.
//
// The format is deliberately smaller than RFC 6902: only replace, add
// and remove, object keys only (no array indices), and unknown ops are
// forward-compatible no-ops rather than errors. Apply never mutates its
// input; editors rely on that to preview a mutation locally before it
// round-trips through the log.
package patch

import (
	"strings"
)

// Patch op names. Anything else is ignored.
const (
	OpReplace = "replace"
	OpAdd     = "add"
	OpRemove  = "remove"
)

// Op is a single patch operation addressed by slash path, e.g.
// {op: "replace", path: "/data/text", value: "new"}.
type Op struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// Apply applies ops to doc and returns the patched copy. The input doc
// is deep-copied first and never mutated. replace and add both set the
// value at the final path segment, creating intermediate objects as
// needed; remove deletes the final key and is a no-op when any segment
// is missing.
func Apply(doc map[string]any, ops []Op) map[string]any {
	out := CloneMap(doc)
	for _, op := range ops {
		segments := splitPath(op.Path)
		if len(segments) == 0 {
			continue
		}
		switch op.Op {
		case OpReplace, OpAdd:
			setPath(out, segments, op.Value)
		case OpRemove:
			removePath(out, segments)
		default:
			// Unknown op: skip. Newer clients may emit ops this
			// version does not understand.
		}
	}
	return out
}

// splitPath splits "/a/b/c" into ["a" "b" "c"]. Empty segments from
// leading or doubled slashes are dropped.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := parts[:0]
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

func setPath(doc map[string]any, segments []string, value any) {
	cur := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	cur[segments[len(segments)-1]] = cloneValue(value)
}

func removePath(doc map[string]any, segments []string) {
	cur := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, segments[len(segments)-1])
}

// CloneMap deep-copies a data bag. Nested maps and slices are copied;
// scalar values are shared (they are immutable as far as JSON data is
// concerned).
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}
