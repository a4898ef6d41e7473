package projector

import (
	"github.com/inkfold/inkfold/internal/eo"
	"github.com/inkfold/inkfold/internal/state"
)

// ApplyDelta replays a chronologically ordered batch of raw log entries
// on top of a base snapshot and returns the resulting snapshot. The
// base is never mutated; with no entries the base is returned as-is
// (identity law).
//
// Dispatch is by content type. The site index is the one entity built
// by direct aggregation in the writer rather than by replay, so index
// snapshots pass through unchanged.
func ApplyDelta(s *state.Snapshot, entries []eo.RawLogEntry) *state.Snapshot {
	if s == nil || len(entries) == 0 {
		return s
	}
	switch s.ContentType {
	case state.TypePage:
		out := s.Clone()
		foldPage(out, entries)
		return out
	case state.TypeWiki, state.TypeBlog:
		out := s.Clone()
		foldWiki(out, entries)
		return out
	case state.TypeExperiment:
		out := s.Clone()
		foldExperiment(out, entries)
		return out
	default:
		return s
	}
}

// decodeFor deserializes one raw entry for a snapshot's fold. Returns
// ok=false for entries the fold must skip: wrong type tag, unparseable
// content, unparseable target, or a target addressing a different root.
func decodeFor(s *state.Snapshot, entry eo.RawLogEntry) (eo.Event, eo.Target, bool) {
	if entry.Type != eo.LogEventType {
		return eo.Event{}, eo.Target{}, false
	}
	ev, err := entry.Decode()
	if err != nil {
		return eo.Event{}, eo.Target{}, false
	}
	tgt, err := eo.ParseTarget(ev.Target)
	if err != nil || tgt.Root != s.ContentID {
		return eo.Event{}, eo.Target{}, false
	}
	return ev, tgt, true
}

// operandMap extracts a nested object from an operand, nil when absent
// or of the wrong shape.
func operandMap(operand map[string]any, key string) map[string]any {
	m, _ := operand[key].(map[string]any)
	return m
}

// operandString extracts a string operand field, "" when absent.
func operandString(operand map[string]any, key string) string {
	s, _ := operand[key].(string)
	return s
}

// operandAfter reads an operand's "after" value. The second result is
// false when the key is absent; a present null decodes to a nil
// pointer ("first in order").
func operandAfter(operand map[string]any) (*string, bool) {
	v, present := operand["after"]
	if !present {
		return nil, false
	}
	if s, ok := v.(string); ok {
		return &s, true
	}
	return nil, true
}
