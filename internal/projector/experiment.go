package projector

import (
	"github.com/inkfold/inkfold/internal/eo"
	"github.com/inkfold/inkfold/internal/patch"
	"github.com/inkfold/inkfold/internal/state"
)

// foldExperiment replays an experiment snapshot: a typed entry log
// plus an optional revision body. Entry handling mirrors page blocks
// with one difference: deleted entries are filtered out of the
// materialized slice entirely, not kept as flagged tombstones. The
// NUL event still lands in history, so the deletion remains auditable.
func foldExperiment(s *state.Snapshot, entries []eo.RawLogEntry) {
	x := s.Experiment

	for _, entry := range entries {
		ev, tgt, ok := decodeFor(s, entry)
		if !ok {
			continue
		}

		if tgt.IsRoot() {
			switch ev.Op {
			case eo.OpDES:
				if fields := operandMap(ev.Operand, "set"); fields != nil {
					s.Meta.ApplyMetaSet(fields, ev.Ctx.TS)
				}
			case eo.OpSYN:
				x.ChosenRevision = operandString(ev.Operand, "chosen")
			default:
				continue
			}
			appendHistory(s, entry, ev)
			continue
		}

		switch tgt.ChildType {
		case eo.ChildEntry:
			switch ev.Op {
			case eo.OpINS:
				insEntry(x, tgt.ChildID, ev)
			case eo.OpALT:
				e := x.FindEntry(tgt.ChildID)
				if e == nil {
					// fall through to history: the no-op is still audited
				} else if ops := eo.DecodePatch(ev.Operand["patch"]); len(ops) > 0 {
					e.Data = patch.Apply(e.Data, ops)
				}
			case eo.OpNUL:
				if e := x.FindEntry(tgt.ChildID); e != nil {
					e.Deleted = true
				}
			default:
				continue
			}
		case eo.ChildRev:
			if ev.Op != eo.OpINS {
				continue
			}
			revs, inserted := appendRevision(x.Revisions, revisionFromEvent(tgt.ChildID, ev))
			x.Revisions = revs
			if inserted {
				x.ChosenRevision = ""
			}
		default:
			continue
		}
		appendHistory(s, entry, ev)
	}

	// Tombstone semantics differ from pages: entries are removed, not
	// flagged, once the fold completes.
	live := x.Entries[:0]
	for _, e := range x.Entries {
		if !e.Deleted {
			live = append(live, e)
		}
	}
	x.Entries = live

	sortRevisions(x.Revisions)
	if cur := currentRevision(x.Revisions, x.ChosenRevision); cur != nil {
		x.CurrentRevision = cur
	}
}

// insEntry inserts or overwrites an experiment entry from an INS
// operand.
func insEntry(x *state.ExperimentState, entryID string, ev eo.Event) {
	e := state.Entry{
		EntryID: entryID,
		Kind:    operandString(ev.Operand, "kind"),
		Data:    patch.CloneMap(operandMap(ev.Operand, "data")),
		TS:      ev.Ctx.TS,
		Deleted: false,
	}
	if existing := x.FindEntry(entryID); existing != nil {
		*existing = e
		return
	}
	x.Entries = append(x.Entries, e)
}
