package projector

import (
	"github.com/inkfold/inkfold/internal/eo"
	"github.com/inkfold/inkfold/internal/state"
)

// foldWiki replays revision events into a wiki or blog snapshot.
// Revisions are append-only: only INS (child kind "rev") and the
// root-targeted DES/SYN are meaningful; ALT and NUL are not defined
// for revisions and are skipped.
//
// Conflicts are bookkeeping, not errors. When two agents append
// revisions within the conflict window the fold raises has_conflict
// and accumulates the candidate ids; a SYN event resolves by naming
// the winner and clears the flag. The system never auto-resolves.
func foldWiki(s *state.Snapshot, entries []eo.RawLogEntry) {
	w := s.Wiki

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
				w.ChosenRevision = operandString(ev.Operand, "chosen")
				w.HasConflict = false
				w.ConflictCandidates = nil
			default:
				continue
			}
			appendHistory(s, entry, ev)
			continue
		}
		if tgt.ChildType != eo.ChildRev || ev.Op != eo.OpINS {
			continue
		}

		rev := revisionFromEvent(tgt.ChildID, ev)
		revs, inserted := appendRevision(w.Revisions, rev)
		w.Revisions = revs
		if inserted {
			// A fresh append supersedes any earlier SYN resolution.
			w.ChosenRevision = ""
			for j := range w.Revisions[:len(w.Revisions)-1] {
				if concurrentWith(w.Revisions[j], rev) {
					w.HasConflict = true
					w.ConflictCandidates = addCandidate(w.ConflictCandidates, w.Revisions[j].RevID)
					w.ConflictCandidates = addCandidate(w.ConflictCandidates, rev.RevID)
				}
			}
		}
		appendHistory(s, entry, ev)
	}

	sortRevisions(w.Revisions)
	if cur := currentRevision(w.Revisions, w.ChosenRevision); cur != nil {
		w.CurrentRevision = cur
	}
}
