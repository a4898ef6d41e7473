package projector

import (
	"sort"

	"github.com/inkfold/inkfold/internal/eo"
	"github.com/inkfold/inkfold/internal/state"
)

// conflictWindowMillis bounds how close two revisions from different
// agents must land to count as a concurrent edit. Wider than network
// jitter, narrower than a deliberate follow-up edit.
const conflictWindowMillis = 5000

// revisionFromEvent builds a revision from an INS-revision operand.
// The timestamp comes from event provenance, keeping the fold pure.
func revisionFromEvent(revID string, ev eo.Event) state.Revision {
	return state.Revision{
		RevID:   revID,
		Format:  operandString(ev.Operand, "format"),
		Content: operandString(ev.Operand, "content"),
		Summary: operandString(ev.Operand, "summary"),
		TS:      ev.Ctx.TS,
		Agent:   ev.Ctx.Agent,
	}
}

// appendRevision appends rev unless its id is already present.
// Revisions are append-only, so a replayed INS is always a duplicate,
// never an update.
func appendRevision(revs []state.Revision, rev state.Revision) ([]state.Revision, bool) {
	for i := range revs {
		if revs[i].RevID == rev.RevID {
			return revs, false
		}
	}
	return append(revs, rev), true
}

// sortRevisions orders revisions ascending by timestamp, ties broken
// by rev id byte order for determinism.
func sortRevisions(revs []state.Revision) {
	sort.SliceStable(revs, func(i, j int) bool {
		ti, tj := eo.TSMillis(revs[i].TS), eo.TSMillis(revs[j].TS)
		if ti != tj {
			return ti < tj
		}
		return revs[i].RevID < revs[j].RevID
	})
}

// currentRevision picks the revision the snapshot should surface: the
// standing SYN choice when one is recorded and present, otherwise the
// most recently timestamped. Returns a copy so the surfaced value never
// aliases the revisions slice.
func currentRevision(revs []state.Revision, chosen string) *state.Revision {
	if len(revs) == 0 {
		return nil
	}
	if chosen != "" {
		for i := range revs {
			if revs[i].RevID == chosen {
				rev := revs[i]
				return &rev
			}
		}
	}
	rev := revs[len(revs)-1]
	return &rev
}

// concurrentWith reports whether two revisions look like a concurrent
// edit: different agents within the conflict window.
func concurrentWith(a, b state.Revision) bool {
	if a.Agent == "" || b.Agent == "" || a.Agent == b.Agent {
		return false
	}
	da := eo.TSMillis(a.TS) - eo.TSMillis(b.TS)
	if da < 0 {
		da = -da
	}
	return da <= conflictWindowMillis
}

// addCandidate records a conflict candidate id once.
func addCandidate(candidates []string, id string) []string {
	for _, c := range candidates {
		if c == id {
			return candidates
		}
	}
	return append(candidates, id)
}
