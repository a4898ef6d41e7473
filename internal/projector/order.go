package projector

import (
	"github.com/inkfold/inkfold/internal/eo"
	"github.com/inkfold/inkfold/internal/state"
)

// OrderBlocks reconstructs the total block order from per-block after
// pointers. The pointers encode a singly-linked list keyed by
// predecessor id: after == nil marks the head, after == <id> means
// "immediately after block <id>".
//
// Deleted blocks never appear in the order and never link successors:
// a live block whose predecessor was tombstoned (or never existed)
// dangles and is excluded too. That exclusion is what a NUL'd
// predecessor looks like, and callers must not "repair" it.
//
// When two live blocks claim the same predecessor (a race between
// concurrent reorders), the one with the most recent altered timestamp
// wins; equal timestamps fall back to byte order of the block ids so
// the result stays deterministic. The loser stays in the blocks slice
// but drops out of the derived order.
//
// A visited set guards against cycles in malformed input; the walk
// always terminates.
func OrderBlocks(blocks []state.Block) []string {
	next := make(map[string]state.Block, len(blocks))
	for _, b := range blocks {
		if b.Deleted {
			continue
		}
		key := ""
		if b.After != nil {
			key = *b.After
		}
		if incumbent, ok := next[key]; ok && !claimWins(b, incumbent) {
			continue
		}
		next[key] = b
	}

	order := make([]string, 0, len(blocks))
	visited := make(map[string]bool, len(blocks))
	cur, ok := next[""]
	for ok && !visited[cur.BlockID] {
		visited[cur.BlockID] = true
		order = append(order, cur.BlockID)
		cur, ok = next[cur.BlockID]
	}
	return order
}

// claimWins decides a duplicate-predecessor claim in favor of the
// challenger. Most recent altered ts wins; ties break on block id.
func claimWins(challenger, incumbent state.Block) bool {
	ct := eo.TSMillis(challenger.AlteredTS)
	it := eo.TSMillis(incumbent.AlteredTS)
	if ct != it {
		return ct > it
	}
	return challenger.BlockID > incumbent.BlockID
}
