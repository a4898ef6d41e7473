package projector

import (
	"github.com/inkfold/inkfold/internal/eo"
	"github.com/inkfold/inkfold/internal/patch"
	"github.com/inkfold/inkfold/internal/state"
)

// foldPage replays block events into a page snapshot. Blocks are
// upserted by child id; NUL tombstones in place so ordering and
// history stay consistent. The derived block order is recomputed once
// after the fold.
func foldPage(s *state.Snapshot, entries []eo.RawLogEntry) {
	p := s.Page
	for _, entry := range entries {
		ev, tgt, ok := decodeFor(s, entry)
		if !ok {
			continue
		}

		if tgt.IsRoot() {
			if ev.Op != eo.OpDES {
				continue
			}
			if fields := operandMap(ev.Operand, "set"); fields != nil {
				s.Meta.ApplyMetaSet(fields, ev.Ctx.TS)
			}
			appendHistory(s, entry, ev)
			continue
		}
		if tgt.ChildType != eo.ChildBlock {
			continue
		}

		switch ev.Op {
		case eo.OpINS:
			insBlock(p, tgt.ChildID, entry, ev)
		case eo.OpALT:
			altBlock(p, tgt.ChildID, ev)
		case eo.OpNUL:
			if b := p.FindBlock(tgt.ChildID); b != nil {
				b.Deleted = true
				b.AlteredTS = ev.Ctx.TS
			}
		default:
			continue
		}
		appendHistory(s, entry, ev)
	}
	p.BlockOrder = OrderBlocks(p.Blocks)
}

// insBlock inserts or overwrites a block from an INS operand. A
// replayed INS for an existing id overwrites rather than duplicates,
// so re-folding the same entries is harmless.
func insBlock(p *state.PageState, blockID string, entry eo.RawLogEntry, ev eo.Event) {
	after, _ := operandAfter(ev.Operand)
	b := state.Block{
		BlockID:     blockID,
		BlockType:   operandString(ev.Operand, "block_type"),
		Data:        patch.CloneMap(operandMap(ev.Operand, "data")),
		After:       after,
		Deleted:     false,
		SourceEvent: entry.EventID,
		AlteredTS:   ev.Ctx.TS,
	}
	if existing := p.FindBlock(blockID); existing != nil {
		*existing = b
		return
	}
	p.Blocks = append(p.Blocks, b)
}

// altBlock applies an ALT operand to an existing block. A missing
// block is a silent no-op. The after pointer changes only when the
// operand carries the key; a present null moves the block to the
// front.
func altBlock(p *state.PageState, blockID string, ev eo.Event) {
	b := p.FindBlock(blockID)
	if b == nil {
		return
	}
	if ops := eo.DecodePatch(ev.Operand["patch"]); len(ops) > 0 {
		b.Data = patch.Apply(b.Data, ops)
	}
	if after, present := operandAfter(ev.Operand); present {
		b.After = after
	}
	b.AlteredTS = ev.Ctx.TS
}
