package eo

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkfold/inkfold/internal/patch"
)

// Stamper builds well-formed events for each mutation kind. Agent is
// recorded as ctx.agent on every event; Now and Txn default to the wall
// clock and fresh UUIDs, and are injectable for deterministic tests.
// The constructors themselves are pure given fixed Now/Txn.
type Stamper struct {
	Agent string
	Role  string

	// Now supplies ctx.ts. Nil means time.Now.
	Now func() time.Time
	// Txn supplies ctx.txn idempotency keys. Nil means a fresh UUID.
	// Callers retrying a failed append should reuse the original
	// event rather than constructing a new one, so the txn key holds.
	Txn func() string
}

func (s Stamper) ctx() Ctx {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	txn := s.Txn
	if txn == nil {
		txn = uuid.NewString
	}
	return Ctx{
		Agent: s.Agent,
		TS:    FormatTS(now()),
		Txn:   txn(),
		Role:  s.Role,
	}
}

// DesContentMeta sets metadata fields on a content entity.
func (s Stamper) DesContentMeta(contentID string, fields map[string]any) Event {
	return Event{
		Op:      OpDES,
		Target:  contentID,
		Operand: map[string]any{"set": fields},
		Ctx:     s.ctx(),
	}
}

// InsIndexEntry creates the site-index entry for a content entity.
func (s Stamper) InsIndexEntry(contentID string, entry map[string]any) Event {
	return Event{
		Op:      OpINS,
		Target:  ChildTarget(RootIndex, ChildIndex, contentID),
		Operand: map[string]any{"entry": entry},
		Ctx:     s.ctx(),
	}
}

// DesIndexEntry updates fields on an existing site-index entry.
func (s Stamper) DesIndexEntry(contentID string, fields map[string]any) Event {
	return Event{
		Op:      OpDES,
		Target:  ChildTarget(RootIndex, ChildIndex, contentID),
		Operand: map[string]any{"set": fields},
		Ctx:     s.ctx(),
	}
}

// InsBlock inserts a block into a page. after is nil for "first in
// order", otherwise the id of the predecessor block.
func (s Stamper) InsBlock(pageID, blockID, blockType string, data map[string]any, after *string) Event {
	operand := map[string]any{
		"block_type": blockType,
		"data":       data,
		"after":      afterValue(after),
	}
	return Event{
		Op:      OpINS,
		Target:  ChildTarget(pageID, ChildBlock, blockID),
		Operand: operand,
		Ctx:     s.ctx(),
	}
}

// AltBlock applies a patch to a block's data. after is included only
// when the caller is explicitly changing order; nil leaves the block's
// position alone.
func (s Stamper) AltBlock(pageID, blockID string, ops []patch.Op, after *string) Event {
	operand := map[string]any{"patch": patchOperand(ops)}
	if after != nil {
		operand["after"] = afterValue(after)
	}
	return Event{
		Op:      OpALT,
		Target:  ChildTarget(pageID, ChildBlock, blockID),
		Operand: operand,
		Ctx:     s.ctx(),
	}
}

// MoveBlock reorders a block without touching its data. A nil after
// moves it to the front.
func (s Stamper) MoveBlock(pageID, blockID string, after *string) Event {
	return Event{
		Op:      OpALT,
		Target:  ChildTarget(pageID, ChildBlock, blockID),
		Operand: map[string]any{"patch": []any{}, "after": afterValue(after)},
		Ctx:     s.ctx(),
	}
}

// NulBlock tombstones a block. The block stays in the snapshot with
// deleted=true; only the derived order drops it.
func (s Stamper) NulBlock(pageID, blockID, reason string) Event {
	return Event{
		Op:      OpNUL,
		Target:  ChildTarget(pageID, ChildBlock, blockID),
		Operand: map[string]any{"reason": reason},
		Ctx:     s.ctx(),
	}
}

// InsRevision appends a revision to a wiki, blog or experiment entity.
// Revisions are append-only; there is no ALT or NUL for them.
func (s Stamper) InsRevision(contentID, revID, format, content, summary string) Event {
	return Event{
		Op:     OpINS,
		Target: ChildTarget(contentID, ChildRev, revID),
		Operand: map[string]any{
			"format":  format,
			"content": content,
			"summary": summary,
		},
		Ctx: s.ctx(),
	}
}

// SynRevision resolves a revision conflict by picking a winner. inputs
// lists the candidate revision ids the human chose between.
func (s Stamper) SynRevision(contentID, chosenRevID string, candidateIDs []string) Event {
	inputs := make([]any, len(candidateIDs))
	for i, id := range candidateIDs {
		inputs[i] = id
	}
	return Event{
		Op:     OpSYN,
		Target: contentID,
		Operand: map[string]any{
			"mode":   "most_recent",
			"chosen": chosenRevID,
			"inputs": inputs,
		},
		Ctx: s.ctx(),
	}
}

// InsExpEntry appends a typed entry to an experiment log.
func (s Stamper) InsExpEntry(expID, entryID, kind string, data map[string]any) Event {
	return Event{
		Op:      OpINS,
		Target:  ChildTarget(expID, ChildEntry, entryID),
		Operand: map[string]any{"kind": kind, "data": data},
		Ctx:     s.ctx(),
	}
}

// AltExpEntry applies a patch to an experiment entry's data.
func (s Stamper) AltExpEntry(expID, entryID string, ops []patch.Op) Event {
	return Event{
		Op:      OpALT,
		Target:  ChildTarget(expID, ChildEntry, entryID),
		Operand: map[string]any{"patch": patchOperand(ops)},
		Ctx:     s.ctx(),
	}
}

// NulExpEntry deletes an experiment entry. Unlike page blocks the entry
// is filtered out of the materialized snapshot entirely; only the event
// remains in history.
func (s Stamper) NulExpEntry(expID, entryID, reason string) Event {
	return Event{
		Op:      OpNUL,
		Target:  ChildTarget(expID, ChildEntry, entryID),
		Operand: map[string]any{"reason": reason},
		Ctx:     s.ctx(),
	}
}

// afterValue maps a *string predecessor to its operand form: nil
// becomes JSON null ("first in order").
func afterValue(after *string) any {
	if after == nil {
		return nil
	}
	return *after
}

// patchOperand converts typed patch ops to the generic operand shape so
// the event round-trips through JSON without a custom codec.
func patchOperand(ops []patch.Op) []any {
	out := make([]any, len(ops))
	for i, op := range ops {
		m := map[string]any{"op": op.Op, "path": op.Path}
		if op.Value != nil {
			m["value"] = op.Value
		}
		out[i] = m
	}
	return out
}

// DecodePatch converts an operand "patch" value back to typed ops.
// Malformed elements are dropped, matching the fold's skip-don't-abort
// posture.
func DecodePatch(v any) []patch.Op {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	ops := make([]patch.Op, 0, len(raw))
	for _, elem := range raw {
		m, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		opName, _ := m["op"].(string)
		path, _ := m["path"].(string)
		if opName == "" || path == "" {
			continue
		}
		ops = append(ops, patch.Op{Op: opName, Path: path, Value: m["value"]})
	}
	return ops
}
