package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkfold/inkfold/internal/eo"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	require.NoError(t, err)
	return v
}

func blockIns(operand map[string]any) eo.Event {
	return eo.Event{Op: eo.OpINS, Target: "page:home/block:b1", Operand: operand}
}

func TestValidate_BlockIns(t *testing.T) {
	v := newValidator(t)

	err := v.Validate(blockIns(map[string]any{
		"block_type": "text",
		"data":       map[string]any{"text": "hello"},
		"after":      nil,
	}))
	assert.NoError(t, err)
}

func TestValidate_BlockIns_MissingBlockType(t *testing.T) {
	v := newValidator(t)

	err := v.Validate(blockIns(map[string]any{
		"data": map[string]any{"text": "hello"},
	}))
	assert.Error(t, err)
}

func TestValidate_BlockIns_KnownTypeDataChecked(t *testing.T) {
	v := newValidator(t)

	// text data requires a text field.
	err := v.Validate(blockIns(map[string]any{
		"block_type": "text",
		"data":       map[string]any{"body": "hello"},
	}))
	assert.Error(t, err)

	// image data requires a non-empty src.
	err = v.Validate(blockIns(map[string]any{
		"block_type": "image",
		"data":       map[string]any{"src": ""},
	}))
	assert.Error(t, err)

	err = v.Validate(blockIns(map[string]any{
		"block_type": "heading",
		"data":       map[string]any{"text": "Title", "level": 2},
	}))
	assert.NoError(t, err)
}

func TestValidate_BlockIns_AllKnownTypes(t *testing.T) {
	v := newValidator(t)

	operands := []map[string]any{
		{"block_type": "text", "data": map[string]any{"text": "hello"}},
		{"block_type": "heading", "data": map[string]any{"text": "Title", "level": 1}},
		{"block_type": "image", "data": map[string]any{"src": "/img/a.png", "alt": "a"}},
		{"block_type": "code", "data": map[string]any{"code": "x := 1", "language": "go"}},
	}
	for _, operand := range operands {
		assert.NoError(t, v.Validate(blockIns(operand)), "block_type %v", operand["block_type"])
	}
}

func TestValidate_BlockIns_UnknownTypeStaysOpen(t *testing.T) {
	v := newValidator(t)

	err := v.Validate(blockIns(map[string]any{
		"block_type": "embed",
		"data":       map[string]any{"anything": true},
	}))
	assert.NoError(t, err)
}

func TestValidate_AltPatch(t *testing.T) {
	v := newValidator(t)

	ev := eo.Event{Op: eo.OpALT, Target: "page:home/block:b1", Operand: map[string]any{
		"patch": []any{map[string]any{"op": "replace", "path": "/text", "value": "new"}},
	}}
	assert.NoError(t, v.Validate(ev))
}

func TestValidate_AltPatch_BadOp(t *testing.T) {
	v := newValidator(t)

	ev := eo.Event{Op: eo.OpALT, Target: "page:home/block:b1", Operand: map[string]any{
		"patch": []any{map[string]any{"op": "test", "path": "/text", "value": 1}},
	}}
	assert.Error(t, v.Validate(ev))
}

func TestValidate_AltPatch_PathMustBeRooted(t *testing.T) {
	v := newValidator(t)

	ev := eo.Event{Op: eo.OpALT, Target: "page:home/block:b1", Operand: map[string]any{
		"patch": []any{map[string]any{"op": "replace", "path": "text", "value": "x"}},
	}}
	assert.Error(t, v.Validate(ev))
}

func TestValidate_RevIns(t *testing.T) {
	v := newValidator(t)

	ev := eo.Event{Op: eo.OpINS, Target: "wiki:w1/rev:r1", Operand: map[string]any{
		"format": "markdown", "content": "# Hi",
	}}
	assert.NoError(t, v.Validate(ev))

	ev.Operand = map[string]any{"format": "", "content": "x"}
	assert.Error(t, v.Validate(ev), "empty format rejected")
}

func TestValidate_Syn(t *testing.T) {
	v := newValidator(t)

	ev := eo.Event{Op: eo.OpSYN, Target: "wiki:w1", Operand: map[string]any{
		"mode": "chosen", "chosen": "r1", "inputs": []any{"r1", "r2"},
	}}
	assert.NoError(t, v.Validate(ev))

	ev.Operand = map[string]any{"mode": "merge"}
	assert.Error(t, v.Validate(ev), "unknown mode rejected")
}

func TestValidate_DesRequiresSet(t *testing.T) {
	v := newValidator(t)

	ev := eo.Event{Op: eo.OpDES, Target: "page:home", Operand: map[string]any{
		"set": map[string]any{"title": "Home"},
	}}
	assert.NoError(t, v.Validate(ev))

	ev.Operand = map[string]any{"title": "Home"}
	assert.Error(t, v.Validate(ev), "fields outside set rejected")
}

func TestValidate_UncheckedCombosPass(t *testing.T) {
	v := newValidator(t)

	// Root-level INS and reserved ops carry no checked payload.
	assert.NoError(t, v.Validate(eo.Event{Op: eo.OpINS, Target: "page:home"}))
	assert.NoError(t, v.Validate(eo.Event{Op: eo.OpSEG, Target: "page:home", Operand: map[string]any{"x": 1}}))
	assert.NoError(t, v.Validate(eo.Event{Op: eo.OpDES, Target: "wiki:w1/rev:r1"}))
}

func TestValidate_BadTarget(t *testing.T) {
	v := newValidator(t)
	assert.Error(t, v.Validate(eo.Event{Op: eo.OpINS, Target: ""}))
}
