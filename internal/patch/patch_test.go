package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_Replace(t *testing.T) {
	doc := map[string]any{"a": map[string]any{"b": 1}}
	out := Apply(doc, []Op{{Op: OpReplace, Path: "/a/b", Value: 5}})
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 5}}, out)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	doc := map[string]any{"a": map[string]any{"b": 1}, "list": []any{1, 2}}
	_ = Apply(doc, []Op{
		{Op: OpReplace, Path: "/a/b", Value: 99},
		{Op: OpRemove, Path: "/list"},
	})
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1}, "list": []any{1, 2}}, doc)
}

func TestApply_AddCreatesIntermediates(t *testing.T) {
	out := Apply(map[string]any{}, []Op{{Op: OpAdd, Path: "/x/y/z", Value: "deep"}})
	require.Contains(t, out, "x")
	assert.Equal(t, "deep", out["x"].(map[string]any)["y"].(map[string]any)["z"])
}

func TestApply_RemovePresent(t *testing.T) {
	out := Apply(map[string]any{"a": 1, "b": 2}, []Op{{Op: OpRemove, Path: "/a"}})
	assert.Equal(t, map[string]any{"b": 2}, out)
}

func TestApply_RemoveMissingIsNoop(t *testing.T) {
	out := Apply(map[string]any{"a": 1}, []Op{{Op: OpRemove, Path: "/nope/deeper"}})
	assert.Equal(t, map[string]any{"a": 1}, out)
}

func TestApply_UnknownOpSkipped(t *testing.T) {
	out := Apply(map[string]any{"a": 1}, []Op{
		{Op: "test", Path: "/a", Value: 0},
		{Op: OpReplace, Path: "/a", Value: 2},
	})
	assert.Equal(t, map[string]any{"a": 2}, out)
}

func TestApply_EmptyPathSkipped(t *testing.T) {
	out := Apply(map[string]any{"a": 1}, []Op{{Op: OpReplace, Path: "", Value: 9}})
	assert.Equal(t, map[string]any{"a": 1}, out)
}

func TestApply_ReplaceOverwritesNonObjectSegment(t *testing.T) {
	// Path descends through a scalar: the scalar is replaced by an
	// object so the write can land.
	out := Apply(map[string]any{"a": 1}, []Op{{Op: OpReplace, Path: "/a/b", Value: 2}})
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 2}}, out)
}

func TestApply_ValueIsDeepCopied(t *testing.T) {
	value := map[string]any{"inner": []any{1}}
	out := Apply(map[string]any{}, []Op{{Op: OpAdd, Path: "/v", Value: value}})
	value["inner"].([]any)[0] = 99
	assert.Equal(t, 1, out["v"].(map[string]any)["inner"].([]any)[0])
}

func TestCloneMap_NilYieldsEmpty(t *testing.T) {
	out := CloneMap(nil)
	require.NotNil(t, out)
	assert.Empty(t, out)
}
