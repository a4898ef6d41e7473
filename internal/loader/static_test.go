package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkfold/inkfold/internal/state"
)

func newTestStaticStore(t *testing.T) (*StaticStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStaticStore(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func writeArtifact(t *testing.T, dir, id string, snap *state.Snapshot) {
	t.Helper()
	value, err := snap.Encode()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), value, 0o644))
}

func TestStaticLoad_Found(t *testing.T) {
	s, dir := newTestStaticStore(t)
	writeArtifact(t, dir, "wiki:operators", state.NewWiki("wiki:operators", state.TypeWiki))

	snap, rec, ok, err := s.Load("wiki:operators")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "wiki:operators", snap.ContentID)
	assert.Equal(t, "wiki", rec.Type)
	assert.NotZero(t, rec.UpdatedAt)
}

func TestStaticLoad_Missing(t *testing.T) {
	s, _ := newTestStaticStore(t)
	_, _, ok, err := s.Load("page:nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStaticLoad_CachesParsedArtifact(t *testing.T) {
	s, dir := newTestStaticStore(t)
	writeArtifact(t, dir, "page:home", state.NewPage("page:home"))

	first, _, ok, err := s.Load("page:home")
	require.NoError(t, err)
	require.True(t, ok)

	second, _, ok, err := s.Load("page:home")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, first, second)
}

func TestStaticLoad_RejectsPathEscapes(t *testing.T) {
	s, _ := newTestStaticStore(t)
	for _, id := range []string{"", "../etc/passwd", "a/b", `a\b`, "x..y"} {
		_, _, _, err := s.Load(id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestNewStaticStore_MissingDir(t *testing.T) {
	_, err := NewStaticStore(filepath.Join(t.TempDir(), "absent"), nil)
	assert.Error(t, err)
}

func TestNewStaticStore_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	_, err := NewStaticStore(path, nil)
	assert.Error(t, err)
}
