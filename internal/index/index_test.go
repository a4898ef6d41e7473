package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkfold/inkfold/internal/eo"
	"github.com/inkfold/inkfold/internal/logstore"
	"github.com/inkfold/inkfold/internal/snapstore"
	"github.com/inkfold/inkfold/internal/state"
	"github.com/inkfold/inkfold/internal/statecache"
)

type writerEnv struct {
	log    *logstore.SQLite
	snaps  *snapstore.SQLite
	writer *Writer
}

func newWriterEnv(t *testing.T) *writerEnv {
	t.Helper()
	dir := t.TempDir()

	log, err := logstore.Open(filepath.Join(dir, "log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	snaps, err := snapstore.OpenSQLite(filepath.Join(dir, "snap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { snaps.Close() })

	txnSeq := 0
	stamper := eo.Stamper{
		Agent: "@indexer",
		Now:   func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
		Txn: func() string {
			txnSeq++
			return string(rune('a' + txnSeq))
		},
	}

	return &writerEnv{
		log:    log,
		snaps:  snaps,
		writer: NewWriter(log, snaps, statecache.New(), stamper, nil),
	}
}

func publishedEntry(contentID, title string) state.IndexEntry {
	return state.IndexEntry{
		ContentID:   contentID,
		Title:       title,
		ContentType: state.TypePage,
		Status:      state.StatusPublished,
		Visibility:  state.VisibilityPublic,
		ShowInNav:   true,
	}
}

func TestUpsertEntry_CreatesIndexAndDerives(t *testing.T) {
	env := newWriterEnv(t)

	snap, err := env.writer.UpsertEntry(context.Background(), publishedEntry("page:home", "Home Page"))
	require.NoError(t, err)
	env.writer.Wait()

	require.NotNil(t, snap.Index)
	require.Len(t, snap.Index.Entries, 1)
	assert.Equal(t, "home-page", snap.Index.Entries[0].Slug, "empty slug derived from title")
	assert.Len(t, snap.Index.Nav, 1)
	assert.Equal(t, "page:home", snap.Index.SlugMap["home-page"])
	assert.Len(t, snap.History, 1)

	// Snapshot persisted under the index root.
	rec, err := env.snaps.Get(context.Background(), eo.RootIndex)
	require.NoError(t, err)
	assert.Equal(t, string(state.TypeIndex), rec.Type)

	// Event logged for audit.
	entries, err := env.log.NewerThan(context.Background(), eo.RootIndex, -1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	ev, err := entries[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, eo.OpINS, ev.Op)
}

func TestUpsertEntry_ReplacesExisting(t *testing.T) {
	env := newWriterEnv(t)

	_, err := env.writer.UpsertEntry(context.Background(), publishedEntry("page:home", "Home"))
	require.NoError(t, err)

	replacement := publishedEntry("page:home", "Welcome")
	snap, err := env.writer.UpsertEntry(context.Background(), replacement)
	require.NoError(t, err)
	env.writer.Wait()

	require.Len(t, snap.Index.Entries, 1)
	assert.Equal(t, "Welcome", snap.Index.Entries[0].Title)
	assert.Equal(t, "page:home", snap.Index.SlugMap["welcome"])
	_, stale := snap.Index.SlugMap["home"]
	assert.False(t, stale, "replaced slug must leave the map")
	assert.Len(t, snap.History, 2)
}

func TestUpsertEntry_EmptyContentIDRejected(t *testing.T) {
	env := newWriterEnv(t)
	_, err := env.writer.UpsertEntry(context.Background(), state.IndexEntry{Title: "No ID"})
	assert.Error(t, err)
}

func TestSetEntryFields_UpdatesAndRederives(t *testing.T) {
	env := newWriterEnv(t)

	_, err := env.writer.UpsertEntry(context.Background(), publishedEntry("page:home", "Home"))
	require.NoError(t, err)

	snap, err := env.writer.SetEntryFields(context.Background(), "page:home", map[string]any{
		"status":      state.StatusArchived,
		"show_in_nav": false,
	})
	require.NoError(t, err)
	env.writer.Wait()

	require.Len(t, snap.Index.Entries, 1)
	assert.Equal(t, state.StatusArchived, snap.Index.Entries[0].Status)
	assert.Empty(t, snap.Index.Nav, "archived entry leaves nav")
	assert.Empty(t, snap.Index.SlugMap, "archived slug leaves the map")
}

func TestSetEntryFields_UnknownEntryStillLogs(t *testing.T) {
	env := newWriterEnv(t)

	snap, err := env.writer.SetEntryFields(context.Background(), "page:ghost", map[string]any{"title": "x"})
	require.NoError(t, err)
	env.writer.Wait()

	assert.Empty(t, snap.Index.Entries)
	assert.Len(t, snap.History, 1, "the event is logged even when no entry matches")
}

func TestUpsertEntry_MirrorsEntityMeta(t *testing.T) {
	env := newWriterEnv(t)

	// Materialize the entity snapshot the mirror will patch.
	page := state.NewPage("page:home")
	value, err := page.Encode()
	require.NoError(t, err)
	require.NoError(t, env.snaps.Create(context.Background(), snapstore.Record{
		ID: "page:home", Type: "page", Value: value,
	}))

	entry := publishedEntry("page:home", "Home")
	entry.Tags = []string{"featured"}
	_, err = env.writer.UpsertEntry(context.Background(), entry)
	require.NoError(t, err)
	env.writer.Wait()

	rec, err := env.snaps.Get(context.Background(), "page:home")
	require.NoError(t, err)
	mirrored, err := state.Decode(rec.Value)
	require.NoError(t, err)
	assert.Equal(t, "Home", mirrored.Meta.Title)
	assert.Equal(t, "home", mirrored.Meta.Slug)
	assert.Equal(t, state.StatusPublished, mirrored.Meta.Status)
	assert.Equal(t, []string{"featured"}, mirrored.Meta.Tags)
}

func TestUpsertEntry_MirrorSkipsUnmaterializedEntity(t *testing.T) {
	env := newWriterEnv(t)

	_, err := env.writer.UpsertEntry(context.Background(), publishedEntry("page:new", "New"))
	require.NoError(t, err)
	env.writer.Wait()

	// The mirror is a no-op; the index write itself still landed.
	_, err = env.snaps.Get(context.Background(), "page:new")
	assert.ErrorIs(t, err, snapstore.ErrNotFound)
	_, err = env.snaps.Get(context.Background(), eo.RootIndex)
	assert.NoError(t, err)
}
