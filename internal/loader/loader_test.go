package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkfold/inkfold/internal/eo"
	"github.com/inkfold/inkfold/internal/logstore"
	"github.com/inkfold/inkfold/internal/snapstore"
	"github.com/inkfold/inkfold/internal/state"
	"github.com/inkfold/inkfold/internal/statecache"
)

type loaderEnv struct {
	snaps  *snapstore.SQLite
	log    *logstore.SQLite
	cache  *statecache.Cache
	loader *Loader
}

func newLoaderEnv(t *testing.T, static *StaticStore) *loaderEnv {
	t.Helper()
	dir := t.TempDir()

	snaps, err := snapstore.OpenSQLite(filepath.Join(dir, "snap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { snaps.Close() })

	log, err := logstore.Open(filepath.Join(dir, "log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	cache := statecache.New()
	return &loaderEnv{
		snaps:  snaps,
		log:    log,
		cache:  cache,
		loader: New(snaps, log, cache, static, nil),
	}
}

func appendBlockIns(t *testing.T, log *logstore.SQLite, target, txn string) eo.RawLogEntry {
	t.Helper()
	entry, err := log.Append(context.Background(), eo.Event{
		Op:     eo.OpINS,
		Target: target,
		Operand: map[string]any{
			"block_type": "text",
			"data":       map[string]any{"text": "hello"},
			"after":      nil,
		},
		Ctx: eo.Ctx{Agent: "@ada", TS: "2026-01-02T03:04:05.000Z", Txn: txn},
	})
	require.NoError(t, err)
	return entry
}

func storeSnapshot(t *testing.T, snaps snapstore.Store, snap *state.Snapshot, updatedAt int64) snapstore.Record {
	t.Helper()
	value, err := snap.Encode()
	require.NoError(t, err)
	rec := snapstore.Record{
		ID:        snap.ContentID,
		Type:      string(snap.ContentType),
		Value:     value,
		UpdatedAt: updatedAt,
	}
	require.NoError(t, snaps.Create(context.Background(), rec))
	return rec
}

func TestLoadState_SnapshotTier(t *testing.T) {
	env := newLoaderEnv(t, nil)
	storeSnapshot(t, env.snaps, state.NewPage("page:home"), 100)

	res, err := env.loader.LoadState(context.Background(), "page:home")
	require.NoError(t, err)
	assert.Equal(t, SourceSnapshot, res.Source)
	require.NotNil(t, res.State)
	assert.Equal(t, "page:home", res.State.ContentID)
	assert.Equal(t, int64(100), res.Record.UpdatedAt)
}

func TestLoadState_NoneWhenAbsent(t *testing.T) {
	env := newLoaderEnv(t, nil)

	res, err := env.loader.LoadState(context.Background(), "page:nope")
	require.NoError(t, err)
	assert.Equal(t, SourceNone, res.Source)
	assert.Nil(t, res.State)
}

func TestLoadState_StaticFallback(t *testing.T) {
	dir := t.TempDir()
	snap := state.NewPage("page:about")
	value, err := snap.Encode()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page:about.json"), value, 0o644))

	static, err := NewStaticStore(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { static.Close() })

	env := newLoaderEnv(t, static)
	res, err := env.loader.LoadState(context.Background(), "page:about")
	require.NoError(t, err)
	assert.Equal(t, SourceStatic, res.Source)
	require.NotNil(t, res.State)
	assert.Equal(t, "page:about", res.State.ContentID)
	assert.NotZero(t, res.Record.UpdatedAt, "static record carries the file modtime")
}

func TestApplyFreshnessUpdate_NoNewEntries(t *testing.T) {
	env := newLoaderEnv(t, nil)
	entry := appendBlockIns(t, env.log, "page:home/block:b1", "t1")

	snap := state.NewPage("page:home")
	rec := snapstore.Record{ID: "page:home", Type: "page", UpdatedAt: entry.OriginServerTS}

	res, err := env.loader.ApplyFreshnessUpdate(context.Background(), snap, rec, FreshnessOptions{})
	require.NoError(t, err)
	assert.False(t, res.HadUpdates)
	assert.Same(t, snap, res.State)
	assert.Equal(t, rec, res.Record)
}

func TestApplyFreshnessUpdate_ReplaysNewerEntries(t *testing.T) {
	env := newLoaderEnv(t, nil)
	entry := appendBlockIns(t, env.log, "page:home/block:b1", "t1")

	snap := state.NewPage("page:home")
	rec := snapstore.Record{ID: "page:home", Type: "page", UpdatedAt: 0}

	res, err := env.loader.ApplyFreshnessUpdate(context.Background(), snap, rec, FreshnessOptions{})
	require.NoError(t, err)
	assert.True(t, res.HadUpdates)
	require.NotNil(t, res.State.Page)
	require.Len(t, res.State.Page.Blocks, 1)
	assert.Equal(t, "b1", res.State.Page.Blocks[0].BlockID)
	assert.Equal(t, entry.OriginServerTS, res.Record.UpdatedAt)

	// Input snapshot never mutated.
	assert.Empty(t, snap.Page.Blocks)

	// Without Persist the store keeps the stale record absent.
	_, err = env.snaps.Get(context.Background(), "page:home")
	assert.ErrorIs(t, err, snapstore.ErrNotFound)
}

func TestApplyFreshnessUpdate_PersistWritesBack(t *testing.T) {
	env := newLoaderEnv(t, nil)
	entry := appendBlockIns(t, env.log, "page:home/block:b1", "t1")

	snap := state.NewPage("page:home")
	rec := storeSnapshot(t, env.snaps, snap, 0)

	res, err := env.loader.ApplyFreshnessUpdate(context.Background(), snap, rec, FreshnessOptions{Persist: true})
	require.NoError(t, err)
	require.True(t, res.HadUpdates)

	stored, err := env.snaps.Get(context.Background(), "page:home")
	require.NoError(t, err)
	assert.Equal(t, entry.OriginServerTS, stored.UpdatedAt)

	fresh, err := state.Decode(stored.Value)
	require.NoError(t, err)
	require.NotNil(t, fresh.Page)
	assert.Len(t, fresh.Page.Blocks, 1)
}

func TestApplyFreshnessUpdate_PersistCreatesMissingRecord(t *testing.T) {
	// A static-tier load reconciles against a record the snapshot store
	// has never seen; persist falls back from Patch to Create.
	env := newLoaderEnv(t, nil)
	appendBlockIns(t, env.log, "page:home/block:b1", "t1")

	snap := state.NewPage("page:home")
	rec := snapstore.Record{ID: "page:home", Type: "page", UpdatedAt: 0}

	_, err := env.loader.ApplyFreshnessUpdate(context.Background(), snap, rec, FreshnessOptions{Persist: true})
	require.NoError(t, err)

	stored, err := env.snaps.Get(context.Background(), "page:home")
	require.NoError(t, err)
	assert.Equal(t, "page", stored.Type)
}

func TestApplyFreshnessUpdate_HistoryMaxTrimsOnPersist(t *testing.T) {
	env := newLoaderEnv(t, nil)
	for _, txn := range []string{"t1", "t2", "t3"} {
		appendBlockIns(t, env.log, "page:home/block:b"+txn, txn)
	}

	snap := state.NewPage("page:home")
	rec := storeSnapshot(t, env.snaps, snap, 0)

	res, err := env.loader.ApplyFreshnessUpdate(context.Background(), snap, rec, FreshnessOptions{Persist: true, HistoryMax: 2})
	require.NoError(t, err)
	assert.Len(t, res.State.History, 2)

	// Read path never trims.
	res, err = env.loader.ApplyFreshnessUpdate(context.Background(), state.NewPage("page:home"),
		snapstore.Record{ID: "page:home", UpdatedAt: 0}, FreshnessOptions{HistoryMax: 2})
	require.NoError(t, err)
	assert.Len(t, res.State.History, 3)
}
