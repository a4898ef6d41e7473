// Package loader unifies the read path: fast snapshot cache first,
// pre-built static artifact second, "not yet created" last, plus the
// freshness check that reconciles whatever was loaded against log
// entries the background projector has not caught up with.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/inkfold/inkfold/internal/eo"
	"github.com/inkfold/inkfold/internal/logstore"
	"github.com/inkfold/inkfold/internal/projector"
	"github.com/inkfold/inkfold/internal/snapstore"
	"github.com/inkfold/inkfold/internal/state"
	"github.com/inkfold/inkfold/internal/statecache"
)

// Source says which tier answered a load.
type Source string

const (
	SourceSnapshot Source = "snapshot" // snapshot store, via the bulk cache
	SourceStatic   Source = "static"   // pre-built static artifact
	SourceNone     Source = "none"     // entity not yet created
)

// LoadResult is the single result shape for all load tiers. State is
// nil for SourceNone; callers treat that as "entity not yet created,"
// not as an error.
type LoadResult struct {
	State  *state.Snapshot
	Record snapstore.Record
	Source Source
}

// FreshnessResult reports a reconciliation. HadUpdates is false when
// the log held nothing newer, letting callers skip redundant rerenders.
type FreshnessResult struct {
	State      *state.Snapshot
	Record     snapstore.Record
	HadUpdates bool
}

// FreshnessOptions controls ApplyFreshnessUpdate.
type FreshnessOptions struct {
	// Persist writes the reconciled snapshot back to the snapshot
	// store and through the cache. Optimistic: no lock is held, and a
	// concurrent reconciliation resolves by last-write-wins.
	Persist bool
	// HistoryMax caps the reconciled snapshot's audit trail before it
	// is persisted. Zero means no cap. Applies on the write path only;
	// replay itself never prunes history.
	HistoryMax int
}

// Loader wires the read tiers together.
type Loader struct {
	snaps  snapstore.Store
	log    logstore.Store
	cache  *statecache.Cache
	static *StaticStore // optional
	logger *slog.Logger
}

// New creates a loader. static may be nil when no artifact directory
// is configured; logger may be nil for slog's default.
func New(snaps snapstore.Store, log logstore.Store, cache *statecache.Cache, static *StaticStore, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{snaps: snaps, log: log, cache: cache, static: static, logger: logger}
}

// LoadState resolves a content id through the tiers: cached snapshot
// store first, static artifact second, SourceNone last. A snapshot
// store failure falls through to the static tier rather than failing
// the read; the error is logged and the caller still gets an answer.
func (l *Loader) LoadState(ctx context.Context, id string) (LoadResult, error) {
	rec, ok, err := l.lookupSnapshot(ctx, id)
	if err != nil {
		l.logger.Warn("snapshot tier failed, trying static artifact",
			slog.String("id", id), slog.String("error", err.Error()))
	}
	if ok {
		s, err := state.Decode(rec.Value)
		if err != nil {
			return LoadResult{}, fmt.Errorf("load state %s: %w", id, err)
		}
		return LoadResult{State: s, Record: rec, Source: SourceSnapshot}, nil
	}

	if l.static != nil {
		s, rec, ok, err := l.static.Load(id)
		if err != nil {
			return LoadResult{}, fmt.Errorf("load state %s: static artifact: %w", id, err)
		}
		if ok {
			return LoadResult{State: s, Record: rec, Source: SourceStatic}, nil
		}
	}

	return LoadResult{Source: SourceNone}, nil
}

func (l *Loader) lookupSnapshot(ctx context.Context, id string) (snapstore.Record, bool, error) {
	if rec, ok := l.cache.Lookup(id); ok {
		return rec, true, nil
	}
	records, err := l.cache.All(ctx, l.snaps.All)
	if err != nil {
		return snapstore.Record{}, false, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return rec, true, nil
		}
	}
	return snapstore.Record{}, false, nil
}

// ApplyFreshnessUpdate queries the log for entries strictly newer than
// the record's last-modified watermark and replays them onto the
// loaded snapshot. With nothing newer it returns the input unchanged
// and HadUpdates=false.
func (l *Loader) ApplyFreshnessUpdate(ctx context.Context, snap *state.Snapshot, rec snapstore.Record, opts FreshnessOptions) (FreshnessResult, error) {
	entries, err := l.log.NewerThan(ctx, rec.ID, rec.UpdatedAt)
	if err != nil {
		return FreshnessResult{}, fmt.Errorf("freshness check %s: %w", rec.ID, err)
	}
	if len(entries) == 0 {
		return FreshnessResult{State: snap, Record: rec, HadUpdates: false}, nil
	}

	fresh := projector.ApplyDelta(snap, entries)
	if opts.Persist {
		projector.TrimHistory(fresh, opts.HistoryMax)
	}
	updated := rec
	updated.UpdatedAt = latestTS(entries)
	updated.Value, err = fresh.Encode()
	if err != nil {
		return FreshnessResult{}, fmt.Errorf("freshness check %s: %w", rec.ID, err)
	}

	if opts.Persist {
		if err := l.persist(ctx, updated); err != nil {
			return FreshnessResult{}, fmt.Errorf("freshness check %s: persist: %w", rec.ID, err)
		}
		l.cache.Put(updated)
	}

	return FreshnessResult{State: fresh, Record: updated, HadUpdates: true}, nil
}

func (l *Loader) persist(ctx context.Context, rec snapstore.Record) error {
	err := l.snaps.Patch(ctx, rec)
	if errors.Is(err, snapstore.ErrNotFound) {
		return l.snaps.Create(ctx, rec)
	}
	return err
}

func latestTS(entries []eo.RawLogEntry) int64 {
	var latest int64
	for _, e := range entries {
		if e.OriginServerTS > latest {
			latest = e.OriginServerTS
		}
	}
	return latest
}
