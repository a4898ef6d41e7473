// Package index maintains the site:index snapshot: one entry per
// content entity, plus the derived nav and slug map.
//
// Unlike the other content types the index is not rebuilt by replay;
// the writer appends the index event to the log for auditability and
// updates the snapshot directly by aggregation. After a primary index
// write the affected entity's own snapshot metadata is mirrored in the
// background, best-effort: a mirror failure is logged, never surfaced,
// and never blocks the index write.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/inkfold/inkfold/internal/eo"
	"github.com/inkfold/inkfold/internal/logstore"
	"github.com/inkfold/inkfold/internal/snapstore"
	"github.com/inkfold/inkfold/internal/state"
	"github.com/inkfold/inkfold/internal/statecache"
)

// Writer maintains the site index.
type Writer struct {
	log     logstore.Store
	snaps   snapstore.Store
	cache   *statecache.Cache
	stamper eo.Stamper
	logger  *slog.Logger

	mirrors sync.WaitGroup
}

// NewWriter creates an index writer. logger may be nil for slog's
// default.
func NewWriter(log logstore.Store, snaps snapstore.Store, cache *statecache.Cache, stamper eo.Stamper, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{log: log, snaps: snaps, cache: cache, stamper: stamper, logger: logger}
}

// UpsertEntry inserts or replaces the index entry for a content
// entity, appends the corresponding event, recomputes the derived
// views and persists the index snapshot. The entity's own snapshot
// metadata is mirrored in the background.
func (w *Writer) UpsertEntry(ctx context.Context, entry state.IndexEntry) (*state.Snapshot, error) {
	if entry.ContentID == "" {
		return nil, errors.New("upsert index entry: empty content id")
	}
	if entry.Slug == "" {
		entry.Slug = Slugify(entry.Title)
	}

	operandEntry, err := entryOperand(entry)
	if err != nil {
		return nil, fmt.Errorf("upsert index entry %s: %w", entry.ContentID, err)
	}
	ev := w.stamper.InsIndexEntry(entry.ContentID, operandEntry)

	snap, err := w.mutate(ctx, ev, func(idx *state.IndexState) {
		for i := range idx.Entries {
			if idx.Entries[i].ContentID == entry.ContentID {
				idx.Entries[i] = entry
				return
			}
		}
		idx.Entries = append(idx.Entries, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("upsert index entry %s: %w", entry.ContentID, err)
	}

	w.mirrorMeta(entry)
	return snap, nil
}

// SetEntryFields updates fields on an existing index entry via a DES
// event. Unknown entries are a silent no-op for the snapshot, matching
// the fold posture elsewhere; the event is still logged.
func (w *Writer) SetEntryFields(ctx context.Context, contentID string, fields map[string]any) (*state.Snapshot, error) {
	if contentID == "" {
		return nil, errors.New("set index entry fields: empty content id")
	}
	ev := w.stamper.DesIndexEntry(contentID, fields)

	var updated *state.IndexEntry
	snap, err := w.mutate(ctx, ev, func(idx *state.IndexState) {
		for i := range idx.Entries {
			if idx.Entries[i].ContentID == contentID {
				applyEntryFields(&idx.Entries[i], fields)
				updated = &idx.Entries[i]
				return
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("set index entry fields %s: %w", contentID, err)
	}

	if updated != nil {
		w.mirrorMeta(*updated)
	}
	return snap, nil
}

// Wait blocks until pending background mirrors finish. Called on
// shutdown and by tests.
func (w *Writer) Wait() {
	w.mirrors.Wait()
}

// mutate appends the event, applies apply to the loaded (or fresh)
// index snapshot, recomputes the derived views and persists.
func (w *Writer) mutate(ctx context.Context, ev eo.Event, apply func(*state.IndexState)) (*state.Snapshot, error) {
	logged, err := w.log.Append(ctx, ev)
	if err != nil {
		return nil, err
	}

	snap, err := w.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	apply(snap.Index)
	Derive(snap.Index)
	snap.History = append(snap.History, state.HistoryEntry{
		EventID: logged.EventID,
		Op:      ev.Op,
		TS:      ev.Ctx.TS,
		Agent:   ev.Ctx.Agent,
	})

	value, err := snap.Encode()
	if err != nil {
		return nil, err
	}
	rec := snapstore.Record{
		ID:        eo.RootIndex,
		Type:      string(state.TypeIndex),
		Value:     value,
		UpdatedAt: logged.OriginServerTS,
	}
	if err := w.snaps.Create(ctx, rec); err != nil {
		return nil, err
	}
	w.cache.Put(rec)
	return snap, nil
}

func (w *Writer) loadIndex(ctx context.Context) (*state.Snapshot, error) {
	rec, err := w.snaps.Get(ctx, eo.RootIndex)
	if errors.Is(err, snapstore.ErrNotFound) {
		return state.NewIndex(), nil
	}
	if err != nil {
		return nil, err
	}
	snap, err := state.Decode(rec.Value)
	if err != nil {
		return nil, err
	}
	if snap.Index == nil {
		snap.Index = &state.IndexState{SlugMap: map[string]string{}}
	}
	return snap, nil
}

// mirrorMeta pushes an index entry's metadata into the entity's own
// snapshot in the background. Failures are logged, not surfaced; the
// entity's log remains authoritative and the next full projection
// converges anyway.
func (w *Writer) mirrorMeta(entry state.IndexEntry) {
	w.mirrors.Add(1)
	go func() {
		defer w.mirrors.Done()
		ctx := context.Background()

		rec, err := w.snaps.Get(ctx, entry.ContentID)
		if errors.Is(err, snapstore.ErrNotFound) {
			return // entity snapshot not materialized yet
		}
		if err != nil {
			w.logger.Warn("index meta mirror: load failed",
				slog.String("content_id", entry.ContentID), slog.String("error", err.Error()))
			return
		}
		snap, err := state.Decode(rec.Value)
		if err != nil {
			w.logger.Warn("index meta mirror: decode failed",
				slog.String("content_id", entry.ContentID), slog.String("error", err.Error()))
			return
		}

		snap.Meta.Slug = entry.Slug
		snap.Meta.Title = entry.Title
		if entry.Status != "" {
			snap.Meta.Status = entry.Status
		}
		if entry.Visibility != "" {
			snap.Meta.Visibility = entry.Visibility
		}
		if len(entry.Tags) > 0 {
			snap.Meta.Tags = append([]string(nil), entry.Tags...)
		}

		rec.Value, err = snap.Encode()
		if err != nil {
			w.logger.Warn("index meta mirror: encode failed",
				slog.String("content_id", entry.ContentID), slog.String("error", err.Error()))
			return
		}
		if err := w.snaps.Patch(ctx, rec); err != nil {
			w.logger.Warn("index meta mirror: write failed",
				slog.String("content_id", entry.ContentID), slog.String("error", err.Error()))
			return
		}
		w.cache.Put(rec)
	}()
}

// entryOperand converts an index entry to its generic operand shape.
func entryOperand(entry state.IndexEntry) (map[string]any, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// applyEntryFields applies a DES set operand to an index entry.
// Unknown fields are ignored.
func applyEntryFields(entry *state.IndexEntry, fields map[string]any) {
	for key, v := range fields {
		switch key {
		case "slug":
			if s, ok := v.(string); ok {
				entry.Slug = s
			}
		case "title":
			if s, ok := v.(string); ok {
				entry.Title = s
			}
		case "status":
			if s, ok := v.(string); ok {
				entry.Status = s
			}
		case "visibility":
			if s, ok := v.(string); ok {
				entry.Visibility = s
			}
		case "show_in_nav":
			if b, ok := v.(bool); ok {
				entry.ShowInNav = b
			}
		case "parent_page":
			if s, ok := v.(string); ok {
				entry.ParentPage = s
			}
		case "tags":
			switch tags := v.(type) {
			case []string:
				entry.Tags = append([]string(nil), tags...)
			case []any:
				out := make([]string, 0, len(tags))
				for _, t := range tags {
					if s, ok := t.(string); ok {
						out = append(out, s)
					}
				}
				entry.Tags = out
			}
		}
	}
}
