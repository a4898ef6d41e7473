package logstore

import (
	"context"
	"encoding/json"

	"github.com/inkfold/inkfold/internal/eo"
)

// Store is the append-only event log.
//
// Append assigns the event id and server timestamp and returns the
// stored entry; re-appending an identical event (or one carrying an
// already-seen transaction key for the same root) returns the
// previously stored entry instead of duplicating it.
//
// NewerThan returns the entries for a root whose server timestamp is
// strictly greater than sinceMillis, ascending. Tail returns the most
// recent entries for a root, ascending, capped at limit.
type Store interface {
	Append(ctx context.Context, ev eo.Event) (eo.RawLogEntry, error)
	NewerThan(ctx context.Context, rootID string, sinceMillis int64) ([]eo.RawLogEntry, error)
	Tail(ctx context.Context, rootID string, limit int) ([]eo.RawLogEntry, error)
	Close() error
}

// encodeContent serializes an event for the content column. The
// content-addressed id is computed from the canonical encoding, not
// from this serialization, so key order here is irrelevant.
func encodeContent(ev eo.Event) ([]byte, error) {
	return json.Marshal(ev)
}
