// Package snapstore persists materialized snapshots.
//
// Everything here is a derived view: the event log in logstore is the
// source of truth, and any record can be rebuilt by replaying it. The
// store therefore favors simple last-writer-wins upserts over
// coordination.
package snapstore

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Get and Patch when no record exists for
// the requested id.
var ErrNotFound = errors.New("snapshot not found")

// Record is one persisted snapshot. Value holds the serialized
// snapshot document; UpdatedAt is the last-modified watermark in epoch
// milliseconds that freshness reconciliation compares log timestamps
// against.
type Record struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt int64           `json:"updated_at"`
}

// Store is the persistence interface for snapshot records.
//
// Create inserts a new record; Patch overwrites an existing one and
// returns ErrNotFound when there is nothing to overwrite. Both write
// paths are last-writer-wins.
type Store interface {
	Get(ctx context.Context, id string) (Record, error)
	All(ctx context.Context) ([]Record, error)
	Create(ctx context.Context, rec Record) error
	Patch(ctx context.Context, rec Record) error
	Close() error
}
