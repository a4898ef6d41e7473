package logstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/inkfold/inkfold/internal/eo"
)

//go:embed schema.sql
var schemaSQL string

// ErrInvalidEvent is returned by Append for events that fail basic
// structural validation before anything touches the database.
var ErrInvalidEvent = errors.New("invalid event")

// SQLite is the Store implementation backed by a SQLite file.
// Uses WAL mode so readers are not blocked during appends.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a SQLite log store.
type Option func(*SQLite)

// WithNow overrides the clock used to assign origin_server_ts.
// Tests use this to make timestamps deterministic.
func WithNow(now func() time.Time) Option {
	return func(s *SQLite) {
		if now != nil {
			s.now = now
		}
	}
}

// Open creates or opens a SQLite event log at the given path.
// Applies required pragmas and the schema automatically; safe to call
// multiple times on the same file.
func Open(path string, opts ...Option) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open log store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect log store: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY on concurrent appends.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply log schema: %w", err)
	}

	s := &SQLite{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append stores an event, assigning its content-addressed id and a
// per-root monotonic server timestamp. Duplicate appends (same event
// id, or same (root, txn) pair from a retried submission) return the
// entry stored the first time.
func (s *SQLite) Append(ctx context.Context, ev eo.Event) (eo.RawLogEntry, error) {
	if !eo.ValidOps[ev.Op] {
		return eo.RawLogEntry{}, fmt.Errorf("%w: unknown op %q", ErrInvalidEvent, ev.Op)
	}
	tgt, err := eo.ParseTarget(ev.Target)
	if err != nil {
		return eo.RawLogEntry{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	eventID, err := eo.EventID(ev)
	if err != nil {
		return eo.RawLogEntry{}, fmt.Errorf("append event: %w", err)
	}
	content, err := encodeContent(ev)
	if err != nil {
		return eo.RawLogEntry{}, fmt.Errorf("append event: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eo.RawLogEntry{}, fmt.Errorf("append event: begin tx: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	// origin_server_ts is receive time, bumped past the root's latest
	// so NewerThan range queries never skip an accepted event.
	ts := s.now().UnixMilli()
	var last sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT MAX(origin_server_ts) FROM events WHERE root_id = ?
	`, tgt.Root).Scan(&last)
	if err != nil {
		return eo.RawLogEntry{}, fmt.Errorf("append event: last ts: %w", err)
	}
	if last.Valid && ts <= last.Int64 {
		ts = last.Int64 + 1
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO events
		(event_id, root_id, type, sender, origin_server_ts, txn_key, content)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		eventID,
		tgt.Root,
		eo.LogEventType,
		ev.Ctx.Agent,
		ts,
		ev.Ctx.Txn,
		string(content),
	)
	if err != nil {
		return eo.RawLogEntry{}, fmt.Errorf("append event: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return eo.RawLogEntry{}, fmt.Errorf("append event: rows affected: %w", err)
	}

	var entry eo.RawLogEntry
	if rowsAffected > 0 {
		entry = eo.RawLogEntry{
			EventID:        eventID,
			Type:           eo.LogEventType,
			Sender:         ev.Ctx.Agent,
			OriginServerTS: ts,
			Content:        content,
		}
	} else {
		// Conflict on event id or on (root, txn): either way the log
		// already holds the authoritative row. Prefer the txn lookup
		// because a retried client may have re-stamped ctx.ts, which
		// changes the content hash but not the transaction key.
		row := tx.QueryRowContext(ctx, `
			SELECT event_id, type, sender, origin_server_ts, content
			FROM events WHERE event_id = ?
		`, eventID)
		if ev.Ctx.Txn != "" {
			row = tx.QueryRowContext(ctx, `
				SELECT event_id, type, sender, origin_server_ts, content
				FROM events WHERE root_id = ? AND txn_key = ?
			`, tgt.Root, ev.Ctx.Txn)
		}
		entry, err = scanEntry(row)
		if err != nil {
			return eo.RawLogEntry{}, fmt.Errorf("append event: select existing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return eo.RawLogEntry{}, fmt.Errorf("append event: commit: %w", err)
	}
	return entry, nil
}

// NewerThan returns the entries for a root with origin_server_ts
// strictly greater than sinceMillis, ascending. Pass -1 for the full
// log of the root.
func (s *SQLite) NewerThan(ctx context.Context, rootID string, sinceMillis int64) ([]eo.RawLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, type, sender, origin_server_ts, content
		FROM events
		WHERE root_id = ? AND origin_server_ts > ?
		ORDER BY origin_server_ts ASC
	`, rootID, sinceMillis)
	if err != nil {
		return nil, fmt.Errorf("query events newer than %d: %w", sinceMillis, err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// Tail returns the most recent entries for a root, ascending.
func (s *SQLite) Tail(ctx context.Context, rootID string, limit int) ([]eo.RawLogEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, type, sender, origin_server_ts, content
		FROM (
			SELECT event_id, type, sender, origin_server_ts, content
			FROM events
			WHERE root_id = ?
			ORDER BY origin_server_ts DESC
			LIMIT ?
		)
		ORDER BY origin_server_ts ASC
	`, rootID, limit)
	if err != nil {
		return nil, fmt.Errorf("query event tail: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (eo.RawLogEntry, error) {
	var entry eo.RawLogEntry
	var content string
	err := row.Scan(&entry.EventID, &entry.Type, &entry.Sender, &entry.OriginServerTS, &content)
	if err != nil {
		return eo.RawLogEntry{}, err
	}
	entry.Content = []byte(content)
	return entry, nil
}

func collectEntries(rows *sql.Rows) ([]eo.RawLogEntry, error) {
	var entries []eo.RawLogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return entries, nil
}
