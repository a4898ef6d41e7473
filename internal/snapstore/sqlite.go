package snapstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLite is the Store implementation backed by a SQLite file. It can
// share a file with the log store; the two schemas do not overlap.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens a SQLite snapshot store at the given
// path. Safe to call multiple times on the same file.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect snapshot store: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply snapshot schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the record for id, or ErrNotFound.
func (s *SQLite) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, value, updated_at FROM snapshots WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Type, &value, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get snapshot %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	rec.Value = []byte(value)
	return rec, nil
}

// All returns every stored record, ordered by id for determinism.
func (s *SQLite) All(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, value, updated_at FROM snapshots ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		var value string
		if err := rows.Scan(&rec.ID, &rec.Type, &value, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		rec.Value = []byte(value)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return recs, nil
}

// Create inserts a record. An existing record with the same id is
// overwritten; snapshots are derived data, so last writer wins.
func (s *SQLite) Create(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, type, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			value = excluded.value,
			updated_at = excluded.updated_at
	`, rec.ID, rec.Type, string(rec.Value), rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create snapshot %s: %w", rec.ID, err)
	}
	return nil
}

// Patch overwrites an existing record, returning ErrNotFound when no
// record exists for the id.
func (s *SQLite) Patch(ctx context.Context, rec Record) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE snapshots SET type = ?, value = ?, updated_at = ?
		WHERE id = ?
	`, rec.Type, string(rec.Value), rec.UpdatedAt, rec.ID)
	if err != nil {
		return fmt.Errorf("patch snapshot %s: %w", rec.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("patch snapshot %s: rows affected: %w", rec.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("patch snapshot %s: %w", rec.ID, ErrNotFound)
	}
	return nil
}
