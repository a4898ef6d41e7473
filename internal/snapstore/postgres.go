package snapstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

const (
	postgresTableName        = "inkfold_snapshots"
	postgresOperationTimeout = 5 * time.Second
)

// Postgres is the Store implementation backed by a shared Postgres
// database, for deployments where several replicas serve the same
// content. The connection and table are initialized lazily on first
// use so constructing the store never blocks startup.
type Postgres struct {
	dsn       string
	tableName string
	openDB    func(driverName, dsn string) (*sql.DB, error)

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

// NewPostgres creates a Postgres snapshot store for the given DSN.
func NewPostgres(dsn string) (*Postgres, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("postgres snapshot store: empty dsn")
	}
	return &Postgres{
		dsn:       dsn,
		tableName: postgresTableName,
		openDB:    sql.Open,
	}, nil
}

func (p *Postgres) ensureReady() error {
	p.initOnce.Do(func() {
		db, err := p.openDB("postgres", p.dsn)
		if err != nil {
			p.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
		defer cancel()

		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				type TEXT NOT NULL,
				value TEXT NOT NULL,
				updated_at BIGINT NOT NULL
			)`, quoteIdentifier(p.tableName))
		if _, err := db.ExecContext(ctx, query); err != nil {
			_ = db.Close()
			p.initErr = err
			return
		}
		p.db = db
	})
	return p.initErr
}

// Close closes the database connection.
func (p *Postgres) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Get returns the record for id, or ErrNotFound.
func (p *Postgres) Get(ctx context.Context, id string) (Record, error) {
	if err := p.ensureReady(); err != nil {
		return Record{}, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	var rec Record
	var value string
	query := fmt.Sprintf(`
		SELECT id, type, value, updated_at FROM %s WHERE id = $1
	`, quoteIdentifier(p.tableName))
	err := p.db.QueryRowContext(ctx, query, id).
		Scan(&rec.ID, &rec.Type, &value, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get snapshot %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	rec.Value = []byte(value)
	return rec, nil
}

// All returns every stored record, ordered by id.
func (p *Postgres) All(ctx context.Context) ([]Record, error) {
	if err := p.ensureReady(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	query := fmt.Sprintf(`
		SELECT id, type, value, updated_at FROM %s ORDER BY id ASC
	`, quoteIdentifier(p.tableName))
	rows, err := p.db.QueryContext(ctx, query)
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

// Create upserts a record; last writer wins, matching the SQLite
// backend.
func (p *Postgres) Create(ctx context.Context, rec Record) error {
	if err := p.ensureReady(); err != nil {
		return fmt.Errorf("create snapshot %s: %w", rec.ID, err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, type, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id)
		DO UPDATE SET type = EXCLUDED.type, value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, quoteIdentifier(p.tableName))
	if _, err := p.db.ExecContext(ctx, query, rec.ID, rec.Type, string(rec.Value), rec.UpdatedAt); err != nil {
		return fmt.Errorf("create snapshot %s: %w", rec.ID, err)
	}
	return nil
}

// Patch overwrites an existing record, returning ErrNotFound when no
// record exists for the id.
func (p *Postgres) Patch(ctx context.Context, rec Record) error {
	if err := p.ensureReady(); err != nil {
		return fmt.Errorf("patch snapshot %s: %w", rec.ID, err)
	}
	query := fmt.Sprintf(`
		UPDATE %s SET type = $1, value = $2, updated_at = $3 WHERE id = $4
	`, quoteIdentifier(p.tableName))
	result, err := p.db.ExecContext(ctx, query, rec.Type, string(rec.Value), rec.UpdatedAt, rec.ID)
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

func quoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
