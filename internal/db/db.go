// Package db provides the optional PostgreSQL mirror of the downloaded
// collection and the ledger of finished runs.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors.
var (
	ErrNotFound = errors.New("not found")
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Pool returns the underlying connection pool for advanced operations.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Items returns an ItemRepository.
func (db *DB) Items() *ItemRepository {
	return &ItemRepository{pool: db.pool}
}

// Runs returns a RunRepository.
func (db *DB) Runs() *RunRepository {
	return &RunRepository{pool: db.pool}
}

// Snapshots returns a snapshot store backed by the items table.
func (db *DB) Snapshots() *SnapshotStore {
	return &SnapshotStore{items: db.Items()}
}

const schema = `
CREATE TABLE IF NOT EXISTS collection_items (
	instance_id BIGINT PRIMARY KEY,
	release_id  BIGINT NOT NULL,
	folder_id   BIGINT NOT NULL,
	date_added  TEXT NOT NULL,
	title       TEXT NOT NULL,
	position    INT NOT NULL,
	payload     JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_meta (
	id           BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
	last_updated TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id         UUID PRIMARY KEY,
	kind       TEXT NOT NULL,
	status     TEXT NOT NULL,
	error      TEXT,
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	ended_at   TIMESTAMPTZ
);
`

// EnsureSchema creates the tables if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
