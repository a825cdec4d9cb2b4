package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/discat/internal/collection"
)

// ItemRepository handles collection item database operations.
type ItemRepository struct {
	pool *pgxpool.Pool
}

// itemColumns holds the per-column arrays of a batch insert.
type itemColumns struct {
	instanceIDs []int64
	releaseIDs  []int64
	folderIDs   []int64
	dateAdded   []string
	titles      []string
	positions   []int32
	payloads    []string
}

func encodeItems(items []collection.Item) (*itemColumns, error) {
	c := &itemColumns{
		instanceIDs: make([]int64, len(items)),
		releaseIDs:  make([]int64, len(items)),
		folderIDs:   make([]int64, len(items)),
		dateAdded:   make([]string, len(items)),
		titles:      make([]string, len(items)),
		positions:   make([]int32, len(items)),
		payloads:    make([]string, len(items)),
	}
	for i, it := range items {
		payload, err := json.Marshal(it)
		if err != nil {
			return nil, fmt.Errorf("encoding instance %d: %w", it.InstanceID, err)
		}
		c.instanceIDs[i] = it.InstanceID
		c.releaseIDs[i] = it.ReleaseID
		c.folderIDs[i] = it.FolderID
		c.dateAdded[i] = it.DateAdded
		c.titles[i] = it.Title()
		c.positions[i] = int32(i)
		c.payloads[i] = string(payload)
	}
	return c, nil
}

// ReplaceAll replaces the stored collection with items in one transaction.
func (r *ItemRepository) ReplaceAll(ctx context.Context, items []collection.Item, syncedAt time.Time) error {
	cols, err := encodeItems(items)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM collection_items`); err != nil {
		return fmt.Errorf("clearing items: %w", err)
	}

	if len(items) > 0 {
		query := `
			INSERT INTO collection_items (instance_id, release_id, folder_id, date_added, title, position, payload)
			SELECT i, r, f, d, t, p, j::jsonb
			FROM unnest($1::bigint[], $2::bigint[], $3::bigint[], $4::text[], $5::text[], $6::int[], $7::text[])
				AS u(i, r, f, d, t, p, j)
		`
		_, err = tx.Exec(ctx, query,
			cols.instanceIDs,
			cols.releaseIDs,
			cols.folderIDs,
			cols.dateAdded,
			cols.titles,
			cols.positions,
			cols.payloads,
		)
		if err != nil {
			return fmt.Errorf("batch inserting items: %w", err)
		}
	}

	query := `
		INSERT INTO snapshot_meta (id, last_updated) VALUES (TRUE, $1)
		ON CONFLICT (id) DO UPDATE SET last_updated = EXCLUDED.last_updated
	`
	if _, err := tx.Exec(ctx, query, syncedAt); err != nil {
		return fmt.Errorf("updating last sync: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing items: %w", err)
	}
	return nil
}

// All returns the stored collection in download order.
func (r *ItemRepository) All(ctx context.Context) ([]collection.Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT payload FROM collection_items ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []collection.Item
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		var it collection.Item
		if err := json.Unmarshal(payload, &it); err != nil {
			return nil, fmt.Errorf("decoding item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

// Get retrieves one item by instance id.
func (r *ItemRepository) Get(ctx context.Context, instanceID int64) (*collection.Item, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, `SELECT payload FROM collection_items WHERE instance_id = $1`, instanceID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying item: %w", err)
	}
	var it collection.Item
	if err := json.Unmarshal(payload, &it); err != nil {
		return nil, fmt.Errorf("decoding item: %w", err)
	}
	return &it, nil
}

// LastSynced returns when the collection was last replaced.
// Returns ErrNotFound if it never was.
func (r *ItemRepository) LastSynced(ctx context.Context) (time.Time, error) {
	var ts time.Time
	err := r.pool.QueryRow(ctx, `SELECT last_updated FROM snapshot_meta WHERE id`).Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("querying last sync: %w", err)
	}
	return ts, nil
}

// Clear removes the stored collection and its timestamp.
func (r *ItemRepository) Clear(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM collection_items; DELETE FROM snapshot_meta`); err != nil {
		return fmt.Errorf("clearing items: %w", err)
	}
	return nil
}
