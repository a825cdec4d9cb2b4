package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/discat/internal/runs"
)

// RunRepository handles run ledger operations.
type RunRepository struct {
	pool *pgxpool.Pool
}

// Record stores a finished run, replacing any earlier record with its id.
func (r *RunRepository) Record(ctx context.Context, v runs.View) error {
	id, err := uuid.Parse(v.ID)
	if err != nil {
		return fmt.Errorf("parsing run id: %w", err)
	}

	var result []byte
	if v.Result != nil {
		if result, err = json.Marshal(v.Result); err != nil {
			return fmt.Errorf("encoding run result: %w", err)
		}
	}
	var errText *string
	if v.Error != "" {
		errText = &v.Error
	}

	query := `
		INSERT INTO sync_runs (id, kind, status, error, result, created_at, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			result = EXCLUDED.result,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at
	`
	var resultText *string
	if result != nil {
		s := string(result)
		resultText = &s
	}
	_, err = r.pool.Exec(ctx, query,
		id,
		string(v.Kind),
		string(v.Status),
		errText,
		resultText,
		v.CreatedAt,
		v.StartedAt,
		v.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// Get retrieves a run record by id.
func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	query := `
		SELECT id, kind, status, error, result, created_at, started_at, ended_at
		FROM sync_runs
		WHERE id = $1
	`
	var rec RunRecord
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.Kind,
		&rec.Status,
		&rec.Error,
		&rec.Result,
		&rec.CreatedAt,
		&rec.StartedAt,
		&rec.EndedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return &rec, nil
}

// Recent returns the most recent runs, newest first.
func (r *RunRepository) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
		SELECT id, kind, status, error, result, created_at, started_at, ended_at
		FROM sync_runs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Kind,
			&rec.Status,
			&rec.Error,
			&rec.Result,
			&rec.CreatedAt,
			&rec.StartedAt,
			&rec.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return records, nil
}
