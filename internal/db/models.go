package db

import (
	"time"

	"github.com/google/uuid"
)

// RunRecord is a finished run as stored in sync_runs.
type RunRecord struct {
	ID        uuid.UUID
	Kind      string
	Status    string
	Error     *string // nullable
	Result    []byte  // raw JSON, nullable
	CreatedAt time.Time
	StartedAt *time.Time // nullable
	EndedAt   *time.Time // nullable
}
