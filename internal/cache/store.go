// Package cache persists collection snapshots between runs and the latest
// full collection consumed by the sync and organize flows.
package cache

import (
	"context"
	"errors"

	"github.com/justestif/discat/internal/collection"
)

// ErrNoCollection is returned when no collection file has been written yet.
var ErrNoCollection = errors.New("no downloaded collection; run download first")

// Store persists the reconciliation snapshot.
// Load returns (nil, nil) when nothing has been saved yet.
// Save replaces the stored snapshot wholesale.
type Store interface {
	Load(ctx context.Context) (*collection.Snapshot, error)
	Save(ctx context.Context, snap *collection.Snapshot) error
	Clear(ctx context.Context) error
}
