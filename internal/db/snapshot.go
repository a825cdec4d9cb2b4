package db

import (
	"context"
	"errors"
	"time"

	"github.com/justestif/discat/internal/collection"
)

// SnapshotStore keeps the reconciliation snapshot in PostgreSQL.
type SnapshotStore struct {
	items *ItemRepository
}

// Load returns the stored snapshot, or (nil, nil) if none was saved.
func (s *SnapshotStore) Load(ctx context.Context) (*collection.Snapshot, error) {
	ts, err := s.items.LastSynced(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := s.items.All(ctx)
	if err != nil {
		return nil, err
	}
	return collection.SnapshotOf(items, ts), nil
}

// Save replaces the stored snapshot.
func (s *SnapshotStore) Save(ctx context.Context, snap *collection.Snapshot) error {
	if snap == nil {
		return errors.New("cannot save nil snapshot")
	}
	items := make([]collection.Item, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, it)
	}
	ts := time.Now().UTC()
	if snap.LastUpdated != nil {
		ts = *snap.LastUpdated
	}
	return s.items.ReplaceAll(ctx, items, ts)
}

// Clear removes the stored snapshot.
func (s *SnapshotStore) Clear(ctx context.Context) error {
	return s.items.Clear(ctx)
}
