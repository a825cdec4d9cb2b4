package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/discat/internal/collection"
)

func sampleSnapshot() *collection.Snapshot {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	price := 12.5
	return collection.SnapshotOf([]collection.Item{
		{
			InstanceID: 1,
			ReleaseID:  100,
			FolderID:   1,
			DateAdded:  "2023-01-01T00:00:00-08:00",
			BasicInformation: collection.BasicInformation{
				Title:   "Dummy",
				Year:    1994,
				Formats: []collection.Format{{Name: "Vinyl"}},
			},
			DetailedMetadata: &collection.Release{
				Genres:      []string{"Electronic"},
				Styles:      []string{"Trip Hop"},
				LowestPrice: &price,
			},
			CustomFieldValues: []collection.FieldValue{{FieldID: 3, Value: "Mint"}},
		},
		{InstanceID: 2, ReleaseID: 200, DateAdded: "2024-01-01T00:00:00-08:00"},
	}, at)
}

// storeContract exercises the behavior every Store must share.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "empty store should load nil")

	want := sampleSnapshot()
	require.NoError(t, store.Save(ctx, want))

	got, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Items, got.Items)
	require.NotNil(t, got.LastUpdated)
	assert.True(t, want.LastUpdated.Equal(*got.LastUpdated))

	// Save replaces wholesale.
	replacement := collection.SnapshotOf([]collection.Item{{InstanceID: 9}}, time.Now().UTC())
	require.NoError(t, store.Save(ctx, replacement))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)
	_, ok := got.Lookup(9)
	assert.True(t, ok)

	require.NoError(t, store.Clear(ctx))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Clearing twice is fine.
	require.NoError(t, store.Clear(ctx))
}

func TestFileStore(t *testing.T) {
	storeContract(t, NewFileStore(filepath.Join(t.TempDir(), "out", SnapshotFileName)))
}

func TestBadgerStore(t *testing.T) {
	db, err := OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	storeContract(t, NewBadgerStore(db))
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), SnapshotFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestFileStore_NullItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), SnapshotFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"items": null, "last_updated": null}`), 0o600))

	snap, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snap.Items)
	assert.Nil(t, snap.LastUpdated)
}

func TestCollectionFile(t *testing.T) {
	f := NewCollectionFile(filepath.Join(t.TempDir(), CollectionFileName))

	_, err := f.Load()
	assert.True(t, errors.Is(err, ErrNoCollection), "got %v", err)

	items := []collection.Item{{InstanceID: 2}, {InstanceID: 1}}
	require.NoError(t, f.Save(items))

	got, err := f.Load()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].InstanceID, "order preserved")

	require.NoError(t, f.Save(nil))
	got, err = f.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}
