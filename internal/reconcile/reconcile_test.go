package reconcile

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/discat/internal/collection"
)

func item(id int64, dateAdded string, folder int64) collection.Item {
	return collection.Item{
		InstanceID: id,
		ReleaseID:  id * 100,
		FolderID:   folder,
		DateAdded:  dateAdded,
		BasicInformation: collection.BasicInformation{
			Title: fmt.Sprintf("Release %d", id),
		},
	}
}

func enriched(it collection.Item) collection.Item {
	it.DetailedMetadata = &collection.Release{Genres: []string{"Jazz"}, Country: "US"}
	it.CustomFieldValues = []collection.FieldValue{{FieldID: 1, Value: "VG+"}}
	return it
}

func ids(items []collection.Item) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.InstanceID
	}
	return out
}

func TestReconcile_EmptyCacheAllNew(t *testing.T) {
	fresh := []collection.Item{item(1, "a", 1), item(2, "b", 1), item(3, "c", 1)}

	r := Reconcile(fresh, collection.NewSnapshot(), true)

	assert.Equal(t, []int64{1, 2, 3}, ids(r.New))
	assert.Empty(t, r.Changed)
	assert.Empty(t, r.Unchanged)
	assert.Len(t, r.WorkSet(), 3)
}

func TestReconcile_DateAddedChanged(t *testing.T) {
	snap := collection.SnapshotOf([]collection.Item{item(1, "2023-01-01", 1)}, time.Now())
	fresh := []collection.Item{item(1, "2024-05-01", 1)}

	r := Reconcile(fresh, snap, true)

	require.Len(t, r.Changed, 1)
	assert.Equal(t, "2024-05-01", r.Changed[0].DateAdded, "changed items use the fresh copy")
	assert.Empty(t, r.New)
	assert.Empty(t, r.Unchanged)
}

func TestReconcile_FolderChanged(t *testing.T) {
	snap := collection.SnapshotOf([]collection.Item{item(1, "2023-01-01", 1)}, time.Now())
	fresh := []collection.Item{item(1, "2023-01-01", 7)}

	r := Reconcile(fresh, snap, true)

	require.Len(t, r.Changed, 1)
	assert.Equal(t, int64(7), r.Changed[0].FolderID)
}

func TestReconcile_UnchangedCarriesCachedEnrichment(t *testing.T) {
	cached := enriched(item(1, "2023-01-01", 1))
	snap := collection.SnapshotOf([]collection.Item{cached}, time.Now())

	fresh := item(1, "2023-01-01", 1)
	fresh.Rating = 5 // listing-only change that does not signal a change

	r := Reconcile([]collection.Item{fresh}, snap, true)

	require.Len(t, r.Unchanged, 1)
	assert.Equal(t, cached, r.Unchanged[0])
	assert.Empty(t, r.WorkSet())
}

func TestReconcile_CacheDisabled(t *testing.T) {
	snap := collection.SnapshotOf([]collection.Item{item(1, "a", 1)}, time.Now())
	fresh := []collection.Item{item(1, "a", 1), item(2, "b", 1)}

	r := Reconcile(fresh, snap, false)

	assert.Equal(t, []int64{1, 2}, ids(r.New))
	assert.Empty(t, r.Unchanged)
	assert.Empty(t, r.Changed)

	r = Reconcile(fresh, nil, true)
	assert.Len(t, r.WorkSet(), 2, "nil snapshot behaves like an empty one")
}

func TestReconcile_RemovedItemsDropped(t *testing.T) {
	snap := collection.SnapshotOf([]collection.Item{item(1, "a", 1), item(2, "b", 1)}, time.Now())

	r := Reconcile([]collection.Item{item(2, "b", 1)}, snap, true)

	assert.Equal(t, 1, r.Counts().Total())
	assert.Equal(t, []int64{2}, ids(r.Merge(nil)))
}

func TestResult_Merge(t *testing.T) {
	snap := collection.SnapshotOf([]collection.Item{
		enriched(item(1, "a", 1)),
		item(2, "old", 1),
	}, time.Now())
	fresh := []collection.Item{item(3, "c", 1), item(1, "a", 1), item(2, "new", 1)}

	r := Reconcile(fresh, snap, true)
	assert.Equal(t, []int64{3, 2}, ids(r.WorkSet()))

	work := r.WorkSet()
	for i := range work {
		work[i] = enriched(work[i])
	}
	merged := r.Merge(work)

	assert.Equal(t, []int64{3, 2, 1}, ids(merged))
	for _, it := range merged {
		assert.NotNil(t, it.DetailedMetadata, "instance %d", it.InstanceID)
	}
	assert.Equal(t, Counts{New: 1, Changed: 1, Unchanged: 1}, r.Counts())
}

// Every fresh item lands in exactly one partition, whatever the cache holds.
func TestReconcile_PartitionCompleteness(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	dates := []string{"2023-01-01", "2024-05-01"}

	for round := 0; round < 200; round++ {
		var cachedItems, fresh []collection.Item
		for id := int64(1); id <= 20; id++ {
			if rng.IntN(2) == 0 {
				cachedItems = append(cachedItems, item(id, dates[rng.IntN(2)], int64(rng.IntN(2))))
			}
			if rng.IntN(3) > 0 {
				fresh = append(fresh, item(id, dates[rng.IntN(2)], int64(rng.IntN(2))))
			}
		}
		snap := collection.SnapshotOf(cachedItems, time.Now())

		r := Reconcile(fresh, snap, true)

		seen := make(map[int64]int)
		for _, part := range [][]collection.Item{r.New, r.Changed, r.Unchanged} {
			for _, it := range part {
				seen[it.InstanceID]++
			}
		}
		require.Len(t, seen, len(fresh), "round %d", round)
		for _, it := range fresh {
			require.Equal(t, 1, seen[it.InstanceID], "round %d instance %d", round, it.InstanceID)
		}
		require.Equal(t, len(fresh), r.Counts().Total())
	}
}
