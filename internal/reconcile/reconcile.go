// Package reconcile partitions a freshly fetched collection against the
// previous run's snapshot so only new or changed items are re-enriched.
package reconcile

import "github.com/justestif/discat/internal/collection"

// Result holds the three disjoint partitions of a fresh listing.
// Each partition follows the order of the fresh listing.
type Result struct {
	New       []collection.Item
	Changed   []collection.Item
	Unchanged []collection.Item
}

// Counts is the size of each partition.
type Counts struct {
	New       int `json:"new"`
	Changed   int `json:"changed"`
	Unchanged int `json:"unchanged"`
}

// Reconcile classifies every fresh item against snap.
//
// An item missing from the snapshot is New. An item whose date_added or
// folder_id differs from its cached copy is Changed. Otherwise it is
// Unchanged and the cached copy is carried forward, keeping the detailed
// metadata and field values the listing never returns.
//
// With useCache false, or a nil snapshot, every item is New.
func Reconcile(fresh []collection.Item, snap *collection.Snapshot, useCache bool) Result {
	var r Result
	if !useCache || snap == nil {
		r.New = append(r.New, fresh...)
		return r
	}

	for _, it := range fresh {
		cached, ok := snap.Lookup(it.InstanceID)
		switch {
		case !ok:
			r.New = append(r.New, it)
		case cached.DateAdded != it.DateAdded || cached.FolderID != it.FolderID:
			r.Changed = append(r.Changed, it)
		default:
			r.Unchanged = append(r.Unchanged, cached)
		}
	}
	return r
}

// WorkSet returns the items that need remote enrichment: New then Changed.
func (r Result) WorkSet() []collection.Item {
	ws := make([]collection.Item, 0, len(r.New)+len(r.Changed))
	ws = append(ws, r.New...)
	return append(ws, r.Changed...)
}

// Merge returns the full collection for persistence: the enriched work set
// followed by the unchanged cached items.
func (r Result) Merge(enriched []collection.Item) []collection.Item {
	out := make([]collection.Item, 0, len(enriched)+len(r.Unchanged))
	out = append(out, enriched...)
	return append(out, r.Unchanged...)
}

// Counts returns the partition sizes.
func (r Result) Counts() Counts {
	return Counts{New: len(r.New), Changed: len(r.Changed), Unchanged: len(r.Unchanged)}
}

// Total returns the number of reconciled items.
func (c Counts) Total() int {
	return c.New + c.Changed + c.Unchanged
}
