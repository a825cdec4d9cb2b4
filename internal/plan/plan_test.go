package plan

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/discat/internal/collection"
	"github.com/justestif/discat/internal/extract"
)

// fixedExtractor proposes values keyed by instance id.
type fixedExtractor map[int64]string

func (f fixedExtractor) Extract(it collection.Item) (string, bool) {
	v, ok := f[it.InstanceID]
	return v, ok && v != ""
}

func mkItem(id int64, folder int64, fields ...collection.FieldValue) collection.Item {
	return collection.Item{
		InstanceID:        id,
		ReleaseID:         id * 10,
		FolderID:          folder,
		BasicInformation:  collection.BasicInformation{Title: fmt.Sprintf("Item %d", id)},
		CustomFieldValues: fields,
	}
}

var (
	yearField   = collection.Field{ID: 4, Name: "Year", Type: collection.FieldText}
	formatField = collection.Field{ID: 5, Name: "Format", Type: collection.FieldDropdown, Options: []string{"Vinyl", "CD"}}
)

func TestBuild_TextChange(t *testing.T) {
	items := []collection.Item{mkItem(1, 1, collection.FieldValue{FieldID: 4, Value: "1993"})}

	p := Build(items, yearField, fixedExtractor{1: "1994"}, Options{})

	require.Len(t, p.Changes, 1)
	c := p.Changes[0]
	assert.Equal(t, "1993", c.Current)
	assert.Equal(t, "1994", c.Proposed)
	assert.Equal(t, 4, c.FieldID)
	assert.Equal(t, collection.Ref{FolderID: 1, ReleaseID: 10, InstanceID: 1}, c.Ref())
	assert.Empty(t, p.ValidationErrors)
	assert.Empty(t, p.Skipped)
}

func TestBuild_DropdownValidation(t *testing.T) {
	items := []collection.Item{mkItem(1, 1), mkItem(2, 1)}

	p := Build(items, formatField, fixedExtractor{1: "Cassette", 2: "Vinyl"}, Options{})

	require.Len(t, p.ValidationErrors, 1)
	assert.Equal(t, ValidationError{Title: "Item 1", Value: "Cassette", InstanceID: 1}, p.ValidationErrors[0])
	require.Len(t, p.Changes, 1)
	assert.Equal(t, int64(2), p.Changes[0].InstanceID)
	assert.Equal(t, []string{"Vinyl", "CD"}, p.FieldOptions)
}

func TestBuild_Buckets(t *testing.T) {
	items := []collection.Item{
		mkItem(1, 1), // no proposal
		mkItem(2, 1, collection.FieldValue{FieldID: 4, Value: "1994"}), // already synced
		mkItem(3, 1, collection.FieldValue{FieldID: 4, Value: "2001"}), // has value
		mkItem(4, 1, collection.FieldValue{FieldID: 4, Value: ""}),     // empty value counts as none
		mkItem(5, 1),
	}
	ex := fixedExtractor{2: "1994", 3: "1999", 4: "1980", 5: "1970"}

	t.Run("default", func(t *testing.T) {
		p := Build(items, yearField, ex, Options{})
		assert.Equal(t, []int64{3, 4, 5}, changeIDs(p))
		assert.Empty(t, p.Skipped)
	})

	t.Run("skip if has value", func(t *testing.T) {
		p := Build(items, yearField, ex, Options{SkipIfHasValue: true})
		assert.Equal(t, []int64{4, 5}, changeIDs(p))
		assert.Equal(t, []Skip{
			{Title: "Item 2", Current: "1994", InstanceID: 2},
			{Title: "Item 3", Current: "2001", InstanceID: 3},
		}, p.Skipped)
	})

	t.Run("filter", func(t *testing.T) {
		p := Build(items, yearField, ex, Options{Filter: "1980"})
		assert.Equal(t, []int64{4}, changeIDs(p))
		assert.Equal(t, 3, p.FilteredOut)
	})
}

func TestBuild_FilterBeforeValidation(t *testing.T) {
	items := []collection.Item{mkItem(1, 1), mkItem(2, 1)}

	p := Build(items, formatField, fixedExtractor{1: "Cassette", 2: "CD"}, Options{Filter: "CD"})

	assert.Empty(t, p.ValidationErrors, "filtered items are not validated")
	assert.Equal(t, 1, p.FilteredOut)
	assert.Equal(t, []int64{2}, changeIDs(p))
}

// Applying a plan's changes and planning again yields no changes.
func TestBuild_Idempotent(t *testing.T) {
	items := []collection.Item{
		mkItem(1, 1),
		mkItem(2, 1, collection.FieldValue{FieldID: 5, Value: "CD"}),
		mkItem(3, 2, collection.FieldValue{FieldID: 9, Value: "other field"}),
	}
	for i := range items {
		items[i].BasicInformation.Formats = []collection.Format{{Name: "Vinyl"}}
	}

	first := Build(items, formatField, extract.FormatSimple, Options{})
	require.Len(t, first.Changes, 3)

	applied := apply(items, first)
	second := Build(applied, formatField, extract.FormatSimple, Options{})
	assert.Empty(t, second.Changes)

	again := Build(items, formatField, extract.FormatSimple, Options{})
	assert.Equal(t, first, again, "planning is deterministic")
}

// Filtering never grows the change set and every excluded proposal is
// counted as filtered out.
func TestBuild_FilterExclusivity(t *testing.T) {
	var items []collection.Item
	ex := fixedExtractor{}
	values := []string{"Vinyl", "CD", "Vinyl", "", "CD", "Vinyl"}
	for i, v := range values {
		id := int64(i + 1)
		items = append(items, mkItem(id, 1))
		ex[id] = v
	}

	base := Build(items, formatField, ex, Options{})
	for _, filter := range []string{"Vinyl", "CD", "Cassette"} {
		p := Build(items, formatField, ex, Options{Filter: filter})
		assert.LessOrEqual(t, len(p.Changes), len(base.Changes), filter)
		for _, c := range p.Changes {
			assert.Equal(t, filter, c.Proposed)
		}

		proposals := 0
		for _, v := range values {
			if v != "" {
				proposals++
			}
		}
		kept := len(p.Changes) + len(p.ValidationErrors) + len(p.Skipped)
		assert.Equal(t, proposals, kept+p.FilteredOut, filter)
	}
}

func TestSyncPlan_Ready(t *testing.T) {
	empty := &SyncPlan{}
	assert.False(t, empty.Ready(true))

	clean := &SyncPlan{Changes: []Change{{}}}
	assert.True(t, clean.Ready(false))

	invalid := &SyncPlan{Changes: []Change{{}}, ValidationErrors: []ValidationError{{}}}
	assert.False(t, invalid.Ready(false))
	assert.True(t, invalid.Ready(true))
}

type fakeCatalog struct {
	fields  []collection.Field
	folders []collection.Folder
	err     error
}

func (f fakeCatalog) Fields(ctx context.Context) ([]collection.Field, error) {
	return f.fields, f.err
}

func (f fakeCatalog) Folders(ctx context.Context) ([]collection.Folder, error) {
	return f.folders, f.err
}

func TestPlanner_Plan(t *testing.T) {
	pl := NewPlanner(fakeCatalog{fields: []collection.Field{yearField, formatField}})
	items := []collection.Item{mkItem(1, 1)}

	p, err := pl.Plan(context.Background(), items, "Year", fixedExtractor{1: "1994"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, p.FieldID)
	assert.Len(t, p.Changes, 1)

	_, err = pl.Plan(context.Background(), items, "year", fixedExtractor{1: "1994"}, Options{})
	assert.True(t, errors.Is(err, ErrFieldNotFound), "lookup is case sensitive: %v", err)
	assert.Contains(t, err.Error(), "Year, Format")

	boom := errors.New("boom")
	_, err = NewPlanner(fakeCatalog{err: boom}).Plan(context.Background(), items, "Year", fixedExtractor{}, Options{})
	assert.ErrorIs(t, err, boom)
}

func changeIDs(p *SyncPlan) []int64 {
	out := []int64{}
	for _, c := range p.Changes {
		out = append(out, c.InstanceID)
	}
	return out
}

// apply returns items with the plan's changes written into their field values.
func apply(items []collection.Item, p *SyncPlan) []collection.Item {
	byID := make(map[int64]string)
	for _, c := range p.Changes {
		byID[c.InstanceID] = c.Proposed
	}
	out := make([]collection.Item, len(items))
	for i, it := range items {
		if v, ok := byID[it.InstanceID]; ok {
			fields := make([]collection.FieldValue, 0, len(it.CustomFieldValues)+1)
			replaced := false
			for _, fv := range it.CustomFieldValues {
				if fv.FieldID == p.FieldID {
					fv.Value = v
					replaced = true
				}
				fields = append(fields, fv)
			}
			if !replaced {
				fields = append(fields, collection.FieldValue{FieldID: p.FieldID, Value: v})
			}
			it.CustomFieldValues = fields
		}
		out[i] = it
	}
	return out
}
