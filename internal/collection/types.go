// Package collection defines the Discogs collection model shared by the
// fetcher, the reconciler, the planners and the stores.
package collection

import (
	"slices"
	"strconv"
	"time"
)

// Item is one copy (instance) of a release in the user's collection.
type Item struct {
	InstanceID       int64            `json:"instance_id"`
	ReleaseID        int64            `json:"id"`
	FolderID         int64            `json:"folder_id"`
	Rating           int              `json:"rating"`
	DateAdded        string           `json:"date_added"`
	BasicInformation BasicInformation `json:"basic_information"`

	// Overlays, nil until the enrichment passes have run.
	DetailedMetadata  *Release     `json:"detailed_metadata,omitempty"`
	CustomFieldValues []FieldValue `json:"custom_field_values,omitempty"`
}

// BasicInformation is the release summary returned with every listing page.
type BasicInformation struct {
	ID       int64    `json:"id"`
	MasterID int64    `json:"master_id"`
	Title    string   `json:"title"`
	Year     int      `json:"year"`
	Artists  []Artist `json:"artists"`
	Formats  []Format `json:"formats"`
	Labels   []Label  `json:"labels"`
	Genres   []string `json:"genres,omitempty"`
	Styles   []string `json:"styles,omitempty"`
}

// Artist is a credited artist.
type Artist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Format is one physical format entry of a release.
type Format struct {
	Name         string   `json:"name"`
	Qty          string   `json:"qty,omitempty"`
	Descriptions []string `json:"descriptions,omitempty"`
}

// Label is a label with its catalog number.
type Label struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	CatNo string `json:"catno"`
}

// Key returns the snapshot key for this item.
func (it Item) Key() string {
	return strconv.FormatInt(it.InstanceID, 10)
}

// Title returns the release title.
func (it Item) Title() string {
	return it.BasicInformation.Title
}

// MasterID returns the master release id, zero when the release has none.
func (it Item) MasterID() int64 {
	return it.BasicInformation.MasterID
}

// Ref returns the address used by instance-level endpoints.
func (it Item) Ref() Ref {
	return Ref{FolderID: it.FolderID, ReleaseID: it.ReleaseID, InstanceID: it.InstanceID}
}

// FieldValue returns the current annotation value for fieldID.
func (it Item) FieldValue(fieldID int) (string, bool) {
	for _, fv := range it.CustomFieldValues {
		if fv.FieldID == fieldID {
			return fv.Value, true
		}
	}
	return "", false
}

// Ref addresses a single instance in a folder.
type Ref struct {
	FolderID   int64
	ReleaseID  int64
	InstanceID int64
}

// Release is the typed subset of a release (or master) kept as detailed metadata.
type Release struct {
	ID          int64        `json:"id,omitempty"`
	Title       string       `json:"title,omitempty"`
	Year        int          `json:"year,omitempty"`
	Genres      []string     `json:"genres,omitempty"`
	Styles      []string     `json:"styles,omitempty"`
	Country     string       `json:"country,omitempty"`
	Released    string       `json:"released,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	Community   *Community   `json:"community,omitempty"`
	LowestPrice *float64     `json:"lowest_price,omitempty"`
	NumForSale  int          `json:"num_for_sale,omitempty"`
	Tracklist   []Track      `json:"tracklist,omitempty"`
	Credits     []Credit     `json:"extraartists,omitempty"`
	Identifiers []Identifier `json:"identifiers,omitempty"`
}

// Community holds the have/want counts and rating of a release.
type Community struct {
	Have   int    `json:"have,omitempty"`
	Want   int    `json:"want,omitempty"`
	Rating Rating `json:"rating"`
}

// Rating is the community rating of a release.
type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Track is one tracklist entry.
type Track struct {
	Position string `json:"position,omitempty"`
	Title    string `json:"title"`
	Duration string `json:"duration,omitempty"`
}

// Credit is an extra artist credit.
type Credit struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// Identifier is a barcode, matrix or similar identifier.
type Identifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// FieldValue is one annotation value attached to an instance.
type FieldValue struct {
	FieldID int    `json:"field_id"`
	Value   string `json:"value"`
}

// FieldType is the kind of a custom field.
type FieldType string

// Custom field types.
const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldDropdown FieldType = "dropdown"
)

// Field is a user-defined custom field.
type Field struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Options  []string  `json:"options,omitempty"`
	Position int       `json:"position"`
	Public   bool      `json:"public"`
	Lines    int       `json:"lines,omitempty"`
}

// Allows reports whether v may be written to the field.
// Only dropdown fields constrain their values.
func (f Field) Allows(v string) bool {
	if f.Type != FieldDropdown {
		return true
	}
	return slices.Contains(f.Options, v)
}

// Folder is a collection folder.
type Folder struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Snapshot is the persisted cache of a previous run.
type Snapshot struct {
	Items       map[string]Item `json:"items"`
	LastUpdated *time.Time      `json:"last_updated"`
}

// NewSnapshot returns an empty snapshot, as used on a first run.
func NewSnapshot() *Snapshot {
	return &Snapshot{Items: make(map[string]Item)}
}

// SnapshotOf builds a snapshot of items stamped with at.
func SnapshotOf(items []Item, at time.Time) *Snapshot {
	s := &Snapshot{Items: make(map[string]Item, len(items)), LastUpdated: &at}
	for _, it := range items {
		s.Items[it.Key()] = it
	}
	return s
}

// Lookup returns the cached copy of an instance.
func (s *Snapshot) Lookup(instanceID int64) (Item, bool) {
	if s == nil || s.Items == nil {
		return Item{}, false
	}
	it, ok := s.Items[strconv.FormatInt(instanceID, 10)]
	return it, ok
}

// Len returns the number of cached items.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}
