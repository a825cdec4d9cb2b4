// Package plan computes previewable write-back plans. Planning never
// mutates the remote collection; execution lives in package execute.
package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/justestif/discat/internal/collection"
)

// Sentinel errors.
var (
	// ErrFieldNotFound is returned when no custom field has the requested name.
	ErrFieldNotFound = errors.New("custom field not found")

	// ErrFolderNotFound is returned when no folder has the requested name.
	ErrFolderNotFound = errors.New("folder not found")
)

// Extractor derives a proposed value from an item. ok is false when the
// item has nothing to propose.
type Extractor interface {
	Extract(it collection.Item) (value string, ok bool)
}

// Options tune a field sync plan.
type Options struct {
	// SkipIfHasValue leaves items that already have a non-empty value alone.
	SkipIfHasValue bool
	// Filter, when non-empty, keeps only items whose proposed value equals it.
	Filter string
}

// Change is one pending field write.
type Change struct {
	Title      string `json:"title"`
	Current    string `json:"current"`
	Proposed   string `json:"proposed"`
	FieldID    int    `json:"field_id"`
	FolderID   int64  `json:"folder_id"`
	ReleaseID  int64  `json:"release_id"`
	InstanceID int64  `json:"instance_id"`
}

// Ref returns the instance address of the change.
func (c Change) Ref() collection.Ref {
	return collection.Ref{FolderID: c.FolderID, ReleaseID: c.ReleaseID, InstanceID: c.InstanceID}
}

// ValidationError is a proposed value a dropdown field does not allow.
type ValidationError struct {
	Title      string `json:"title"`
	Value      string `json:"value"`
	InstanceID int64  `json:"instance_id"`
}

// Skip is an item left alone because it already has a value.
type Skip struct {
	Title      string `json:"title"`
	Current    string `json:"current"`
	InstanceID int64  `json:"instance_id"`
}

// SyncPlan is the outcome of planning a field sync. It is not modified by
// execution.
type SyncPlan struct {
	FieldID          int                  `json:"field_id"`
	FieldName        string               `json:"field_name"`
	FieldType        collection.FieldType `json:"field_type"`
	FieldOptions     []string             `json:"field_options,omitempty"`
	Changes          []Change             `json:"changes"`
	ValidationErrors []ValidationError    `json:"validation_errors"`
	Skipped          []Skip               `json:"skipped"`
	FilteredOut      int                  `json:"filtered_out"`
}

// Ready reports whether the plan may be executed. A plan with validation
// errors runs only when the operator accepts skipping those items.
func (p *SyncPlan) Ready(ignoreValidation bool) bool {
	if len(p.Changes) == 0 {
		return false
	}
	return len(p.ValidationErrors) == 0 || ignoreValidation
}

// Build computes the sync plan for field over items. It is a pure function;
// every list follows the order of items.
func Build(items []collection.Item, field collection.Field, ex Extractor, opts Options) *SyncPlan {
	p := &SyncPlan{
		FieldID:          field.ID,
		FieldName:        field.Name,
		FieldType:        field.Type,
		FieldOptions:     field.Options,
		Changes:          []Change{},
		ValidationErrors: []ValidationError{},
		Skipped:          []Skip{},
	}

	for _, it := range items {
		proposed, ok := ex.Extract(it)
		if !ok || proposed == "" {
			continue
		}

		if opts.Filter != "" && proposed != opts.Filter {
			p.FilteredOut++
			continue
		}

		if !field.Allows(proposed) {
			p.ValidationErrors = append(p.ValidationErrors, ValidationError{
				Title:      it.Title(),
				Value:      proposed,
				InstanceID: it.InstanceID,
			})
			continue
		}

		current, _ := it.FieldValue(field.ID)
		if opts.SkipIfHasValue && current != "" {
			p.Skipped = append(p.Skipped, Skip{Title: it.Title(), Current: current, InstanceID: it.InstanceID})
			continue
		}

		if proposed == current {
			continue
		}
		p.Changes = append(p.Changes, Change{
			Title:      it.Title(),
			Current:    current,
			Proposed:   proposed,
			FieldID:    field.ID,
			FolderID:   it.FolderID,
			ReleaseID:  it.ReleaseID,
			InstanceID: it.InstanceID,
		})
	}
	return p
}

// FindField resolves a field by exact, case-sensitive name.
func FindField(fields []collection.Field, name string) (collection.Field, error) {
	for _, f := range fields {
		if f.Name == name {
			return f, nil
		}
	}
	available := make([]string, len(fields))
	for i, f := range fields {
		available[i] = f.Name
	}
	return collection.Field{}, fmt.Errorf("%w: %q (available: %s)", ErrFieldNotFound, name, strings.Join(available, ", "))
}

// Catalog lists the live field and folder definitions.
type Catalog interface {
	Fields(ctx context.Context) ([]collection.Field, error)
	Folders(ctx context.Context) ([]collection.Folder, error)
}

// Planner resolves names against the live catalog and builds plans.
type Planner struct {
	catalog Catalog
}

// NewPlanner creates a Planner.
func NewPlanner(catalog Catalog) *Planner {
	return &Planner{catalog: catalog}
}

// Plan resolves fieldName and builds a sync plan. A missing field returns
// ErrFieldNotFound before any plan is produced.
func (pl *Planner) Plan(ctx context.Context, items []collection.Item, fieldName string, ex Extractor, opts Options) (*SyncPlan, error) {
	fields, err := pl.catalog.Fields(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing fields: %w", err)
	}
	field, err := FindField(fields, fieldName)
	if err != nil {
		return nil, err
	}
	return Build(items, field, ex, opts), nil
}

// PlanFolder resolves folderName and builds a folder reassignment plan.
func (pl *Planner) PlanFolder(ctx context.Context, items []collection.Item, folderName string, ex Extractor) (*FolderPlan, error) {
	folders, err := pl.catalog.Folders(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	return BuildFolderPlan(items, folders, folderName, ex)
}
