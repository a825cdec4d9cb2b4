package discogs

import (
	"context"
	"fmt"
	"net/http"

	"github.com/justestif/discat/internal/collection"
)

// UpdateField writes one annotation value on an instance.
func (c *Client) UpdateField(ctx context.Context, ref collection.Ref, fieldID int, value string) error {
	path := instancePath(c, ref) + fmt.Sprintf("/fields/%d", fieldID)
	if err := c.Do(ctx, http.MethodPost, path, nil, valueRequest{Value: value}, nil); err != nil {
		return fmt.Errorf("updating field %d on instance %d: %w", fieldID, ref.InstanceID, err)
	}
	return nil
}

// MoveInstance reassigns an instance from ref.FolderID to folderID.
func (c *Client) MoveInstance(ctx context.Context, ref collection.Ref, folderID int64) error {
	if err := c.Do(ctx, http.MethodPost, instancePath(c, ref), nil, moveRequest{FolderID: folderID}, nil); err != nil {
		return fmt.Errorf("moving instance %d to folder %d: %w", ref.InstanceID, folderID, err)
	}
	return nil
}

// CreateFolder creates a collection folder.
func (c *Client) CreateFolder(ctx context.Context, name string) (*collection.Folder, error) {
	var f collection.Folder
	if err := c.Do(ctx, http.MethodPost, c.userPath("/collection/folders"), nil, folderRequest{Name: name}, &f); err != nil {
		return nil, fmt.Errorf("creating folder %q: %w", name, err)
	}
	return &f, nil
}

// RenameFolder renames a collection folder.
func (c *Client) RenameFolder(ctx context.Context, id int64, name string) (*collection.Folder, error) {
	var f collection.Folder
	if err := c.Do(ctx, http.MethodPost, c.userPath("/collection/folders/%d", id), nil, folderRequest{Name: name}, &f); err != nil {
		return nil, fmt.Errorf("renaming folder %d: %w", id, err)
	}
	return &f, nil
}

// DeleteFolder deletes an empty collection folder.
func (c *Client) DeleteFolder(ctx context.Context, id int64) error {
	if err := c.Do(ctx, http.MethodDelete, c.userPath("/collection/folders/%d", id), nil, nil, nil); err != nil {
		return fmt.Errorf("deleting folder %d: %w", id, err)
	}
	return nil
}

// CreateField creates a custom field.
func (c *Client) CreateField(ctx context.Context, spec FieldSpec) (*collection.Field, error) {
	if spec.Type == "" {
		spec.Type = collection.FieldText
	}
	var f collection.Field
	if err := c.Do(ctx, http.MethodPost, c.userPath("/collection/fields"), nil, spec, &f); err != nil {
		return nil, fmt.Errorf("creating field %q: %w", spec.Name, err)
	}
	return &f, nil
}

// DeleteField deletes a custom field and every value stored in it.
func (c *Client) DeleteField(ctx context.Context, id int) error {
	if err := c.Do(ctx, http.MethodDelete, c.userPath("/collection/fields/%d", id), nil, nil, nil); err != nil {
		return fmt.Errorf("deleting field %d: %w", id, err)
	}
	return nil
}

// ReorderFields assigns positions 1..n to the given field ids in order.
func (c *Client) ReorderFields(ctx context.Context, ids []int) error {
	req := reorderRequest{Fields: make([]fieldPosition, len(ids))}
	for i, id := range ids {
		req.Fields[i] = fieldPosition{ID: id, Position: i + 1}
	}
	if err := c.Do(ctx, http.MethodPut, c.userPath("/collection/fields"), nil, req, nil); err != nil {
		return fmt.Errorf("reordering fields: %w", err)
	}
	return nil
}
