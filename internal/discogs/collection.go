package discogs

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/justestif/discat/internal/collection"
)

// FetchCollection pages through every item in the "All" folder.
// Pages are paced by the client's page gate.
func (c *Client) FetchCollection(ctx context.Context) ([]collection.Item, error) {
	var items []collection.Item

	for page := 1; ; page++ {
		if err := c.pageGate.Wait(ctx); err != nil {
			return nil, err
		}

		query := url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(perPage)},
		}

		var resp collectionPage
		if err := c.get(ctx, c.userPath("/collection/folders/0/releases"), query, &resp); err != nil {
			return nil, fmt.Errorf("fetching collection page %d: %w", page, err)
		}

		if len(resp.Releases) == 0 {
			break
		}
		items = append(items, resp.Releases...)

		c.logger.Debug().
			Int("page", page).
			Int("pages", resp.Pagination.Pages).
			Int("items", len(items)).
			Msg("fetched collection page")

		if page >= max(resp.Pagination.Pages, 1) {
			break
		}
	}

	c.logger.Info().Int("items", len(items)).Msg("downloaded collection")
	return items, nil
}

// Folders lists the collection folders.
func (c *Client) Folders(ctx context.Context) ([]collection.Folder, error) {
	var resp foldersResponse
	if err := c.get(ctx, c.userPath("/collection/folders"), nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching folders: %w", err)
	}
	return resp.Folders, nil
}

// Fields lists the custom field definitions.
func (c *Client) Fields(ctx context.Context) ([]collection.Field, error) {
	var resp fieldsResponse
	if err := c.get(ctx, c.userPath("/collection/fields"), nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching fields: %w", err)
	}
	return resp.Fields, nil
}

// InstanceFields returns the annotation values of one instance.
// The result is never nil on success.
func (c *Client) InstanceFields(ctx context.Context, ref collection.Ref) ([]collection.FieldValue, error) {
	var resp instanceResponse
	if err := c.get(ctx, instancePath(c, ref), nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching instance %d: %w", ref.InstanceID, err)
	}
	if resp.Notes == nil {
		return []collection.FieldValue{}, nil
	}
	return resp.Notes, nil
}

// Release fetches detailed metadata for a release.
func (c *Client) Release(ctx context.Context, id int64) (*collection.Release, error) {
	var rel collection.Release
	if err := c.get(ctx, "/releases/"+strconv.FormatInt(id, 10), nil, &rel); err != nil {
		return nil, fmt.Errorf("fetching release %d: %w", id, err)
	}
	return &rel, nil
}

// Master fetches a master release, used as a substitute for missing releases.
func (c *Client) Master(ctx context.Context, id int64) (*collection.Release, error) {
	var rel collection.Release
	if err := c.get(ctx, "/masters/"+strconv.FormatInt(id, 10), nil, &rel); err != nil {
		return nil, fmt.Errorf("fetching master %d: %w", id, err)
	}
	return &rel, nil
}

func instancePath(c *Client, ref collection.Ref) string {
	return c.userPath("/collection/folders/%d/releases/%d/instances/%d",
		ref.FolderID, ref.ReleaseID, ref.InstanceID)
}
