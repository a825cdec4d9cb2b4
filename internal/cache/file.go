package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/justestif/discat/internal/collection"
)

// Default file names inside the output directory.
const (
	SnapshotFileName   = "discogs_cache.json"
	CollectionFileName = "discogs_collection_full.json"
)

// FileStore keeps the snapshot in a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the snapshot file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the snapshot from disk.
// Returns (nil, nil) if the file does not exist.
func (s *FileStore) Load(ctx context.Context) (*collection.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache file: %w", err)
	}

	var snap collection.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing cache file: %w", err)
	}
	if snap.Items == nil {
		snap.Items = make(map[string]collection.Item)
	}
	return &snap, nil
}

// Save writes the snapshot, replacing any previous file atomically.
func (s *FileStore) Save(ctx context.Context, snap *collection.Snapshot) error {
	if snap == nil {
		return errors.New("cannot save nil snapshot")
	}
	return writeJSON(s.path, snap)
}

// Clear removes the snapshot file.
// Returns nil if the file does not exist.
func (s *FileStore) Clear(ctx context.Context) error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing cache file: %w", err)
	}
	return nil
}

// CollectionFile holds the latest full collection as a JSON array.
type CollectionFile struct {
	path string
}

// NewCollectionFile creates a CollectionFile at path.
func NewCollectionFile(path string) *CollectionFile {
	return &CollectionFile{path: path}
}

// Path returns the collection file path.
func (f *CollectionFile) Path() string {
	return f.path
}

// Load reads the collection. Returns ErrNoCollection if the file is missing.
func (f *CollectionFile) Load() ([]collection.Item, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w (%s)", ErrNoCollection, f.path)
		}
		return nil, fmt.Errorf("reading collection file: %w", err)
	}

	var items []collection.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing collection file: %w", err)
	}
	return items, nil
}

// Save writes the collection.
func (f *CollectionFile) Save(items []collection.Item) error {
	if items == nil {
		items = []collection.Item{}
	}
	return writeJSON(f.path, items)
}

// writeJSON writes v to a temp file next to path and renames it into place,
// so readers never observe a partial write.
func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
