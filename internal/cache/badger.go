package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/justestif/discat/internal/collection"
)

// Key prefixes for BadgerDB storage
const (
	itemKeyPrefix  = "item:"
	lastUpdatedKey = "meta:last_updated"
)

// BadgerStore keeps one key per instance in a BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a BadgerDB at dir. An empty dir opens an
// in-memory database.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", dir, err)
	}
	return db, nil
}

// NewBadgerStore creates a BadgerDB-backed snapshot store.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Load reads every cached item. Returns (nil, nil) if nothing was saved.
func (s *BadgerStore) Load(ctx context.Context) (*collection.Snapshot, error) {
	snap := collection.NewSnapshot()
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lastUpdatedKey))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return fmt.Errorf("get last updated: %w", err)
		default:
			found = true
			if err := item.Value(func(val []byte) error {
				var ts time.Time
				if err := ts.UnmarshalText(val); err != nil {
					return err
				}
				snap.LastUpdated = &ts
				return nil
			}); err != nil {
				return fmt.Errorf("decode last updated: %w", err)
			}
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(itemKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			found = true
			var ci collection.Item
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ci)
			}); err != nil {
				return fmt.Errorf("decode item %s: %w", it.Item().Key(), err)
			}
			snap.Items[ci.Key()] = ci
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return snap, nil
}

// Save replaces the stored snapshot.
func (s *BadgerStore) Save(ctx context.Context, snap *collection.Snapshot) error {
	if snap == nil {
		return errors.New("cannot save nil snapshot")
	}
	if err := s.Clear(ctx); err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for key, ci := range snap.Items {
		data, err := json.Marshal(ci)
		if err != nil {
			return fmt.Errorf("marshal item %s: %w", key, err)
		}
		if err := wb.Set([]byte(itemKeyPrefix+key), data); err != nil {
			return fmt.Errorf("set item %s: %w", key, err)
		}
	}

	if snap.LastUpdated != nil {
		ts, err := snap.LastUpdated.MarshalText()
		if err != nil {
			return fmt.Errorf("encode last updated: %w", err)
		}
		if err := wb.Set([]byte(lastUpdatedKey), ts); err != nil {
			return fmt.Errorf("set last updated: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return nil
}

// Clear removes every cached item and the timestamp.
func (s *BadgerStore) Clear(ctx context.Context) error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(itemKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("list snapshot keys: %w", err)
	}
	keys = append(keys, []byte(lastUpdatedKey))

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("drop snapshot: %w", err)
	}
	return nil
}
