package badger

import (
	"context"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/sirvig/wheel-analyzer-sub001/internal/interfaces"
)

// cacheKeyPrefix namespaces response-cache entries so they can coexist with
// badgerhold records in the same database.
const cacheKeyPrefix = "cache:"

// CacheStorage implements the CacheStorage interface on raw Badger.
// Entries are written with a native TTL so they can never outlive it; Badger
// treats expired keys as absent on read. Per-key atomicity comes from Badger
// transactions, so concurrent cross-process readers are safe without extra
// locking.
type CacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCacheStorage creates a new CacheStorage instance
func NewCacheStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CacheStorage {
	return &CacheStorage{
		db:     db,
		logger: logger,
	}
}

// Get returns the live payload for key, or ErrCacheMiss
func (s *CacheStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.db.Badger().View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(cacheKeyPrefix + key))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if err == badgerdb.ErrKeyNotFound {
		return nil, interfaces.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return payload, nil
}

// Set writes payload under key with the given TTL, replacing any existing
// entry
func (s *CacheStorage) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	err := s.db.Badger().Update(func(txn *badgerdb.Txn) error {
		entry := badgerdb.NewEntry([]byte(cacheKeyPrefix+key), payload).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Clear removes all entries whose key starts with prefix. An empty prefix
// clears every cache entry.
func (s *CacheStorage) Clear(ctx context.Context, prefix string) (int, error) {
	fullPrefix := []byte(cacheKeyPrefix + prefix)

	// Collect keys first; deleting inside an iterator invalidates it.
	var keys [][]byte
	err := s.db.Badger().View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(fullPrefix); it.ValidForPrefix(fullPrefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan cache entries: %w", err)
	}

	deleted := 0
	for _, key := range keys {
		err := s.db.Badger().Update(func(txn *badgerdb.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("key", string(key)).Msg("Failed to delete cache entry")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Info().Int("count", deleted).Str("prefix", prefix).Msg("Cleared cache entries")
	}
	return deleted, nil
}

// Ensure CacheStorage implements the interface
var _ interfaces.CacheStorage = (*CacheStorage)(nil)
