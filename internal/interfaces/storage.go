package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/sirvig/wheel-analyzer-sub001/internal/models"
)

// ErrEntityNotFound is returned when a symbol does not exist in the store.
var ErrEntityNotFound = errors.New("entity not found")

// ErrCacheMiss is returned by CacheStorage.Get when no live entry exists
// for the key. Expired entries report as misses.
var ErrCacheMiss = errors.New("cache miss")

// EntityStorage persists the curated entity universe. Transactional
// semantics are the store's responsibility; callers treat Save as atomic
// per entity.
type EntityStorage interface {
	// ListActive returns all active entities ordered by symbol.
	ListActive(ctx context.Context) ([]*models.CuratedEntity, error)

	// FindBySymbols returns entities matching the given symbols, active or
	// not, ordered by symbol. Unknown symbols are simply absent from the
	// result.
	FindBySymbols(ctx context.Context, symbols []string) ([]*models.CuratedEntity, error)

	// Get returns one entity or ErrEntityNotFound.
	Get(ctx context.Context, symbol string) (*models.CuratedEntity, error)

	// Save inserts or replaces an entity keyed by symbol.
	Save(ctx context.Context, entity *models.CuratedEntity) error

	// CountNeverRefreshed returns the number of active entities whose
	// LastRefreshedAt is nil.
	CountNeverRefreshed(ctx context.Context) (int, error)

	// CountActive returns the number of active entities.
	CountActive(ctx context.Context) (int, error)
}

// CacheStorage is a key to opaque-payload store with per-entry TTL.
// Entries expire automatically and are overwritten on write. The store is
// safe for concurrent cross-process readers; per-key atomicity is the
// store's own guarantee.
type CacheStorage interface {
	// Get returns the live payload for key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes payload under key with the given TTL, replacing any
	// existing entry.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error

	// Clear removes all entries whose key starts with prefix. An empty
	// prefix clears every entry. Returns the number of entries removed.
	Clear(ctx context.Context, prefix string) (int, error)
}

// RunStateStorage persists the explicit run status record. SetStatus
// replaces the record atomically; readers never observe a partial update.
type RunStateStorage interface {
	SetStatus(ctx context.Context, status *models.RunStatus) error
	GetStatus(ctx context.Context) (*models.RunStatus, error)
}
