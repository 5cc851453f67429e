package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/sirvig/wheel-analyzer-sub001/internal/interfaces"
	"github.com/sirvig/wheel-analyzer-sub001/internal/models"
)

// EntityStorage implements the EntityStorage interface for Badger
type EntityStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewEntityStorage creates a new EntityStorage instance
func NewEntityStorage(db *BadgerDB, logger arbor.ILogger) interfaces.EntityStorage {
	return &EntityStorage{
		db:     db,
		logger: logger,
	}
}

// ListActive returns all active entities ordered by symbol
func (s *EntityStorage) ListActive(ctx context.Context) ([]*models.CuratedEntity, error) {
	var entities []*models.CuratedEntity
	err := s.db.Store().Find(&entities, badgerhold.Where("Active").Eq(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list active entities: %w", err)
	}

	sort.Slice(entities, func(i, j int) bool {
		return entities[i].Symbol < entities[j].Symbol
	})

	return entities, nil
}

// FindBySymbols returns entities matching the given symbols, active or not,
// ordered by symbol
func (s *EntityStorage) FindBySymbols(ctx context.Context, symbols []string) ([]*models.CuratedEntity, error) {
	normalized := models.NormalizeSymbols(symbols)

	entities := make([]*models.CuratedEntity, 0, len(normalized))
	for _, symbol := range normalized {
		var entity models.CuratedEntity
		err := s.db.Store().Get(symbol, &entity)
		if err == badgerhold.ErrNotFound {
			s.logger.Warn().Str("symbol", symbol).Msg("Symbol not found in curated universe")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up symbol %s: %w", symbol, err)
		}
		entities = append(entities, &entity)
	}

	sort.Slice(entities, func(i, j int) bool {
		return entities[i].Symbol < entities[j].Symbol
	})

	return entities, nil
}

// Get returns one entity or ErrEntityNotFound
func (s *EntityStorage) Get(ctx context.Context, symbol string) (*models.CuratedEntity, error) {
	var entity models.CuratedEntity
	err := s.db.Store().Get(models.NormalizeSymbol(symbol), &entity)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return &entity, nil
}

// Save inserts or replaces an entity keyed by symbol
func (s *EntityStorage) Save(ctx context.Context, entity *models.CuratedEntity) error {
	entity.Symbol = models.NormalizeSymbol(entity.Symbol)
	entity.UpdatedAt = time.Now().UTC()

	if err := s.db.Store().Upsert(entity.Symbol, entity); err != nil {
		return fmt.Errorf("failed to save entity %s: %w", entity.Symbol, err)
	}
	return nil
}

// CountNeverRefreshed returns the number of active entities that have never
// been refreshed
func (s *EntityStorage) CountNeverRefreshed(ctx context.Context) (int, error) {
	var entities []*models.CuratedEntity
	err := s.db.Store().Find(&entities, badgerhold.Where("Active").Eq(true))
	if err != nil {
		return 0, fmt.Errorf("failed to count never-refreshed entities: %w", err)
	}

	count := 0
	for _, e := range entities {
		if e.LastRefreshedAt == nil {
			count++
		}
	}
	return count, nil
}

// CountActive returns the number of active entities
func (s *EntityStorage) CountActive(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.CuratedEntity{}, badgerhold.Where("Active").Eq(true))
	if err != nil {
		return 0, fmt.Errorf("failed to count active entities: %w", err)
	}
	return int(count), nil
}

// Ensure EntityStorage implements the interface
var _ interfaces.EntityStorage = (*EntityStorage)(nil)
