// Package scheduler decides which curated entities a refresh run processes,
// in order, under the provider's daily call budget.
package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/sirvig/wheel-analyzer-sub001/internal/common"
	"github.com/sirvig/wheel-analyzer-sub001/internal/interfaces"
	"github.com/sirvig/wheel-analyzer-sub001/internal/models"
)

// Service implements the selection scheduler.
type Service struct {
	entities interfaces.EntityStorage
	config   *common.ProviderConfig
	logger   arbor.ILogger
}

// NewService creates a new scheduler service.
func NewService(entities interfaces.EntityStorage, config *common.ProviderConfig, logger arbor.ILogger) *Service {
	return &Service{
		entities: entities,
		config:   config,
		logger:   logger,
	}
}

// Select returns the ordered entity list for this run.
//
// Explicit symbols win over everything else: matching entities are returned
// in symbol order whether active or not, with a warning for inactive ones.
// forceAll returns the entire active universe in symbol order, warning when
// that would exceed the daily quota. The default partitions active entities
// into never-refreshed (by symbol) followed by previously-refreshed (oldest
// first), truncated to limit, so unvalued entities always go first and
// staleness shrinks run over run.
func (s *Service) Select(ctx context.Context, limit int, forceAll bool, explicitSymbols []string) ([]*models.CuratedEntity, error) {
	if len(explicitSymbols) > 0 {
		return s.selectExplicit(ctx, explicitSymbols)
	}

	active, err := s.entities.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active entities: %w", err)
	}

	if forceAll {
		s.warnIfOverQuota(len(active))
		return active, nil
	}

	ordered := orderByStaleness(active)
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered, nil
}

// selectExplicit returns the requested symbols regardless of active flag,
// limit, or forceAll.
func (s *Service) selectExplicit(ctx context.Context, symbols []string) ([]*models.CuratedEntity, error) {
	entities, err := s.entities.FindBySymbols(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to find entities by symbol: %w", err)
	}

	for _, entity := range entities {
		if !entity.Active {
			s.logger.Warn().
				Str("symbol", entity.Symbol).
				Msg("Explicitly requested entity is inactive")
		}
	}
	return entities, nil
}

// warnIfOverQuota emits a non-fatal warning when a force-all run would
// exceed the provider's daily budget.
func (s *Service) warnIfOverQuota(count int) {
	needed := count * s.config.CallsPerEntity
	if needed > s.config.DailyQuota {
		s.logger.Warn().
			Int("entities", count).
			Int("calls_needed", needed).
			Int("daily_quota", s.config.DailyQuota).
			Msg("Force-all run exceeds the provider daily quota; later entities may fail")
	}
}

// RemainingWork reports never-valued versus previously-valued counts for
// the active universe.
func (s *Service) RemainingWork(ctx context.Context) (models.RemainingWork, error) {
	total, err := s.entities.CountActive(ctx)
	if err != nil {
		return models.RemainingWork{}, err
	}
	never, err := s.entities.CountNeverRefreshed(ctx)
	if err != nil {
		return models.RemainingWork{}, err
	}

	return models.RemainingWork{
		NeverValued:      never,
		PreviouslyValued: total - never,
		TotalActive:      total,
	}, nil
}

// orderByStaleness partitions entities into never-refreshed (symbol order)
// followed by previously-refreshed (LastRefreshedAt ascending, then symbol).
func orderByStaleness(entities []*models.CuratedEntity) []*models.CuratedEntity {
	var never, refreshed []*models.CuratedEntity
	for _, e := range entities {
		if e.LastRefreshedAt == nil {
			never = append(never, e)
		} else {
			refreshed = append(refreshed, e)
		}
	}

	sort.Slice(never, func(i, j int) bool {
		return never[i].Symbol < never[j].Symbol
	})
	sort.Slice(refreshed, func(i, j int) bool {
		if !refreshed[i].LastRefreshedAt.Equal(*refreshed[j].LastRefreshedAt) {
			return refreshed[i].LastRefreshedAt.Before(*refreshed[j].LastRefreshedAt)
		}
		return refreshed[i].Symbol < refreshed[j].Symbol
	})

	return append(never, refreshed...)
}

// Ensure Service implements the SchedulerService interface
var _ interfaces.SchedulerService = (*Service)(nil)
