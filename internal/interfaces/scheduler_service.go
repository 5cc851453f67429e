package interfaces

import (
	"context"

	"github.com/sirvig/wheel-analyzer-sub001/internal/models"
)

// SchedulerService decides which entities a refresh run processes, in order,
// under the external call budget.
type SchedulerService interface {
	// Select returns the ordered entity list for this run. When
	// explicitSymbols is non-empty it wins and limit/forceAll are ignored.
	// forceAll returns the whole active universe. Otherwise never-refreshed
	// entities come first (by symbol), then previously-refreshed ones by
	// ascending staleness, truncated to limit.
	Select(ctx context.Context, limit int, forceAll bool, explicitSymbols []string) ([]*models.CuratedEntity, error)

	// RemainingWork reports how much of the active universe has never been
	// valued versus previously valued.
	RemainingWork(ctx context.Context) (models.RemainingWork, error)
}
