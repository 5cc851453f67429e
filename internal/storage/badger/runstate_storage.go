package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/sirvig/wheel-analyzer-sub001/internal/interfaces"
	"github.com/sirvig/wheel-analyzer-sub001/internal/models"
)

// RunStateStorage persists the single run-status record. Upsert replaces
// the record in one transaction, so readers never see a partial state.
type RunStateStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRunStateStorage creates a new RunStateStorage instance
func NewRunStateStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunStateStorage {
	return &RunStateStorage{
		db:     db,
		logger: logger,
	}
}

// SetStatus replaces the run status record
func (s *RunStateStorage) SetStatus(ctx context.Context, status *models.RunStatus) error {
	status.Key = models.RunStatusKey
	status.UpdatedAt = time.Now().UTC()

	if err := s.db.Store().Upsert(status.Key, status); err != nil {
		return fmt.Errorf("failed to save run status: %w", err)
	}
	return nil
}

// GetStatus returns the current run status. A store that has never run
// reports Idle.
func (s *RunStateStorage) GetStatus(ctx context.Context) (*models.RunStatus, error) {
	var status models.RunStatus
	err := s.db.Store().Get(models.RunStatusKey, &status)
	if err == badgerhold.ErrNotFound {
		return &models.RunStatus{Key: models.RunStatusKey, State: models.RunStateIdle}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run status: %w", err)
	}
	return &status, nil
}

// Ensure RunStateStorage implements the interface
var _ interfaces.RunStateStorage = (*RunStateStorage)(nil)
