package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// Scheduler runs refresh runs on a cron schedule in daemon mode. A mutex
// guarantees that overlapping triggers never produce concurrent runs within
// this process; cross-process exclusivity stays the operator's problem.
type Scheduler struct {
	orchestrator *Orchestrator
	cron         *cron.Cron
	logger       arbor.ILogger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a refresh scheduler.
func NewScheduler(orchestrator *Orchestrator, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		orchestrator: orchestrator,
		cron:         cron.New(cron.WithSeconds()),
		logger:       logger,
	}
}

// Start begins scheduled refresh runs.
func (s *Scheduler) Start(schedule string, opts Options) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.runOnce(opts)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Msg("Refresh scheduler started")

	return nil
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Refresh scheduler stopped")
}

func (s *Scheduler) runOnce(opts Options) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn().Msg("Previous refresh run still in progress, skipping this trigger")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	s.logger.Info().Msg("Starting scheduled refresh run")

	summary, err := s.orchestrator.Run(ctx, opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled refresh run failed")
		return
	}

	s.logger.Info().
		Int("selected", summary.Selected).
		Int("api_calls", summary.Usage.APICallsMade).
		Int("cache_hits", summary.Usage.CacheHits).
		Msg("Scheduled refresh run completed")
}
