// Package refresh drives the select → fetch → validate → compute → persist
// → report pipeline for one run. Per-entity and per-method failures are
// isolated; only failure to obtain the entity list or reach the record
// store aborts a run.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/arbor"

	"github.com/sirvig/wheel-analyzer-sub001/internal/common"
	"github.com/sirvig/wheel-analyzer-sub001/internal/fundamentals"
	"github.com/sirvig/wheel-analyzer-sub001/internal/interfaces"
	"github.com/sirvig/wheel-analyzer-sub001/internal/models"
	"github.com/sirvig/wheel-analyzer-sub001/internal/services/fetch"
	"github.com/sirvig/wheel-analyzer-sub001/internal/services/report"
	"github.com/sirvig/wheel-analyzer-sub001/internal/services/valuation"
)

// Options controls one refresh run.
type Options struct {
	// Symbols, when non-empty, selects exactly these entities.
	Symbols []string
	// Limit caps the default selection. Zero falls back to the configured
	// default.
	Limit int
	// ForceAll selects the whole active universe.
	ForceAll bool
	// ForceRefresh bypasses the response cache.
	ForceRefresh bool
}

// Orchestrator owns the per-run state machine. One orchestrator instance
// executes one run at a time; run-level mutual exclusion across processes
// is the caller's responsibility.
type Orchestrator struct {
	entities interfaces.EntityStorage
	runState interfaces.RunStateStorage
	selector interfaces.SchedulerService
	client   interfaces.MarketDataClient
	cache    interfaces.CacheStorage
	reporter *report.Service
	config   *common.Config
	logger   arbor.ILogger

	// pace is the fixed inter-entity delay, the run's sole deliberate
	// suspension point.
	pace time.Duration
	ttl  time.Duration
}

// NewOrchestrator creates a refresh orchestrator.
func NewOrchestrator(
	entities interfaces.EntityStorage,
	runState interfaces.RunStateStorage,
	selector interfaces.SchedulerService,
	client interfaces.MarketDataClient,
	cache interfaces.CacheStorage,
	reporter *report.Service,
	config *common.Config,
	logger arbor.ILogger,
) (*Orchestrator, error) {
	pace, err := config.RefreshPace()
	if err != nil {
		return nil, fmt.Errorf("invalid refresh pace: %w", err)
	}
	ttl, err := config.CacheTTL()
	if err != nil {
		return nil, fmt.Errorf("invalid cache TTL: %w", err)
	}

	return &Orchestrator{
		entities: entities,
		runState: runState,
		selector: selector,
		client:   client,
		cache:    cache,
		reporter: reporter,
		config:   config,
		logger:   logger,
		pace:     pace,
		ttl:      ttl,
	}, nil
}

// Run executes one refresh run and returns its summary. The summary is
// produced even when every entity failed; the returned error is non-nil
// only for run-fatal conditions (entity list unobtainable, record store
// unreachable, cancellation).
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*models.RunSummary, error) {
	run := fetch.NewRunContext()
	fetcher := fetch.NewService(o.client, o.cache, run, o.ttl, o.logger)

	o.setStatus(ctx, &models.RunStatus{
		RunID: run.RunID,
		State: models.RunStateRunning,
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = o.config.Refresh.Limit
	}

	selected, err := o.selector.Select(ctx, limit, opts.ForceAll, opts.Symbols)
	if err != nil {
		o.setStatus(ctx, &models.RunStatus{
			RunID:  run.RunID,
			State:  models.RunStateFailed,
			Reason: fmt.Sprintf("selection failed: %v", err),
		})
		return nil, fmt.Errorf("failed to select entities: %w", err)
	}

	o.logger.Info().
		Str("run_id", run.RunID).
		Int("selected", len(selected)).
		Bool("force_refresh", opts.ForceRefresh).
		Msg("Starting refresh run")

	var outcomes []models.MethodOutcome
	canceled := false

	for i, entity := range selected {
		if i > 0 {
			// Pace provider calls under the per-minute ceiling. This is
			// the only suspension point inside the run.
			select {
			case <-time.After(o.pace):
			case <-ctx.Done():
				canceled = true
			}
		}
		if ctx.Err() != nil {
			canceled = true
		}
		if canceled {
			break
		}

		outcomes = append(outcomes, o.processEntity(ctx, fetcher, entity, opts.ForceRefresh)...)

		o.setStatus(ctx, &models.RunStatus{
			RunID:       run.RunID,
			State:       models.RunStateRunning,
			ProgressPct: (i + 1) * 100 / len(selected),
		})
	}

	remaining, err := o.selector.RemainingWork(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Failed to compute remaining work for summary")
	}

	summary := o.reporter.BuildSummary(run.RunID, run.StartedAt, len(selected), outcomes, run.Usage(), remaining)

	if canceled {
		o.setStatus(ctx, &models.RunStatus{
			RunID:   run.RunID,
			State:   models.RunStateFailed,
			Reason:  "run canceled",
			Summary: summary,
		})
		return summary, ctx.Err()
	}

	o.setStatus(ctx, &models.RunStatus{
		RunID:       run.RunID,
		State:       models.RunStateCompleted,
		ProgressPct: 100,
		Summary:     summary,
	})

	o.logger.Info().
		Str("run_id", run.RunID).
		Int("api_calls", summary.Usage.APICallsMade).
		Int("cache_hits", summary.Usage.CacheHits).
		Msg("Refresh run completed")

	return summary, nil
}

// processEntity runs both method pipelines for one entity. The pipelines
// are fully isolated: a failure in one never aborts the other or the run.
// Both results commit through a single save, so a cancelled run never
// leaves a half-updated entity.
func (o *Orchestrator) processEntity(ctx context.Context, fetcher *fetch.Service, entity *models.CuratedEntity, forceRefresh bool) []models.MethodOutcome {
	inputs := o.fetchInputs(ctx, fetcher, entity.Symbol, forceRefresh)

	outcomes := make([]models.MethodOutcome, 0, 2)
	succeeded := false

	for _, method := range models.Methods() {
		outcome := o.runMethod(entity, method, inputs)
		if outcome.Kind == models.OutcomeSuccess {
			entity.SetIntrinsicValue(method, *outcome.After)
			succeeded = true
		}
		outcomes = append(outcomes, outcome)
	}

	if succeeded {
		now := time.Now().UTC()
		entity.LastRefreshedAt = &now
		if err := o.entities.Save(ctx, entity); err != nil {
			o.logger.Error().Err(err).
				Str("symbol", entity.Symbol).
				Msg("Failed to persist refreshed entity")
			// Nothing was committed; downgrade the successes.
			for i := range outcomes {
				if outcomes[i].Kind == models.OutcomeSuccess {
					outcomes[i] = models.MethodOutcome{
						Symbol: outcomes[i].Symbol,
						Method: outcomes[i].Method,
						Kind:   models.OutcomeError,
						Reason: fmt.Sprintf("persist failed: %v", err),
					}
				}
			}
		}
	}

	return outcomes
}

// entityInputs carries the fetched datasets one entity's method pipelines
// share. Each dataset is fetched at most once per entity.
type entityInputs struct {
	overview    *fundamentals.Overview
	overviewErr error
	quarters    []valuation.Quarter
	quartersErr error
}

func (o *Orchestrator) fetchInputs(ctx context.Context, fetcher *fetch.Service, symbol string, forceRefresh bool) *entityInputs {
	inputs := &entityInputs{}

	payload, _, err := fetcher.Fetch(ctx, fundamentals.FunctionOverview, symbol, nil, forceRefresh)
	if err != nil {
		inputs.overviewErr = err
	} else {
		inputs.overview, inputs.overviewErr = fundamentals.ParseOverview(payload)
	}

	payload, _, err = fetcher.Fetch(ctx, fundamentals.FunctionCashFlow, symbol, nil, forceRefresh)
	if err != nil {
		inputs.quartersErr = err
	} else {
		inputs.quarters, inputs.quartersErr = fundamentals.ParseQuarterlyCashFlows(payload)
	}

	return inputs
}

// runMethod executes one method pipeline, isolating panics and classifying
// every failure as either skipped or error.
func (o *Orchestrator) runMethod(entity *models.CuratedEntity, method models.Method, inputs *entityInputs) (outcome models.MethodOutcome) {
	before := entity.IntrinsicValueFor(method)

	outcome = models.MethodOutcome{
		Symbol: entity.Symbol,
		Method: method,
		Before: before,
		IsNew:  before == nil,
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().
				Str("symbol", entity.Symbol).
				Str("method", string(method)).
				Msg(fmt.Sprintf("Method pipeline panicked: %v", r))
			outcome.Kind = models.OutcomeError
			outcome.Reason = fmt.Sprintf("panic: %v", r)
			outcome.After = nil
		}
	}()

	result, err := o.compute(entity, method, inputs)
	if err != nil {
		outcome.Kind, outcome.Reason = classify(err)
		o.logMethodFailure(entity.Symbol, method, outcome.Kind, err)
		return outcome
	}

	value := result.IntrinsicValue
	outcome.Kind = models.OutcomeSuccess
	outcome.After = &value
	return outcome
}

// compute derives the method's current per-share figure and runs the DCF.
// Each method depends only on the fields it reads: a missing EPS never
// blocks the FCF pipeline, and vice versa.
func (o *Orchestrator) compute(entity *models.CuratedEntity, method models.Method, inputs *entityInputs) (*models.ValuationResult, error) {
	switch method {
	case models.MethodEPS:
		if inputs.overviewErr != nil {
			return nil, inputs.overviewErr
		}
		if inputs.overview.EPSErr != nil {
			return nil, inputs.overview.EPSErr
		}
		return valuation.IntrinsicValueWith(inputs.overview.EPS, entity.AssumptionsFor(method))

	case models.MethodFCF:
		if inputs.quartersErr != nil {
			return nil, inputs.quartersErr
		}
		if inputs.overviewErr != nil {
			return nil, inputs.overviewErr
		}
		if inputs.overview.SharesErr != nil {
			return nil, inputs.overview.SharesErr
		}
		fcfps, err := valuation.FCFPerShare(inputs.quarters, inputs.overview.SharesOutstanding)
		if err != nil {
			return nil, err
		}
		if fcfps.LessThanOrEqual(decimal.Zero) {
			// Numerically valid but non-viable; never persisted.
			return nil, &valuation.InsufficientDataError{
				Reason: fmt.Sprintf("TTM free cash flow per share is non-positive (%s)", fcfps.String()),
			}
		}
		return valuation.IntrinsicValueWith(fcfps, entity.AssumptionsFor(method))

	default:
		return nil, fmt.Errorf("unknown valuation method %q", method)
	}
}

// classify maps an error to its outcome kind per the error taxonomy:
// invalid or insufficient inputs are skips, everything else (including
// fetch failures) is an error.
func classify(err error) (models.OutcomeKind, string) {
	var invalid *valuation.InvalidInputError
	var insufficient *valuation.InsufficientDataError
	if errors.As(err, &invalid) || errors.As(err, &insufficient) {
		return models.OutcomeSkipped, err.Error()
	}
	return models.OutcomeError, err.Error()
}

func (o *Orchestrator) logMethodFailure(symbol string, method models.Method, kind models.OutcomeKind, err error) {
	event := o.logger.Warn()
	if kind == models.OutcomeError {
		event = o.logger.Error()
	}
	event.
		Str("symbol", symbol).
		Str("method", string(method)).
		Str("outcome", string(kind)).
		Err(err).
		Msg("Method pipeline did not produce a value")
}

// setStatus persists a run-state transition; persistence failures are
// logged but never fail the run.
func (o *Orchestrator) setStatus(ctx context.Context, status *models.RunStatus) {
	if err := o.runState.SetStatus(ctx, status); err != nil {
		o.logger.Warn().Err(err).
			Str("state", string(status.State)).
			Msg("Failed to persist run status")
	}
}
