package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/sirvig/wheel-analyzer-sub001/internal/common"
	"github.com/sirvig/wheel-analyzer-sub001/internal/interfaces"
	"github.com/sirvig/wheel-analyzer-sub001/internal/models"
	"github.com/sirvig/wheel-analyzer-sub001/internal/services/report"
	"github.com/sirvig/wheel-analyzer-sub001/internal/services/scheduler"
)

// ---- fakes ----

type fakeEntityStorage struct {
	entities map[string]*models.CuratedEntity
	saveErr  error
	listErr  error
	saves    int
}

func newFakeEntityStorage() *fakeEntityStorage {
	return &fakeEntityStorage{entities: map[string]*models.CuratedEntity{}}
}

func (s *fakeEntityStorage) add(entity *models.CuratedEntity) {
	s.entities[entity.Symbol] = entity
}

func (s *fakeEntityStorage) ListActive(ctx context.Context) ([]*models.CuratedEntity, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*models.CuratedEntity
	for _, e := range s.entities {
		if e.Active {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *fakeEntityStorage) FindBySymbols(ctx context.Context, symbols []string) ([]*models.CuratedEntity, error) {
	var out []*models.CuratedEntity
	for _, sym := range models.NormalizeSymbols(symbols) {
		if e, ok := s.entities[sym]; ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *fakeEntityStorage) Get(ctx context.Context, symbol string) (*models.CuratedEntity, error) {
	e, ok := s.entities[models.NormalizeSymbol(symbol)]
	if !ok {
		return nil, interfaces.ErrEntityNotFound
	}
	return e, nil
}

func (s *fakeEntityStorage) Save(ctx context.Context, entity *models.CuratedEntity) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.entities[entity.Symbol] = entity
	return nil
}

func (s *fakeEntityStorage) CountNeverRefreshed(ctx context.Context) (int, error) {
	count := 0
	for _, e := range s.entities {
		if e.Active && e.LastRefreshedAt == nil {
			count++
		}
	}
	return count, nil
}

func (s *fakeEntityStorage) CountActive(ctx context.Context) (int, error) {
	count := 0
	for _, e := range s.entities {
		if e.Active {
			count++
		}
	}
	return count, nil
}

type fakeRunState struct {
	states []models.RunState
	last   *models.RunStatus
}

func (s *fakeRunState) SetStatus(ctx context.Context, status *models.RunStatus) error {
	s.states = append(s.states, status.State)
	s.last = status
	return nil
}

func (s *fakeRunState) GetStatus(ctx context.Context) (*models.RunStatus, error) {
	if s.last == nil {
		return &models.RunStatus{State: models.RunStateIdle}, nil
	}
	return s.last, nil
}

type fakeClient struct {
	payloads map[string]json.RawMessage
	errs     map[string]error
	calls    int
}

func (c *fakeClient) Call(ctx context.Context, function, symbol string, extra url.Values) (json.RawMessage, error) {
	c.calls++
	key := function + ":" + symbol
	if err, ok := c.errs[key]; ok {
		return nil, err
	}
	if payload, ok := c.payloads[key]; ok {
		return payload, nil
	}
	return nil, fmt.Errorf("no fixture for %s", key)
}

type fakeCache struct {
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	payload, ok := c.entries[key]
	if !ok {
		return nil, interfaces.ErrCacheMiss
	}
	return payload, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	c.entries[key] = payload
	return nil
}

func (c *fakeCache) Clear(ctx context.Context, prefix string) (int, error) {
	n := len(c.entries)
	c.entries = map[string][]byte{}
	return n, nil
}

// ---- fixtures ----

func overviewPayload(eps, shares string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"Symbol":"X","EPS":"%s","SharesOutstanding":"%s"}`, eps, shares))
}

func cashFlowPayload(quarters [][2]string) json.RawMessage {
	reports := make([]string, 0, len(quarters))
	for i, q := range quarters {
		reports = append(reports, fmt.Sprintf(
			`{"fiscalDateEnding":"2025-0%d-01","operatingCashflow":"%s","capitalExpenditures":"%s"}`,
			i+1, q[0], q[1]))
	}
	out := `{"symbol":"X","quarterlyReports":[`
	for i, r := range reports {
		if i > 0 {
			out += ","
		}
		out += r
	}
	return json.RawMessage(out + `]}`)
}

func healthyQuarters() [][2]string {
	return [][2]string{
		{"10000000000", "-2000000000"},
		{"11000000000", "-2100000000"},
		{"10500000000", "-1900000000"},
		{"12000000000", "-2200000000"},
	}
}

func testConfig() *common.Config {
	config := common.NewDefaultConfig()
	config.Provider.APIKey = "test"
	config.Refresh.Pace = "0s"
	return config
}

func newTestOrchestrator(t *testing.T, storage *fakeEntityStorage, client *fakeClient) (*Orchestrator, *fakeRunState) {
	t.Helper()

	logger := arbor.NewLogger()
	config := testConfig()
	runState := &fakeRunState{}
	selector := scheduler.NewService(storage, &config.Provider, logger)
	reporter := report.NewService(logger)

	orchestrator, err := NewOrchestrator(
		storage, runState, selector, client, newFakeCache(), reporter, config, logger)
	require.NoError(t, err)

	return orchestrator, runState
}

func outcomeFor(t *testing.T, summary *models.RunSummary, symbol string, method models.Method) models.MethodOutcome {
	t.Helper()
	for _, o := range summary.Outcomes {
		if o.Symbol == symbol && o.Method == method {
			return o
		}
	}
	t.Fatalf("no outcome for %s/%s", symbol, method)
	return models.MethodOutcome{}
}

// ---- tests ----

func TestRun_FirstValuationReportsNew(t *testing.T) {
	storage := newFakeEntityStorage()
	storage.add(models.NewCuratedEntity("AAPL"))

	client := &fakeClient{payloads: map[string]json.RawMessage{
		"OVERVIEW:AAPL":  overviewPayload("5.00", "10000000000"),
		"CASH_FLOW:AAPL": cashFlowPayload(healthyQuarters()),
	}}

	orchestrator, runState := newTestOrchestrator(t, storage, client)

	summary, err := orchestrator.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.NotNil(t, summary)

	eps := outcomeFor(t, summary, "AAPL", models.MethodEPS)
	assert.Equal(t, models.OutcomeSuccess, eps.Kind)
	assert.True(t, eps.IsNew, "first valuation must be reported as new")
	assert.Nil(t, eps.Delta, "new valuations carry no numeric delta")
	require.NotNil(t, eps.After)
	assert.Equal(t, "101.97", eps.After.StringFixed(2))

	fcf := outcomeFor(t, summary, "AAPL", models.MethodFCF)
	assert.Equal(t, models.OutcomeSuccess, fcf.Kind)

	// Persisted entity carries both values and a refresh timestamp.
	saved := storage.entities["AAPL"]
	require.NotNil(t, saved.EPSIntrinsicValue)
	require.NotNil(t, saved.FCFIntrinsicValue)
	require.NotNil(t, saved.LastRefreshedAt)

	assert.Equal(t, models.RunStateCompleted, runState.last.State)
	assert.Equal(t, 100, runState.last.ProgressPct)
}

func TestRun_DeltaAgainstPreviousValue(t *testing.T) {
	storage := newFakeEntityStorage()
	entity := models.NewCuratedEntity("AAPL")
	previous := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	entity.LastRefreshedAt = &previous
	prevValue := decimalFromString(t, "100.00")
	entity.EPSIntrinsicValue = &prevValue
	storage.add(entity)

	client := &fakeClient{payloads: map[string]json.RawMessage{
		"OVERVIEW:AAPL":  overviewPayload("5.00", "10000000000"),
		"CASH_FLOW:AAPL": cashFlowPayload(healthyQuarters()),
	}}

	orchestrator, _ := newTestOrchestrator(t, storage, client)
	summary, err := orchestrator.Run(context.Background(), Options{})
	require.NoError(t, err)

	eps := outcomeFor(t, summary, "AAPL", models.MethodEPS)
	assert.False(t, eps.IsNew)
	require.NotNil(t, eps.Delta)
	assert.Equal(t, "1.97", eps.Delta.StringFixed(2))
	require.NotNil(t, eps.DeltaPct)
	assert.Equal(t, "1.97", eps.DeltaPct.StringFixed(2))
}

func TestRun_NegativeFCFIsSkippedNotError(t *testing.T) {
	storage := newFakeEntityStorage()
	storage.add(models.NewCuratedEntity("BURN"))

	client := &fakeClient{payloads: map[string]json.RawMessage{
		"OVERVIEW:BURN": overviewPayload("5.00", "10000000000"),
		"CASH_FLOW:BURN": cashFlowPayload([][2]string{
			{"-10000000000", "2000000000"},
			{"-11000000000", "2100000000"},
			{"-10500000000", "1900000000"},
			{"-12000000000", "2200000000"},
		}),
	}}

	orchestrator, _ := newTestOrchestrator(t, storage, client)
	summary, err := orchestrator.Run(context.Background(), Options{})
	require.NoError(t, err)

	fcf := outcomeFor(t, summary, "BURN", models.MethodFCF)
	assert.Equal(t, models.OutcomeSkipped, fcf.Kind, "negative aggregate FCF must skip, not error")
	assert.Nil(t, fcf.After)

	// The skipped method persisted nothing; EPS still succeeded.
	saved := storage.entities["BURN"]
	assert.Nil(t, saved.FCFIntrinsicValue)
	assert.NotNil(t, saved.EPSIntrinsicValue)

	tally := summary.Tallies[models.MethodFCF]
	require.NotNil(t, tally)
	assert.Equal(t, 1, tally.Skipped)
	assert.Equal(t, 0, tally.Errors)
}

func TestRun_MethodFailureDoesNotAbortOtherMethodOrRun(t *testing.T) {
	storage := newFakeEntityStorage()
	storage.add(models.NewCuratedEntity("AAPL"))
	storage.add(models.NewCuratedEntity("MSFT"))

	client := &fakeClient{
		payloads: map[string]json.RawMessage{
			"OVERVIEW:AAPL":  overviewPayload("5.00", "10000000000"),
			"OVERVIEW:MSFT":  overviewPayload("4.00", "8000000000"),
			"CASH_FLOW:MSFT": cashFlowPayload(healthyQuarters()),
		},
		errs: map[string]error{
			"CASH_FLOW:AAPL": errors.New("provider unavailable"),
		},
	}

	orchestrator, _ := newTestOrchestrator(t, storage, client)
	summary, err := orchestrator.Run(context.Background(), Options{})
	require.NoError(t, err)

	// AAPL: EPS succeeded, FCF errored.
	assert.Equal(t, models.OutcomeSuccess, outcomeFor(t, summary, "AAPL", models.MethodEPS).Kind)
	assert.Equal(t, models.OutcomeError, outcomeFor(t, summary, "AAPL", models.MethodFCF).Kind)

	// MSFT processed normally after AAPL's failure.
	assert.Equal(t, models.OutcomeSuccess, outcomeFor(t, summary, "MSFT", models.MethodEPS).Kind)
	assert.Equal(t, models.OutcomeSuccess, outcomeFor(t, summary, "MSFT", models.MethodFCF).Kind)
}

func TestRun_FCFProceedsWhenOnlyEPSMissing(t *testing.T) {
	storage := newFakeEntityStorage()
	storage.add(models.NewCuratedEntity("NOEPS"))

	client := &fakeClient{payloads: map[string]json.RawMessage{
		"OVERVIEW:NOEPS":  overviewPayload("None", "10000000000"),
		"CASH_FLOW:NOEPS": cashFlowPayload(healthyQuarters()),
	}}

	orchestrator, _ := newTestOrchestrator(t, storage, client)
	summary, err := orchestrator.Run(context.Background(), Options{})
	require.NoError(t, err)

	eps := outcomeFor(t, summary, "NOEPS", models.MethodEPS)
	assert.Equal(t, models.OutcomeSkipped, eps.Kind)
	assert.Contains(t, eps.Reason, "EPS")

	// FCF reads shares and quarters only; the missing EPS must not touch it.
	fcf := outcomeFor(t, summary, "NOEPS", models.MethodFCF)
	assert.Equal(t, models.OutcomeSuccess, fcf.Kind)
	require.NotNil(t, fcf.After)

	saved := storage.entities["NOEPS"]
	require.NotNil(t, saved.FCFIntrinsicValue)
	assert.True(t, saved.FCFIntrinsicValue.Equal(*fcf.After))
	assert.Nil(t, saved.EPSIntrinsicValue)
}

func TestRun_EPSProceedsWhenOnlySharesMissing(t *testing.T) {
	storage := newFakeEntityStorage()
	storage.add(models.NewCuratedEntity("NOSHR"))

	client := &fakeClient{payloads: map[string]json.RawMessage{
		"OVERVIEW:NOSHR":  overviewPayload("5.00", "None"),
		"CASH_FLOW:NOSHR": cashFlowPayload(healthyQuarters()),
	}}

	orchestrator, _ := newTestOrchestrator(t, storage, client)
	summary, err := orchestrator.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeSuccess, outcomeFor(t, summary, "NOSHR", models.MethodEPS).Kind)

	fcf := outcomeFor(t, summary, "NOSHR", models.MethodFCF)
	assert.Equal(t, models.OutcomeSkipped, fcf.Kind)
	assert.Contains(t, fcf.Reason, "shares outstanding")
}

func TestRun_NonPositiveEPSIsSkipped(t *testing.T) {
	storage := newFakeEntityStorage()
	storage.add(models.NewCuratedEntity("LOSS"))

	client := &fakeClient{payloads: map[string]json.RawMessage{
		"OVERVIEW:LOSS":  overviewPayload("-2.50", "10000000000"),
		"CASH_FLOW:LOSS": cashFlowPayload(healthyQuarters()),
	}}

	orchestrator, _ := newTestOrchestrator(t, storage, client)
	summary, err := orchestrator.Run(context.Background(), Options{})
	require.NoError(t, err)

	eps := outcomeFor(t, summary, "LOSS", models.MethodEPS)
	assert.Equal(t, models.OutcomeSkipped, eps.Kind)
	assert.Equal(t, models.OutcomeSuccess, outcomeFor(t, summary, "LOSS", models.MethodFCF).Kind)
}

func TestRun_SelectionFailureIsRunFatal(t *testing.T) {
	storage := newFakeEntityStorage()
	storage.listErr = errors.New("store unreachable")

	orchestrator, runState := newTestOrchestrator(t, storage, &fakeClient{})
	summary, err := orchestrator.Run(context.Background(), Options{})

	require.Error(t, err)
	assert.Nil(t, summary)
	assert.Equal(t, models.RunStateFailed, runState.last.State)
}

func TestRun_SummaryCountsUsage(t *testing.T) {
	storage := newFakeEntityStorage()
	storage.add(models.NewCuratedEntity("AAPL"))

	client := &fakeClient{payloads: map[string]json.RawMessage{
		"OVERVIEW:AAPL":  overviewPayload("5.00", "10000000000"),
		"CASH_FLOW:AAPL": cashFlowPayload(healthyQuarters()),
	}}

	orchestrator, _ := newTestOrchestrator(t, storage, client)

	summary, err := orchestrator.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Usage.APICallsMade)
	assert.Equal(t, 0, summary.Usage.CacheHits)
	assert.Equal(t, 1, summary.Remaining.PreviouslyValued)
	assert.Equal(t, 0, summary.Remaining.NeverValued)
}

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
