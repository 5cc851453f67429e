// Package fetch provides the quota-aware, cache-aside fetch layer between
// the refresh pipeline and the market-data provider.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/sirvig/wheel-analyzer-sub001/internal/interfaces"
	"github.com/sirvig/wheel-analyzer-sub001/internal/models"
)

// FetchError wraps a failed provider call with the function and symbol it
// was issued for. Fetch errors are not retried within a run; the next
// scheduled run re-surfaces the entity through staleness ordering.
type FetchError struct {
	Function string
	Symbol   string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s for %s failed: %v", e.Function, e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Service implements the cache-aside fetch layer. Cache read and write
// failures are non-fatal: the fetch still succeeds through a live call.
type Service struct {
	client interfaces.MarketDataClient
	cache  interfaces.CacheStorage
	run    *RunContext
	ttl    time.Duration
	logger arbor.ILogger
}

// NewService creates a fetch service bound to one run's counter context.
func NewService(client interfaces.MarketDataClient, cache interfaces.CacheStorage, run *RunContext, ttl time.Duration, logger arbor.ILogger) *Service {
	return &Service{
		client: client,
		cache:  cache,
		run:    run,
		ttl:    ttl,
		logger: logger,
	}
}

// Fetch returns the payload for (function, symbol, params). Unless forced,
// the cache is read first; a hit increments the cache-hit counter. On miss
// or force the provider is called, the API-call counter increments, and the
// payload is cached with the fixed TTL before returning.
func (s *Service) Fetch(ctx context.Context, function, symbol string, params url.Values, forceRefresh bool) (json.RawMessage, interfaces.FetchResult, error) {
	key := CacheKey(function, symbol, params)

	if !forceRefresh {
		payload, err := s.cache.Get(ctx, key)
		if err == nil {
			s.run.RecordCacheHit()
			s.logger.Debug().
				Str("function", function).
				Str("symbol", symbol).
				Msg("Fetch served from cache")
			return json.RawMessage(payload), interfaces.FetchHit, nil
		}
		if !errors.Is(err, interfaces.ErrCacheMiss) {
			s.logger.Warn().Err(err).
				Str("key", key).
				Msg("Cache read failed, falling through to live call")
		}
	}

	// The call consumes quota whether or not it succeeds.
	s.run.RecordAPICall()
	payload, err := s.client.Call(ctx, function, symbol, params)
	if err != nil {
		return nil, interfaces.FetchMiss, &FetchError{Function: function, Symbol: symbol, Err: err}
	}

	if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
		s.logger.Warn().Err(err).
			Str("key", key).
			Msg("Failed to cache fetched payload")
	}

	return payload, interfaces.FetchMiss, nil
}

// Usage returns the run's counter snapshot.
func (s *Service) Usage() models.UsageStats {
	return s.run.Usage()
}

// CacheKey builds the canonical cache key for a provider request. Extra
// params are sorted so equivalent requests share an entry.
func CacheKey(function, symbol string, params url.Values) string {
	key := strings.ToUpper(function) + ":" + models.NormalizeSymbol(symbol)

	if len(params) == 0 {
		return key
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		key += ":" + name + "=" + strings.Join(params[name], ",")
	}
	return key
}

// Ensure Service implements the FetchService interface
var _ interfaces.FetchService = (*Service)(nil)
