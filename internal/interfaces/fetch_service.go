package interfaces

import (
	"context"
	"encoding/json"
	"net/url"
)

// FetchResult tags where a fetched payload came from, so reporting logic
// stays decoupled from fetch internals.
type FetchResult string

const (
	// FetchHit means the payload was served from cache.
	FetchHit FetchResult = "hit"
	// FetchMiss means the payload came from a live provider call.
	FetchMiss FetchResult = "miss"
)

// FetchService is the quota-aware, cache-aside fetch layer used by the
// refresh orchestrator.
type FetchService interface {
	// Fetch returns the payload for (function, symbol, params). Unless
	// forceRefresh is set, the cache is consulted first. Counter updates
	// happen on the run context the service was created with.
	Fetch(ctx context.Context, function, symbol string, params url.Values, forceRefresh bool) (json.RawMessage, FetchResult, error)
}
