package interfaces

import (
	"context"
	"encoding/json"
	"net/url"
)

// MarketDataClient issues calls against the quota-limited market-data
// provider. Implementations return an error on non-success status or a
// malformed payload; they do not cache and do not retry.
type MarketDataClient interface {
	// Call executes one provider request. function names the provider
	// dataset (for example "OVERVIEW" or "CASH_FLOW"), symbol the ticker,
	// and extra carries any additional query parameters.
	Call(ctx context.Context, function, symbol string, extra url.Values) (json.RawMessage, error)
}
