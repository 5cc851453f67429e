// Package marketdata provides a client for the quota-limited market-data
// provider. This package centralizes all provider API interactions for the
// application.
package marketdata

import (
	"fmt"
	"time"
)

// APIError represents an error response from the provider.
type APIError struct {
	StatusCode int
	Message    string
	Function   string
	Symbol     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market data API error: %s (status: %d, function: %s, symbol: %s)",
		e.Message, e.StatusCode, e.Function, e.Symbol)
}

// RateLimitError represents a provider-side throttle response. The free
// tier reports quota exhaustion inside a 200 payload, so this surfaces from
// payload inspection as well as HTTP 429.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("market data rate limit exceeded: %s", e.Message)
	}
	return fmt.Sprintf("market data rate limit exceeded, retry after %v", e.RetryAfter)
}
