package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/sirvig/wheel-analyzer-sub001/internal/interfaces"
)

const (
	// DefaultBaseURL is the provider's query endpoint.
	DefaultBaseURL = "https://www.alphavantage.co/query"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerMinute is the provider's per-minute call ceiling
	// on the free tier.
	DefaultRequestsPerMinute = 5
)

// Client is a rate-limited market-data API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom per-minute rate limit.
func WithRateLimit(requestsPerMinute int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
	}
}

// NewClient creates a new market-data API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(DefaultRequestsPerMinute)/60.0), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Call executes one provider request and returns the raw JSON payload.
// Non-success status, provider error payloads, and throttle payloads all
// return typed errors.
func (c *Client) Call(ctx context.Context, function, symbol string, extra url.Values) (json.RawMessage, error) {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &RateLimitError{RetryAfter: time.Minute}
	}

	params := url.Values{}
	for k, vs := range extra {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	params.Set("function", function)
	params.Set("symbol", symbol)
	params.Set("apikey", c.apiKey)

	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("function", function).
			Str("symbol", symbol).
			Msg("Market data API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{RetryAfter: time.Minute, Message: string(body)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Function:   function,
			Symbol:     symbol,
		}
	}

	if err := c.checkPayload(body, function, symbol); err != nil {
		return nil, err
	}

	return json.RawMessage(body), nil
}

// checkPayload inspects a 200 response for provider-level errors. The
// provider reports bad requests under "Error Message" and quota exhaustion
// under "Note" or "Information", all with HTTP 200.
func (c *Client) checkPayload(body []byte, function, symbol string) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &APIError{
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("malformed payload: %v", err),
			Function:   function,
			Symbol:     symbol,
		}
	}

	if msg, ok := envelope["Error Message"]; ok {
		return &APIError{
			StatusCode: http.StatusOK,
			Message:    trimJSONString(msg),
			Function:   function,
			Symbol:     symbol,
		}
	}
	for _, key := range []string{"Note", "Information"} {
		if msg, ok := envelope[key]; ok {
			return &RateLimitError{RetryAfter: time.Minute, Message: trimJSONString(msg)}
		}
	}

	if len(envelope) == 0 {
		return &APIError{
			StatusCode: http.StatusOK,
			Message:    "empty payload",
			Function:   function,
			Symbol:     symbol,
		}
	}

	return nil
}

func trimJSONString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}

// Ensure Client implements the MarketDataClient interface
var _ interfaces.MarketDataClient = (*Client)(nil)
