// Package finnhub provides a client for the Finnhub stock API.
//
// Every request acquires the shared rate limiter before touching the
// network, so the screening and fetching stages draw from one quota.
package finnhub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/marketday/tracker/internal/ratelimit"
	"github.com/marketday/tracker/pkg/config"
	"github.com/marketday/tracker/pkg/httputil"
	"github.com/marketday/tracker/pkg/logger"
)

const (
	requestTimeout = 10 * time.Second

	// maxAttempts bounds retries for transient failures. Backoff starts
	// at one second and doubles per attempt.
	maxAttempts    = 3
	initialBackoff = 1 * time.Second

	// defaultRetryAfter applies when a 429 response carries no
	// Retry-After header.
	defaultRetryAfter = 60 * time.Second
)

// Client talks to the Finnhub REST API.
type Client struct {
	httpClient *httputil.Client
	limiter    *ratelimit.Limiter
	logger     *logger.Logger
	apiKey     string
	baseURL    string
}

// NewClient creates a Finnhub API client. Retries live here rather than
// in the transport so the limiter can be reset after the server declares
// quota exhaustion.
func NewClient(cfg config.FinnhubConfig, limiter *ratelimit.Limiter, log *logger.Logger) *Client {
	httpClient := httputil.NewWithTimeout(log, requestTimeout).
		DisableRetry().
		WithRateLimiter(limiter)

	return &Client{
		httpClient: httpClient,
		limiter:    limiter,
		logger:     log,
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
	}
}

// get performs one API call and returns the response body. Each attempt
// acquires the rate limiter before touching the network. A 429 response
// waits out the server's Retry-After (60s when absent), resets the
// limiter to a full bucket, and consumes one attempt; network and 5xx
// failures retry with exponential backoff.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	params.Set("token", c.apiKey)
	requestURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.httpClient.Get(ctx, requestURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt == maxAttempts {
				return nil, fmt.Errorf("finnhub %s: %w", endpoint, err)
			}
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"endpoint": endpoint,
				"attempt":  attempt,
				"backoff":  backoff,
			}).Debug("Retrying Finnhub request")
			if err := wait(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("finnhub %s: read response: %w", endpoint, err)
			}
			return body, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := parseRetryAfter(resp.Header)
			drainAndClose(resp)
			if attempt == maxAttempts {
				return nil, fmt.Errorf("finnhub %s: rate limited after %d attempts", endpoint, maxAttempts)
			}
			c.logger.WithFields(map[string]interface{}{
				"endpoint":    endpoint,
				"retry_after": retryAfter,
			}).Warn("Finnhub rate limit hit, waiting before retry")
			if err := wait(ctx, retryAfter); err != nil {
				return nil, err
			}
			c.limiter.Reset()
			continue

		case resp.StatusCode >= 500:
			drainAndClose(resp)
			if attempt == maxAttempts {
				return nil, fmt.Errorf("finnhub %s: server error %d after %d attempts", endpoint, resp.StatusCode, maxAttempts)
			}
			c.logger.WithFields(map[string]interface{}{
				"endpoint":    endpoint,
				"status_code": resp.StatusCode,
				"attempt":     attempt,
				"backoff":     backoff,
			}).Debug("Retrying Finnhub request")
			if err := wait(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
			continue

		default:
			drainAndClose(resp)
			return nil, fmt.Errorf("finnhub %s: unexpected status %d", endpoint, resp.StatusCode)
		}
	}

	return nil, fmt.Errorf("finnhub %s: retries exhausted", endpoint)
}

// parseRetryAfter reads the Retry-After header as integer seconds.
func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

// drainAndClose empties the body so the connection can be reused.
func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
