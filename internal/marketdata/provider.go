// Package marketdata fetches equity quotes for tracked entities from an
// ordered chain of vendor APIs, with a TTL cache in front and per-vendor
// rate limiting behind. Vendor payload shapes never escape their adapter.
package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
)

// Provider fetches a single quote from one vendor.
type Provider interface {
	// Name identifies the vendor; it is also the rate-limiter key.
	Name() string

	// Quote fetches current market data for a ticker. A nil result with a
	// nil error means the vendor has no data for the ticker.
	Quote(ctx context.Context, ticker string) (*domain.MarketData, error)
}

// RateLimitedError signals vendor-side throttling (HTTP 429). It carries the
// server-suggested wait so the retry helper can honor it.
type RateLimitedError struct {
	Provider string
	Delay    time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: rate limited, retry after %s", e.Provider, e.Delay)
}

// RetryAfter returns the server-specified wait before the next attempt.
func (e *RateLimitedError) RetryAfter() time.Duration {
	return e.Delay
}

// defaultRetryAfter is used when a 429 response carries no Retry-After header.
const defaultRetryAfter = 10 * time.Second

// rateLimited builds a RateLimitedError from a 429 response.
func rateLimited(provider string, resp *http.Response) *RateLimitedError {
	delay := defaultRetryAfter
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			delay = time.Duration(secs) * time.Second
		}
	}
	return &RateLimitedError{Provider: provider, Delay: delay}
}

// getFloat extracts the first present numeric value from a duck-typed vendor
// payload. Vendors disagree on number encoding, so strings are accepted too.
func getFloat(m map[string]interface{}, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case float64:
			return x, true
		case int:
			return float64(x), true
		case string:
			if f, err := strconv.ParseFloat(x, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
