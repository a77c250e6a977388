package marketdata

import (
	"sync"
	"time"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
)

// DefaultCacheTTL is how long a quote stays fresh.
const DefaultCacheTTL = 30 * time.Minute

type cacheEntry struct {
	data     *domain.MarketData
	storedAt time.Time
}

// Cache is an in-memory TTL cache keyed by ticker. Expired entries are
// evicted lazily on read; there is no background sweep. State is
// process-local, like the rate limiter.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     nowFunc
}

// NewCache creates a cache with the given TTL. Zero or negative ttl falls
// back to DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     defaultNow,
	}
}

// Get returns the cached quote for ticker, or false if absent or expired.
// An expired entry is removed on the spot.
func (c *Cache) Get(ticker string) (*domain.MarketData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[ticker]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, ticker)
		return nil, false
	}

	dataCopy := *entry.data
	return &dataCopy, true
}

// Set stores a quote for ticker, refreshing its TTL.
func (c *Cache) Set(ticker string, data *domain.MarketData) {
	if data == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dataCopy := *data
	c.entries[ticker] = cacheEntry{data: &dataCopy, storedAt: c.now()}
}
