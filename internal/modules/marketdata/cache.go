package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/quantfolio/quantfolio/internal/domain"
)

// DefaultTTL is how long a fetched price series is reused before the
// provider is consulted again.
const DefaultTTL = time.Hour

type entry struct {
	series    domain.PriceSeries
	fetchedAt time.Time
	degraded  bool
}

// Cache fronts a Provider with time-bounded reuse. It is an explicit
// service instance: construct it with its TTL and provider, pass it by
// reference, and Flush it on teardown. Safe for concurrent use; concurrent
// GetOrFetch calls for the same key share a single in-flight fetch.
type Cache struct {
	provider Provider
	store    *Store // optional persistent tier, may be nil
	ttl      time.Duration
	now      func() time.Time
	log      zerolog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]entry
}

// CacheOption customizes cache construction.
type CacheOption func(*Cache)

// WithStore adds a persistent SQLite tier below the in-memory map.
func WithStore(s *Store) CacheOption {
	return func(c *Cache) { c.store = s }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache over the given provider.
func NewCache(provider Provider, ttl time.Duration, log zerolog.Logger, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		provider: provider,
		ttl:      ttl,
		now:      time.Now,
		log:      log.With().Str("component", "price_cache").Logger(),
		entries:  make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrFetch returns the cached series for (symbol, period) when it is
// still fresh, otherwise fetches from the provider. On provider failure a
// stale entry is served with a warning (degraded beats unavailable); with
// nothing cached the call fails with DataUnavailableError.
func (c *Cache) GetOrFetch(ctx context.Context, symbol, period string) (domain.PriceSeries, error) {
	key := symbol + "|" + period

	if series, ok := c.fresh(key); ok {
		return series, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A concurrent flight may have refreshed the entry while this
		// caller waited on the group.
		if series, ok := c.fresh(key); ok {
			return series, nil
		}
		return c.refresh(ctx, key, symbol, period)
	})
	if err != nil {
		return domain.PriceSeries{}, err
	}
	return v.(domain.PriceSeries), nil
}

// fresh returns the in-memory entry when it is inside its TTL.
func (c *Cache) fresh(key string) (domain.PriceSeries, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && !e.degraded && c.now().Sub(e.fetchedAt) < c.ttl {
		return e.series, true
	}
	return domain.PriceSeries{}, false
}

func (c *Cache) refresh(ctx context.Context, key, symbol, period string) (domain.PriceSeries, error) {
	series, err := c.provider.Fetch(ctx, symbol, period)
	if err == nil {
		fetchedAt := c.now()
		c.mu.Lock()
		c.entries[key] = entry{series: series, fetchedAt: fetchedAt}
		c.mu.Unlock()

		if c.store != nil {
			if serr := c.store.Put(symbol, period, series, fetchedAt); serr != nil {
				c.log.Warn().Err(serr).Str("symbol", symbol).Msg("Failed to persist cache entry")
			}
		}
		return series, nil
	}

	// Stale-but-available beats unavailable.
	if stale, ok := c.anyTier(key, symbol, period); ok {
		c.log.Warn().
			Err(err).
			Str("symbol", symbol).
			Str("period", period).
			Msg("Provider failed, serving stale price history")
		c.mu.Lock()
		c.entries[key] = entry{series: stale.series, fetchedAt: stale.fetchedAt, degraded: true}
		c.mu.Unlock()
		return stale.series, nil
	}

	return domain.PriceSeries{}, &domain.DataUnavailableError{Symbol: symbol, Period: period, Err: err}
}

// anyTier looks up an entry regardless of age, consulting the persistent
// tier on a memory miss.
func (c *Cache) anyTier(key, symbol, period string) (entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && e.series.Len() > 0 {
		return e, true
	}

	if c.store != nil {
		series, fetchedAt, found, err := c.store.Get(symbol, period)
		if err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to read persistent cache")
			return entry{}, false
		}
		if found {
			return entry{series: series, fetchedAt: fetchedAt}, true
		}
	}
	return entry{}, false
}

// Warm pre-loads the in-memory tier from the persistent store for one key.
func (c *Cache) Warm(symbol, period string) bool {
	if c.store == nil {
		return false
	}
	series, fetchedAt, found, err := c.store.Get(symbol, period)
	if err != nil || !found {
		return false
	}
	c.mu.Lock()
	c.entries[symbol+"|"+period] = entry{series: series, fetchedAt: fetchedAt}
	c.mu.Unlock()
	return true
}

// Flush drops every entry from both tiers.
func (c *Cache) Flush() error {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()

	if c.store != nil {
		return c.store.Flush()
	}
	return nil
}
