package marketdata

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/quantfolio/internal/domain"
)

// fakeProvider counts fetches and can be switched into failure mode.
type fakeProvider struct {
	mu      sync.Mutex
	calls   int32
	fail    bool
	latency time.Duration
}

func (f *fakeProvider) Fetch(ctx context.Context, symbol, period string) (domain.PriceSeries, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.latency > 0 {
		time.Sleep(f.latency)
	}

	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return domain.PriceSeries{}, errors.New("provider down")
	}
	return testSeries(symbol), nil
}

func (f *fakeProvider) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakeProvider) fetchCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

func testSeries(symbol string) domain.PriceSeries {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.PriceSeries{
		Symbol: symbol,
		Points: []domain.PricePoint{
			{Date: base, Close: 100},
			{Date: base.AddDate(0, 0, 1), Close: 110},
		},
	}
}

func TestGetOrFetch_ReusesWithinTTL(t *testing.T) {
	provider := &fakeProvider{}
	cache := NewCache(provider, time.Hour, zerolog.Nop())

	first, err := cache.GetOrFetch(context.Background(), "AAPL", "1y")
	require.NoError(t, err)
	second, err := cache.GetOrFetch(context.Background(), "AAPL", "1y")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.fetchCount(), "second call should hit the cache")
}

func TestGetOrFetch_RefetchesAfterTTL(t *testing.T) {
	provider := &fakeProvider{}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cache := NewCache(provider, time.Hour, zerolog.Nop(), WithClock(clock))

	_, err := cache.GetOrFetch(context.Background(), "AAPL", "1y")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = cache.GetOrFetch(context.Background(), "AAPL", "1y")
	require.NoError(t, err)

	assert.Equal(t, 2, provider.fetchCount())
}

func TestGetOrFetch_DistinctKeysFetchSeparately(t *testing.T) {
	provider := &fakeProvider{}
	cache := NewCache(provider, time.Hour, zerolog.Nop())

	_, err := cache.GetOrFetch(context.Background(), "AAPL", "1y")
	require.NoError(t, err)
	_, err = cache.GetOrFetch(context.Background(), "AAPL", "6mo")
	require.NoError(t, err)
	_, err = cache.GetOrFetch(context.Background(), "MSFT", "1y")
	require.NoError(t, err)

	assert.Equal(t, 3, provider.fetchCount())
}

func TestGetOrFetch_StaleFallbackOnProviderFailure(t *testing.T) {
	provider := &fakeProvider{}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cache := NewCache(provider, time.Hour, zerolog.Nop(), WithClock(clock))

	fresh, err := cache.GetOrFetch(context.Background(), "AAPL", "1y")
	require.NoError(t, err)

	// Entry expires, provider goes down: the stale series is served.
	now = now.Add(2 * time.Hour)
	provider.setFail(true)

	stale, err := cache.GetOrFetch(context.Background(), "AAPL", "1y")
	require.NoError(t, err)
	assert.Equal(t, fresh, stale)
}

func TestGetOrFetch_UnavailableWhenNothingCached(t *testing.T) {
	provider := &fakeProvider{}
	provider.setFail(true)
	cache := NewCache(provider, time.Hour, zerolog.Nop())

	_, err := cache.GetOrFetch(context.Background(), "AAPL", "1y")
	var unavailable *domain.DataUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "AAPL", unavailable.Symbol)
	assert.Equal(t, "1y", unavailable.Period)
	assert.EqualError(t, errors.Unwrap(unavailable), "provider down")
}

func TestGetOrFetch_ConcurrentCallsShareOneFlight(t *testing.T) {
	provider := &fakeProvider{latency: 50 * time.Millisecond}
	cache := NewCache(provider, time.Hour, zerolog.Nop())

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cache.GetOrFetch(context.Background(), "AAPL", "1y")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "goroutine %d", i)
	}
	assert.Equal(t, 1, provider.fetchCount(), "concurrent callers should share one fetch")
}

func TestFlush_DropsEntries(t *testing.T) {
	provider := &fakeProvider{}
	cache := NewCache(provider, time.Hour, zerolog.Nop())

	_, err := cache.GetOrFetch(context.Background(), "AAPL", "1y")
	require.NoError(t, err)
	require.NoError(t, cache.Flush())

	_, err = cache.GetOrFetch(context.Background(), "AAPL", "1y")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.fetchCount())
}

func TestGetOrFetch_DegradedEntryRetriesProvider(t *testing.T) {
	provider := &fakeProvider{}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cache := NewCache(provider, time.Hour, zerolog.Nop(), WithClock(clock))

	_, err := cache.GetOrFetch(context.Background(), "AAPL", "1y")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	provider.setFail(true)
	_, err = cache.GetOrFetch(context.Background(), "AAPL", "1y")
	require.NoError(t, err)

	// Provider recovers; the degraded entry must not be treated as fresh.
	provider.setFail(false)
	_, err = cache.GetOrFetch(context.Background(), "AAPL", "1y")
	require.NoError(t, err)
	assert.Equal(t, 3, provider.fetchCount())
}

func BenchmarkGetOrFetch_WarmCache(b *testing.B) {
	provider := &fakeProvider{}
	cache := NewCache(provider, time.Hour, zerolog.Nop())
	if _, err := cache.GetOrFetch(context.Background(), "AAPL", "1y"); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := cache.GetOrFetch(context.Background(), "AAPL", "1y"); err != nil {
			b.Fatal(err)
		}
	}
}
