package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfolio/quantfolio/internal/modules/marketdata"
	"github.com/quantfolio/quantfolio/internal/modules/portfolio"
)

// refreshPeriod is the history range kept warm for held symbols.
const refreshPeriod = "1y"

// PriceRefreshJob re-fetches price history for every held symbol so
// analysis requests hit a warm cache. Provider failures are tolerated;
// the cache's stale fallback covers the gap until the next run.
type PriceRefreshJob struct {
	portfolios *portfolio.Service
	cache      *marketdata.Cache
	benchmark  string
	timeout    time.Duration
	log        zerolog.Logger
}

// NewPriceRefreshJob creates the job.
func NewPriceRefreshJob(
	portfolios *portfolio.Service,
	cache *marketdata.Cache,
	benchmark string,
	log zerolog.Logger,
) *PriceRefreshJob {
	return &PriceRefreshJob{
		portfolios: portfolios,
		cache:      cache,
		benchmark:  benchmark,
		timeout:    5 * time.Minute,
		log:        log.With().Str("job", "price_refresh").Logger(),
	}
}

// Name implements Job.
func (j *PriceRefreshJob) Name() string { return "price_refresh" }

// Run implements Job.
func (j *PriceRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	all, err := j.portfolios.List()
	if err != nil {
		return err
	}

	symbols := map[string]bool{j.benchmark: true}
	for _, p := range all {
		for sym := range p.Holdings {
			symbols[sym] = true
		}
	}

	refreshed := 0
	for sym := range symbols {
		if _, err := j.cache.GetOrFetch(ctx, sym, refreshPeriod); err != nil {
			j.log.Warn().Err(err).Str("symbol", sym).Msg("Failed to refresh prices")
			continue
		}
		refreshed++
	}

	j.log.Info().Int("refreshed", refreshed).Int("total", len(symbols)).Msg("Price refresh complete")
	return nil
}
