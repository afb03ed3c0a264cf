// Package engine is the analysis boundary consumed by the HTTP layer: it
// turns a set of holdings into metrics, correlation matrices and optimal
// weight allocations. Price history arrives through the cache; everything
// downstream is synchronous CPU-bound numeric work.
package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/quantfolio/quantfolio/internal/domain"
	"github.com/quantfolio/quantfolio/internal/modules/marketdata"
	"github.com/quantfolio/quantfolio/internal/modules/metrics"
	"github.com/quantfolio/quantfolio/internal/modules/optimization"
	"github.com/quantfolio/quantfolio/internal/modules/returns"
	"github.com/quantfolio/quantfolio/internal/modules/risk"
	"github.com/quantfolio/quantfolio/pkg/formulas"
)

// maxConcurrentFetches bounds the fan-out when loading several symbols.
const maxConcurrentFetches = 4

// Config holds engine construction parameters.
type Config struct {
	Cache           *marketdata.Cache
	BenchmarkSymbol string // market index for beta/alpha, e.g. "SPY"
	PeriodsPerYear  int
	Log             zerolog.Logger
}

// Engine wires the return builder, covariance engine, metrics calculator
// and optimizer behind a holdings-in, results-out API.
type Engine struct {
	cache          *marketdata.Cache
	builder        *returns.Builder
	covariance     *risk.Engine
	calculator     *metrics.Calculator
	benchmark      string
	periodsPerYear int
	log            zerolog.Logger
}

// New creates an engine.
func New(cfg Config) *Engine {
	periods := cfg.PeriodsPerYear
	if periods <= 0 {
		periods = formulas.TradingDaysPerYear
	}
	benchmark := cfg.BenchmarkSymbol
	if benchmark == "" {
		benchmark = "SPY"
	}
	return &Engine{
		cache:          cfg.Cache,
		builder:        returns.NewBuilder(),
		covariance:     risk.NewEngine(periods),
		calculator:     metrics.NewCalculator(periods),
		benchmark:      benchmark,
		periodsPerYear: periods,
		log:            cfg.Log.With().Str("component", "engine").Logger(),
	}
}

// Analyze computes the portfolio-level metrics snapshot for the given
// holdings (symbol to shares) over the named period. The portfolio return
// series is the current-value-weighted sum of the aligned per-symbol
// returns; beta and alpha are measured against the benchmark index.
func (e *Engine) Analyze(ctx context.Context, holdings map[string]float64, period string, riskFreeRate float64) (metrics.Result, error) {
	if len(holdings) == 0 {
		return metrics.Result{}, fmt.Errorf("no holdings to analyze")
	}

	prices, err := e.fetchAll(ctx, append(symbolsOf(holdings), e.benchmark), period)
	if err != nil {
		return metrics.Result{}, err
	}

	aligned, err := e.alignedReturns(prices)
	if err != nil {
		return metrics.Result{}, err
	}

	portfolio, err := e.portfolioReturns(holdings, prices, aligned)
	if err != nil {
		return metrics.Result{}, err
	}

	return e.calculator.Compute(portfolio, aligned[e.benchmark], riskFreeRate)
}

// AnalyzeSymbol computes the metrics snapshot for a single symbol.
func (e *Engine) AnalyzeSymbol(ctx context.Context, symbol, period string, riskFreeRate float64) (metrics.Result, error) {
	prices, err := e.fetchAll(ctx, []string{symbol, e.benchmark}, period)
	if err != nil {
		return metrics.Result{}, err
	}

	aligned, err := e.alignedReturns(prices)
	if err != nil {
		return metrics.Result{}, err
	}

	return e.calculator.Compute(aligned[symbol], aligned[e.benchmark], riskFreeRate)
}

// Correlation builds the return correlation matrix across the holdings.
func (e *Engine) Correlation(ctx context.Context, holdings map[string]float64, period string) (*risk.CovarianceMatrix, error) {
	cov, err := e.covarianceMatrix(ctx, holdings, period)
	if err != nil {
		return nil, err
	}
	return cov.Correlation(), nil
}

// Optimize solves a weight-allocation problem over the holdings using
// annualized mean returns as the expected-return vector.
func (e *Engine) Optimize(
	ctx context.Context,
	objective optimization.Objective,
	holdings map[string]float64,
	period string,
	bounds optimization.Bounds,
	riskFreeRate float64,
) (optimization.WeightAllocation, error) {
	mu, cov, err := e.optimizerInputs(ctx, holdings, period)
	if err != nil {
		return nil, err
	}

	optimizer := optimization.NewOptimizer(riskFreeRate, e.log)
	return optimizer.Optimize(mu, cov, bounds, objective)
}

// Frontier prepares an efficient-frontier sweep over the holdings.
func (e *Engine) Frontier(
	ctx context.Context,
	holdings map[string]float64,
	period string,
	bounds optimization.Bounds,
	nPoints int,
	riskFreeRate float64,
) (*optimization.Frontier, error) {
	mu, cov, err := e.optimizerInputs(ctx, holdings, period)
	if err != nil {
		return nil, err
	}

	optimizer := optimization.NewOptimizer(riskFreeRate, e.log)
	return optimizer.Frontier(mu, cov, bounds, nPoints)
}

// Indicators is a technical snapshot of one symbol. Nil fields mean the
// history is too short for that window.
type Indicators struct {
	Symbol     string   `json:"symbol"`
	LastClose  float64  `json:"last_close"`
	RSI14      *float64 `json:"rsi_14"`
	Momentum1M *float64 `json:"momentum_1m"`
	Momentum3M *float64 `json:"momentum_3m"`
}

// SymbolIndicators computes the technical snapshot for a single symbol.
func (e *Engine) SymbolIndicators(ctx context.Context, symbol, period string) (Indicators, error) {
	series, err := e.cache.GetOrFetch(ctx, symbol, period)
	if err != nil {
		return Indicators{}, err
	}

	last, ok := series.Last()
	if !ok {
		return Indicators{}, &domain.InsufficientDataError{Symbol: symbol, Have: 0, Need: 2}
	}

	closes := series.Closes()
	return Indicators{
		Symbol:     symbol,
		LastClose:  last.Close,
		RSI14:      formulas.RSI(closes, 14),
		Momentum1M: formulas.Momentum(closes, 21),
		Momentum3M: formulas.Momentum(closes, 63),
	}, nil
}

// LatestPrices returns the most recent close per symbol, for valuation.
func (e *Engine) LatestPrices(ctx context.Context, symbols []string, period string) (map[string]float64, error) {
	prices, err := e.fetchAll(ctx, symbols, period)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(prices))
	for sym, series := range prices {
		if last, ok := series.Last(); ok {
			out[sym] = last.Close
		}
	}
	return out, nil
}

// fetchAll loads price series for the given symbols through the cache,
// fanning out with a bounded worker group. Fetches for distinct symbols
// are independent; the cache serializes duplicate keys.
func (e *Engine) fetchAll(ctx context.Context, symbols []string, period string) (map[string]domain.PriceSeries, error) {
	unique := dedupe(symbols)
	out := make(map[string]domain.PriceSeries, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	results := make([]domain.PriceSeries, len(unique))
	for i, sym := range unique {
		i, sym := i, sym
		g.Go(func() error {
			series, err := e.cache.GetOrFetch(gctx, sym, period)
			if err != nil {
				return err
			}
			results[i] = series
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, sym := range unique {
		out[sym] = results[i]
	}
	return out, nil
}

// alignedReturns builds per-symbol return series and intersects their date
// indices.
func (e *Engine) alignedReturns(prices map[string]domain.PriceSeries) (map[string]domain.ReturnSeries, error) {
	series := make(map[string]domain.ReturnSeries, len(prices))
	for sym, p := range prices {
		r, err := e.builder.Build(p)
		if err != nil {
			return nil, err
		}
		series[sym] = r
	}

	aligned := returns.Align(series)
	for sym, r := range aligned {
		if r.Len() < 2 {
			return nil, &domain.InsufficientDataError{Symbol: sym, Have: r.Len(), Need: 2}
		}
	}
	return aligned, nil
}

// portfolioReturns combines aligned per-symbol returns into one series
// weighted by current holding value (shares times latest close).
func (e *Engine) portfolioReturns(
	holdings map[string]float64,
	prices map[string]domain.PriceSeries,
	aligned map[string]domain.ReturnSeries,
) (domain.ReturnSeries, error) {
	symbols := symbolsOf(holdings)

	values := make(map[string]float64, len(symbols))
	total := 0.0
	for _, sym := range symbols {
		last, ok := prices[sym].Last()
		if !ok {
			return domain.ReturnSeries{}, &domain.InsufficientDataError{Symbol: sym, Have: 0, Need: 2}
		}
		v := holdings[sym] * last.Close
		values[sym] = v
		total += v
	}
	if total <= 0 {
		return domain.ReturnSeries{}, fmt.Errorf("holdings have no positive value")
	}

	ref := aligned[symbols[0]]
	combined := domain.ReturnSeries{
		Symbol: "PORTFOLIO",
		Dates:  ref.Dates,
		Values: make([]float64, ref.Len()),
	}
	for _, sym := range symbols {
		weight := values[sym] / total
		for i, r := range aligned[sym].Values {
			combined.Values[i] += weight * r
		}
	}
	return combined, nil
}

// covarianceMatrix builds the annualized covariance matrix over holdings.
func (e *Engine) covarianceMatrix(ctx context.Context, holdings map[string]float64, period string) (*risk.CovarianceMatrix, error) {
	if len(holdings) < 2 {
		return nil, fmt.Errorf("need at least 2 holdings, have %d", len(holdings))
	}

	prices, err := e.fetchAll(ctx, symbolsOf(holdings), period)
	if err != nil {
		return nil, err
	}
	aligned, err := e.alignedReturns(prices)
	if err != nil {
		return nil, err
	}
	return e.covariance.Covariance(aligned)
}

// optimizerInputs prepares the expected-return vector and covariance
// matrix the optimizer consumes.
func (e *Engine) optimizerInputs(ctx context.Context, holdings map[string]float64, period string) (map[string]float64, *risk.CovarianceMatrix, error) {
	if len(holdings) < 2 {
		return nil, nil, fmt.Errorf("need at least 2 holdings to optimize, have %d", len(holdings))
	}

	prices, err := e.fetchAll(ctx, symbolsOf(holdings), period)
	if err != nil {
		return nil, nil, err
	}
	aligned, err := e.alignedReturns(prices)
	if err != nil {
		return nil, nil, err
	}

	cov, err := e.covariance.Covariance(aligned)
	if err != nil {
		return nil, nil, err
	}

	mu := make(map[string]float64, len(aligned))
	for sym, r := range aligned {
		mu[sym] = formulas.Mean(r.Values) * float64(e.periodsPerYear)
	}
	return mu, cov, nil
}

func symbolsOf(holdings map[string]float64) []string {
	symbols := make([]string, 0, len(holdings))
	for sym := range holdings {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	var out []string
	for _, s := range symbols {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
