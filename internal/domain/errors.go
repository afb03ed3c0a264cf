package domain

import "fmt"

// The engine never returns a partially computed result: every failure is one
// of the typed errors below, carrying the offending symbol or parameter so
// the presentation layer can map it to an actionable message.

// InvalidPriceError reports a zero or negative price in a series. Returns
// are price ratios, so prices must be strictly positive.
type InvalidPriceError struct {
	Symbol string
	Index  int
	Price  float64
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid price %.4f for %s at index %d: prices must be strictly positive", e.Price, e.Symbol, e.Index)
}

// InsufficientDataError reports a series too short for the requested
// computation.
type InsufficientDataError struct {
	Symbol string
	Have   int
	Need   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: have %d observations, need at least %d", e.Symbol, e.Have, e.Need)
}

// MisalignedSeriesError reports return series whose date indices do not
// match exactly. The caller must intersect the indices before asking for a
// covariance matrix.
type MisalignedSeriesError struct {
	Symbol string
	Reason string
}

func (e *MisalignedSeriesError) Error() string {
	return fmt.Sprintf("return series for %s is not aligned: %s", e.Symbol, e.Reason)
}

// BenchmarkMismatchError reports a benchmark return series whose length
// differs from the analyzed series.
type BenchmarkMismatchError struct {
	SeriesLen    int
	BenchmarkLen int
}

func (e *BenchmarkMismatchError) Error() string {
	return fmt.Sprintf("benchmark length %d does not match series length %d", e.BenchmarkLen, e.SeriesLen)
}

// InfeasibleConstraintsError reports weight bounds that no fully-invested
// allocation can satisfy.
type InfeasibleConstraintsError struct {
	NumAssets int
	MinWeight float64
	MaxWeight float64
}

func (e *InfeasibleConstraintsError) Error() string {
	return fmt.Sprintf("infeasible weight bounds [%.4f, %.4f] for %d assets: weights cannot sum to 1", e.MinWeight, e.MaxWeight, e.NumAssets)
}

// UnreachableTargetError reports a target return outside the achievable
// range under the configured bounds.
type UnreachableTargetError struct {
	Target float64
	Min    float64
	Max    float64
}

func (e *UnreachableTargetError) Error() string {
	return fmt.Sprintf("target return %.4f outside achievable range [%.4f, %.4f]", e.Target, e.Min, e.Max)
}

// OptimizationDidNotConvergeError reports a solve that exhausted its
// iteration budget without meeting the convergence tolerance.
type OptimizationDidNotConvergeError struct {
	Iterations int
	Status     string
}

func (e *OptimizationDidNotConvergeError) Error() string {
	return fmt.Sprintf("optimization did not converge after %d iterations (status %s)", e.Iterations, e.Status)
}

// DataUnavailableError reports a price fetch that failed with no cached
// history to fall back on.
type DataUnavailableError struct {
	Symbol string
	Period string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("no price data available for %s (%s): %v", e.Symbol, e.Period, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }
