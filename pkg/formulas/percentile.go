package formulas

import (
	"math"
	"sort"
)

// Percentile returns the p-th percentile (p in [0,1]) of data using linear
// interpolation between order statistics, matching the convention used by
// numpy.percentile: the fractional rank is p*(n-1).
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	if len(data) == 1 {
		return data[0]
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	p = math.Max(0, math.Min(1, p))
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}

	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// HistoricalVaR returns the historical Value-at-Risk of a return series at
// the given confidence level (0.95 reads the 5th percentile of the return
// distribution). The result is negative when the tail is a loss.
func HistoricalVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return Percentile(returns, 1-confidence)
}

// CVaR returns the Conditional Value-at-Risk: the mean of the returns at or
// below the VaR threshold.
func CVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	tail := int(math.Ceil(float64(len(sorted)) * (1 - confidence)))
	if tail < 1 {
		tail = 1
	}
	if tail > len(sorted) {
		tail = len(sorted)
	}

	sum := 0.0
	for _, r := range sorted[:tail] {
		sum += r
	}
	return sum / float64(tail)
}
