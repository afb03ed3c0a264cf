// Package returns converts raw price history into periodic return series
// and aligns series from different symbols onto a shared date index.
package returns

import (
	"sort"
	"time"

	"github.com/quantfolio/quantfolio/internal/domain"
)

// Builder derives simple periodic returns from price series. It never
// annualizes; downstream consumers apply their own periods-per-year factor.
type Builder struct{}

// NewBuilder creates a return series builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build converts a price series into simple returns r_t = p_t/p_{t-1} - 1.
// The series must have at least two strictly positive prices.
func (b *Builder) Build(prices domain.PriceSeries) (domain.ReturnSeries, error) {
	if prices.Len() < 2 {
		return domain.ReturnSeries{}, &domain.InsufficientDataError{
			Symbol: prices.Symbol,
			Have:   prices.Len(),
			Need:   2,
		}
	}

	for i, p := range prices.Points {
		if p.Close <= 0 {
			return domain.ReturnSeries{}, &domain.InvalidPriceError{
				Symbol: prices.Symbol,
				Index:  i,
				Price:  p.Close,
			}
		}
	}

	dates := make([]time.Time, prices.Len()-1)
	values := make([]float64, prices.Len()-1)
	for i := 1; i < prices.Len(); i++ {
		dates[i-1] = prices.Points[i].Date
		values[i-1] = prices.Points[i].Close/prices.Points[i-1].Close - 1
	}

	return domain.ReturnSeries{
		Symbol: prices.Symbol,
		Dates:  dates,
		Values: values,
	}, nil
}

// Align intersects the date indices of the given return series and returns
// new series restricted to the shared dates, in date order. Symbols that
// end up with no overlap produce an InsufficientDataError downstream, not
// here; Align itself only drops non-shared observations.
func Align(series map[string]domain.ReturnSeries) map[string]domain.ReturnSeries {
	if len(series) == 0 {
		return nil
	}

	// Count date occurrences across all series. A date survives only when
	// every symbol observed it.
	counts := make(map[time.Time]int)
	for _, s := range series {
		for _, d := range s.Dates {
			counts[d]++
		}
	}

	shared := make([]time.Time, 0, len(counts))
	for d, c := range counts {
		if c == len(series) {
			shared = append(shared, d)
		}
	}
	sort.Slice(shared, func(i, j int) bool { return shared[i].Before(shared[j]) })

	index := make(map[time.Time]int, len(shared))
	for i, d := range shared {
		index[d] = i
	}

	aligned := make(map[string]domain.ReturnSeries, len(series))
	for sym, s := range series {
		values := make([]float64, len(shared))
		for i, d := range s.Dates {
			if pos, ok := index[d]; ok {
				values[pos] = s.Values[i]
			}
		}
		aligned[sym] = domain.ReturnSeries{
			Symbol: sym,
			Dates:  shared,
			Values: values,
		}
	}

	return aligned
}
