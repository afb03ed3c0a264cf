package formulas

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

// RSI returns the current Relative Strength Index over the given period
// (14 is the usual choice), or nil when there is not enough history.
func RSI(closes []float64, period int) *float64 {
	if len(closes) < period+1 {
		return nil
	}

	values := talib.Rsi(closes, period)
	if len(values) == 0 {
		return nil
	}

	last := values[len(values)-1]
	if math.IsNaN(last) {
		return nil
	}
	return &last
}

// Momentum returns the fractional price change over the trailing window of
// the given number of periods, or nil when history is too short.
func Momentum(closes []float64, periods int) *float64 {
	if len(closes) < periods+1 {
		return nil
	}

	start := closes[len(closes)-periods-1]
	if start == 0 {
		return nil
	}

	m := (closes[len(closes)-1] - start) / start
	return &m
}
