// Package domain holds the value types and error taxonomy shared by the
// analysis engine modules. The types here are plain data: once produced
// they are never mutated, so they can be shared across goroutines freely.
package domain

import "time"

// PricePoint is a single (date, closing price) observation.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries is the ordered price history for one symbol. Timestamps are
// strictly increasing with no duplicate dates; the series is immutable
// once fetched.
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

// Len returns the number of observations.
func (s PriceSeries) Len() int { return len(s.Points) }

// Closes returns the closing prices in date order.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Points))
	for i, p := range s.Points {
		closes[i] = p.Close
	}
	return closes
}

// Last returns the most recent observation. The second result is false for
// an empty series.
func (s PriceSeries) Last() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// ReturnSeries is the ordered periodic return series derived from a
// PriceSeries. Dates[i] is the date the return Values[i] was realized, so
// the series is one element shorter than its source prices.
type ReturnSeries struct {
	Symbol string      `json:"symbol"`
	Dates  []time.Time `json:"dates"`
	Values []float64   `json:"values"`
}

// Len returns the number of return observations.
func (r ReturnSeries) Len() int { return len(r.Values) }

// Tail returns a view of the trailing n observations (the whole series when
// it is shorter than n).
func (r ReturnSeries) Tail(n int) ReturnSeries {
	if n >= len(r.Values) {
		return r
	}
	start := len(r.Values) - n
	return ReturnSeries{
		Symbol: r.Symbol,
		Dates:  r.Dates[start:],
		Values: r.Values[start:],
	}
}

// SameIndex reports whether two return series are aligned to the identical
// date index.
func (r ReturnSeries) SameIndex(other ReturnSeries) bool {
	if len(r.Dates) != len(other.Dates) {
		return false
	}
	for i := range r.Dates {
		if !r.Dates[i].Equal(other.Dates[i]) {
			return false
		}
	}
	return true
}
