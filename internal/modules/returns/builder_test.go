package returns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/quantfolio/internal/domain"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func priceSeries(symbol string, closes ...float64) domain.PriceSeries {
	points := make([]domain.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = domain.PricePoint{Date: day(i), Close: c}
	}
	return domain.PriceSeries{Symbol: symbol, Points: points}
}

func TestBuild_SimpleReturns(t *testing.T) {
	b := NewBuilder()

	r, err := b.Build(priceSeries("AAPL", 100, 110, 121))
	require.NoError(t, err)

	require.Equal(t, 2, r.Len())
	assert.InDelta(t, 0.10, r.Values[0], 1e-12)
	assert.InDelta(t, 0.10, r.Values[1], 1e-12)

	// Return dates follow the later price of each pair.
	assert.Equal(t, day(1), r.Dates[0])
	assert.Equal(t, day(2), r.Dates[1])
}

func TestBuild_ConstantPrices(t *testing.T) {
	b := NewBuilder()

	r, err := b.Build(priceSeries("KO", 50, 50, 50, 50))
	require.NoError(t, err)

	for i, v := range r.Values {
		assert.Equal(t, 0.0, v, "return at %d", i)
	}
}

func TestBuild_TooFewPrices(t *testing.T) {
	b := NewBuilder()

	_, err := b.Build(priceSeries("AAPL", 100))
	var insufficient *domain.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "AAPL", insufficient.Symbol)
	assert.Equal(t, 1, insufficient.Have)
	assert.Equal(t, 2, insufficient.Need)
}

func TestBuild_NonPositivePrice(t *testing.T) {
	b := NewBuilder()

	_, err := b.Build(priceSeries("BAD", 100, 0, 110))
	var invalid *domain.InvalidPriceError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 1, invalid.Index)

	_, err = b.Build(priceSeries("BAD", 100, -5))
	require.ErrorAs(t, err, &invalid)
}

func TestAlign_IntersectsDates(t *testing.T) {
	a := domain.ReturnSeries{
		Symbol: "A",
		Dates:  []time.Time{day(1), day(2), day(3)},
		Values: []float64{0.01, 0.02, 0.03},
	}
	// B is missing day(2).
	b := domain.ReturnSeries{
		Symbol: "B",
		Dates:  []time.Time{day(1), day(3)},
		Values: []float64{0.05, 0.06},
	}

	aligned := Align(map[string]domain.ReturnSeries{"A": a, "B": b})
	require.Len(t, aligned, 2)

	require.Equal(t, 2, aligned["A"].Len())
	assert.Equal(t, []time.Time{day(1), day(3)}, aligned["A"].Dates)
	assert.Equal(t, []float64{0.01, 0.03}, aligned["A"].Values)
	assert.Equal(t, []float64{0.05, 0.06}, aligned["B"].Values)

	assert.True(t, aligned["A"].SameIndex(aligned["B"]))
}

func TestAlign_NoOverlap(t *testing.T) {
	a := domain.ReturnSeries{Symbol: "A", Dates: []time.Time{day(1)}, Values: []float64{0.01}}
	b := domain.ReturnSeries{Symbol: "B", Dates: []time.Time{day(2)}, Values: []float64{0.02}}

	aligned := Align(map[string]domain.ReturnSeries{"A": a, "B": b})
	assert.Equal(t, 0, aligned["A"].Len())
	assert.Equal(t, 0, aligned["B"].Len())
}

func TestAlign_Empty(t *testing.T) {
	assert.Nil(t, Align(nil))
}
