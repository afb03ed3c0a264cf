package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/quantfolio/internal/domain"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func series(values ...float64) domain.ReturnSeries {
	dates := make([]time.Time, len(values))
	for i := range values {
		dates[i] = day(i)
	}
	return domain.ReturnSeries{Symbol: "TEST", Dates: dates, Values: values}
}

func TestTotalReturn_Compounds(t *testing.T) {
	c := NewCalculator(252)
	assert.InDelta(t, 0.21, c.TotalReturn(series(0.10, 0.10)), 1e-12)
}

func TestVolatility_ConstantSeries(t *testing.T) {
	c := NewCalculator(252)
	assert.Equal(t, 0.0, c.Volatility(series(0.01, 0.01, 0.01)))
}

func TestSharpeRatio_ZeroVolatilitySentinels(t *testing.T) {
	c := NewCalculator(252)

	// Constant positive returns: zero volatility, positive excess.
	up := series(0.01, 0.01, 0.01)
	assert.True(t, math.IsInf(c.SharpeRatio(up, 0.0), 1))

	// Constant negative returns: zero volatility, negative excess.
	down := series(-0.01, -0.01, -0.01)
	assert.True(t, math.IsInf(c.SharpeRatio(down, 0.0), -1))

	// Flat at exactly the risk-free rate.
	flat := series(0, 0, 0)
	assert.Equal(t, 0.0, c.SharpeRatio(flat, 0.0))
}

func TestSharpeRatio_Finite(t *testing.T) {
	c := NewCalculator(252)

	r := series(0.01, -0.005, 0.02, 0.003, -0.001)
	sharpe := c.SharpeRatio(r, 0.02)

	expected := (c.AnnualizedReturn(r) - 0.02) / c.Volatility(r)
	assert.InDelta(t, expected, sharpe, 1e-12)
}

func TestBeta_MarketItself(t *testing.T) {
	c := NewCalculator(252)

	market := series(0.01, -0.02, 0.03, 0.005)
	beta, err := c.Beta(market, market)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, beta, 1e-12)
}

func TestBeta_Leverage(t *testing.T) {
	c := NewCalculator(252)

	market := series(0.01, -0.02, 0.03, 0.005)
	double := series(0.02, -0.04, 0.06, 0.010)

	beta, err := c.Beta(double, market)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, beta, 1e-9)
}

func TestBeta_LengthMismatch(t *testing.T) {
	c := NewCalculator(252)

	_, err := c.Beta(series(0.01, 0.02), series(0.01, 0.02, 0.03))
	var mismatch *domain.BenchmarkMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.SeriesLen)
	assert.Equal(t, 3, mismatch.BenchmarkLen)
}

func TestAlpha_MarketItselfIsZero(t *testing.T) {
	c := NewCalculator(252)

	market := series(0.01, -0.02, 0.03, 0.005)
	alpha, err := c.Alpha(market, market, 0.02)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, alpha, 1e-9)
}

func TestVaR95_Interpolated(t *testing.T) {
	c := NewCalculator(252)

	r := series(-0.05, -0.02, 0.01, 0.02, 0.03)
	// 5th percentile rank = 0.05*4 = 0.2 between -0.05 and -0.02.
	assert.InDelta(t, -0.044, c.VaR95(r), 1e-12)
}

func TestMaxDrawdown_NonPositive(t *testing.T) {
	c := NewCalculator(252)

	assert.Equal(t, 0.0, c.MaxDrawdown(series(0.01, 0.02, 0.03)))
	assert.InDelta(t, -0.20, c.MaxDrawdown(series(0.10, -0.20, 0.05)), 1e-12)
}

func TestCompute_FullSnapshot(t *testing.T) {
	c := NewCalculator(252)

	r := series(0.01, -0.005, 0.02, 0.003, -0.001)
	market := series(0.008, -0.004, 0.015, 0.002, 0.001)

	result, err := c.Compute(r, market, 0.02)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Observations)
	assert.Equal(t, 0.02, result.RiskFreeRate)
	assert.InDelta(t, c.TotalReturn(r), result.TotalReturn, 1e-12)
	assert.InDelta(t, c.Volatility(r), result.Volatility, 1e-12)
	assert.LessOrEqual(t, result.MaxDrawdown, 0.0)
}

func TestCompute_BenchmarkMismatch(t *testing.T) {
	c := NewCalculator(252)

	_, err := c.Compute(series(0.01, 0.02), series(0.01), 0.0)
	var mismatch *domain.BenchmarkMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestResultToMap_EncodesInfinities(t *testing.T) {
	r := Result{SharpeRatio: math.Inf(1), Observations: 10}
	m := r.ToMap()
	assert.Equal(t, "+Inf", m["sharpe_ratio"])
	assert.Equal(t, "10", m["observations"])
}
