// Package metrics computes performance and risk statistics for a single
// return series: total and annualized return, volatility, Sharpe ratio,
// beta, alpha, historical VaR and maximum drawdown.
package metrics

import (
	"math"
	"strconv"

	"github.com/quantfolio/quantfolio/internal/domain"
	"github.com/quantfolio/quantfolio/pkg/formulas"
)

// VaRConfidence is the confidence level for historical Value-at-Risk.
const VaRConfidence = 0.95

// Result is an immutable snapshot of the metrics computed over one trailing
// window. All values are fractions, not percentages. SharpeRatio may be
// +Inf when volatility is exactly zero with positive excess return.
type Result struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	Beta             float64 `json:"beta"`
	Alpha            float64 `json:"alpha"`
	VaR95            float64 `json:"var_95"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	RiskFreeRate     float64 `json:"risk_free_rate"`
	Observations     int     `json:"observations"`
}

// Calculator computes metrics from already-sliced return series. It is
// window-agnostic: callers pick the trailing window before calling in.
type Calculator struct {
	periodsPerYear int
}

// NewCalculator creates a calculator with the given annualization factor
// (252 for daily series).
func NewCalculator(periodsPerYear int) *Calculator {
	if periodsPerYear <= 0 {
		periodsPerYear = formulas.TradingDaysPerYear
	}
	return &Calculator{periodsPerYear: periodsPerYear}
}

// TotalReturn compounds the series into a cumulative return.
func (c *Calculator) TotalReturn(r domain.ReturnSeries) float64 {
	return formulas.CumulativeReturn(r.Values)
}

// AnnualizedReturn converts the series' total return into an annual rate.
func (c *Calculator) AnnualizedReturn(r domain.ReturnSeries) float64 {
	return formulas.AnnualizeReturn(c.TotalReturn(r), r.Len(), c.periodsPerYear)
}

// Volatility returns the annualized sample standard deviation of returns.
func (c *Calculator) Volatility(r domain.ReturnSeries) float64 {
	return formulas.AnnualizedVolatility(r.Values, c.periodsPerYear)
}

// SharpeRatio returns annualized excess return per unit of volatility.
// When volatility is exactly zero the ratio is reported, not raised: +Inf
// for positive excess return, -Inf for negative, 0 when both are zero.
func (c *Calculator) SharpeRatio(r domain.ReturnSeries, riskFreeRate float64) float64 {
	excess := c.AnnualizedReturn(r) - riskFreeRate
	vol := c.Volatility(r)
	if vol == 0 {
		switch {
		case excess > 0:
			return math.Inf(1)
		case excess < 0:
			return math.Inf(-1)
		default:
			return 0
		}
	}
	return excess / vol
}

// Beta returns the sensitivity of the series to a benchmark return series:
// cov(r, market) / var(market). The benchmark must be aligned to the same
// window.
func (c *Calculator) Beta(r, market domain.ReturnSeries) (float64, error) {
	if r.Len() != market.Len() {
		return 0, &domain.BenchmarkMismatchError{
			SeriesLen:    r.Len(),
			BenchmarkLen: market.Len(),
		}
	}

	marketVar := formulas.Variance(market.Values)
	if marketVar == 0 {
		return 0, nil
	}
	return formulas.Covariance(r.Values, market.Values) / marketVar, nil
}

// Alpha returns the CAPM single-factor excess return:
// annualized - (rf + beta*(market_annualized - rf)).
func (c *Calculator) Alpha(r, market domain.ReturnSeries, riskFreeRate float64) (float64, error) {
	beta, err := c.Beta(r, market)
	if err != nil {
		return 0, err
	}
	expected := riskFreeRate + beta*(c.AnnualizedReturn(market)-riskFreeRate)
	return c.AnnualizedReturn(r) - expected, nil
}

// VaR95 returns the historical 95% Value-at-Risk: the 5th percentile of the
// return distribution with linear interpolation between order statistics.
// Negative when the tail is a loss.
func (c *Calculator) VaR95(r domain.ReturnSeries) float64 {
	return formulas.HistoricalVaR(r.Values, VaRConfidence)
}

// MaxDrawdown returns the largest peak-to-trough decline of the cumulative
// value index, as a non-positive fraction.
func (c *Calculator) MaxDrawdown(r domain.ReturnSeries) float64 {
	return formulas.MaxDrawdown(r.Values)
}

// Compute produces the full metrics snapshot for a series against a market
// benchmark. The two series must cover the same window.
func (c *Calculator) Compute(r, market domain.ReturnSeries, riskFreeRate float64) (Result, error) {
	beta, err := c.Beta(r, market)
	if err != nil {
		return Result{}, err
	}
	alpha, err := c.Alpha(r, market, riskFreeRate)
	if err != nil {
		return Result{}, err
	}

	return Result{
		TotalReturn:      c.TotalReturn(r),
		AnnualizedReturn: c.AnnualizedReturn(r),
		Volatility:       c.Volatility(r),
		SharpeRatio:      c.SharpeRatio(r, riskFreeRate),
		Beta:             beta,
		Alpha:            alpha,
		VaR95:            c.VaR95(r),
		MaxDrawdown:      c.MaxDrawdown(r),
		RiskFreeRate:     riskFreeRate,
		Observations:     r.Len(),
	}, nil
}

// ToMap flattens the result to plain string key-values for the persistence
// collaborator. Infinities are encoded as "+Inf"/"-Inf".
func (r Result) ToMap() map[string]string {
	fields := map[string]float64{
		"total_return":      r.TotalReturn,
		"annualized_return": r.AnnualizedReturn,
		"volatility":        r.Volatility,
		"sharpe_ratio":      r.SharpeRatio,
		"beta":              r.Beta,
		"alpha":             r.Alpha,
		"var_95":            r.VaR95,
		"max_drawdown":      r.MaxDrawdown,
		"risk_free_rate":    r.RiskFreeRate,
	}

	out := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		out[k] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	out["observations"] = strconv.Itoa(r.Observations)
	return out
}
