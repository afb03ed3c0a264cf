// Package formulas contains the numeric building blocks shared by the
// analysis modules: descriptive statistics, return conversions and
// risk measures. All statistics are sample statistics (N-1 denominator).
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization factor for daily return series.
const TradingDaysPerYear = 252

// Mean returns the arithmetic mean of data, or 0 for an empty slice.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev returns the sample standard deviation of data.
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance returns the sample variance of data.
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Covariance returns the sample covariance between x and y.
// Mismatched or empty inputs yield 0.
func Covariance(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// Correlation returns the Pearson correlation coefficient between x and y.
func Correlation(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return stat.Correlation(x, y, nil)
}

// AnnualizedVolatility scales the sample standard deviation of periodic
// returns by sqrt(periodsPerYear).
func AnnualizedVolatility(returns []float64, periodsPerYear int) float64 {
	return StdDev(returns) * math.Sqrt(float64(periodsPerYear))
}

// CumulativeReturn compounds a periodic return series into a total return:
// prod(1+r) - 1.
func CumulativeReturn(returns []float64) float64 {
	growth := 1.0
	for _, r := range returns {
		growth *= 1 + r
	}
	return growth - 1
}

// AnnualizeReturn converts a total return over n periods into an annual
// rate: (1+total)^(periodsPerYear/n) - 1.
func AnnualizeReturn(totalReturn float64, n, periodsPerYear int) float64 {
	if n == 0 {
		return 0
	}
	return math.Pow(1+totalReturn, float64(periodsPerYear)/float64(n)) - 1
}
