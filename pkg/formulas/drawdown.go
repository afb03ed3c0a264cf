package formulas

// MaxDrawdown returns the largest peak-to-trough decline of a cumulative
// value index built from the periodic return series, as a non-positive
// fraction. A monotonically non-decreasing series yields 0.
//
//	cum_t  = prod_{i<=t}(1+r_i)
//	dd_t   = (cum_t - max_{i<=t} cum_i) / max_{i<=t} cum_i
//	maxDD  = min_t dd_t
func MaxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	cum := 1.0
	peak := 1.0
	maxDD := 0.0

	for _, r := range returns {
		cum *= 1 + r
		if cum > peak {
			peak = cum
		}
		dd := (cum - peak) / peak
		if dd < maxDD {
			maxDD = dd
		}
	}

	return maxDD
}

// DrawdownSeries returns the full drawdown path for charting.
func DrawdownSeries(returns []float64) []float64 {
	dd := make([]float64, len(returns))
	cum := 1.0
	peak := 1.0
	for i, r := range returns {
		cum *= 1 + r
		if cum > peak {
			peak = cum
		}
		dd[i] = (cum - peak) / peak
	}
	return dd
}
