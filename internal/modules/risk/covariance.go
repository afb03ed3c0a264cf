// Package risk builds annualized covariance and correlation matrices from
// aligned return series.
package risk

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/quantfolio/quantfolio/internal/domain"
	"github.com/quantfolio/quantfolio/pkg/formulas"
)

// CovarianceMatrix is a symmetric, positive semi-definite matrix of
// annualized return covariances, indexed by symbol pair. The diagonal holds
// each symbol's annualized variance. Immutable once built.
type CovarianceMatrix struct {
	symbols []string
	index   map[string]int
	data    *mat.SymDense
}

// Engine computes covariance matrices. The annualization factor is the
// number of return periods per year (252 for daily data).
type Engine struct {
	periodsPerYear int
}

// NewEngine creates a covariance engine with the given annualization factor.
func NewEngine(periodsPerYear int) *Engine {
	if periodsPerYear <= 0 {
		periodsPerYear = formulas.TradingDaysPerYear
	}
	return &Engine{periodsPerYear: periodsPerYear}
}

// Covariance builds the annualized sample covariance matrix of the given
// return series. All series must share the exact same date index; callers
// holding ragged histories must intersect them first (returns.Align).
func (e *Engine) Covariance(series map[string]domain.ReturnSeries) (*CovarianceMatrix, error) {
	symbols := make([]string, 0, len(series))
	for sym := range series {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	if len(symbols) == 0 {
		return nil, &domain.InsufficientDataError{Symbol: "", Have: 0, Need: 1}
	}

	ref := series[symbols[0]]
	if ref.Len() < 2 {
		return nil, &domain.InsufficientDataError{Symbol: symbols[0], Have: ref.Len(), Need: 2}
	}
	for _, sym := range symbols[1:] {
		s := series[sym]
		if len(s.Dates) != len(ref.Dates) {
			return nil, &domain.MisalignedSeriesError{
				Symbol: sym,
				Reason: "length differs from the shared index",
			}
		}
		if !s.SameIndex(ref) {
			return nil, &domain.MisalignedSeriesError{
				Symbol: sym,
				Reason: "dates differ from the shared index",
			}
		}
	}

	n := len(symbols)
	factor := float64(e.periodsPerYear)
	data := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov := formulas.Covariance(series[symbols[i]].Values, series[symbols[j]].Values)
			data.SetSym(i, j, cov*factor)
		}
	}

	index := make(map[string]int, n)
	for i, sym := range symbols {
		index[sym] = i
	}

	return &CovarianceMatrix{symbols: symbols, index: index, data: data}, nil
}

// NewMatrix builds a covariance matrix directly from annualized values in
// the given symbol order. Rows must be square and match the symbol count.
func NewMatrix(symbols []string, values [][]float64) (*CovarianceMatrix, error) {
	n := len(symbols)
	if len(values) != n {
		return nil, fmt.Errorf("covariance rows %d do not match %d symbols", len(values), n)
	}

	data := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		if len(values[i]) != n {
			return nil, fmt.Errorf("covariance row %d has %d columns, want %d", i, len(values[i]), n)
		}
		for j := i; j < n; j++ {
			data.SetSym(i, j, values[i][j])
		}
	}

	index := make(map[string]int, n)
	for i, sym := range symbols {
		index[sym] = i
	}
	return &CovarianceMatrix{symbols: symbols, index: index, data: data}, nil
}

// Symbols returns the matrix row/column order.
func (m *CovarianceMatrix) Symbols() []string { return m.symbols }

// Dim returns the matrix dimension.
func (m *CovarianceMatrix) Dim() int { return len(m.symbols) }

// At returns the annualized covariance between two symbols. Unknown symbols
// yield 0.
func (m *CovarianceMatrix) At(a, b string) float64 {
	i, ok := m.index[a]
	if !ok {
		return 0
	}
	j, ok := m.index[b]
	if !ok {
		return 0
	}
	return m.data.At(i, j)
}

// AtIndex returns the covariance at matrix position (i, j).
func (m *CovarianceMatrix) AtIndex(i, j int) float64 { return m.data.At(i, j) }

// Variance returns the annualized variance of one symbol.
func (m *CovarianceMatrix) Variance(symbol string) float64 { return m.At(symbol, symbol) }

// Matrix exposes the underlying symmetric matrix for the optimizer.
func (m *CovarianceMatrix) Matrix() mat.Symmetric { return m.data }

// PortfolioVariance evaluates the quadratic form w'Σw for weights given in
// the matrix symbol order.
func (m *CovarianceMatrix) PortfolioVariance(weights []float64) float64 {
	if len(weights) != len(m.symbols) {
		return 0
	}
	w := mat.NewVecDense(len(weights), weights)
	return mat.Inner(w, m.data, w)
}

// Correlation derives the correlation matrix by normalizing with the outer
// product of standard deviations. A zero-variance symbol correlates 0 with
// every other symbol and 1 with itself, so downstream consumers never see a
// division by zero.
func (m *CovarianceMatrix) Correlation() *CovarianceMatrix {
	n := len(m.symbols)
	std := make([]float64, n)
	for i := 0; i < n; i++ {
		v := m.data.At(i, i)
		if v > 0 {
			std[i] = math.Sqrt(v)
		}
	}

	corr := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			switch {
			case i == j:
				corr.SetSym(i, j, 1)
			case std[i] == 0 || std[j] == 0:
				corr.SetSym(i, j, 0)
			default:
				corr.SetSym(i, j, m.data.At(i, j)/(std[i]*std[j]))
			}
		}
	}

	return &CovarianceMatrix{symbols: m.symbols, index: m.index, data: corr}
}

// Pairs returns every distinct symbol pair with absolute correlation at or
// above the threshold, for surfacing concentration risk.
func (m *CovarianceMatrix) Pairs(threshold float64) []CorrelationPair {
	corr := m.Correlation()
	var pairs []CorrelationPair
	for i := 0; i < len(m.symbols); i++ {
		for j := i + 1; j < len(m.symbols); j++ {
			c := corr.data.At(i, j)
			if c >= threshold || c <= -threshold {
				pairs = append(pairs, CorrelationPair{
					A:           m.symbols[i],
					B:           m.symbols[j],
					Correlation: c,
				})
			}
		}
	}
	return pairs
}

// CorrelationPair names two symbols and their return correlation.
type CorrelationPair struct {
	A           string  `json:"symbol_a"`
	B           string  `json:"symbol_b"`
	Correlation float64 `json:"correlation"`
}

// ToRows flattens the matrix for JSON responses: one row per symbol in
// matrix order.
func (m *CovarianceMatrix) ToRows() map[string][]float64 {
	rows := make(map[string][]float64, len(m.symbols))
	for i, sym := range m.symbols {
		row := make([]float64, len(m.symbols))
		for j := range m.symbols {
			row[j] = m.data.At(i, j)
		}
		rows[sym] = row
	}
	return rows
}
