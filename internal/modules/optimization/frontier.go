package optimization

import (
	"gonum.org/v1/gonum/floats"

	"github.com/quantfolio/quantfolio/internal/modules/risk"
)

// FrontierPoint is one solved portfolio on the efficient frontier.
type FrontierPoint struct {
	Risk    float64          `json:"risk"`
	Return  float64          `json:"return"`
	Weights WeightAllocation `json:"weights"`
}

// Frontier lazily walks the efficient frontier: each Next call solves one
// target-return problem. The sequence is finite and non-restartable; create
// a new Frontier to iterate again.
type Frontier struct {
	o       *Optimizer
	mu      map[string]float64
	cov     *risk.CovarianceMatrix
	bounds  Bounds
	targets []float64
	idx     int
	point   FrontierPoint
	err     error
}

// Frontier prepares an n-point sweep from the minimum-variance portfolio's
// return up to the maximum achievable return under the bounds. The
// minimum-variance solve happens eagerly so infeasible bounds fail here
// rather than on the first Next.
func (o *Optimizer) Frontier(
	expectedReturns map[string]float64,
	cov *risk.CovarianceMatrix,
	bounds Bounds,
	nPoints int,
) (*Frontier, error) {
	if nPoints < 2 {
		nPoints = 2
	}

	minVarWeights, err := o.Optimize(expectedReturns, cov, bounds, MinVariance())
	if err != nil {
		return nil, err
	}
	minVarReturn := PortfolioReturn(expectedReturns, minVarWeights)

	symbols := cov.Symbols()
	mu := make([]float64, len(symbols))
	for i, sym := range symbols {
		mu[i] = expectedReturns[sym]
	}
	_, maxReturn := achievableReturnRange(mu, bounds.normalized())

	targets := make([]float64, nPoints)
	floats.Span(targets, minVarReturn, maxReturn)

	return &Frontier{
		o:       o,
		mu:      expectedReturns,
		cov:     cov,
		bounds:  bounds,
		targets: targets,
	}, nil
}

// Next solves the next frontier point. It returns false when the sweep is
// exhausted or a solve failed; check Err afterwards.
func (f *Frontier) Next() bool {
	if f.err != nil || f.idx >= len(f.targets) {
		return false
	}

	target := f.targets[f.idx]
	f.idx++

	weights, err := f.o.Optimize(f.mu, f.cov, f.bounds, TargetReturn(target))
	if err != nil {
		f.err = err
		return false
	}

	f.point = FrontierPoint{
		Risk:    PortfolioRisk(f.cov, weights),
		Return:  PortfolioReturn(f.mu, weights),
		Weights: weights,
	}
	return true
}

// Point returns the point produced by the last successful Next.
func (f *Frontier) Point() FrontierPoint { return f.point }

// Err returns the first solve error, if any.
func (f *Frontier) Err() error { return f.err }

// Remaining reports how many targets are left in the sweep.
func (f *Frontier) Remaining() int { return len(f.targets) - f.idx }
