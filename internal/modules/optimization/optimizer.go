package optimization

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"

	"github.com/quantfolio/quantfolio/internal/domain"
	"github.com/quantfolio/quantfolio/internal/modules/risk"
)

// Numerical policy shared by all solves.
const (
	DefaultTolerance     = 1e-8
	DefaultMaxIterations = 1000

	// WeightSumTolerance is the acceptable floating error on sum(w)=1.
	WeightSumTolerance = 1e-6

	// penaltyWeight scales the quadratic penalties that replace the
	// equality constraints in the unconstrained formulation.
	penaltyWeight = 1000.0
)

// Optimizer solves constrained weight-allocation problems over a supplied
// expected-return vector and covariance matrix. It never fetches data; the
// caller provides both inputs. Solves are deterministic: every one starts
// from the equal-weight interior point.
type Optimizer struct {
	riskFreeRate  float64
	tolerance     float64
	maxIterations int
	log           zerolog.Logger
}

// NewOptimizer creates an optimizer with the default numerical policy.
func NewOptimizer(riskFreeRate float64, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		riskFreeRate:  riskFreeRate,
		tolerance:     DefaultTolerance,
		maxIterations: DefaultMaxIterations,
		log:           log.With().Str("component", "optimizer").Logger(),
	}
}

// Optimize solves for the weight allocation under the given objective and
// uniform bounds. Expected returns and covariance are both annualized and
// must cover the same symbols.
func (o *Optimizer) Optimize(
	expectedReturns map[string]float64,
	cov *risk.CovarianceMatrix,
	bounds Bounds,
	objective Objective,
) (WeightAllocation, error) {
	symbols := cov.Symbols()
	n := len(symbols)
	if n == 0 {
		return nil, fmt.Errorf("no assets to optimize")
	}

	b := bounds.normalized()
	if err := checkFeasible(n, b); err != nil {
		return nil, err
	}

	mu := make([]float64, n)
	for i, sym := range symbols {
		ret, ok := expectedReturns[sym]
		if !ok {
			return nil, fmt.Errorf("missing expected return for %s", sym)
		}
		mu[i] = ret
	}

	if objective.kind == kindTargetReturn {
		lo, hi := achievableReturnRange(mu, b)
		if objective.target < lo-WeightSumTolerance || objective.target > hi+WeightSumTolerance {
			return nil, &domain.UnreachableTargetError{Target: objective.target, Min: lo, Max: hi}
		}
	}

	weights, err := o.solve(mu, cov, symbols, b, objective)
	if err != nil {
		return nil, err
	}

	o.log.Debug().
		Str("objective", objective.String()).
		Int("num_assets", n).
		Float64("sum", weights.Sum()).
		Msg("Solved weight allocation")

	return weights, nil
}

// solve runs the unconstrained penalty formulation through BFGS, falling
// back to Nelder-Mead when the gradient method stalls.
func (o *Optimizer) solve(
	mu []float64,
	cov *risk.CovarianceMatrix,
	symbols []string,
	b Bounds,
	objective Objective,
) (WeightAllocation, error) {
	n := len(mu)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToBounds(x, b)
			return o.objectiveValue(w, mu, cov, objective)
		},
		Grad: func(grad, x []float64) {
			w := projectToBounds(x, b)
			o.objectiveGradient(grad, w, mu, cov, objective)
		},
	}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	settings := &optimize.Settings{
		MajorIterations: o.maxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   o.tolerance,
			Iterations: 50,
		},
	}

	result, err := optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
	if err != nil || !converged(result.Status) {
		result, err = optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("optimization failed: %w", err)
		}
	}

	if !converged(result.Status) {
		return nil, &domain.OptimizationDidNotConvergeError{
			Iterations: o.maxIterations,
			Status:     result.Status.String(),
		}
	}

	return finalize(result.X, symbols, b), nil
}

// objectiveValue evaluates the penalized objective at already-projected
// weights.
func (o *Optimizer) objectiveValue(w, mu []float64, cov *risk.CovarianceMatrix, objective Objective) float64 {
	portReturn := dot(mu, w)
	portVariance := cov.PortfolioVariance(w)

	var obj float64
	switch objective.kind {
	case kindMinVariance:
		obj = portVariance
	case kindTargetReturn:
		diff := portReturn - objective.target
		obj = portVariance + penaltyWeight*diff*diff
	case kindMaxSharpe:
		stdDev := math.Sqrt(math.Max(portVariance, 1e-10))
		obj = -(portReturn - o.riskFreeRate) / stdDev
	}

	sum := 0.0
	for _, v := range w {
		sum += v
	}
	obj += penaltyWeight * (sum - 1) * (sum - 1)

	return obj
}

// objectiveGradient writes the analytic gradient of the penalized objective
// into grad.
func (o *Optimizer) objectiveGradient(grad, w, mu []float64, cov *risk.CovarianceMatrix, objective Objective) {
	n := len(w)
	portReturn := dot(mu, w)

	// sigmaW[i] = (Σw)_i, shared by every branch.
	sigmaW := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sigmaW[i] += cov.AtIndex(i, j) * w[j]
		}
	}

	switch objective.kind {
	case kindMinVariance:
		for i := 0; i < n; i++ {
			grad[i] = 2 * sigmaW[i]
		}
	case kindTargetReturn:
		diff := portReturn - objective.target
		for i := 0; i < n; i++ {
			grad[i] = 2*sigmaW[i] + 2*penaltyWeight*diff*mu[i]
		}
	case kindMaxSharpe:
		variance := dot(w, sigmaW)
		stdDev := math.Sqrt(math.Max(variance, 1e-10))
		excess := portReturn - o.riskFreeRate
		for i := 0; i < n; i++ {
			grad[i] = -mu[i]/stdDev + excess*sigmaW[i]/(stdDev*stdDev*stdDev)
		}
	}

	sum := 0.0
	for _, v := range w {
		sum += v
	}
	for i := 0; i < n; i++ {
		grad[i] += 2 * penaltyWeight * (sum - 1)
	}
}

// checkFeasible rejects bounds that no fully-invested allocation satisfies.
func checkFeasible(n int, b Bounds) error {
	if b.Min > b.Max ||
		float64(n)*b.Min > 1+WeightSumTolerance ||
		float64(n)*b.Max < 1-WeightSumTolerance {
		return &domain.InfeasibleConstraintsError{
			NumAssets: n,
			MinWeight: b.Min,
			MaxWeight: b.Max,
		}
	}
	return nil
}

// achievableReturnRange computes the minimum and maximum portfolio return
// reachable under the box bounds with full investment. Starting with every
// asset at its lower bound, the remaining budget is poured greedily into
// the best (or worst) expected returns.
func achievableReturnRange(mu []float64, b Bounds) (lo, hi float64) {
	n := len(mu)
	base := 0.0
	for _, m := range mu {
		base += b.Min * m
	}

	budget := 1 - float64(n)*b.Min
	room := b.Max - b.Min

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	fill := func(desc bool) float64 {
		sort.Slice(order, func(i, j int) bool {
			if desc {
				return mu[order[i]] > mu[order[j]]
			}
			return mu[order[i]] < mu[order[j]]
		})
		total := base
		remaining := budget
		for _, idx := range order {
			if remaining <= 0 {
				break
			}
			take := math.Min(room, remaining)
			total += take * mu[idx]
			remaining -= take
		}
		return total
	}

	hi = fill(true)
	lo = fill(false)
	return lo, hi
}

// finalize clips the raw solver output to bounds and renormalizes so the
// weights sum to exactly 1, absorbing floating error.
func finalize(x []float64, symbols []string, b Bounds) WeightAllocation {
	clipped := projectToBounds(x, b)

	sum := 0.0
	for _, v := range clipped {
		sum += v
	}
	if sum <= 0 {
		// Degenerate solver output; fall back to equal weights.
		for i := range clipped {
			clipped[i] = 1.0 / float64(len(clipped))
		}
		sum = 1
	}

	weights := make(WeightAllocation, len(symbols))
	for i, sym := range symbols {
		weights[sym] = clipped[i] / sum
	}
	return weights
}

func projectToBounds(x []float64, b Bounds) []float64 {
	proj := make([]float64, len(x))
	for i, v := range x {
		proj[i] = math.Max(b.Min, math.Min(b.Max, v))
	}
	return proj
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence:
		return true
	}
	return false
}

func dot(a, b []float64) float64 {
	total := 0.0
	for i := range a {
		total += a[i] * b[i]
	}
	return total
}

// PortfolioReturn evaluates w'μ for an allocation.
func PortfolioReturn(expectedReturns map[string]float64, w WeightAllocation) float64 {
	total := 0.0
	for sym, weight := range w {
		total += expectedReturns[sym] * weight
	}
	return total
}

// PortfolioRisk evaluates sqrt(w'Σw) for an allocation.
func PortfolioRisk(cov *risk.CovarianceMatrix, w WeightAllocation) float64 {
	symbols := cov.Symbols()
	vec := make([]float64, len(symbols))
	for i, sym := range symbols {
		vec[i] = w[sym]
	}
	return math.Sqrt(math.Max(cov.PortfolioVariance(vec), 0))
}
