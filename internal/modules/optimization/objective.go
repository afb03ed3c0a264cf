// Package optimization solves Modern Portfolio Theory weight-allocation
// problems: maximize Sharpe, minimize variance, or hit a target return,
// under uniform weight bounds and full investment.
package optimization

import "fmt"

// objectiveKind enumerates the closed set of optimization goals.
type objectiveKind int

const (
	kindMaxSharpe objectiveKind = iota
	kindMinVariance
	kindTargetReturn
)

// Objective is a closed tagged variant selecting the optimization goal.
// Construct one with MaxSharpe, MinVariance or TargetReturn; the zero value
// is MaxSharpe.
type Objective struct {
	kind   objectiveKind
	target float64
}

// MaxSharpe maximizes (w'μ - rf) / sqrt(w'Σw).
func MaxSharpe() Objective { return Objective{kind: kindMaxSharpe} }

// MinVariance minimizes w'Σw.
func MinVariance() Objective { return Objective{kind: kindMinVariance} }

// TargetReturn minimizes w'Σw subject to w'μ = target.
func TargetReturn(target float64) Objective {
	return Objective{kind: kindTargetReturn, target: target}
}

// String names the objective for logs and API responses.
func (o Objective) String() string {
	switch o.kind {
	case kindMaxSharpe:
		return "max_sharpe"
	case kindMinVariance:
		return "min_variance"
	case kindTargetReturn:
		return fmt.Sprintf("target_return(%.4f)", o.target)
	}
	return "unknown"
}

// ParseObjective maps API objective names onto the tagged variant. The
// target is only read for "target_return".
func ParseObjective(name string, target float64) (Objective, error) {
	switch name {
	case "max_sharpe":
		return MaxSharpe(), nil
	case "min_variance":
		return MinVariance(), nil
	case "target_return":
		return TargetReturn(target), nil
	default:
		return Objective{}, fmt.Errorf("unknown objective %q", name)
	}
}

// Bounds are uniform per-asset weight limits. The zero value means the
// unconstrained long-only box [0, 1].
type Bounds struct {
	Min float64 `json:"min_weight"`
	Max float64 `json:"max_weight"`
}

func (b Bounds) normalized() Bounds {
	if b.Max == 0 && b.Min == 0 {
		return Bounds{Min: 0, Max: 1}
	}
	return b
}

// WeightAllocation maps symbol to portfolio weight. A valid allocation has
// every weight inside its bounds and weights summing to 1 within 1e-6.
type WeightAllocation map[string]float64

// Sum returns the total of all weights.
func (w WeightAllocation) Sum() float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	return total
}
