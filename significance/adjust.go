package significance

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/vitaforest/pkg/errors"
)

// Adjustment methods.
const (
	AdjustBH         = "BH"
	AdjustBY         = "BY"
	AdjustBonferroni = "bonferroni"
	AdjustHolm       = "holm"
	AdjustNone       = "none"
)

// AdjustMethods lists the accepted method names. "fdr" is an alias of "BH".
var AdjustMethods = []string{AdjustBH, AdjustBY, AdjustBonferroni, AdjustHolm, AdjustNone}

// AdjustPValues adjusts p for multiple testing. The result is in input
// order, pointwise >= p and capped at 1.
func AdjustPValues(p []float64, method string) ([]float64, error) {
	if err := errors.CheckNumericalStability("AdjustPValues", p); err != nil {
		return nil, err
	}
	for _, v := range p {
		if v < 0 || v > 1 {
			return nil, errors.NewValidationError("p", "p-values must lie in [0, 1]", v)
		}
	}

	n := len(p)
	out := make([]float64, n)
	if n == 0 {
		return out, nil
	}

	switch method {
	case AdjustNone:
		copy(out, p)
	case AdjustBonferroni:
		for i, v := range p {
			out[i] = math.Min(1, float64(n)*v)
		}
	case AdjustHolm:
		// ascending p, running max of (n-k) * p_(k)
		order := orderBy(p, false)
		running := 0.0
		for k, idx := range order {
			running = math.Max(running, float64(n-k)*p[idx])
			out[idx] = math.Min(1, running)
		}
	case AdjustBH, "fdr", AdjustBY:
		q := 1.0
		if method == AdjustBY {
			q = 0
			for i := 1; i <= n; i++ {
				q += 1 / float64(i)
			}
		}
		// descending p, running min of q * n/rank * p
		order := orderBy(p, true)
		running := math.Inf(1)
		for k, idx := range order {
			rank := n - k
			running = math.Min(running, q*float64(n)/float64(rank)*p[idx])
			out[idx] = math.Min(1, running)
		}
	default:
		return nil, errors.NewValidationError("method", "must be one of BH, BY, bonferroni, holm, none", method)
	}
	return out, nil
}

func orderBy(p []float64, descending bool) []int {
	order := make([]int, len(p))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if descending {
			return p[order[a]] > p[order[b]]
		}
		return p[order[a]] < p[order[b]]
	})
	return order
}
