package tree

import (
	"math"

	"github.com/YuminosukeSato/vitaforest/pkg/errors"
)

// Criterion names.
const (
	CriterionGini         = "gini"
	CriterionEntropy      = "entropy"
	CriterionSquaredError = "squared_error"
)

type nodeStats struct {
	weight   float64
	impurity float64
	value    []float64

	// classification: weighted class counts; regression: sum of w*y
	counts []float64
	sum    float64
}

// criterion evaluates node impurity and scans sorted samples for the best
// threshold of one feature. Gains are expressed in weighted units, i.e.
// W*imp(parent) - W_L*imp(left) - W_R*imp(right).
type criterion interface {
	stats(idx []int, y, w []float64) nodeStats
	sweep(sorted []int, col, y, w []float64, parent nodeStats, minLeaf float64) (threshold, gain float64, ok bool)
}

func newCriterion(name string, nClasses int) (criterion, error) {
	switch name {
	case CriterionGini, CriterionEntropy:
		if nClasses < 1 {
			return nil, errors.NewValidationError("NumClasses", "classification criteria need at least one class", nClasses)
		}
		return &classCriterion{entropy: name == CriterionEntropy, k: nClasses}, nil
	case CriterionSquaredError, "":
		return varianceCriterion{}, nil
	default:
		return nil, errors.NewValidationError("criterion", "must be 'gini', 'entropy' or 'squared_error'", name)
	}
}

// ---------------------------------------------------------------------------
// classification

type classCriterion struct {
	entropy bool
	k       int
}

// weighted impurity W*imp for class counts summing to W
func (c *classCriterion) weighted(counts []float64, W float64) float64 {
	if W <= 0 {
		return 0
	}
	if c.entropy {
		h := 0.0
		for _, n := range counts {
			if n > 0 {
				h -= n * math.Log2(n/W)
			}
		}
		return h
	}
	sq := 0.0
	for _, n := range counts {
		sq += n * n
	}
	return W - sq/W
}

func (c *classCriterion) stats(idx []int, y, w []float64) nodeStats {
	counts := make([]float64, c.k)
	W := 0.0
	for _, i := range idx {
		counts[int(y[i])] += w[i]
		W += w[i]
	}
	value := make([]float64, c.k)
	for k := range counts {
		value[k] = counts[k] / W
	}
	return nodeStats{
		weight:   W,
		impurity: c.weighted(counts, W) / W,
		value:    value,
		counts:   counts,
	}
}

func (c *classCriterion) sweep(sorted []int, col, y, w []float64, parent nodeStats, minLeaf float64) (float64, float64, bool) {
	left := make([]float64, c.k)
	right := make([]float64, c.k)
	parentImp := c.weighted(parent.counts, parent.weight)

	var (
		wl       float64
		bestGain float64
		bestThr  float64
		found    bool
	)
	for pos := 0; pos < len(sorted)-1; pos++ {
		i := sorted[pos]
		left[int(y[i])] += w[i]
		wl += w[i]

		next := col[sorted[pos+1]]
		if col[i] == next {
			continue
		}
		wr := parent.weight - wl
		if wl < minLeaf || wr < minLeaf {
			continue
		}
		for k := range right {
			right[k] = parent.counts[k] - left[k]
		}
		gain := parentImp - c.weighted(left, wl) - c.weighted(right, wr)
		if !found || gain > bestGain {
			bestGain = gain
			bestThr = midpoint(col[i], next)
			found = true
		}
	}
	return bestThr, bestGain, found
}

// ---------------------------------------------------------------------------
// regression

type varianceCriterion struct{}

func (varianceCriterion) stats(idx []int, y, w []float64) nodeStats {
	var W, s, s2 float64
	for _, i := range idx {
		W += w[i]
		s += w[i] * y[i]
		s2 += w[i] * y[i] * y[i]
	}
	mean := s / W
	variance := s2/W - mean*mean
	if variance < 0 {
		variance = 0
	}
	return nodeStats{
		weight:   W,
		impurity: variance,
		value:    []float64{mean},
		sum:      s,
	}
}

func (varianceCriterion) sweep(sorted []int, col, y, w []float64, parent nodeStats, minLeaf float64) (float64, float64, bool) {
	// W*var = sum(w*y^2) - (sum w*y)^2/W; the quadratic terms cancel in the
	// gain, leaving sL^2/WL + sR^2/WR - s^2/W.
	parentTerm := parent.sum * parent.sum / parent.weight

	var (
		wl, sl   float64
		bestGain float64
		bestThr  float64
		found    bool
	)
	for pos := 0; pos < len(sorted)-1; pos++ {
		i := sorted[pos]
		wl += w[i]
		sl += w[i] * y[i]

		next := col[sorted[pos+1]]
		if col[i] == next {
			continue
		}
		wr := parent.weight - wl
		if wl < minLeaf || wr < minLeaf {
			continue
		}
		sr := parent.sum - sl
		gain := sl*sl/wl + sr*sr/wr - parentTerm
		if !found || gain > bestGain {
			bestGain = gain
			bestThr = midpoint(col[i], next)
			found = true
		}
	}
	return bestThr, bestGain, found
}
