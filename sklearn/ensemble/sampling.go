package ensemble

import (
	"math"
	"math/rand"
	"sort"
)

// drawCounts returns how many times each sample enters one tree. Only
// samples with positive weight can be drawn.
func drawCounts(rng *rand.Rand, weights []float64, nDraw int, replace bool) []float64 {
	if replace {
		return drawWithReplacement(rng, weights, nDraw)
	}
	return drawWithoutReplacement(rng, weights, nDraw)
}

func drawWithReplacement(rng *rand.Rand, weights []float64, nDraw int) []float64 {
	n := len(weights)
	cdf := make([]float64, n)
	total := 0.0
	for i, w := range weights {
		if w > 0 {
			total += w
		}
		cdf[i] = total
	}

	counts := make([]float64, n)
	for k := 0; k < nDraw; k++ {
		u := rng.Float64() * total
		// first i with cdf[i] > u; zero-weight samples share the cdf value of
		// their predecessor and are never selected
		i := sort.Search(n, func(i int) bool { return cdf[i] > u })
		if i == n {
			i = n - 1
			for weights[i] <= 0 {
				i--
			}
		}
		counts[i]++
	}
	return counts
}

// drawWithoutReplacement uses Efraimidis-Spirakis keys u^(1/w).
func drawWithoutReplacement(rng *rand.Rand, weights []float64, nDraw int) []float64 {
	type keyed struct {
		idx int
		key float64
	}
	keys := make([]keyed, 0, len(weights))
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		keys = append(keys, keyed{idx: i, key: math.Pow(rng.Float64(), 1/w)})
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a].key > keys[b].key })

	if nDraw > len(keys) {
		nDraw = len(keys)
	}
	counts := make([]float64, len(weights))
	for _, k := range keys[:nDraw] {
		counts[k.idx] = 1
	}
	return counts
}

// outOfBag returns the samples a tree may be evaluated on.
func outOfBag(counts, caseWeights []float64, holdout bool) []int {
	var oob []int
	for i, c := range counts {
		if holdout {
			if caseWeights[i] == 0 {
				oob = append(oob, i)
			}
		} else if c == 0 {
			oob = append(oob, i)
		}
	}
	return oob
}
