package ensemble

import (
	"math/rand"

	"github.com/YuminosukeSato/vitaforest/sklearn/tree"
)

// oobData is the training data seen by the out-of-bag evaluations.
type oobData struct {
	// cols includes the shadow columns for impurity_corrected.
	cols           [][]float64
	y              []float64
	classification bool
}

// predictTree predicts sample i, replacing feature by value. feature < 0
// predicts the unmodified sample.
func (d *oobData) predictTree(tr *tree.Tree, i, feature int, value float64) float64 {
	leaf := tr.Leaf(func(f int) float64 {
		if f == feature {
			return value
		}
		return d.cols[f][i]
	})
	if d.classification {
		return float64(argmax(leaf.Value))
	}
	return leaf.Value[0]
}

func (d *oobData) loss(pred, truth float64) float64 {
	if d.classification {
		if pred != truth {
			return 1
		}
		return 0
	}
	diff := pred - truth
	return diff * diff
}

// treeError is the mean loss of one tree on its out-of-bag samples.
func (d *oobData) treeError(tr *tree.Tree, oob []int) float64 {
	sum := 0.0
	for _, i := range oob {
		sum += d.loss(d.predictTree(tr, i, -1, 0), d.y[i])
	}
	return sum / float64(len(oob))
}

// permutationImportance returns, for each of the first p features, the
// increase of the tree's out-of-bag error after permuting that feature
// across the out-of-bag samples. Features the tree never splits on cannot
// change a prediction and keep 0.
func (d *oobData) permutationImportance(tr *tree.Tree, oob []int, p int, rng *rand.Rand) []float64 {
	imp := make([]float64, p)
	if len(oob) == 0 {
		return imp
	}
	base := d.treeError(tr, oob)

	perm := make([]int, len(oob))
	for _, j := range tr.SplitFeatures() {
		if j >= p {
			continue
		}
		copy(perm, oob)
		rng.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })

		sum := 0.0
		for k, i := range oob {
			pred := d.predictTree(tr, i, j, d.cols[j][perm[k]])
			sum += d.loss(pred, d.y[i])
		}
		imp[j] = sum/float64(len(oob)) - base
	}
	return imp
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// withShadow appends a row-permuted copy of every column.
func withShadow(cols [][]float64, perm []int) [][]float64 {
	p := len(cols)
	out := make([][]float64, 2*p)
	copy(out, cols)
	for j := 0; j < p; j++ {
		shadow := make([]float64, len(perm))
		for i, src := range perm {
			shadow[i] = cols[j][src]
		}
		out[p+j] = shadow
	}
	return out
}
