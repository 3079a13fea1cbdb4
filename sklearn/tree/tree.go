// Package tree implements CART decision trees for classification and
// regression. The same builder grows the trees of sklearn/ensemble forests:
// it supports per-sample weights (bootstrap multiplicities), per-node random
// feature subsets and records the weighted impurity decrease of every split.
package tree

import (
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const impurityEpsilon = 1e-12

// Node is a single node of a fitted tree. Leaves have Feature == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int

	// Value is the weighted class distribution for classification trees and
	// a single weighted mean for regression trees.
	Value []float64

	Impurity float64
	Weight   float64
	Depth    int
}

// IsLeaf reports whether the node is terminal.
func (n *Node) IsLeaf() bool {
	return n.Feature < 0
}

// Tree is a fitted decision tree.
type Tree struct {
	Nodes       []Node
	NumFeatures int
	// NumClasses is 0 for regression trees.
	NumClasses int

	importance []float64
}

// Config controls tree growth.
type Config struct {
	// Criterion is "gini" or "entropy" for classification and
	// "squared_error" for regression.
	Criterion string
	// MaxDepth limits depth; -1 grows until other limits apply.
	MaxDepth int
	// MinSamplesSplit is the minimal node weight to attempt a split.
	MinSamplesSplit float64
	// MinSamplesLeaf is the minimal weight of each child of a split.
	MinSamplesLeaf float64
	// MaxFeatures is the number of randomly drawn candidate features per
	// node. <= 0 or >= the number of features means all features.
	MaxFeatures int
	// NumClasses must be set for classification criteria; y then holds
	// class indices in [0, NumClasses).
	NumClasses int
}

// Build grows a tree on column-major data. cols[j][i] is feature j of sample
// i. Samples with weight <= 0 do not take part. rng is only consulted when
// cfg.MaxFeatures restricts the candidate set.
func Build(cols [][]float64, y, weight []float64, cfg Config, rng *rand.Rand) (*Tree, error) {
	if len(cols) == 0 {
		return nil, errors.NewValueError("tree.Build", "no features")
	}
	n := len(y)
	if len(weight) != n {
		return nil, errors.NewDimensionError("tree.Build", n, len(weight), 0)
	}
	for j := range cols {
		if len(cols[j]) != n {
			return nil, errors.NewDimensionError("tree.Build", n, len(cols[j]), 0)
		}
	}

	crit, err := newCriterion(cfg.Criterion, cfg.NumClasses)
	if err != nil {
		return nil, err
	}

	idx := make([]int, 0, n)
	for i, w := range weight {
		if w > 0 {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "tree.Build: all sample weights are zero")
	}

	p := len(cols)
	b := &builder{
		cols:     cols,
		y:        y,
		w:        weight,
		cfg:      cfg,
		crit:     crit,
		rng:      rng,
		features: make([]int, p),
		tree: &Tree{
			NumFeatures: p,
			NumClasses:  cfg.NumClasses,
			importance:  make([]float64, p),
		},
	}
	for j := range b.features {
		b.features[j] = j
	}
	if b.cfg.MaxFeatures > 0 && b.cfg.MaxFeatures < p && rng == nil {
		return nil, errors.NewValueError("tree.Build", "rng is required when MaxFeatures < number of features")
	}

	b.grow(idx, 0)
	return b.tree, nil
}

// Leaf descends the tree using at(feature) as the sample's feature values.
func (t *Tree) Leaf(at func(feature int) float64) *Node {
	n := &t.Nodes[0]
	for !n.IsLeaf() {
		if at(n.Feature) <= n.Threshold {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n
}

// Importance returns the raw weighted impurity decrease per feature.
func (t *Tree) Importance() []float64 {
	out := make([]float64, len(t.importance))
	copy(out, t.importance)
	return out
}

// SplitFeatures returns the distinct features used by at least one split,
// in increasing order.
func (t *Tree) SplitFeatures() []int {
	seen := make(map[int]struct{})
	for i := range t.Nodes {
		if !t.Nodes[i].IsLeaf() {
			seen[t.Nodes[i].Feature] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Ints(out)
	return out
}

// Depth returns the depth of the deepest leaf; a single leaf has depth 0.
func (t *Tree) Depth() int {
	depth := 0
	for i := range t.Nodes {
		if t.Nodes[i].Depth > depth {
			depth = t.Nodes[i].Depth
		}
	}
	return depth
}

// NumLeaves returns the number of terminal nodes.
func (t *Tree) NumLeaves() int {
	leaves := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			leaves++
		}
	}
	return leaves
}

// Columns copies X into column-major form.
func Columns(X mat.Matrix) [][]float64 {
	_, c := X.Dims()
	cols := make([][]float64, c)
	for j := 0; j < c; j++ {
		cols[j] = mat.Col(nil, j, X)
	}
	return cols
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

type builder struct {
	cols     [][]float64
	y        []float64
	w        []float64
	cfg      Config
	crit     criterion
	rng      *rand.Rand
	features []int
	tree     *Tree
}

func (b *builder) grow(idx []int, depth int) int {
	stats := b.crit.stats(idx, b.y, b.w)

	nodeID := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{
		Feature:  -1,
		Left:     -1,
		Right:    -1,
		Value:    stats.value,
		Impurity: stats.impurity,
		Weight:   stats.weight,
		Depth:    depth,
	})

	if b.stop(stats, depth) {
		return nodeID
	}

	best, ok := b.bestSplit(idx, stats)
	if !ok {
		return nodeID
	}

	nLeft := partition(idx, b.cols[best.feature], best.threshold)
	left := b.grow(idx[:nLeft], depth+1)
	right := b.grow(idx[nLeft:], depth+1)

	// Nodes may have been reallocated by the recursive calls.
	node := &b.tree.Nodes[nodeID]
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = left
	node.Right = right
	b.tree.importance[best.feature] += best.gain

	return nodeID
}

func (b *builder) stop(stats nodeStats, depth int) bool {
	if b.cfg.MaxDepth >= 0 && depth >= b.cfg.MaxDepth {
		return true
	}
	if stats.weight < b.cfg.MinSamplesSplit || stats.weight < 2*b.cfg.MinSamplesLeaf {
		return true
	}
	return stats.impurity <= impurityEpsilon
}

func (b *builder) candidates() []int {
	p := len(b.features)
	m := b.cfg.MaxFeatures
	if m <= 0 || m >= p {
		return b.features
	}
	// partial Fisher-Yates over the shared scratch slice
	for i := 0; i < m; i++ {
		j := i + b.rng.Intn(p-i)
		b.features[i], b.features[j] = b.features[j], b.features[i]
	}
	return b.features[:m]
}

func (b *builder) bestSplit(idx []int, parent nodeStats) (split, bool) {
	best := split{feature: -1}
	found := false

	candidates := b.candidates()
	// candidates may alias b.features; iterate over a stable copy so that
	// results do not depend on later shuffles.
	order := make([]int, len(candidates))
	copy(order, candidates)
	if b.cfg.MaxFeatures <= 0 || b.cfg.MaxFeatures >= len(b.features) {
		sort.Ints(order)
	}

	for _, j := range order {
		col := b.cols[j]
		sort.Slice(idx, func(a, c int) bool { return col[idx[a]] < col[idx[c]] })
		if col[idx[0]] == col[idx[len(idx)-1]] {
			continue
		}

		thr, gain, ok := b.crit.sweep(idx, col, b.y, b.w, parent, b.cfg.MinSamplesLeaf)
		if !ok {
			continue
		}
		if !found || gain > best.gain {
			best = split{feature: j, threshold: thr, gain: gain}
			found = true
		}
	}

	if found && best.gain < -impurityEpsilon {
		return best, false
	}
	return best, found
}

// partition reorders idx so that samples with col <= thr come first and
// returns their count.
func partition(idx []int, col []float64, thr float64) int {
	i, j := 0, len(idx)-1
	for i <= j {
		if col[idx[i]] <= thr {
			i++
			continue
		}
		idx[i], idx[j] = idx[j], idx[i]
		j--
	}
	return i
}

// midpoint returns a threshold strictly separating lo < hi.
func midpoint(lo, hi float64) float64 {
	mid := lo + (hi-lo)/2
	if mid >= hi {
		return lo
	}
	return mid
}
