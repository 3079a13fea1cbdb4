package ensemble

import (
	"github.com/YuminosukeSato/vitaforest/pkg/log"
)

// Tree types.
const (
	TreeTypeRegression     = "regression"
	TreeTypeClassification = "classification"
)

// Importance modes.
const (
	ImportanceNone              = "none"
	ImportanceImpurity          = "impurity"
	ImportanceImpurityCorrected = "impurity_corrected"
	ImportancePermutation       = "permutation"
)

// Option configures a RandomForest.
type Option func(*RandomForest)

// WithNTrees sets the number of trees.
func WithNTrees(n int) Option {
	return func(rf *RandomForest) {
		rf.nTrees = n
	}
}

// WithMtry sets the number of candidate features drawn per split.
// 0 uses floor(sqrt(p)).
func WithMtry(m int) Option {
	return func(rf *RandomForest) {
		rf.mtry = m
	}
}

// WithMinNodeSize sets the minimal node size to split at. 0 uses 5 for
// regression and 1 for classification.
func WithMinNodeSize(n int) Option {
	return func(rf *RandomForest) {
		rf.minNodeSize = n
	}
}

// WithMaxDepth limits tree depth. -1 means unlimited.
func WithMaxDepth(d int) Option {
	return func(rf *RandomForest) {
		rf.maxDepth = d
	}
}

// WithNumThreads sets the number of trees grown concurrently.
// Default 1; 0 uses runtime.NumCPU().
func WithNumThreads(n int) Option {
	return func(rf *RandomForest) {
		rf.numThreads = n
	}
}

// WithReplace selects sampling with (true) or without (false) replacement.
func WithReplace(replace bool) Option {
	return func(rf *RandomForest) {
		rf.replace = replace
	}
}

// WithSampleFraction sets the fraction of samples drawn per tree.
// 0 uses 1 with replacement and 0.632 without.
func WithSampleFraction(f float64) Option {
	return func(rf *RandomForest) {
		rf.sampleFraction = f
	}
}

// WithCaseWeights sets per-sample draw weights. Samples with weight 0 are
// never drawn into a tree.
func WithCaseWeights(w []float64) Option {
	return func(rf *RandomForest) {
		rf.caseWeights = append([]float64(nil), w...)
	}
}

// WithHoldout makes the out-of-bag set of every tree exactly the samples
// with case weight 0. Importance and prediction error are then computed on
// those samples only.
func WithHoldout(holdout bool) Option {
	return func(rf *RandomForest) {
		rf.holdout = holdout
	}
}

// WithImportanceMode sets the variable importance mode.
func WithImportanceMode(mode string) Option {
	return func(rf *RandomForest) {
		rf.importanceMode = mode
	}
}

// WithTreeType sets "regression" or "classification".
func WithTreeType(t string) Option {
	return func(rf *RandomForest) {
		rf.treeType = t
	}
}

// WithRandomState sets the seed. Tree t uses seed+t.
func WithRandomState(seed int64) Option {
	return func(rf *RandomForest) {
		rf.randomState = seed
	}
}

// WithLogger sets the logger used during training.
func WithLogger(logger log.Logger) Option {
	return func(rf *RandomForest) {
		rf.logger = logger
	}
}
