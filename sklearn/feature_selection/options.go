package feature_selection

import (
	"github.com/YuminosukeSato/vitaforest/pkg/log"
)

// Option configures a VitaSelector.
type Option func(*VitaSelector)

// WithPThreshold sets the p-value threshold (default 0.05).
func WithPThreshold(t float64) Option {
	return func(s *VitaSelector) {
		s.pThreshold = t
	}
}

// WithFDRAdjust enables multiple-testing adjustment of the p-values.
func WithFDRAdjust(adjust bool) Option {
	return func(s *VitaSelector) {
		s.fdrAdjust = adjust
	}
}

// WithFDRMethod sets the adjustment method ("BH", "BY", "bonferroni", "holm", "none").
func WithFDRMethod(method string) Option {
	return func(s *VitaSelector) {
		s.fdrMethod = method
	}
}

// WithForestConfig replaces all forest hyperparameters.
func WithForestConfig(cfg ForestConfig) Option {
	return func(s *VitaSelector) {
		s.forest = cfg
	}
}

// WithNumTrees sets the number of trees per forest.
func WithNumTrees(n int) Option {
	return func(s *VitaSelector) {
		s.forest.NumTrees = n
	}
}

// WithMtryProp sets the split-variable proportion.
func WithMtryProp(prop float64) Option {
	return func(s *VitaSelector) {
		s.forest.MtryProp = prop
	}
}

// WithNodeSizeProp sets the node-size proportion.
func WithNodeSizeProp(prop float64) Option {
	return func(s *VitaSelector) {
		s.forest.NodeSizeProp = prop
	}
}

// WithNumThreads sets the number of trees grown concurrently.
func WithNumThreads(n int) Option {
	return func(s *VitaSelector) {
		s.forest.NumThreads = n
	}
}

// WithReplace selects sampling with or without replacement.
func WithReplace(replace bool) Option {
	return func(s *VitaSelector) {
		s.forest.Replace = replace
	}
}

// WithSampleFraction sets the fraction of samples drawn per tree.
func WithSampleFraction(f float64) Option {
	return func(s *VitaSelector) {
		s.forest.SampleFraction = f
	}
}

// WithTreeType sets "regression" or "classification".
func WithTreeType(t string) Option {
	return func(s *VitaSelector) {
		s.forest.TreeType = t
	}
}

// WithImportance sets the importance mode: "impurity_corrected" for a
// single forest, "permutation" with holdout forests.
func WithImportance(mode string) Option {
	return func(s *VitaSelector) {
		s.importance = mode
	}
}

// WithHoldout switches to two holdout forests.
func WithHoldout(holdout bool) Option {
	return func(s *VitaSelector) {
		s.holdout = holdout
	}
}

// WithRandomState sets the seed.
func WithRandomState(seed int64) Option {
	return func(s *VitaSelector) {
		s.forest.RandomState = seed
	}
}

// WithFeatureNames names the columns of X. Defaults are X1, X2, ...
func WithFeatureNames(names []string) Option {
	return func(s *VitaSelector) {
		s.featureNames = append([]string(nil), names...)
	}
}

// WithConfLevel sets the confidence level of the p-value intervals.
func WithConfLevel(level float64) Option {
	return func(s *VitaSelector) {
		s.confLevel = level
	}
}

// WithPValueMethod sets "janitza" (default) or "altmann".
func WithPValueMethod(method string) Option {
	return func(s *VitaSelector) {
		s.pValueMethod = method
	}
}

// WithNumPermutations sets the number of response permutations of the
// altmann method.
func WithNumPermutations(n int) Option {
	return func(s *VitaSelector) {
		s.numPermutations = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(s *VitaSelector) {
		s.logger = logger
	}
}
