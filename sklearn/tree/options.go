package tree

import (
	"github.com/YuminosukeSato/vitaforest/pkg/errors"
)

// params holds the hyperparameters shared by the classifier and regressor.
type params struct {
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
	randomState     int64
}

// Option configures a decision tree.
type Option func(*params)

// WithCriterion sets the split criterion ("gini", "entropy" or "squared_error").
func WithCriterion(criterion string) Option {
	return func(p *params) {
		p.criterion = criterion
	}
}

// WithMaxDepth sets the maximum depth. -1 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(p *params) {
		p.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(p *params) {
		p.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(p *params) {
		p.minSamplesLeaf = n
	}
}

// WithMaxFeatures sets the number of features drawn at random per node.
// 0 uses every feature.
func WithMaxFeatures(n int) Option {
	return func(p *params) {
		p.maxFeatures = n
	}
}

// WithRandomState sets the seed used for feature subsampling.
func WithRandomState(seed int64) Option {
	return func(p *params) {
		p.randomState = seed
	}
}

func defaultParams(criterion string) params {
	return params{
		criterion:       criterion,
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     0,
		randomState:     42,
	}
}

func (p *params) validate() error {
	if p.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", p.minSamplesSplit)
	}
	if p.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", p.minSamplesLeaf)
	}
	if p.maxFeatures < 0 {
		return errors.NewValidationError("max_features", "must be non-negative", p.maxFeatures)
	}
	return nil
}

func (p *params) config(nClasses int) Config {
	return Config{
		Criterion:       p.criterion,
		MaxDepth:        p.maxDepth,
		MinSamplesSplit: float64(p.minSamplesSplit),
		MinSamplesLeaf:  float64(p.minSamplesLeaf),
		MaxFeatures:     p.maxFeatures,
		NumClasses:      nClasses,
	}
}

func (p *params) get() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         p.criterion,
		"max_depth":         p.maxDepth,
		"min_samples_split": p.minSamplesSplit,
		"min_samples_leaf":  p.minSamplesLeaf,
		"max_features":      p.maxFeatures,
		"random_state":      p.randomState,
	}
}

func (p *params) set(values map[string]interface{}) error {
	for key, value := range values {
		switch key {
		case "criterion":
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			p.criterion = v
		case "max_depth", "min_samples_split", "min_samples_leaf", "max_features":
			v, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be an int", value)
			}
			switch key {
			case "max_depth":
				p.maxDepth = v
			case "min_samples_split":
				p.minSamplesSplit = v
			case "min_samples_leaf":
				p.minSamplesLeaf = v
			default:
				p.maxFeatures = v
			}
		case "random_state":
			switch v := value.(type) {
			case int:
				p.randomState = int64(v)
			case int64:
				p.randomState = v
			default:
				return errors.NewValidationError(key, "must be an integer", value)
			}
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}
