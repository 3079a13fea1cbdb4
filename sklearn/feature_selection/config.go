package feature_selection

import (
	"io"
	"math"

	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"github.com/YuminosukeSato/vitaforest/pkg/log"
	"github.com/YuminosukeSato/vitaforest/significance"
	"github.com/YuminosukeSato/vitaforest/sklearn/ensemble"
	"gopkg.in/yaml.v3"
)

// p-value methods.
const (
	PValueJanitza = "janitza"
	PValueAltmann = "altmann"
)

// ForestConfig holds the forest hyperparameters shared by the selection
// procedures. Split-variable count and node size are given as proportions
// of the feature and sample counts.
type ForestConfig struct {
	NumTrees     int     `yaml:"num_trees" json:"num_trees"`
	MtryProp     float64 `yaml:"mtry_prop" json:"mtry_prop"`
	NodeSizeProp float64 `yaml:"nodesize_prop" json:"nodesize_prop"`
	NumThreads   int     `yaml:"num_threads" json:"num_threads"`
	Replace      bool    `yaml:"replace" json:"replace"`
	// SampleFraction 0 uses the forest default.
	SampleFraction float64 `yaml:"sample_fraction" json:"sample_fraction"`
	TreeType       string  `yaml:"tree_type" json:"tree_type"`
	RandomState    int64   `yaml:"random_state" json:"random_state"`
}

// DefaultForestConfig returns 500 trees, mtry.prop 0.2, nodesize.prop 0.1,
// one thread, sampling with replacement and regression trees.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		NumTrees:     500,
		MtryProp:     0.2,
		NodeSizeProp: 0.1,
		NumThreads:   1,
		Replace:      true,
		TreeType:     ensemble.TreeTypeRegression,
		RandomState:  42,
	}
}

// Validate checks the hyperparameters.
func (c ForestConfig) Validate() error {
	if c.NumTrees < 1 {
		return errors.NewValidationError("num_trees", "must be at least 1", c.NumTrees)
	}
	if !(c.MtryProp > 0 && c.MtryProp <= 1) {
		return errors.NewValidationError("mtry_prop", "must be in (0, 1]", c.MtryProp)
	}
	if !(c.NodeSizeProp > 0 && c.NodeSizeProp <= 1) {
		return errors.NewValidationError("nodesize_prop", "must be in (0, 1]", c.NodeSizeProp)
	}
	if c.NumThreads < 0 {
		return errors.NewValidationError("num_threads", "must be non-negative", c.NumThreads)
	}
	if c.SampleFraction < 0 || c.SampleFraction > 1 {
		return errors.NewValidationError("sample_fraction", "must be in (0, 1]", c.SampleFraction)
	}
	if c.TreeType != ensemble.TreeTypeRegression && c.TreeType != ensemble.TreeTypeClassification {
		return errors.NewValidationError("tree_type", "must be 'regression' or 'classification'", c.TreeType)
	}
	return nil
}

// Mtry returns max(1, floor(MtryProp * p)).
func (c ForestConfig) Mtry(p int) int {
	return int(math.Max(1, math.Floor(c.MtryProp*float64(p))))
}

// MinNodeSize returns max(1, floor(NodeSizeProp * n)).
func (c ForestConfig) MinNodeSize(n int) int {
	return int(math.Max(1, math.Floor(c.NodeSizeProp*float64(n))))
}

// newForest builds a forest for an n x p problem.
func (c ForestConfig) newForest(n, p int, importance string, seed int64, logger log.Logger, extra ...ensemble.Option) *ensemble.RandomForest {
	opts := []ensemble.Option{
		ensemble.WithNTrees(c.NumTrees),
		ensemble.WithMtry(c.Mtry(p)),
		ensemble.WithMinNodeSize(c.MinNodeSize(n)),
		ensemble.WithNumThreads(c.NumThreads),
		ensemble.WithReplace(c.Replace),
		ensemble.WithSampleFraction(c.SampleFraction),
		ensemble.WithTreeType(c.TreeType),
		ensemble.WithImportanceMode(importance),
		ensemble.WithRandomState(seed),
		ensemble.WithLogger(logger),
	}
	return ensemble.NewRandomForest(append(opts, extra...)...)
}

// Config is the complete selector configuration, as read from YAML.
//
//	forest:
//	  num_trees: 1000
//	  mtry_prop: 0.2
//	  nodesize_prop: 0.1
//	importance: impurity_corrected
//	p_threshold: 0.05
//	fdr_adjust: true
type Config struct {
	Forest          ForestConfig `yaml:"forest" json:"forest"`
	Importance      string       `yaml:"importance" json:"importance"`
	Holdout         bool         `yaml:"holdout" json:"holdout"`
	PThreshold      float64      `yaml:"p_threshold" json:"p_threshold"`
	FDRAdjust       bool         `yaml:"fdr_adjust" json:"fdr_adjust"`
	FDRMethod       string       `yaml:"fdr_method" json:"fdr_method"`
	ConfLevel       float64      `yaml:"conf_level" json:"conf_level"`
	PValueMethod    string       `yaml:"p_value_method" json:"p_value_method"`
	NumPermutations int          `yaml:"num_permutations" json:"num_permutations"`
}

// DefaultConfig returns the selector defaults.
func DefaultConfig() Config {
	return Config{
		Forest:          DefaultForestConfig(),
		Importance:      ensemble.ImportanceImpurityCorrected,
		PThreshold:      0.05,
		FDRMethod:       significance.AdjustBH,
		ConfLevel:       significance.DefaultConfLevel,
		PValueMethod:    PValueJanitza,
		NumPermutations: 100,
	}
}

// LoadConfig decodes YAML on top of DefaultConfig. Unknown keys are rejected.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "decode selector config")
	}
	return cfg, nil
}

// Options converts the configuration into selector options.
func (c Config) Options() []Option {
	return []Option{
		WithForestConfig(c.Forest),
		WithImportance(c.Importance),
		WithHoldout(c.Holdout),
		WithPThreshold(c.PThreshold),
		WithFDRAdjust(c.FDRAdjust),
		WithFDRMethod(c.FDRMethod),
		WithConfLevel(c.ConfLevel),
		WithPValueMethod(c.PValueMethod),
		WithNumPermutations(c.NumPermutations),
	}
}
