// Package datasets loads, writes and simulates numeric data sets for
// variable selection.
package datasets

import (
	"fmt"
	"math/rand/v2"

	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// Dataset is a design matrix with a response column.
type Dataset struct {
	X            *mat.Dense
	Y            *mat.Dense
	FeatureNames []string
	TargetName   string
	// ClassLabels maps class codes (0, 1, ...) back to the original labels
	// when the target was categorical.
	ClassLabels []string
	// Informative lists the features that carry signal (simulated data only).
	Informative []string
}

// Dims returns the number of samples and features.
func (d *Dataset) Dims() (int, int) {
	return d.X.Dims()
}

// SimulationConfig describes correlated-groups regression data.
type SimulationConfig struct {
	NumSamples  int
	NumFeatures int
	// GroupSizes are the sizes of the informative groups; the remaining
	// features are independent noise.
	GroupSizes []int
	// Correlation within an informative group.
	Correlation float64
	// Betas holds one effect per group.
	Betas   []float64
	NoiseSD float64
	Seed    uint64
}

// DefaultSimulationConfig returns 100 samples, 500 features and six groups
// of ten features with within-group correlation 0.9.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		NumSamples:  100,
		NumFeatures: 500,
		GroupSizes:  []int{10, 10, 10, 10, 10, 10},
		Correlation: 0.9,
		Betas:       []float64{2, 4, 2, -2, -4, -2},
		NoiseSD:     1,
		Seed:        42,
	}
}

func (c SimulationConfig) validate() error {
	if c.NumSamples < 1 {
		return errors.NewValidationError("num_samples", "must be positive", c.NumSamples)
	}
	if len(c.GroupSizes) != len(c.Betas) {
		return errors.NewDimensionError("SimulateCorrelated", len(c.GroupSizes), len(c.Betas), 1)
	}
	informative := 0
	for _, g := range c.GroupSizes {
		if g < 1 {
			return errors.NewValidationError("group_sizes", "groups must not be empty", g)
		}
		informative += g
	}
	if informative > c.NumFeatures {
		return errors.NewValidationError("num_features", "must cover all informative groups", c.NumFeatures)
	}
	if c.Correlation < 0 || c.Correlation >= 1 {
		return errors.NewValidationError("correlation", "must be in [0, 1)", c.Correlation)
	}
	if c.NoiseSD < 0 {
		return errors.NewValidationError("noise_sd", "must be non-negative", c.NoiseSD)
	}
	return nil
}

// SimulateCorrelated draws each informative group from a multivariate
// normal with unit variances and constant correlation, fills the remaining
// columns with independent N(0, 1) noise and sets
// y = sum_g beta_g * mean(group g) + N(0, NoiseSD^2).
// Features are named X1, X2, ...; the informative groups come first.
func SimulateCorrelated(cfg SimulationConfig) (*Dataset, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9E3779B97F4A7C15)
	n, p := cfg.NumSamples, cfg.NumFeatures

	X := mat.NewDense(n, p, nil)
	y := mat.NewDense(n, 1, nil)
	names := make([]string, p)
	for j := range names {
		names[j] = fmt.Sprintf("X%d", j+1)
	}

	col := 0
	var informative []string
	for g, size := range cfg.GroupSizes {
		sigma := mat.NewSymDense(size, nil)
		for a := 0; a < size; a++ {
			for b := a; b < size; b++ {
				if a == b {
					sigma.SetSym(a, b, 1)
				} else {
					sigma.SetSym(a, b, cfg.Correlation)
				}
			}
		}
		dist, ok := distmv.NewNormal(make([]float64, size), sigma, src)
		if !ok {
			return nil, errors.NewNumericalInstabilityError("SimulateCorrelated: group covariance", []float64{cfg.Correlation})
		}

		row := make([]float64, size)
		for i := 0; i < n; i++ {
			dist.Rand(row)
			mean := 0.0
			for k, v := range row {
				X.Set(i, col+k, v)
				mean += v
			}
			y.Set(i, 0, y.At(i, 0)+cfg.Betas[g]*mean/float64(size))
		}
		informative = append(informative, names[col:col+size]...)
		col += size
	}

	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	for i := 0; i < n; i++ {
		for j := col; j < p; j++ {
			X.Set(i, j, noise.Rand())
		}
	}
	if cfg.NoiseSD > 0 {
		eps := distuv.Normal{Mu: 0, Sigma: cfg.NoiseSD, Src: src}
		for i := 0; i < n; i++ {
			y.Set(i, 0, y.At(i, 0)+eps.Rand())
		}
	}

	return &Dataset{
		X:            X,
		Y:            y,
		FeatureNames: names,
		TargetName:   "y",
		Informative:  informative,
	}, nil
}
