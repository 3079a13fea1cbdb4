package tree

import (
	"math"
	"math/rand"
	"testing"

	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func stepData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64((i*7)%5))
		if i < n/2 {
			y.Set(i, 0, 1)
		} else {
			y.Set(i, 0, 5)
		}
	}
	return X, y
}

func TestDecisionTreeRegressor_FitPredict(t *testing.T) {
	X, y := stepData(20)

	dt := NewDecisionTreeRegressor(WithMaxDepth(3))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	pred, err := dt.Predict(X)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	for i := 0; i < 20; i++ {
		if math.Abs(pred.At(i, 0)-y.At(i, 0)) > 1e-12 {
			t.Errorf("sample %d: expected %v, got %v", i, y.At(i, 0), pred.At(i, 0))
		}
	}

	if score := dt.Score(X, y); math.Abs(score-1) > 1e-12 {
		t.Errorf("expected R2 = 1 on a step function, got %v", score)
	}

	// a single split on feature 0 separates the step
	if dt.GetNLeaves() != 2 {
		t.Errorf("expected 2 leaves, got %d", dt.GetNLeaves())
	}
	imp := dt.GetFeatureImportances()
	if imp[0] != 1 || imp[1] != 0 {
		t.Errorf("expected all importance on feature 0, got %v", imp)
	}
}

func TestDecisionTreeRegressor_ConstantTarget(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	y := mat.NewDense(5, 1, []float64{3, 3, 3, 3, 3})

	dt := NewDecisionTreeRegressor()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	if dt.GetNLeaves() != 1 || dt.GetDepth() != 0 {
		t.Errorf("pure node must not be split: leaves=%d depth=%d", dt.GetNLeaves(), dt.GetDepth())
	}
}

func TestDecisionTreeRegressor_Validation(t *testing.T) {
	tests := []struct {
		name string
		X    mat.Matrix
		y    mat.Matrix
	}{
		{"row mismatch", mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(2, 1, []float64{1, 2})},
		{"non-finite input", mat.NewDense(2, 1, []float64{1, math.NaN()}), mat.NewDense(2, 1, []float64{1, 2})},
		{"multi-column target", mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 2, []float64{1, 2, 3, 4})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewDecisionTreeRegressor().Fit(tt.X, tt.y); err == nil {
				t.Error("expected an error")
			}
		})
	}

	dt := NewDecisionTreeRegressor(WithCriterion("gini"))
	X, y := stepData(4)
	err := dt.Fit(X, y)
	var verr *errors.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for classification criterion, got %v", err)
	}
}

func TestDecisionTreeRegressor_NotFitted(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	_, err := dt.Predict(mat.NewDense(1, 1, []float64{0}))
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError, got %v", err)
	}
}

func TestDecisionTreeRegressor_PredictDimensionMismatch(t *testing.T) {
	X, y := stepData(10)
	dt := NewDecisionTreeRegressor()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	_, err := dt.Predict(mat.NewDense(1, 3, nil))
	var de *errors.DimensionError
	if !errors.As(err, &de) {
		t.Errorf("expected DimensionError, got %v", err)
	}
}

func TestBuild_ZeroWeightSamplesIgnored(t *testing.T) {
	// The last two samples would force a split if they took part.
	cols := [][]float64{{0, 1, 2, 3, 4, 5}}
	y := []float64{1, 1, 1, 1, 100, 100}
	w := []float64{1, 2, 1, 1, 0, 0}

	tr, err := Build(cols, y, w, Config{Criterion: CriterionSquaredError, MaxDepth: -1, MinSamplesSplit: 2, MinSamplesLeaf: 1}, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if tr.NumLeaves() != 1 {
		t.Errorf("expected a single leaf, got %d", tr.NumLeaves())
	}
	if root := tr.Nodes[0]; root.Weight != 5 || root.Value[0] != 1 {
		t.Errorf("unexpected root weight/value: %v / %v", root.Weight, root.Value)
	}
}

func TestBuild_WeightsActAsMultiplicities(t *testing.T) {
	cols := [][]float64{{0, 1, 2}}
	y := []float64{0, 0, 6}

	tr, err := Build(cols, y, []float64{1, 1, 2}, Config{Criterion: CriterionSquaredError, MaxDepth: 0, MinSamplesSplit: 2, MinSamplesLeaf: 1}, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	// weighted mean = (0 + 0 + 2*6) / 4
	if got := tr.Nodes[0].Value[0]; math.Abs(got-3) > 1e-12 {
		t.Errorf("expected weighted mean 3, got %v", got)
	}
}

func TestBuild_ImpurityDecrease(t *testing.T) {
	cols := [][]float64{{0, 1, 2, 3}, {5, 5, 5, 5}}
	y := []float64{0, 0, 2, 2}
	w := []float64{1, 1, 1, 1}

	tr, err := Build(cols, y, w, Config{Criterion: CriterionSquaredError, MaxDepth: -1, MinSamplesSplit: 2, MinSamplesLeaf: 1}, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	// root SSE = 4 * 1, children are pure
	imp := tr.Importance()
	if math.Abs(imp[0]-4) > 1e-12 || imp[1] != 0 {
		t.Errorf("unexpected impurity decrease: %v", imp)
	}
	if got := tr.SplitFeatures(); len(got) != 1 || got[0] != 0 {
		t.Errorf("expected split features [0], got %v", got)
	}
	if thr := tr.Nodes[0].Threshold; thr <= 1 || thr >= 2 {
		t.Errorf("threshold %v must separate 1 and 2", thr)
	}
}

func TestBuild_MaxFeaturesIsDeterministicPerSeed(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	n, p := 60, 8
	cols := make([][]float64, p)
	for j := range cols {
		cols[j] = make([]float64, n)
		for i := range cols[j] {
			cols[j][i] = rng.NormFloat64()
		}
	}
	y := make([]float64, n)
	w := make([]float64, n)
	for i := range y {
		y[i] = cols[0][i] + cols[3][i] + 0.1*rng.NormFloat64()
		w[i] = 1
	}
	cfg := Config{Criterion: CriterionSquaredError, MaxDepth: -1, MinSamplesSplit: 5, MinSamplesLeaf: 1, MaxFeatures: 2}

	a, err := Build(cols, y, w, cfg, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	b, err := Build(cols, y, w, cfg, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(a.Nodes) != len(b.Nodes) {
		t.Fatalf("same seed produced different trees: %d vs %d nodes", len(a.Nodes), len(b.Nodes))
	}
	for i := range a.Nodes {
		if a.Nodes[i].Feature != b.Nodes[i].Feature || a.Nodes[i].Threshold != b.Nodes[i].Threshold {
			t.Fatalf("node %d differs between runs", i)
		}
	}

	if _, err := Build(cols, y, w, cfg, nil); err == nil {
		t.Error("expected an error when MaxFeatures needs an rng and none is given")
	}
}

func TestBuild_Errors(t *testing.T) {
	cfg := Config{Criterion: CriterionSquaredError, MaxDepth: -1, MinSamplesSplit: 2, MinSamplesLeaf: 1}

	if _, err := Build(nil, nil, nil, cfg, nil); err == nil {
		t.Error("expected error for no features")
	}
	if _, err := Build([][]float64{{1, 2}}, []float64{1, 2}, []float64{0, 0}, cfg, nil); !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("expected ErrEmptyData for all-zero weights, got %v", err)
	}
	if _, err := Build([][]float64{{1, 2}}, []float64{1, 2}, []float64{1}, cfg, nil); err == nil {
		t.Error("expected error for weight length mismatch")
	}
	if _, err := Build([][]float64{{1, 2}}, []float64{0, 1}, []float64{1, 1}, Config{Criterion: "gini"}, nil); err == nil {
		t.Error("expected error for gini without classes")
	}
}
