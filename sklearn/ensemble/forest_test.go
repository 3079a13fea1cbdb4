package ensemble

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// linearData returns y = 3*x0 + 2*x1 + noise with p-2 pure noise features.
func linearData(n, p int, seed int64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, p, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
		y.Set(i, 0, 3*X.At(i, 0)+2*X.At(i, 1)+0.1*rng.NormFloat64())
	}
	return X, y
}

func blobs(n int, seed int64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		label := float64(i % 2)
		X.Set(i, 0, 4*label+rng.NormFloat64())
		X.Set(i, 1, rng.NormFloat64())
		X.Set(i, 2, rng.NormFloat64())
		// labels 10 and 20 check that predictions map back to the originals
		y.Set(i, 0, 10+10*label)
	}
	return X, y
}

func TestRandomForest_RegressionPermutation(t *testing.T) {
	X, y := linearData(150, 6, 1)

	rf := NewRandomForest(
		WithNTrees(60),
		WithMtry(3),
		WithImportanceMode(ImportancePermutation),
		WithRandomState(3),
	)
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	imp, err := rf.VariableImportance()
	if err != nil {
		t.Fatalf("VariableImportance failed: %v", err)
	}
	if len(imp) != 6 {
		t.Fatalf("expected 6 importances, got %d", len(imp))
	}
	for j := 2; j < 6; j++ {
		if imp[0] <= imp[j] || imp[1] <= imp[j] {
			t.Errorf("informative features should dominate noise feature %d: %v", j, imp)
		}
	}

	oob, err := rf.OOBError()
	if err != nil {
		t.Fatalf("OOBError failed: %v", err)
	}
	if math.IsNaN(oob) || oob <= 0 {
		t.Errorf("expected a positive finite OOB error, got %v", oob)
	}
	if score := rf.Score(X, y); score < 0.8 {
		t.Errorf("training R2 too low: %v", score)
	}
}

func TestRandomForest_ImpurityCorrected(t *testing.T) {
	X, y := linearData(150, 12, 2)

	rf := NewRandomForest(
		WithNTrees(80),
		WithMtry(4),
		WithImportanceMode(ImportanceImpurityCorrected),
		WithRandomState(5),
	)
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	imp, err := rf.VariableImportance()
	if err != nil {
		t.Fatalf("VariableImportance failed: %v", err)
	}
	if len(imp) != 12 {
		t.Fatalf("expected 12 importances (shadow columns excluded), got %d", len(imp))
	}

	maxNoise := 0.0
	for j := 2; j < 12; j++ {
		maxNoise = math.Max(maxNoise, math.Abs(imp[j]))
	}
	if imp[0] <= maxNoise || imp[1] <= maxNoise {
		t.Errorf("informative features should exceed |noise| importance: %v", imp)
	}

	pred, err := rf.Predict(X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if r, c := pred.Dims(); r != 150 || c != 1 {
		t.Errorf("unexpected prediction shape (%d, %d)", r, c)
	}

	// a row gets the same prediction alone and inside any batch
	for _, i := range []int{0, 17, 149} {
		single, err := rf.Predict(X.Slice(i, i+1, 0, 12))
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}
		if single.At(0, 0) != pred.At(i, 0) {
			t.Errorf("row %d: alone %v, in batch %v", i, single.At(0, 0), pred.At(i, 0))
		}
	}
	tail, err := rf.Predict(X.Slice(100, 150, 0, 12))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	for i := 0; i < 50; i++ {
		if tail.At(i, 0) != pred.At(100+i, 0) {
			t.Errorf("row %d: %v in a sub-batch, %v in the full batch", 100+i, tail.At(i, 0), pred.At(100+i, 0))
		}
	}
}

func TestRandomForest_Classification(t *testing.T) {
	X, y := blobs(120, 4)

	rf := NewRandomForest(
		WithNTrees(40),
		WithTreeType(TreeTypeClassification),
		WithImportanceMode(ImportanceImpurity),
	)
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	pred, err := rf.Predict(X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	for i := 0; i < 120; i++ {
		if v := pred.At(i, 0); v != 10 && v != 20 {
			t.Fatalf("prediction %v is not an original label", v)
		}
	}
	if acc := rf.Score(X, y); acc < 0.9 {
		t.Errorf("training accuracy too low: %v", acc)
	}
	oob, _ := rf.OOBError()
	if oob < 0 || oob > 0.2 {
		t.Errorf("unexpected OOB misclassification rate: %v", oob)
	}
	if classes := rf.Classes(); len(classes) != 2 || classes[0] != 10 || classes[1] != 20 {
		t.Errorf("unexpected classes %v", classes)
	}
}

func TestRandomForest_HoldoutUsesZeroWeightSamples(t *testing.T) {
	X, y := linearData(100, 5, 6)
	w := make([]float64, 100)
	for i := range w {
		if i%2 == 0 {
			w[i] = 1
		}
	}

	rf := NewRandomForest(
		WithNTrees(30),
		WithCaseWeights(w),
		WithHoldout(true),
		WithImportanceMode(ImportancePermutation),
		WithRandomState(11),
	)
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	for _, tr := range rf.Trees() {
		for i := range tr.Nodes {
			if tr.Nodes[i].Weight > 100 {
				t.Fatalf("node weight %v exceeds the number of draws", tr.Nodes[i].Weight)
			}
		}
	}
	oob, _ := rf.OOBError()
	if math.IsNaN(oob) {
		t.Error("holdout samples must yield an OOB error")
	}
	imp, _ := rf.VariableImportance()
	if imp[0] <= 0 {
		t.Errorf("holdout permutation importance of x0 should be positive: %v", imp)
	}
}

func TestRandomForest_DeterministicAcrossThreads(t *testing.T) {
	X, y := linearData(80, 6, 7)

	fit := func(threads int) []float64 {
		rf := NewRandomForest(
			WithNTrees(25),
			WithNumThreads(threads),
			WithImportanceMode(ImportancePermutation),
			WithRandomState(13),
		)
		if err := rf.Fit(X, y); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		imp, _ := rf.VariableImportance()
		return imp
	}

	a, b := fit(1), fit(4)
	for j := range a {
		if a[j] != b[j] {
			t.Fatalf("importance differs between 1 and 4 threads at %d: %v vs %v", j, a[j], b[j])
		}
	}
}

func TestRandomForest_Validation(t *testing.T) {
	X, y := linearData(20, 3, 8)

	tests := []struct {
		name string
		opts []Option
	}{
		{"mtry too large", []Option{WithMtry(4)}},
		{"unknown importance", []Option{WithImportanceMode("gain")}},
		{"unknown tree type", []Option{WithTreeType("survival")}},
		{"no trees", []Option{WithNTrees(0)}},
		{"case weights length", []Option{WithCaseWeights([]float64{1, 1})}},
		{"negative case weight", []Option{WithCaseWeights(append(make([]float64, 19), -1))}},
		{"all zero case weights", []Option{WithCaseWeights(make([]float64, 20))}},
		{"sample fraction", []Option{WithSampleFraction(1.5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rf := NewRandomForest(append([]Option{WithNTrees(5)}, tt.opts...)...)
			if err := rf.Fit(X, y); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestRandomForest_NotFitted(t *testing.T) {
	rf := NewRandomForest()
	var nf *errors.NotFittedError

	if _, err := rf.VariableImportance(); !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError, got %v", err)
	}
	if _, err := rf.Predict(mat.NewDense(1, 1, nil)); !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError, got %v", err)
	}
	if _, err := rf.OOBError(); !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError, got %v", err)
	}
}

func TestRandomForest_ImportanceNone(t *testing.T) {
	X, y := linearData(30, 3, 9)
	rf := NewRandomForest(WithNTrees(5))
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, err := rf.VariableImportance(); err == nil {
		t.Error("expected an error for importance mode 'none'")
	}
}

func TestRandomForest_SetParams(t *testing.T) {
	rf := NewRandomForest()

	var verr *errors.ValidationError
	if err := rf.SetParams(map[string]interface{}{"holdout": "yes"}); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for non-boolean holdout, got %v", err)
	}
	if err := rf.SetParams(map[string]interface{}{"unknown": 1}); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for unknown key, got %v", err)
	}

	err := rf.SetParams(map[string]interface{}{
		"n_trees":    10,
		"holdout":    true,
		"importance": ImportancePermutation,
		"mtry":       2,
	})
	if err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	params := rf.GetParams()
	if params["n_trees"].(int) != 10 || params["holdout"].(bool) != true || params["mtry"].(int) != 2 {
		t.Errorf("params not updated: %v", params)
	}
	if md := rf.Metadata(); md.ImportanceMode != ImportancePermutation || !md.Holdout {
		t.Errorf("metadata out of sync: %+v", md)
	}

	// a bad value leaves the valid keys of the same call unapplied
	err = rf.SetParams(map[string]interface{}{
		"n_trees":      99,
		"mtry":         7,
		"tree_type":    TreeTypeClassification,
		"random_state": "seed",
	})
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for a string random_state, got %v", err)
	}
	params = rf.GetParams()
	if params["n_trees"].(int) != 10 || params["mtry"].(int) != 2 || params["tree_type"].(string) != TreeTypeRegression {
		t.Errorf("rejected call changed the forest: %v", params)
	}
}

func TestRandomForest_ContextCancelled(t *testing.T) {
	X, y := linearData(50, 4, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rf := NewRandomForest(WithNTrees(20), WithNumThreads(2))
	if err := rf.FitContext(ctx, X, y); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}
