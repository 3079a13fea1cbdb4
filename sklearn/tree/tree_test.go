package tree

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// clusters returns nine points in three well separated clusters labelled
// with the given class values.
func clusters(labels [3]float64) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(9, 2, []float64{
		0, 0, 0, 1, 1, 0,
		3, 3, 3, 4, 4, 3,
		6, 6, 6, 7, 7, 6,
	})
	y := mat.NewDense(9, 1, nil)
	for i := 0; i < 9; i++ {
		y.Set(i, 0, labels[i/3])
	}
	return X, y
}

func TestDecisionTreeClassifier_Criteria(t *testing.T) {
	tests := []struct {
		name      string
		criterion string
		labels    [3]float64
	}{
		{"gini binary", CriterionGini, [3]float64{0, 1, 1}},
		{"gini multiclass", CriterionGini, [3]float64{0, 1, 2}},
		{"entropy multiclass", CriterionEntropy, [3]float64{0, 1, 2}},
		{"arbitrary label values", CriterionGini, [3]float64{-3, 7.5, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			X, y := clusters(tt.labels)
			dt := NewDecisionTreeClassifier(WithCriterion(tt.criterion))
			if err := dt.Fit(X, y); err != nil {
				t.Fatalf("Failed to fit: %v", err)
			}
			if score := dt.Score(X, y); score != 1 {
				t.Errorf("expected a perfect fit on separated clusters, got %v", score)
			}

			probas, err := dt.PredictProba(X)
			if err != nil {
				t.Fatalf("Failed to predict probabilities: %v", err)
			}
			rows, cols := probas.Dims()
			if cols != len(dt.Classes()) {
				t.Fatalf("expected %d probability columns, got %d", len(dt.Classes()), cols)
			}
			for i := 0; i < rows; i++ {
				sum := 0.0
				for j := 0; j < cols; j++ {
					sum += probas.At(i, j)
				}
				if math.Abs(sum-1) > 1e-9 {
					t.Errorf("probabilities of sample %d sum to %v", i, sum)
				}
			}

			pred, _ := dt.Predict(mat.NewDense(1, 2, []float64{6.5, 6.5}))
			if pred.At(0, 0) != tt.labels[2] {
				t.Errorf("(6.5, 6.5) should be %v, got %v", tt.labels[2], pred.At(0, 0))
			}
		})
	}
}

func TestDecisionTreeClassifier_InvalidCriterion(t *testing.T) {
	X, y := clusters([3]float64{0, 1, 2})
	err := NewDecisionTreeClassifier(WithCriterion(CriterionSquaredError)).Fit(X, y)

	var verr *errors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDecisionTreeClassifier_FitWeighted(t *testing.T) {
	X, y := clusters([3]float64{0, 1, 2})

	// the third cluster gets no weight, so it cannot become a leaf of its own
	w := []float64{1, 1, 1, 1, 1, 1, 0, 0, 0}
	dt := NewDecisionTreeClassifier()
	if err := dt.FitWeighted(X, y, w); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	probas, _ := dt.PredictProba(mat.NewDense(1, 2, []float64{6, 6}))
	if p := probas.At(0, 2); p != 0 {
		t.Errorf("class 2 had zero weight but got probability %v", p)
	}

	if err := dt.FitWeighted(X, y, make([]float64, 9)); !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("all-zero weights should be rejected, got %v", err)
	}
	if err := dt.FitWeighted(X, y, []float64{1, 2}); err == nil {
		t.Error("expected an error for a short weight vector")
	}
}

func TestDecisionTreeClassifier_FeatureImportance(t *testing.T) {
	// feature 0 decides the class, features 1 and 2 are noise
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 1, 1,
		0, 0, 1,
		0, 1, 0,
		1, 0, 0,
		1, 1, 1,
		1, 0, 1,
		1, 1, 0,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	imp := dt.GetFeatureImportances()
	if len(imp) != 3 {
		t.Fatalf("expected 3 importances, got %d", len(imp))
	}
	if imp[0] != 1 || imp[1] != 0 || imp[2] != 0 {
		t.Errorf("one pure split on feature 0 expected, got %v", imp)
	}
	if split := dt.Tree().SplitFeatures(); len(split) != 1 || split[0] != 0 {
		t.Errorf("unexpected split features %v", split)
	}
}

func TestDecisionTreeClassifier_StoppingRules(t *testing.T) {
	X := mat.NewDense(16, 2, nil)
	y := mat.NewDense(16, 1, nil)
	for i := 0; i < 16; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%4))
		y.Set(i, 0, float64(i%2))
	}

	tests := []struct {
		name      string
		opts      []Option
		maxDepth  int
		maxLeaves int
	}{
		{"max depth", []Option{WithMaxDepth(2)}, 2, 4},
		{"min samples", []Option{WithMinSamplesSplit(8), WithMinSamplesLeaf(4)}, 16, 4},
		{"stump", []Option{WithMaxDepth(1)}, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(tt.opts...)
			if err := dt.Fit(X, y); err != nil {
				t.Fatalf("Failed to fit: %v", err)
			}
			if d := dt.GetDepth(); d > tt.maxDepth {
				t.Errorf("depth %d exceeds %d", d, tt.maxDepth)
			}
			if l := dt.GetNLeaves(); l > tt.maxLeaves {
				t.Errorf("%d leaves, want at most %d", l, tt.maxLeaves)
			}
		})
	}
}

func TestDecisionTreeClassifier_GetSetParams(t *testing.T) {
	dt := NewDecisionTreeClassifier()

	params := dt.GetParams()
	if params["criterion"] != CriterionGini || params["min_samples_split"] != 2 {
		t.Errorf("unexpected defaults %v", params)
	}

	err := dt.SetParams(map[string]interface{}{
		"criterion":         CriterionEntropy,
		"max_depth":         5,
		"min_samples_split": 4,
		"min_samples_leaf":  2,
	})
	if err != nil {
		t.Fatalf("Failed to set params: %v", err)
	}
	if dt.criterion != CriterionEntropy || dt.maxDepth != 5 || dt.minSamplesSplit != 4 || dt.minSamplesLeaf != 2 {
		t.Errorf("params not applied: %+v", dt.params)
	}

	var verr *errors.ValidationError
	if err := dt.SetParams(map[string]interface{}{"max_depth": "deep"}); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for a string max_depth, got %v", err)
	}
}

func TestDecisionTreeClassifier_NotFitted(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	var nf *errors.NotFittedError
	if _, err := dt.Predict(X); !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError from Predict, got %v", err)
	}
	if _, err := dt.PredictProba(X); !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError from PredictProba, got %v", err)
	}
	if dt.GetFeatureImportances() != nil {
		t.Error("importances of an unfitted tree should be nil")
	}
}
