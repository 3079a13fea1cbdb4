package feature_selection

import (
	"context"
	"math/rand"
	"time"

	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"github.com/YuminosukeSato/vitaforest/pkg/log"
	"github.com/YuminosukeSato/vitaforest/sklearn/ensemble"
	"gonum.org/v1/gonum/mat"
)

// HoldoutResult is the combined importance of two holdout forests.
type HoldoutResult struct {
	// Importance is the elementwise mean of ImportanceA and ImportanceB.
	Importance  []float64
	ImportanceA []float64
	ImportanceB []float64
	// Weights is the 0/1 case-weight vector of forest A; forest B used 1-w.
	Weights        []float64
	TreeType       string
	ImportanceMode string
	Forests        [2]*ensemble.RandomForest
}

// HoldoutImportance splits the samples into two random halves with one fair
// coin flip per sample, trains one forest per half and evaluates each
// forest's permutation importance on the other half. importance must be
// "permutation".
func HoldoutImportance(X, y mat.Matrix, cfg ForestConfig, importance string) (*HoldoutResult, error) {
	return holdoutImportance(context.Background(), X, y, cfg, importance, log.GetLogger())
}

func holdoutImportance(ctx context.Context, X, y mat.Matrix, cfg ForestConfig, importance string, logger log.Logger) (*HoldoutResult, error) {
	if importance != ensemble.ImportancePermutation {
		return nil, errors.NewValidationError("importance", "holdout forests support only 'permutation' importance", importance)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if X == nil || y == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "HoldoutImportance")
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "HoldoutImportance")
	}
	start := time.Now()

	rng := rand.New(rand.NewSource(cfg.RandomState))
	w := make([]float64, n)
	complement := make([]float64, n)
	inA := 0
	for i := range w {
		if rng.Intn(2) == 1 {
			w[i] = 1
			inA++
		}
		complement[i] = 1 - w[i]
	}
	if inA == 0 || inA == n {
		return nil, errors.NewValueError("HoldoutImportance", "random split left one half empty; use more samples or another seed")
	}

	// tree seeds of the two forests do not overlap
	seedA := cfg.RandomState + 1
	seedB := seedA + int64(cfg.NumTrees)

	forestA := cfg.newForest(n, p, importance, seedA, logger,
		ensemble.WithCaseWeights(w), ensemble.WithHoldout(true))
	if err := forestA.FitContext(ctx, X, y); err != nil {
		return nil, errors.Wrap(err, "holdout forest A")
	}
	forestB := cfg.newForest(n, p, importance, seedB, logger,
		ensemble.WithCaseWeights(complement), ensemble.WithHoldout(true))
	if err := forestB.FitContext(ctx, X, y); err != nil {
		return nil, errors.Wrap(err, "holdout forest B")
	}

	impA, err := forestA.VariableImportance()
	if err != nil {
		return nil, err
	}
	impB, err := forestB.VariableImportance()
	if err != nil {
		return nil, err
	}
	combined := make([]float64, p)
	for j := range combined {
		combined[j] = (impA[j] + impB[j]) / 2
	}

	logger.Debug("Holdout importance computed",
		log.OperationKey, log.OperationImportance,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.HoldoutKey, true,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	return &HoldoutResult{
		Importance:     combined,
		ImportanceA:    impA,
		ImportanceB:    impB,
		Weights:        w,
		TreeType:       cfg.TreeType,
		ImportanceMode: importance,
		Forests:        [2]*ensemble.RandomForest{forestA, forestB},
	}, nil
}
