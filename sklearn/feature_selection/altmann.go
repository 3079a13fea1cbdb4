package feature_selection

import (
	"context"
	"math/rand"

	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"github.com/YuminosukeSato/vitaforest/pkg/log"
	"github.com/YuminosukeSato/vitaforest/significance"
	"github.com/YuminosukeSato/vitaforest/sklearn/ensemble"
	"gonum.org/v1/gonum/mat"
)

// AltmannPValues estimates a null distribution per variable by refitting the
// forest on permuted responses. p_j = (#{b : null_bj >= vim_j} + 1) / (B + 1)
// with B = numPermutations.
func AltmannPValues(X, y mat.Matrix, cfg ForestConfig, importance string, numPermutations int) (*significance.PValueTable, error) {
	table, _, err := altmannPValues(context.Background(), X, y, cfg, importance, numPermutations, significance.DefaultConfLevel, log.GetLogger())
	return table, err
}

// altmannPValues also returns the observed importance.
func altmannPValues(ctx context.Context, X, y mat.Matrix, cfg ForestConfig, importance string, numPermutations int, confLevel float64, logger log.Logger) (*significance.PValueTable, []float64, error) {
	switch importance {
	case ensemble.ImportanceImpurity, ensemble.ImportanceImpurityCorrected, ensemble.ImportancePermutation:
	default:
		return nil, nil, errors.NewValidationError("importance", "altmann needs 'impurity', 'impurity_corrected' or 'permutation'", importance)
	}
	if numPermutations < 1 {
		return nil, nil, errors.NewValidationError("num_permutations", "must be at least 1", numPermutations)
	}
	if !(confLevel > 0 && confLevel < 1) {
		return nil, nil, errors.NewValidationError("conf_level", "must be in (0, 1)", confLevel)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if X == nil || y == nil {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "AltmannPValues")
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "AltmannPValues")
	}

	observedForest := cfg.newForest(n, p, importance, cfg.RandomState, logger)
	if err := observedForest.FitContext(ctx, X, y); err != nil {
		return nil, nil, err
	}
	observed, err := observedForest.VariableImportance()
	if err != nil {
		return nil, nil, err
	}

	target := mat.Col(nil, 0, y)
	shuffled := make([]float64, n)
	exceed := make([]int, p)
	null := make([]float64, 0, numPermutations*p)
	rng := rand.New(rand.NewSource(cfg.RandomState))

	for b := 1; b <= numPermutations; b++ {
		copy(shuffled, target)
		rng.Shuffle(n, func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		seed := cfg.RandomState + int64(b)*int64(cfg.NumTrees)
		forest := cfg.newForest(n, p, importance, seed, logger)
		if err := forest.FitContext(ctx, X, mat.NewDense(n, 1, shuffled)); err != nil {
			return nil, nil, errors.Wrapf(err, "altmann permutation %d", b)
		}
		vim, err := forest.VariableImportance()
		if err != nil {
			return nil, nil, err
		}
		for j, v := range vim {
			if v >= observed[j] {
				exceed[j]++
			}
		}
		null = append(null, vim...)

		logger.Debug("Altmann permutation done",
			log.OperationKey, log.OperationPValues,
			"permutation", b,
		)
	}

	summary, err := significance.Summarize(null)
	if err != nil {
		return nil, nil, err
	}

	alpha := 1 - confLevel
	rows := make([]significance.PValueRow, p)
	for j := range rows {
		k := exceed[j] + 1
		lo, hi := significance.ClopperPearson(k, numPermutations+1, alpha)
		rows[j] = significance.PValueRow{
			Index:      j,
			Importance: observed[j],
			PValue:     float64(k) / float64(numPermutations+1),
			CILower:    lo,
			CIUpper:    hi,
		}
	}
	return &significance.PValueTable{Rows: rows, Null: summary, ConfLevel: confLevel}, observed, nil
}
