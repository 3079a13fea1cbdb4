package feature_selection

import (
	"strings"
	"testing"

	"github.com/YuminosukeSato/vitaforest/sklearn/ensemble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAltmannPValues(t *testing.T) {
	ds := smallData(t)
	cfg := DefaultForestConfig()
	cfg.NumTrees = 30

	table, err := AltmannPValues(ds.X, ds.Y, cfg, ensemble.ImportanceImpurity, 9)
	require.NoError(t, err)
	require.Len(t, table.Rows, 40)

	for _, row := range table.Rows {
		// p is a multiple of 1/10 in [0.1, 1]
		assert.GreaterOrEqual(t, row.PValue, 0.1-1e-12)
		assert.LessOrEqual(t, row.PValue, 1.0)
		assert.LessOrEqual(t, row.CILower, row.PValue)
		assert.GreaterOrEqual(t, row.CIUpper, row.PValue)
	}
	// no permuted response beats the true one for a strong feature
	assert.InDelta(t, 0.1, table.Rows[0].PValue, 1e-12)
	assert.Equal(t, 9*40, table.Null.Size)
}

func TestAltmannPValues_Validation(t *testing.T) {
	ds := smallData(t)
	cfg := DefaultForestConfig()
	cfg.NumTrees = 5

	_, err := AltmannPValues(ds.X, ds.Y, cfg, ensemble.ImportanceNone, 5)
	assert.Error(t, err)
	_, err = AltmannPValues(ds.X, ds.Y, cfg, ensemble.ImportanceImpurity, 0)
	assert.Error(t, err)
}

func TestVitaSelector_Altmann(t *testing.T) {
	ds := smallData(t)

	sel := NewVitaSelector(
		WithNumTrees(20),
		WithPValueMethod(PValueAltmann),
		WithImportance(ensemble.ImportancePermutation),
		WithNumPermutations(19),
	)
	require.NoError(t, sel.Fit(ds.X, ds.Y))

	res, err := sel.Result()
	require.NoError(t, err)
	assert.Equal(t, PValueAltmann, res.PValueMethod)
	assert.Contains(t, res.Selected, "X1")
}

func TestLoadConfig(t *testing.T) {
	input := `
forest:
  num_trees: 1000
  mtry_prop: 0.3
importance: permutation
holdout: true
fdr_adjust: true
fdr_method: BY
`
	cfg, err := LoadConfig(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Forest.NumTrees)
	assert.Equal(t, 0.3, cfg.Forest.MtryProp)
	// untouched keys keep their defaults
	assert.Equal(t, 0.1, cfg.Forest.NodeSizeProp)
	assert.Equal(t, 0.05, cfg.PThreshold)
	assert.True(t, cfg.Holdout)
	assert.Equal(t, "BY", cfg.FDRMethod)

	sel := NewVitaSelector(cfg.Options()...)
	params := sel.GetParams()
	assert.Equal(t, true, params["holdout"])
	assert.Equal(t, 1000, params["num_trees"])
	assert.Equal(t, "permutation", params["importance"])

	_, err = LoadConfig(strings.NewReader("forest:\n  trees: 10\n"))
	assert.Error(t, err, "unknown keys are rejected")

	cfg, err = LoadConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
