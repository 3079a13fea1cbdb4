package significance

import (
	"math/rand"
	"testing"

	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustPValues(t *testing.T) {
	p := []float64{0.01, 0.02, 0.03, 0.04, 0.05}
	by := 0.05 * (1 + 1.0/2 + 1.0/3 + 1.0/4 + 1.0/5)

	tests := []struct {
		method string
		p      []float64
		want   []float64
	}{
		{AdjustNone, p, p},
		{AdjustBonferroni, p, []float64{0.05, 0.1, 0.15, 0.2, 0.25}},
		{AdjustHolm, p, []float64{0.05, 0.08, 0.09, 0.09, 0.09}},
		{AdjustBH, p, []float64{0.05, 0.05, 0.05, 0.05, 0.05}},
		{"fdr", p, []float64{0.05, 0.05, 0.05, 0.05, 0.05}},
		{AdjustBY, p, []float64{by, by, by, by, by}},
		{AdjustBH, []float64{0.04, 0.001, 0.03, 0.5}, []float64{0.16 / 3, 0.004, 0.16 / 3, 0.5}},
		{AdjustBonferroni, []float64{0.3, 0.6}, []float64{0.6, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			got, err := AdjustPValues(tt.p, tt.method)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got, 1e-12)
		})
	}
}

func TestAdjustPValues_NeverDecreases(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	p := make([]float64, 200)
	for i := range p {
		p[i] = rng.Float64() * rng.Float64()
	}
	p[7] = 0
	p[9] = 1

	for _, method := range AdjustMethods {
		adj, err := AdjustPValues(p, method)
		require.NoError(t, err, method)
		require.Len(t, adj, len(p))
		for i := range p {
			assert.GreaterOrEqual(t, adj[i], p[i], "%s at %d", method, i)
			assert.LessOrEqual(t, adj[i], 1.0, "%s at %d", method, i)
		}
	}
}

func TestAdjustPValues_Errors(t *testing.T) {
	_, err := AdjustPValues([]float64{0.1}, "sidak")
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = AdjustPValues([]float64{1.2}, AdjustBH)
	assert.Error(t, err)

	got, err := AdjustPValues(nil, AdjustBH)
	require.NoError(t, err)
	assert.Empty(t, got)
}
