package significance

import (
	"math"
	"math/rand"
	"testing"

	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureWarnings routes errors.Warn into a slice for the duration of a test.
func captureWarnings(t *testing.T) *[]error {
	t.Helper()
	var got []error
	errors.SetWarningHandler(func(w error) { got = append(got, w) })
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })
	return &got
}

func TestJanitzaPValues_SmallNull(t *testing.T) {
	warnings := captureWarnings(t)

	vim := []float64{-1, -2, 0, 1, 2, 3}
	table, err := JanitzaPValues(vim, DefaultConfLevel)
	require.NoError(t, err)

	// null = {-2, -1, 0, 1, 2}; p = #(null >= v) / 5
	assert.InDeltaSlice(t, []float64{0.8, 1, 0.6, 0.4, 0.2, 0}, table.PValues(), 1e-12)
	assert.Equal(t, 5, table.Null.Size)
	assert.Equal(t, 2, table.Null.Negatives)
	assert.Equal(t, 1, table.Null.Zeros)
	assert.InDelta(t, 0.0, table.Null.Median, 1e-12)
	assert.InDelta(t, 1.5, table.Null.Percentile95, 1e-12)

	require.Len(t, *warnings, 1)
	var few *errors.FewNullValuesWarning
	require.True(t, errors.As((*warnings)[0], &few))
	assert.Equal(t, 2, few.Negatives)
	assert.Equal(t, MinNegatives, few.Minimum)
}

func TestJanitzaPValues_AllZero(t *testing.T) {
	warnings := captureWarnings(t)

	table, err := JanitzaPValues([]float64{0, 0, 0, 0}, DefaultConfLevel)
	require.NoError(t, err)

	// every score ties with the whole zero-only null
	for _, row := range table.Rows {
		assert.Equal(t, 1.0, row.PValue)
		assert.Equal(t, 1.0, row.CIUpper)
	}
	assert.Len(t, *warnings, 1)
}

func TestJanitzaPValues_Ties(t *testing.T) {
	captureWarnings(t)

	tests := []struct {
		name string
		vim  []float64
		want []float64
	}{
		// 0.5 equals the mirrored -0.5, so it is not beyond the null
		{"tie with mirrored negative", []float64{-0.5, 0.5, 0.7}, []float64{1, 0.5, 0}},
		{"tie with zero", []float64{-1, 0, 0}, []float64{1, 0.75, 0.75}},
		{"repeated negatives", []float64{-1, -1, 1, 2}, []float64{1, 1, 0.5, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := JanitzaPValues(tt.vim, DefaultConfLevel)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, table.PValues(), 1e-12)
			for _, row := range table.Rows {
				if row.Importance > 0 && row.Importance <= -tt.vim[0] {
					assert.Greater(t, row.PValue, 0.0, "score %v ties the null", row.Importance)
				}
			}
		})
	}
}

func TestJanitzaPValues_NoNull(t *testing.T) {
	_, err := JanitzaPValues([]float64{0.1, 0.2, 3}, DefaultConfLevel)
	assert.True(t, errors.Is(err, errors.ErrNoNullImportance))
}

func TestJanitzaPValues_Validation(t *testing.T) {
	tests := []struct {
		name      string
		vim       []float64
		confLevel float64
	}{
		{"empty", nil, 0.95},
		{"conf level one", []float64{-1, 1}, 1},
		{"conf level zero", []float64{-1, 1}, 0},
		{"non-finite", []float64{-1, math.NaN()}, 0.95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := JanitzaPValues(tt.vim, tt.confLevel)
			assert.Error(t, err)
		})
	}
}

func TestJanitzaPValues_ManyNegativesNoWarning(t *testing.T) {
	warnings := captureWarnings(t)

	rng := rand.New(rand.NewSource(1))
	vim := make([]float64, 0, 600)
	for i := 0; i < 500; i++ {
		vim = append(vim, rng.NormFloat64())
	}
	for i := 0; i < 100; i++ {
		vim = append(vim, 5+rng.Float64())
	}

	table, err := JanitzaPValues(vim, DefaultConfLevel)
	require.NoError(t, err)
	assert.Empty(t, *warnings)
	require.GreaterOrEqual(t, table.Null.Negatives, MinNegatives)

	for _, row := range table.Rows {
		assert.GreaterOrEqual(t, row.PValue, 0.0)
		assert.LessOrEqual(t, row.PValue, 1.0)
		assert.LessOrEqual(t, row.CILower, row.PValue+1e-12)
		assert.GreaterOrEqual(t, row.CIUpper, row.PValue-1e-12)
	}
	// strongly positive scores lie beyond the mirrored null
	for _, row := range table.Rows[500:] {
		assert.Equal(t, 0.0, row.PValue)
	}
}

func TestClopperPearson(t *testing.T) {
	alpha := 0.05

	lo, hi := ClopperPearson(0, 5, alpha)
	assert.Equal(t, 0.0, lo)
	assert.InDelta(t, 1-math.Pow(alpha/2, 1.0/5), hi, 1e-9)

	lo, hi = ClopperPearson(5, 5, alpha)
	assert.InDelta(t, math.Pow(alpha/2, 1.0/5), lo, 1e-9)
	assert.Equal(t, 1.0, hi)

	lo, hi = ClopperPearson(3, 10, alpha)
	assert.Less(t, lo, 0.3)
	assert.Greater(t, hi, 0.3)
}
