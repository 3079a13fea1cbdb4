// Package significance derives empirical p-values from variable importance
// scores and adjusts them for multiple testing.
//
// JanitzaPValues treats the non-positive importances as the left half of a
// null distribution that is symmetric around zero: negative values are
// mirrored, zeros are kept once, and every score is compared against the
// resulting empirical distribution.
package significance

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// MinNegatives is the number of negative importances below which the null
// distribution is considered too small and a warning is emitted.
const MinNegatives = 100

// DefaultConfLevel is the confidence level of the p-value intervals.
const DefaultConfLevel = 0.95

// PValueRow holds the statistics of one variable.
type PValueRow struct {
	Index      int
	Importance float64
	PValue     float64
	// CILower and CIUpper bound the p-value (Clopper-Pearson interval for the
	// empirical tail proportion).
	CILower float64
	CIUpper float64
}

// NullSummary describes the empirical null distribution.
type NullSummary struct {
	Size         int     `json:"size"`
	Negatives    int     `json:"negatives"`
	Zeros        int     `json:"zeros"`
	Median       float64 `json:"median"`
	Percentile95 float64 `json:"percentile_95"`
}

// PValueTable is the result of JanitzaPValues. Rows follow the input order.
type PValueTable struct {
	Rows      []PValueRow
	Null      NullSummary
	ConfLevel float64
}

// PValues returns the p-values in input order.
func (t *PValueTable) PValues() []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.PValue
	}
	return out
}

// JanitzaPValues computes p_i = 1 - #(null < vim_i) / |null| where null
// consists of the negative importances, their negations and the zero
// importances. A score tied with a null value counts as not exceeding it, so
// a zero-only null gives p = 1 for a zero score.
func JanitzaPValues(vim []float64, confLevel float64) (*PValueTable, error) {
	if len(vim) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "JanitzaPValues")
	}
	if !(confLevel > 0 && confLevel < 1) {
		return nil, errors.NewValidationError("conf_level", "must be in (0, 1)", confLevel)
	}
	if err := errors.CheckNumericalStability("JanitzaPValues", vim); err != nil {
		return nil, err
	}

	var negatives, zeros []float64
	for _, v := range vim {
		switch {
		case v < 0:
			negatives = append(negatives, v)
		case v == 0:
			zeros = append(zeros, v)
		}
	}
	if len(negatives) == 0 && len(zeros) == 0 {
		return nil, errors.WithStack(errors.ErrNoNullImportance)
	}
	if len(negatives) < MinNegatives {
		errors.Warn(errors.NewFewNullValuesWarning(len(negatives), len(zeros), MinNegatives))
	}

	null := make([]float64, 0, 2*len(negatives)+len(zeros))
	null = append(null, negatives...)
	for _, v := range negatives {
		null = append(null, -v)
	}
	null = append(null, zeros...)
	sort.Float64s(null)

	summary, err := Summarize(null)
	if err != nil {
		return nil, err
	}

	N := len(null)
	alpha := 1 - confLevel
	rows := make([]PValueRow, len(vim))
	for i, v := range vim {
		// null values strictly below v
		below := sort.SearchFloat64s(null, v)
		atLeast := N - below
		lo, hi := ClopperPearson(atLeast, N, alpha)
		rows[i] = PValueRow{
			Index:      i,
			Importance: v,
			PValue:     float64(atLeast) / float64(N),
			CILower:    lo,
			CIUpper:    hi,
		}
	}

	return &PValueTable{Rows: rows, Null: summary, ConfLevel: confLevel}, nil
}

// Summarize describes a sample of null importances.
func Summarize(null []float64) (NullSummary, error) {
	if len(null) == 0 {
		return NullSummary{}, errors.Wrap(errors.ErrEmptyData, "Summarize")
	}
	negatives, zeros := 0, 0
	for _, v := range null {
		switch {
		case v < 0:
			negatives++
		case v == 0:
			zeros++
		}
	}
	median, err := stats.Median(null)
	if err != nil {
		return NullSummary{}, errors.Wrap(err, "null distribution median")
	}
	// stats.Percentile needs at least two values
	p95 := null[0]
	if len(null) > 1 {
		p95, err = stats.Percentile(null, 95)
		if err != nil {
			return NullSummary{}, errors.Wrap(err, "null distribution percentile")
		}
	}
	return NullSummary{
		Size:         len(null),
		Negatives:    negatives,
		Zeros:        zeros,
		Median:       median,
		Percentile95: p95,
	}, nil
}

// ClopperPearson returns the exact binomial interval for k successes out
// of n trials at level 1-alpha.
func ClopperPearson(k, n int, alpha float64) (float64, float64) {
	lo, hi := 0.0, 1.0
	if k > 0 {
		lo = distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}.Quantile(alpha / 2)
	}
	if k < n {
		hi = distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}.Quantile(1 - alpha/2)
	}
	if math.IsNaN(lo) {
		lo = 0
	}
	if math.IsNaN(hi) {
		hi = 1
	}
	return lo, hi
}
