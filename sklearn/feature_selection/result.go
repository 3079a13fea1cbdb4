package feature_selection

import (
	"github.com/YuminosukeSato/vitaforest/core/model"
	"github.com/YuminosukeSato/vitaforest/significance"
)

// VariableResult holds the selection statistics of one variable.
type VariableResult struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
	CILower    float64 `json:"ci_lower"`
	CIUpper    float64 `json:"ci_upper"`
	// PValue is the adjusted p-value when FDR adjustment is enabled.
	PValue    float64 `json:"p_value"`
	RawPValue float64 `json:"raw_p_value"`
	Selected  bool    `json:"selected"`
}

// SelectionResult is the outcome of a VitaSelector fit.
type SelectionResult struct {
	// Variables are in column order.
	Variables []VariableResult `json:"variables"`
	// Selected holds the selected names sorted lexicographically.
	Selected     []string                 `json:"selected"`
	Threshold    float64                  `json:"threshold"`
	PValueMethod string                   `json:"p_value_method"`
	FDRAdjusted  bool                     `json:"fdr_adjusted"`
	FDRMethod    string                   `json:"fdr_method,omitempty"`
	Null         significance.NullSummary `json:"null"`
	Forest       *model.ForestMetadata    `json:"forest"`
	EstimatorID  string                   `json:"estimator_id"`
}

// Lookup returns the statistics of the named variable.
func (r *SelectionResult) Lookup(name string) (VariableResult, bool) {
	for _, v := range r.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return VariableResult{}, false
}

// ImportanceVector maps variable names to importance scores.
type ImportanceVector map[string]float64

// ImportanceVector returns the importance scores by name.
func (r *SelectionResult) ImportanceVector() ImportanceVector {
	out := make(ImportanceVector, len(r.Variables))
	for _, v := range r.Variables {
		out[v.Name] = v.Importance
	}
	return out
}

// Importances returns the importance scores in column order.
func (r *SelectionResult) Importances() []float64 {
	out := make([]float64, len(r.Variables))
	for i, v := range r.Variables {
		out[i] = v.Importance
	}
	return out
}
