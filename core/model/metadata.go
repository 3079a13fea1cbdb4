package model

import (
	"encoding/json"

	"github.com/YuminosukeSato/vitaforest/pkg/errors"
)

// ForestMetadata describes a fitted forest, or a pair of holdout forests,
// independently of the trees themselves.
type ForestMetadata struct {
	// TreeType is "regression" or "classification".
	TreeType string `json:"tree_type"`

	// ImportanceMode is the variable importance mode of the fit.
	ImportanceMode string `json:"importance_mode"`

	// NumTrees is the number of trees per forest.
	NumTrees int `json:"num_trees"`

	// Mtry is the number of candidate features per split.
	Mtry int `json:"mtry"`

	// MinNodeSize is the minimal node size to split at.
	MinNodeSize int `json:"min_node_size"`

	// Holdout reports whether the importance came from holdout forests.
	Holdout bool `json:"holdout"`

	// Features are the feature names in column order (optional).
	Features []string `json:"features,omitempty"`

	// Hyperparameters holds the remaining forest settings.
	Hyperparameters map[string]interface{} `json:"hyperparameters,omitempty"`
}

// ToJSON serializes the metadata.
func (m *ForestMetadata) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Validate checks the metadata for consistency.
func (m *ForestMetadata) Validate() error {
	if m.TreeType != "regression" && m.TreeType != "classification" {
		return errors.NewValidationError("tree_type", "must be 'regression' or 'classification'", m.TreeType)
	}
	if m.ImportanceMode == "" {
		return errors.NewValidationError("importance_mode", "is required", m.ImportanceMode)
	}
	if m.NumTrees <= 0 {
		return errors.NewValidationError("num_trees", "must be positive", m.NumTrees)
	}
	return nil
}

// Clone returns a deep copy.
func (m *ForestMetadata) Clone() *ForestMetadata {
	clone := *m
	clone.Features = append([]string(nil), m.Features...)
	clone.Hyperparameters = make(map[string]interface{}, len(m.Hyperparameters))
	for k, v := range m.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	return &clone
}
