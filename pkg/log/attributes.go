// Package log defines standard attribute keys for forest and selection runs.
//
// Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples", "forest.trees") so logs can be filtered consistently.
package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator type.
	// Examples: "RandomForest", "VitaSelector", "DecisionTreeRegressor"
	ModelNameKey = "model.name"

	// EstimatorIDKey identifies a single estimator instance or selection run.
	EstimatorIDKey = "estimator.id"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	// Examples: "ensemble", "feature_selection", "significance"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the run.
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	// SamplesKey is the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey is the number of features (columns).
	FeaturesKey = "data.features"

	// ClassesKey is the number of classes for classification forests.
	ClassesKey = "data.classes"
)

// Forest configuration and state
const (
	// TreesKey is the number of trees in a forest.
	TreesKey = "forest.trees"

	// MtryKey is the number of candidate features per split.
	MtryKey = "forest.mtry"

	// MinNodeSizeKey is the minimal node size to split at.
	MinNodeSizeKey = "forest.min_node_size"

	// TreeTypeKey is "regression" or "classification".
	TreeTypeKey = "forest.tree_type"

	// ImportanceModeKey is the variable importance mode.
	ImportanceModeKey = "forest.importance"

	// ThreadsKey is the number of worker goroutines used for tree growing.
	ThreadsKey = "forest.threads"

	// HoldoutKey reports whether the forest runs in holdout mode.
	HoldoutKey = "forest.holdout"

	// OOBErrorKey records the out-of-bag prediction error.
	OOBErrorKey = "forest.oob_error"

	// TreeIndexKey identifies a single tree inside a forest.
	TreeIndexKey = "forest.tree_index"
)

// Selection results
const (
	// ThresholdKey records the p-value threshold.
	ThresholdKey = "selection.threshold"

	// SelectedKey records how many variables were selected.
	SelectedKey = "selection.selected"

	// NullSizeKey records the size of the empirical null distribution.
	NullSizeKey = "selection.null_size"

	// PValueMethodKey records how p-values were computed ("janitza", "altmann").
	PValueMethodKey = "selection.pvalue_method"

	// FDRMethodKey records the multiple-testing adjustment.
	FDRMethodKey = "selection.fdr_method"
)

// Performance
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error Context
const (
	// ErrorCodeKey provides a structured error code.
	ErrorCodeKey = "error.code"

	// SuggestionKey provides a hint for resolving an issue.
	SuggestionKey = "error.suggestion"
)

// Standard attribute values.
const (
	OperationFit        = "fit"
	OperationPredict    = "predict"
	OperationImportance = "importance"
	OperationPValues    = "pvalues"
	OperationSelect     = "select"

	PhaseTraining  = "training"
	PhaseInference = "inference"

	ErrorInvalidInput = "INVALID_INPUT"
	ErrorNoNull       = "NO_NULL_IMPORTANCE"
)
