// Package vitaforest selects variables with random forests and the Vita
// method, for backend services and batch pipelines that need a
// reproducible, testable variable screen on high-dimensional data.
//
// The importance of pure noise variables is centred at zero when it is
// computed on data the trees did not see: either with two holdout forests
// and permutation importance, or with one forest and the corrected impurity
// importance (permuted shadow columns). The non-positive scores and their
// mirror images form an empirical null distribution from which every
// variable gets a p-value (Janitza, Celik and Boulesteix, 2018).
//
// # Installation
//
//	go get github.com/YuminosukeSato/vitaforest
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/vitaforest/datasets"
//	    "github.com/YuminosukeSato/vitaforest/sklearn/feature_selection"
//	)
//
//	func main() {
//	    ds, err := datasets.SimulateCorrelated(datasets.DefaultSimulationConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    sel := feature_selection.NewVitaSelector(
//	        feature_selection.WithNumTrees(1000),
//	        feature_selection.WithFeatureNames(ds.FeatureNames),
//	        feature_selection.WithFDRAdjust(true),
//	    )
//	    if err := sel.Fit(ds.X, ds.Y); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    selected, _ := sel.SelectedFeatures()
//	    fmt.Println("Selected:", selected)
//	}
//
// # Packages
//
//   - sklearn/feature_selection: VitaSelector, HoldoutImportance, AltmannPValues, YAML config
//   - sklearn/ensemble: RandomForest with case weights, holdout and permutation or corrected impurity importance
//   - sklearn/tree: CART decision trees (classification and regression)
//   - significance: Janitza p-values, Clopper-Pearson intervals, multiple-testing adjustment
//   - datasets: correlated-groups simulation, CSV and XLSX loading
//   - metrics: evaluation metrics (MSE, R², accuracy, ...)
//   - core/model, core/parallel: estimator state and parallel helpers
//   - pkg/errors, pkg/log: structured errors and zerolog-backed logging
//
// The vita command (cmd/vita) exposes selection and simulation on the
// command line.
//
// # License
//
// vitaforest is released under the MIT License.
package vitaforest
