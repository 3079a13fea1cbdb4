// Package feature_selection implements Vita variable selection on top of
// random-forest variable importance.
//
// VitaSelector obtains an importance vector whose noise variables are
// centred at zero, either from one forest with impurity_corrected
// importance or from two holdout forests with permutation importance. The
// non-positive scores form an empirical null distribution (Janitza et al.),
// from which every variable gets a p-value; variables with p == 0 or
// p < threshold are selected.
//
// Example:
//
//	sel := feature_selection.NewVitaSelector(
//	    feature_selection.WithNumTrees(1000),
//	    feature_selection.WithFeatureNames(names),
//	)
//	if err := sel.Fit(X, y); err != nil {
//	    return err
//	}
//	selected, _ := sel.SelectedFeatures()
package feature_selection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/YuminosukeSato/vitaforest/core/model"
	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"github.com/YuminosukeSato/vitaforest/pkg/log"
	"github.com/YuminosukeSato/vitaforest/significance"
	"github.com/YuminosukeSato/vitaforest/sklearn/ensemble"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.Selector        = (*VitaSelector)(nil)
	_ model.ParameterSetter = (*VitaSelector)(nil)
)

// VitaSelector は Vita 法による変数選択器です。
type VitaSelector struct {
	state  *model.StateManager
	logger log.Logger
	id     string

	forest          ForestConfig
	importance      string
	holdout         bool
	pThreshold      float64
	fdrAdjust       bool
	fdrMethod       string
	confLevel       float64
	pValueMethod    string
	numPermutations int
	featureNames    []string

	result      *SelectionResult
	selectedIdx []int
	holdoutRes  *HoldoutResult
}

// NewVitaSelector は新しい VitaSelector を作成します。
func NewVitaSelector(opts ...Option) *VitaSelector {
	cfg := DefaultConfig()
	s := &VitaSelector{
		state:           model.NewStateManager("VitaSelector"),
		id:              uuid.NewString(),
		forest:          cfg.Forest,
		importance:      cfg.Importance,
		holdout:         cfg.Holdout,
		pThreshold:      cfg.PThreshold,
		fdrAdjust:       cfg.FDRAdjust,
		fdrMethod:       cfg.FDRMethod,
		confLevel:       cfg.ConfLevel,
		pValueMethod:    cfg.PValueMethod,
		numPermutations: cfg.NumPermutations,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.GetLogger()
	}
	s.logger = s.logger.With(
		log.ModelNameKey, "VitaSelector",
		log.EstimatorIDKey, s.id,
	)
	return s
}

// ID は推定器の識別子（ログ相関用）を返します。
func (s *VitaSelector) ID() string {
	return s.id
}

// Fit は重要度を計算し、p値に基づいて変数を選択します。
func (s *VitaSelector) Fit(X, y mat.Matrix) error {
	return s.FitContext(context.Background(), X, y)
}

// FitContext は Fit のコンテキスト付き版です。
func (s *VitaSelector) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "VitaSelector.Fit")
	start := time.Now()

	if err := s.validate(); err != nil {
		s.logger.Error("Invalid selector configuration",
			"error", err,
			log.OperationKey, log.OperationSelect,
			log.ErrorCodeKey, log.ErrorInvalidInput,
		)
		return err
	}
	if X == nil || y == nil {
		return errors.Wrap(errors.ErrEmptyData, "VitaSelector.Fit")
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.Wrap(errors.ErrEmptyData, "VitaSelector.Fit")
	}
	names, err := s.names(p)
	if err != nil {
		return err
	}

	s.logger.Info("Variable selection started",
		log.OperationKey, log.OperationSelect,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.ImportanceModeKey, s.importance,
		log.HoldoutKey, s.holdout,
		log.PValueMethodKey, s.pValueMethod,
	)

	var (
		table    *significance.PValueTable
		metadata *model.ForestMetadata
	)
	s.holdoutRes = nil

	switch s.pValueMethod {
	case PValueAltmann:
		table, _, err = altmannPValues(ctx, X, y, s.forest, s.importance, s.numPermutations, s.confLevel, s.logger)
		if err != nil {
			return err
		}
		metadata = s.metadata(n, p)
	default:
		vim, md, err := s.importanceVector(ctx, X, y)
		if err != nil {
			return err
		}
		metadata = md
		if s.forest.TreeType != ensemble.TreeTypeClassification {
			errors.Warn(errors.NewMethodSuitabilityWarning(PValueJanitza, "the null approximation was validated with classification trees only"))
		}
		table, err = significance.JanitzaPValues(vim, s.confLevel)
		if errors.Is(err, errors.ErrNoNullImportance) {
			s.logger.Error("No non-positive importance values",
				"error", err,
				log.OperationKey, log.OperationPValues,
				log.ErrorCodeKey, log.ErrorNoNull,
				log.SuggestionKey, "use the altmann p-value method",
			)
		}
		if err != nil {
			return err
		}
	}
	metadata.Features = names
	if err := metadata.Validate(); err != nil {
		return err
	}

	raw := table.PValues()
	pvals := raw
	if s.fdrAdjust {
		pvals, err = significance.AdjustPValues(raw, s.fdrMethod)
		if err != nil {
			return err
		}
	}

	result := &SelectionResult{
		Variables:    make([]VariableResult, p),
		Selected:     []string{},
		Threshold:    s.pThreshold,
		PValueMethod: s.pValueMethod,
		FDRAdjusted:  s.fdrAdjust,
		Null:         table.Null,
		Forest:       metadata,
		EstimatorID:  s.id,
	}
	if s.fdrAdjust {
		result.FDRMethod = s.fdrMethod
	}

	var selectedIdx []int
	for j, row := range table.Rows {
		selected := pvals[j] == 0 || pvals[j] < s.pThreshold
		result.Variables[j] = VariableResult{
			Name:       names[j],
			Importance: row.Importance,
			CILower:    row.CILower,
			CIUpper:    row.CIUpper,
			PValue:     pvals[j],
			RawPValue:  raw[j],
			Selected:   selected,
		}
		if selected {
			result.Selected = append(result.Selected, names[j])
			selectedIdx = append(selectedIdx, j)
		}
	}
	sort.Strings(result.Selected)

	s.result = result
	s.selectedIdx = selectedIdx
	s.state.SetFitted(p, n)

	s.logger.Info("Variable selection finished",
		log.OperationKey, log.OperationSelect,
		log.FeaturesKey, p,
		log.SelectedKey, len(result.Selected),
		log.ThresholdKey, s.pThreshold,
		log.NullSizeKey, table.Null.Size,
		log.FDRMethodKey, result.FDRMethod,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// importanceVector runs either the single corrected-impurity forest or the
// two holdout forests.
func (s *VitaSelector) importanceVector(ctx context.Context, X, y mat.Matrix) ([]float64, *model.ForestMetadata, error) {
	n, p := X.Dims()
	if s.holdout {
		res, err := holdoutImportance(ctx, X, y, s.forest, s.importance, s.logger)
		if err != nil {
			return nil, nil, err
		}
		s.holdoutRes = res
		md := res.Forests[0].Metadata()
		md.Holdout = true
		return res.Importance, md, nil
	}

	forest := s.forest.newForest(n, p, s.importance, s.forest.RandomState, s.logger)
	if err := forest.FitContext(ctx, X, y); err != nil {
		return nil, nil, err
	}
	vim, err := forest.VariableImportance()
	if err != nil {
		return nil, nil, err
	}
	return vim, forest.Metadata(), nil
}

func (s *VitaSelector) metadata(n, p int) *model.ForestMetadata {
	return &model.ForestMetadata{
		TreeType:       s.forest.TreeType,
		ImportanceMode: s.importance,
		NumTrees:       s.forest.NumTrees,
		Mtry:           s.forest.Mtry(p),
		MinNodeSize:    s.forest.MinNodeSize(n),
		Holdout:        s.holdout,
	}
}

func (s *VitaSelector) validate() error {
	if err := s.forest.Validate(); err != nil {
		return err
	}
	if !(s.pThreshold > 0 && s.pThreshold <= 1) {
		return errors.NewValidationError("p_threshold", "must be in (0, 1]", s.pThreshold)
	}
	if !(s.confLevel > 0 && s.confLevel < 1) {
		return errors.NewValidationError("conf_level", "must be in (0, 1)", s.confLevel)
	}
	if s.fdrAdjust && !validFDRMethod(s.fdrMethod) {
		return errors.NewValidationError("fdr_method", "must be one of BH, BY, bonferroni, holm, none", s.fdrMethod)
	}
	switch s.pValueMethod {
	case PValueJanitza:
		if s.holdout && s.importance != ensemble.ImportancePermutation {
			return errors.NewValidationError("importance", "holdout selection requires 'permutation' importance", s.importance)
		}
		if !s.holdout && s.importance != ensemble.ImportanceImpurityCorrected {
			return errors.NewValidationError("importance", "selection without holdout requires 'impurity_corrected' importance", s.importance)
		}
	case PValueAltmann:
		if s.holdout {
			return errors.NewValidationError("holdout", "the altmann method fits single forests", s.holdout)
		}
		if s.numPermutations < 1 {
			return errors.NewValidationError("num_permutations", "must be at least 1", s.numPermutations)
		}
	default:
		return errors.NewValidationError("p_value_method", "must be 'janitza' or 'altmann'", s.pValueMethod)
	}
	return nil
}

func validFDRMethod(method string) bool {
	if method == "fdr" {
		return true
	}
	for _, m := range significance.AdjustMethods {
		if m == method {
			return true
		}
	}
	return false
}

func (s *VitaSelector) names(p int) ([]string, error) {
	if s.featureNames == nil {
		names := make([]string, p)
		for j := range names {
			names[j] = fmt.Sprintf("X%d", j+1)
		}
		return names, nil
	}
	if len(s.featureNames) != p {
		return nil, errors.NewDimensionError("VitaSelector.Fit", len(s.featureNames), p, 1)
	}
	seen := make(map[string]struct{}, p)
	for _, name := range s.featureNames {
		if _, dup := seen[name]; dup {
			return nil, errors.NewValidationError("feature_names", "names must be unique", name)
		}
		seen[name] = struct{}{}
	}
	return append([]string(nil), s.featureNames...), nil
}

// Result は選択結果を返します。
func (s *VitaSelector) Result() (*SelectionResult, error) {
	if err := s.state.RequireFitted("Result"); err != nil {
		return nil, err
	}
	return s.result, nil
}

// HoldoutResult は holdout 時の2つのフォレストの重要度を返します（holdout でない場合は nil）。
func (s *VitaSelector) HoldoutResult() *HoldoutResult {
	return s.holdoutRes
}

// SelectedFeatures は選択された変数名を辞書順で返します。
func (s *VitaSelector) SelectedFeatures() ([]string, error) {
	if err := s.state.RequireFitted("SelectedFeatures"); err != nil {
		return nil, err
	}
	return append([]string(nil), s.result.Selected...), nil
}

// GetSupport は列ごとの選択フラグを返します。
func (s *VitaSelector) GetSupport() ([]bool, error) {
	if err := s.state.RequireFitted("GetSupport"); err != nil {
		return nil, err
	}
	support := make([]bool, len(s.result.Variables))
	for j, v := range s.result.Variables {
		support[j] = v.Selected
	}
	return support, nil
}

// Transform は選択された列のみを元の列順で返します。
func (s *VitaSelector) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.state.RequireFeatures("VitaSelector.Transform", c); err != nil {
		return nil, err
	}
	if len(s.selectedIdx) == 0 {
		return nil, errors.NewValueError("VitaSelector.Transform", "no features were selected")
	}
	out := mat.NewDense(r, len(s.selectedIdx), nil)
	for k, j := range s.selectedIdx {
		for i := 0; i < r; i++ {
			out.Set(i, k, X.At(i, j))
		}
	}
	return out, nil
}

// GetParams はハイパーパラメータを返します。
func (s *VitaSelector) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"p_threshold":      s.pThreshold,
		"fdr_adjust":       s.fdrAdjust,
		"fdr_method":       s.fdrMethod,
		"holdout":          s.holdout,
		"importance":       s.importance,
		"conf_level":       s.confLevel,
		"p_value_method":   s.pValueMethod,
		"num_permutations": s.numPermutations,
		"num_trees":        s.forest.NumTrees,
		"mtry_prop":        s.forest.MtryProp,
		"nodesize_prop":    s.forest.NodeSizeProp,
		"num_threads":      s.forest.NumThreads,
		"replace":          s.forest.Replace,
		"sample_fraction":  s.forest.SampleFraction,
		"tree_type":        s.forest.TreeType,
		"random_state":     s.forest.RandomState,
	}
}

// SetParams はハイパーパラメータを更新し、学習状態をリセットします。
// 型の合わない値（例えば bool 以外の holdout）は ValidationError になります。
func (s *VitaSelector) SetParams(params map[string]interface{}) error {
	// validate every value before touching the selector
	next := *s
	for key, value := range params {
		if err := next.setParam(key, value); err != nil {
			return err
		}
	}
	s.forest = next.forest
	s.importance = next.importance
	s.holdout = next.holdout
	s.pThreshold = next.pThreshold
	s.fdrAdjust = next.fdrAdjust
	s.fdrMethod = next.fdrMethod
	s.confLevel = next.confLevel
	s.pValueMethod = next.pValueMethod
	s.numPermutations = next.numPermutations

	s.state.Reset()
	s.result = nil
	s.selectedIdx = nil
	s.holdoutRes = nil
	return nil
}

func (s *VitaSelector) setParam(key string, value interface{}) error {
	switch key {
	case "holdout", "fdr_adjust", "replace":
		v, ok := value.(bool)
		if !ok {
			return errors.NewValidationError(key, "must be a bool", value)
		}
		switch key {
		case "holdout":
			s.holdout = v
		case "fdr_adjust":
			s.fdrAdjust = v
		default:
			s.forest.Replace = v
		}
	case "p_threshold", "conf_level", "mtry_prop", "nodesize_prop", "sample_fraction":
		v, ok := value.(float64)
		if !ok {
			return errors.NewValidationError(key, "must be a float64", value)
		}
		switch key {
		case "p_threshold":
			s.pThreshold = v
		case "conf_level":
			s.confLevel = v
		case "mtry_prop":
			s.forest.MtryProp = v
		case "nodesize_prop":
			s.forest.NodeSizeProp = v
		default:
			s.forest.SampleFraction = v
		}
	case "num_trees", "num_threads", "num_permutations":
		v, ok := value.(int)
		if !ok {
			return errors.NewValidationError(key, "must be an int", value)
		}
		switch key {
		case "num_trees":
			s.forest.NumTrees = v
		case "num_threads":
			s.forest.NumThreads = v
		default:
			s.numPermutations = v
		}
	case "fdr_method", "importance", "tree_type", "p_value_method":
		v, ok := value.(string)
		if !ok {
			return errors.NewValidationError(key, "must be a string", value)
		}
		switch key {
		case "fdr_method":
			s.fdrMethod = v
		case "importance":
			s.importance = v
		case "tree_type":
			s.forest.TreeType = v
		default:
			s.pValueMethod = v
		}
	case "random_state":
		switch v := value.(type) {
		case int:
			s.forest.RandomState = int64(v)
		case int64:
			s.forest.RandomState = v
		default:
			return errors.NewValidationError(key, "must be an integer", value)
		}
	default:
		return errors.NewValidationError(key, "unknown parameter", value)
	}
	return nil
}
