package tree

import (
	"math/rand"

	"github.com/YuminosukeSato/vitaforest/core/model"
	"github.com/YuminosukeSato/vitaforest/metrics"
	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DecisionTreeRegressor は二乗誤差基準の CART 回帰木です。
type DecisionTreeRegressor struct {
	params
	state *model.StateManager

	nFeatures_ int
	tree_      *Tree
}

// NewDecisionTreeRegressor は新しい回帰木を作成します。
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	p := defaultParams(CriterionSquaredError)
	for _, opt := range opts {
		opt(&p)
	}
	return &DecisionTreeRegressor{
		params: p,
		state:  model.NewStateManager("DecisionTreeRegressor"),
	}
}

// Fit は回帰木を学習します。
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted はサンプル重み付きで学習します。
func (dt *DecisionTreeRegressor) FitWeighted(X, y mat.Matrix, weights []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	if dt.criterion != CriterionSquaredError {
		return errors.NewValidationError("criterion", "must be 'squared_error'", dt.criterion)
	}
	if err := dt.params.validate(); err != nil {
		return err
	}
	cols, target, w, err := prepare("DecisionTreeRegressor.Fit", X, y, weights)
	if err != nil {
		return err
	}

	t, err := Build(cols, target, w, dt.params.config(0), rand.New(rand.NewSource(dt.randomState)))
	if err != nil {
		return err
	}
	dt.tree_ = t
	dt.nFeatures_ = len(cols)
	dt.state.SetFitted(len(cols), len(target))
	return nil
}

// Predict は葉の重み付き平均を返します。
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := dt.state.RequireFeatures("DecisionTreeRegressor.Predict", c); err != nil {
		return nil, err
	}
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		leaf := dt.tree_.Leaf(func(j int) float64 { return X.At(i, j) })
		out.Set(i, 0, leaf.Value[0])
	}
	return out, nil
}

// Score は決定係数 R^2 を返します。
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	yTrue, yPred := colOf(y), colOf(pred)
	r2, err := metrics.R2Score(mat.NewVecDense(len(yTrue), yTrue), mat.NewVecDense(len(yPred), yPred))
	if err != nil {
		return 0
	}
	return r2
}

// GetFeatureImportances は正規化された不純度減少量を返します。
func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	if dt.tree_ == nil {
		return nil
	}
	return normalize(dt.tree_.Importance())
}

// GetDepth は木の深さを返します。
func (dt *DecisionTreeRegressor) GetDepth() int {
	if dt.tree_ == nil {
		return 0
	}
	return dt.tree_.Depth()
}

// GetNLeaves は葉の数を返します。
func (dt *DecisionTreeRegressor) GetNLeaves() int {
	if dt.tree_ == nil {
		return 0
	}
	return dt.tree_.NumLeaves()
}

// Tree は学習済みの木を返します。
func (dt *DecisionTreeRegressor) Tree() *Tree {
	return dt.tree_
}

// GetParams はハイパーパラメータを返します。
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return dt.params.get()
}

// SetParams はハイパーパラメータを更新し、学習状態をリセットします。
func (dt *DecisionTreeRegressor) SetParams(values map[string]interface{}) error {
	if err := dt.params.set(values); err != nil {
		return err
	}
	dt.state.Reset()
	dt.tree_ = nil
	return nil
}
