package tree

import (
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/vitaforest/core/model"
	"github.com/YuminosukeSato/vitaforest/metrics"
	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.Classifier      = (*DecisionTreeClassifier)(nil)
	_ model.Regressor       = (*DecisionTreeRegressor)(nil)
	_ model.ParameterGetter = (*DecisionTreeClassifier)(nil)
	_ model.ParameterSetter = (*DecisionTreeRegressor)(nil)
)

// DecisionTreeClassifier は CART による決定木分類器です。
// scikit-learn の DecisionTreeClassifier と同等のハイパーパラメータを持ちます。
type DecisionTreeClassifier struct {
	params
	state *model.StateManager

	classes_   []float64
	nClasses_  int
	nFeatures_ int
	tree_      *Tree
}

// NewDecisionTreeClassifier は新しい決定木分類器を作成します。
// デフォルトは gini 基準、深さ無制限、min_samples_split=2、min_samples_leaf=1 です。
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	p := defaultParams(CriterionGini)
	for _, opt := range opts {
		opt(&p)
	}
	return &DecisionTreeClassifier{
		params: p,
		state:  model.NewStateManager("DecisionTreeClassifier"),
	}
}

// Fit はラベル y に対して木を学習します。ラベルは任意の実数値で、内部でクラス番号に変換されます。
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted はサンプル重み付きで学習します。重み0のサンプルは学習に使われません。
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, weights []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")

	if dt.criterion != CriterionGini && dt.criterion != CriterionEntropy {
		return errors.NewValidationError("criterion", "must be 'gini' or 'entropy'", dt.criterion)
	}
	if err := dt.params.validate(); err != nil {
		return err
	}
	cols, labels, w, err := prepare("DecisionTreeClassifier.Fit", X, y, weights)
	if err != nil {
		return err
	}

	classes := uniqueSorted(labels)
	index := make(map[float64]int, len(classes))
	for k, c := range classes {
		index[c] = k
	}
	encoded := make([]float64, len(labels))
	for i, v := range labels {
		encoded[i] = float64(index[v])
	}

	t, err := Build(cols, encoded, w, dt.params.config(len(classes)), rand.New(rand.NewSource(dt.randomState)))
	if err != nil {
		return err
	}

	dt.tree_ = t
	dt.classes_ = classes
	dt.nClasses_ = len(classes)
	dt.nFeatures_ = len(cols)
	dt.state.SetFitted(len(cols), len(labels))
	return nil
}

// PredictProba は各クラスの確率を返します（行: サンプル, 列: classes_ の順）。
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("PredictProba"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := dt.state.RequireFeatures("DecisionTreeClassifier.PredictProba", c); err != nil {
		return nil, err
	}

	out := mat.NewDense(r, dt.nClasses_, nil)
	for i := 0; i < r; i++ {
		leaf := dt.tree_.Leaf(func(j int) float64 { return X.At(i, j) })
		out.SetRow(i, leaf.Value)
	}
	return out, nil
}

// Predict は最も確率の高いクラスラベルを返します。
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, _ := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, dt.classes_[argmax(mat.Row(nil, i, proba))])
	}
	return out, nil
}

// Score は正解率を返します。予測に失敗した場合は 0 を返します。
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	acc, err := metrics.Accuracy(mat.NewVecDense(len(colOf(y)), colOf(y)), mat.NewVecDense(len(colOf(pred)), colOf(pred)))
	if err != nil {
		return 0
	}
	return acc
}

// GetFeatureImportances は合計が1になるよう正規化した不純度減少量を返します。
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	if dt.tree_ == nil {
		return nil
	}
	return normalize(dt.tree_.Importance())
}

// GetDepth は木の深さを返します。
func (dt *DecisionTreeClassifier) GetDepth() int {
	if dt.tree_ == nil {
		return 0
	}
	return dt.tree_.Depth()
}

// GetNLeaves は葉の数を返します。
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	if dt.tree_ == nil {
		return 0
	}
	return dt.tree_.NumLeaves()
}

// Classes は学習時に見つかったクラスラベルを昇順で返します。
func (dt *DecisionTreeClassifier) Classes() []float64 {
	out := make([]float64, len(dt.classes_))
	copy(out, dt.classes_)
	return out
}

// Tree は学習済みの木を返します。
func (dt *DecisionTreeClassifier) Tree() *Tree {
	return dt.tree_
}

// GetParams はハイパーパラメータを返します。
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return dt.params.get()
}

// SetParams はハイパーパラメータを更新し、学習状態をリセットします。
func (dt *DecisionTreeClassifier) SetParams(values map[string]interface{}) error {
	if err := dt.params.set(values); err != nil {
		return err
	}
	dt.state.Reset()
	dt.tree_ = nil
	return nil
}

// prepare validates X and y and converts them to column-major slices.
func prepare(op string, X, y mat.Matrix, weights []float64) ([][]float64, []float64, []float64, error) {
	if X == nil || y == nil {
		return nil, nil, nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	r, c := X.Dims()
	yr, yc := y.Dims()
	if r == 0 || c == 0 {
		return nil, nil, nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	if yr != r {
		return nil, nil, nil, errors.NewDimensionError(op, r, yr, 0)
	}
	if yc != 1 {
		return nil, nil, nil, errors.NewValueError(op, "y must be a column vector")
	}
	if err := errors.CheckMatrix(op, X, r, c); err != nil {
		return nil, nil, nil, err
	}
	labels := colOf(y)
	if err := errors.CheckNumericalStability(op, labels); err != nil {
		return nil, nil, nil, err
	}

	w := weights
	if w == nil {
		w = make([]float64, r)
		for i := range w {
			w[i] = 1
		}
	} else if len(w) != r {
		return nil, nil, nil, errors.NewDimensionError(op, r, len(w), 0)
	}
	return Columns(X), labels, w, nil
}

func colOf(m mat.Matrix) []float64 {
	return mat.Col(nil, 0, m)
}

func uniqueSorted(values []float64) []float64 {
	seen := make(map[float64]struct{}, len(values))
	out := make([]float64, 0)
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func normalize(values []float64) []float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	if total <= 0 {
		return values
	}
	for i := range values {
		values[i] /= total
	}
	return values
}
