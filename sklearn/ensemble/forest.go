// Package ensemble implements random forests for regression and
// classification with weighted bootstrap sampling, holdout out-of-bag sets
// and impurity, corrected impurity and permutation variable importance.
package ensemble

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"github.com/YuminosukeSato/vitaforest/core/model"
	"github.com/YuminosukeSato/vitaforest/core/parallel"
	"github.com/YuminosukeSato/vitaforest/metrics"
	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"github.com/YuminosukeSato/vitaforest/pkg/log"
	"github.com/YuminosukeSato/vitaforest/sklearn/tree"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// predictParallelThreshold is the number of rows below which Predict runs
// sequentially.
const predictParallelThreshold = 256

var (
	_ model.Estimator          = (*RandomForest)(nil)
	_ model.Scorer             = (*RandomForest)(nil)
	_ model.ImportanceProvider = (*RandomForest)(nil)
	_ model.ParameterGetter    = (*RandomForest)(nil)
	_ model.ParameterSetter    = (*RandomForest)(nil)
)

// RandomForest はランダムフォレスト（回帰・分類）です。
// ケース重み付きブートストラップ、ホールドアウト、各種変数重要度に対応します。
type RandomForest struct {
	state  *model.StateManager
	logger log.Logger

	// ハイパーパラメータ
	nTrees         int
	mtry           int
	minNodeSize    int
	maxDepth       int
	numThreads     int
	replace        bool
	sampleFraction float64
	caseWeights    []float64
	holdout        bool
	importanceMode string
	treeType       string
	randomState    int64

	// 学習済みパラメータ
	trees      []*tree.Tree
	classes    []float64
	importance []float64
	oobError   float64
	nFeatures  int
	fitMtry    int
	fitMinNode int
	shadowCols [][]float64
}

type grownTree struct {
	tree       *tree.Tree
	oob        []int
	importance []float64
}

// NewRandomForest は新しいランダムフォレストを作成します。
// デフォルト: 500本、回帰、重要度なし、復元抽出、1スレッド、シード42。
func NewRandomForest(opts ...Option) *RandomForest {
	rf := &RandomForest{
		state:          model.NewStateManager("RandomForest"),
		nTrees:         500,
		maxDepth:       -1,
		numThreads:     1,
		replace:        true,
		importanceMode: ImportanceNone,
		treeType:       TreeTypeRegression,
		randomState:    42,
	}
	for _, opt := range opts {
		opt(rf)
	}
	if rf.logger == nil {
		rf.logger = log.GetLogger()
	}
	rf.logger = rf.logger.With(log.ModelNameKey, "RandomForest")
	return rf
}

// Fit はフォレストを学習します。
func (rf *RandomForest) Fit(X, y mat.Matrix) error {
	return rf.FitContext(context.Background(), X, y)
}

// FitContext は ctx がキャンセルされると残りの木の学習を中止します。
func (rf *RandomForest) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForest.Fit")
	start := time.Now()

	if err := rf.validate(); err != nil {
		return err
	}
	if X == nil || y == nil {
		return errors.Wrap(errors.ErrEmptyData, "RandomForest.Fit")
	}
	n, p := X.Dims()
	yr, yc := y.Dims()
	if n == 0 || p == 0 {
		return errors.Wrap(errors.ErrEmptyData, "RandomForest.Fit")
	}
	if yr != n {
		return errors.NewDimensionError("RandomForest.Fit", n, yr, 0)
	}
	if yc != 1 {
		return errors.NewValueError("RandomForest.Fit", "y must be a column vector")
	}
	if err := errors.CheckMatrix("RandomForest.Fit", X, n, p); err != nil {
		return err
	}
	target := mat.Col(nil, 0, y)
	if err := errors.CheckNumericalStability("RandomForest.Fit", target); err != nil {
		return err
	}

	weights, err := rf.sampleWeights(n)
	if err != nil {
		return err
	}

	mtry := rf.mtry
	if mtry == 0 {
		mtry = int(math.Max(1, math.Floor(math.Sqrt(float64(p)))))
	}
	if mtry > p {
		return errors.NewValidationError("mtry", "must not exceed the number of features", mtry)
	}
	minNode := rf.minNodeSize
	if minNode == 0 {
		minNode = 5
		if rf.treeType == TreeTypeClassification {
			minNode = 1
		}
	}

	classification := rf.treeType == TreeTypeClassification
	criterion := tree.CriterionSquaredError
	var classes []float64
	if classification {
		criterion = tree.CriterionGini
		classes, target = encodeClasses(target)
	}

	cols := tree.Columns(X)
	if rf.importanceMode == ImportanceImpurityCorrected {
		cols = withShadow(cols, rf.shadowPermutation(n))
	}

	cfg := tree.Config{
		Criterion:       criterion,
		MaxDepth:        rf.maxDepth,
		MinSamplesSplit: math.Max(2, float64(minNode)),
		MinSamplesLeaf:  1,
		MaxFeatures:     mtry,
		NumClasses:      len(classes),
	}
	data := &oobData{cols: cols, y: target, classification: classification}
	nDraw := rf.drawSize(n)

	rf.logger.Debug("Training forest",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.TreesKey, rf.nTrees,
		log.ThreadsKey, rf.threads(),
	)

	grown := make([]grownTree, rf.nTrees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rf.threads())
	for t := 0; t < rf.nTrees; t++ {
		t := t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// a panic in one tree fails the fit instead of the process
			return errors.SafeExecute("RandomForest.Fit", func() error {
				rng := rand.New(rand.NewSource(rf.randomState + int64(t)))
				counts := drawCounts(rng, weights, nDraw, rf.replace)
				tr, err := tree.Build(cols, target, counts, cfg, rng)
				if err != nil {
					return errors.Wrapf(err, "RandomForest.Fit: tree %d", t)
				}
				gt := grownTree{tree: tr, oob: outOfBag(counts, weights, rf.holdout)}
				if rf.importanceMode == ImportancePermutation {
					gt.importance = data.permutationImportance(tr, gt.oob, p, rng)
				}
				grown[t] = gt
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		rf.logger.Error("Forest training failed", "error", err, log.OperationKey, log.OperationFit)
		return err
	}

	rf.trees = make([]*tree.Tree, len(grown))
	for t := range grown {
		rf.trees[t] = grown[t].tree
	}
	rf.classes = classes
	rf.nFeatures = p
	rf.fitMtry = mtry
	rf.fitMinNode = minNode
	rf.shadowCols = nil
	if rf.importanceMode == ImportanceImpurityCorrected {
		rf.shadowCols = cols[p:]
	}
	rf.importance = rf.aggregateImportance(grown, p)
	rf.oobError = rf.computeOOBError(grown, data, len(classes))
	rf.state.SetFitted(p, n)

	rf.logger.Info("Forest trained",
		log.OperationKey, log.OperationFit,
		log.TreesKey, rf.nTrees,
		log.MtryKey, mtry,
		log.MinNodeSizeKey, minNode,
		log.TreeTypeKey, rf.treeType,
		log.ImportanceModeKey, rf.importanceMode,
		log.HoldoutKey, rf.holdout,
		log.OOBErrorKey, rf.oobError,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (rf *RandomForest) validate() error {
	if rf.nTrees < 1 {
		return errors.NewValidationError("n_trees", "must be at least 1", rf.nTrees)
	}
	if rf.treeType != TreeTypeRegression && rf.treeType != TreeTypeClassification {
		return errors.NewValidationError("tree_type", "must be 'regression' or 'classification'", rf.treeType)
	}
	switch rf.importanceMode {
	case ImportanceNone, ImportanceImpurity, ImportanceImpurityCorrected, ImportancePermutation:
	default:
		return errors.NewValidationError("importance", "must be 'none', 'impurity', 'impurity_corrected' or 'permutation'", rf.importanceMode)
	}
	if rf.mtry < 0 {
		return errors.NewValidationError("mtry", "must be non-negative", rf.mtry)
	}
	if rf.minNodeSize < 0 {
		return errors.NewValidationError("min_node_size", "must be non-negative", rf.minNodeSize)
	}
	if rf.numThreads < 0 {
		return errors.NewValidationError("num_threads", "must be non-negative", rf.numThreads)
	}
	if rf.sampleFraction < 0 || rf.sampleFraction > 1 {
		return errors.NewValidationError("sample_fraction", "must be in (0, 1]", rf.sampleFraction)
	}
	return nil
}

func (rf *RandomForest) sampleWeights(n int) ([]float64, error) {
	if rf.caseWeights == nil {
		if rf.holdout {
			rf.logger.Warn("Holdout without case weights leaves no out-of-bag samples",
				log.HoldoutKey, true,
			)
		}
		w := make([]float64, n)
		for i := range w {
			w[i] = 1
		}
		return w, nil
	}
	if len(rf.caseWeights) != n {
		return nil, errors.NewDimensionError("RandomForest.Fit", n, len(rf.caseWeights), 0)
	}
	positive := 0
	for _, w := range rf.caseWeights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, errors.NewValidationError("case_weights", "must be finite and non-negative", w)
		}
		if w > 0 {
			positive++
		}
	}
	if positive == 0 {
		return nil, errors.NewValidationError("case_weights", "at least one weight must be positive", rf.caseWeights)
	}
	return rf.caseWeights, nil
}

func (rf *RandomForest) drawSize(n int) int {
	frac := rf.sampleFraction
	if frac == 0 {
		frac = 1
		if !rf.replace {
			frac = 0.632
		}
	}
	return int(math.Max(1, math.Round(frac*float64(n))))
}

func (rf *RandomForest) threads() int {
	if rf.numThreads == 0 {
		return runtime.NumCPU()
	}
	return rf.numThreads
}

// shadowPermutation is the row permutation behind the shadow columns. It
// depends only on the seed and the number of rows.
func (rf *RandomForest) shadowPermutation(n int) []int {
	return rand.New(rand.NewSource(rf.randomState ^ 0x5DEECE66D)).Perm(n)
}

func (rf *RandomForest) aggregateImportance(grown []grownTree, p int) []float64 {
	if rf.importanceMode == ImportanceNone {
		return nil
	}
	nTrees := float64(len(grown))
	out := make([]float64, p)

	switch rf.importanceMode {
	case ImportancePermutation:
		for _, gt := range grown {
			for j, v := range gt.importance {
				out[j] += v
			}
		}
	default:
		total := make([]float64, grown[0].tree.NumFeatures)
		for _, gt := range grown {
			for j, v := range gt.tree.Importance() {
				total[j] += v
			}
		}
		for j := 0; j < p; j++ {
			out[j] = total[j]
			if rf.importanceMode == ImportanceImpurityCorrected {
				out[j] -= total[j+p]
			}
		}
	}

	for j := range out {
		out[j] /= nTrees
	}
	return out
}

// computeOOBError aggregates out-of-bag predictions per sample and returns
// the mean squared error (regression) or misclassification rate
// (classification). It is NaN when no sample was ever out of bag.
func (rf *RandomForest) computeOOBError(grown []grownTree, data *oobData, nClasses int) float64 {
	n := len(data.y)
	sums := make([]float64, n)
	counts := make([]int, n)
	var votes [][]float64
	if data.classification {
		votes = make([][]float64, n)
	}

	for _, gt := range grown {
		for _, i := range gt.oob {
			pred := data.predictTree(gt.tree, i, -1, 0)
			counts[i]++
			if data.classification {
				if votes[i] == nil {
					votes[i] = make([]float64, nClasses)
				}
				votes[i][int(pred)]++
			} else {
				sums[i] += pred
			}
		}
	}

	var truth, pred []float64
	for i := 0; i < n; i++ {
		if counts[i] == 0 {
			continue
		}
		truth = append(truth, data.y[i])
		if data.classification {
			pred = append(pred, float64(argmax(votes[i])))
		} else {
			pred = append(pred, sums[i]/float64(counts[i]))
		}
	}
	if len(truth) == 0 {
		return math.NaN()
	}

	yTrue := mat.NewVecDense(len(truth), truth)
	yPred := mat.NewVecDense(len(pred), pred)
	var (
		e   float64
		err error
	)
	if data.classification {
		e, err = metrics.ClassificationError(yTrue, yPred)
	} else {
		e, err = metrics.MSE(yTrue, yPred)
	}
	if err != nil {
		return math.NaN()
	}
	return e
}

// Predict は回帰では木の平均、分類では多数決を返します。
func (rf *RandomForest) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := rf.state.RequireFeatures("RandomForest.Predict", c); err != nil {
		return nil, err
	}
	if err := errors.CheckMatrix("RandomForest.Predict", X, r, c); err != nil {
		return nil, err
	}

	cols := tree.Columns(X)
	if rf.shadowCols != nil {
		cols = rf.withTrainingShadow(cols)
	}

	rf.logger.Debug("Predicting",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
		log.SamplesKey, r,
	)
	out := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, predictParallelThreshold, rf.threads(), func(start, end int) {
		for i := start; i < end; i++ {
			out.Set(i, 0, rf.predictRow(cols, i))
		}
	})
	return out, nil
}

// withTrainingShadow appends the shadow columns of the training data. Row i
// reads the shadow values of the training row picked by a hash of its own
// feature values and the seed, so a prediction never depends on the other
// rows of the batch.
func (rf *RandomForest) withTrainingShadow(cols [][]float64) [][]float64 {
	p := len(cols)
	r := len(cols[0])
	nTrain := uint64(len(rf.shadowCols[0]))

	out := make([][]float64, 2*p)
	copy(out, cols)
	for j := range rf.shadowCols {
		out[p+j] = make([]float64, r)
	}

	h := fnv.New64a()
	var buf [8]byte
	for i := 0; i < r; i++ {
		h.Reset()
		binary.LittleEndian.PutUint64(buf[:], uint64(rf.randomState))
		h.Write(buf[:])
		for j := 0; j < p; j++ {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(cols[j][i]))
			h.Write(buf[:])
		}
		src := int(h.Sum64() % nTrain)
		for j, shadow := range rf.shadowCols {
			out[p+j][i] = shadow[src]
		}
	}
	return out
}

func (rf *RandomForest) predictRow(cols [][]float64, i int) float64 {
	at := func(f int) float64 { return cols[f][i] }
	if rf.treeType == TreeTypeClassification {
		votes := make([]float64, len(rf.classes))
		for _, tr := range rf.trees {
			votes[argmax(tr.Leaf(at).Value)]++
		}
		return rf.classes[argmax(votes)]
	}
	sum := 0.0
	for _, tr := range rf.trees {
		sum += tr.Leaf(at).Value[0]
	}
	return sum / float64(len(rf.trees))
}

// Score は回帰では R^2、分類では正解率を返します。失敗時は 0 を返します。
func (rf *RandomForest) Score(X, y mat.Matrix) float64 {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0
	}
	truth := mat.Col(nil, 0, y)
	yTrue := mat.NewVecDense(len(truth), truth)
	yPred := mat.NewVecDense(len(truth), mat.Col(nil, 0, pred))
	var s float64
	if rf.treeType == TreeTypeClassification {
		s, err = metrics.Accuracy(yTrue, yPred)
	} else {
		s, err = metrics.R2Score(yTrue, yPred)
	}
	if err != nil {
		return 0
	}
	return s
}

// VariableImportance は特徴量ごとの重要度を返します。
func (rf *RandomForest) VariableImportance() ([]float64, error) {
	if err := rf.state.RequireFitted("VariableImportance"); err != nil {
		return nil, err
	}
	if rf.importance == nil {
		return nil, errors.NewValueError("RandomForest.VariableImportance", "forest was trained with importance mode 'none'")
	}
	out := make([]float64, len(rf.importance))
	copy(out, rf.importance)
	return out, nil
}

// ImportanceMode は重要度の種類を返します。
func (rf *RandomForest) ImportanceMode() string {
	return rf.importanceMode
}

// OOBError は out-of-bag 予測誤差を返します（ホールドアウト時はホールドアウト標本上の誤差）。
func (rf *RandomForest) OOBError() (float64, error) {
	if err := rf.state.RequireFitted("OOBError"); err != nil {
		return 0, err
	}
	return rf.oobError, nil
}

// TreeType は "regression" または "classification" を返します。
func (rf *RandomForest) TreeType() string {
	return rf.treeType
}

// NumFeatures は学習時の特徴量数を返します（シャドウ列は含みません）。
func (rf *RandomForest) NumFeatures() int {
	return rf.nFeatures
}

// Trees は学習済みの木を返します。
func (rf *RandomForest) Trees() []*tree.Tree {
	return rf.trees
}

// Classes は分類時のクラスラベルを昇順で返します。
func (rf *RandomForest) Classes() []float64 {
	return append([]float64(nil), rf.classes...)
}

// Metadata は学習済みフォレストの設定を返します。
func (rf *RandomForest) Metadata() *model.ForestMetadata {
	mtry, minNode := rf.mtry, rf.minNodeSize
	if rf.state.IsFitted() {
		mtry, minNode = rf.fitMtry, rf.fitMinNode
	}
	return &model.ForestMetadata{
		TreeType:       rf.treeType,
		ImportanceMode: rf.importanceMode,
		NumTrees:       rf.nTrees,
		Mtry:           mtry,
		MinNodeSize:    minNode,
		Holdout:        rf.holdout,
		Hyperparameters: map[string]interface{}{
			"replace":         rf.replace,
			"sample_fraction": rf.sampleFraction,
			"max_depth":       rf.maxDepth,
			"random_state":    rf.randomState,
		},
	}
}

// GetParams はハイパーパラメータを返します。
func (rf *RandomForest) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_trees":         rf.nTrees,
		"mtry":            rf.mtry,
		"min_node_size":   rf.minNodeSize,
		"max_depth":       rf.maxDepth,
		"num_threads":     rf.numThreads,
		"replace":         rf.replace,
		"sample_fraction": rf.sampleFraction,
		"holdout":         rf.holdout,
		"importance":      rf.importanceMode,
		"tree_type":       rf.treeType,
		"random_state":    rf.randomState,
	}
}

// SetParams はハイパーパラメータを更新し、学習状態をリセットします。
// 型の合わない値は ValidationError になり、その場合は何も変更しません。
func (rf *RandomForest) SetParams(params map[string]interface{}) error {
	next := *rf
	for key, value := range params {
		if err := next.setParam(key, value); err != nil {
			return err
		}
	}
	rf.nTrees = next.nTrees
	rf.mtry = next.mtry
	rf.minNodeSize = next.minNodeSize
	rf.maxDepth = next.maxDepth
	rf.numThreads = next.numThreads
	rf.replace = next.replace
	rf.holdout = next.holdout
	rf.sampleFraction = next.sampleFraction
	rf.importanceMode = next.importanceMode
	rf.treeType = next.treeType
	rf.randomState = next.randomState

	rf.state.Reset()
	rf.trees = nil
	rf.importance = nil
	rf.shadowCols = nil
	return nil
}

func (rf *RandomForest) setParam(key string, value interface{}) error {
	switch key {
	case "n_trees", "mtry", "min_node_size", "max_depth", "num_threads":
		v, ok := value.(int)
		if !ok {
			return errors.NewValidationError(key, "must be an int", value)
		}
		switch key {
		case "n_trees":
			rf.nTrees = v
		case "mtry":
			rf.mtry = v
		case "min_node_size":
			rf.minNodeSize = v
		case "max_depth":
			rf.maxDepth = v
		default:
			rf.numThreads = v
		}
	case "replace", "holdout":
		v, ok := value.(bool)
		if !ok {
			return errors.NewValidationError(key, "must be a bool", value)
		}
		if key == "replace" {
			rf.replace = v
		} else {
			rf.holdout = v
		}
	case "sample_fraction":
		v, ok := value.(float64)
		if !ok {
			return errors.NewValidationError(key, "must be a float64", value)
		}
		rf.sampleFraction = v
	case "importance", "tree_type":
		v, ok := value.(string)
		if !ok {
			return errors.NewValidationError(key, "must be a string", value)
		}
		if key == "importance" {
			rf.importanceMode = v
		} else {
			rf.treeType = v
		}
	case "random_state":
		switch v := value.(type) {
		case int:
			rf.randomState = int64(v)
		case int64:
			rf.randomState = v
		default:
			return errors.NewValidationError(key, "must be an integer", value)
		}
	default:
		return errors.NewValidationError(key, "unknown parameter", value)
	}
	return nil
}

func encodeClasses(labels []float64) ([]float64, []float64) {
	seen := make(map[float64]struct{}, len(labels))
	classes := make([]float64, 0)
	for _, v := range labels {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			classes = append(classes, v)
		}
	}
	sort.Float64s(classes)
	index := make(map[float64]int, len(classes))
	for k, c := range classes {
		index[c] = k
	}
	encoded := make([]float64, len(labels))
	for i, v := range labels {
		encoded[i] = float64(index[v])
	}
	return classes, encoded
}
