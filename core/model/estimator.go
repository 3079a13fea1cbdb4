package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は学習と予測の両方を行うモデル
type Estimator interface {
	Fitter
	Predictor
}

// ImportanceProvider は変数重要度を提供するモデルのインターフェース
type ImportanceProvider interface {
	// VariableImportance は特徴量ごとの重要度を返す（長さは特徴量数）
	VariableImportance() ([]float64, error)

	// ImportanceMode は重要度の種類を返す（"permutation", "impurity_corrected" 等）
	ImportanceMode() string
}

// Selector は変数選択器のインターフェース
type Selector interface {
	Fitter

	// SelectedFeatures は選択された特徴量名を辞書順で返す
	SelectedFeatures() ([]string, error)

	// Transform は選択された列のみを含む行列を返す
	Transform(X mat.Matrix) (mat.Matrix, error)
}
