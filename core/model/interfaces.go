// Package model は推定器の共通インターフェースと補助関数を提供します。
//
// All estimators take a feature matrix X (n_samples x n_features) and a label
// column y (n_samples x 1) as gonum matrices. Labels are integral class codes
// stored as float64.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict returns one predicted class per row as an n x 1 matrix.
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns the mean accuracy on the given data.
	Score(X, y mat.Matrix) (float64, error)
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the hyperparameters keyed by their scikit-learn names.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// Classifier combines interfaces for classification models.
type Classifier interface {
	Fitter
	Predictor
	Scorer
	ParameterGetter
	ParameterSetter

	// Clone returns an unfitted copy carrying the same hyperparameters.
	Clone() Classifier
}

// ProbabilisticClassifier is a Classifier that can estimate class
// probabilities. The columns of PredictProba follow Classes().
type ProbabilisticClassifier interface {
	Classifier

	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the sorted class labels seen during fitting.
	Classes() []int
}

// FeatureImportancer is implemented by tree based models.
type FeatureImportancer interface {
	// GetFeatureImportances returns the normalized impurity decrease per feature.
	GetFeatureImportances() []float64
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParamTransformer is a Transformer that can sit in a pipeline: it exposes
// its hyperparameters and can be cloned unfitted.
type ParamTransformer interface {
	Transformer
	ParameterGetter
	ParameterSetter

	CloneTransformer() ParamTransformer
}
