// Package report はTitanic実験の結果をまとめ、テキスト・JSON・YAML・グラフとして出力します。
package report

import (
	"github.com/YuminosukeSato/titanic/features"
	"github.com/YuminosukeSato/titanic/metrics"
	"github.com/YuminosukeSato/titanic/sklearn/model_selection"
)

// Report is everything one run produced, in stage order.
type Report struct {
	RunID string `json:"run_id" yaml:"run_id"`
	Seed  int64  `json:"seed" yaml:"seed"`

	Data        DataSummary     `json:"data" yaml:"data"`
	Comparison  ModelComparison `json:"comparison" yaml:"comparison"`
	CV          CVSummary       `json:"cross_validation" yaml:"cross_validation"`
	Importances []Importance    `json:"feature_importances" yaml:"feature_importances"`
	// BaselineOOB はデフォルト設定のフォレストの OOB。チューニング前後の比較用
	BaselineOOB *float64     `json:"baseline_oob_score,omitempty" yaml:"baseline_oob_score,omitempty"`
	OOBScore    *float64     `json:"oob_score,omitempty" yaml:"oob_score,omitempty"`
	Search      SearchResult `json:"search" yaml:"search"`
	Evaluation  Evaluation   `json:"evaluation" yaml:"evaluation"`
	Prediction  Prediction   `json:"prediction" yaml:"prediction"`
}

// DataSummary describes the input tables and the fitted imputer.
type DataSummary struct {
	TrainRows    int              `json:"train_rows" yaml:"train_rows"`
	TestRows     int              `json:"test_rows" yaml:"test_rows"`
	TrainMissing map[string]int   `json:"train_missing" yaml:"train_missing"`
	TestMissing  map[string]int   `json:"test_missing" yaml:"test_missing"`
	Imputer      features.Imputer `json:"imputer" yaml:"imputer"`
	Features     []string         `json:"features" yaml:"features"`
	// 特徴量選択後の列。OOB 以降の段階で使う
	TunedFeatures []string `json:"tuned_features" yaml:"tuned_features"`
}

// ModelScore is one row of the model comparison. Score is the training
// accuracy in percent, rounded to 2 decimals.
type ModelScore struct {
	Key   string  `json:"key" yaml:"key"`
	Model string  `json:"model" yaml:"model"`
	Score float64 `json:"score" yaml:"score"`
}

// ModelComparison is sorted by Score, descending.
type ModelComparison struct {
	Scores   []ModelScore `json:"scores" yaml:"scores"`
	Selected string       `json:"selected" yaml:"selected"`
}

// Best returns the top row of the comparison.
func (c ModelComparison) Best() (ModelScore, bool) {
	if len(c.Scores) == 0 {
		return ModelScore{}, false
	}
	return c.Scores[0], true
}

// CVSummary is the k-fold accuracy of the selected model.
type CVSummary struct {
	Model                    string `json:"model" yaml:"model"`
	Strategy                 string `json:"strategy" yaml:"strategy"`
	Folds                    int    `json:"folds" yaml:"folds"`
	model_selection.CVResult `yaml:",inline"`
}

// Importance is the rounded mean impurity decrease of one feature.
type Importance struct {
	Feature    string  `json:"feature" yaml:"feature"`
	Importance float64 `json:"importance" yaml:"importance"`
}

// SearchResult is the outcome of the random forest grid search. When the
// search is disabled Params holds the fixed settings that were used.
type SearchResult struct {
	Enabled    bool                   `json:"enabled" yaml:"enabled"`
	Candidates int                    `json:"candidates,omitempty" yaml:"candidates,omitempty"`
	Folds      int                    `json:"folds,omitempty" yaml:"folds,omitempty"`
	BestScore  float64                `json:"best_score,omitempty" yaml:"best_score,omitempty"`
	Params     map[string]interface{} `json:"params" yaml:"params"`
	Model      string                 `json:"model" yaml:"model"`
}

// ROC is the receiver operating characteristic curve.
type ROC struct {
	FPR        []float64
	TPR        []float64
	Thresholds []float64
}

// PRCurve is the precision-recall curve. Thresholds has one element less
// than Precision and Recall.
type PRCurve struct {
	Precision  []float64
	Recall     []float64
	Thresholds []float64
}

// Evaluation holds the metrics computed from cross-validated predictions.
// The score based metrics are only present when the model estimates
// probabilities.
type Evaluation struct {
	Model     string                  `json:"model" yaml:"model"`
	Folds     int                     `json:"folds" yaml:"folds"`
	Confusion metrics.ConfusionMatrix `json:"confusion_matrix" yaml:"confusion_matrix"`
	Accuracy  float64                 `json:"accuracy" yaml:"accuracy"`
	Precision float64                 `json:"precision" yaml:"precision"`
	Recall    float64                 `json:"recall" yaml:"recall"`
	F1        float64                 `json:"f1" yaml:"f1"`

	HasScores bool    `json:"has_scores" yaml:"has_scores"`
	ROCAUC    float64 `json:"roc_auc,omitempty" yaml:"roc_auc,omitempty"`
	LogLoss   float64 `json:"log_loss,omitempty" yaml:"log_loss,omitempty"`

	// 曲線はグラフ用。出力には含めない
	ROC ROC     `json:"-" yaml:"-"`
	PR  PRCurve `json:"-" yaml:"-"`
}

// Prediction summarizes the predictions on the test table.
type Prediction struct {
	Rows       int    `json:"rows" yaml:"rows"`
	Survived   int    `json:"survived" yaml:"survived"`
	Submission string `json:"submission,omitempty" yaml:"submission,omitempty"`
}
