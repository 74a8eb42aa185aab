// Package experiment はTitanic生存予測の一連の処理を順に実行します。
//
// 読み込み → 特徴量変換 → 8モデルの比較 → 交差検証 → 重要度 → ランダムフォレストの調整とOOB
// → 交差検証予測による評価 → テストデータの予測、の順で各段階を一度だけ実行します。
package experiment

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/config"
	"github.com/YuminosukeSato/titanic/core/model"
	"github.com/YuminosukeSato/titanic/dataset"
	"github.com/YuminosukeSato/titanic/features"
	"github.com/YuminosukeSato/titanic/metrics"
	"github.com/YuminosukeSato/titanic/pkg/errors"
	"github.com/YuminosukeSato/titanic/pkg/log"
	"github.com/YuminosukeSato/titanic/report"
	"github.com/YuminosukeSato/titanic/sklearn/ensemble"
	"github.com/YuminosukeSato/titanic/sklearn/linear_model"
	"github.com/YuminosukeSato/titanic/sklearn/model_selection"
	"github.com/YuminosukeSato/titanic/sklearn/pipeline"
)

// Run executes the whole experiment described by cfg. It fails as a whole:
// any stage error aborts the run. Cancelling ctx stops pending fits.
func Run(ctx context.Context, cfg *config.Config) (*report.Report, error) {
	if cfg == nil {
		return nil, errors.NewValidationError("config", "is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &report.Report{RunID: uuid.NewString(), Seed: cfg.Seed}
	logger := log.GetLogger().With(log.RunIDKey, r.RunID)
	start := time.Now()
	logger.Info("run started", log.RandomSeedKey, cfg.Seed, log.NJobsKey, cfg.NJobs)

	// 1. 読み込み
	train, err := dataset.LoadCSVFile(cfg.Data.Train)
	if err != nil {
		return nil, err
	}
	if !train.Labeled {
		return nil, errors.NewSchemaError(train.Source, dataset.ColSurvived, "training table needs labels")
	}
	test, err := dataset.LoadCSVFile(cfg.Data.Test)
	if err != nil {
		return nil, err
	}

	// 2-3. 欠損補完・符号化・派生特徴量。両テーブルに同じ規則を適用する
	imp, err := features.FitImputer(train)
	if err != nil {
		return nil, err
	}
	src := rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed))
	trainP, err := features.Prepare(train, imp, src)
	if err != nil {
		return nil, err
	}
	testP, err := features.Prepare(test, imp, src)
	if err != nil {
		return nil, err
	}

	tuned, err := features.Select(cfg.Features.Drop)
	if err != nil {
		return nil, err
	}
	r.Data = report.DataSummary{
		TrainRows:     train.Len(),
		TestRows:      test.Len(),
		TrainMissing:  train.MissingCounts(),
		TestMissing:   test.MissingCounts(),
		Imputer:       *imp,
		Features:      features.Columns,
		TunedFeatures: tuned,
	}

	X, err := features.Matrix(trainP, features.Columns)
	if err != nil {
		return nil, err
	}
	y, err := features.Labels(trainP)
	if err != nil {
		return nil, err
	}

	// 4. モデル比較
	comparison, fitted, err := compareModels(ctx, cfg, X, y)
	if err != nil {
		return nil, err
	}
	r.Comparison = comparison
	logger.Info("models compared", "selection.model", comparison.Selected)

	// 5. 交差検証
	selected := fitted[comparison.Selected]
	if r.CV, err = crossValidate(ctx, cfg, selected, modelNames[comparison.Selected], X, y); err != nil {
		return nil, err
	}

	// 重要度は全特徴量で学習した比較用のランダムフォレストから読む
	if fi, ok := fitted[config.ModelRandomForest].(model.FeatureImportancer); ok {
		r.Importances = rankImportances(fi.GetFeatureImportances(), features.Columns)
	}

	// 6. 特徴量選択後の行列。以降の段階はこちらを使う
	Xt, err := features.Matrix(trainP, tuned)
	if err != nil {
		return nil, err
	}
	testX, err := features.Matrix(testP, tuned)
	if err != nil {
		return nil, err
	}

	final := selected.Clone()
	finalName := modelNames[comparison.Selected]
	finalFitted := false
	if comparison.Selected == config.ModelRandomForest {
		baseline, err := baselineOOB(ctx, cfg, Xt, y)
		if err != nil {
			return nil, err
		}
		r.BaselineOOB = &baseline

		forest, search, err := tuneForest(ctx, cfg, Xt, y)
		if err != nil {
			return nil, err
		}
		oob, err := forest.OOBScore()
		if err != nil {
			return nil, err
		}
		r.Search = search
		r.OOBScore = &oob
		logger.Info("out-of-bag score", log.OOBScoreKey, oob, "baseline_oob_score", baseline)
		final, finalFitted = forest, true
	} else {
		r.Search = report.SearchResult{Params: final.GetParams(), Model: describe(final)}
		logger.Info("forest tuning skipped", "selection.model", comparison.Selected)
	}

	// 7. 交差検証予測による評価
	if r.Evaluation, err = evaluate(ctx, cfg, final, finalName, Xt, y); err != nil {
		return nil, err
	}

	// 8. テストデータの予測
	if !finalFitted {
		if err := fit(ctx, final, Xt, y); err != nil {
			return nil, err
		}
	}
	survived, err := predictLabels(final, testX)
	if err != nil {
		return nil, err
	}
	r.Prediction = report.Prediction{Rows: len(survived)}
	for _, s := range survived {
		r.Prediction.Survived += s
	}
	if cfg.Output.Submission != "" {
		if err := dataset.WriteSubmissionFile(cfg.Output.Submission, testP.IDs(), survived); err != nil {
			return nil, err
		}
		r.Prediction.Submission = cfg.Output.Submission
	}

	logger.Info("run finished", log.DurationMsKey, time.Since(start).Milliseconds())
	return r, nil
}

type contextFitter interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
}

func fit(ctx context.Context, est model.Classifier, X, y mat.Matrix) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cf, ok := est.(contextFitter); ok {
		return cf.FitContext(ctx, X, y)
	}
	return est.Fit(X, y)
}

// roundTo rounds v to the given number of decimals.
func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// compareModels fits every candidate on the full matrix and scores it on the
// same data. The returned map holds the fitted estimators by key.
func compareModels(ctx context.Context, cfg *config.Config, X, y mat.Matrix) (report.ModelComparison, map[string]model.Classifier, error) {
	cands, err := newCandidates(cfg)
	if err != nil {
		return report.ModelComparison{}, nil, err
	}

	logger := log.GetLogger().With(log.PhaseKey, log.PhaseTraining)
	scores := make([]report.ModelScore, 0, len(cands))
	fitted := make(map[string]model.Classifier, len(cands))
	for _, c := range cands {
		start := time.Now()
		if err := fit(ctx, c.est, X, y); err != nil {
			return report.ModelComparison{}, nil, errors.Wrapf(err, "fit %s", c.name)
		}
		acc, err := c.est.Score(X, y)
		if err != nil {
			return report.ModelComparison{}, nil, errors.Wrapf(err, "score %s", c.name)
		}
		logger.Debug("model fitted",
			log.ModelNameKey, c.name,
			log.AccuracyKey, acc,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
		scores = append(scores, report.ModelScore{Key: c.key, Model: c.name, Score: roundTo(acc*100, 2)})
		fitted[c.key] = c.est
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })

	selected := cfg.Selection.Model
	if selected == config.ModelBest {
		selected = scores[0].Key
	}
	return report.ModelComparison{Scores: scores, Selected: selected}, fitted, nil
}

// crossValidate runs the primary k-fold estimate on an unfitted copy of est.
func crossValidate(ctx context.Context, cfg *config.Config, est model.Classifier, name string, X, y mat.Matrix) (report.CVSummary, error) {
	cv := newSplitter(cfg.CV, cfg.Seed)
	res, err := model_selection.CrossValScore(ctx, est.Clone(), X, y, cv, cfg.NJobs)
	if err != nil {
		return report.CVSummary{}, errors.Wrapf(err, "cross-validate %s", name)
	}
	return report.CVSummary{Model: name, Strategy: cfg.CV.Strategy, Folds: cfg.CV.Folds, CVResult: res}, nil
}

// rankImportances pairs importances with their columns, rounds them to 3
// decimals and sorts them in descending order.
func rankImportances(importances []float64, columns []string) []report.Importance {
	out := make([]report.Importance, 0, len(importances))
	for i, v := range importances {
		if i >= len(columns) {
			break
		}
		out = append(out, report.Importance{Feature: columns[i], Importance: roundTo(v, 3)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out
}

// baselineOOB fits a default forest on the reduced columns and returns its
// out-of-bag score.
func baselineOOB(ctx context.Context, cfg *config.Config, X, y mat.Matrix) (float64, error) {
	forest := newBaselineForest(cfg)
	if err := fit(ctx, forest, X, y); err != nil {
		return 0, errors.Wrap(err, "fit baseline forest")
	}
	return forest.OOBScore()
}

// tuneForest returns a fitted forest with out-of-bag scoring, either from
// the grid search or from the fixed tuned settings.
func tuneForest(ctx context.Context, cfg *config.Config, X, y mat.Matrix) (*ensemble.RandomForestClassifier, report.SearchResult, error) {
	base := newForest(cfg, cfg.Search.Tuned)
	if !cfg.Search.Enabled {
		if err := fit(ctx, base, X, y); err != nil {
			return nil, report.SearchResult{}, errors.Wrap(err, "fit tuned forest")
		}
		return base, report.SearchResult{Params: base.GetParams(), Model: base.String()}, nil
	}

	grid := model_selection.ParamGrid(cfg.Search.Grid)
	cands, err := grid.Candidates()
	if err != nil {
		return nil, report.SearchResult{}, err
	}
	// 木の並列化は探索側に任せる
	if err := base.SetParams(map[string]interface{}{"n_jobs": 1}); err != nil {
		return nil, report.SearchResult{}, err
	}
	gs := model_selection.NewGridSearchCV(base, grid,
		model_selection.WithCV(model_selection.NewStratifiedKFold(cfg.Search.Folds, false, 0)),
		model_selection.WithNJobs(cfg.NJobs),
	)
	if err := gs.FitContext(ctx, X, y); err != nil {
		return nil, report.SearchResult{}, errors.Wrap(err, "grid search")
	}
	best, ok := gs.BestEstimator().(*ensemble.RandomForestClassifier)
	if !ok {
		return nil, report.SearchResult{}, errors.NewModelError("experiment.tuneForest", "unexpected best estimator", nil)
	}
	return best, report.SearchResult{
		Enabled:    true,
		Candidates: len(cands),
		Folds:      cfg.Search.Folds,
		BestScore:  gs.BestScore(),
		Params:     best.GetParams(),
		Model:      best.String(),
	}, nil
}

// hasProba reports whether est gives usable class probabilities.
func hasProba(est model.Classifier) (model.ProbabilisticClassifier, bool) {
	inner := est
	if p, ok := est.(*pipeline.Pipeline); ok {
		inner = p.Final()
	}
	if sgd, ok := inner.(*linear_model.SGDClassifier); ok {
		loss, _ := sgd.GetParams()["loss"].(string)
		if loss != "log_loss" && loss != "modified_huber" {
			return nil, false
		}
	}
	if _, ok := inner.(model.ProbabilisticClassifier); !ok {
		return nil, false
	}
	pc, ok := est.(model.ProbabilisticClassifier)
	return pc, ok
}

// evaluate computes the confusion matrix based metrics from
// cross_val_predict, plus the score based ones when probabilities exist.
func evaluate(ctx context.Context, cfg *config.Config, est model.Classifier, name string, X mat.Matrix, y *mat.VecDense) (report.Evaluation, error) {
	ev := report.Evaluation{Model: name, Folds: cfg.Evaluation.Folds}
	cv := model_selection.NewStratifiedKFold(cfg.Evaluation.Folds, false, 0)

	pred, err := model_selection.CrossValPredict(ctx, est.Clone(), X, y, cv, cfg.NJobs)
	if err != nil {
		return ev, errors.Wrap(err, "cross_val_predict")
	}
	yPred := mat.VecDenseCopyOf(pred.ColView(0))
	if ev.Confusion, err = metrics.BinaryConfusionMatrix(y, yPred); err != nil {
		return ev, err
	}
	ev.Accuracy = ev.Confusion.Accuracy()
	ev.Precision = ev.Confusion.Precision()
	ev.Recall = ev.Confusion.Recall()
	ev.F1 = ev.Confusion.F1()

	pc, ok := hasProba(est)
	if !ok {
		log.GetLogger().Info("no probability estimates, skipping score metrics", log.ModelNameKey, name)
		return ev, nil
	}
	proba, classes, err := model_selection.CrossValPredictProba(ctx, pc, X, y, cv, cfg.NJobs)
	if err != nil {
		return ev, errors.Wrap(err, "cross_val_predict proba")
	}
	pos := -1
	for j, c := range classes {
		if c == 1 {
			pos = j
		}
	}
	if pos < 0 {
		return ev, errors.NewValueError("experiment.evaluate", "positive class 1 not found")
	}
	scores := mat.VecDenseCopyOf(proba.ColView(pos))

	ev.HasScores = true
	if ev.ROCAUC, err = metrics.AUC(y, scores); err != nil {
		return ev, err
	}
	if ev.LogLoss, err = metrics.BinaryLogLoss(y, scores); err != nil {
		return ev, err
	}
	if ev.ROC.FPR, ev.ROC.TPR, ev.ROC.Thresholds, err = metrics.ROCCurve(y, scores); err != nil {
		return ev, err
	}
	if ev.PR.Precision, ev.PR.Recall, ev.PR.Thresholds, err = metrics.PrecisionRecallCurve(y, scores); err != nil {
		return ev, err
	}

	log.GetLogger().Info("evaluation finished",
		log.PhaseKey, log.PhaseValidation,
		log.ModelNameKey, name,
		log.AUCKey, ev.ROCAUC,
		"metrics.precision", ev.Precision,
		"metrics.recall", ev.Recall,
		"metrics.f1", ev.F1,
	)
	return ev, nil
}

// predictLabels returns the predicted class of every row as 0/1.
func predictLabels(est model.Classifier, X mat.Matrix) ([]int, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return nil, errors.Wrap(err, "predict test table")
	}
	rows, _ := pred.Dims()
	out := make([]int, rows)
	for i := range out {
		out[i] = int(pred.At(i, 0))
	}
	return out, nil
}

type stringer interface{ String() string }

func describe(est model.Classifier) string {
	if s, ok := est.(stringer); ok {
		return s.String()
	}
	return ""
}
