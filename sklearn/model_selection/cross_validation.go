package model_selection

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/titanic/core/model"
	"github.com/YuminosukeSato/titanic/core/parallel"
	"github.com/YuminosukeSato/titanic/pkg/errors"
	"github.com/YuminosukeSato/titanic/pkg/log"
)

// contextFitter is implemented by estimators that can stop fitting early
// when the context is cancelled.
type contextFitter interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
}

func fitEstimator(ctx context.Context, est model.Classifier, X, y mat.Matrix) error {
	if cf, ok := est.(contextFitter); ok {
		return cf.FitContext(ctx, X, y)
	}
	return est.Fit(X, y)
}

// CVResult は交差検証の各foldのスコアと要約
type CVResult struct {
	Scores []float64 `json:"scores" yaml:"scores"`
	Mean   float64   `json:"mean" yaml:"mean"`
	Std    float64   `json:"std" yaml:"std"` // 母標準偏差
}

// NewCVResult summarizes fold scores.
func NewCVResult(scores []float64) CVResult {
	mean, std := stat.PopMeanStdDev(scores, nil)
	return CVResult{Scores: scores, Mean: mean, Std: std}
}

func checkCVInput(op string, X, y mat.Matrix, cv Splitter) ([]Fold, error) {
	if _, _, err := model.CheckFitInput(op, X, y); err != nil {
		return nil, err
	}
	if cv == nil {
		return nil, errors.NewValidationError("cv", "splitter is required", nil)
	}
	return cv.Split(X, y)
}

// CrossValScore fits a clone of est on every training split and returns the
// mean accuracy on the matching test split. Up to nJobs folds run at once.
func CrossValScore(ctx context.Context, est model.Classifier, X, y mat.Matrix, cv Splitter, nJobs int) (CVResult, error) {
	folds, err := checkCVInput("CrossValScore", X, y, cv)
	if err != nil {
		return CVResult{}, err
	}
	start := time.Now()
	scores := make([]float64, len(folds))
	err = parallel.ForEach(ctx, len(folds), nJobs, func(ctx context.Context, f int) error {
		trainX, trainY := subset(X, y, folds[f].TrainIndices)
		testX, testY := subset(X, y, folds[f].TestIndices)
		clf := est.Clone()
		if err := fitEstimator(ctx, clf, trainX, trainY); err != nil {
			return errors.Wrapf(err, "fold %d", f)
		}
		s, err := clf.Score(testX, testY)
		if err != nil {
			return errors.Wrapf(err, "fold %d", f)
		}
		scores[f] = s
		log.GetLogger().Debug("fold scored",
			log.OperationKey, log.OperationCrossValidate,
			log.FoldKey, f,
			log.AccuracyKey, s,
		)
		return nil
	})
	if err != nil {
		return CVResult{}, err
	}
	res := NewCVResult(scores)
	log.GetLogger().Debug("cross validation finished",
		log.OperationKey, log.OperationCrossValidate,
		log.NSplitsKey, len(folds),
		log.MeanScoreKey, res.Mean,
		log.StdScoreKey, res.Std,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

// checkPartition requires every sample to be in exactly one test fold.
func checkPartition(op string, folds []Fold, nSamples int) error {
	seen := make([]int, nSamples)
	for _, f := range folds {
		for _, idx := range f.TestIndices {
			seen[idx]++
		}
	}
	for _, c := range seen {
		if c != 1 {
			return errors.NewValueError(op, "cross_val_predict only works for partitions")
		}
	}
	return nil
}

// CrossValPredict returns, for every sample, the prediction of the model that
// was fitted without it.
func CrossValPredict(ctx context.Context, est model.Classifier, X, y mat.Matrix, cv Splitter, nJobs int) (*mat.Dense, error) {
	folds, err := checkCVInput("CrossValPredict", X, y, cv)
	if err != nil {
		return nil, err
	}
	nSamples, _ := X.Dims()
	if err := checkPartition("CrossValPredict", folds, nSamples); err != nil {
		return nil, err
	}

	out := mat.NewDense(nSamples, 1, nil)
	err = parallel.ForEach(ctx, len(folds), nJobs, func(ctx context.Context, f int) error {
		trainX, trainY := subset(X, y, folds[f].TrainIndices)
		testX, _ := subset(X, y, folds[f].TestIndices)
		clf := est.Clone()
		if err := fitEstimator(ctx, clf, trainX, trainY); err != nil {
			return errors.Wrapf(err, "fold %d", f)
		}
		pred, err := clf.Predict(testX)
		if err != nil {
			return errors.Wrapf(err, "fold %d", f)
		}
		// test folds are disjoint, so each goroutine writes its own rows
		for i, idx := range folds[f].TestIndices {
			out.Set(idx, 0, pred.At(i, 0))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CrossValPredictProba is CrossValPredict for class probabilities. Columns
// follow the classes of the full y; a class absent from a training split gets
// probability 0 for that split's samples.
func CrossValPredictProba(ctx context.Context, est model.ProbabilisticClassifier, X, y mat.Matrix, cv Splitter, nJobs int) (*mat.Dense, []int, error) {
	folds, err := checkCVInput("CrossValPredictProba", X, y, cv)
	if err != nil {
		return nil, nil, err
	}
	nSamples, _ := X.Dims()
	if err := checkPartition("CrossValPredictProba", folds, nSamples); err != nil {
		return nil, nil, err
	}
	classes := model.ExtractClasses(y)
	column := model.ClassIndex(classes)

	out := mat.NewDense(nSamples, len(classes), nil)
	err = parallel.ForEach(ctx, len(folds), nJobs, func(ctx context.Context, f int) error {
		trainX, trainY := subset(X, y, folds[f].TrainIndices)
		testX, _ := subset(X, y, folds[f].TestIndices)
		clf, ok := est.Clone().(model.ProbabilisticClassifier)
		if !ok {
			return errors.NewValueError("CrossValPredictProba", "clone does not estimate probabilities")
		}
		if err := fitEstimator(ctx, clf, trainX, trainY); err != nil {
			return errors.Wrapf(err, "fold %d", f)
		}
		proba, err := clf.PredictProba(testX)
		if err != nil {
			return errors.Wrapf(err, "fold %d", f)
		}
		for k, c := range clf.Classes() {
			col := column[c]
			for i, idx := range folds[f].TestIndices {
				out.Set(idx, col, proba.At(i, k))
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, classes, nil
}
