package model_selection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/core/model"
	"github.com/YuminosukeSato/titanic/core/parallel"
	"github.com/YuminosukeSato/titanic/pkg/errors"
	"github.com/YuminosukeSato/titanic/pkg/log"
)

// ParamGrid maps a hyperparameter name to the values to try.
type ParamGrid map[string][]interface{}

// Candidates expands the grid into every combination. Keys are iterated in
// sorted order and the last key varies fastest.
func (g ParamGrid) Candidates() ([]map[string]interface{}, error) {
	if len(g) == 0 {
		return nil, errors.NewValidationError("param_grid", "must not be empty", nil)
	}
	keys := make([]string, 0, len(g))
	for k, values := range g {
		if len(values) == 0 {
			return nil, errors.NewValidationError("param_grid", "parameter has no values", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []map[string]interface{}{{}}
	for _, k := range keys {
		next := make([]map[string]interface{}, 0, len(out)*len(g[k]))
		for _, partial := range out {
			for _, v := range g[k] {
				c := make(map[string]interface{}, len(partial)+1)
				for pk, pv := range partial {
					c[pk] = pv
				}
				c[k] = v
				next = append(next, c)
			}
		}
		out = next
	}
	return out, nil
}

// CandidateResult は1つのパラメータ組み合わせの交差検証結果
type CandidateResult struct {
	Params   map[string]interface{} `json:"params" yaml:"params"`
	CVResult `yaml:",inline"`
	Rank     int `json:"rank" yaml:"rank"`
}

// GridSearchCV はパラメータグリッドを総当たりで交差検証する
type GridSearchCV struct {
	estimator model.Classifier
	grid      ParamGrid
	cv        Splitter
	nJobs     int
	refit     bool

	// 探索結果
	results_       []CandidateResult
	bestIndex_     int
	bestParams_    map[string]interface{}
	bestScore_     float64
	bestEstimator_ model.Classifier
	fitted         bool
}

// GridSearchOption は設定オプション
type GridSearchOption func(*GridSearchCV)

// WithCV sets the splitter (default: StratifiedKFold with 5 splits).
func WithCV(cv Splitter) GridSearchOption {
	return func(gs *GridSearchCV) { gs.cv = cv }
}

// WithNJobs sets how many (candidate, fold) fits run at once.
func WithNJobs(n int) GridSearchOption {
	return func(gs *GridSearchCV) { gs.nJobs = n }
}

// WithRefit sets whether the best candidate is refitted on all data.
func WithRefit(refit bool) GridSearchOption {
	return func(gs *GridSearchCV) { gs.refit = refit }
}

// NewGridSearchCV creates a search over grid for clones of estimator.
func NewGridSearchCV(estimator model.Classifier, grid ParamGrid, opts ...GridSearchOption) *GridSearchCV {
	gs := &GridSearchCV{
		estimator: estimator,
		grid:      grid,
		cv:        NewStratifiedKFold(5, false, 0),
		nJobs:     1,
		refit:     true,
	}
	for _, opt := range opts {
		opt(gs)
	}
	return gs
}

// Fit runs the search with a background context.
func (gs *GridSearchCV) Fit(X, y mat.Matrix) error {
	return gs.FitContext(context.Background(), X, y)
}

// FitContext evaluates every candidate on every fold. The candidate with the
// highest mean score wins; on ties the earlier candidate is kept.
func (gs *GridSearchCV) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if gs.estimator == nil {
		return errors.NewValidationError("estimator", "is required", nil)
	}
	candidates, err := gs.grid.Candidates()
	if err != nil {
		return err
	}
	folds, err := checkCVInput("GridSearchCV.Fit", X, y, gs.cv)
	if err != nil {
		return err
	}
	gs.fitted = false
	start := time.Now()
	logger := log.GetLogger().With(log.OperationKey, log.OperationSearch)
	logger.Info("grid search started",
		log.CandidatesKey, len(candidates),
		log.NSplitsKey, len(folds),
		log.NJobsKey, gs.nJobs,
	)

	// パラメータの誤りは並列実行の前に検出する
	for i, params := range candidates {
		if err := gs.estimator.Clone().SetParams(params); err != nil {
			return errors.Wrapf(err, "candidate %d", i)
		}
	}

	// (候補, fold) の組を平坦化して並列に評価する
	nFolds := len(folds)
	scores := make([][]float64, len(candidates))
	for i := range scores {
		scores[i] = make([]float64, nFolds)
	}
	err = parallel.ForEach(ctx, len(candidates)*nFolds, gs.nJobs, func(ctx context.Context, job int) error {
		c, f := job/nFolds, job%nFolds
		clf := gs.estimator.Clone()
		if err := clf.SetParams(candidates[c]); err != nil {
			return err
		}
		trainX, trainY := subset(X, y, folds[f].TrainIndices)
		testX, testY := subset(X, y, folds[f].TestIndices)
		if err := fitEstimator(ctx, clf, trainX, trainY); err != nil {
			return errors.Wrapf(err, "candidate %d fold %d", c, f)
		}
		s, err := clf.Score(testX, testY)
		if err != nil {
			return errors.Wrapf(err, "candidate %d fold %d", c, f)
		}
		scores[c][f] = s
		return nil
	})
	if err != nil {
		return err
	}

	gs.results_ = make([]CandidateResult, len(candidates))
	gs.bestIndex_ = 0
	for i, params := range candidates {
		gs.results_[i] = CandidateResult{Params: params, CVResult: NewCVResult(scores[i])}
		if gs.results_[i].Mean > gs.results_[gs.bestIndex_].Mean {
			gs.bestIndex_ = i
		}
		logger.Debug("candidate evaluated",
			log.CandidateKey, i,
			log.HyperParamsKey, params,
			log.MeanScoreKey, gs.results_[i].Mean,
		)
	}
	rankResults(gs.results_)

	best := gs.results_[gs.bestIndex_]
	gs.bestParams_ = best.Params
	gs.bestScore_ = best.Mean

	if gs.refit {
		clf := gs.estimator.Clone()
		if err := clf.SetParams(best.Params); err != nil {
			return err
		}
		if err := fitEstimator(ctx, clf, X, y); err != nil {
			return errors.Wrap(err, "refit best candidate")
		}
		gs.bestEstimator_ = clf
	}
	gs.fitted = true

	logger.Info("grid search finished",
		log.HyperParamsKey, gs.bestParams_,
		log.MeanScoreKey, gs.bestScore_,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// rankResults sets Rank 1 for the best mean; equal means share a rank.
func rankResults(results []CandidateResult) {
	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return results[order[a]].Mean > results[order[b]].Mean
	})
	for pos, idx := range order {
		rank := pos + 1
		if pos > 0 && results[order[pos-1]].Mean == results[idx].Mean {
			rank = results[order[pos-1]].Rank
		}
		results[idx].Rank = rank
	}
}

// Results returns one entry per candidate in grid order.
func (gs *GridSearchCV) Results() []CandidateResult { return gs.results_ }

// BestParams returns the winning combination.
func (gs *GridSearchCV) BestParams() map[string]interface{} { return gs.bestParams_ }

// BestScore returns the winning mean cross-validated score.
func (gs *GridSearchCV) BestScore() float64 { return gs.bestScore_ }

// BestIndex returns the winning candidate's position in Results.
func (gs *GridSearchCV) BestIndex() int { return gs.bestIndex_ }

// BestEstimator returns the refitted winner, or nil without refit.
func (gs *GridSearchCV) BestEstimator() model.Classifier { return gs.bestEstimator_ }

func (gs *GridSearchCV) requireRefit(method string) error {
	if !gs.fitted {
		return errors.NewNotFittedError("GridSearchCV", method)
	}
	if gs.bestEstimator_ == nil {
		return errors.NewValueError("GridSearchCV."+method, "refit=false leaves no fitted estimator")
	}
	return nil
}

// Predict uses the refitted best estimator.
func (gs *GridSearchCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := gs.requireRefit("Predict"); err != nil {
		return nil, err
	}
	return gs.bestEstimator_.Predict(X)
}

// Score uses the refitted best estimator.
func (gs *GridSearchCV) Score(X, y mat.Matrix) (float64, error) {
	if err := gs.requireRefit("Score"); err != nil {
		return 0, err
	}
	return gs.bestEstimator_.Score(X, y)
}

func (gs *GridSearchCV) String() string {
	return fmt.Sprintf("GridSearchCV(estimator=%v, n_candidates=%d)", gs.estimator, len(gs.results_))
}
