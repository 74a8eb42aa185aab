// Package ensemble provides bagged tree ensembles.
package ensemble

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/core/model"
	"github.com/YuminosukeSato/titanic/core/parallel"
	"github.com/YuminosukeSato/titanic/pkg/errors"
	"github.com/YuminosukeSato/titanic/pkg/log"
	"github.com/YuminosukeSato/titanic/sklearn/tree"
)

// RandomForestClassifier averages the class probabilities of decision trees
// fitted on bootstrap samples, compatible with scikit-learn's
// RandomForestClassifier.
type RandomForestClassifier struct {
	state *model.StateManager

	// ハイパーパラメータ
	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	oobScore        bool
	nJobs           int
	randomState     int64

	// 学習結果
	estimators_         []*tree.DecisionTreeClassifier
	classes_            []int
	nFeatures_          int
	featureImportances_ []float64
	oobScore_           float64
	oobDecision_        *mat.Dense
}

// RandomForestOption is a functional option for RandomForestClassifier.
type RandomForestOption func(*RandomForestClassifier)

// NewRandomForestClassifier creates a forest with scikit-learn defaults:
// 100 trees, gini, max_features "sqrt", bootstrap, n_jobs 1.
func NewRandomForestClassifier(opts ...RandomForestOption) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		bootstrap:       true,
		nJobs:           1,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithCriterion sets the split criterion of every tree.
func WithCriterion(criterion string) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.criterion = criterion }
}

// WithMaxDepth limits tree depth. 0 means unlimited.
func WithMaxDepth(depth int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.maxDepth = depth }
}

// WithMinSamplesSplit sets min_samples_split of every tree.
func WithMinSamplesSplit(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets min_samples_leaf of every tree.
func WithMinSamplesLeaf(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.minSamplesLeaf = n }
}

// WithMaxFeatures sets the per-split feature sampling ("sqrt", "log2", "").
func WithMaxFeatures(maxFeatures string) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.maxFeatures = maxFeatures }
}

// WithBootstrap sets whether trees see bootstrap samples or the full set.
func WithBootstrap(bootstrap bool) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.bootstrap = bootstrap }
}

// WithOOBScore enables the out-of-bag accuracy estimate.
func WithOOBScore(enabled bool) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.oobScore = enabled }
}

// WithNJobs sets how many trees are fitted concurrently. -1 uses all CPUs.
func WithNJobs(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.nJobs = n }
}

// WithRandomState sets the base seed. Tree i uses seed+i.
func WithRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

func (rf *RandomForestClassifier) validate() error {
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", rf.nEstimators)
	}
	if rf.oobScore && !rf.bootstrap {
		return errors.NewValidationError("oob_score", "requires bootstrap=true", rf.oobScore)
	}
	if rf.nJobs == 0 {
		return errors.NewValidationError("n_jobs", "must not be 0", rf.nJobs)
	}
	return nil
}

// Fit builds the forest.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	return rf.FitContext(context.Background(), X, y)
}

// FitContext builds the forest, fitting up to n_jobs trees at a time.
// Cancelling ctx stops trees that have not started yet.
func (rf *RandomForestClassifier) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if err := rf.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.CheckFitInput("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	start := time.Now()
	rf.state.Reset()
	rf.classes_ = model.ExtractClasses(y)
	rf.nFeatures_ = nFeatures

	trees := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	weights := make([][]float64, rf.nEstimators)

	err = parallel.ForEach(ctx, rf.nEstimators, rf.nJobs, func(_ context.Context, i int) error {
		seed := rf.randomState + int64(i)
		dt := tree.NewDecisionTreeClassifier(
			tree.WithCriterion(rf.criterion),
			tree.WithMaxDepth(rf.maxDepth),
			tree.WithMinSamplesSplit(rf.minSamplesSplit),
			tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
			tree.WithMaxFeatures(rf.maxFeatures),
			tree.WithRandomState(seed),
		)
		var w []float64
		if rf.bootstrap {
			w = bootstrapWeights(nSamples, seed)
		}
		if err := dt.FitWeighted(X, y, w); err != nil {
			return errors.Wrapf(err, "fit tree %d", i)
		}
		trees[i] = dt
		weights[i] = w
		return nil
	})
	if err != nil {
		return err
	}
	rf.estimators_ = trees

	rf.featureImportances_ = make([]float64, nFeatures)
	for _, dt := range trees {
		floats.Add(rf.featureImportances_, dt.GetFeatureImportances())
	}
	if total := floats.Sum(rf.featureImportances_); total > 0 {
		floats.Scale(1/total, rf.featureImportances_)
	}

	rf.state.SetDimensions(nFeatures, nSamples)
	rf.state.SetFitted()

	if rf.oobScore {
		if err := rf.computeOOB(X, y, weights); err != nil {
			return err
		}
	}

	log.GetLogger().Debug("forest fitted",
		log.ModelNameKey, "RandomForestClassifier",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		"n_estimators", rf.nEstimators,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// bootstrapWeights draws n indices with replacement and returns how often
// each row was drawn.
func bootstrapWeights(n int, seed int64) []float64 {
	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[r.IntN(n)]++
	}
	return w
}

// computeOOB scores every sample with the trees whose bootstrap left it out.
func (rf *RandomForestClassifier) computeOOB(X, y mat.Matrix, weights [][]float64) error {
	nSamples, _ := X.Dims()
	nClasses := len(rf.classes_)
	decision := mat.NewDense(nSamples, nClasses, nil)
	counts := make([]int, nSamples)

	for t, dt := range rf.estimators_ {
		proba, err := dt.PredictProba(X)
		if err != nil {
			return err
		}
		for i := 0; i < nSamples; i++ {
			if weights[t][i] > 0 {
				continue
			}
			counts[i]++
			for k := 0; k < nClasses; k++ {
				decision.Set(i, k, decision.At(i, k)+proba.At(i, k))
			}
		}
	}

	correct, scored := 0, 0
	for i := 0; i < nSamples; i++ {
		if counts[i] == 0 {
			continue
		}
		row := decision.RawRowView(i)
		floats.Scale(1/float64(counts[i]), row)
		scored++
		if rf.classes_[floats.MaxIdx(row)] == int(y.At(i, 0)) {
			correct++
		}
	}
	if scored < nSamples {
		errors.Warn(errors.NewUndefinedMetricWarning("oob_score",
			fmt.Sprintf("%d samples have no out-of-bag prediction", nSamples-scored), 0))
	}
	rf.oobDecision_ = decision
	rf.oobScore_ = errors.SafeDivide(float64(correct), float64(scored))
	return nil
}

// PredictProba returns the mean class probabilities of all trees.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	rows, err := model.CheckPredictInput("RandomForestClassifier.PredictProba", X, rf.nFeatures_)
	if err != nil {
		return nil, err
	}
	sum := mat.NewDense(rows, len(rf.classes_), nil)
	for _, dt := range rf.estimators_ {
		proba, err := dt.PredictProba(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, proba)
	}
	sum.Scale(1/float64(len(rf.estimators_)), sum)
	return sum, nil
}

// Predict returns the class with the highest mean probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxClasses(proba, rf.classes_), nil
}

// Score returns the mean accuracy on the given data.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	return model.MeanAccuracy(rf, X, y)
}

// Classes returns the sorted class labels seen during Fit.
func (rf *RandomForestClassifier) Classes() []int { return rf.classes_ }

// Estimators returns the fitted trees.
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier { return rf.estimators_ }

// GetFeatureImportances returns the mean impurity decrease per feature,
// normalized to sum to 1.
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	return rf.featureImportances_
}

// OOBScore returns the out-of-bag accuracy. It requires oob_score=true.
func (rf *RandomForestClassifier) OOBScore() (float64, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "OOBScore"); err != nil {
		return 0, err
	}
	if !rf.oobScore {
		return 0, errors.NewValueError("RandomForestClassifier.OOBScore", "model was fitted with oob_score=false")
	}
	return rf.oobScore_, nil
}

// OOBDecisionFunction returns the out-of-bag class probabilities per sample.
// Rows never left out of a bootstrap are all zero.
func (rf *RandomForestClassifier) OOBDecisionFunction() mat.Matrix {
	return rf.oobDecision_
}

// GetParams returns the model hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"oob_score":         rf.oobScore,
		"n_jobs":            rf.nJobs,
		"random_state":      rf.randomState,
	}
}

// SetParams sets the model hyperparameters.
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "n_estimators":
			rf.nEstimators, err = model.ParamInt(key, value)
		case "criterion":
			rf.criterion, err = model.ParamString(key, value)
		case "max_depth":
			if value == nil {
				rf.maxDepth = 0
				continue
			}
			rf.maxDepth, err = model.ParamInt(key, value)
		case "min_samples_split":
			rf.minSamplesSplit, err = model.ParamInt(key, value)
		case "min_samples_leaf":
			rf.minSamplesLeaf, err = model.ParamInt(key, value)
		case "max_features":
			rf.maxFeatures, err = model.ParamString(key, value)
		case "bootstrap":
			rf.bootstrap, err = model.ParamBool(key, value)
		case "oob_score":
			rf.oobScore, err = model.ParamBool(key, value)
		case "n_jobs":
			rf.nJobs, err = model.ParamInt(key, value)
		case "random_state":
			rf.randomState, err = model.ParamInt64(key, value)
		default:
			return model.UnknownParam("RandomForestClassifier", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted forest with the same hyperparameters.
func (rf *RandomForestClassifier) Clone() model.Classifier {
	c := NewRandomForestClassifier()
	_ = c.SetParams(rf.GetParams())
	return c
}

// String returns a short description of the model.
func (rf *RandomForestClassifier) String() string {
	return fmt.Sprintf("RandomForestClassifier(n_estimators=%d, criterion=%s, min_samples_leaf=%d, min_samples_split=%d)",
		rf.nEstimators, rf.criterion, rf.minSamplesLeaf, rf.minSamplesSplit)
}
