package experiment

import (
	"github.com/YuminosukeSato/titanic/config"
	"github.com/YuminosukeSato/titanic/core/model"
	"github.com/YuminosukeSato/titanic/preprocessing"
	"github.com/YuminosukeSato/titanic/sklearn/ensemble"
	"github.com/YuminosukeSato/titanic/sklearn/linear_model"
	"github.com/YuminosukeSato/titanic/sklearn/model_selection"
	"github.com/YuminosukeSato/titanic/sklearn/naive_bayes"
	"github.com/YuminosukeSato/titanic/sklearn/neighbors"
	"github.com/YuminosukeSato/titanic/sklearn/pipeline"
	"github.com/YuminosukeSato/titanic/sklearn/svm"
	"github.com/YuminosukeSato/titanic/sklearn/tree"
)

// candidate is one entry of the model comparison.
type candidate struct {
	key  string
	name string
	est  model.Classifier
}

// Display names, in the order of the comparison table.
var modelNames = map[string]string{
	config.ModelLinearSVC:          "Support Vector Machines",
	config.ModelKNN:                "KNN",
	config.ModelLogisticRegression: "Logistic Regression",
	config.ModelRandomForest:       "Random Forest",
	config.ModelNaiveBayes:         "Naive Bayes",
	config.ModelPerceptron:         "Perceptron",
	config.ModelSGD:                "Stochastic Gradient Descent",
	config.ModelDecisionTree:       "Decision Tree",
}

var modelOrder = []string{
	config.ModelLinearSVC,
	config.ModelKNN,
	config.ModelLogisticRegression,
	config.ModelRandomForest,
	config.ModelNaiveBayes,
	config.ModelPerceptron,
	config.ModelSGD,
	config.ModelDecisionTree,
}

// newCandidates builds the eight unfitted classifiers of the comparison.
// With models.standardize the scale sensitive ones get a StandardScaler in
// front of them.
func newCandidates(cfg *config.Config) ([]candidate, error) {
	scaled := func(est model.Classifier) (model.Classifier, error) {
		if !cfg.Models.Standardize {
			return est, nil
		}
		return pipeline.NewPipeline(
			pipeline.Step{Name: "scaler", Estimator: preprocessing.NewStandardScaler()},
			pipeline.Step{Name: "clf", Estimator: est},
		)
	}

	raw := map[string]model.Classifier{
		config.ModelSGD: linear_model.NewSGDClassifier(
			linear_model.WithSGDMaxIter(cfg.Models.SGDMaxIter),
			linear_model.WithSGDTol(0),
			linear_model.WithSGDRandomState(cfg.Seed),
		),
		config.ModelRandomForest: ensemble.NewRandomForestClassifier(
			ensemble.WithNEstimators(cfg.Models.NEstimators),
			ensemble.WithNJobs(cfg.NJobs),
			ensemble.WithRandomState(cfg.Seed),
		),
		config.ModelLogisticRegression: linear_model.NewLogisticRegression(),
		config.ModelKNN: neighbors.NewKNeighborsClassifier(
			neighbors.WithNNeighbors(cfg.Models.KNNNeighbors),
		),
		config.ModelNaiveBayes: naive_bayes.NewGaussianNB(),
		config.ModelPerceptron: linear_model.NewPerceptron(
			linear_model.WithPerceptronMaxIter(cfg.Models.PerceptronMaxIter),
			linear_model.WithPerceptronRandomState(cfg.Seed),
		),
		config.ModelLinearSVC: svm.NewLinearSVC(svm.WithRandomState(cfg.Seed)),
		config.ModelDecisionTree: tree.NewDecisionTreeClassifier(
			tree.WithRandomState(cfg.Seed),
		),
	}

	out := make([]candidate, 0, len(modelOrder))
	for _, key := range modelOrder {
		est := raw[key]
		switch key {
		case config.ModelSGD, config.ModelLogisticRegression, config.ModelKNN,
			config.ModelPerceptron, config.ModelLinearSVC:
			var err error
			if est, err = scaled(est); err != nil {
				return nil, err
			}
		}
		out = append(out, candidate{key: key, name: modelNames[key], est: est})
	}
	return out, nil
}

// newForest builds the random forest used from the out-of-bag stage on.
func newForest(cfg *config.Config, fc config.ForestConfig) *ensemble.RandomForestClassifier {
	return ensemble.NewRandomForestClassifier(
		ensemble.WithCriterion(fc.Criterion),
		ensemble.WithMinSamplesLeaf(fc.MinSamplesLeaf),
		ensemble.WithMinSamplesSplit(fc.MinSamplesSplit),
		ensemble.WithNEstimators(fc.NEstimators),
		ensemble.WithOOBScore(true),
		ensemble.WithNJobs(cfg.NJobs),
		ensemble.WithRandomState(fc.RandomState),
	)
}

// newBaselineForest is the forest with library defaults apart from the tree
// count, fitted only for its out-of-bag score.
func newBaselineForest(cfg *config.Config) *ensemble.RandomForestClassifier {
	return ensemble.NewRandomForestClassifier(
		ensemble.WithNEstimators(cfg.Models.NEstimators),
		ensemble.WithOOBScore(true),
		ensemble.WithNJobs(cfg.NJobs),
		ensemble.WithRandomState(cfg.Seed),
	)
}

// newSplitter returns the primary cross-validation splitter.
func newSplitter(cv config.CVConfig, seed int64) model_selection.Splitter {
	if cv.Strategy == "kfold" {
		return model_selection.NewKFold(cv.Folds, cv.Shuffle, seed)
	}
	return model_selection.NewStratifiedKFold(cv.Folds, cv.Shuffle, seed)
}
