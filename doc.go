// Package titanic predicts Titanic passenger survival with classical tabular
// machine learning, on top of a small scikit-learn-like library for Go.
//
// The experiment loads the Kaggle train and test tables, fills missing
// values, engineers features and compares eight classifiers. It then
// evaluates the shortlisted model with k-fold cross-validation, reads the
// random forest's out-of-bag score, optionally grid-searches the forest and
// reports the confusion matrix, precision, recall, F1 and ROC-AUC computed
// from cross-validated predictions.
//
// # Quick Start
//
// From the command line:
//
//	go run ./cmd/titanic run --train data/train.csv --test data/test.csv
//
// From Go:
//
//	cfg := config.Default()
//	cfg.Data.Train = "data/train.csv"
//	cfg.Data.Test = "data/test.csv"
//
//	r, err := experiment.Run(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = report.Render(os.Stdout, r, report.FormatText)
//
// The estimators can be used on their own:
//
//	rf := ensemble.NewRandomForestClassifier(
//	    ensemble.WithNEstimators(100),
//	    ensemble.WithOOBScore(true),
//	    ensemble.WithRandomState(1),
//	)
//	if err := rf.Fit(X, y); err != nil {
//	    log.Fatal(err)
//	}
//	oob, _ := rf.OOBScore()
//
// # Packages
//
// The experiment:
//
//   - dataset: CSV loading (qframe) and submission writing
//   - features: imputation, categorical encoding, buckets and derived columns
//   - experiment: the staged run that produces a report
//   - report: text, JSON and YAML rendering plus PNG charts (gonum/plot)
//   - config: viper based configuration with validation
//   - cmd/titanic: the cobra CLI
//
// The library:
//
//   - core/model: estimator interfaces, parameter helpers, fit state
//   - core/parallel: bounded worker fan-out on errgroup
//   - sklearn/linear_model: LogisticRegression, SGDClassifier, Perceptron
//   - sklearn/svm: LinearSVC
//   - sklearn/neighbors: KNeighborsClassifier
//   - sklearn/naive_bayes: GaussianNB
//   - sklearn/tree: DecisionTreeClassifier
//   - sklearn/ensemble: RandomForestClassifier
//   - sklearn/model_selection: KFold, StratifiedKFold, cross validation, GridSearchCV
//   - sklearn/pipeline: transformer chains in front of a classifier
//   - preprocessing: StandardScaler
//   - metrics: accuracy, log loss, confusion matrix, ROC and PR curves
//   - pkg/errors, pkg/log: structured errors, warnings and zerolog logging
//
// Every estimator with randomness takes a random_state, so a fixed seed
// reproduces a run exactly, also when trees and folds run in parallel.
package titanic
