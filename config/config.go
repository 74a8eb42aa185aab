// Package config はTitanic実験の設定を読み込みます。
//
// 値の優先順位はフラグ > 環境変数 (TITANIC_ プレフィックス) > 設定ファイル > Default() です。
package config

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/titanic/features"
	"github.com/YuminosukeSato/titanic/pkg/errors"
)

// EnvPrefix is the prefix of environment overrides, e.g. TITANIC_CV_FOLDS.
const EnvPrefix = "TITANIC"

// Model names accepted by selection.model.
const (
	ModelBest               = "best"
	ModelSGD                = "sgd"
	ModelRandomForest       = "random_forest"
	ModelLogisticRegression = "logistic_regression"
	ModelKNN                = "knn"
	ModelNaiveBayes         = "naive_bayes"
	ModelPerceptron         = "perceptron"
	ModelLinearSVC          = "linear_svc"
	ModelDecisionTree       = "decision_tree"
)

// Config is the full run configuration.
type Config struct {
	Data       DataConfig       `mapstructure:"data" json:"data" yaml:"data"`
	Seed       int64            `mapstructure:"seed" json:"seed" yaml:"seed"`
	NJobs      int              `mapstructure:"n_jobs" json:"n_jobs" yaml:"n_jobs" validate:"ne=0,gte=-1"`
	Features   FeaturesConfig   `mapstructure:"features" json:"features" yaml:"features"`
	Models     ModelsConfig     `mapstructure:"models" json:"models" yaml:"models"`
	Selection  SelectionConfig  `mapstructure:"selection" json:"selection" yaml:"selection"`
	CV         CVConfig         `mapstructure:"cv" json:"cv" yaml:"cv"`
	Search     SearchConfig     `mapstructure:"search" json:"search" yaml:"search"`
	Evaluation EvaluationConfig `mapstructure:"evaluation" json:"evaluation" yaml:"evaluation"`
	Output     OutputConfig     `mapstructure:"output" json:"output" yaml:"output"`
	Log        LogConfig        `mapstructure:"log" json:"log" yaml:"log"`
}

// DataConfig points at the input tables.
type DataConfig struct {
	Train string `mapstructure:"train" json:"train" yaml:"train" validate:"required"`
	Test  string `mapstructure:"test" json:"test" yaml:"test" validate:"required"`
}

// FeaturesConfig controls the feature matrix. Drop is applied from the
// out-of-bag stage onward; the model comparison always sees every column.
type FeaturesConfig struct {
	Drop []string `mapstructure:"drop" json:"drop" yaml:"drop" validate:"dive,feature"`
}

// ModelsConfig holds the settings of the compared classifiers.
type ModelsConfig struct {
	KNNNeighbors      int  `mapstructure:"knn_neighbors" json:"knn_neighbors" yaml:"knn_neighbors" validate:"gte=1"`
	SGDMaxIter        int  `mapstructure:"sgd_max_iter" json:"sgd_max_iter" yaml:"sgd_max_iter" validate:"gte=1"`
	PerceptronMaxIter int  `mapstructure:"perceptron_max_iter" json:"perceptron_max_iter" yaml:"perceptron_max_iter" validate:"gte=1"`
	NEstimators       int  `mapstructure:"n_estimators" json:"n_estimators" yaml:"n_estimators" validate:"gte=1"`
	Standardize       bool `mapstructure:"standardize" json:"standardize" yaml:"standardize"`
}

// SelectionConfig chooses the shortlisted model.
type SelectionConfig struct {
	Model string `mapstructure:"model" json:"model" yaml:"model" validate:"oneof=best sgd random_forest logistic_regression knn naive_bayes perceptron linear_svc decision_tree"`
}

// CVConfig is the primary cross-validation.
type CVConfig struct {
	Folds    int    `mapstructure:"folds" json:"folds" yaml:"folds" validate:"gte=2"`
	Strategy string `mapstructure:"strategy" json:"strategy" yaml:"strategy" validate:"oneof=stratified kfold"`
	Shuffle  bool   `mapstructure:"shuffle" json:"shuffle" yaml:"shuffle"`
}

// SearchConfig controls the random forest grid search. Tuned is used as is
// when the search is disabled.
type SearchConfig struct {
	Enabled bool                     `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Folds   int                      `mapstructure:"folds" json:"folds" yaml:"folds" validate:"gte=2"`
	Grid    map[string][]interface{} `mapstructure:"grid" json:"grid" yaml:"grid" validate:"required_if=Enabled true"`
	Tuned   ForestConfig             `mapstructure:"tuned" json:"tuned" yaml:"tuned"`
}

// ForestConfig is a complete random forest setting.
type ForestConfig struct {
	Criterion       string `mapstructure:"criterion" json:"criterion" yaml:"criterion" validate:"oneof=gini entropy"`
	MinSamplesLeaf  int    `mapstructure:"min_samples_leaf" json:"min_samples_leaf" yaml:"min_samples_leaf" validate:"gte=1"`
	MinSamplesSplit int    `mapstructure:"min_samples_split" json:"min_samples_split" yaml:"min_samples_split" validate:"gte=2"`
	NEstimators     int    `mapstructure:"n_estimators" json:"n_estimators" yaml:"n_estimators" validate:"gte=1"`
	RandomState     int64  `mapstructure:"random_state" json:"random_state" yaml:"random_state"`
}

// EvaluationConfig is the cross_val_predict setting behind the metrics.
type EvaluationConfig struct {
	Folds int `mapstructure:"folds" json:"folds" yaml:"folds" validate:"gte=2"`
}

// OutputConfig selects the report format and optional files.
type OutputConfig struct {
	Format     string `mapstructure:"format" json:"format" yaml:"format" validate:"oneof=text json yaml"`
	PlotsDir   string `mapstructure:"plots_dir" json:"plots_dir" yaml:"plots_dir"`
	Submission string `mapstructure:"submission" json:"submission" yaml:"submission"`
}

// LogConfig configures pkg/log.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" json:"format" yaml:"format" validate:"oneof=console json"`
}

// Default returns the settings of the reference experiment.
func Default() *Config {
	return &Config{
		Seed:  42,
		NJobs: -1,
		Features: FeaturesConfig{
			Drop: []string{features.Alone, features.Parch},
		},
		Models: ModelsConfig{
			KNNNeighbors:      3,
			SGDMaxIter:        5,
			PerceptronMaxIter: 5,
			NEstimators:       100,
		},
		Selection: SelectionConfig{Model: ModelRandomForest},
		CV:        CVConfig{Folds: 10, Strategy: "stratified"},
		Search: SearchConfig{
			Folds: 5,
			Grid: map[string][]interface{}{
				"criterion":         {"gini", "entropy"},
				"min_samples_leaf":  {1, 5, 10, 25, 50, 70},
				"min_samples_split": {2, 4, 10, 12, 16, 18, 25, 35},
				"n_estimators":      {100, 400, 700, 1000, 1500},
			},
			Tuned: ForestConfig{
				Criterion:       "gini",
				MinSamplesLeaf:  1,
				MinSamplesSplit: 10,
				NEstimators:     100,
				RandomState:     1,
			},
		},
		Evaluation: EvaluationConfig{Folds: 3},
		Output:     OutputConfig{Format: "text"},
		Log:        LogConfig{Level: "info", Format: "console"},
	}
}

// SetDefaults registers every key of Default with v so that environment
// variables and bound flags are seen by Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("data.train", d.Data.Train)
	v.SetDefault("data.test", d.Data.Test)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("n_jobs", d.NJobs)

	v.SetDefault("features.drop", d.Features.Drop)

	v.SetDefault("models.knn_neighbors", d.Models.KNNNeighbors)
	v.SetDefault("models.sgd_max_iter", d.Models.SGDMaxIter)
	v.SetDefault("models.perceptron_max_iter", d.Models.PerceptronMaxIter)
	v.SetDefault("models.n_estimators", d.Models.NEstimators)
	v.SetDefault("models.standardize", d.Models.Standardize)

	v.SetDefault("selection.model", d.Selection.Model)

	v.SetDefault("cv.folds", d.CV.Folds)
	v.SetDefault("cv.strategy", d.CV.Strategy)
	v.SetDefault("cv.shuffle", d.CV.Shuffle)

	v.SetDefault("search.enabled", d.Search.Enabled)
	v.SetDefault("search.folds", d.Search.Folds)
	v.SetDefault("search.grid", d.Search.Grid)
	v.SetDefault("search.tuned.criterion", d.Search.Tuned.Criterion)
	v.SetDefault("search.tuned.min_samples_leaf", d.Search.Tuned.MinSamplesLeaf)
	v.SetDefault("search.tuned.min_samples_split", d.Search.Tuned.MinSamplesSplit)
	v.SetDefault("search.tuned.n_estimators", d.Search.Tuned.NEstimators)
	v.SetDefault("search.tuned.random_state", d.Search.Tuned.RandomState)

	v.SetDefault("evaluation.folds", d.Evaluation.Folds)

	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.plots_dir", d.Output.PlotsDir)
	v.SetDefault("output.submission", d.Output.Submission)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// NewViper returns a viper instance with defaults, the optional YAML file
// and TITANIC_* environment overrides. A missing explicit file is an error.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", configFile)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	// TITANIC_CV_FOLDS -> cv.folds
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// エラーメッセージには設定キー名を使う
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = validate.RegisterValidation("feature", validateFeature)
}

func validateFeature(fl validator.FieldLevel) bool {
	_, err := features.Select([]string{fl.Field().String()})
	return err == nil
}

// Validate checks c and reports the first violation as a ValidationError
// keyed by its dotted config path.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.Wrap(err, "validate config")
	}
	fe := verrs[0]
	return errors.NewValidationError(configKey(fe.Namespace()), "failed on '"+fe.ActualTag()+"'", fe.Value())
}

// configKey turns "Config.cv.folds" into "cv.folds".
func configKey(namespace string) string {
	_, key, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return key
}
