package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/titanic/pkg/errors"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Data.Train = "train.csv"
	cfg.Data.Test = "test.csv"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, -1, cfg.NJobs)
	assert.Equal(t, []string{"alone", "parch"}, cfg.Features.Drop)
	assert.Equal(t, 3, cfg.Models.KNNNeighbors)
	assert.Equal(t, 5, cfg.Models.SGDMaxIter)
	assert.Equal(t, 100, cfg.Models.NEstimators)
	assert.False(t, cfg.Models.Standardize)
	assert.Equal(t, ModelRandomForest, cfg.Selection.Model)
	assert.Equal(t, 10, cfg.CV.Folds)
	assert.Equal(t, "stratified", cfg.CV.Strategy)
	assert.False(t, cfg.Search.Enabled)
	assert.Len(t, cfg.Search.Grid, 4)
	assert.Equal(t, ForestConfig{
		Criterion: "gini", MinSamplesLeaf: 1, MinSamplesSplit: 10, NEstimators: 100, RandomState: 1,
	}, cfg.Search.Tuned)
	assert.Equal(t, 3, cfg.Evaluation.Folds)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Equal(t, "info", cfg.Log.Level)

	// パスが無いので検証は通らない
	var ve *errors.ValidationError
	require.True(t, errors.As(cfg.Validate(), &ve))
	assert.Equal(t, "data.train", ve.ParamName)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		param  string
	}{
		{"valid", func(*Config) {}, ""},
		{"folds too small", func(c *Config) { c.CV.Folds = 1 }, "cv.folds"},
		{"unknown model", func(c *Config) { c.Selection.Model = "xgboost" }, "selection.model"},
		{"best is accepted", func(c *Config) { c.Selection.Model = ModelBest }, ""},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
		{"zero n_jobs", func(c *Config) { c.NJobs = 0 }, "n_jobs"},
		{"n_jobs below -1", func(c *Config) { c.NJobs = -2 }, "n_jobs"},
		{"unknown feature", func(c *Config) { c.Features.Drop = []string{"cabin_number"} }, "features.drop[0]"},
		{"unknown strategy", func(c *Config) { c.CV.Strategy = "group" }, "cv.strategy"},
		{"bad criterion", func(c *Config) { c.Search.Tuned.Criterion = "mse" }, "search.tuned.criterion"},
		{"search without grid", func(c *Config) {
			c.Search.Enabled = true
			c.Search.Grid = nil
		}, "search.grid"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"missing test", func(c *Config) { c.Data.Test = "" }, "data.test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.param == "" {
				assert.NoError(t, err)
				return
			}
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.param, ve.ParamName)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TITANIC_DATA_TRAIN", "train.csv")
	t.Setenv("TITANIC_DATA_TEST", "test.csv")

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	want := validConfig()
	assert.Equal(t, want.Seed, cfg.Seed)
	assert.Equal(t, want.CV, cfg.CV)
	assert.Equal(t, want.Search.Tuned, cfg.Search.Tuned)
	assert.Equal(t, want.Features.Drop, cfg.Features.Drop)
	assert.Len(t, cfg.Search.Grid["min_samples_split"], 8)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titanic.yaml")
	content := `
data:
  train: data/train.csv
  test: data/test.csv
seed: 7
cv:
  folds: 5
  strategy: kfold
  shuffle: true
features:
  drop: []
output:
  format: json
search:
  enabled: true
  grid:
    n_estimators: [10, 20]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// 環境変数はファイルより優先される
	t.Setenv("TITANIC_SEED", "11")
	t.Setenv("TITANIC_SELECTION_MODEL", "best")

	v, err := NewViper(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "data/train.csv", cfg.Data.Train)
	assert.Equal(t, int64(11), cfg.Seed)
	assert.Equal(t, ModelBest, cfg.Selection.Model)
	assert.Equal(t, CVConfig{Folds: 5, Strategy: "kfold", Shuffle: true}, cfg.CV)
	assert.Empty(t, cfg.Features.Drop)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.True(t, cfg.Search.Enabled)
	assert.Len(t, cfg.Search.Grid["n_estimators"], 2)
	// ファイルに無いキーは既定値
	assert.Equal(t, 3, cfg.Evaluation.Folds)
	assert.Equal(t, "gini", cfg.Search.Tuned.Criterion)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data:\n  train: a\n  test: b\ncv:\n  folds: 1\n"), 0o600))

	v, err := NewViper(path)
	require.NoError(t, err)
	_, err = Load(v)
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "cv.folds", ve.ParamName)
}

func TestNewViper_MissingFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
