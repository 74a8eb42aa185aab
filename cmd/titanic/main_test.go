package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/titanic/pkg/errors"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func sample(name string) string {
	return filepath.Join("..", "..", "dataset", "testdata", name)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "titanic dev\n", out)
}

func TestRun_JSON(t *testing.T) {
	// サンプルは12行しかないので fold 数を減らす
	t.Setenv("TITANIC_CV_FOLDS", "3")
	t.Setenv("TITANIC_N_JOBS", "2")
	t.Setenv("TITANIC_MODELS_N_ESTIMATORS", "10")
	t.Setenv("TITANIC_SEARCH_TUNED_N_ESTIMATORS", "10")

	dir := t.TempDir()
	submission := filepath.Join(dir, "submission.csv")
	out, err := execute(t, "run",
		"--train", sample("train_sample.csv"),
		"--test", sample("test_sample.csv"),
		"--format", "json",
		"--seed", "7",
		"--submission", submission,
		"--plots", filepath.Join(dir, "plots"),
		"--log-level", "error",
	)
	require.NoError(t, err)

	var got struct {
		Seed int64 `json:"seed"`
		Data struct {
			TrainRows int `json:"train_rows"`
			TestRows  int `json:"test_rows"`
		} `json:"data"`
		CV struct {
			Folds  int       `json:"folds"`
			Scores []float64 `json:"scores"`
		} `json:"cross_validation"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, int64(7), got.Seed)
	assert.Equal(t, 12, got.Data.TrainRows)
	assert.Equal(t, 5, got.Data.TestRows)
	assert.Equal(t, 3, got.CV.Folds)
	assert.Len(t, got.CV.Scores, 3)

	_, err = os.Stat(submission)
	assert.NoError(t, err)
	entries, err := os.ReadDir(filepath.Join(dir, "plots"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestRun_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titanic.yaml")
	content := "cv:\n  folds: 3\nmodels:\n  n_estimators: 5\nsearch:\n  tuned:\n    n_estimators: 5\nselection:\n  model: naive_bayes\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	out, err := execute(t, "run", "-c", path,
		"--train", sample("train_sample.csv"),
		"--test", sample("test_sample.csv"),
		"--log-level", "error",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Model comparison")
	assert.Contains(t, out, "selected: naive_bayes")
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing paths", []string{"run"}},
		{"bad format", []string{"run", "--train", sample("train_sample.csv"), "--test", sample("test_sample.csv"), "--format", "xml"}},
		{"bad log level", []string{"run", "--log-level", "trace"}},
		{"missing config file", []string{"run", "-c", "nope.yaml"}},
		{"schema error", []string{"run", "--train", sample("missing_column.csv"), "--test", sample("test_sample.csv"), "--log-level", "error"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}

	_, err := execute(t, "run", "--train", sample("train_sample.csv"), "--test", sample("test_sample.csv"), "--format", "xml")
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "output.format", ve.ParamName)
}
