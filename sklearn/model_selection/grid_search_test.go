package model_selection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/titanic/pkg/errors"
	"github.com/YuminosukeSato/titanic/sklearn/ensemble"
)

func TestParamGrid_Candidates(t *testing.T) {
	grid := ParamGrid{
		"b": {1, 2},
		"a": {"x", "y"},
	}
	got, err := grid.Candidates()
	require.NoError(t, err)
	want := []map[string]interface{}{
		{"a": "x", "b": 1},
		{"a": "x", "b": 2},
		{"a": "y", "b": 1},
		{"a": "y", "b": 2},
	}
	assert.Equal(t, want, got)

	_, err = ParamGrid{}.Candidates()
	assert.Error(t, err)
	_, err = ParamGrid{"a": {}}.Candidates()
	assert.Error(t, err)
}

func TestParamGrid_ForestGridSize(t *testing.T) {
	grid := ParamGrid{
		"criterion":         {"gini", "entropy"},
		"min_samples_leaf":  {1, 5, 10, 25, 50, 70},
		"min_samples_split": {2, 4, 10, 12, 16, 18, 25, 35},
		"n_estimators":      {100, 400, 700, 1000, 1500},
	}
	got, err := grid.Candidates()
	require.NoError(t, err)
	assert.Len(t, got, 2*6*8*5)
	assert.Equal(t, map[string]interface{}{
		"criterion": "gini", "min_samples_leaf": 1, "min_samples_split": 2, "n_estimators": 100,
	}, got[0])
	assert.Equal(t, 400, got[1]["n_estimators"])
}

func TestGridSearchCV_BestAndTies(t *testing.T) {
	X, y := blobs(5)
	gs := NewGridSearchCV(&stubClassifier{}, ParamGrid{"score": {0.5, 0.9, 0.9, 0.7}},
		WithCV(NewKFold(5, false, 0)), WithNJobs(3))
	require.NoError(t, gs.Fit(X, y))

	assert.Equal(t, 1, gs.BestIndex())
	assert.Equal(t, 0.9, gs.BestScore())
	assert.Equal(t, map[string]interface{}{"score": 0.9}, gs.BestParams())

	ranks := make([]int, 0, 4)
	for _, r := range gs.Results() {
		ranks = append(ranks, r.Rank)
		assert.Len(t, r.Scores, 5)
	}
	assert.Equal(t, []int{4, 1, 1, 3}, ranks)

	best := gs.BestEstimator().(*stubClassifier)
	assert.Equal(t, 0.9, best.score)
	assert.True(t, best.fitted)

	pred, err := gs.Predict(X)
	require.NoError(t, err)
	r, _ := pred.Dims()
	assert.Equal(t, 10, r)
}

func TestGridSearchCV_NoRefit(t *testing.T) {
	X, y := blobs(5)
	gs := NewGridSearchCV(&stubClassifier{}, ParamGrid{"score": {0.1, 0.2}},
		WithCV(NewKFold(2, false, 0)), WithRefit(false))

	_, err := gs.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, gs.Fit(X, y))
	assert.Nil(t, gs.BestEstimator())
	_, err = gs.Score(X, y)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}

func TestGridSearchCV_Errors(t *testing.T) {
	X, y := blobs(5)

	gs := NewGridSearchCV(&stubClassifier{}, ParamGrid{"gamma": {1.0}}, WithCV(NewKFold(2, false, 0)))
	var ve *errors.ValidationError
	assert.True(t, errors.As(gs.Fit(X, y), &ve))

	gs = NewGridSearchCV(&stubClassifier{}, ParamGrid{"fail": {false, true}}, WithCV(NewKFold(2, false, 0)), WithNJobs(2))
	assert.ErrorContains(t, gs.Fit(X, y), "stub failure")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gs = NewGridSearchCV(&stubClassifier{}, ParamGrid{"score": {0.1}}, WithCV(NewKFold(2, false, 0)))
	assert.ErrorIs(t, gs.FitContext(ctx, X, y), context.Canceled)
}

func TestGridSearchCV_RandomForest(t *testing.T) {
	X, y := blobs(15)
	// 1件だけラベルを反転させる
	y.Set(0, 0, 1)

	rf := ensemble.NewRandomForestClassifier(ensemble.WithNEstimators(5), ensemble.WithRandomState(1))
	gs := NewGridSearchCV(rf, ParamGrid{
		"criterion":        {"gini", "entropy"},
		"min_samples_leaf": {1, 5},
	}, WithCV(NewStratifiedKFold(3, false, 0)), WithNJobs(-1))
	require.NoError(t, gs.Fit(X, y))

	assert.Len(t, gs.Results(), 4)
	assert.Greater(t, gs.BestScore(), 0.9)
	score, err := gs.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.9)

	params := gs.BestEstimator().GetParams()
	assert.Equal(t, gs.BestParams()["criterion"], params["criterion"])
}
