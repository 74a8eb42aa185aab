package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/pkg/errors"
	"github.com/YuminosukeSato/titanic/preprocessing"
	"github.com/YuminosukeSato/titanic/sklearn/linear_model"
	"github.com/YuminosukeSato/titanic/sklearn/neighbors"
	"github.com/YuminosukeSato/titanic/sklearn/svm"
)

// 列1はスケールが大きく、生の距離では隣がほぼ必ず別クラスになる
func skewedData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		0, 1000,
		0, 3000,
		0, 5000,
		0, 7000,
		1, 2000,
		1, 4000,
		1, 6000,
		1, 8000,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func TestPipeline_ScalerKNN(t *testing.T) {
	X, y := skewedData()

	raw := neighbors.NewKNeighborsClassifier(neighbors.WithNNeighbors(3))
	require.NoError(t, raw.Fit(X, y))
	rawScore, err := raw.Score(X, y)
	require.NoError(t, err)

	p, err := NewPipeline(
		Step{Name: "scaler", Estimator: preprocessing.NewStandardScaler()},
		Step{Name: "knn", Estimator: neighbors.NewKNeighborsClassifier(neighbors.WithNNeighbors(3))},
	)
	require.NoError(t, err)
	require.NoError(t, p.Fit(X, y))

	score, err := p.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
	assert.Less(t, rawScore, score)

	proba, err := p.PredictProba(X)
	require.NoError(t, err)
	_, cols := proba.Dims()
	assert.Equal(t, 2, cols)
	assert.Equal(t, []int{0, 1}, p.Classes())
}

func TestPipeline_Params(t *testing.T) {
	p, err := NewPipeline(
		Step{Name: "scaler", Estimator: preprocessing.NewStandardScaler()},
		Step{Name: "clf", Estimator: linear_model.NewLogisticRegression()},
	)
	require.NoError(t, err)

	params := p.GetParams()
	assert.Equal(t, true, params["scaler__with_mean"])
	assert.Contains(t, params, "clf__C")

	require.NoError(t, p.SetParams(map[string]interface{}{
		"scaler__with_mean": false,
		"clf__C":            0.5,
	}))
	params = p.GetParams()
	assert.Equal(t, false, params["scaler__with_mean"])
	assert.Equal(t, 0.5, params["clf__C"])

	assert.Error(t, p.SetParams(map[string]interface{}{"C": 1.0}))
	assert.Error(t, p.SetParams(map[string]interface{}{"other__C": 1.0}))
	assert.Error(t, p.SetParams(map[string]interface{}{"clf__gamma": 1.0}))

	clone := p.Clone().(*Pipeline)
	assert.Equal(t, p.GetParams(), clone.GetParams())
	_, err = clone.Predict(mat.NewDense(1, 2, []float64{0, 0}))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestPipeline_NoProba(t *testing.T) {
	X, y := skewedData()
	p, err := NewPipeline(
		Step{Name: "scaler", Estimator: preprocessing.NewStandardScaler()},
		Step{Name: "svc", Estimator: svm.NewLinearSVC()},
	)
	require.NoError(t, err)
	require.NoError(t, p.Fit(X, y))

	_, err = p.PredictProba(X)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
	assert.Nil(t, p.Classes())
}

func TestNewPipeline_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step
	}{
		{"empty", nil},
		{"last not classifier", []Step{{Name: "scaler", Estimator: preprocessing.NewStandardScaler()}}},
		{"middle not transformer", []Step{
			{Name: "a", Estimator: svm.NewLinearSVC()},
			{Name: "b", Estimator: svm.NewLinearSVC()},
		}},
		{"duplicate", []Step{
			{Name: "a", Estimator: preprocessing.NewStandardScaler()},
			{Name: "a", Estimator: svm.NewLinearSVC()},
		}},
		{"double underscore", []Step{{Name: "a__b", Estimator: svm.NewLinearSVC()}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPipeline(tt.steps...)
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}
}
