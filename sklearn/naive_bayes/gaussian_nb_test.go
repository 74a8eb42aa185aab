package naive_bayes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/pkg/errors"
)

func twoBlobs() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		1.0, 2.0,
		1.2, 1.8,
		0.8, 2.2,
		1.1, 2.1,
		5.0, 6.0,
		5.2, 5.8,
		4.8, 6.2,
		5.1, 6.1,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func TestGaussianNB_FitPredict(t *testing.T) {
	X, y := twoBlobs()
	nb := NewGaussianNB()

	assert.False(t, nb.state.IsFitted())
	require.NoError(t, nb.Fit(X, y))
	assert.True(t, nb.state.IsFitted())
	assert.Equal(t, []int{0, 1}, nb.Classes())

	pred, err := nb.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y, pred))

	score, err := nb.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	// 母平均
	assert.InDelta(t, 1.025, nb.Theta()[0][0], 1e-12)
	assert.InDelta(t, 6.025, nb.Theta()[1][1], 1e-12)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, nb.ClassPrior(), 1e-12)
}

func TestGaussianNB_PredictProba(t *testing.T) {
	X, y := twoBlobs()
	nb := NewGaussianNB()
	require.NoError(t, nb.Fit(X, y))

	proba, err := nb.PredictProba(X)
	require.NoError(t, err)
	logProba, err := nb.PredictLogProba(X)
	require.NoError(t, err)

	rows, cols := proba.Dims()
	assert.Equal(t, 8, rows)
	assert.Equal(t, 2, cols)
	for i := 0; i < rows; i++ {
		assert.InDelta(t, 1.0, proba.At(i, 0)+proba.At(i, 1), 1e-9)
		for j := 0; j < cols; j++ {
			assert.InDelta(t, math.Exp(logProba.At(i, j)), proba.At(i, j), 1e-9)
		}
	}
	assert.Greater(t, proba.At(0, 0), 0.99)
	assert.Greater(t, proba.At(7, 1), 0.99)
}

func TestGaussianNB_VarSmoothing(t *testing.T) {
	// 特徴量1はクラス内で定数
	X := mat.NewDense(4, 2, []float64{
		0, 1,
		1, 1,
		4, 3,
		5, 3,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	nb := NewGaussianNB()
	require.NoError(t, nb.Fit(X, y))
	for _, row := range nb.Var() {
		for _, v := range row {
			assert.Greater(t, v, 0.0)
		}
	}

	pred, err := nb.Predict(mat.NewDense(2, 2, []float64{0.5, 1, 4.5, 3}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
	assert.Equal(t, 1.0, pred.At(1, 0))
}

func TestGaussianNB_Priors(t *testing.T) {
	X, y := twoBlobs()

	nb := NewGaussianNB(WithPriors([]float64{0.9, 0.1}))
	require.NoError(t, nb.Fit(X, y))
	assert.Equal(t, []float64{0.9, 0.1}, nb.ClassPrior())

	bad := NewGaussianNB(WithPriors([]float64{0.5, 0.6}))
	err := bad.Fit(X, y)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	short := NewGaussianNB(WithPriors([]float64{1.0}))
	assert.Error(t, short.Fit(X, y))
}

func TestGaussianNB_InvalidInput(t *testing.T) {
	nb := NewGaussianNB()

	_, err := nb.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	X, y := twoBlobs()
	require.NoError(t, nb.Fit(X, y))

	_, err = nb.Predict(mat.NewDense(1, 3, []float64{1, 2, 3}))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	err = nb.Fit(X, mat.NewDense(3, 1, []float64{0, 1, 0}))
	assert.Error(t, err)
}

func TestGaussianNB_Params(t *testing.T) {
	nb := NewGaussianNB()
	assert.Equal(t, 1e-9, nb.GetParams()["var_smoothing"])

	require.NoError(t, nb.SetParams(map[string]interface{}{"var_smoothing": 1e-6}))
	assert.Equal(t, 1e-6, nb.GetParams()["var_smoothing"])
	assert.Error(t, nb.SetParams(map[string]interface{}{"alpha": 1.0}))
	assert.Error(t, nb.SetParams(map[string]interface{}{"priors": "uniform"}))

	clone := nb.Clone().(*GaussianNB)
	assert.Equal(t, 1e-6, clone.varSmoothing)
	assert.False(t, clone.state.IsFitted())
}
