package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/pkg/errors"
)

type constPredictor struct{ out *mat.Dense }

func (c constPredictor) Predict(mat.Matrix) (mat.Matrix, error) { return c.out, nil }

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("GaussianNB", "Predict")
	require.Error(t, err)
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "GaussianNB", nf.ModelName)
	assert.Equal(t, "Predict", nf.Method)

	s.SetDimensions(13, 891)
	s.SetFitted()
	assert.NoError(t, s.RequireFitted("GaussianNB", "Predict"))
	assert.Equal(t, ModelState{Fitted: true, NFeatures: 13, NSamples: 891}, s.GetState())

	s.Reset()
	nFeatures, nSamples := s.GetDimensions()
	assert.False(t, s.IsFitted())
	assert.Zero(t, nFeatures)
	assert.Zero(t, nSamples)
}

func TestCheckFitInput(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})

	t.Run("ok", func(t *testing.T) {
		n, p, err := CheckFitInput("Fit", X, mat.NewDense(3, 1, []float64{0, 1, 0}))
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, 2, p)
	})

	t.Run("row mismatch", func(t *testing.T) {
		_, _, err := CheckFitInput("Fit", X, mat.NewDense(2, 1, nil))
		var de *errors.DimensionError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, 0, de.Axis)
		assert.Equal(t, 3, de.Expected)
		assert.Equal(t, 2, de.Got)
	})

	t.Run("y not a column", func(t *testing.T) {
		_, _, err := CheckFitInput("Fit", X, mat.NewDense(3, 2, nil))
		var de *errors.DimensionError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, 1, de.Axis)
	})

	t.Run("nil", func(t *testing.T) {
		_, _, err := CheckFitInput("Fit", nil, nil)
		assert.Error(t, err)
	})

	t.Run("nan", func(t *testing.T) {
		bad := mat.NewDense(2, 1, []float64{1, math.NaN()})
		_, _, err := CheckFitInput("Fit", bad, mat.NewDense(2, 1, nil))
		var ve *errors.ValueError
		assert.True(t, errors.As(err, &ve))
	})
}

func TestCheckPredictInput(t *testing.T) {
	_, err := CheckPredictInput("Predict", mat.NewDense(2, 3, nil), 2)
	var de *errors.DimensionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 2, de.Expected)
	assert.Equal(t, 3, de.Got)

	rows, err := CheckPredictInput("Predict", mat.NewDense(4, 2, nil), 2)
	require.NoError(t, err)
	assert.Equal(t, 4, rows)
}

func TestClassHelpers(t *testing.T) {
	y := mat.NewDense(5, 1, []float64{1, 0, 2, 1, 0})
	classes := ExtractClasses(y)
	assert.Equal(t, []int{0, 1, 2}, classes)
	assert.Equal(t, []int{1, 0, 2, 1, 0}, EncodeLabels(y, classes))

	proba := mat.NewDense(3, 3, []float64{
		0.2, 0.5, 0.3,
		0.4, 0.4, 0.2,
		0.1, 0.1, 0.8,
	})
	pred := ArgmaxClasses(proba, []int{5, 6, 7})
	assert.Equal(t, []float64{6, 5, 7}, mat.Col(nil, 0, pred))
}

func TestMeanAccuracy(t *testing.T) {
	p := constPredictor{out: mat.NewDense(4, 1, []float64{1, 0, 1, 1})}
	acc, err := MeanAccuracy(p, mat.NewDense(4, 1, nil), mat.NewDense(4, 1, []float64{1, 0, 0, 1}))
	require.NoError(t, err)
	assert.InDelta(t, 0.75, acc, 1e-12)

	_, err = MeanAccuracy(p, nil, mat.NewDense(3, 1, nil))
	assert.Error(t, err)
}

func TestParamConversions(t *testing.T) {
	i, err := ParamInt("min_samples_leaf", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, i)

	i, err = ParamInt("min_samples_leaf", 5.0)
	require.NoError(t, err)
	assert.Equal(t, 5, i)

	_, err = ParamInt("min_samples_leaf", 5.5)
	assert.Error(t, err)

	f, err := ParamFloat("C", 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, f)

	s, err := ParamString("criterion", "entropy")
	require.NoError(t, err)
	assert.Equal(t, "entropy", s)

	_, err = ParamString("criterion", 1)
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "criterion", ve.ParamName)

	b, err := ParamBool("oob_score", true)
	require.NoError(t, err)
	assert.True(t, b)

	seed, err := ParamInt64("random_state", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), seed)
}
