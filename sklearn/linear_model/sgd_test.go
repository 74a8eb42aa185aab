package linear_model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/pkg/errors"
)

func separableData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		4, 4,
		4, 5,
		5, 4,
		5, 5,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func TestSGDClassifier_Hinge(t *testing.T) {
	X, y := separableData()
	sgd := NewSGDClassifier(WithSGDMaxIter(200), WithSGDTol(0), WithSGDRandomState(0))
	require.NoError(t, sgd.Fit(X, y))

	score, err := sgd.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
	assert.Equal(t, 200, sgd.NIter())

	_, err = sgd.PredictProba(X)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}

func TestSGDClassifier_Deterministic(t *testing.T) {
	X, y := separableData()
	fit := func() [][]float64 {
		sgd := NewSGDClassifier(WithSGDMaxIter(5), WithSGDTol(0), WithSGDRandomState(42))
		require.NoError(t, sgd.Fit(X, y))
		return sgd.Coef()
	}
	assert.Equal(t, fit(), fit())
}

func TestSGDClassifier_LogLossProba(t *testing.T) {
	X, y := separableData()
	sgd := NewSGDClassifier(WithSGDLoss("log_loss"), WithSGDMaxIter(100), WithSGDRandomState(1))
	require.NoError(t, sgd.Fit(X, y))

	proba, err := sgd.PredictProba(X)
	require.NoError(t, err)
	assertProbaRows(t, proba)
	assert.Greater(t, proba.At(0, 0), 0.5)
	assert.Greater(t, proba.At(7, 1), 0.5)
}

func TestSGDClassifier_EarlyStopping(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	X, y := separableData()
	sgd := NewSGDClassifier(WithSGDRandomState(0))
	require.NoError(t, sgd.Fit(X, y))
	assert.Less(t, sgd.NIter(), 1000)
	assert.Empty(t, warnings)

	short := NewSGDClassifier(WithSGDMaxIter(2), WithSGDRandomState(0))
	require.NoError(t, short.Fit(X, y))
	require.Len(t, warnings, 1)
	var cw *errors.ConvergenceWarning
	assert.True(t, errors.As(warnings[0], &cw))
}

func TestSGDClassifier_Multiclass(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 10,
		1, 10,
		10, 0,
		10, 1,
		-10, -10,
		-11, -10,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 1, 1, 2, 2})
	sgd := NewSGDClassifier(WithSGDMaxIter(50), WithSGDTol(0))
	require.NoError(t, sgd.Fit(X, y))
	assert.Len(t, sgd.Coef(), 3)

	score, err := sgd.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestSGDClassifier_Validation(t *testing.T) {
	X, y := separableData()
	tests := []struct {
		name string
		opts []SGDOption
	}{
		{"loss", []SGDOption{WithSGDLoss("epsilon_insensitive")}},
		{"penalty", []SGDOption{WithSGDPenalty("elasticnet")}},
		{"schedule", []SGDOption{WithSGDLearningRate("adaptive", 0.1)}},
		{"eta0", []SGDOption{WithSGDLearningRate("constant", 0)}},
		{"alpha", []SGDOption{WithSGDAlpha(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *errors.ValidationError
			assert.True(t, errors.As(NewSGDClassifier(tt.opts...).Fit(X, y), &ve))
		})
	}
}

func TestSGDClassifier_Params(t *testing.T) {
	sgd := NewSGDClassifier()
	require.NoError(t, sgd.SetParams(map[string]interface{}{
		"max_iter": 5,
		"tol":      nil,
		"loss":     "modified_huber",
	}))
	params := sgd.GetParams()
	assert.Equal(t, 5, params["max_iter"])
	assert.Equal(t, 0.0, params["tol"])
	assert.Equal(t, params, sgd.Clone().GetParams())
	assert.Error(t, sgd.SetParams(map[string]interface{}{"epsilon": 0.1}))

	_, err := sgd.Predict(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestPerceptron(t *testing.T) {
	X, y := separableData()
	p := NewPerceptron(WithPerceptronMaxIter(200), WithPerceptronTol(0), WithPerceptronRandomState(0))
	require.NoError(t, p.Fit(X, y))

	score, err := p.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
	assert.Equal(t, []int{0, 1}, p.Classes())

	params := p.GetParams()
	assert.Equal(t, 1.0, params["eta0"])
	assert.Equal(t, "none", params["penalty"])
	assert.NotContains(t, params, "loss")
	assert.Equal(t, params, p.Clone().GetParams())

	assert.Error(t, p.SetParams(map[string]interface{}{"loss": "hinge"}))
}

func TestPerceptron_WarningsNameThePerceptron(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	X, y := separableData()
	p := NewPerceptron(WithPerceptronMaxIter(2), WithPerceptronRandomState(0))
	require.NoError(t, p.Fit(X, y))
	require.Len(t, warnings, 1)
	var cw *errors.ConvergenceWarning
	require.True(t, errors.As(warnings[0], &cw))
	assert.Equal(t, "Perceptron", cw.Algorithm)
	assert.Equal(t, 2, cw.Iterations)

	_, err := NewPerceptron().Predict(X)
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Perceptron", nf.ModelName)

	// クローンも同じ名前で警告する
	warnings = nil
	require.NoError(t, p.Clone().Fit(X, y))
	require.Len(t, warnings, 1)
	require.True(t, errors.As(warnings[0], &cw))
	assert.Equal(t, "Perceptron", cw.Algorithm)
}
