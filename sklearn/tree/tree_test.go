package tree

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/pkg/errors"
)

func separable() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		2, 2,
		2, 3,
		3, 2,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	return X, y
}

func assertProbaRows(t *testing.T, probas mat.Matrix) {
	t.Helper()
	rows, cols := probas.Dims()
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			p := probas.At(i, j)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-6, "row %d", i)
	}
}

// TestDecisionTreeClassifier_FitPredict_Binary tests binary classification
func TestDecisionTreeClassifier_FitPredict_Binary(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		3, 3,
		3, 4,
		4, 3,
		4, 4,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	dt := NewDecisionTreeClassifier(WithCriterion("gini"), WithMaxDepth(5))
	require.NoError(t, dt.Fit(X, y))

	predictions, err := dt.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y, predictions))

	XTest := mat.NewDense(2, 2, []float64{
		0.5, 0.5,
		3.5, 3.5,
	})
	testPreds, err := dt.Predict(XTest)
	require.NoError(t, err)
	assert.Equal(t, 0.0, testPreds.At(0, 0))
	assert.Equal(t, 1.0, testPreds.At(1, 0))
}

func TestDecisionTreeClassifier_PredictProba(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier(WithMaxDepth(3))
	require.NoError(t, dt.Fit(X, y))

	probas, err := dt.PredictProba(X)
	require.NoError(t, err)
	rows, cols := probas.Dims()
	assert.Equal(t, 6, rows)
	assert.Equal(t, 2, cols)
	assertProbaRows(t, probas)
}

// XOR-like data needs several levels but is still fitted exactly.
func TestDecisionTreeClassifier_Score(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		0.0, 0.0,
		0.0, 0.1,
		0.1, 1.0,
		0.0, 0.9,
		1.0, 0.0,
		0.9, 0.0,
		1.0, 1.0,
		0.9, 0.9,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 1, 1, 1, 1, 0, 0})

	dt := NewDecisionTreeClassifier(WithMaxDepth(5), WithMinSamplesLeaf(1))
	require.NoError(t, dt.Fit(X, y))
	score, err := dt.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	XSimple, ySimple := separable()
	dtSimple := NewDecisionTreeClassifier(WithMaxDepth(3))
	require.NoError(t, dtSimple.Fit(XSimple, ySimple))
	scoreSimple, err := dtSimple.Score(XSimple, ySimple)
	require.NoError(t, err)
	assert.Equal(t, 1.0, scoreSimple)
}

func TestDecisionTreeClassifier_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		3, 3,
		3, 4,
		4, 3,
		6, 6,
		6, 7,
		7, 6,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	dt := NewDecisionTreeClassifier(WithCriterion("gini"), WithMaxDepth(5))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 3, dt.nClasses_)
	assert.Equal(t, []int{0, 1, 2}, dt.Classes())

	predictions, err := dt.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y, predictions))

	probas, err := dt.PredictProba(X)
	require.NoError(t, err)
	_, cols := probas.Dims()
	assert.Equal(t, 3, cols)
	assertProbaRows(t, probas)
	for i := 0; i < 9; i++ {
		assert.Equal(t, 1.0, probas.At(i, int(y.At(i, 0))))
	}
}

func TestDecisionTreeClassifier_Entropy(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier(WithCriterion("entropy"), WithMaxDepth(3))
	require.NoError(t, dt.Fit(X, y))
	score, err := dt.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestDecisionTreeClassifier_FeatureImportance(t *testing.T) {
	// 特徴量0だけがクラスを決める
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 1, 1,
		0, 0, 1,
		0, 1, 0,
		1, 0, 0,
		1, 1, 1,
		1, 0, 1,
		1, 1, 0,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	importances := dt.GetFeatureImportances()
	require.Len(t, importances, 3)
	assert.InDeltaSlice(t, []float64{1, 0, 0}, importances, 1e-12)
	assert.Equal(t, 1, dt.GetDepth())
	assert.Equal(t, 2, dt.GetNLeaves())
}

func TestDecisionTreeClassifier_MaxDepth(t *testing.T) {
	X := mat.NewDense(16, 2, nil)
	y := mat.NewDense(16, 1, nil)
	for i := 0; i < 16; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%4))
		y.Set(i, 0, float64(i%2))
	}

	dt := NewDecisionTreeClassifier(WithMaxDepth(2))
	require.NoError(t, dt.Fit(X, y))
	assert.LessOrEqual(t, dt.GetDepth(), 2)
	assert.LessOrEqual(t, dt.GetNLeaves(), 4)
}

func TestDecisionTreeClassifier_MinSamples(t *testing.T) {
	X := mat.NewDense(10, 2, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%3))
		y.Set(i, 0, float64(i%2))
	}

	dt := NewDecisionTreeClassifier(WithMinSamplesSplit(5), WithMinSamplesLeaf(2))
	require.NoError(t, dt.Fit(X, y))
	assert.LessOrEqual(t, dt.GetNLeaves(), 5)
}

func TestDecisionTreeClassifier_FitWeighted(t *testing.T) {
	X, y := separable()

	// 重み0の行は無視されるがクラスは保持される
	weights := []float64{2, 1, 0, 0, 0, 0}
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.FitWeighted(X, y, weights))
	assert.Equal(t, []int{0, 1}, dt.Classes())
	assert.Equal(t, 1, dt.GetNLeaves())

	probas, err := dt.PredictProba(X)
	require.NoError(t, err)
	assert.Equal(t, 1.0, probas.At(5, 0))
	assert.Equal(t, 0.0, probas.At(5, 1))

	err = dt.FitWeighted(X, y, []float64{1, 1})
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	assert.Error(t, dt.FitWeighted(X, y, make([]float64, 6)))
}

func TestDecisionTreeClassifier_MaxFeaturesDeterministic(t *testing.T) {
	X := mat.NewDense(12, 4, nil)
	y := mat.NewDense(12, 1, nil)
	for i := 0; i < 12; i++ {
		for j := 0; j < 4; j++ {
			X.Set(i, j, math.Mod(float64(i*(j+3)), 7))
		}
		y.Set(i, 0, float64(i%2))
	}

	fit := func() []float64 {
		dt := NewDecisionTreeClassifier(WithMaxFeatures("sqrt"), WithRandomState(7))
		require.NoError(t, dt.Fit(X, y))
		return dt.GetFeatureImportances()
	}
	assert.Equal(t, fit(), fit())
}

func TestDecisionTreeClassifier_GetSetParams(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	params := dt.GetParams()
	assert.Equal(t, "gini", params["criterion"])
	assert.Equal(t, 2, params["min_samples_split"])

	err := dt.SetParams(map[string]interface{}{
		"criterion":         "entropy",
		"max_depth":         5,
		"min_samples_split": 4,
		"min_samples_leaf":  2,
	})
	require.NoError(t, err)
	assert.Equal(t, "entropy", dt.criterion)
	assert.Equal(t, 5, dt.maxDepth)
	assert.Equal(t, 4, dt.minSamplesSplit)
	assert.Equal(t, 2, dt.minSamplesLeaf)

	clone := dt.Clone()
	assert.Equal(t, dt.GetParams(), clone.GetParams())

	assert.Error(t, dt.SetParams(map[string]interface{}{"splitter": "best"}))
	assert.Error(t, dt.SetParams(map[string]interface{}{"min_samples_leaf": "many"}))

	require.NoError(t, dt.SetParams(map[string]interface{}{"criterion": "log_loss"}))
	X, y := separable()
	var ve *errors.ValidationError
	assert.True(t, errors.As(dt.Fit(X, y), &ve))
}

func TestDecisionTreeClassifier_NotFitted(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	_, err := dt.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	_, err = dt.PredictProba(X)
	assert.Error(t, err)
}

func TestDecisionTreeClassifier_DimensionMismatch(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	_, err := dt.Predict(mat.NewDense(1, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func BenchmarkDecisionTreeFit(b *testing.B) {
	const n = 891
	X := mat.NewDense(n, 8, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < 8; j++ {
			X.Set(i, j, float64((i*(j+1))%17))
		}
		y.Set(i, 0, float64((i/3)%2))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dt := NewDecisionTreeClassifier()
		_ = dt.Fit(X, y)
	}
}
