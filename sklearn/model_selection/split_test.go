package model_selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/pkg/errors"
)

func assertPartition(t *testing.T, folds []Fold, n int) {
	t.Helper()
	seen := make([]int, n)
	for _, f := range folds {
		assert.Equal(t, n, len(f.TrainIndices)+len(f.TestIndices))
		for _, idx := range f.TestIndices {
			seen[idx]++
		}
	}
	for i, c := range seen {
		assert.Equal(t, 1, c, "sample %d", i)
	}
}

func TestKFold_Split(t *testing.T) {
	X := mat.NewDense(10, 1, nil)
	folds, err := NewKFold(3, false, 0).Split(X, nil)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].TestIndices)
	assert.Equal(t, []int{4, 5, 6}, folds[1].TestIndices)
	assert.Equal(t, []int{7, 8, 9}, folds[2].TestIndices)
	assert.Equal(t, []int{0, 1, 2, 3, 7, 8, 9}, folds[1].TrainIndices)
	assertPartition(t, folds, 10)
}

func TestKFold_Shuffle(t *testing.T) {
	X := mat.NewDense(20, 1, nil)
	a, err := NewKFold(4, true, 42).Split(X, nil)
	require.NoError(t, err)
	b, err := NewKFold(4, true, 42).Split(X, nil)
	require.NoError(t, err)
	plain, err := NewKFold(4, false, 42).Split(X, nil)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, plain, a)
	assertPartition(t, a, 20)
	for _, f := range a {
		assert.Len(t, f.TestIndices, 5)
	}
}

func TestStratifiedKFold_Split(t *testing.T) {
	X := mat.NewDense(10, 1, nil)
	y := mat.NewDense(10, 1, []float64{0, 0, 0, 0, 0, 0, 1, 1, 1, 1})

	folds, err := NewStratifiedKFold(2, false, 0).Split(X, y)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 6, 7}, folds[0].TestIndices)
	assert.Equal(t, []int{3, 4, 5, 8, 9}, folds[1].TestIndices)
	assertPartition(t, folds, 10)
}

func TestStratifiedKFold_Proportions(t *testing.T) {
	// 891人中342人が生存した分布
	n, positives := 891, 342
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < positives; i++ {
		y.Set((i*7)%n, 0, 1)
	}

	folds, err := NewStratifiedKFold(10, false, 0).Split(X, y)
	require.NoError(t, err)
	assertPartition(t, folds, n)
	for _, f := range folds {
		pos := 0
		for _, idx := range f.TestIndices {
			pos += int(y.At(idx, 0))
		}
		assert.InDelta(t, 34.2, float64(pos), 1.0)
		assert.InDelta(t, 89.1, float64(len(f.TestIndices)), 1.0)
	}

	shuffled, err := NewStratifiedKFold(10, true, 1).Split(X, y)
	require.NoError(t, err)
	assertPartition(t, shuffled, n)
	assert.NotEqual(t, folds, shuffled)
}

func TestSplit_Errors(t *testing.T) {
	X := mat.NewDense(4, 1, nil)
	y := mat.NewDense(4, 1, []float64{0, 0, 0, 1})

	var ve *errors.ValidationError
	_, err := NewKFold(1, false, 0).Split(X, nil)
	assert.True(t, errors.As(err, &ve))

	var vErr *errors.ValueError
	_, err = NewKFold(5, false, 0).Split(X, nil)
	assert.True(t, errors.As(err, &vErr))

	_, err = NewStratifiedKFold(4, false, 0).Split(X, y)
	assert.True(t, errors.As(err, &vErr))

	_, err = NewStratifiedKFold(2, false, 0).Split(X, nil)
	assert.Error(t, err)

	// 少数クラスが n_splits 未満でも警告のみ
	folds, err := NewStratifiedKFold(3, false, 0).Split(X, y)
	require.NoError(t, err)
	assertPartition(t, folds, 4)
}
