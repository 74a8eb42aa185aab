package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "titanic: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "titanic: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			assert.Contains(t, formatted, "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 13, 11, 1)

	want := "titanic: Predict: dimension mismatch on axis 1 (features). Expected 13, got 11"
	assert.Equal(t, want, err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 13, dimErr.Expected)
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("RandomForestClassifier", "Predict")

	want := "titanic: RandomForestClassifier: this model is not fitted yet. Call Fit() before using Predict()"
	assert.Equal(t, want, err.Error())

	var notFittedErr *NotFittedError
	assert.True(t, As(err, &notFittedErr))
}

func TestNewSchemaError(t *testing.T) {
	err := NewSchemaError("train.csv", "Pclass", "missing required column")

	assert.Equal(t, `titanic: train.csv: column "Pclass": missing required column`, err.Error())

	var schemaErr *SchemaError
	require.True(t, As(err, &schemaErr))
	assert.Equal(t, "Pclass", schemaErr.Column)
}

func TestNewConvergenceWarning(t *testing.T) {
	warn := NewConvergenceWarning("LinearSVC", 1000, "dual gap still above tol")

	want := "LinearSVC failed to converge after 1000 iterations: dual gap still above tol"
	assert.Equal(t, want, warn.Error())
}

func TestUndefinedMetricWarning(t *testing.T) {
	warn := NewUndefinedMetricWarning("precision", "no predicted samples", 0)
	assert.True(t, strings.HasPrefix(warn.Error(), "'precision' is ill-defined"))
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrAlreadyPrepared, "in features.Prepare")

	assert.True(t, Is(wrapped, ErrAlreadyPrepared))
	assert.Contains(t, wrapped.Error(), "in features.Prepare")
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d rows, got %d", "LoadCSV", 891, 0)

	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.Contains(t, wrapped.Error(), "in LoadCSV: expected 891 rows, got 0")
}

func TestWarnRoutesToInstalledSink(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("recall", "no true samples", 0))

	require.Len(t, got, 1)
	var metricWarn *UndefinedMetricWarning
	assert.True(t, As(got[0], &metricWarn))
}

func TestCheckMatrix(t *testing.T) {
	finite := [][]float64{{1, 2}, {3, 4}}
	assert.NoError(t, CheckMatrix("Matrix", grid(finite), 2, 2))

	nan := [][]float64{{1, 2}, {3, math.NaN()}}
	err := CheckMatrix("Matrix", grid(nan), 2, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1, column 1")
}

type grid [][]float64

func (g grid) At(i, j int) float64 { return g[i][j] }

func TestSafeDivide(t *testing.T) {
	assert.Equal(t, 0.0, SafeDivide(1, 0))
	assert.InDelta(t, 0.5, SafeDivide(1, 2), 1e-12)
}

func TestClipAndLog(t *testing.T) {
	assert.Equal(t, 1.0, ClipValue(3, -1, 1))
	assert.Equal(t, -1.0, ClipValue(-3, -1, 1))
	assert.Equal(t, math.Log(1e-15), StabilizeLog(0))
	assert.InDelta(t, math.Log(0.5), StabilizeLog(0.5), 1e-12)
}

func TestLogSumExp(t *testing.T) {
	assert.InDelta(t, math.Log(3), LogSumExp([]float64{0, 0, 0}), 1e-12)
	// 大きな値でもオーバーフローしない
	assert.InDelta(t, 1000+math.Log(2), LogSumExp([]float64{1000, 1000}), 1e-9)
	assert.True(t, math.IsInf(LogSumExp(nil), -1))
	assert.True(t, math.IsInf(LogSumExp([]float64{math.Inf(-1)}), -1))
}
