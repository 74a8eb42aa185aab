package model

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/pkg/errors"
)

// CheckFitInput validates the shapes of a training pair and returns its
// dimensions. y must be a single column with one row per sample, and X must
// be finite.
func CheckFitInput(op string, X, y mat.Matrix) (nSamples, nFeatures int, err error) {
	if X == nil || y == nil {
		return 0, 0, errors.NewValueError(op, "X and y must not be nil")
	}
	nSamples, nFeatures = X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return 0, 0, errors.Wrapf(errors.ErrEmptyData, "%s", op)
	}
	yRows, yCols := y.Dims()
	if yRows != nSamples {
		return 0, 0, errors.NewDimensionError(op, nSamples, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if err := errors.CheckMatrix(op, X, nSamples, nFeatures); err != nil {
		return 0, 0, err
	}
	return nSamples, nFeatures, nil
}

// CheckPredictInput validates X against the number of features seen in Fit.
func CheckPredictInput(op string, X mat.Matrix, nFeatures int) (int, error) {
	if X == nil {
		return 0, errors.NewValueError(op, "X must not be nil")
	}
	rows, cols := X.Dims()
	if cols != nFeatures {
		return 0, errors.NewDimensionError(op, nFeatures, cols, 1)
	}
	if err := errors.CheckMatrix(op, X, rows, cols); err != nil {
		return 0, err
	}
	return rows, nil
}

// ExtractClasses returns the sorted distinct labels of y.
func ExtractClasses(y mat.Matrix) []int {
	rows, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < rows; i++ {
		seen[int(y.At(i, 0))] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}

// ClassIndex maps each label to its position in classes.
func ClassIndex(classes []int) map[int]int {
	idx := make(map[int]int, len(classes))
	for i, c := range classes {
		idx[c] = i
	}
	return idx
}

// EncodeLabels converts y into positions within classes.
func EncodeLabels(y mat.Matrix, classes []int) []int {
	idx := ClassIndex(classes)
	rows, _ := y.Dims()
	out := make([]int, rows)
	for i := range out {
		out[i] = idx[int(y.At(i, 0))]
	}
	return out
}

// ArgmaxClasses picks the most probable class per row of proba. Ties go to
// the lower class index.
func ArgmaxClasses(proba mat.Matrix, classes []int) *mat.Dense {
	rows, cols := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for j := 1; j < cols; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		out.Set(i, 0, float64(classes[best]))
	}
	return out
}

// MeanAccuracy predicts X with p and returns the fraction of rows equal to y.
func MeanAccuracy(p Predictor, X, y mat.Matrix) (float64, error) {
	pred, err := p.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := pred.Dims()
	yRows, _ := y.Dims()
	if rows != yRows {
		return 0, errors.NewDimensionError("Score", yRows, rows, 0)
	}
	if rows == 0 {
		return 0, errors.ErrEmptyData
	}
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows), nil
}
