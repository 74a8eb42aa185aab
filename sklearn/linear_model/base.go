// Package linear_model は線形分類器（ロジスティック回帰、SGD、パーセプトロン）を提供します。
package linear_model

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/core/model"
)

// linearCoef holds the learned parameters shared by the linear classifiers.
// Binary problems keep a single row of coefficients for classes_[1];
// multiclass problems keep one row per class (one-vs-rest).
type linearCoef struct {
	coef_      [][]float64
	intercept_ []float64
	classes_   []int
	nFeatures_ int
}

func (l *linearCoef) init(classes []int, nFeatures int) {
	l.classes_ = classes
	l.nFeatures_ = nFeatures
	rows := len(classes)
	if rows == 2 {
		rows = 1
	}
	l.coef_ = make([][]float64, rows)
	for i := range l.coef_ {
		l.coef_[i] = make([]float64, nFeatures)
	}
	l.intercept_ = make([]float64, rows)
}

// decision returns w·x + b for every row and coefficient set.
func (l *linearCoef) decision(X mat.Matrix) *mat.Dense {
	rows, _ := X.Dims()
	out := mat.NewDense(rows, len(l.coef_), nil)
	x := make([]float64, l.nFeatures_)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		for k, w := range l.coef_ {
			out.Set(i, k, floats.Dot(w, x)+l.intercept_[k])
		}
	}
	return out
}

// predict turns decision values into class labels.
func (l *linearCoef) predict(d *mat.Dense) *mat.Dense {
	rows, cols := d.Dims()
	if cols > 1 {
		return model.ArgmaxClasses(d, l.classes_)
	}
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		label := l.classes_[0]
		if d.At(i, 0) > 0 {
			label = l.classes_[1]
		}
		out.Set(i, 0, float64(label))
	}
	return out
}

// binaryTargets maps y to +1 for positive and -1 otherwise.
func binaryTargets(y mat.Matrix, positive int) []float64 {
	rows, _ := y.Dims()
	t := make([]float64, rows)
	for i := range t {
		t[i] = -1
		if int(y.At(i, 0)) == positive {
			t[i] = 1
		}
	}
	return t
}

// ovrTargets returns one target vector per coefficient row.
func (l *linearCoef) ovrTargets(y mat.Matrix) [][]float64 {
	if len(l.classes_) == 2 {
		return [][]float64{binaryTargets(y, l.classes_[1])}
	}
	out := make([][]float64, len(l.classes_))
	for k, c := range l.classes_ {
		out[k] = binaryTargets(y, c)
	}
	return out
}

// Coef returns the learned coefficients, one row per decision function.
func (l *linearCoef) Coef() [][]float64 { return l.coef_ }

// Intercept returns the learned intercepts.
func (l *linearCoef) Intercept() []float64 { return l.intercept_ }

// Classes returns the sorted class labels seen during Fit.
func (l *linearCoef) Classes() []int { return l.classes_ }
