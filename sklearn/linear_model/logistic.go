package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/core/model"
	"github.com/YuminosukeSato/titanic/pkg/errors"
)

// LogisticRegression implements L2-regularized logistic regression for
// classification. Multiclass problems are solved one-vs-rest.
// Compatible with scikit-learn's LogisticRegression parameter names.
type LogisticRegression struct {
	state *model.StateManager
	linearCoef

	// Hyperparameters
	penalty      string  // Regularization: "l2" or "none"
	C            float64 // Inverse regularization strength (1/alpha)
	fitIntercept bool    // Whether to fit intercept
	maxIter      int     // Maximum iterations
	tol          float64 // Tolerance on the largest gradient component

	nIter_ []int // Actual iterations per coefficient row
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		maxIter:      100,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.penalty = penalty }
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.fitIntercept = fit }
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.maxIter = maxIter }
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.tol = tol }
}

func (lr *LogisticRegression) validate() error {
	if lr.penalty != "l2" && lr.penalty != "none" {
		return errors.NewValidationError("penalty", "must be l2 or none", lr.penalty)
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be >= 1", lr.maxIter)
	}
	return nil
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.CheckFitInput("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	classes := model.ExtractClasses(y)
	if len(classes) < 2 {
		return errors.NewValueError("LogisticRegression.Fit", "needs samples of at least 2 classes")
	}

	lr.state.Reset()
	lr.init(classes, nFeatures)
	lr.nIter_ = make([]int, len(lr.coef_))

	Xd := mat.DenseCopyOf(X)
	for k, target := range lr.ovrTargets(y) {
		// ±1 を 0/1 に変換
		y01 := make([]float64, nSamples)
		for i, v := range target {
			if v > 0 {
				y01[i] = 1
			}
		}
		lr.fitBinary(Xd, y01, k)
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// fitBinary runs full-batch gradient descent for coefficient row k. The step
// size is 1/L, L being a bound on the Lipschitz constant of the gradient.
func (lr *LogisticRegression) fitBinary(X *mat.Dense, y01 []float64, k int) {
	nSamples, nFeatures := X.Dims()
	weights := lr.coef_[k]
	intercept := &lr.intercept_[k]

	lambda := 0.0
	if lr.penalty == "l2" {
		lambda = 1.0 / (lr.C * float64(nSamples))
	}
	sq := 0.0
	for i := 0; i < nSamples; i++ {
		row := X.RawRowView(i)
		sq += floats.Dot(row, row) + 1
	}
	learningRate := 1.0 / (0.25*sq/float64(nSamples) + lambda)

	gradWeights := make([]float64, nFeatures)
	for iter := 0; iter < lr.maxIter; iter++ {
		for j := range gradWeights {
			gradWeights[j] = 0
		}
		gradIntercept := 0.0

		for i := 0; i < nSamples; i++ {
			row := X.RawRowView(i)
			residual := sigmoid(floats.Dot(row, weights)+*intercept) - y01[i]
			gradIntercept += residual
			floats.AddScaled(gradWeights, residual, row)
		}
		floats.Scale(1/float64(nSamples), gradWeights)
		gradIntercept /= float64(nSamples)

		// L2正則化の勾配
		if lambda > 0 {
			floats.AddScaled(gradWeights, lambda, weights)
		}

		floats.AddScaled(weights, -learningRate, gradWeights)
		if lr.fitIntercept {
			*intercept -= learningRate * gradIntercept
		}
		lr.nIter_[k] = iter + 1

		maxGrad := math.Abs(gradIntercept)
		if m := floats.Norm(gradWeights, math.Inf(1)); m > maxGrad {
			maxGrad = m
		}
		if maxGrad < lr.tol {
			return
		}
	}
	errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.maxIter,
		fmt.Sprintf("gradient still above tol=%g for class %d", lr.tol, k)))
}

// DecisionFunction returns the signed distance to the separating hyperplane.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "DecisionFunction"); err != nil {
		return nil, err
	}
	if _, err := model.CheckPredictInput("LogisticRegression.DecisionFunction", X, lr.nFeatures_); err != nil {
		return nil, err
	}
	return lr.decision(X), nil
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "Predict"); err != nil {
		return nil, err
	}
	if _, err := model.CheckPredictInput("LogisticRegression.Predict", X, lr.nFeatures_); err != nil {
		return nil, err
	}
	return lr.predict(lr.decision(X)), nil
}

// PredictProba returns probability estimates for each class
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "PredictProba"); err != nil {
		return nil, err
	}
	rows, err := model.CheckPredictInput("LogisticRegression.PredictProba", X, lr.nFeatures_)
	if err != nil {
		return nil, err
	}
	d := lr.decision(X)
	nClasses := len(lr.classes_)
	probas := mat.NewDense(rows, nClasses, nil)

	if nClasses == 2 {
		for i := 0; i < rows; i++ {
			p1 := sigmoid(d.At(i, 0))
			probas.Set(i, 0, 1.0-p1)
			probas.Set(i, 1, p1)
		}
		return probas, nil
	}

	// Multiclass: normalized one-vs-rest sigmoids
	for i := 0; i < rows; i++ {
		row := probas.RawRowView(i)
		for k := range row {
			row[k] = sigmoid(d.At(i, k))
		}
		floats.Scale(1/floats.Sum(row), row)
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	return model.MeanAccuracy(lr, X, y)
}

// NIter returns the iterations used per coefficient row.
func (lr *LogisticRegression) NIter() []int { return lr.nIter_ }

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "penalty":
			lr.penalty, err = model.ParamString(key, value)
		case "C":
			lr.C, err = model.ParamFloat(key, value)
		case "fit_intercept":
			lr.fitIntercept, err = model.ParamBool(key, value)
		case "max_iter":
			lr.maxIter, err = model.ParamInt(key, value)
		case "tol":
			lr.tol, err = model.ParamFloat(key, value)
		default:
			return model.UnknownParam("LogisticRegression", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (lr *LogisticRegression) Clone() model.Classifier {
	return NewLogisticRegression(
		WithLRPenalty(lr.penalty),
		WithLRC(lr.C),
		WithLogisticFitIntercept(lr.fitIntercept),
		WithLRMaxIter(lr.maxIter),
		WithLRTol(lr.tol),
	)
}

// sigmoid computes the sigmoid function
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1.0 + e)
}
