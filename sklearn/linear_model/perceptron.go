package linear_model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/core/model"
)

// Perceptron is the classic perceptron: SGD with the perceptron loss, a
// constant learning rate of eta0 and no penalty by default. It shares the
// SGDClassifier engine, as scikit-learn does.
type Perceptron struct {
	sgd *SGDClassifier
}

// PerceptronOption is a functional option for Perceptron.
type PerceptronOption func(*Perceptron)

// NewPerceptron creates a Perceptron with scikit-learn defaults.
func NewPerceptron(opts ...PerceptronOption) *Perceptron {
	p := &Perceptron{sgd: NewSGDClassifier(
		WithSGDLoss("perceptron"),
		WithSGDPenalty("none"),
		WithSGDLearningRate("constant", 1.0),
	)}
	p.sgd.name = "Perceptron"
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithPerceptronMaxIter sets the number of epochs.
func WithPerceptronMaxIter(n int) PerceptronOption {
	return func(p *Perceptron) { p.sgd.maxIter = n }
}

// WithPerceptronTol sets the stopping tolerance, <= 0 disables it.
func WithPerceptronTol(tol float64) PerceptronOption {
	return func(p *Perceptron) { p.sgd.tol = tol }
}

// WithPerceptronEta0 sets the constant learning rate.
func WithPerceptronEta0(eta0 float64) PerceptronOption {
	return func(p *Perceptron) { p.sgd.eta0 = eta0 }
}

// WithPerceptronRandomState sets the shuffling seed.
func WithPerceptronRandomState(seed int64) PerceptronOption {
	return func(p *Perceptron) { p.sgd.randomState = seed }
}

// Fit trains the perceptron.
func (p *Perceptron) Fit(X, y mat.Matrix) error { return p.sgd.Fit(X, y) }

// Predict returns the predicted class per row.
func (p *Perceptron) Predict(X mat.Matrix) (mat.Matrix, error) { return p.sgd.Predict(X) }

// DecisionFunction returns the signed distance to the separating hyperplane.
func (p *Perceptron) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	return p.sgd.DecisionFunction(X)
}

// Score returns the mean accuracy on the given data.
func (p *Perceptron) Score(X, y mat.Matrix) (float64, error) { return model.MeanAccuracy(p, X, y) }

// Classes returns the sorted class labels seen during Fit.
func (p *Perceptron) Classes() []int { return p.sgd.Classes() }

// Coef returns the learned coefficients.
func (p *Perceptron) Coef() [][]float64 { return p.sgd.Coef() }

// GetParams returns the model hyperparameters.
func (p *Perceptron) GetParams() map[string]interface{} {
	all := p.sgd.GetParams()
	params := make(map[string]interface{}, len(perceptronParams))
	for _, k := range perceptronParams {
		params[k] = all[k]
	}
	return params
}

var perceptronParams = []string{
	"penalty", "alpha", "fit_intercept", "max_iter", "tol",
	"n_iter_no_change", "shuffle", "eta0", "random_state",
}

// SetParams sets the model hyperparameters.
func (p *Perceptron) SetParams(params map[string]interface{}) error {
	for key := range params {
		known := false
		for _, k := range perceptronParams {
			if k == key {
				known = true
				break
			}
		}
		if !known {
			return model.UnknownParam("Perceptron", key)
		}
	}
	return p.sgd.SetParams(params)
}

// Clone returns an unfitted copy with the same hyperparameters.
func (p *Perceptron) Clone() model.Classifier {
	c := NewPerceptron()
	_ = c.SetParams(p.GetParams())
	return c
}
