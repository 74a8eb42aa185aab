package linear_model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/core/model"
	"github.com/YuminosukeSato/titanic/pkg/errors"
)

// lossFunc is the derivative of a loss with respect to the decision value p
// for a target y in {-1, +1}, together with the loss itself.
type lossFunc interface {
	loss(p, y float64) float64
	dloss(p, y float64) float64
}

// hinge: max(0, threshold - p*y). threshold=1 is the SVM hinge, 0 the perceptron.
type hinge struct{ threshold float64 }

func (h hinge) loss(p, y float64) float64 {
	if z := p * y; z <= h.threshold {
		return h.threshold - z
	}
	return 0
}

func (h hinge) dloss(p, y float64) float64 {
	if p*y <= h.threshold {
		return -y
	}
	return 0
}

type squaredHinge struct{}

func (squaredHinge) loss(p, y float64) float64 {
	if z := 1 - p*y; z > 0 {
		return z * z
	}
	return 0
}

func (squaredHinge) dloss(p, y float64) float64 {
	if z := 1 - p*y; z > 0 {
		return -2 * y * z
	}
	return 0
}

type logLoss struct{}

func (logLoss) loss(p, y float64) float64 {
	z := p * y
	if z > 18 {
		return math.Exp(-z)
	}
	if z < -18 {
		return -z
	}
	return math.Log1p(math.Exp(-z))
}

func (logLoss) dloss(p, y float64) float64 {
	z := p * y
	if z > 18 {
		return -y * math.Exp(-z)
	}
	if z < -18 {
		return -y
	}
	return -y / (math.Exp(z) + 1)
}

type modifiedHuber struct{}

func (modifiedHuber) loss(p, y float64) float64 {
	z := p * y
	switch {
	case z >= 1:
		return 0
	case z >= -1:
		return (1 - z) * (1 - z)
	default:
		return -4 * z
	}
}

func (modifiedHuber) dloss(p, y float64) float64 {
	z := p * y
	switch {
	case z >= 1:
		return 0
	case z >= -1:
		return -2 * y * (1 - z)
	default:
		return -4 * y
	}
}

func newLoss(name string) (lossFunc, error) {
	switch name {
	case "hinge":
		return hinge{threshold: 1}, nil
	case "perceptron":
		return hinge{threshold: 0}, nil
	case "squared_hinge":
		return squaredHinge{}, nil
	case "log_loss":
		return logLoss{}, nil
	case "modified_huber":
		return modifiedHuber{}, nil
	}
	return nil, errors.NewValidationError("loss", "unsupported loss", name)
}

// SGDClassifier is a linear classifier trained by plain stochastic gradient
// descent, compatible with scikit-learn's SGDClassifier. Multiclass problems
// are solved one-vs-rest.
type SGDClassifier struct {
	state *model.StateManager
	name  string // エラーと警告に出す推定器名
	linearCoef

	// ハイパーパラメータ
	loss          string  // "hinge", "log_loss", "modified_huber", "squared_hinge", "perceptron"
	penalty       string  // "l2" or "none"
	alpha         float64 // 正則化の強さ
	fitIntercept  bool
	maxIter       int
	tol           float64 // <= 0 で早期終了なし
	nIterNoChange int
	shuffle       bool
	learningRate  string // "optimal", "constant", "invscaling"
	eta0          float64
	powerT        float64
	randomState   int64

	nIter_ int
	t_     float64
}

// SGDOption is a functional option for SGDClassifier.
type SGDOption func(*SGDClassifier)

// NewSGDClassifier creates an SGDClassifier with scikit-learn defaults:
// hinge loss, l2 penalty, alpha 1e-4, max_iter 1000, tol 1e-3, "optimal"
// learning rate.
func NewSGDClassifier(opts ...SGDOption) *SGDClassifier {
	s := &SGDClassifier{
		state:         model.NewStateManager(),
		name:          "SGDClassifier",
		loss:          "hinge",
		penalty:       "l2",
		alpha:         1e-4,
		fitIntercept:  true,
		maxIter:       1000,
		tol:           1e-3,
		nIterNoChange: 5,
		shuffle:       true,
		learningRate:  "optimal",
		eta0:          0,
		powerT:        0.5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithSGDLoss sets the loss function.
func WithSGDLoss(loss string) SGDOption {
	return func(s *SGDClassifier) { s.loss = loss }
}

// WithSGDPenalty sets the regularization, "l2" or "none".
func WithSGDPenalty(penalty string) SGDOption {
	return func(s *SGDClassifier) { s.penalty = penalty }
}

// WithSGDAlpha sets the regularization strength.
func WithSGDAlpha(alpha float64) SGDOption {
	return func(s *SGDClassifier) { s.alpha = alpha }
}

// WithSGDMaxIter sets the number of passes over the data.
func WithSGDMaxIter(n int) SGDOption {
	return func(s *SGDClassifier) { s.maxIter = n }
}

// WithSGDTol sets the stopping tolerance. A value <= 0 runs all max_iter
// epochs.
func WithSGDTol(tol float64) SGDOption {
	return func(s *SGDClassifier) { s.tol = tol }
}

// WithSGDShuffle sets whether samples are shuffled every epoch.
func WithSGDShuffle(shuffle bool) SGDOption {
	return func(s *SGDClassifier) { s.shuffle = shuffle }
}

// WithSGDLearningRate sets the schedule and its initial rate.
func WithSGDLearningRate(schedule string, eta0 float64) SGDOption {
	return func(s *SGDClassifier) {
		s.learningRate = schedule
		s.eta0 = eta0
	}
}

// WithSGDFitIntercept sets whether an intercept is learned.
func WithSGDFitIntercept(fit bool) SGDOption {
	return func(s *SGDClassifier) { s.fitIntercept = fit }
}

// WithSGDRandomState sets the shuffling seed.
func WithSGDRandomState(seed int64) SGDOption {
	return func(s *SGDClassifier) { s.randomState = seed }
}

func (s *SGDClassifier) validate() (lossFunc, error) {
	lf, err := newLoss(s.loss)
	if err != nil {
		return nil, err
	}
	if s.penalty != "l2" && s.penalty != "none" {
		return nil, errors.NewValidationError("penalty", "must be l2 or none", s.penalty)
	}
	if s.alpha < 0 {
		return nil, errors.NewValidationError("alpha", "must be >= 0", s.alpha)
	}
	if s.maxIter < 1 {
		return nil, errors.NewValidationError("max_iter", "must be >= 1", s.maxIter)
	}
	switch s.learningRate {
	case "optimal":
		if s.alpha == 0 {
			return nil, errors.NewValidationError("alpha", "must be > 0 with learning_rate=optimal", s.alpha)
		}
	case "constant", "invscaling":
		if s.eta0 <= 0 {
			return nil, errors.NewValidationError("eta0", "must be > 0", s.eta0)
		}
	default:
		return nil, errors.NewValidationError("learning_rate", "must be optimal, constant or invscaling", s.learningRate)
	}
	return lf, nil
}

// Fit trains the classifier for max_iter epochs, or fewer when the training
// loss stops improving by tol.
func (s *SGDClassifier) Fit(X, y mat.Matrix) error {
	lf, err := s.validate()
	if err != nil {
		return err
	}
	nSamples, nFeatures, err := model.CheckFitInput(s.name+".Fit", X, y)
	if err != nil {
		return err
	}
	classes := model.ExtractClasses(y)
	if len(classes) < 2 {
		return errors.NewValueError(s.name+".Fit", "needs samples of at least 2 classes")
	}

	s.state.Reset()
	s.init(classes, nFeatures)
	s.nIter_ = 0

	Xd := mat.DenseCopyOf(X)
	for k, target := range s.ovrTargets(y) {
		// 各OvR問題は同じシードから始める
		rng := rand.New(rand.NewPCG(uint64(s.randomState), uint64(s.randomState)))
		n := s.plainSGD(Xd, target, k, lf, rng)
		if n > s.nIter_ {
			s.nIter_ = n
		}
	}

	s.state.SetDimensions(nFeatures, nSamples)
	s.state.SetFitted()
	return nil
}

// optimalT0 follows Léon Bottou's heuristic used by scikit-learn.
func (s *SGDClassifier) optimalT0(lf lossFunc) float64 {
	typw := math.Sqrt(1.0 / math.Sqrt(s.alpha))
	eta0 := typw / math.Max(1.0, lf.dloss(-typw, 1.0))
	return 1.0 / (eta0 * s.alpha)
}

func (s *SGDClassifier) eta(t, t0 float64) float64 {
	switch s.learningRate {
	case "optimal":
		return 1.0 / (s.alpha * (t0 + t - 1))
	case "invscaling":
		return s.eta0 / math.Pow(t, s.powerT)
	default:
		return s.eta0
	}
}

// plainSGD fits coefficient row k and returns the number of epochs run.
func (s *SGDClassifier) plainSGD(X *mat.Dense, target []float64, k int, lf lossFunc, rng *rand.Rand) int {
	nSamples, _ := X.Dims()
	w := s.coef_[k]
	b := &s.intercept_[k]

	alpha := s.alpha
	if s.penalty == "none" {
		alpha = 0
	}
	t0 := 0.0
	if s.learningRate == "optimal" {
		t0 = s.optimalT0(lf)
	}

	order := make([]int, nSamples)
	for i := range order {
		order[i] = i
	}

	bestLoss := math.Inf(1)
	noImprovement := 0
	t := 1.0
	epoch := 0
	for epoch < s.maxIter {
		epoch++
		if s.shuffle {
			rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}
		sumLoss := 0.0
		for _, i := range order {
			x := X.RawRowView(i)
			p := floats.Dot(w, x) + *b
			sumLoss += lf.loss(p, target[i])

			eta := s.eta(t, t0)
			if update := -eta * lf.dloss(p, target[i]); update != 0 {
				floats.AddScaled(w, update, x)
				if s.fitIntercept {
					*b += update
				}
			}
			if alpha > 0 {
				floats.Scale(math.Max(0, 1-eta*alpha), w)
			}
			t++
		}
		s.t_ = t

		if s.tol > 0 {
			if sumLoss > bestLoss-s.tol*float64(nSamples) {
				noImprovement++
			} else {
				noImprovement = 0
			}
			if sumLoss < bestLoss {
				bestLoss = sumLoss
			}
			if noImprovement >= s.nIterNoChange {
				return epoch
			}
		}
	}
	if s.tol > 0 {
		errors.Warn(errors.NewConvergenceWarning(s.name, epoch,
			fmt.Sprintf("maximum number of iterations reached before convergence (tol=%g)", s.tol)))
	}
	return epoch
}

// DecisionFunction returns the signed distance to the separating hyperplane.
func (s *SGDClassifier) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted(s.name, "DecisionFunction"); err != nil {
		return nil, err
	}
	if _, err := model.CheckPredictInput(s.name+".DecisionFunction", X, s.nFeatures_); err != nil {
		return nil, err
	}
	return s.decision(X), nil
}

// Predict returns the predicted class per row.
func (s *SGDClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	d, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	return s.predict(d.(*mat.Dense)), nil
}

// PredictProba is available for log_loss and modified_huber only.
func (s *SGDClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if s.loss != "log_loss" && s.loss != "modified_huber" {
		return nil, errors.NewValueError(s.name+".PredictProba",
			fmt.Sprintf("probability estimates are not available for loss=%q", s.loss))
	}
	dm, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	d := dm.(*mat.Dense)
	rows, cols := d.Dims()

	positive := func(v float64) float64 {
		if s.loss == "log_loss" {
			return sigmoid(v)
		}
		return (errors.ClipValue(v, -1, 1) + 1) / 2
	}

	if cols == 1 {
		out := mat.NewDense(rows, 2, nil)
		for i := 0; i < rows; i++ {
			p := positive(d.At(i, 0))
			out.Set(i, 0, 1-p)
			out.Set(i, 1, p)
		}
		return out, nil
	}
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		row := out.RawRowView(i)
		for k := range row {
			row[k] = positive(d.At(i, k))
		}
		if sum := floats.Sum(row); sum > 0 {
			floats.Scale(1/sum, row)
		} else {
			for k := range row {
				row[k] = 1 / float64(cols)
			}
		}
	}
	return out, nil
}

// Score returns the mean accuracy on the given data.
func (s *SGDClassifier) Score(X, y mat.Matrix) (float64, error) {
	return model.MeanAccuracy(s, X, y)
}

// NIter returns the number of epochs of the longest one-vs-rest fit.
func (s *SGDClassifier) NIter() int { return s.nIter_ }

// GetParams returns the model hyperparameters.
func (s *SGDClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"loss":             s.loss,
		"penalty":          s.penalty,
		"alpha":            s.alpha,
		"fit_intercept":    s.fitIntercept,
		"max_iter":         s.maxIter,
		"tol":              s.tol,
		"n_iter_no_change": s.nIterNoChange,
		"shuffle":          s.shuffle,
		"learning_rate":    s.learningRate,
		"eta0":             s.eta0,
		"power_t":          s.powerT,
		"random_state":     s.randomState,
	}
}

// SetParams sets the model hyperparameters. tol=nil disables early stopping.
func (s *SGDClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "loss":
			s.loss, err = model.ParamString(key, value)
		case "penalty":
			s.penalty, err = model.ParamString(key, value)
		case "alpha":
			s.alpha, err = model.ParamFloat(key, value)
		case "fit_intercept":
			s.fitIntercept, err = model.ParamBool(key, value)
		case "max_iter":
			s.maxIter, err = model.ParamInt(key, value)
		case "tol":
			if value == nil {
				s.tol = 0
				continue
			}
			s.tol, err = model.ParamFloat(key, value)
		case "n_iter_no_change":
			s.nIterNoChange, err = model.ParamInt(key, value)
		case "shuffle":
			s.shuffle, err = model.ParamBool(key, value)
		case "learning_rate":
			s.learningRate, err = model.ParamString(key, value)
		case "eta0":
			s.eta0, err = model.ParamFloat(key, value)
		case "power_t":
			s.powerT, err = model.ParamFloat(key, value)
		case "random_state":
			s.randomState, err = model.ParamInt64(key, value)
		default:
			return model.UnknownParam(s.name, key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (s *SGDClassifier) Clone() model.Classifier {
	c := NewSGDClassifier()
	_ = c.SetParams(s.GetParams())
	return c
}
