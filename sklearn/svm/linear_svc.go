// Package svm provides linear support vector classification.
package svm

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/core/model"
	"github.com/YuminosukeSato/titanic/pkg/errors"
)

// LinearSVC は双対座標降下法で学習する線形サポートベクター分類器
// scikit-learn (liblinear) のLinearSVCと同じく、切片は定数特徴量として正則化に含まれる
type LinearSVC struct {
	state *model.StateManager

	// ハイパーパラメータ
	loss             string  // "squared_hinge" or "hinge"
	c                float64 // 正則化の逆数
	tol              float64
	maxIter          int
	fitIntercept     bool
	interceptScaling float64
	randomState      int64

	// 学習パラメータ
	coef_      [][]float64 // 2クラスなら1行、多クラスならOvRでクラス数行
	intercept_ []float64
	classes_   []int
	nFeatures_ int
	nIter_     int
}

// LinearSVCOption は設定オプション
type LinearSVCOption func(*LinearSVC)

// NewLinearSVC creates a LinearSVC with squared hinge loss, C=1, tol=1e-4 and
// max_iter=1000.
func NewLinearSVC(opts ...LinearSVCOption) *LinearSVC {
	s := &LinearSVC{
		state:            model.NewStateManager(),
		loss:             "squared_hinge",
		c:                1.0,
		tol:              1e-4,
		maxIter:          1000,
		fitIntercept:     true,
		interceptScaling: 1.0,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithLoss sets "squared_hinge" or "hinge".
func WithLoss(loss string) LinearSVCOption {
	return func(s *LinearSVC) { s.loss = loss }
}

// WithC sets the inverse regularization strength.
func WithC(c float64) LinearSVCOption {
	return func(s *LinearSVC) { s.c = c }
}

// WithTol sets the stopping tolerance on the projected gradient.
func WithTol(tol float64) LinearSVCOption {
	return func(s *LinearSVC) { s.tol = tol }
}

// WithMaxIter sets the maximum number of passes.
func WithMaxIter(n int) LinearSVCOption {
	return func(s *LinearSVC) { s.maxIter = n }
}

// WithFitIntercept sets whether a bias feature is appended.
func WithFitIntercept(fit bool) LinearSVCOption {
	return func(s *LinearSVC) { s.fitIntercept = fit }
}

// WithRandomState sets the seed for the coordinate order.
func WithRandomState(seed int64) LinearSVCOption {
	return func(s *LinearSVC) { s.randomState = seed }
}

func (s *LinearSVC) validate() error {
	if s.loss != "squared_hinge" && s.loss != "hinge" {
		return errors.NewValidationError("loss", "must be squared_hinge or hinge", s.loss)
	}
	if s.c <= 0 {
		return errors.NewValidationError("C", "must be > 0", s.c)
	}
	if s.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be >= 1", s.maxIter)
	}
	if s.tol <= 0 {
		return errors.NewValidationError("tol", "must be > 0", s.tol)
	}
	return nil
}

// Fit solves the dual problem once per one-vs-rest target.
func (s *LinearSVC) Fit(X, y mat.Matrix) error {
	if err := s.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.CheckFitInput("LinearSVC.Fit", X, y)
	if err != nil {
		return err
	}
	classes := model.ExtractClasses(y)
	if len(classes) < 2 {
		return errors.NewValueError("LinearSVC.Fit", "needs samples of at least 2 classes")
	}

	s.state.Reset()
	s.classes_ = classes
	s.nFeatures_ = nFeatures
	s.nIter_ = 0

	// バイアス項を定数列として追加
	width := nFeatures
	if s.fitIntercept {
		width++
	}
	Xa := mat.NewDense(nSamples, width, nil)
	for i := 0; i < nSamples; i++ {
		for j := 0; j < nFeatures; j++ {
			Xa.Set(i, j, X.At(i, j))
		}
		if s.fitIntercept {
			Xa.Set(i, nFeatures, s.interceptScaling)
		}
	}

	positives := classes
	if len(classes) == 2 {
		positives = classes[1:]
	}
	s.coef_ = make([][]float64, len(positives))
	s.intercept_ = make([]float64, len(positives))
	for k, pos := range positives {
		target := make([]float64, nSamples)
		for i := range target {
			target[i] = -1
			if int(y.At(i, 0)) == pos {
				target[i] = 1
			}
		}
		w, iters := s.dualCD(Xa, target)
		s.coef_[k] = w[:nFeatures]
		if s.fitIntercept {
			s.intercept_[k] = w[nFeatures] * s.interceptScaling
		}
		if iters > s.nIter_ {
			s.nIter_ = iters
		}
	}

	s.state.SetDimensions(nFeatures, nSamples)
	s.state.SetFitted()
	return nil
}

// dualCD is the dual coordinate descent of Hsieh et al. (2008) without
// shrinking. For squared hinge the box is [0, inf) and D_ii = 1/(2C); for
// hinge it is [0, C] and D_ii = 0.
func (s *LinearSVC) dualCD(X *mat.Dense, target []float64) ([]float64, int) {
	nSamples, width := X.Dims()
	upper, diag := math.Inf(1), 0.5/s.c
	if s.loss == "hinge" {
		upper, diag = s.c, 0
	}

	w := make([]float64, width)
	alpha := make([]float64, nSamples)
	qd := make([]float64, nSamples)
	for i := range qd {
		x := X.RawRowView(i)
		qd[i] = floats.Dot(x, x) + diag
	}

	order := make([]int, nSamples)
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewPCG(uint64(s.randomState), uint64(s.randomState)))

	iter := 0
	for iter < s.maxIter {
		iter++
		rng.Shuffle(nSamples, func(i, j int) { order[i], order[j] = order[j], order[i] })

		pgMax, pgMin := math.Inf(-1), math.Inf(1)
		for _, i := range order {
			x := X.RawRowView(i)
			yi := target[i]
			g := yi*floats.Dot(w, x) - 1 + diag*alpha[i]

			pg := g
			switch {
			case alpha[i] == 0:
				pg = math.Min(g, 0)
			case alpha[i] == upper:
				pg = math.Max(g, 0)
			}
			pgMax = math.Max(pgMax, pg)
			pgMin = math.Min(pgMin, pg)

			if math.Abs(pg) > 1e-12 {
				old := alpha[i]
				alpha[i] = math.Min(math.Max(alpha[i]-g/qd[i], 0), upper)
				floats.AddScaled(w, (alpha[i]-old)*yi, x)
			}
		}
		if pgMax-pgMin <= s.tol {
			return w, iter
		}
	}
	errors.Warn(errors.NewConvergenceWarning("LinearSVC", iter,
		fmt.Sprintf("dual coordinate descent did not reach tol=%g; consider scaling the data", s.tol)))
	return w, iter
}

// DecisionFunction returns w·x + b per row and coefficient set.
func (s *LinearSVC) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("LinearSVC", "DecisionFunction"); err != nil {
		return nil, err
	}
	rows, err := model.CheckPredictInput("LinearSVC.DecisionFunction", X, s.nFeatures_)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, len(s.coef_), nil)
	x := make([]float64, s.nFeatures_)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		for k, w := range s.coef_ {
			out.Set(i, k, floats.Dot(w, x)+s.intercept_[k])
		}
	}
	return out, nil
}

// Predict returns the predicted class per row.
func (s *LinearSVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	dm, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	d := dm.(*mat.Dense)
	rows, cols := d.Dims()
	if cols > 1 {
		return model.ArgmaxClasses(d, s.classes_), nil
	}
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		label := s.classes_[0]
		if d.At(i, 0) > 0 {
			label = s.classes_[1]
		}
		out.Set(i, 0, float64(label))
	}
	return out, nil
}

// Score returns the mean accuracy.
func (s *LinearSVC) Score(X, y mat.Matrix) (float64, error) {
	return model.MeanAccuracy(s, X, y)
}

// Coef returns the learned weights.
func (s *LinearSVC) Coef() [][]float64 { return s.coef_ }

// Intercept returns the learned intercepts.
func (s *LinearSVC) Intercept() []float64 { return s.intercept_ }

// Classes returns the sorted class labels.
func (s *LinearSVC) Classes() []int { return s.classes_ }

// NIter returns the largest number of passes over all OvR problems.
func (s *LinearSVC) NIter() int { return s.nIter_ }

// GetParams returns the hyperparameters.
func (s *LinearSVC) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"loss":              s.loss,
		"C":                 s.c,
		"tol":               s.tol,
		"max_iter":          s.maxIter,
		"fit_intercept":     s.fitIntercept,
		"intercept_scaling": s.interceptScaling,
		"random_state":      s.randomState,
	}
}

// SetParams sets the hyperparameters.
func (s *LinearSVC) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "loss":
			s.loss, err = model.ParamString(key, value)
		case "C":
			s.c, err = model.ParamFloat(key, value)
		case "tol":
			s.tol, err = model.ParamFloat(key, value)
		case "max_iter":
			s.maxIter, err = model.ParamInt(key, value)
		case "fit_intercept":
			s.fitIntercept, err = model.ParamBool(key, value)
		case "intercept_scaling":
			s.interceptScaling, err = model.ParamFloat(key, value)
		case "random_state":
			s.randomState, err = model.ParamInt64(key, value)
		default:
			return model.UnknownParam("LinearSVC", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted LinearSVC with the same hyperparameters.
func (s *LinearSVC) Clone() model.Classifier {
	c := NewLinearSVC()
	_ = c.SetParams(s.GetParams())
	return c
}

func (s *LinearSVC) String() string {
	return fmt.Sprintf("LinearSVC(loss=%s, C=%g, max_iter=%d)", s.loss, s.c, s.maxIter)
}
