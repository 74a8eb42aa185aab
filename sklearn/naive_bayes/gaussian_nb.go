// Package naive_bayes はナイーブベイズ分類器を提供します。
package naive_bayes

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/titanic/core/model"
	"github.com/YuminosukeSato/titanic/pkg/errors"
)

// GaussianNB は特徴量がクラスごとに正規分布に従うと仮定するナイーブベイズ分類器
// scikit-learnのGaussianNBと互換性を持つ
type GaussianNB struct {
	state *model.StateManager

	// ハイパーパラメータ
	varSmoothing float64 // 全特徴量の最大分散に対する分散の加算割合
	priors       []float64

	// 学習パラメータ
	classes_    []int
	classPrior_ []float64
	classCount_ []float64
	theta_      [][]float64 // クラス x 特徴量の平均
	var_        [][]float64 // クラス x 特徴量の分散
	epsilon_    float64
	nFeatures_  int
}

// GaussianNBOption は設定オプション
type GaussianNBOption func(*GaussianNB)

// NewGaussianNB は新しいGaussianNBを作成する (var_smoothing=1e-9)
func NewGaussianNB(opts ...GaussianNBOption) *GaussianNB {
	nb := &GaussianNB{
		state:        model.NewStateManager(),
		varSmoothing: 1e-9,
	}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// WithVarSmoothing は分散の平滑化量を設定する
func WithVarSmoothing(v float64) GaussianNBOption {
	return func(nb *GaussianNB) { nb.varSmoothing = v }
}

// WithPriors は事前確率を固定する。nil ならデータから推定する
func WithPriors(priors []float64) GaussianNBOption {
	return func(nb *GaussianNB) { nb.priors = priors }
}

// Fit はクラスごとの平均と分散を推定する
func (nb *GaussianNB) Fit(X, y mat.Matrix) error {
	if nb.varSmoothing < 0 {
		return errors.NewValidationError("var_smoothing", "must be >= 0", nb.varSmoothing)
	}
	nSamples, nFeatures, err := model.CheckFitInput("GaussianNB.Fit", X, y)
	if err != nil {
		return err
	}
	classes := model.ExtractClasses(y)
	if nb.priors != nil {
		if len(nb.priors) != len(classes) {
			return errors.NewDimensionError("GaussianNB.Fit", len(classes), len(nb.priors), 1)
		}
		if math.Abs(floats.Sum(nb.priors)-1) > 1e-8 {
			return errors.NewValidationError("priors", "must sum to 1", nb.priors)
		}
	}

	nb.state.Reset()
	nb.classes_ = classes
	nb.nFeatures_ = nFeatures
	labels := model.EncodeLabels(y, classes)

	// 全体の最大分散から平滑化量を決める
	col := make([]float64, nSamples)
	maxVar := 0.0
	for j := 0; j < nFeatures; j++ {
		mat.Col(col, j, X)
		_, std := stat.PopMeanStdDev(col, nil)
		maxVar = math.Max(maxVar, std*std)
	}
	nb.epsilon_ = nb.varSmoothing * maxVar

	nClasses := len(classes)
	nb.theta_ = make([][]float64, nClasses)
	nb.var_ = make([][]float64, nClasses)
	nb.classCount_ = make([]float64, nClasses)
	for k := 0; k < nClasses; k++ {
		nb.theta_[k] = make([]float64, nFeatures)
		nb.var_[k] = make([]float64, nFeatures)
	}

	// クラスごとの重み（0/1）で母平均・母分散を計算する
	for k := 0; k < nClasses; k++ {
		weights := make([]float64, nSamples)
		for i, l := range labels {
			if l == k {
				weights[i] = 1
			}
		}
		nb.classCount_[k] = floats.Sum(weights)
		for j := 0; j < nFeatures; j++ {
			mat.Col(col, j, X)
			mean, std := stat.PopMeanStdDev(col, weights)
			nb.theta_[k][j] = mean
			nb.var_[k][j] = std*std + nb.epsilon_
		}
	}

	if nb.priors != nil {
		nb.classPrior_ = append([]float64(nil), nb.priors...)
	} else {
		nb.classPrior_ = make([]float64, nClasses)
		for k, c := range nb.classCount_ {
			nb.classPrior_[k] = c / float64(nSamples)
		}
	}

	nb.state.SetDimensions(nFeatures, nSamples)
	nb.state.SetFitted()
	return nil
}

// jointLogLikelihood は log P(c) + Σ log N(x_j | θ_cj, σ²_cj) を返す
func (nb *GaussianNB) jointLogLikelihood(X mat.Matrix, op string) (*mat.Dense, error) {
	if err := nb.state.RequireFitted("GaussianNB", op); err != nil {
		return nil, err
	}
	rows, err := model.CheckPredictInput("GaussianNB."+op, X, nb.nFeatures_)
	if err != nil {
		return nil, err
	}
	nClasses := len(nb.classes_)
	jll := mat.NewDense(rows, nClasses, nil)
	for k := 0; k < nClasses; k++ {
		dists := make([]distuv.Normal, nb.nFeatures_)
		for j := range dists {
			sigma := math.Sqrt(nb.var_[k][j])
			if sigma == 0 {
				// 全特徴量が定数のときだけ起きる
				sigma = math.SmallestNonzeroFloat64
			}
			dists[j] = distuv.Normal{Mu: nb.theta_[k][j], Sigma: sigma}
		}
		logPrior := errors.StabilizeLog(nb.classPrior_[k])
		for i := 0; i < rows; i++ {
			ll := logPrior
			for j, d := range dists {
				ll += d.LogProb(X.At(i, j))
			}
			jll.Set(i, k, ll)
		}
	}
	return jll, nil
}

// PredictLogProba は各クラスの対数事後確率を返す
func (nb *GaussianNB) PredictLogProba(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood(X, "PredictLogProba")
	if err != nil {
		return nil, err
	}
	rows, _ := jll.Dims()
	for i := 0; i < rows; i++ {
		row := jll.RawRowView(i)
		norm := errors.LogSumExp(row)
		floats.AddConst(-norm, row)
	}
	return jll, nil
}

// PredictProba は各クラスの事後確率を返す
func (nb *GaussianNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	logProba, err := nb.PredictLogProba(X)
	if err != nil {
		return nil, err
	}
	proba := logProba.(*mat.Dense)
	proba.Apply(func(_, _ int, v float64) float64 { return math.Exp(v) }, proba)
	return proba, nil
}

// Predict は事後確率が最大のクラスを返す
func (nb *GaussianNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood(X, "Predict")
	if err != nil {
		return nil, err
	}
	return model.ArgmaxClasses(jll, nb.classes_), nil
}

// Score は平均正解率を返す
func (nb *GaussianNB) Score(X, y mat.Matrix) (float64, error) {
	return model.MeanAccuracy(nb, X, y)
}

// Classes は学習したクラスラベルを返す
func (nb *GaussianNB) Classes() []int { return nb.classes_ }

// Theta はクラスごとの特徴量平均を返す
func (nb *GaussianNB) Theta() [][]float64 { return nb.theta_ }

// Var はクラスごとの特徴量分散（平滑化込み）を返す
func (nb *GaussianNB) Var() [][]float64 { return nb.var_ }

// ClassPrior はクラスの事前確率を返す
func (nb *GaussianNB) ClassPrior() []float64 { return nb.classPrior_ }

// GetParams はハイパーパラメータを返す
func (nb *GaussianNB) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"var_smoothing": nb.varSmoothing,
		"priors":        nb.priors,
	}
}

// SetParams はハイパーパラメータを設定する
func (nb *GaussianNB) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "var_smoothing":
			v, err := model.ParamFloat(key, value)
			if err != nil {
				return err
			}
			nb.varSmoothing = v
		case "priors":
			if value == nil {
				nb.priors = nil
				continue
			}
			p, ok := value.([]float64)
			if !ok {
				return errors.NewValidationError(key, "must be []float64", value)
			}
			nb.priors = p
		default:
			return model.UnknownParam("GaussianNB", key)
		}
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (nb *GaussianNB) Clone() model.Classifier {
	return NewGaussianNB(WithVarSmoothing(nb.varSmoothing), WithPriors(nb.priors))
}
