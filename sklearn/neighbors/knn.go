// Package neighbors は k近傍法による分類器を提供します。
package neighbors

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/core/model"
	"github.com/YuminosukeSato/titanic/core/parallel"
	"github.com/YuminosukeSato/titanic/pkg/errors"
)

// parallelThreshold 以下の行数なら予測を単一ゴルーチンで行う
const parallelThreshold = 256

// KNeighborsClassifier は総当たりで近傍を探す k近傍分類器
type KNeighborsClassifier struct {
	state *model.StateManager

	// ハイパーパラメータ
	nNeighbors int
	weights    string  // "uniform" or "distance"
	p          float64 // Minkowski距離の次数

	// 学習データをそのまま保持する
	fitX_      *mat.Dense
	fitLabels_ []int // classes_ のインデックス
	classes_   []int
	nFeatures_ int
}

// KNNOption は設定オプション
type KNNOption func(*KNeighborsClassifier)

// NewKNeighborsClassifier は k=5, uniform, ユークリッド距離のモデルを作成する
func NewKNeighborsClassifier(opts ...KNNOption) *KNeighborsClassifier {
	knn := &KNeighborsClassifier{
		state:      model.NewStateManager(),
		nNeighbors: 5,
		weights:    "uniform",
		p:          2,
	}
	for _, opt := range opts {
		opt(knn)
	}
	return knn
}

// WithNNeighbors sets k.
func WithNNeighbors(k int) KNNOption {
	return func(knn *KNeighborsClassifier) { knn.nNeighbors = k }
}

// WithWeights sets "uniform" or "distance" voting.
func WithWeights(w string) KNNOption {
	return func(knn *KNeighborsClassifier) { knn.weights = w }
}

// WithP sets the Minkowski power (1 = manhattan, 2 = euclidean).
func WithP(p float64) KNNOption {
	return func(knn *KNeighborsClassifier) { knn.p = p }
}

// Fit stores the training data.
func (knn *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	if knn.nNeighbors < 1 {
		return errors.NewValidationError("n_neighbors", "must be >= 1", knn.nNeighbors)
	}
	if knn.weights != "uniform" && knn.weights != "distance" {
		return errors.NewValidationError("weights", "must be uniform or distance", knn.weights)
	}
	if knn.p < 1 {
		return errors.NewValidationError("p", "must be >= 1", knn.p)
	}
	nSamples, nFeatures, err := model.CheckFitInput("KNeighborsClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if knn.nNeighbors > nSamples {
		return errors.NewValueError("KNeighborsClassifier.Fit",
			fmt.Sprintf("n_neighbors=%d exceeds n_samples=%d", knn.nNeighbors, nSamples))
	}

	knn.state.Reset()
	knn.classes_ = model.ExtractClasses(y)
	knn.fitLabels_ = model.EncodeLabels(y, knn.classes_)
	knn.fitX_ = mat.DenseCopyOf(X)
	knn.nFeatures_ = nFeatures
	knn.state.SetDimensions(nFeatures, nSamples)
	knn.state.SetFitted()
	return nil
}

type neighbor struct {
	index int
	dist  float64
}

// kneighbors returns the k nearest training rows of x, nearest first.
// Equal distances keep training order.
func (knn *KNeighborsClassifier) kneighbors(x []float64, buf []neighbor) []neighbor {
	n, _ := knn.fitX_.Dims()
	buf = buf[:0]
	for i := 0; i < n; i++ {
		buf = append(buf, neighbor{index: i, dist: floats.Distance(knn.fitX_.RawRowView(i), x, knn.p)})
	}
	sort.SliceStable(buf, func(a, b int) bool { return buf[a].dist < buf[b].dist })
	return buf[:knn.nNeighbors]
}

// votes fills one row of class weights for x.
func (knn *KNeighborsClassifier) votes(x []float64, buf []neighbor, out []float64) {
	for k := range out {
		out[k] = 0
	}
	nbrs := knn.kneighbors(x, buf)
	if knn.weights == "distance" {
		// 距離0の近傍があればそれだけで決める
		exact := false
		for _, nb := range nbrs {
			if nb.dist == 0 {
				out[knn.fitLabels_[nb.index]]++
				exact = true
			}
		}
		if exact {
			return
		}
		for _, nb := range nbrs {
			out[knn.fitLabels_[nb.index]] += 1 / nb.dist
		}
		return
	}
	for _, nb := range nbrs {
		out[knn.fitLabels_[nb.index]]++
	}
}

// PredictProba returns normalized neighbor votes per class.
func (knn *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := knn.state.RequireFitted("KNeighborsClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	rows, err := model.CheckPredictInput("KNeighborsClassifier.PredictProba", X, knn.nFeatures_)
	if err != nil {
		return nil, err
	}
	Xd := mat.DenseCopyOf(X)
	proba := mat.NewDense(rows, len(knn.classes_), nil)
	nFit, _ := knn.fitX_.Dims()

	// 各チャンクは proba の別々の行にだけ書き込む
	parallel.ParallelizeWithThreshold(rows, parallelThreshold, func(start, end int) {
		buf := make([]neighbor, 0, nFit)
		for i := start; i < end; i++ {
			row := proba.RawRowView(i)
			knn.votes(Xd.RawRowView(i), buf, row)
			if sum := floats.Sum(row); sum > 0 {
				floats.Scale(1/sum, row)
			}
		}
	})
	return proba, nil
}

// Predict returns the class with the largest vote; ties go to the smaller label.
func (knn *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := knn.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxClasses(proba, knn.classes_), nil
}

// Score returns the mean accuracy.
func (knn *KNeighborsClassifier) Score(X, y mat.Matrix) (float64, error) {
	return model.MeanAccuracy(knn, X, y)
}

// Classes returns the sorted class labels.
func (knn *KNeighborsClassifier) Classes() []int { return knn.classes_ }

// KNeighbors returns the indices and distances of the k nearest training
// rows for every row of X.
func (knn *KNeighborsClassifier) KNeighbors(X mat.Matrix) ([][]int, [][]float64, error) {
	if err := knn.state.RequireFitted("KNeighborsClassifier", "KNeighbors"); err != nil {
		return nil, nil, err
	}
	rows, err := model.CheckPredictInput("KNeighborsClassifier.KNeighbors", X, knn.nFeatures_)
	if err != nil {
		return nil, nil, err
	}
	nFit, _ := knn.fitX_.Dims()
	indices := make([][]int, rows)
	dists := make([][]float64, rows)
	buf := make([]neighbor, 0, nFit)
	x := make([]float64, knn.nFeatures_)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		for _, nb := range knn.kneighbors(x, buf) {
			indices[i] = append(indices[i], nb.index)
			dists[i] = append(dists[i], nb.dist)
		}
	}
	return indices, dists, nil
}

// GetParams returns the hyperparameters.
func (knn *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": knn.nNeighbors,
		"weights":     knn.weights,
		"p":           knn.p,
	}
}

// SetParams sets the hyperparameters.
func (knn *KNeighborsClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "n_neighbors":
			knn.nNeighbors, err = model.ParamInt(key, value)
		case "weights":
			knn.weights, err = model.ParamString(key, value)
		case "p":
			knn.p, err = model.ParamFloat(key, value)
		default:
			return model.UnknownParam("KNeighborsClassifier", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (knn *KNeighborsClassifier) Clone() model.Classifier {
	return NewKNeighborsClassifier(WithNNeighbors(knn.nNeighbors), WithWeights(knn.weights), WithP(knn.p))
}

func (knn *KNeighborsClassifier) String() string {
	return fmt.Sprintf("KNeighborsClassifier(n_neighbors=%d, weights=%s, p=%g)", knn.nNeighbors, knn.weights, knn.p)
}
