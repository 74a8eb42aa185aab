// Package tree はCARTアルゴリズムによる決定木分類器を提供します。
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/core/model"
	"github.com/YuminosukeSato/titanic/pkg/errors"
)

const (
	leafFeature = -1
	// 純粋ノードとみなす不純度の閾値
	impurityEpsilon = 1e-7
)

// node は配列で保持される木のノード
type node struct {
	feature   int // leafFeature のとき葉
	threshold float64
	left      int
	right     int
	value     []float64 // クラスごとの重み付きサンプル数
	impurity  float64
	weight    float64
}

// DecisionTreeClassifier is a CART classification tree compatible with
// scikit-learn's DecisionTreeClassifier.
type DecisionTreeClassifier struct {
	state *model.StateManager

	// ハイパーパラメータ
	criterion       string // "gini" or "entropy"
	maxDepth        int    // 0 は無制限
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string // "", "sqrt", "log2"
	randomState     int64

	// 学習結果
	nodes               []node
	classes_            []int
	nClasses_           int
	nFeatures_          int
	featureImportances_ []float64
	depth_              int
	nLeaves_            int
}

// DecisionTreeOption is a functional option for DecisionTreeClassifier.
type DecisionTreeOption func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates a tree with scikit-learn defaults: gini,
// unlimited depth, min_samples_split 2 and min_samples_leaf 1.
func NewDecisionTreeClassifier(opts ...DecisionTreeOption) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// WithCriterion sets the split quality measure, "gini" or "entropy".
func WithCriterion(criterion string) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithMaxDepth limits the depth of the tree. 0 means unlimited.
func WithMaxDepth(depth int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples needed to split a node.
func WithMinSamplesSplit(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are considered per split:
// "" (all), "sqrt" or "log2".
func WithMaxFeatures(maxFeatures string) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = maxFeatures }
}

// WithRandomState sets the seed used for feature sampling.
func WithRandomState(seed int64) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

func (dt *DecisionTreeClassifier) validate() error {
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.criterion)
	}
	if dt.maxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0", dt.maxDepth)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", dt.minSamplesLeaf)
	}
	switch dt.maxFeatures {
	case "", "sqrt", "log2", "auto":
	default:
		return errors.NewValidationError("max_features", "must be sqrt, log2 or empty", dt.maxFeatures)
	}
	return nil
}

// Fit builds the tree from the training set.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted builds the tree with per-sample weights. Rows with weight 0
// are ignored, integer weights act as bootstrap counts. Classes are taken
// from all of y so that every tree of an ensemble shares them.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	if err := dt.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.CheckFitInput("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if sampleWeight != nil && len(sampleWeight) != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, len(sampleWeight), 0)
	}

	dt.state.Reset()
	dt.classes_ = model.ExtractClasses(y)
	dt.nClasses_ = len(dt.classes_)
	dt.nFeatures_ = nFeatures

	b := &builder{
		dt:      dt,
		cols:    make([][]float64, nFeatures),
		labels:  model.EncodeLabels(y, dt.classes_),
		weights: make([]float64, nSamples),
		rng:     rand.New(rand.NewPCG(uint64(dt.randomState), uint64(dt.randomState))),
		imp:     make([]float64, nFeatures),
	}
	for j := range b.cols {
		b.cols[j] = mat.Col(nil, j, X)
	}
	samples := make([]int, 0, nSamples)
	for i := 0; i < nSamples; i++ {
		w := 1.0
		if sampleWeight != nil {
			w = sampleWeight[i]
		}
		b.weights[i] = w
		if w > 0 {
			samples = append(samples, i)
		}
	}
	if len(samples) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "all sample weights are zero")
	}

	dt.nodes = dt.nodes[:0]
	dt.depth_ = 0
	dt.nLeaves_ = 0
	b.build(samples, 0)

	if total := floats.Sum(b.imp); total > 0 {
		floats.Scale(1/total, b.imp)
	}
	dt.featureImportances_ = b.imp

	dt.state.SetDimensions(nFeatures, nSamples)
	dt.state.SetFitted()
	return nil
}

// builder holds the working state of one Fit call.
type builder struct {
	dt      *DecisionTreeClassifier
	cols    [][]float64
	labels  []int
	weights []float64
	rng     *rand.Rand
	imp     []float64
}

type split struct {
	feature   int
	threshold float64
	pos       int // samples[:pos] が左
	proxy     float64
}

// build appends the subtree for samples and returns its node index.
func (b *builder) build(samples []int, depth int) int {
	dt := b.dt
	value := make([]float64, dt.nClasses_)
	for _, i := range samples {
		value[b.labels[i]] += b.weights[i]
	}
	weight := floats.Sum(value)
	impurity := dt.impurity(value, weight)

	idx := len(dt.nodes)
	dt.nodes = append(dt.nodes, node{feature: leafFeature, value: value, impurity: impurity, weight: weight})
	if depth > dt.depth_ {
		dt.depth_ = depth
	}

	isLeaf := (dt.maxDepth > 0 && depth >= dt.maxDepth) ||
		len(samples) < dt.minSamplesSplit ||
		len(samples) < 2*dt.minSamplesLeaf ||
		impurity <= impurityEpsilon
	if isLeaf {
		dt.nLeaves_++
		return idx
	}

	best, ok := b.findSplit(samples, weight)
	if !ok {
		dt.nLeaves_++
		return idx
	}

	// best.feature で並べ替えて左右に分ける
	col := b.cols[best.feature]
	sort.SliceStable(samples, func(a, c int) bool { return col[samples[a]] < col[samples[c]] })
	left := append([]int(nil), samples[:best.pos]...)
	right := append([]int(nil), samples[best.pos:]...)

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)

	n := &dt.nodes[idx]
	n.feature = best.feature
	n.threshold = best.threshold
	n.left = l
	n.right = r

	lw, rw := dt.nodes[l].weight, dt.nodes[r].weight
	b.imp[best.feature] += weight*impurity - lw*dt.nodes[l].impurity - rw*dt.nodes[r].impurity
	return idx
}

// candidateFeatures returns the features examined at one node.
func (b *builder) candidateFeatures() []int {
	n := len(b.cols)
	k := n
	switch b.dt.maxFeatures {
	case "sqrt", "auto":
		k = int(math.Sqrt(float64(n)))
	case "log2":
		k = int(math.Log2(float64(n)))
	}
	if k < 1 {
		k = 1
	}
	if k >= n {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(n)[:k]
}

// findSplit sweeps every candidate feature in sorted order and keeps the
// split with the lowest weighted child impurity. Earlier candidates win ties.
func (b *builder) findSplit(samples []int, total float64) (split, bool) {
	dt := b.dt
	best := split{proxy: math.Inf(1)}
	found := false

	order := make([]int, len(samples))
	leftVal := make([]float64, dt.nClasses_)
	rightVal := make([]float64, dt.nClasses_)

	for _, f := range b.candidateFeatures() {
		col := b.cols[f]
		copy(order, samples)
		sort.SliceStable(order, func(a, c int) bool { return col[order[a]] < col[order[c]] })
		if col[order[0]] == col[order[len(order)-1]] {
			continue
		}

		for k := range leftVal {
			leftVal[k] = 0
			rightVal[k] = 0
		}
		for _, i := range order {
			rightVal[b.labels[i]] += b.weights[i]
		}
		leftW, rightW := 0.0, total

		for pos := 1; pos < len(order); pos++ {
			i := order[pos-1]
			w := b.weights[i]
			leftVal[b.labels[i]] += w
			rightVal[b.labels[i]] -= w
			leftW += w
			rightW -= w

			if col[order[pos]] <= col[i] {
				continue
			}
			if pos < dt.minSamplesLeaf || len(order)-pos < dt.minSamplesLeaf {
				continue
			}
			proxy := leftW*dt.impurity(leftVal, leftW) + rightW*dt.impurity(rightVal, rightW)
			if proxy < best.proxy {
				best = split{
					feature:   f,
					threshold: (col[i] + col[order[pos]]) / 2,
					pos:       pos,
					proxy:     proxy,
				}
				found = true
			}
		}
	}
	return best, found
}

func (dt *DecisionTreeClassifier) impurity(value []float64, weight float64) float64 {
	if weight <= 0 {
		return 0
	}
	if dt.criterion == "entropy" {
		h := 0.0
		for _, v := range value {
			if v > 0 {
				p := v / weight
				h -= p * math.Log2(p)
			}
		}
		return h
	}
	g := 1.0
	for _, v := range value {
		p := v / weight
		g -= p * p
	}
	return g
}

func (dt *DecisionTreeClassifier) leaf(X mat.Matrix, i int) *node {
	n := &dt.nodes[0]
	for n.feature != leafFeature {
		if X.At(i, n.feature) <= n.threshold {
			n = &dt.nodes[n.left]
		} else {
			n = &dt.nodes[n.right]
		}
	}
	return n
}

// PredictProba returns the class distribution of the leaf each row falls in.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	rows, err := model.CheckPredictInput("DecisionTreeClassifier.PredictProba", X, dt.nFeatures_)
	if err != nil {
		return nil, err
	}
	proba := mat.NewDense(rows, dt.nClasses_, nil)
	for i := 0; i < rows; i++ {
		n := dt.leaf(X, i)
		for k, v := range n.value {
			proba.Set(i, k, v/n.weight)
		}
	}
	return proba, nil
}

// Predict returns the most probable class for each row.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "Predict"); err != nil {
		return nil, err
	}
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxClasses(proba, dt.classes_), nil
}

// Score returns the mean accuracy on the given data.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	return model.MeanAccuracy(dt, X, y)
}

// Classes returns the sorted class labels seen during Fit.
func (dt *DecisionTreeClassifier) Classes() []int { return dt.classes_ }

// GetFeatureImportances returns the normalized total impurity decrease
// contributed by each feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return dt.featureImportances_
}

// GetDepth returns the depth of the fitted tree. A single leaf has depth 0.
func (dt *DecisionTreeClassifier) GetDepth() int { return dt.depth_ }

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int { return dt.nLeaves_ }

// GetParams returns the model hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams sets the model hyperparameters.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "criterion":
			dt.criterion, err = model.ParamString(key, value)
		case "max_depth":
			if value == nil {
				dt.maxDepth = 0
				continue
			}
			dt.maxDepth, err = model.ParamInt(key, value)
		case "min_samples_split":
			dt.minSamplesSplit, err = model.ParamInt(key, value)
		case "min_samples_leaf":
			dt.minSamplesLeaf, err = model.ParamInt(key, value)
		case "max_features":
			dt.maxFeatures, err = model.ParamString(key, value)
		case "random_state":
			dt.randomState, err = model.ParamInt64(key, value)
		default:
			return model.UnknownParam("DecisionTreeClassifier", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted tree with the same hyperparameters.
func (dt *DecisionTreeClassifier) Clone() model.Classifier {
	return dt.CloneTree()
}

// CloneTree is Clone with the concrete type.
func (dt *DecisionTreeClassifier) CloneTree() *DecisionTreeClassifier {
	return NewDecisionTreeClassifier(
		WithCriterion(dt.criterion),
		WithMaxDepth(dt.maxDepth),
		WithMinSamplesSplit(dt.minSamplesSplit),
		WithMinSamplesLeaf(dt.minSamplesLeaf),
		WithMaxFeatures(dt.maxFeatures),
		WithRandomState(dt.randomState),
	)
}

// String returns a short description of the model.
func (dt *DecisionTreeClassifier) String() string {
	if !dt.state.IsFitted() {
		return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d)", dt.criterion, dt.maxDepth)
	}
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, depth=%d, leaves=%d)",
		dt.criterion, dt.depth_, dt.nLeaves_)
}
