// Package model_selection は交差検証とハイパーパラメータ探索を提供します。
package model_selection

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/pkg/errors"
)

// Splitter は交差検証の分割方法のインターフェース
type Splitter interface {
	Split(X, y mat.Matrix) ([]Fold, error)
	GetNSplits() int
}

// Fold は1つの分割の学習用・検証用インデックス（どちらも昇順）
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold は連続したブロックで分割する k-fold
type KFold struct {
	NSplits     int
	Shuffle     bool
	RandomState int64
}

// NewKFold creates a k-fold splitter.
func NewKFold(nSplits int, shuffle bool, randomState int64) *KFold {
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomState: randomState}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int { return kf.NSplits }

// Split assigns n/k samples to each test fold; the first n%k folds get one
// more. Without Shuffle the folds are contiguous.
func (kf *KFold) Split(X, _ mat.Matrix) ([]Fold, error) {
	nSamples, _ := X.Dims()
	if err := checkSplits("KFold", kf.NSplits, nSamples); err != nil {
		return nil, err
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(kf.RandomState), uint64(kf.RandomState)))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	testFold := make([]int, nSamples)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits
	current := 0
	for f := 0; f < kf.NSplits; f++ {
		size := foldSize
		if f < remainder {
			size++
		}
		for _, idx := range indices[current : current+size] {
			testFold[idx] = f
		}
		current += size
	}
	return foldsFromAssignment(testFold, kf.NSplits), nil
}

// StratifiedKFold は各foldのクラス比率を全体に揃える k-fold
//
// Classes are ordered by first appearance in y, and the sorted label vector
// is dealt round-robin over the folds to decide how many samples of each
// class every fold receives. Within a class, samples go to folds in index
// order unless Shuffle is set.
type StratifiedKFold struct {
	NSplits     int
	Shuffle     bool
	RandomState int64
}

// NewStratifiedKFold creates a stratified k-fold splitter.
func NewStratifiedKFold(nSplits int, shuffle bool, randomState int64) *StratifiedKFold {
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, RandomState: randomState}
}

// GetNSplits returns the number of splits
func (skf *StratifiedKFold) GetNSplits() int { return skf.NSplits }

// Split generates stratified train/test indices for each fold
func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]Fold, error) {
	nSamples, _ := X.Dims()
	if err := checkSplits("StratifiedKFold", skf.NSplits, nSamples); err != nil {
		return nil, err
	}
	if y == nil {
		return nil, errors.NewValueError("StratifiedKFold.Split", "y is required")
	}
	if yRows, _ := y.Dims(); yRows != nSamples {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", nSamples, yRows, 0)
	}

	// 出現順にクラスを符号化
	order := make(map[float64]int)
	encoded := make([]int, nSamples)
	var counts []int
	for i := 0; i < nSamples; i++ {
		label := y.At(i, 0)
		k, ok := order[label]
		if !ok {
			k = len(counts)
			order[label] = k
			counts = append(counts, 0)
		}
		encoded[i] = k
		counts[k]++
	}
	nClasses := len(counts)

	maxCount, minCount := 0, nSamples
	for _, c := range counts {
		maxCount = max(maxCount, c)
		minCount = min(minCount, c)
	}
	if skf.NSplits > maxCount {
		return nil, errors.NewValueError("StratifiedKFold.Split",
			fmt.Sprintf("n_splits=%d cannot be greater than the number of members in each class", skf.NSplits))
	}
	if skf.NSplits > minCount {
		errors.Warn(errors.Newf("the least populated class in y has only %d members, which is less than n_splits=%d",
			minCount, skf.NSplits))
	}

	// sorted label vector dealt to folds: allocation[f][k]
	sorted := append([]int(nil), encoded...)
	sort.Ints(sorted)
	allocation := make([][]int, skf.NSplits)
	for f := range allocation {
		allocation[f] = make([]int, nClasses)
	}
	for i, k := range sorted {
		allocation[i%skf.NSplits][k]++
	}

	var r *rand.Rand
	if skf.Shuffle {
		r = rand.New(rand.NewPCG(uint64(skf.RandomState), uint64(skf.RandomState)))
	}

	testFold := make([]int, nSamples)
	for k := 0; k < nClasses; k++ {
		foldsForClass := make([]int, 0, counts[k])
		for f := 0; f < skf.NSplits; f++ {
			for n := 0; n < allocation[f][k]; n++ {
				foldsForClass = append(foldsForClass, f)
			}
		}
		if r != nil {
			r.Shuffle(len(foldsForClass), func(i, j int) {
				foldsForClass[i], foldsForClass[j] = foldsForClass[j], foldsForClass[i]
			})
		}
		next := 0
		for i, c := range encoded {
			if c == k {
				testFold[i] = foldsForClass[next]
				next++
			}
		}
	}
	return foldsFromAssignment(testFold, skf.NSplits), nil
}

func checkSplits(name string, nSplits, nSamples int) error {
	if nSplits < 2 {
		return errors.NewValidationError("n_splits", "must be >= 2", nSplits)
	}
	if nSplits > nSamples {
		return errors.NewValueError(name+".Split",
			fmt.Sprintf("cannot have n_splits=%d greater than n_samples=%d", nSplits, nSamples))
	}
	return nil
}

// foldsFromAssignment turns a per-sample test fold number into index lists.
func foldsFromAssignment(testFold []int, nSplits int) []Fold {
	folds := make([]Fold, nSplits)
	for f := range folds {
		for i, tf := range testFold {
			if tf == f {
				folds[f].TestIndices = append(folds[f].TestIndices, i)
			} else {
				folds[f].TrainIndices = append(folds[f].TrainIndices, i)
			}
		}
	}
	return folds
}

// subset copies the given rows of X and y.
func subset(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.Dense) {
	_, xCols := X.Dims()
	xs := mat.NewDense(len(indices), xCols, nil)
	ys := mat.NewDense(len(indices), 1, nil)
	for i, idx := range indices {
		for j := 0; j < xCols; j++ {
			xs.Set(i, j, X.At(idx, j))
		}
		ys.Set(i, 0, y.At(idx, 0))
	}
	return xs, ys
}
