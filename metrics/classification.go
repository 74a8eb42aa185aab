// Package metrics は分類モデルの評価指標を提供します。
package metrics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/titanic/pkg/errors"
)

// checkPair validates two label/score vectors of equal, non-zero length.
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// checkBinary requires every label to be exactly 0 or 1.
func checkBinary(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, fmt.Sprintf("labels must be 0 or 1, got %v at index %d", v, i))
		}
	}
	return nil
}

// firstColumn copies column 0 of m into a vector.
func firstColumn(op string, m mat.Matrix) (*mat.VecDense, error) {
	if m == nil {
		return nil, errors.NewValueError(op, "nil matrix")
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率 (1 - accuracy) を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// BinaryLogLoss は2値分類の交差エントロピーを計算する
// 確率は [1e-15, 1-1e-15] にクリップされる
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}
	const eps = 1e-15
	sum := 0.0
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yPred.AtVec(i), eps, 1-eps)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// sortedScores returns the scores sorted ascending with their labels.
func sortedScores(yTrue, yScore *mat.VecDense) ([]float64, []bool, int) {
	n := yTrue.Len()
	scores := make([]float64, n)
	classes := make([]bool, n)
	positives := 0
	for i := 0; i < n; i++ {
		scores[i] = yScore.AtVec(i)
		classes[i] = yTrue.AtVec(i) == 1
		if classes[i] {
			positives++
		}
	}
	stat.SortWeightedLabeled(scores, classes, nil)
	return scores, classes, positives
}

// ROCCurve returns the false and true positive rates for every distinct
// score threshold. Rates are non-decreasing and start at (0, 0).
func ROCCurve(yTrue, yScore *mat.VecDense) (fpr, tpr, thresholds []float64, err error) {
	n, err := checkPair("ROCCurve", yTrue, yScore)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := checkBinary("ROCCurve", yTrue); err != nil {
		return nil, nil, nil, err
	}
	scores, classes, positives := sortedScores(yTrue, yScore)
	if positives == 0 || positives == n {
		return nil, nil, nil, errors.NewValueError("ROCCurve", "only one class present in y_true")
	}
	tpr, fpr, thresholds = stat.ROC(nil, scores, classes, nil)
	return fpr, tpr, thresholds, nil
}

// AUC はROC曲線下面積を台形則で計算する
// 正例・負例のどちらかしか無い場合は 0.5 を返し、UndefinedMetricWarning を出す
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("AUC", yTrue); err != nil {
		return 0, err
	}
	scores, classes, positives := sortedScores(yTrue, yScore)
	if positives == 0 || positives == n {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present in y_true", 0.5))
		return 0.5, nil
	}
	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// AUCMatrix は行列の1列目同士でAUCを計算する
func AUCMatrix(yTrue, yScore mat.Matrix) (float64, error) {
	t, err := firstColumn("AUCMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	s, err := firstColumn("AUCMatrix", yScore)
	if err != nil {
		return 0, err
	}
	return AUC(t, s)
}

// PrecisionRecallCurve returns precision and recall for every distinct
// threshold, with thresholds ascending. As in scikit-learn the last
// precision is 1 and the last recall 0, without a matching threshold.
func PrecisionRecallCurve(yTrue, yScore *mat.VecDense) (precision, recall, thresholds []float64, err error) {
	_, err = checkPair("PrecisionRecallCurve", yTrue, yScore)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := checkBinary("PrecisionRecallCurve", yTrue); err != nil {
		return nil, nil, nil, err
	}
	scores, classes, positives := sortedScores(yTrue, yScore)

	// 降順に走査して、閾値ごとの累積 tp / fp を求める
	var tps, fps []float64
	tp, fp := 0.0, 0.0
	for i := len(scores) - 1; i >= 0; i-- {
		if classes[i] {
			tp++
		} else {
			fp++
		}
		if i == 0 || scores[i-1] != scores[i] {
			tps = append(tps, tp)
			fps = append(fps, fp)
			thresholds = append(thresholds, scores[i])
		}
	}

	m := len(thresholds)
	precision = make([]float64, 0, m+1)
	recall = make([]float64, 0, m+1)
	for k := m - 1; k >= 0; k-- {
		precision = append(precision, errors.SafeDivide(tps[k], tps[k]+fps[k]))
		if positives == 0 {
			recall = append(recall, 1)
		} else {
			recall = append(recall, tps[k]/float64(positives))
		}
	}
	sort.Float64s(thresholds)
	return append(precision, 1), append(recall, 0), thresholds, nil
}

// ConfusionMatrix は2値分類の混同行列
//
//	         pred 0  pred 1
//	true 0     TN      FP
//	true 1     FN      TP
type ConfusionMatrix struct {
	TN int `json:"tn" yaml:"tn"`
	FP int `json:"fp" yaml:"fp"`
	FN int `json:"fn" yaml:"fn"`
	TP int `json:"tp" yaml:"tp"`
}

// BinaryConfusionMatrix counts predictions against labels; 1 is the positive class.
func BinaryConfusionMatrix(yTrue, yPred *mat.VecDense) (ConfusionMatrix, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return ConfusionMatrix{}, err
	}
	if err := checkBinary("ConfusionMatrix", yTrue); err != nil {
		return ConfusionMatrix{}, err
	}
	if err := checkBinary("ConfusionMatrix", yPred); err != nil {
		return ConfusionMatrix{}, err
	}
	var cm ConfusionMatrix
	for i := 0; i < n; i++ {
		switch t, p := yTrue.AtVec(i), yPred.AtVec(i); {
		case t == 0 && p == 0:
			cm.TN++
		case t == 0 && p == 1:
			cm.FP++
		case t == 1 && p == 0:
			cm.FN++
		default:
			cm.TP++
		}
	}
	return cm, nil
}

// Total returns the number of samples counted.
func (cm ConfusionMatrix) Total() int { return cm.TN + cm.FP + cm.FN + cm.TP }

// Matrix returns the counts as [[TN FP] [FN TP]].
func (cm ConfusionMatrix) Matrix() *mat.Dense {
	return mat.NewDense(2, 2, []float64{
		float64(cm.TN), float64(cm.FP),
		float64(cm.FN), float64(cm.TP),
	})
}

// ratio returns num/den, or 0 with an UndefinedMetricWarning when den is 0.
func ratio(metric, condition string, num, den int) float64 {
	if den == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(metric, condition, 0))
		return 0
	}
	return float64(num) / float64(den)
}

// Precision is TP / (TP + FP).
func (cm ConfusionMatrix) Precision() float64 {
	return ratio("precision", "no predicted samples", cm.TP, cm.TP+cm.FP)
}

// Recall is TP / (TP + FN).
func (cm ConfusionMatrix) Recall() float64 {
	return ratio("recall", "no true samples", cm.TP, cm.TP+cm.FN)
}

// F1 is the harmonic mean of precision and recall, 2TP / (2TP + FP + FN).
func (cm ConfusionMatrix) F1() float64 {
	return ratio("f1", "no true nor predicted samples", 2*cm.TP, 2*cm.TP+cm.FP+cm.FN)
}

// Accuracy is (TP + TN) / total.
func (cm ConfusionMatrix) Accuracy() float64 {
	return ratio("accuracy", "no samples", cm.TP+cm.TN, cm.Total())
}

func (cm ConfusionMatrix) String() string {
	return fmt.Sprintf("[[%d %d] [%d %d]]", cm.TN, cm.FP, cm.FN, cm.TP)
}

// PrecisionScore computes precision from label vectors.
func PrecisionScore(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := BinaryConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return cm.Precision(), nil
}

// RecallScore computes recall from label vectors.
func RecallScore(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := BinaryConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return cm.Recall(), nil
}

// F1Score computes F1 from label vectors.
func F1Score(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := BinaryConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return cm.F1(), nil
}
