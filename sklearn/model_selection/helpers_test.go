package model_selection

import (
	"os"
	"testing"

	"go.uber.org/goleak"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/core/model"
	"github.com/YuminosukeSato/titanic/pkg/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
	os.Exit(0)
}

// stubClassifier scores whatever its "score" parameter says.
type stubClassifier struct {
	score  float64
	fail   bool
	panics bool
	fitted bool
}

func (s *stubClassifier) Fit(X, y mat.Matrix) error {
	if s.panics {
		panic("stub exploded")
	}
	if s.fail {
		return errors.New("stub failure")
	}
	s.fitted = true
	return nil
}

func (s *stubClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !s.fitted {
		return nil, errors.NewNotFittedError("stub", "Predict")
	}
	r, _ := X.Dims()
	return mat.NewDense(r, 1, nil), nil
}

func (s *stubClassifier) Score(X, y mat.Matrix) (float64, error) { return s.score, nil }

func (s *stubClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{"score": s.score, "fail": s.fail}
}

func (s *stubClassifier) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "score":
			s.score, err = model.ParamFloat(k, v)
		case "fail":
			s.fail, err = model.ParamBool(k, v)
		default:
			return model.UnknownParam("stub", k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *stubClassifier) Clone() model.Classifier {
	return &stubClassifier{score: s.score, fail: s.fail, panics: s.panics}
}

// blobs returns two well separated classes of n samples each.
func blobs(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(2*n, 2, nil)
	y := mat.NewDense(2*n, 1, nil)
	for i := 0; i < n; i++ {
		off := float64(i%5) * 0.1
		X.Set(i, 0, off)
		X.Set(i, 1, 1-off)
		X.Set(n+i, 0, 5+off)
		X.Set(n+i, 1, 6-off)
		y.Set(n+i, 0, 1)
	}
	return X, y
}
