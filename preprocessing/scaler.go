// Package preprocessing はモデル入力の前処理を提供します。
package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/titanic/core/model"
	"github.com/YuminosukeSato/titanic/pkg/errors"
)

// StandardScaler はscikit-learn互換の標準化スケーラー
// データを平均0、標準偏差1に変換する
type StandardScaler struct {
	state *model.StateManager

	withMean bool
	withStd  bool

	// 学習された統計量
	mean_  []float64
	scale_ []float64
}

// StandardScalerOption configures a StandardScaler.
type StandardScalerOption func(*StandardScaler)

// WithMean sets whether the mean is subtracted (default true).
func WithMean(v bool) StandardScalerOption {
	return func(s *StandardScaler) { s.withMean = v }
}

// WithStd sets whether values are divided by the standard deviation (default true).
func WithStd(v bool) StandardScalerOption {
	return func(s *StandardScaler) { s.withStd = v }
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler()
//	XScaled, err := scaler.FitTransform(X)
func NewStandardScaler(opts ...StandardScalerOption) *StandardScaler {
	s := &StandardScaler{
		state:    model.NewStateManager(),
		withMean: true,
		withStd:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fit は訓練データから列ごとの平均と母標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.mean_ = make([]float64, c)
	s.scale_ = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		if s.withMean {
			s.mean_[j] = mean
		}
		s.scale_[j] = 1
		// 定数列はそのまま
		if s.withStd && std > 1e-8 {
			s.scale_[j] = std
		}
	}

	s.state.SetDimensions(c, r)
	s.state.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}
	nFeatures, _ := s.state.GetDimensions()
	r, c := X.Dims()
	if c != nFeatures {
		return nil, errors.NewDimensionError("StandardScaler.Transform", nFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(_, j int, v float64) float64 {
		return (v - s.mean_[j]) / s.scale_[j]
	}, X)
	return result, nil
}

// FitTransform はFitとTransformを同時に実行する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardized values back to the original scale.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	nFeatures, _ := s.state.GetDimensions()
	r, c := X.Dims()
	if c != nFeatures {
		return nil, errors.NewDimensionError("StandardScaler.InverseTransform", nFeatures, c, 1)
	}
	result := mat.NewDense(r, c, nil)
	result.Apply(func(_, j int, v float64) float64 {
		return v*s.scale_[j] + s.mean_[j]
	}, X)
	return result, nil
}

// Mean returns the learned per-column means.
func (s *StandardScaler) Mean() []float64 { return s.mean_ }

// Scale returns the learned per-column scales.
func (s *StandardScaler) Scale() []float64 { return s.scale_ }

// GetParams returns the scaler's hyperparameters.
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.withMean,
		"with_std":  s.withStd,
	}
}

// SetParams sets the scaler's hyperparameters.
func (s *StandardScaler) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		v, err := model.ParamBool(key, value)
		if err != nil {
			return err
		}
		switch key {
		case "with_mean":
			s.withMean = v
		case "with_std":
			s.withStd = v
		default:
			return model.UnknownParam("StandardScaler", key)
		}
	}
	return nil
}

// Clone returns an unfitted scaler with the same settings.
func (s *StandardScaler) Clone() *StandardScaler {
	return NewStandardScaler(WithMean(s.withMean), WithStd(s.withStd))
}

// CloneTransformer is Clone behind the pipeline interface.
func (s *StandardScaler) CloneTransformer() model.ParamTransformer {
	return s.Clone()
}

// String はStandardScalerの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.state.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.withMean, s.withStd)
	}
	nFeatures, _ := s.state.GetDimensions()
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.withMean, s.withStd, nFeatures)
}
