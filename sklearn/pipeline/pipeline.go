// Package pipeline chains transformers with a final classifier.
package pipeline

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/core/model"
	"github.com/YuminosukeSato/titanic/pkg/errors"
)

// Step is one named stage. Every step except the last must be a
// model.ParamTransformer; the last must be a model.Classifier.
type Step struct {
	Name      string
	Estimator interface{}
}

// Pipeline fits its transformers in order and the classifier on their
// output. Hyperparameters are addressed as "step__param".
type Pipeline struct {
	names        []string
	transformers []model.ParamTransformer
	finalName    string
	final        model.Classifier
	fitted       bool
}

// NewPipeline builds a pipeline from at least one step.
func NewPipeline(steps ...Step) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, errors.NewValidationError("steps", "pipeline needs at least one step", nil)
	}
	p := &Pipeline{}
	seen := make(map[string]bool, len(steps))
	for i, s := range steps {
		if s.Name == "" || strings.Contains(s.Name, "__") {
			return nil, errors.NewValidationError("steps", "step names must be non-empty and must not contain '__'", s.Name)
		}
		if seen[s.Name] {
			return nil, errors.NewValidationError("steps", "duplicate step name", s.Name)
		}
		seen[s.Name] = true

		if i == len(steps)-1 {
			clf, ok := s.Estimator.(model.Classifier)
			if !ok {
				return nil, errors.NewValidationError(s.Name, "last step must be a classifier", fmt.Sprintf("%T", s.Estimator))
			}
			p.finalName, p.final = s.Name, clf
			continue
		}
		tr, ok := s.Estimator.(model.ParamTransformer)
		if !ok {
			return nil, errors.NewValidationError(s.Name, "intermediate steps must be transformers", fmt.Sprintf("%T", s.Estimator))
		}
		p.names = append(p.names, s.Name)
		p.transformers = append(p.transformers, tr)
	}
	return p, nil
}

// Fit fits each transformer on the output of the previous one, then the
// classifier.
func (p *Pipeline) Fit(X, y mat.Matrix) error {
	p.fitted = false
	Xt := X
	for i, tr := range p.transformers {
		out, err := tr.FitTransform(Xt)
		if err != nil {
			return errors.Wrapf(err, "pipeline step %q", p.names[i])
		}
		Xt = out
	}
	if err := p.final.Fit(Xt, y); err != nil {
		return errors.Wrapf(err, "pipeline step %q", p.finalName)
	}
	p.fitted = true
	return nil
}

func (p *Pipeline) transform(X mat.Matrix, method string) (mat.Matrix, error) {
	if !p.fitted {
		return nil, errors.NewNotFittedError("Pipeline", method)
	}
	Xt := X
	for i, tr := range p.transformers {
		out, err := tr.Transform(Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline step %q", p.names[i])
		}
		Xt = out
	}
	return Xt, nil
}

// Predict transforms X and predicts with the classifier.
func (p *Pipeline) Predict(X mat.Matrix) (mat.Matrix, error) {
	Xt, err := p.transform(X, "Predict")
	if err != nil {
		return nil, err
	}
	return p.final.Predict(Xt)
}

// PredictProba is available when the classifier is probabilistic.
func (p *Pipeline) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	pc, ok := p.final.(model.ProbabilisticClassifier)
	if !ok {
		return nil, errors.NewValueError("Pipeline.PredictProba",
			fmt.Sprintf("step %q does not estimate probabilities", p.finalName))
	}
	Xt, err := p.transform(X, "PredictProba")
	if err != nil {
		return nil, err
	}
	return pc.PredictProba(Xt)
}

// Classes returns the classifier's classes, or nil when it does not expose them.
func (p *Pipeline) Classes() []int {
	if pc, ok := p.final.(model.ProbabilisticClassifier); ok {
		return pc.Classes()
	}
	return nil
}

// Score returns the mean accuracy.
func (p *Pipeline) Score(X, y mat.Matrix) (float64, error) {
	return model.MeanAccuracy(p, X, y)
}

// Final returns the last step.
func (p *Pipeline) Final() model.Classifier { return p.final }

// GetParams returns every step's hyperparameters as "step__param".
func (p *Pipeline) GetParams() map[string]interface{} {
	params := make(map[string]interface{})
	add := func(name string, sub map[string]interface{}) {
		for k, v := range sub {
			params[name+"__"+k] = v
		}
	}
	for i, tr := range p.transformers {
		add(p.names[i], tr.GetParams())
	}
	add(p.finalName, p.final.GetParams())
	return params
}

// SetParams routes "step__param" keys to their step.
func (p *Pipeline) SetParams(params map[string]interface{}) error {
	routed := make(map[string]map[string]interface{})
	for key, value := range params {
		step, param, ok := strings.Cut(key, "__")
		if !ok {
			return model.UnknownParam("Pipeline", key)
		}
		if routed[step] == nil {
			routed[step] = make(map[string]interface{})
		}
		routed[step][param] = value
	}
	for step, sub := range routed {
		if step == p.finalName {
			if err := p.final.SetParams(sub); err != nil {
				return err
			}
			continue
		}
		found := false
		for i, name := range p.names {
			if name == step {
				if err := p.transformers[i].SetParams(sub); err != nil {
					return err
				}
				found = true
				break
			}
		}
		if !found {
			return model.UnknownParam("Pipeline", step)
		}
	}
	return nil
}

// Clone returns an unfitted pipeline with cloned steps.
func (p *Pipeline) Clone() model.Classifier {
	c := &Pipeline{
		names:     append([]string(nil), p.names...),
		finalName: p.finalName,
		final:     p.final.Clone(),
	}
	for _, tr := range p.transformers {
		c.transformers = append(c.transformers, tr.CloneTransformer())
	}
	return c
}

func (p *Pipeline) String() string {
	names := append(append([]string(nil), p.names...), p.finalName)
	return fmt.Sprintf("Pipeline(steps=[%s])", strings.Join(names, ", "))
}
