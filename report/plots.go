package report

import (
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/titanic/pkg/errors"
	"github.com/YuminosukeSato/titanic/pkg/log"
)

// Chart file names written by WritePlots.
const (
	ROCFile          = "roc.png"
	PRThresholdFile  = "precision_recall_threshold.png"
	PrecisionRecFile = "precision_vs_recall.png"
	ImportanceFile   = "feature_importance.png"
)

// WritePlots writes the evaluation charts into dir and returns the written
// paths. Curves are only drawn when the evaluation has scores.
func WritePlots(dir string, r *Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create plots dir %s", dir)
	}

	var written []string
	save := func(p *plot.Plot, name string, w vg.Length) error {
		path := filepath.Join(dir, name)
		if err := p.Save(w, 4*vg.Inch, path); err != nil {
			return errors.Wrapf(err, "save %s", path)
		}
		written = append(written, path)
		return nil
	}

	if r.Evaluation.HasScores {
		p, err := rocPlot(r.Evaluation.ROC, r.Evaluation.ROCAUC)
		if err != nil {
			return written, err
		}
		if err := save(p, ROCFile, 5*vg.Inch); err != nil {
			return written, err
		}

		if p, err = prThresholdPlot(r.Evaluation.PR); err != nil {
			return written, err
		}
		if err := save(p, PRThresholdFile, 7*vg.Inch); err != nil {
			return written, err
		}

		if p, err = precisionRecallPlot(r.Evaluation.PR); err != nil {
			return written, err
		}
		if err := save(p, PrecisionRecFile, 5*vg.Inch); err != nil {
			return written, err
		}
	}

	if len(r.Importances) > 0 {
		p, err := importancePlot(r.Importances)
		if err != nil {
			return written, err
		}
		if err := save(p, ImportanceFile, 7*vg.Inch); err != nil {
			return written, err
		}
	}

	log.GetLogger().Info("plots written", log.ComponentKey, "report", "plots.dir", dir, "plots.count", len(written))
	return written, nil
}

func xys(x, y []float64) plotter.XYs {
	pts := make(plotter.XYs, len(x))
	for i := range x {
		pts[i] = plotter.XY{X: x[i], Y: y[i]}
	}
	return pts
}

func rocPlot(roc ROC, auc float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "ROC curve"
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	curve, err := plotter.NewLine(xys(roc.FPR, roc.TPR))
	if err != nil {
		return nil, errors.Wrap(err, "roc curve")
	}
	curve.LineStyle.Width = vg.Points(2)
	curve.LineStyle.Color = plotutil.Color(0)

	chance, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return nil, errors.Wrap(err, "roc diagonal")
	}
	chance.LineStyle.Dashes = plotutil.Dashes(2)

	p.Add(curve, chance, plotter.NewGrid())
	p.Legend.Add("roc_auc "+formatFloat(auc), curve)
	p.Legend.Top = false
	return p, nil
}

// prThresholdPlot draws precision and recall against the decision threshold.
func prThresholdPlot(pr PRCurve) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Precision and recall vs threshold"
	p.X.Label.Text = "threshold"
	p.Y.Min, p.Y.Max = 0, 1

	n := len(pr.Thresholds)
	err := plotutil.AddLines(p,
		"precision", xys(pr.Thresholds, pr.Precision[:n]),
		"recall", xys(pr.Thresholds, pr.Recall[:n]),
	)
	if err != nil {
		return nil, errors.Wrap(err, "precision recall threshold")
	}
	p.Add(plotter.NewGrid())
	return p, nil
}

func precisionRecallPlot(pr PRCurve) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Precision vs recall"
	p.X.Label.Text = "recall"
	p.Y.Label.Text = "precision"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	line, err := plotter.NewLine(xys(pr.Recall, pr.Precision))
	if err != nil {
		return nil, errors.Wrap(err, "precision vs recall")
	}
	line.LineStyle.Width = vg.Points(2)
	line.LineStyle.Color = plotutil.Color(0)
	p.Add(line, plotter.NewGrid())
	return p, nil
}

func importancePlot(imp []Importance) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Feature importance"
	p.Y.Label.Text = "mean impurity decrease"

	values := make(plotter.Values, len(imp))
	names := make([]string, len(imp))
	for i, fi := range imp {
		values[i] = fi.Importance
		names[i] = fi.Feature
	}
	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, errors.Wrap(err, "importance bars")
	}
	bars.Color = plotutil.Color(2)
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}
