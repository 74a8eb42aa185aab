package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/titanic/pkg/errors"
)

// Output formats accepted by Render.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	sectionStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// Render writes r to w in the given format.
func Render(w io.Writer, r *Report, format string) error {
	if r == nil {
		return errors.NewValueError("report.Render", "report is nil")
	}
	switch format {
	case FormatText, "":
		_, err := io.WriteString(w, Text(r))
		return errors.Wrap(err, "write text report")
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(r), "encode json report")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return errors.Wrap(err, "encode yaml report")
		}
		return errors.Wrap(enc.Close(), "encode yaml report")
	default:
		return errors.NewValidationError("output.format", "must be text, json or yaml", format)
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func pct(v float64) string { return fmt.Sprintf("%.2f %%", v*100) }

// Text renders the human readable report.
func Text(r *Report) string {
	var b strings.Builder
	line := func(s string) { b.WriteString(s + "\n") }

	line(titleStyle.Render("Titanic survival") + " " + mutedStyle.Render(fmt.Sprintf("run %s  seed %d", r.RunID, r.Seed)))
	line(fmt.Sprintf("train %d rows, test %d rows", r.Data.TrainRows, r.Data.TestRows))
	line(fmt.Sprintf("imputer: embarked=%s age=%.2f±%.2f",
		r.Data.Imputer.EmbarkedMode, r.Data.Imputer.AgeMean, r.Data.Imputer.AgeStd))

	line(sectionStyle.Render("Model comparison (training accuracy)"))
	cmp := newTable("#", "Model", "Score")
	for i, s := range r.Comparison.Scores {
		cmp.Row(fmt.Sprint(i+1), s.Model, fmt.Sprintf("%.2f", s.Score))
	}
	line(cmp.String())
	line("selected: " + r.Comparison.Selected)

	line(sectionStyle.Render(fmt.Sprintf("Cross-validation (%s, %d folds)", r.CV.Strategy, r.CV.Folds)))
	scores := make([]string, len(r.CV.Scores))
	for i, s := range r.CV.Scores {
		scores[i] = fmt.Sprintf("%.4f", s)
	}
	line("model: " + r.CV.Model)
	line("scores: " + strings.Join(scores, " "))
	line(fmt.Sprintf("mean: %.4f  std: %.4f", r.CV.Mean, r.CV.Std))

	if len(r.Importances) > 0 {
		line(sectionStyle.Render("Feature importance"))
		imp := newTable("Feature", "Importance")
		for _, fi := range r.Importances {
			imp.Row(fi.Feature, fmt.Sprintf("%.3f", fi.Importance))
		}
		line(imp.String())
	}

	line(sectionStyle.Render("Random forest"))
	if r.Search.Enabled {
		line(fmt.Sprintf("grid search: %d candidates, %d folds, best score %.4f",
			r.Search.Candidates, r.Search.Folds, r.Search.BestScore))
	} else {
		line("grid search: disabled")
	}
	line("params: " + formatParams(r.Search.Params))
	if r.BaselineOOB != nil {
		line("oob score (default settings): " + pct(*r.BaselineOOB))
	}
	if r.OOBScore != nil {
		line("oob score: " + pct(*r.OOBScore))
	}

	ev := r.Evaluation
	line(sectionStyle.Render(fmt.Sprintf("Evaluation (%s, cross_val_predict cv=%d)", ev.Model, ev.Folds)))
	cm := newTable("", "pred 0", "pred 1")
	cm.Row("true 0", fmt.Sprint(ev.Confusion.TN), fmt.Sprint(ev.Confusion.FP))
	cm.Row("true 1", fmt.Sprint(ev.Confusion.FN), fmt.Sprint(ev.Confusion.TP))
	line(cm.String())

	m := newTable("Metric", "Value")
	m.Row("accuracy", fmt.Sprintf("%.4f", ev.Accuracy))
	m.Row("precision", fmt.Sprintf("%.4f", ev.Precision))
	m.Row("recall", fmt.Sprintf("%.4f", ev.Recall))
	m.Row("f1", fmt.Sprintf("%.4f", ev.F1))
	if ev.HasScores {
		m.Row("roc_auc", fmt.Sprintf("%.4f", ev.ROCAUC))
		m.Row("log_loss", fmt.Sprintf("%.4f", ev.LogLoss))
	}
	line(m.String())

	line(sectionStyle.Render("Test prediction"))
	line(fmt.Sprintf("%d of %d passengers predicted to survive", r.Prediction.Survived, r.Prediction.Rows))
	if r.Prediction.Submission != "" {
		line("submission: " + r.Prediction.Submission)
	}
	return b.String()
}

// formatParams prints params as key=value pairs in key order.
func formatParams(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, " ")
}

func formatFloat(v float64) string { return fmt.Sprintf("%.3f", v) }
