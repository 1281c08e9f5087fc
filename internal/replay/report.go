package replay

import (
	"fmt"
	"strings"

	"github.com/quizoracle/quizoracle/internal/models"
)

// Report is the pass-by-question outcome matrix. Columns follow the
// baseline pass's question order; the baseline row codes each question by
// its own correctness (+1 right, -1 wrong), and every later row codes the
// change against the baseline: +1 newly right, -1 newly wrong, 0 unchanged.
type Report struct {
	Columns  []string
	Rows     [][]int
	Accuracy []float64
}

// Overall returns the mean accuracy across all passes, as a percentage.
func (r *Report) Overall() float64 {
	if len(r.Accuracy) == 0 {
		return 0
	}
	var sum float64
	for _, acc := range r.Accuracy {
		sum += acc
	}
	return sum / float64(len(r.Accuracy))
}

// Latest returns the most recent pass's accuracy percentage.
func (r *Report) Latest() float64 {
	if len(r.Accuracy) == 0 {
		return 0
	}
	return r.Accuracy[len(r.Accuracy)-1]
}

// String renders the matrix for the console: one row per pass, one column
// per question, followed by the accuracy summary.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %s\n", "pass", strings.Join(r.Columns, " "))
	for i, row := range r.Rows {
		cells := make([]string, len(row))
		for j, code := range row {
			cells[j] = fmt.Sprintf("%+3d", code)
		}
		fmt.Fprintf(&b, "%-8d %s  (%.1f%%)\n", i+1, strings.Join(cells, " "), r.Accuracy[i])
	}
	fmt.Fprintf(&b, "overall accuracy: %.1f%%, latest pass: %.1f%%\n", r.Overall(), r.Latest())
	return b.String()
}

// GenReport compares every stored pass against the baseline pass and builds
// the outcome matrix.
func (r *Replayer) GenReport() (*Report, error) {
	passes, err := r.results.LoadPasses()
	if err != nil {
		return nil, err
	}
	return buildReport(passes), nil
}

func buildReport(passes []models.ReplayPass) *Report {
	report := &Report{}
	if len(passes) == 0 {
		return report
	}

	baseline := passes[0]
	baselineRight := make(map[int]bool, len(baseline.Questions))
	for _, q := range baseline.Questions {
		report.Columns = append(report.Columns, fmt.Sprintf("#%d", q.Number))
		baselineRight[q.ID] = q.AnsweredCorrectly()
	}

	for passIdx, pass := range passes {
		row := make([]int, 0, len(pass.Questions))
		right := 0
		for _, q := range pass.Questions {
			correct := q.AnsweredCorrectly()
			if correct {
				right++
			}
			switch {
			case passIdx == 0 && correct:
				row = append(row, models.OutcomeBetter)
			case passIdx == 0:
				row = append(row, models.OutcomeWorse)
			case correct == baselineRight[q.ID]:
				row = append(row, models.OutcomeUnchanged)
			case correct:
				row = append(row, models.OutcomeBetter)
			default:
				row = append(row, models.OutcomeWorse)
			}
		}
		report.Rows = append(report.Rows, row)
		accuracy := 0.0
		if len(pass.Questions) > 0 {
			accuracy = float64(right) / float64(len(pass.Questions)) * 100
		}
		report.Accuracy = append(report.Accuracy, accuracy)
	}
	return report
}
