package reporting

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"

	"solana-surge-lab/internal/domain"
	"solana-surge-lab/internal/metrics"
)

// MetricsTable renders the headline evaluation metrics for a terminal.
func MetricsTable(ev *metrics.Evaluation) string {
	return render([]string{"Metric", "Value"}, [][]string{
		{"Samples", fmt.Sprintf("%d", ev.Samples)},
		{"Positives", fmt.Sprintf("%d", ev.Positives)},
		{"Accuracy", fmt.Sprintf("%.4f", ev.Accuracy)},
		{"Precision", fmt.Sprintf("%.4f", ev.Precision)},
		{"Recall", fmt.Sprintf("%.4f", ev.Recall)},
		{"F1", fmt.Sprintf("%.4f", ev.F1)},
		{"ROC-AUC", fmt.Sprintf("%.4f", ev.ROCAUC)},
	})
}

// ClassReportTable renders the per-class report.
func ClassReportTable(ev *metrics.Evaluation) string {
	rows := make([][]string, 0, len(ev.Classes))
	for _, c := range ev.Classes {
		rows = append(rows, []string{
			fmt.Sprintf("%d", c.Class),
			fmt.Sprintf("%.4f", c.Precision),
			fmt.Sprintf("%.4f", c.Recall),
			fmt.Sprintf("%.4f", c.F1),
			fmt.Sprintf("%d", c.Support),
		})
	}
	return render([]string{"Class", "Precision", "Recall", "F1", "Support"}, rows)
}

// WindowTable renders the window comparison.
func WindowTable(windows []WindowRow) string {
	rows := make([][]string, 0, len(windows))
	for _, w := range windows {
		rows = append(rows, []string{
			w.Window.String(),
			fmt.Sprintf("%d", w.Events),
			fmt.Sprintf("%d", w.Tokens),
			fmt.Sprintf("%.2f", w.MeanFactor),
			fmt.Sprintf("%.2f", w.MaxFactor),
			fmt.Sprintf("%.1f", w.MeanDurationMin),
		})
	}
	return render([]string{"Window", "Events", "Tokens", "Mean Factor", "Max Factor", "Minutes to Peak"}, rows)
}

// ResultsTable renders per-token outcomes followed by a totals row.
func ResultsTable(results []*domain.TokenResult) string {
	rows := make([][]string, 0, len(results)+1)
	for _, r := range results {
		rows = append(rows, []string{r.Address, r.Status.String(), fmt.Sprintf("%d", r.Rows), r.Reason})
	}
	s := domain.Summarize(results)
	rows = append(rows, []string{
		"TOTAL",
		fmt.Sprintf("ok=%d skipped=%d failed=%d", s.OK, s.Skipped, s.Failed),
		fmt.Sprintf("%d", s.Rows),
		"",
	})
	return render([]string{"Token", "Status", "Rows", "Reason"}, rows)
}

// PredictionsTable renders scored tokens.
func PredictionsTable(preds []*domain.Prediction) string {
	rows := make([][]string, 0, len(preds))
	for _, p := range preds {
		flag := ""
		if p.Positive {
			flag = "ALERT"
		}
		rows = append(rows, []string{p.DisplayName(), p.Address, fmt.Sprintf("%.4f", p.Probability), flag})
	}
	return render([]string{"Token", "Address", "Probability", "Signal"}, rows)
}

func render(header []string, rows [][]string) string {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.Header(toAny(header)...)
	for _, r := range rows {
		if err := table.Append(r); err != nil {
			return err.Error()
		}
	}
	if err := table.Render(); err != nil {
		return err.Error()
	}
	return b.String()
}

func toAny(xs []string) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
