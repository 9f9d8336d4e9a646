package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Surge Model Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s | Features: %s | Labels: %s\n\n", r.RunID, r.FeatureVersion, r.LabelPolicy))

	// Data Summary
	ds := r.DataSummary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Tokens | %d |\n", ds.Tokens))
	sb.WriteString(fmt.Sprintf("| Candles | %d |\n", ds.Candles))
	sb.WriteString(fmt.Sprintf("| Dataset Rows | %d |\n", ds.DatasetRows))
	sb.WriteString(fmt.Sprintf("| Positive Rows | %d |\n", ds.Positives))
	sb.WriteString(fmt.Sprintf("| Train / Test Rows | %d / %d |\n", ds.TrainRows, ds.TestRows))
	sb.WriteString(fmt.Sprintf("| Date Range Start | %s |\n", formatMs(ds.DateRangeStart)))
	sb.WriteString(fmt.Sprintf("| Date Range End | %s |\n", formatMs(ds.DateRangeEnd)))
	sb.WriteString("\n")

	// Token outcomes
	sb.WriteString("## Token Outcomes\n\n")
	sb.WriteString("| Stage | OK | Skipped | Failed | Rows |\n")
	sb.WriteString("|-------|----|---------|--------|------|\n")
	sb.WriteString(fmt.Sprintf("| collect | %d | %d | %d | %d |\n",
		r.Collection.OK, r.Collection.Skipped, r.Collection.Failed, r.Collection.Rows))
	sb.WriteString(fmt.Sprintf("| train | %d | %d | %d | %d |\n",
		r.Training.OK, r.Training.Skipped, r.Training.Failed, r.Training.Rows))
	sb.WriteString("\n")

	if len(r.Problems) > 0 {
		sb.WriteString("### Skipped and Failed Tokens\n\n")
		for _, p := range r.Problems {
			sb.WriteString(fmt.Sprintf("- [%s] %s %s: %s\n", p.Stage, p.Address, p.Status, p.Reason))
		}
		sb.WriteString("\n")
	}

	// Evaluation
	sb.WriteString("## Evaluation\n\n")
	if ev := r.Evaluation; ev != nil {
		sb.WriteString(fmt.Sprintf("Threshold %.2f on %d held-out rows (%d positive).\n\n", ev.Threshold, ev.Samples, ev.Positives))
		sb.WriteString("| Accuracy | Precision | Recall | F1 | ROC-AUC |\n")
		sb.WriteString("|----------|-----------|--------|----|---------|\n")
		sb.WriteString(fmt.Sprintf("| %.4f | %.4f | %.4f | %.4f | %.4f |\n\n",
			ev.Accuracy, ev.Precision, ev.Recall, ev.F1, ev.ROCAUC))

		sb.WriteString("| Class | Precision | Recall | F1 | Support |\n")
		sb.WriteString("|-------|-----------|--------|----|---------|\n")
		for _, c := range ev.Classes {
			sb.WriteString(fmt.Sprintf("| %d | %.4f | %.4f | %.4f | %d |\n",
				c.Class, c.Precision, c.Recall, c.F1, c.Support))
		}
		sb.WriteString("\n")

		cm := ev.Confusion
		sb.WriteString(fmt.Sprintf("Confusion: TN=%d FP=%d FN=%d TP=%d\n\n", cm.TN, cm.FP, cm.FN, cm.TP))
		if ev.Tokens > 0 {
			sb.WriteString(fmt.Sprintf("Token recall: %.4f over %d tokens with events\n\n", ev.TokenRecall, ev.Tokens))
		}
	} else {
		sb.WriteString("No evaluation available.\n\n")
	}

	// Window comparison
	sb.WriteString("## Window Comparison\n\n")
	if len(r.Windows) > 0 {
		sb.WriteString("| Window | Events | Tokens | Mean Factor | Max Factor | Mean Minutes to Peak |\n")
		sb.WriteString("|--------|--------|--------|-------------|------------|----------------------|\n")
		for _, w := range r.Windows {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.2f | %.2f | %.1f |\n",
				w.Window, w.Events, w.Tokens, w.MeanFactor, w.MaxFactor, w.MeanDurationMin))
		}
	} else {
		sb.WriteString("No window comparison available.\n")
	}
	sb.WriteString("\n")

	// Patterns
	sb.WriteString("## Common Patterns\n\n")
	if len(r.Patterns) > 0 {
		for _, p := range r.Patterns {
			sb.WriteString(fmt.Sprintf("- %s\n", p))
		}
	} else {
		sb.WriteString("No common patterns identified.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func formatMs(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
