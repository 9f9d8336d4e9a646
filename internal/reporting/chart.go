package reporting

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/fogleman/gg"

	"solana-surge-lab/internal/analysis"
	"solana-surge-lab/internal/metrics"
	"solana-surge-lab/internal/storage/flatfile"
)

// Chart layout in pixels.
const (
	chartPanelW = 480
	chartPanelH = 320
	chartMargin = 40
)

// RenderClusterChart draws one panel per window feature with the cluster
// means as bars and the standard deviation as error whiskers, and writes
// the PNG to w.
func RenderClusterChart(w io.Writer, clusters []*analysis.Cluster) error {
	if len(clusters) == 0 {
		return fmt.Errorf("cluster chart: no clusters")
	}

	cols := 2
	rows := (len(analysis.Features) + cols - 1) / cols
	dc := gg.NewContext(cols*chartPanelW, rows*chartPanelH)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for i, feature := range analysis.Features {
		x0 := float64((i % cols) * chartPanelW)
		y0 := float64((i / cols) * chartPanelH)
		drawPanel(dc, x0, y0, feature, clusters)
	}
	return dc.EncodePNG(w)
}

// WriteClusterChart renders the cluster chart to path.
func WriteClusterChart(path string, clusters []*analysis.Cluster) error {
	var buf bytes.Buffer
	if err := RenderClusterChart(&buf, clusters); err != nil {
		return err
	}
	return flatfile.WriteBytes(path, buf.Bytes())
}

func drawPanel(dc *gg.Context, x0, y0 float64, feature string, clusters []*analysis.Cluster) {
	left := x0 + chartMargin
	right := x0 + chartPanelW - chartMargin/2
	top := y0 + chartMargin
	bottom := y0 + chartPanelH - chartMargin

	// Value range includes zero and every whisker end.
	lo, hi := 0.0, 0.0
	for _, c := range clusters {
		st := c.Stats[feature]
		lo = math.Min(lo, st.Mean-st.Std)
		hi = math.Max(hi, st.Mean+st.Std)
	}
	if hi == lo {
		hi = lo + 1
	}
	yOf := func(v float64) float64 {
		return bottom - (v-lo)/(hi-lo)*(bottom-top)
	}

	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(feature+" by cluster", x0+chartPanelW/2, y0+chartMargin/2, 0.5, 0.5)

	// Axes and zero line.
	dc.SetLineWidth(1)
	dc.DrawLine(left, top, left, bottom)
	dc.DrawLine(left, yOf(0), right, yOf(0))
	dc.Stroke()
	dc.DrawStringAnchored(fmt.Sprintf("%.2f", hi), left-4, top, 1, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("%.2f", lo), left-4, bottom, 1, 0.5)

	slot := (right - left) / float64(len(clusters))
	barW := slot * 0.6
	for i, c := range clusters {
		st := c.Stats[feature]
		cx := left + slot*(float64(i)+0.5)

		y, zero := yOf(st.Mean), yOf(0)
		dc.SetRGB(0.25, 0.45, 0.75)
		dc.DrawRectangle(cx-barW/2, math.Min(y, zero), barW, math.Abs(zero-y))
		dc.Fill()

		dc.SetRGB(0, 0, 0)
		dc.DrawLine(cx, yOf(st.Mean-st.Std), cx, yOf(st.Mean+st.Std))
		dc.DrawLine(cx-barW/4, yOf(st.Mean+st.Std), cx+barW/4, yOf(st.Mean+st.Std))
		dc.DrawLine(cx-barW/4, yOf(st.Mean-st.Std), cx+barW/4, yOf(st.Mean-st.Std))
		dc.Stroke()
		dc.DrawStringAnchored(fmt.Sprintf("%d", c.ID), cx, bottom+12, 0.5, 0.5)
	}
}

// RenderPreEventChart draws one panel per window feature with every
// pre-event window as a line over its rows, and writes the PNG to w.
func RenderPreEventChart(w io.Writer, windows []*analysis.WindowSummary) error {
	if len(windows) == 0 {
		return fmt.Errorf("pre-event chart: no windows")
	}

	cols := 2
	rows := (len(analysis.Features) + cols - 1) / cols
	dc := gg.NewContext(cols*chartPanelW, rows*chartPanelH)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for i, feature := range analysis.Features {
		x0 := float64((i % cols) * chartPanelW)
		y0 := float64((i / cols) * chartPanelH)
		traces := make([][]float64, 0, len(windows))
		for _, ws := range windows {
			if i < len(ws.Traces) {
				traces = append(traces, ws.Traces[i])
			}
		}
		drawTraces(dc, x0, y0, feature+" before increase", traces)
	}
	return dc.EncodePNG(w)
}

// WritePreEventChart renders the pre-event chart to path.
func WritePreEventChart(path string, windows []*analysis.WindowSummary) error {
	var buf bytes.Buffer
	if err := RenderPreEventChart(&buf, windows); err != nil {
		return err
	}
	return flatfile.WriteBytes(path, buf.Bytes())
}

func drawTraces(dc *gg.Context, x0, y0 float64, title string, traces [][]float64) {
	left := x0 + chartMargin
	right := x0 + chartPanelW - chartMargin/2
	top := y0 + chartMargin
	bottom := y0 + chartPanelH - chartMargin

	lo, hi := 0.0, 0.0
	longest := 1
	for _, tr := range traces {
		longest = max(longest, len(tr))
		for _, v := range tr {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if hi == lo {
		hi = lo + 1
	}
	yOf := func(v float64) float64 {
		return bottom - (v-lo)/(hi-lo)*(bottom-top)
	}
	xOf := func(i int) float64 {
		if longest == 1 {
			return left
		}
		return left + float64(i)/float64(longest-1)*(right-left)
	}

	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(title, x0+chartPanelW/2, y0+chartMargin/2, 0.5, 0.5)
	dc.SetLineWidth(1)
	dc.DrawLine(left, top, left, bottom)
	dc.DrawLine(left, bottom, right, bottom)
	dc.Stroke()
	dc.DrawStringAnchored(fmt.Sprintf("%.2f", hi), left-4, top, 1, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("%.2f", lo), left-4, bottom, 1, 0.5)

	// Traces are right-aligned so every window ends at the event start.
	dc.SetRGBA(0.25, 0.45, 0.75, 0.6)
	for _, tr := range traces {
		offset := longest - len(tr)
		for j, v := range tr {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			x, y := xOf(offset+j), yOf(v)
			if j == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.Stroke()
	}
}

// RenderEvaluationChart draws the confusion matrix next to the ROC curve
// and writes the PNG to w.
func RenderEvaluationChart(w io.Writer, ev *metrics.Evaluation) error {
	if ev == nil {
		return fmt.Errorf("evaluation chart: no evaluation")
	}

	dc := gg.NewContext(2*chartPanelW, chartPanelH)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	drawConfusion(dc, 0, 0, ev.Confusion)
	drawROC(dc, chartPanelW, 0, ev)
	return dc.EncodePNG(w)
}

// WriteEvaluationChart renders the evaluation chart to path.
func WriteEvaluationChart(path string, ev *metrics.Evaluation) error {
	var buf bytes.Buffer
	if err := RenderEvaluationChart(&buf, ev); err != nil {
		return err
	}
	return flatfile.WriteBytes(path, buf.Bytes())
}

func drawConfusion(dc *gg.Context, x0, y0 float64, cm metrics.ConfusionMatrix) {
	cells := [2][2]int{{cm.TN, cm.FP}, {cm.FN, cm.TP}}
	peak := max(cm.TN, cm.FP, cm.FN, cm.TP, 1)

	size := math.Min(chartPanelW, chartPanelH) - 2*chartMargin
	cell := size / 2
	left := x0 + (chartPanelW-size)/2
	top := y0 + chartMargin

	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored("Confusion matrix", x0+chartPanelW/2, y0+chartMargin/2, 0.5, 0.5)
	for actual := 0; actual < 2; actual++ {
		for pred := 0; pred < 2; pred++ {
			n := cells[actual][pred]
			shade := 1 - 0.7*float64(n)/float64(peak)
			x := left + float64(pred)*cell
			y := top + float64(actual)*cell
			dc.SetRGB(shade, shade, 1)
			dc.DrawRectangle(x, y, cell, cell)
			dc.Fill()
			dc.SetRGB(0, 0, 0)
			dc.DrawRectangle(x, y, cell, cell)
			dc.Stroke()
			dc.DrawStringAnchored(fmt.Sprintf("%d", n), x+cell/2, y+cell/2, 0.5, 0.5)
		}
	}
	dc.DrawStringAnchored("predicted", left+size/2, top+size+12, 0.5, 0.5)
	dc.DrawStringAnchored("actual", left-8, top+size/2, 1, 0.5)
}

func drawROC(dc *gg.Context, x0, y0 float64, ev *metrics.Evaluation) {
	left := x0 + chartMargin
	right := x0 + chartPanelW - chartMargin/2
	top := y0 + chartMargin
	bottom := y0 + chartPanelH - chartMargin
	xOf := func(v float64) float64 { return left + v*(right-left) }
	yOf := func(v float64) float64 { return bottom - v*(bottom-top) }

	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(fmt.Sprintf("ROC (AUC = %.4f)", ev.ROCAUC), x0+chartPanelW/2, y0+chartMargin/2, 0.5, 0.5)
	dc.SetLineWidth(1)
	dc.DrawRectangle(left, top, right-left, bottom-top)
	dc.Stroke()

	dc.SetDash(4, 4)
	dc.DrawLine(xOf(0), yOf(0), xOf(1), yOf(1))
	dc.Stroke()
	dc.SetDash()

	if len(ev.FPR) == 0 || len(ev.FPR) != len(ev.TPR) {
		return
	}
	dc.SetRGB(0.8, 0.3, 0.2)
	dc.SetLineWidth(2)
	dc.MoveTo(xOf(ev.FPR[0]), yOf(ev.TPR[0]))
	for i := 1; i < len(ev.FPR); i++ {
		dc.LineTo(xOf(ev.FPR[i]), yOf(ev.TPR[i]))
	}
	dc.Stroke()
}
