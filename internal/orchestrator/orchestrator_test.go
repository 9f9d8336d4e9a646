package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"solana-surge-lab/internal/detector"
	"solana-surge-lab/internal/domain"
	"solana-surge-lab/internal/features"
	"solana-surge-lab/internal/model"
	"solana-surge-lab/internal/reporting"
	"solana-surge-lab/internal/storage/memory"
)

var baseTime = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// surge returns 60 one-minute rows: flat at 1, a linear climb to peak over
// rows 30-39, then flat at peak.
func surge(addr string, peak float64) []*domain.RawCandle {
	out := make([]*domain.RawCandle, 0, 60)
	for i := 0; i < 60; i++ {
		c := 1.0
		switch {
		case i >= 40:
			c = peak
		case i >= 30:
			c = 1 + (peak-1)*float64(i-29)/10
		}
		out = append(out, rawRow(addr, i, c))
	}
	return out
}

func flat(addr string, n int) []*domain.RawCandle {
	out := make([]*domain.RawCandle, n)
	for i := range out {
		out[i] = rawRow(addr, i, 1)
	}
	return out
}

func rawRow(addr string, i int, c float64) *domain.RawCandle {
	ts := baseTime.Add(time.Duration(i) * time.Minute).Unix()
	p := strconv.FormatFloat(c, 'g', -1, 64)
	return &domain.RawCandle{
		Address:   addr,
		Timestamp: strconv.FormatInt(ts, 10),
		Open:      p,
		High:      p,
		Low:       p,
		Close:     p,
		Volume:    strconv.Itoa(100 + i),
	}
}

func newTestOrchestrator(t *testing.T, dir string) *Orchestrator {
	t.Helper()
	policy, err := detector.NewForwardLabeler(5, 15)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	params := model.DefaultParams()
	params.NEstimators = 20

	orch, err := New(Options{
		CandleStore: memory.NewCandleStore(),
		EventStore:  memory.NewEventStore(),
		Engineer:    features.MustDefault(),
		Policy:      policy,
		Params:      params,
		Seed:        42,
		Scale:       true,
		Windows:     []time.Duration{5 * time.Minute, 15 * time.Minute},
		EventFactor: 5,
		Lookback:    5,
		Clusters:    2,
		ModelPath:   filepath.Join(dir, "models", "model.json"),
		ScalerPath:  filepath.Join(dir, "models", "scaler.json"),
		EventsDir:   filepath.Join(dir, "events"),
		ChartsDir:   filepath.Join(dir, "charts"),
		Now:         func() time.Time { return baseTime.Add(24 * time.Hour) },
		Logger:      zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return orch
}

func loadTestData(t *testing.T, orch *Orchestrator) {
	t.Helper()
	var raw []*domain.RawCandle
	raw = append(raw, surge("tokA", 5)...)
	raw = append(raw, surge("tokB", 6)...)
	raw = append(raw, surge("tokC", 8)...)
	raw = append(raw, flat("tokShort", 10)...)
	if _, err := orch.Load(context.Background(), raw); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestOrchestrator_New_MissingDependency(t *testing.T) {
	_, err := New(Options{})
	if !errors.Is(err, ErrMissingDependency) {
		t.Fatalf("expected ErrMissingDependency, got %v", err)
	}
}

func TestOrchestrator_Train(t *testing.T) {
	dir := t.TempDir()
	orch := newTestOrchestrator(t, dir)
	loadTestData(t, orch)

	res, err := orch.Train(context.Background())
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	if len(res.Results) != 4 {
		t.Fatalf("expected 4 token results, got %d", len(res.Results))
	}
	if res.Summary.OK != 3 || res.Summary.Skipped != 1 {
		t.Errorf("expected 3 ok / 1 skipped, got %+v", res.Summary)
	}
	short := res.Results[3]
	if short.Address != "tokShort" || short.Reason != domain.ReasonInsufficientData {
		t.Errorf("unexpected short token result: %+v", short)
	}

	// 60 rows per token minus the warm-up rows.
	warmup := features.MustDefault().Warmup()
	if want := 3 * (60 - warmup); res.Dataset != want {
		t.Errorf("expected %d dataset rows, got %d", want, res.Dataset)
	}
	if res.Positives == 0 || res.Positives == res.Dataset {
		t.Errorf("expected both classes, got %d positives of %d", res.Positives, res.Dataset)
	}

	if res.Evaluation == nil {
		t.Fatal("expected evaluation")
	}
	if res.Evaluation.Samples != res.TestRows {
		t.Errorf("evaluation samples %d != test rows %d", res.Evaluation.Samples, res.TestRows)
	}
	if res.TrainRows+res.TestRows < res.Dataset {
		t.Errorf("oversampled train rows %d + test rows %d below dataset %d", res.TrainRows, res.TestRows, res.Dataset)
	}

	loaded, err := model.LoadArtifact(filepath.Join(dir, "models", "model.json"))
	if err != nil {
		t.Fatalf("load artifact: %v", err)
	}
	if !loaded.Scaled || loaded.RunID != res.RunID {
		t.Errorf("unexpected artifact header: scaled=%v run=%s", loaded.Scaled, loaded.RunID)
	}
	eng := features.MustDefault()
	if err := loaded.CheckFeatures(eng.Version(), eng.Columns()); err != nil {
		t.Errorf("artifact features: %v", err)
	}
	if _, err := model.LoadScaler(filepath.Join(dir, "models", "scaler.json")); err != nil {
		t.Errorf("load scaler: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "charts", "model_evaluation.png")); err != nil {
		t.Errorf("evaluation chart not written: %v (errors %v)", err, res.Errors)
	}
}

func TestOrchestrator_Train_NoData(t *testing.T) {
	orch := newTestOrchestrator(t, t.TempDir())
	if _, err := orch.Load(context.Background(), flat("tokShort", 10)); err != nil {
		t.Fatalf("load: %v", err)
	}

	res, err := orch.Train(context.Background())
	if !errors.Is(err, ErrNoTrainingData) {
		t.Fatalf("expected ErrNoTrainingData, got %v", err)
	}
	if res.Summary.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %+v", res.Summary)
	}
}

func TestOrchestrator_Events(t *testing.T) {
	dir := t.TempDir()
	orch := newTestOrchestrator(t, dir)
	loadTestData(t, orch)

	res, err := orch.Events(context.Background())
	if err != nil {
		t.Fatalf("events: %v", err)
	}

	if len(res.Windows) != 2 {
		t.Fatalf("expected 2 window results, got %d", len(res.Windows))
	}
	w15 := res.Windows[1]
	if w15.Tokens != 3 {
		t.Errorf("expected events for 3 tokens in the 15m window, got %d", w15.Tokens)
	}
	for _, e := range w15.Events {
		if e.IncreaseFactor < 5 {
			t.Errorf("event %s below factor: %v", e.EventID, e.IncreaseFactor)
		}
	}

	stored, err := orch.opts.EventStore.GetByWindow(context.Background(), (15 * time.Minute).Milliseconds())
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	if len(stored) != len(w15.Events) {
		t.Errorf("stored %d events, scanned %d", len(stored), len(w15.Events))
	}

	if len(res.Files) != 2 {
		t.Fatalf("expected 2 csv files, got %v", res.Files)
	}
	data, err := os.ReadFile(filepath.Join(dir, "events", "events_15m.csv"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !strings.HasPrefix(string(data), reporting.EventsCSVHeader) {
		t.Errorf("csv missing header: %q", string(data))
	}
	if lines := strings.Count(string(data), "\n"); lines != len(w15.Events)+1 {
		t.Errorf("expected %d csv lines, got %d", len(w15.Events)+1, lines)
	}

	if res.Analysis == nil {
		t.Fatal("expected pattern analysis")
	}
	total := 0
	for _, c := range res.Analysis.Clusters {
		total += c.Size
	}
	if total != len(res.Analysis.Windows) {
		t.Errorf("clusters cover %d of %d windows", total, len(res.Analysis.Windows))
	}
	if res.ChartPath == "" {
		t.Fatalf("expected chart, errors: %v", res.Errors)
	}
	if _, err := os.Stat(res.ChartPath); err != nil {
		t.Errorf("chart not written: %v", err)
	}
	if res.TracePath == "" {
		t.Fatalf("expected pre-event chart, errors: %v", res.Errors)
	}
	if _, err := os.Stat(res.TracePath); err != nil {
		t.Errorf("pre-event chart not written: %v", err)
	}
}

func TestOrchestrator_Events_NoEvents(t *testing.T) {
	orch := newTestOrchestrator(t, t.TempDir())
	if _, err := orch.Load(context.Background(), flat("tokFlat", 40)); err != nil {
		t.Fatalf("load: %v", err)
	}

	res, err := orch.Events(context.Background())
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if res.Analysis != nil {
		t.Error("expected no analysis without events")
	}
	for _, w := range res.Windows {
		if len(w.Events) != 0 {
			t.Errorf("unexpected events in %s window", w.Window)
		}
	}
}

func TestOrchestrator_Report(t *testing.T) {
	orch := newTestOrchestrator(t, t.TempDir())
	loadTestData(t, orch)
	ctx := context.Background()

	tr, err := orch.Train(ctx)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	er, err := orch.Events(ctx)
	if err != nil {
		t.Fatalf("events: %v", err)
	}

	collection := []*domain.TokenResult{domain.OK("tokA", 60), domain.Failed("tokX", errors.New("http 500"))}
	r, err := orch.Report(ctx, collection, tr, er)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if r.RunID != tr.RunID {
		t.Errorf("expected run id %s, got %s", tr.RunID, r.RunID)
	}
	if r.DataSummary.Tokens != 4 || r.DataSummary.Candles != 190 {
		t.Errorf("unexpected data summary: %+v", r.DataSummary)
	}
	if len(r.Windows) != 2 {
		t.Errorf("expected 2 window rows, got %d", len(r.Windows))
	}
	if len(r.Problems) != 2 {
		t.Errorf("expected failed collect + skipped train problems, got %+v", r.Problems)
	}

	md := reporting.RenderMarkdown(r)
	if !strings.Contains(md, "# Surge Model Report") {
		t.Error("markdown missing title")
	}
}
