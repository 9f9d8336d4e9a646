// Package orchestrator coordinates the offline runs.
// Training: stored candles → features + labels → dataset → split → balance
// → fit → evaluate → artifact.
// Events: stored candles → window scan per size → CSV exports → pre-event
// windows → pattern analysis → chart.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"solana-surge-lab/internal/analysis"
	"solana-surge-lab/internal/detector"
	"solana-surge-lab/internal/domain"
	"solana-surge-lab/internal/features"
	"solana-surge-lab/internal/metrics"
	"solana-surge-lab/internal/model"
	"solana-surge-lab/internal/normalization"
	"solana-surge-lab/internal/observability"
	"solana-surge-lab/internal/reporting"
	"solana-surge-lab/internal/storage"
	"solana-surge-lab/internal/storage/flatfile"
)

var (
	// ErrNoTrainingData is returned when no token contributed a complete row.
	ErrNoTrainingData = errors.New("no complete feature rows to train on")

	// ErrMissingDependency is returned when a required store, engineer or
	// policy is not configured.
	ErrMissingDependency = errors.New("orchestrator: missing dependency")
)

const (
	stageTrain  = "train"
	stageEvents = "events"
)

// Options for creating an Orchestrator.
type Options struct {
	// Required
	CandleStore storage.CandleStore
	EventStore  storage.EventStore
	Engineer    features.Engineer
	Policy      detector.Policy

	// Training
	Params    model.Params
	Balance   string // model.BalanceOversample, model.BalanceWeight or model.BalanceNone
	TestSize  float64
	Seed      int64
	Threshold float64
	MinRows   int
	Scale     bool

	// Event scan and analysis
	Windows     []time.Duration
	EventFactor float64
	MinVolume   float64
	Lookback    int
	Clusters    int

	// Output paths. Empty paths skip the write.
	ModelPath  string
	ScalerPath string
	EventsDir  string
	ChartsDir  string

	Now     func() time.Time
	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// Orchestrator coordinates offline runs over the candle store.
type Orchestrator struct {
	opts Options
}

// New creates a new Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.CandleStore == nil || opts.EventStore == nil || opts.Engineer == nil || opts.Policy == nil {
		return nil, ErrMissingDependency
	}
	if opts.Balance == "" {
		opts.Balance = model.BalanceOversample
	}
	if opts.TestSize <= 0 {
		opts.TestSize = 0.2
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 0.5
	}
	if opts.MinRows <= 0 {
		opts.MinRows = 20
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 15
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{opts: opts}, nil
}

// Load cleans raw rows and adds them to the candle store.
func (o *Orchestrator) Load(ctx context.Context, raw []*domain.RawCandle) (normalization.CleanStats, error) {
	candles, stats := normalization.CleanWithStats(raw)
	if err := o.opts.CandleStore.InsertBulk(ctx, candles); err != nil {
		return stats, fmt.Errorf("store candles: %w", err)
	}
	o.opts.Logger.Info().
		Int("raw", len(raw)).
		Int("candles", len(candles)).
		Msg("candles loaded")
	return stats, nil
}

// TrainResult contains results from a training run.
type TrainResult struct {
	RunID      string
	Results    []*domain.TokenResult
	Summary    domain.ResultSummary
	Dataset    int
	Positives  int
	TrainRows  int // after balancing
	TestRows   int
	Evaluation *metrics.Evaluation
	Artifact   *model.Artifact
	Scaler     *model.StandardScaler
	ChartPath  string // confusion matrix and ROC curve
	Errors     []string
}

// Train builds a labeled dataset from every stored token, fits the
// classifier on a stratified training split and evaluates it on the
// held-out split.
func (o *Orchestrator) Train(ctx context.Context) (*TrainResult, error) {
	start := time.Now()
	res, err := o.train(ctx)
	status := "success"
	if err != nil {
		status = "error"
	}
	o.opts.Metrics.RecordRun(stageTrain, status, time.Since(start))
	return res, err
}

func (o *Orchestrator) train(ctx context.Context) (*TrainResult, error) {
	res := &TrainResult{RunID: uuid.NewString()}
	log := o.opts.Logger.With().Str("run_id", res.RunID).Logger()

	// Phase 1: per-token dataset
	log.Info().Str("policy", o.opts.Policy.Name()).Msg("Phase 1: building dataset")
	ds, err := o.buildDataset(ctx, res)
	if err != nil {
		return res, err
	}
	res.Dataset = ds.Len()
	res.Positives = ds.Positives()
	log.Info().
		Int("rows", res.Dataset).
		Int("positives", res.Positives).
		Int("ok", res.Summary.OK).
		Int("skipped", res.Summary.Skipped).
		Msg("dataset built")
	if ds.Len() == 0 {
		return res, ErrNoTrainingData
	}
	if ds.Positives() == 0 || ds.Positives() == ds.Len() {
		res.Errors = append(res.Errors, "dataset has a single class")
		log.Warn().Msg("dataset has a single class")
	}

	// Phase 2: split, scale, balance
	train, test, err := model.StratifiedSplit(ds, o.opts.TestSize, o.opts.Seed)
	if err != nil {
		return res, fmt.Errorf("split: %w", err)
	}
	if o.opts.Scale {
		if res.Scaler, err = model.FitScaler(train.X); err != nil {
			return res, fmt.Errorf("fit scaler: %w", err)
		}
		if train.X, err = res.Scaler.TransformAll(train.X); err != nil {
			return res, err
		}
		if test.X, err = res.Scaler.TransformAll(test.X); err != nil {
			return res, err
		}
	}

	var weights []float64
	switch o.opts.Balance {
	case model.BalanceOversample:
		train = model.RandomOverSample(train, o.opts.Seed)
	case model.BalanceWeight:
		weights = model.ClassWeights(train.Y)
	}
	res.TrainRows = train.Len()
	res.TestRows = test.Len()
	log.Info().
		Str("balance", o.opts.Balance).
		Int("train", res.TrainRows).
		Int("test", res.TestRows).
		Msg("Phase 2: split complete")

	// Phase 3: fit
	clf, err := model.NewClassifier(o.opts.Params)
	if err != nil {
		return res, err
	}
	if err := clf.Fit(train.X, train.Y, weights); err != nil {
		return res, fmt.Errorf("fit: %w", err)
	}
	log.Info().Int("trees", len(clf.Trees)).Msg("Phase 3: model fitted")

	// Phase 4: evaluate
	proba, err := clf.PredictProbaAll(test.X)
	if err != nil {
		return res, fmt.Errorf("score test split: %w", err)
	}
	res.Evaluation, err = metrics.Evaluate(test.Y, proba, o.opts.Threshold, test.Addresses)
	if err != nil {
		return res, fmt.Errorf("evaluate: %w", err)
	}
	o.opts.Metrics.RecordModel(res.Evaluation.Accuracy, res.Evaluation.ROCAUC)
	log.Info().
		Float64("accuracy", res.Evaluation.Accuracy).
		Float64("precision", res.Evaluation.Precision).
		Float64("recall", res.Evaluation.Recall).
		Float64("roc_auc", res.Evaluation.ROCAUC).
		Msg("Phase 4: evaluation complete")

	if o.opts.ChartsDir != "" {
		res.ChartPath = filepath.Join(o.opts.ChartsDir, "model_evaluation.png")
		if err := reporting.WriteEvaluationChart(res.ChartPath, res.Evaluation); err != nil {
			res.Errors = append(res.Errors, err.Error())
			res.ChartPath = ""
		}
	}

	// Phase 5: persist
	res.Artifact = &model.Artifact{
		RunID:          res.RunID,
		TrainedAt:      o.opts.Now().UTC(),
		FeatureVersion: o.opts.Engineer.Version(),
		Columns:        ds.Columns,
		Threshold:      o.opts.Threshold,
		Scaled:         res.Scaler != nil,
		Model:          clf,
	}
	if o.opts.ModelPath != "" {
		if err := model.SaveArtifact(o.opts.ModelPath, res.Artifact); err != nil {
			return res, err
		}
		log.Info().Str("path", o.opts.ModelPath).Msg("model saved")
	}
	if res.Scaler != nil && o.opts.ScalerPath != "" {
		if err := model.SaveScaler(o.opts.ScalerPath, res.Scaler); err != nil {
			return res, err
		}
	}
	return res, nil
}

// buildDataset labels every stored token. Tokens with too few candles or no
// complete rows are skipped.
func (o *Orchestrator) buildDataset(ctx context.Context, res *TrainResult) (*model.Dataset, error) {
	addresses, err := o.opts.CandleStore.Addresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}

	ds := model.NewDataset(o.opts.Engineer.Columns())
	for _, addr := range addresses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tr := o.labelToken(ctx, addr, ds)
		res.Results = append(res.Results, tr)
		o.opts.Metrics.RecordToken(stageTrain, tr.Status.String())
		if tr.Status == domain.ResultFailed {
			res.Errors = append(res.Errors, fmt.Sprintf("token %s: %s", addr, tr.Reason))
		}
	}
	res.Summary = domain.Summarize(res.Results)
	return ds, nil
}

func (o *Orchestrator) labelToken(ctx context.Context, addr string, ds *model.Dataset) *domain.TokenResult {
	candles, err := o.opts.CandleStore.GetByAddress(ctx, addr)
	if err != nil {
		return domain.Failed(addr, err)
	}
	if len(candles) < o.opts.MinRows {
		return domain.Skipped(addr, domain.ReasonInsufficientData)
	}

	rows := o.opts.Engineer.Compute(candles)
	labels := o.opts.Policy.Label(candles)

	var kept []*domain.FeatureRow
	var keptLabels []int
	for i, r := range rows {
		if r.Complete {
			kept = append(kept, r)
			keptLabels = append(keptLabels, labels[i])
		}
	}
	if len(kept) == 0 {
		return domain.Skipped(addr, domain.ReasonMissingFeatures)
	}
	if err := ds.Add(kept, keptLabels); err != nil {
		return domain.Failed(addr, err)
	}
	return domain.OK(addr, len(kept))
}

// EventsResult contains results from an event run.
type EventsResult struct {
	Windows   []*detector.WindowResult
	Files     []string
	Analysis  *analysis.Result
	ChartPath string // cluster characteristics
	TracePath string // pre-event window traces
	Errors    []string
}

// Events scans every stored token for each window size, stores and exports
// the events, and clusters the feature history that preceded them.
func (o *Orchestrator) Events(ctx context.Context) (*EventsResult, error) {
	start := time.Now()
	res, err := o.events(ctx)
	status := "success"
	if err != nil {
		status = "error"
	}
	o.opts.Metrics.RecordRun(stageEvents, status, time.Since(start))
	return res, err
}

func (o *Orchestrator) events(ctx context.Context) (*EventsResult, error) {
	res := &EventsResult{}
	log := o.opts.Logger

	series, err := o.loadSeries(ctx)
	if err != nil {
		return nil, err
	}

	// Phase 1: scan
	res.Windows, err = detector.CompareWindows(series, o.opts.Windows, o.opts.EventFactor, o.opts.MinVolume)
	if err != nil {
		return nil, fmt.Errorf("scan windows: %w", err)
	}
	for _, w := range res.Windows {
		if err := o.opts.EventStore.InsertBulk(ctx, w.Events); err != nil {
			return res, fmt.Errorf("store %s events: %w", w.Window, err)
		}
		o.opts.Metrics.RecordEvents(w.Window, len(w.Events))
		log.Info().
			Dur("window", w.Window).
			Int("events", len(w.Events)).
			Int("tokens", w.Tokens).
			Float64("mean_factor", w.MeanFactor).
			Msg("window scanned")

		if o.opts.EventsDir == "" {
			continue
		}
		path := filepath.Join(o.opts.EventsDir, reporting.EventsFileName(w.Window))
		if err := flatfile.WriteText(path, reporting.RenderEventsCSV(w.Events)); err != nil {
			return res, fmt.Errorf("export events: %w", err)
		}
		res.Files = append(res.Files, path)
	}

	// Phase 2: pre-event windows
	windows := o.preEventWindows(series, res.Windows)
	if len(windows) == 0 {
		log.Info().Msg("no events, skipping pattern analysis")
		return res, nil
	}

	// Phase 3: pattern analysis
	analyzer, err := analysis.NewAnalyzer(analysis.AnalyzerOptions{
		Clusters: o.opts.Clusters,
		Columns:  o.opts.Engineer.Columns(),
		Logger:   log,
	})
	if err != nil {
		return res, err
	}
	res.Analysis, err = analyzer.Analyze(windows)
	if err != nil {
		return res, fmt.Errorf("analyze: %w", err)
	}
	for _, p := range res.Analysis.Patterns {
		log.Info().Str("pattern", p).Msg("common pattern")
	}

	if o.opts.ChartsDir != "" {
		res.ChartPath = filepath.Join(o.opts.ChartsDir, "cluster_characteristics.png")
		if err := reporting.WriteClusterChart(res.ChartPath, res.Analysis.Clusters); err != nil {
			res.Errors = append(res.Errors, err.Error())
			res.ChartPath = ""
		}
		res.TracePath = filepath.Join(o.opts.ChartsDir, "pre_event_windows.png")
		if err := reporting.WritePreEventChart(res.TracePath, res.Analysis.Windows); err != nil {
			res.Errors = append(res.Errors, err.Error())
			res.TracePath = ""
		}
	}
	return res, nil
}

func (o *Orchestrator) loadSeries(ctx context.Context) ([]normalization.Series, error) {
	addresses, err := o.opts.CandleStore.Addresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	series := make([]normalization.Series, 0, len(addresses))
	for _, addr := range addresses {
		candles, err := o.opts.CandleStore.GetByAddress(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", addr, err)
		}
		o.opts.Metrics.RecordToken(stageEvents, domain.ResultOK.String())
		series = append(series, normalization.Series{Address: addr, Candles: candles})
	}
	return series, nil
}

// preEventWindows collects one window per distinct (token, start) across
// every window size.
func (o *Orchestrator) preEventWindows(series []normalization.Series, results []*detector.WindowResult) []*detector.PreEventWindow {
	type key struct {
		addr  string
		start int64
	}
	byToken := make(map[string][]*domain.Event)
	seen := make(map[key]struct{})
	for _, w := range results {
		for _, e := range w.Events {
			k := key{e.Address, e.StartTimeMs}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			byToken[e.Address] = append(byToken[e.Address], e)
		}
	}

	var out []*detector.PreEventWindow
	for _, s := range series {
		events := byToken[s.Address]
		if len(events) == 0 {
			continue
		}
		rows := o.opts.Engineer.Compute(s.Candles)
		out = append(out, detector.PreEventWindows(events, s.Candles, rows, o.opts.Lookback)...)
	}
	return out
}

// Report assembles the run report from the stores and the run results.
// Any of collection, tr and er may be nil.
func (o *Orchestrator) Report(ctx context.Context, collection []*domain.TokenResult, tr *TrainResult, er *EventsResult) (*reporting.Report, error) {
	in := reporting.RunInput{
		FeatureVersion: o.opts.Engineer.Version(),
		LabelPolicy:    o.opts.Policy.Name(),
		Collection:     collection,
	}
	if tr != nil {
		in.RunID = tr.RunID
		in.Training = tr.Results
		in.DatasetRows = tr.Dataset
		in.Positives = tr.Positives
		in.TrainRows = tr.TrainRows
		in.TestRows = tr.TestRows
		in.Evaluation = tr.Evaluation
	}
	if er != nil {
		in.Windows = o.opts.Windows
		if er.Analysis != nil {
			in.Patterns = er.Analysis.Patterns
		}
	}

	gen := reporting.NewGenerator(o.opts.CandleStore, o.opts.EventStore).
		WithClock(func() time.Time { return o.opts.Now().UTC() })
	return gen.Generate(ctx, in)
}
