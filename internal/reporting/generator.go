package reporting

import (
	"context"
	"sort"
	"time"

	"solana-surge-lab/internal/domain"
	"solana-surge-lab/internal/metrics"
	"solana-surge-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	candleStore storage.CandleStore
	eventStore  storage.EventStore
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. eventStore may be nil when
// no window scan ran.
func NewGenerator(candleStore storage.CandleStore, eventStore storage.EventStore) *Generator {
	return &Generator{
		candleStore: candleStore,
		eventStore:  eventStore,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// RunInput carries what a run computed outside the stores.
type RunInput struct {
	RunID          string
	FeatureVersion string
	LabelPolicy    string
	Collection     []*domain.TokenResult
	Training       []*domain.TokenResult
	DatasetRows    int
	Positives      int
	TrainRows      int
	TestRows       int
	Evaluation     *metrics.Evaluation
	Windows        []time.Duration
	Patterns       []string
}

// Generate produces a complete run report.
func (g *Generator) Generate(ctx context.Context, in RunInput) (*Report, error) {
	dataSummary, err := g.generateDataSummary(ctx)
	if err != nil {
		return nil, err
	}
	dataSummary.DatasetRows = in.DatasetRows
	dataSummary.Positives = in.Positives
	dataSummary.TrainRows = in.TrainRows
	dataSummary.TestRows = in.TestRows

	windows, err := g.generateWindows(ctx, in.Windows)
	if err != nil {
		return nil, err
	}

	problems := ProblemRows("collect", in.Collection)
	problems = append(problems, ProblemRows("train", in.Training)...)

	return &Report{
		GeneratedAt:    g.now(),
		RunID:          in.RunID,
		FeatureVersion: in.FeatureVersion,
		LabelPolicy:    in.LabelPolicy,
		DataSummary:    *dataSummary,
		Collection:     domain.Summarize(in.Collection),
		Training:       domain.Summarize(in.Training),
		Problems:       problems,
		Evaluation:     in.Evaluation,
		Windows:        windows,
		Patterns:       in.Patterns,
	}, nil
}

// generateDataSummary counts stored tokens and candles and finds the date range.
func (g *Generator) generateDataSummary(ctx context.Context) (*DataSummary, error) {
	addresses, err := g.candleStore.Addresses(ctx)
	if err != nil {
		return nil, err
	}

	summary := &DataSummary{Tokens: len(addresses)}
	for _, addr := range addresses {
		candles, err := g.candleStore.GetByAddress(ctx, addr)
		if err != nil {
			return nil, err
		}
		if len(candles) == 0 {
			continue
		}
		summary.Candles += len(candles)

		first, last := candles[0].TimestampMs, candles[len(candles)-1].TimestampMs
		if summary.DateRangeStart == 0 || first < summary.DateRangeStart {
			summary.DateRangeStart = first
		}
		if last > summary.DateRangeEnd {
			summary.DateRangeEnd = last
		}
	}
	return summary, nil
}

// generateWindows summarizes stored events per window size, sorted by size.
func (g *Generator) generateWindows(ctx context.Context, windows []time.Duration) ([]WindowRow, error) {
	if g.eventStore == nil || len(windows) == 0 {
		return nil, nil
	}

	sorted := make([]time.Duration, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rows := make([]WindowRow, 0, len(sorted))
	for _, w := range sorted {
		events, err := g.eventStore.GetByWindow(ctx, w.Milliseconds())
		if err != nil {
			return nil, err
		}
		rows = append(rows, windowRow(w, events))
	}
	return rows, nil
}

func windowRow(w time.Duration, events []*domain.Event) WindowRow {
	row := WindowRow{Window: w, Events: len(events)}
	if len(events) == 0 {
		return row
	}

	tokens := make(map[string]struct{})
	var sumFactor, sumDuration float64
	for _, e := range events {
		tokens[e.Address] = struct{}{}
		sumFactor += e.IncreaseFactor
		sumDuration += float64(e.DurationMs())
		if e.IncreaseFactor > row.MaxFactor {
			row.MaxFactor = e.IncreaseFactor
		}
	}
	n := float64(len(events))
	row.Tokens = len(tokens)
	row.MeanFactor = sumFactor / n
	row.MeanDurationMin = sumDuration / n / 60_000
	return row
}
