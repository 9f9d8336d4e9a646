package reporting

import (
	"time"

	"solana-surge-lab/internal/domain"
	"solana-surge-lab/internal/metrics"
)

// Report represents the training run report.
type Report struct {
	// Metadata
	GeneratedAt    time.Time
	RunID          string
	FeatureVersion string
	LabelPolicy    string

	// Data Summary
	DataSummary DataSummary

	// Per-token outcomes of the collection and training loops
	Collection domain.ResultSummary
	Training   domain.ResultSummary
	Problems   []TokenProblemRow

	// Held-out evaluation; nil when training did not run
	Evaluation *metrics.Evaluation

	// Window comparison (sorted by window size)
	Windows []WindowRow

	// Pattern analysis
	Patterns []string
}

// DataSummary contains data description.
type DataSummary struct {
	Tokens         int
	Candles        int
	DatasetRows    int
	Positives      int
	TrainRows      int
	TestRows       int
	DateRangeStart int64 // Unix ms
	DateRangeEnd   int64 // Unix ms
}

// TokenProblemRow lists a token that was skipped or failed.
type TokenProblemRow struct {
	Stage   string
	Address string
	Status  domain.ResultStatus
	Reason  string
}

// WindowRow summarizes the events of one window size.
type WindowRow struct {
	Window          time.Duration
	Events          int
	Tokens          int
	MeanFactor      float64
	MaxFactor       float64
	MeanDurationMin float64
}

// ProblemRows collects the non-OK results of one stage.
func ProblemRows(stage string, results []*domain.TokenResult) []TokenProblemRow {
	var rows []TokenProblemRow
	for _, r := range results {
		if r.Status == domain.ResultOK {
			continue
		}
		rows = append(rows, TokenProblemRow{Stage: stage, Address: r.Address, Status: r.Status, Reason: r.Reason})
	}
	return rows
}
