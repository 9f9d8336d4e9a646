package domain

// ResultStatus represents the outcome of processing one token.
type ResultStatus string

const (
	ResultOK      ResultStatus = "OK"
	ResultSkipped ResultStatus = "SKIPPED"
	ResultFailed  ResultStatus = "FAILED"
)

// String returns the string representation of ResultStatus.
func (s ResultStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s ResultStatus) IsValid() bool {
	return s == ResultOK || s == ResultSkipped || s == ResultFailed
}

// Skip reasons shared across per-token loops.
const (
	ReasonNoData           = "no data"
	ReasonInsufficientData = "insufficient data"
	ReasonMissingFeatures  = "missing features"
)

// TokenResult is the per-token outcome of a sequential token loop.
// Reason is empty for OK results.
type TokenResult struct {
	Address string
	Status  ResultStatus
	Reason  string
	Rows    int // rows produced for this token (0 unless OK)
}

// OK creates a successful result.
func OK(address string, rows int) *TokenResult {
	return &TokenResult{Address: address, Status: ResultOK, Rows: rows}
}

// Skipped creates a skipped result.
func Skipped(address, reason string) *TokenResult {
	return &TokenResult{Address: address, Status: ResultSkipped, Reason: reason}
}

// Failed creates a failed result from an error.
func Failed(address string, err error) *TokenResult {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return &TokenResult{Address: address, Status: ResultFailed, Reason: reason}
}

// ResultSummary counts results by status.
type ResultSummary struct {
	OK      int
	Skipped int
	Failed  int
	Rows    int
}

// Summarize aggregates per-token results.
func Summarize(results []*TokenResult) ResultSummary {
	var s ResultSummary
	for _, r := range results {
		switch r.Status {
		case ResultOK:
			s.OK++
			s.Rows += r.Rows
		case ResultSkipped:
			s.Skipped++
		case ResultFailed:
			s.Failed++
		}
	}
	return s
}
