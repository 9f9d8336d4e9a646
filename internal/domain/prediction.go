package domain

// Prediction is the classifier output for the latest fully-featured row of a token.
type Prediction struct {
	RunID       string  // prediction run identifier
	Address     string  // token address
	Name        string  // token name (may be empty)
	Symbol      string  // token symbol (may be empty)
	TimestampMs int64   // timestamp of the scored row
	Probability float64 // P(surge)
	Positive    bool    // Probability >= decision threshold
}

// DisplayName returns the best human-readable name for the token.
func (p *Prediction) DisplayName() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.Symbol != "":
		return p.Symbol
	default:
		return p.Address
	}
}
