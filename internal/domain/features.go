package domain

// FeatureRow is a candle augmented with derived numeric columns.
// Values is aligned with the column list of the engineer that produced it.
type FeatureRow struct {
	Address     string    // token address
	TimestampMs int64     // Unix timestamp in milliseconds
	Close       float64   // close price of the source candle
	Volume      float64   // volume of the source candle
	Values      []float64 // derived features, warm-up values are 0
	Complete    bool      // false while any trailing window is still warming up
}
