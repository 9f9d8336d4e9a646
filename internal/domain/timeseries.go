package domain

// RawCandle is a candle exactly as received from the market-data API.
// Values keep their textual form (JSON number literal or string) so the
// cleaner can decide how to coerce them. Empty string means missing.
type RawCandle struct {
	Address   string // token address
	Timestamp string // unix seconds
	Open      string
	High      string
	Low       string
	Close     string
	Volume    string
}

// Candle is a cleaned OHLCV record for one sampling interval of one token.
type Candle struct {
	Address     string  // token address
	TimestampMs int64   // interval start, Unix ms
	Open        float64 // open price
	High        float64 // high price
	Low         float64 // low price
	Close       float64 // close price, always > 0 after cleaning
	Volume      float64 // traded volume in interval
}

// Supported candle intervals.
const (
	Interval1Min  = "1m"
	Interval5Min  = "5m"
	Interval15Min = "15m"
	Interval1Hour = "1H"
)

// IntervalSeconds maps a candle interval to its length in seconds.
// Returns 0 for unknown intervals.
func IntervalSeconds(interval string) int64 {
	switch interval {
	case Interval1Min:
		return 60
	case Interval5Min:
		return 300
	case Interval15Min:
		return 900
	case Interval1Hour:
		return 3600
	default:
		return 0
	}
}
