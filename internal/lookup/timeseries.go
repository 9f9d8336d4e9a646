package lookup

import (
	"errors"
	"sort"

	"solana-surge-lab/internal/domain"
)

// Errors returned by lookup functions.
var (
	ErrNoPriceData = errors.New("no price data available")
)

// CloseAt returns the close at or before target timestamp.
// If no candle is at or before target, returns the first available close.
// Returns ErrNoPriceData if slice is empty.
// Candles must be sorted by timestamp.
func CloseAt(target int64, candles []*domain.Candle) (float64, error) {
	if len(candles) == 0 {
		return 0, ErrNoPriceData
	}

	i := IndexAtOrBefore(target, candles)
	if i < 0 {
		return candles[0].Close, nil
	}
	return candles[i].Close, nil
}

// IndexAtOrBefore returns the index of the last candle with timestamp <= target,
// or -1 when every candle is after target.
func IndexAtOrBefore(target int64, candles []*domain.Candle) int {
	// First index with timestamp > target.
	j := sort.Search(len(candles), func(k int) bool {
		return candles[k].TimestampMs > target
	})
	return j - 1
}

// WindowEnd returns the exclusive end index of the window that starts at
// candles[start] and spans windowMs: every candle in [start, end) has
// timestamp <= candles[start].TimestampMs + windowMs.
// Candles must be sorted by timestamp; start must be a valid index.
func WindowEnd(candles []*domain.Candle, start int, windowMs int64) int {
	limit := candles[start].TimestampMs + windowMs
	return start + sort.Search(len(candles)-start, func(k int) bool {
		return candles[start+k].TimestampMs > limit
	})
}
