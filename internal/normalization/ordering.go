package normalization

import (
	"sort"

	"solana-surge-lab/internal/domain"
)

// SortCandles orders candles by (address ASC, timestamp ASC).
// The sort is stable so equal keys keep input order.
func SortCandles(candles []*domain.Candle) {
	sort.SliceStable(candles, func(i, j int) bool {
		return compareCandles(candles[i], candles[j]) < 0
	})
}

// compareCandles returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareCandles(a, b *domain.Candle) int {
	if a.Address != b.Address {
		if a.Address < b.Address {
			return -1
		}
		return 1
	}
	if a.TimestampMs != b.TimestampMs {
		if a.TimestampMs < b.TimestampMs {
			return -1
		}
		return 1
	}
	return 0
}

// IsOrdered reports whether candles are strictly increasing by
// (address, timestamp), i.e. sorted with no duplicate timestamps per token.
func IsOrdered(candles []*domain.Candle) bool {
	for i := 1; i < len(candles); i++ {
		if compareCandles(candles[i-1], candles[i]) >= 0 {
			return false
		}
	}
	return true
}

// Series is one token's ordered candles.
type Series struct {
	Address string
	Candles []*domain.Candle
}

// GroupByAddress splits candles per token, preserving first-seen token order
// and the relative order of candles within each token.
func GroupByAddress(candles []*domain.Candle) []Series {
	index := make(map[string]int)
	var out []Series
	for _, c := range candles {
		i, ok := index[c.Address]
		if !ok {
			i = len(out)
			index[c.Address] = i
			out = append(out, Series{Address: c.Address})
		}
		out[i].Candles = append(out[i].Candles, c)
	}
	return out
}
