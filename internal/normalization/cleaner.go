// Package normalization turns raw API candles into clean, ordered series.
package normalization

import (
	"math"
	"strconv"
	"strings"

	"solana-surge-lab/internal/domain"
)

// msThreshold separates second and millisecond timestamps.
// Second-based timestamps stay below it until year 33658.
const msThreshold = 1e12

// CleanStats counts rows removed at each cleaning step.
type CleanStats struct {
	Input         int
	Duplicates    int // exact duplicate raw rows
	Missing       int // a required field was empty
	BadTimestamp  int // timestamp not parseable
	NonPositive   int // close <= 0 after coercion
	Collapsed     int // repeated (address, timestamp) replaced by a later row
	CoercedValues int // numeric fields that failed to parse and became 0
	Output        int
}

// Clean deduplicates, drops incomplete rows, coerces numerics and sorts.
// See CleanWithStats.
func Clean(raw []*domain.RawCandle) []*domain.Candle {
	out, _ := CleanWithStats(raw)
	return out
}

// CleanWithStats applies the cleaning steps in order:
//  1. Remove exact duplicate raw rows (first occurrence kept)
//  2. Drop rows missing address, timestamp or any OHLCV field
//  3. Parse timestamp (drop if unparsable), coerce OHLCV (unparsable -> 0)
//  4. Discard rows with close <= 0
//  5. Stable sort by (address, timestamp)
//  6. Collapse duplicate (address, timestamp), keeping the last occurrence
//
// Input is never mutated. The result is a new slice of new candles.
func CleanWithStats(raw []*domain.RawCandle) ([]*domain.Candle, CleanStats) {
	stats := CleanStats{Input: len(raw)}
	if len(raw) == 0 {
		return nil, stats
	}

	seen := make(map[domain.RawCandle]struct{}, len(raw))
	candles := make([]*domain.Candle, 0, len(raw))

	for _, r := range raw {
		if r == nil {
			stats.Missing++
			continue
		}
		if _, dup := seen[*r]; dup {
			stats.Duplicates++
			continue
		}
		seen[*r] = struct{}{}

		if hasMissingField(r) {
			stats.Missing++
			continue
		}

		ts, ok := parseTimestamp(r.Timestamp)
		if !ok {
			stats.BadTimestamp++
			continue
		}

		c := &domain.Candle{
			Address:     strings.TrimSpace(r.Address),
			TimestampMs: ts,
		}
		c.Open = coerce(r.Open, &stats)
		c.High = coerce(r.High, &stats)
		c.Low = coerce(r.Low, &stats)
		c.Close = coerce(r.Close, &stats)
		c.Volume = coerce(r.Volume, &stats)

		if c.Close <= 0 {
			stats.NonPositive++
			continue
		}
		candles = append(candles, c)
	}

	SortCandles(candles)

	out := make([]*domain.Candle, 0, len(candles))
	for _, c := range candles {
		if n := len(out); n > 0 && out[n-1].Address == c.Address && out[n-1].TimestampMs == c.TimestampMs {
			out[n-1] = c
			stats.Collapsed++
			continue
		}
		out = append(out, c)
	}

	stats.Output = len(out)
	return out, stats
}

func hasMissingField(r *domain.RawCandle) bool {
	for _, v := range []string{r.Address, r.Timestamp, r.Open, r.High, r.Low, r.Close, r.Volume} {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

// parseTimestamp accepts unix seconds or milliseconds, integer or decimal.
func parseTimestamp(s string) (int64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	if v >= msThreshold {
		return int64(v), true
	}
	return int64(v * 1000), true
}

func coerce(s string, stats *CleanStats) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		stats.CoercedValues++
		return 0
	}
	return v
}
