package detector

import (
	"fmt"
	"time"

	"solana-surge-lab/internal/domain"
	"solana-surge-lab/internal/normalization"
)

// WindowResult holds the events found for one window size and a summary.
type WindowResult struct {
	Window         time.Duration
	Events         []*domain.Event
	Tokens         int     // tokens with at least one event
	MeanFactor     float64 // mean increase factor, 0 without events
	MaxFactor      float64
	MeanDurationMs float64 // mean start-to-peak time
}

// CompareWindows scans every series independently for each window size.
// Results keep the order of windows; events keep series order.
func CompareWindows(series []normalization.Series, windows []time.Duration, factor, minVolume float64) ([]*WindowResult, error) {
	results := make([]*WindowResult, 0, len(windows))
	for _, window := range windows {
		scanner, err := NewWindowScanner(WindowOptions{
			Factor:    factor,
			WindowMs:  window.Milliseconds(),
			MinVolume: minVolume,
		})
		if err != nil {
			return nil, fmt.Errorf("window %s: %w", window, err)
		}

		res := &WindowResult{Window: window}
		for _, s := range series {
			events := scanner.Scan(s.Candles)
			if len(events) > 0 {
				res.Tokens++
			}
			res.Events = append(res.Events, events...)
		}
		summarize(res)
		results = append(results, res)
	}
	return results, nil
}

func summarize(res *WindowResult) {
	if len(res.Events) == 0 {
		return
	}
	var sumFactor, sumDuration float64
	for _, e := range res.Events {
		sumFactor += e.IncreaseFactor
		sumDuration += float64(e.DurationMs())
		if e.IncreaseFactor > res.MaxFactor {
			res.MaxFactor = e.IncreaseFactor
		}
	}
	n := float64(len(res.Events))
	res.MeanFactor = sumFactor / n
	res.MeanDurationMs = sumDuration / n
}

// PreEventWindow is the feature history leading up to one event.
type PreEventWindow struct {
	Event *domain.Event
	// Rows are up to lookback feature rows ending at the event start row.
	Rows []*domain.FeatureRow
	// History is the token's candles up to and including the start row,
	// for time-based lookbacks.
	History []*domain.Candle
}

// PreEventWindows pairs each event of one token with the lookback rows
// ending at its start row. candles and rows must be aligned one-to-one
// and ordered by timestamp. Events whose start row is missing are dropped.
func PreEventWindows(events []*domain.Event, candles []*domain.Candle, rows []*domain.FeatureRow, lookback int) []*PreEventWindow {
	if len(candles) != len(rows) || lookback < 1 {
		return nil
	}

	index := make(map[int64]int, len(rows))
	for i, r := range rows {
		index[r.TimestampMs] = i
	}

	var out []*PreEventWindow
	for _, e := range events {
		i, ok := index[e.StartTimeMs]
		if !ok {
			continue
		}
		from := i - lookback + 1
		if from < 0 {
			from = 0
		}
		out = append(out, &PreEventWindow{
			Event:   e,
			Rows:    rows[from : i+1],
			History: candles[:i+1],
		})
	}
	return out
}
