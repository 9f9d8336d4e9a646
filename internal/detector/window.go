package detector

import (
	"fmt"

	"solana-surge-lab/internal/domain"
	"solana-surge-lab/internal/idhash"
	"solana-surge-lab/internal/lookup"
)

// WindowOptions configures a WindowScanner.
type WindowOptions struct {
	Factor    float64 // max close must reach Factor x start close
	WindowMs  int64   // window length after the start row
	MinVolume float64 // floor on summed window volume
}

// WindowScanner records an event for every start row whose window
// [t, t+WindowMs] reaches Factor x the start close with enough volume.
type WindowScanner struct {
	opts WindowOptions
}

var _ Policy = (*WindowScanner)(nil)

// NewWindowScanner creates a window scanner.
func NewWindowScanner(opts WindowOptions) (*WindowScanner, error) {
	if opts.Factor <= 0 {
		return nil, fmt.Errorf("%w: factor %v", ErrInvalidOptions, opts.Factor)
	}
	if opts.WindowMs <= 0 {
		return nil, fmt.Errorf("%w: window %dms", ErrInvalidOptions, opts.WindowMs)
	}
	if opts.MinVolume < 0 {
		return nil, fmt.Errorf("%w: min volume %v", ErrInvalidOptions, opts.MinVolume)
	}
	return &WindowScanner{opts: opts}, nil
}

// Name implements Policy.
func (w *WindowScanner) Name() string { return PolicyWindow }

// WindowMs returns the scanned window length.
func (w *WindowScanner) WindowMs() int64 { return w.opts.WindowMs }

// Scan returns events for one token's candles ordered by timestamp.
//
// For each start row the window holds every row with
// timestamp <= start + WindowMs, the start row included:
//   - windows with fewer than 2 rows are skipped
//   - EndPrice is the maximum close, EndTimeMs its first timestamp
//   - TotalVolume sums volume over the whole window
func (w *WindowScanner) Scan(candles []*domain.Candle) []*domain.Event {
	var events []*domain.Event
	w.scan(candles, func(_ int, e *domain.Event) {
		events = append(events, e)
	})
	return events
}

// Label implements Policy: 1 on every event start row.
func (w *WindowScanner) Label(candles []*domain.Candle) []int {
	labels := make([]int, len(candles))
	w.scan(candles, func(i int, _ *domain.Event) {
		labels[i] = 1
	})
	return labels
}

func (w *WindowScanner) scan(candles []*domain.Candle, emit func(start int, e *domain.Event)) {
	for i, start := range candles {
		end := lookup.WindowEnd(candles, i, w.opts.WindowMs)
		if end-i < 2 {
			continue
		}

		peak := i
		var volume float64
		for j := i; j < end; j++ {
			if candles[j].Close > candles[peak].Close {
				peak = j
			}
			volume += candles[j].Volume
		}

		factor := candles[peak].Close / start.Close
		if factor < w.opts.Factor || volume < w.opts.MinVolume {
			continue
		}

		emit(i, &domain.Event{
			EventID:        idhash.ComputeEventID(start.Address, start.TimestampMs, w.opts.WindowMs),
			Address:        start.Address,
			StartTimeMs:    start.TimestampMs,
			EndTimeMs:      candles[peak].TimestampMs,
			StartPrice:     start.Close,
			EndPrice:       candles[peak].Close,
			IncreaseFactor: factor,
			WindowMs:       w.opts.WindowMs,
			TotalVolume:    volume,
		})
	}
}
