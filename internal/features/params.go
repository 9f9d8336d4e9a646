// Package features computes deterministic technical-indicator columns over a
// single token's cleaned candle series.
package features

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidParams is returned for window sizes that cannot produce values.
var ErrInvalidParams = errors.New("invalid feature params")

// Params holds every window size used by the engineer.
type Params struct {
	VolatilityWindow  int   // rolling std of returns
	CorrelationWindow int   // rolling close/volume correlation
	Lags              int   // close_lag_1..N and volume_lag_1..N
	MAWindows         []int // simple moving averages
	EMASpans          []int // exponential moving averages
	RSIWindow         int   // RSI averaging window
}

// DefaultParams returns the standard parameter set.
func DefaultParams() Params {
	return Params{
		VolatilityWindow:  5,
		CorrelationWindow: 5,
		Lags:              5,
		MAWindows:         []int{3, 5, 10},
		EMASpans:          []int{3, 5},
		RSIWindow:         7,
	}
}

// Validate checks window sizes.
func (p Params) Validate() error {
	if p.VolatilityWindow < 2 {
		return fmt.Errorf("%w: volatility window %d < 2", ErrInvalidParams, p.VolatilityWindow)
	}
	if p.CorrelationWindow < 2 {
		return fmt.Errorf("%w: correlation window %d < 2", ErrInvalidParams, p.CorrelationWindow)
	}
	if p.Lags < 0 {
		return fmt.Errorf("%w: lags %d < 0", ErrInvalidParams, p.Lags)
	}
	if p.RSIWindow < 1 {
		return fmt.Errorf("%w: rsi window %d < 1", ErrInvalidParams, p.RSIWindow)
	}
	seen := make(map[int]bool)
	for _, w := range p.MAWindows {
		if w < 1 || seen[w] {
			return fmt.Errorf("%w: ma window %d", ErrInvalidParams, w)
		}
		seen[w] = true
	}
	seen = make(map[int]bool)
	for _, s := range p.EMASpans {
		if s < 1 || seen[s] {
			return fmt.Errorf("%w: ema span %d", ErrInvalidParams, s)
		}
		seen[s] = true
	}
	return nil
}

// Version encodes the parameters so artifacts can detect feature drift.
// Example: "v1-vol5-corr5-lag5-ma3.5.10-ema3.5-rsi7".
func (p Params) Version() string {
	var b strings.Builder
	b.WriteString("v1")
	b.WriteString("-vol" + strconv.Itoa(p.VolatilityWindow))
	b.WriteString("-corr" + strconv.Itoa(p.CorrelationWindow))
	b.WriteString("-lag" + strconv.Itoa(p.Lags))
	b.WriteString("-ma" + joinInts(p.MAWindows))
	b.WriteString("-ema" + joinInts(p.EMASpans))
	b.WriteString("-rsi" + strconv.Itoa(p.RSIWindow))
	return b.String()
}

// Warmup is the number of leading rows with at least one zero-filled
// warm-up column. Row i is complete when i >= Warmup().
func (p Params) Warmup() int {
	w := p.VolatilityWindow
	w = max(w, p.CorrelationWindow-1)
	w = max(w, p.Lags)
	w = max(w, p.RSIWindow)
	for _, m := range p.MAWindows {
		w = max(w, m-1)
	}
	for _, s := range p.EMASpans {
		w = max(w, s-1)
	}
	return w
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ".")
}
