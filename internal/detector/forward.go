package detector

import (
	"errors"
	"fmt"

	"solana-surge-lab/internal/domain"
)

// ErrInvalidOptions is returned for detector options that cannot produce labels.
var ErrInvalidOptions = errors.New("invalid detector options")

// ForwardLabeler labels row i with 1 when the maximum close over rows
// i+1..i+Horizon is at least Factor times close[i].
//
// Rows without a full forward horizon (i+Horizon beyond the last row) are 0.
type ForwardLabeler struct {
	factor  float64
	horizon int
}

var _ Policy = (*ForwardLabeler)(nil)

// NewForwardLabeler creates a forward labeler.
func NewForwardLabeler(factor float64, horizon int) (*ForwardLabeler, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("%w: factor %v", ErrInvalidOptions, factor)
	}
	if horizon < 1 {
		return nil, fmt.Errorf("%w: horizon %d", ErrInvalidOptions, horizon)
	}
	return &ForwardLabeler{factor: factor, horizon: horizon}, nil
}

// Name implements Policy.
func (f *ForwardLabeler) Name() string { return PolicyForward }

// Horizon returns the forward horizon in rows.
func (f *ForwardLabeler) Horizon() int { return f.horizon }

// Label implements Policy. Candles must be one token ordered by timestamp.
func (f *ForwardLabeler) Label(candles []*domain.Candle) []int {
	n := len(candles)
	labels := make([]int, n)

	for i := 0; i+f.horizon < n; i++ {
		target := f.factor * candles[i].Close
		for j := i + 1; j <= i+f.horizon; j++ {
			if candles[j].Close >= target {
				labels[i] = 1
				break
			}
		}
	}
	return labels
}
