// Package detector finds sharp price increases in a token's candle series,
// either as discrete event records or as a per-row binary label.
package detector

import (
	"errors"
	"fmt"

	"solana-surge-lab/internal/domain"
)

// Policy names.
const (
	PolicyForward = "forward"
	PolicyWindow  = "window"
)

// ErrUnknownPolicy is returned by NewPolicy for unsupported names.
var ErrUnknownPolicy = errors.New("unknown label policy")

// Policy produces a 0/1 label per candle of one token's ordered series.
type Policy interface {
	Name() string

	// Label returns one label per candle, same length as input.
	Label(candles []*domain.Candle) []int
}

// PolicyOptions configures NewPolicy.
type PolicyOptions struct {
	Name      string
	Factor    float64 // required price multiple, e.g. 5
	Horizon   int     // forward rows (forward policy)
	WindowMs  int64   // scan window (window policy)
	MinVolume float64 // window volume floor (window policy)
}

// NewPolicy builds the named policy.
func NewPolicy(opts PolicyOptions) (Policy, error) {
	switch opts.Name {
	case PolicyForward:
		f, err := NewForwardLabeler(opts.Factor, opts.Horizon)
		if err != nil {
			return nil, err
		}
		return f, nil
	case PolicyWindow:
		w, err := NewWindowScanner(WindowOptions{
			Factor:    opts.Factor,
			WindowMs:  opts.WindowMs,
			MinVolume: opts.MinVolume,
		})
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, opts.Name)
	}
}

// Positives counts labels equal to 1.
func Positives(labels []int) int {
	n := 0
	for _, l := range labels {
		if l == 1 {
			n++
		}
	}
	return n
}
