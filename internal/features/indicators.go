package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// All indicator functions return a slice the same length as their input.
// Rows without enough history are 0; NaN and Inf results are replaced by 0.

// PctChange returns (x[t] - x[t-1]) / x[t-1]; row 0 is 0.
func PctChange(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := 1; i < len(x); i++ {
		out[i] = finite((x[i] - x[i-1]) / x[i-1])
	}
	return out
}

// RollingStd returns the sample standard deviation over a trailing window.
// firstValid is the first index whose input is itself defined, so the first
// output is at firstValid+window-1.
func RollingStd(x []float64, window, firstValid int) []float64 {
	out := make([]float64, len(x))
	for i := firstValid + window - 1; i < len(x); i++ {
		out[i] = finite(stat.StdDev(x[i-window+1:i+1], nil))
	}
	return out
}

// RollingCorr returns the Pearson correlation of x and y over a trailing window.
// Windows where either side is constant are 0.
func RollingCorr(x, y []float64, window int) []float64 {
	out := make([]float64, len(x))
	for i := window - 1; i < len(x); i++ {
		out[i] = finite(stat.Correlation(x[i-window+1:i+1], y[i-window+1:i+1], nil))
	}
	return out
}

// Lag returns x shifted by k rows.
func Lag(x []float64, k int) []float64 {
	out := make([]float64, len(x))
	for i := k; i < len(x); i++ {
		out[i] = x[i-k]
	}
	return out
}

// SMA returns the simple moving average over a trailing window.
func SMA(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	for i := window - 1; i < len(x); i++ {
		out[i] = finite(stat.Mean(x[i-window+1:i+1], nil))
	}
	return out
}

// EMA returns the exponential moving average with alpha = 2/(span+1),
// seeded with x[0]. Rows before span-1 are reported as 0.
func EMA(x []float64, span int) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	e := x[0]
	for i := range x {
		if i > 0 {
			e = alpha*x[i] + (1-alpha)*e
		}
		if i >= span-1 {
			out[i] = finite(e)
		}
	}
	return out
}

// RSI returns the relative strength index over a trailing window of price
// changes, in [0, 100]:
//   - 100 when average loss is 0 and average gain > 0
//   - 0 when average gain is 0 and average loss > 0
//   - 50 when both are 0 (flat window)
//
// The first value is at index window.
func RSI(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	if len(x) < 2 {
		return out
	}

	gains := make([]float64, len(x))
	losses := make([]float64, len(x))
	for i := 1; i < len(x); i++ {
		d := x[i] - x[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}

	for i := window; i < len(x); i++ {
		avgGain := stat.Mean(gains[i-window+1:i+1], nil)
		avgLoss := stat.Mean(losses[i-window+1:i+1], nil)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if math.IsNaN(avgGain) || math.IsNaN(avgLoss) {
		return 0
	}
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50
	case avgLoss == 0:
		return 100
	}
	v := 100 - 100/(1+avgGain/avgLoss)
	return math.Min(100, math.Max(0, finite(v)))
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
