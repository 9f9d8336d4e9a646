// Package model builds training datasets and fits a gradient-boosted tree
// classifier over engineered features.
package model

import (
	"errors"
	"fmt"
	"math"

	"solana-surge-lab/internal/domain"
)

var (
	// ErrLengthMismatch is returned when rows and labels are not aligned.
	ErrLengthMismatch = errors.New("rows and labels differ in length")

	// ErrFeatureMismatch is returned when feature columns do not match.
	ErrFeatureMismatch = errors.New("feature columns mismatch")

	// ErrEmptyDataset is returned when an operation needs at least one row.
	ErrEmptyDataset = errors.New("empty dataset")
)

// Dataset is a dense feature matrix with binary targets.
// X[i] holds len(Columns) finite values.
type Dataset struct {
	Columns    []string
	X          [][]float64
	Y          []int
	Addresses  []string
	Timestamps []int64
}

// NewDataset creates an empty dataset over columns.
func NewDataset(columns []string) *Dataset {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Dataset{Columns: cols}
}

// BuildDataset turns aligned feature rows and labels into a dataset.
// Non-finite values become 0.
func BuildDataset(columns []string, rows []*domain.FeatureRow, labels []int) (*Dataset, error) {
	d := NewDataset(columns)
	if err := d.Add(rows, labels); err != nil {
		return nil, err
	}
	return d, nil
}

// Add appends aligned rows and labels.
func (d *Dataset) Add(rows []*domain.FeatureRow, labels []int) error {
	if len(rows) != len(labels) {
		return fmt.Errorf("%w: %d rows, %d labels", ErrLengthMismatch, len(rows), len(labels))
	}
	for i, r := range rows {
		if len(r.Values) != len(d.Columns) {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrFeatureMismatch, i, len(r.Values), len(d.Columns))
		}
		x := make([]float64, len(r.Values))
		for j, v := range r.Values {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				x[j] = v
			}
		}
		y := 0
		if labels[i] > 0 {
			y = 1
		}
		d.X = append(d.X, x)
		d.Y = append(d.Y, y)
		d.Addresses = append(d.Addresses, r.Address)
		d.Timestamps = append(d.Timestamps, r.TimestampMs)
	}
	return nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Y) }

// Positives returns the number of rows labeled 1.
func (d *Dataset) Positives() int {
	n := 0
	for _, y := range d.Y {
		n += y
	}
	return n
}

// Subset returns the rows at idx, in idx order. Feature slices are shared.
func (d *Dataset) Subset(idx []int) *Dataset {
	out := NewDataset(d.Columns)
	out.X = make([][]float64, len(idx))
	out.Y = make([]int, len(idx))
	out.Addresses = make([]string, len(idx))
	out.Timestamps = make([]int64, len(idx))
	for k, i := range idx {
		out.X[k] = d.X[i]
		out.Y[k] = d.Y[i]
		out.Addresses[k] = d.Addresses[i]
		out.Timestamps[k] = d.Timestamps[i]
	}
	return out
}

// classIndex splits row indices by class, preserving order.
func (d *Dataset) classIndex() (neg, pos []int) {
	for i, y := range d.Y {
		if y == 1 {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}
	return neg, pos
}
