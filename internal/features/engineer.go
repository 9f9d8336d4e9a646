package features

import (
	"sort"
	"strconv"

	"solana-surge-lab/internal/domain"
)

// Engineer computes a versioned, fixed set of feature columns.
type Engineer interface {
	// Version identifies the column set and window sizes.
	Version() string

	// Columns returns column names in FeatureRow.Values order.
	Columns() []string

	// Warmup returns the index of the first complete row.
	Warmup() int

	// Compute derives one FeatureRow per candle of a single token.
	Compute(candles []*domain.Candle) []*domain.FeatureRow
}

// Column names shared with model artifacts.
const (
	ColReturn          = "return"
	ColVolatility      = "volatility"
	ColVolumeChange    = "volume_change"
	ColPriceVolumeCorr = "price_volume_corr"
	ColRSI             = "rsi"
)

// Technical implements Engineer with return, volatility, volume change,
// price/volume correlation, lags, SMA, EMA and RSI columns.
type Technical struct {
	params  Params
	columns []string
	index   map[string]int
}

var _ Engineer = (*Technical)(nil)

// New creates a Technical engineer after validating params.
func New(p Params) (*Technical, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	cols := []string{ColReturn, ColVolatility, ColVolumeChange, ColPriceVolumeCorr}
	for k := 1; k <= p.Lags; k++ {
		cols = append(cols, "close_lag_"+strconv.Itoa(k))
	}
	for k := 1; k <= p.Lags; k++ {
		cols = append(cols, "volume_lag_"+strconv.Itoa(k))
	}
	for _, w := range p.MAWindows {
		cols = append(cols, "ma_"+strconv.Itoa(w))
	}
	for _, s := range p.EMASpans {
		cols = append(cols, "ema_"+strconv.Itoa(s))
	}
	cols = append(cols, ColRSI)

	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c] = i
	}

	return &Technical{params: p, columns: cols, index: index}, nil
}

// MustDefault returns an engineer with DefaultParams.
func MustDefault() *Technical {
	t, err := New(DefaultParams())
	if err != nil {
		panic(err)
	}
	return t
}

// Params returns the engineer's parameters.
func (t *Technical) Params() Params { return t.params }

// Version implements Engineer.
func (t *Technical) Version() string { return t.params.Version() }

// Columns implements Engineer. The returned slice must not be modified.
func (t *Technical) Columns() []string { return t.columns }

// Warmup implements Engineer.
func (t *Technical) Warmup() int { return t.params.Warmup() }

// Index returns the position of a column in Values, or -1.
func (t *Technical) Index(column string) int {
	if i, ok := t.index[column]; ok {
		return i
	}
	return -1
}

// Compute implements Engineer.
// Input is sorted by timestamp internally; the caller's slice is not reordered.
// Output row count equals input row count.
func (t *Technical) Compute(candles []*domain.Candle) []*domain.FeatureRow {
	if len(candles) == 0 {
		return nil
	}

	sorted := make([]*domain.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimestampMs < sorted[j].TimestampMs
	})

	n := len(sorted)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range sorted {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	p := t.params
	returns := PctChange(closes)

	cols := make([][]float64, 0, len(t.columns))
	cols = append(cols,
		returns,
		RollingStd(returns, p.VolatilityWindow, 1),
		PctChange(volumes),
		RollingCorr(closes, volumes, p.CorrelationWindow),
	)
	for k := 1; k <= p.Lags; k++ {
		cols = append(cols, Lag(closes, k))
	}
	for k := 1; k <= p.Lags; k++ {
		cols = append(cols, Lag(volumes, k))
	}
	for _, w := range p.MAWindows {
		cols = append(cols, SMA(closes, w))
	}
	for _, s := range p.EMASpans {
		cols = append(cols, EMA(closes, s))
	}
	cols = append(cols, RSI(closes, p.RSIWindow))

	warmup := t.Warmup()
	rows := make([]*domain.FeatureRow, n)
	for i, c := range sorted {
		values := make([]float64, len(cols))
		for j, col := range cols {
			values[j] = col[i]
		}
		rows[i] = &domain.FeatureRow{
			Address:     c.Address,
			TimestampMs: c.TimestampMs,
			Close:       c.Close,
			Volume:      c.Volume,
			Values:      values,
			Complete:    i >= warmup,
		}
	}
	return rows
}
