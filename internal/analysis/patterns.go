// Package analysis clusters the feature history that precedes price
// increase events and describes what each cluster has in common.
package analysis

import (
	"errors"
	"fmt"
	"sort"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"solana-surge-lab/internal/detector"
	"solana-surge-lab/internal/domain"
	"solana-surge-lab/internal/features"
	"solana-surge-lab/internal/lookup"
	"solana-surge-lab/internal/model"
)

// Window feature names.
const (
	PriceChange5m  = "price_change_5m"
	PriceChange15m = "price_change_15m"
	VolumeChange   = "volume_change"
	Volatility     = "volatility"
)

// Features lists window features in WindowSummary.Values order.
var Features = []string{PriceChange5m, PriceChange15m, VolumeChange, Volatility}

// Pattern thresholds on cluster means.
const (
	RapidPriceThreshold  = 0.1
	VolumeSurgeThreshold = 0.5
)

// ErrNoWindows is returned when there is nothing to cluster.
var ErrNoWindows = errors.New("no pre-event windows")

// ErrMissingColumn is returned when a required feature column is absent.
var ErrMissingColumn = errors.New("missing feature column")

// WindowSummary is the mean of each window feature over one pre-event window.
type WindowSummary struct {
	Event  *domain.Event
	Values []float64
	// Traces holds the per-row values behind each mean, in Features order.
	Traces [][]float64
}

// Stats describes one feature across the windows of a cluster.
type Stats struct {
	Mean float64
	Std  float64
	Min  float64
	Max  float64
}

// Cluster is a group of similar pre-event windows.
type Cluster struct {
	ID      int
	Size    int
	Stats   map[string]Stats
	Members []*WindowSummary

	indexes []int
}

// Result is the outcome of one analysis.
type Result struct {
	Windows     []*WindowSummary
	Assignments []int // cluster id per window
	Clusters    []*Cluster
	Patterns    []string
}

// AnalyzerOptions configures an Analyzer.
type AnalyzerOptions struct {
	// Clusters is the requested k; fewer windows reduce it.
	Clusters int
	// Columns are the engineer columns of the windows' feature rows.
	Columns []string
	Logger  zerolog.Logger
}

// Analyzer clusters pre-event windows with k-means.
type Analyzer struct {
	k             int
	volumeIdx     int
	volatilityIdx int
	logger        zerolog.Logger
}

// NewAnalyzer creates an analyzer over rows with the given columns.
func NewAnalyzer(opts AnalyzerOptions) (*Analyzer, error) {
	k := opts.Clusters
	if k <= 0 {
		k = 5
	}
	a := &Analyzer{k: k, volumeIdx: -1, volatilityIdx: -1, logger: opts.Logger}
	for i, c := range opts.Columns {
		switch c {
		case features.ColVolumeChange:
			a.volumeIdx = i
		case features.ColVolatility:
			a.volatilityIdx = i
		}
	}
	if a.volumeIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, features.ColVolumeChange)
	}
	if a.volatilityIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, features.ColVolatility)
	}
	return a, nil
}

// Summarize averages the window features over the rows of w.
// Price changes compare each row close with the close 5 and 15 minutes
// earlier in the token history.
func (a *Analyzer) Summarize(w *detector.PreEventWindow) *WindowSummary {
	n := len(w.Rows)
	cols := make([][]float64, len(Features))
	for j := range cols {
		cols[j] = make([]float64, 0, n)
	}

	for _, r := range w.Rows {
		cols[0] = append(cols[0], priceChange(r, w.History, 5*60_000))
		cols[1] = append(cols[1], priceChange(r, w.History, 15*60_000))
		cols[2] = append(cols[2], r.Values[a.volumeIdx])
		cols[3] = append(cols[3], r.Values[a.volatilityIdx])
	}

	s := &WindowSummary{Event: w.Event, Values: make([]float64, len(Features)), Traces: cols}
	if n == 0 {
		return s
	}
	for j, col := range cols {
		s.Values[j] = stat.Mean(col, nil)
	}
	return s
}

func priceChange(r *domain.FeatureRow, history []*domain.Candle, agoMs int64) float64 {
	prev, err := lookup.CloseAt(r.TimestampMs-agoMs, history)
	if err != nil || prev == 0 {
		return 0
	}
	return r.Close/prev - 1
}

// Analyze summarizes, standardizes and clusters the windows, then
// describes each cluster. Cluster ids are ordered by descending 15m price
// change so the most explosive group comes first.
func (a *Analyzer) Analyze(windows []*detector.PreEventWindow) (*Result, error) {
	if len(windows) == 0 {
		return nil, ErrNoWindows
	}

	res := &Result{Windows: make([]*WindowSummary, len(windows))}
	matrix := make([][]float64, len(windows))
	for i, w := range windows {
		res.Windows[i] = a.Summarize(w)
		matrix[i] = res.Windows[i].Values
	}

	scaler, err := model.FitScaler(matrix)
	if err != nil {
		return nil, err
	}
	scaled, err := scaler.TransformAll(matrix)
	if err != nil {
		return nil, err
	}

	k := min(a.k, len(windows))
	groups, err := partition(scaled, k)
	if err != nil {
		return nil, fmt.Errorf("kmeans: %w", err)
	}

	res.Clusters, res.Assignments = describe(res.Windows, groups)
	res.Patterns = IdentifyPatterns(res.Clusters)

	a.logger.Info().
		Int("windows", len(windows)).
		Int("clusters", len(res.Clusters)).
		Int("patterns", len(res.Patterns)).
		Msg("pattern analysis complete")
	return res, nil
}

// point is a standardized window that remembers its position.
type point struct {
	idx    int
	coords clusters.Coordinates
}

func (p point) Coordinates() clusters.Coordinates { return p.coords }

func (p point) Distance(c clusters.Coordinates) float64 { return p.coords.Distance(c) }

// partition runs k-means and returns the window indexes of each non-empty
// cluster.
func partition(scaled [][]float64, k int) ([][]int, error) {
	if k == 1 {
		all := make([]int, len(scaled))
		for i := range all {
			all[i] = i
		}
		return [][]int{all}, nil
	}

	obs := make(clusters.Observations, len(scaled))
	for i, row := range scaled {
		obs[i] = point{idx: i, coords: row}
	}

	cc, err := kmeans.New().Partition(obs, k)
	if err != nil {
		return nil, err
	}

	// A window listed by more than one cluster stays with the first.
	owner := make([]int, len(scaled))
	for i := range owner {
		owner[i] = -1
	}
	for ci, c := range cc {
		for _, o := range c.Observations {
			if p := o.(point); owner[p.idx] < 0 {
				owner[p.idx] = ci
			}
		}
	}

	byCluster := make([][]int, len(cc))
	for idx, ci := range owner {
		if ci >= 0 {
			byCluster[ci] = append(byCluster[ci], idx)
		}
	}
	var groups [][]int
	for _, g := range byCluster {
		if len(g) > 0 {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

func describe(windows []*WindowSummary, groups [][]int) ([]*Cluster, []int) {
	out := make([]*Cluster, 0, len(groups))
	for _, g := range groups {
		c := &Cluster{Size: len(g), Stats: make(map[string]Stats, len(Features)), indexes: g}
		for _, i := range g {
			c.Members = append(c.Members, windows[i])
		}
		for j, name := range Features {
			vals := make([]float64, len(g))
			for k, i := range g {
				vals[k] = windows[i].Values[j]
			}
			mean, std := stat.PopMeanStdDev(vals, nil)
			c.Stats[name] = Stats{Mean: mean, Std: std, Min: floats.Min(vals), Max: floats.Max(vals)}
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Stats[PriceChange15m].Mean > out[j].Stats[PriceChange15m].Mean
	})

	assignments := make([]int, len(windows))
	for id, c := range out {
		c.ID = id
		for _, i := range c.indexes {
			assignments[i] = id
		}
	}
	return out, assignments
}

// IdentifyPatterns names the traits that stand out in each cluster.
func IdentifyPatterns(cs []*Cluster) []string {
	var patterns []string
	for _, c := range cs {
		if c.Stats[PriceChange15m].Mean > RapidPriceThreshold {
			patterns = append(patterns, fmt.Sprintf("Cluster %d: Rapid price increase", c.ID))
		}
		if c.Stats[VolumeChange].Mean > VolumeSurgeThreshold {
			patterns = append(patterns, fmt.Sprintf("Cluster %d: Significant volume increase", c.ID))
		}
	}
	return patterns
}
