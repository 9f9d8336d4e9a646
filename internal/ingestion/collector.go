// Package ingestion collects raw candle history for a list of tokens.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"solana-surge-lab/internal/domain"
	"solana-surge-lab/internal/marketdata"
	"solana-surge-lab/internal/observability"
	"solana-surge-lab/internal/storage/flatfile"
)

// ErrNoSource is returned when the collector has no candle source.
var ErrNoSource = errors.New("collector: candle source is required")

const stageCollect = "collect"

// CollectorOptions configures a Collector.
type CollectorOptions struct {
	Source marketdata.CandleSource
	// History is how far back from Now to fetch. Defaults to 7 days.
	History time.Duration
	// Now returns the end of the fetch range. Defaults to time.Now.
	Now func() time.Time
	// SnapshotPath, when set, receives the raw rows as CSV after the loop.
	SnapshotPath string
	// OnProgress is called after each token with (done, total).
	OnProgress func(done, total int)
	Metrics    *observability.Metrics
	Logger     zerolog.Logger
}

// Collector fetches raw candles token by token.
type Collector struct {
	source       marketdata.CandleSource
	history      time.Duration
	now          func() time.Time
	snapshotPath string
	onProgress   func(done, total int)
	metrics      *observability.Metrics
	logger       zerolog.Logger
}

// CollectResult holds the raw rows and per-token outcomes of one collection.
type CollectResult struct {
	From    time.Time
	To      time.Time
	Raw     []*domain.RawCandle
	Results []*domain.TokenResult
	Summary domain.ResultSummary
}

// NewCollector creates a new collector.
func NewCollector(opts CollectorOptions) (*Collector, error) {
	if opts.Source == nil {
		return nil, ErrNoSource
	}

	history := opts.History
	if history <= 0 {
		history = 7 * 24 * time.Hour
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Collector{
		source:       opts.Source,
		history:      history,
		now:          now,
		snapshotPath: opts.SnapshotPath,
		onProgress:   opts.OnProgress,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}, nil
}

// Collect fetches history for each address in order. A failing token is
// recorded and the loop moves on; only context cancellation aborts.
func (c *Collector) Collect(ctx context.Context, addresses []string) (*CollectResult, error) {
	to := c.now().UTC()
	from := to.Add(-c.history)
	result := &CollectResult{From: from, To: to}

	c.logger.Info().
		Int("tokens", len(addresses)).
		Time("from", from).
		Time("to", to).
		Msg("collecting candles")

	for i, addr := range addresses {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		tr, rows := c.collectOne(ctx, addr, from, to)
		if err := ctx.Err(); err != nil {
			return result, err
		}

		result.Raw = append(result.Raw, rows...)
		result.Results = append(result.Results, tr)
		c.metrics.RecordToken(stageCollect, tr.Status.String())

		if c.onProgress != nil {
			c.onProgress(i+1, len(addresses))
		}
	}

	result.Summary = domain.Summarize(result.Results)
	c.logger.Info().
		Int("ok", result.Summary.OK).
		Int("skipped", result.Summary.Skipped).
		Int("failed", result.Summary.Failed).
		Int("rows", result.Summary.Rows).
		Msg("collection complete")

	if c.snapshotPath != "" {
		if err := flatfile.WriteRawCandles(c.snapshotPath, result.Raw); err != nil {
			return result, fmt.Errorf("write snapshot: %w", err)
		}
		c.logger.Info().Str("path", c.snapshotPath).Int("rows", len(result.Raw)).Msg("raw snapshot written")
	}

	return result, nil
}

func (c *Collector) collectOne(ctx context.Context, addr string, from, to time.Time) (*domain.TokenResult, []*domain.RawCandle) {
	rows, err := c.source.FetchCandles(ctx, addr, from, to)
	if err != nil {
		c.logger.Warn().Err(err).Str("address", addr).Msg("fetch failed")
		return domain.Failed(addr, err), nil
	}
	if len(rows) == 0 {
		c.logger.Debug().Str("address", addr).Msg("no data")
		return domain.Skipped(addr, domain.ReasonNoData), nil
	}

	// Tag rows so the snapshot is self-describing even if the source did not.
	for _, r := range rows {
		if r != nil && r.Address == "" {
			r.Address = addr
		}
	}
	c.metrics.RecordCandles(len(rows))
	c.logger.Debug().Str("address", addr).Int("rows", len(rows)).Msg("fetched")
	return domain.OK(addr, len(rows)), rows
}
