// Package predictor scores the newest tokens with a trained classifier.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"solana-surge-lab/internal/domain"
	"solana-surge-lab/internal/features"
	"solana-surge-lab/internal/marketdata"
	"solana-surge-lab/internal/model"
	"solana-surge-lab/internal/normalization"
	"solana-surge-lab/internal/observability"
)

var (
	// ErrNoSource is returned when the predictor has no candle source.
	ErrNoSource = errors.New("predictor: candle source is required")
	// ErrNoListings is returned by Run when no listing source is configured.
	ErrNoListings = errors.New("predictor: listing source is required")
	// ErrNoModel is returned when no artifact or engineer is configured.
	ErrNoModel = errors.New("predictor: model artifact and feature engineer are required")
	// ErrMissingScaler is returned for an artifact trained on scaled features
	// when no scaler is loaded.
	ErrMissingScaler = errors.New("predictor: artifact expects scaled features but no scaler is loaded")
)

const stagePredict = "predict"

// Options configures a Predictor.
type Options struct {
	Source   marketdata.CandleSource
	Listings marketdata.ListingSource
	// ListingLimit caps how many new listings Run scores. Defaults to 20.
	ListingLimit int

	Engineer features.Engineer
	Artifact *model.Artifact
	Scaler   *model.StandardScaler

	// Lookback is the recent window fetched per token. Defaults to 6h.
	Lookback time.Duration
	// MinRows is the minimum number of raw rows. Defaults to 20.
	MinRows int
	// Threshold overrides the artifact decision threshold when > 0.
	Threshold float64

	Now     func() time.Time
	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// Predictor fetches a short recent window per token and scores its latest
// complete feature row.
type Predictor struct {
	source       marketdata.CandleSource
	listings     marketdata.ListingSource
	listingLimit int
	engineer     features.Engineer
	artifact     *model.Artifact
	scaler       *model.StandardScaler
	lookback     time.Duration
	minRows      int
	threshold    float64
	now          func() time.Time
	metrics      *observability.Metrics
	logger       zerolog.Logger
}

// Result holds the outcome of one prediction run.
type Result struct {
	RunID       string
	StartedAt   time.Time
	Results     []*domain.TokenResult
	Predictions []*domain.Prediction
	Positives   []*domain.Prediction
	Summary     domain.ResultSummary
}

// New creates a predictor. The artifact must match the engineer's version
// and columns.
func New(opts Options) (*Predictor, error) {
	if opts.Source == nil {
		return nil, ErrNoSource
	}
	if opts.Artifact == nil || opts.Engineer == nil {
		return nil, ErrNoModel
	}
	if err := opts.Artifact.CheckFeatures(opts.Engineer.Version(), opts.Engineer.Columns()); err != nil {
		return nil, err
	}
	if opts.Artifact.Scaled && opts.Scaler == nil {
		return nil, ErrMissingScaler
	}

	p := &Predictor{
		source:       opts.Source,
		listings:     opts.Listings,
		listingLimit: opts.ListingLimit,
		engineer:     opts.Engineer,
		artifact:     opts.Artifact,
		scaler:       opts.Scaler,
		lookback:     opts.Lookback,
		minRows:      opts.MinRows,
		threshold:    opts.Threshold,
		now:          opts.Now,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}
	if p.listingLimit <= 0 {
		p.listingLimit = 20
	}
	if p.lookback <= 0 {
		p.lookback = 6 * time.Hour
	}
	if p.minRows <= 0 {
		p.minRows = 20
	}
	if p.threshold <= 0 {
		p.threshold = opts.Artifact.Threshold
	}
	if p.threshold <= 0 {
		p.threshold = 0.5
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// Threshold returns the decision threshold in use.
func (p *Predictor) Threshold() float64 { return p.threshold }

// Run fetches the newest listings and scores each of them.
func (p *Predictor) Run(ctx context.Context) (*Result, error) {
	if p.listings == nil {
		return nil, ErrNoListings
	}
	listings, err := p.listings.NewListings(ctx, p.listingLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", err)
	}
	p.metrics.RecordListings(len(listings))
	p.logger.Info().Int("listings", len(listings)).Msg("fetched new listings")
	return p.PredictListings(ctx, listings)
}

// PredictAddresses scores explicit token addresses.
func (p *Predictor) PredictAddresses(ctx context.Context, addresses []string) (*Result, error) {
	listings := make([]*domain.TokenListing, len(addresses))
	for i, a := range addresses {
		listings[i] = &domain.TokenListing{Address: a}
	}
	return p.PredictListings(ctx, listings)
}

// PredictListings scores listings one at a time. A failing or skipped
// token is recorded and the loop continues; only context cancellation
// aborts.
func (p *Predictor) PredictListings(ctx context.Context, listings []*domain.TokenListing) (*Result, error) {
	to := p.now().UTC()
	from := to.Add(-p.lookback)
	res := &Result{RunID: uuid.NewString(), StartedAt: to}

	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		tr, pred := p.predictOne(ctx, l, from, to)
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Results = append(res.Results, tr)
		p.metrics.RecordToken(stagePredict, tr.Status.String())
		if pred == nil {
			continue
		}
		pred.RunID = res.RunID
		res.Predictions = append(res.Predictions, pred)
		p.metrics.RecordPrediction(pred.Positive)
		if pred.Positive {
			res.Positives = append(res.Positives, pred)
		}
	}

	res.Summary = domain.Summarize(res.Results)
	p.logger.Info().
		Str("run_id", res.RunID).
		Int("scored", len(res.Predictions)).
		Int("positive", len(res.Positives)).
		Int("skipped", res.Summary.Skipped).
		Int("failed", res.Summary.Failed).
		Msg("prediction run complete")
	return res, nil
}

func (p *Predictor) predictOne(ctx context.Context, l *domain.TokenListing, from, to time.Time) (*domain.TokenResult, *domain.Prediction) {
	addr := l.Address
	raw, err := p.source.FetchCandles(ctx, addr, from, to)
	if err != nil {
		p.logger.Warn().Err(err).Str("address", addr).Msg("fetch failed")
		return domain.Failed(addr, err), nil
	}
	if len(raw) == 0 {
		return domain.Skipped(addr, domain.ReasonNoData), nil
	}
	if len(raw) < p.minRows {
		p.logger.Debug().Str("address", addr).Int("rows", len(raw)).Msg("not enough rows")
		return domain.Skipped(addr, domain.ReasonInsufficientData), nil
	}
	for _, r := range raw {
		if r != nil && r.Address == "" {
			r.Address = addr
		}
	}

	candles := normalization.Clean(raw)
	if len(candles) == 0 {
		return domain.Skipped(addr, domain.ReasonNoData), nil
	}

	rows := p.engineer.Compute(candles)
	last := rows[len(rows)-1]
	if !last.Complete || !finite(last.Values) {
		return domain.Skipped(addr, domain.ReasonMissingFeatures), nil
	}

	x := last.Values
	if p.artifact.Scaled {
		if x, err = p.scaler.Transform(x); err != nil {
			return domain.Failed(addr, err), nil
		}
	}

	proba, err := p.artifact.Model.PredictProba(x)
	if err != nil {
		return domain.Failed(addr, err), nil
	}

	pred := &domain.Prediction{
		Address:     addr,
		Name:        l.Name,
		Symbol:      l.Symbol,
		TimestampMs: last.TimestampMs,
		Probability: proba,
		Positive:    proba >= p.threshold,
	}
	p.logger.Debug().
		Str("address", addr).
		Float64("probability", proba).
		Bool("positive", pred.Positive).
		Msg("scored")
	return domain.OK(addr, 1), pred
}

func finite(xs []float64) bool {
	for _, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
