package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"

	"solana-surge-lab/internal/config"
	"solana-surge-lab/internal/detector"
	"solana-surge-lab/internal/domain"
	"solana-surge-lab/internal/features"
	"solana-surge-lab/internal/ingestion"
	"solana-surge-lab/internal/marketdata"
	"solana-surge-lab/internal/model"
	"solana-surge-lab/internal/notify"
	"solana-surge-lab/internal/observability"
	"solana-surge-lab/internal/orchestrator"
	"solana-surge-lab/internal/predictor"
	"solana-surge-lab/internal/storage/flatfile"
	"solana-surge-lab/internal/storage/memory"
)

func newMetrics(reg prometheus.Registerer) *observability.Metrics {
	return observability.NewMetrics(cfg.Metrics.Namespace, reg)
}

func newMarketClient(m *observability.Metrics) (*marketdata.HTTPClient, error) {
	if err := cfg.RequireMarketData(); err != nil {
		return nil, err
	}
	md := cfg.MarketData
	logger.Debug().Str("api_key", cfg.MaskedAPIKey()).Str("base_url", md.BaseURL).Msg("market data client")
	return marketdata.NewHTTPClient(cfg.APIKeys.Birdeye,
		marketdata.WithBaseURL(md.BaseURL),
		marketdata.WithInterval(md.Interval),
		marketdata.WithPageSize(md.PageSize),
		marketdata.WithRequestDelay(md.RequestDelay),
		marketdata.WithTimeout(md.Timeout),
		marketdata.WithBreaker(md.BreakerFailures, md.BreakerCooldown),
		marketdata.WithObserver(m.ObserveRequest),
	), nil
}

func newEngineer() (*features.Technical, error) {
	f := cfg.Features
	return features.New(features.Params{
		VolatilityWindow:  f.VolatilityWindow,
		CorrelationWindow: f.CorrelationWindow,
		Lags:              f.Lags,
		MAWindows:         f.MAWindows,
		EMASpans:          f.EMASpans,
		RSIWindow:         f.RSIWindow,
	})
}

func newPolicy() (detector.Policy, error) {
	l := cfg.Labels
	return detector.NewPolicy(detector.PolicyOptions{
		Name:      l.Policy,
		Factor:    l.Factor,
		Horizon:   l.Horizon,
		WindowMs:  l.Window.Milliseconds(),
		MinVolume: cfg.Events.MinVolume,
	})
}

func newOrchestrator(m *observability.Metrics) (*orchestrator.Orchestrator, error) {
	eng, err := newEngineer()
	if err != nil {
		return nil, err
	}
	policy, err := newPolicy()
	if err != nil {
		return nil, err
	}
	mc := cfg.Model
	return orchestrator.New(orchestrator.Options{
		CandleStore: memory.NewCandleStore(),
		EventStore:  memory.NewEventStore(),
		Engineer:    eng,
		Policy:      policy,
		Params: model.Params{
			NEstimators:    mc.NEstimators,
			LearningRate:   mc.LearningRate,
			MaxDepth:       mc.MaxDepth,
			Lambda:         mc.Lambda,
			MinChildWeight: mc.MinChildWeight,
		},
		Balance:     mc.Balance,
		TestSize:    mc.TestSize,
		Seed:        mc.Seed,
		Threshold:   mc.Threshold,
		MinRows:     mc.MinRows,
		Scale:       mc.Scale,
		Windows:     cfg.Events.Windows,
		EventFactor: cfg.Events.Factor,
		MinVolume:   cfg.Events.MinVolume,
		Lookback:    cfg.Events.Lookback,
		Clusters:    cfg.Events.Clusters,
		ModelPath:   cfg.Paths.Model,
		ScalerPath:  cfg.Paths.Scaler,
		EventsDir:   cfg.Paths.EventsDir,
		ChartsDir:   cfg.Paths.ChartsDir,
		Metrics:     m,
		Logger:      logger,
	})
}

// collect fetches history for the configured token list and writes the raw
// snapshot.
func collect(ctx context.Context, m *observability.Metrics, tokensPath string) (*ingestion.CollectResult, error) {
	client, err := newMarketClient(m)
	if err != nil {
		return nil, err
	}
	if tokensPath == "" {
		tokensPath = cfg.Tokens.ListPath
	}
	addresses, err := config.LoadTokenList(tokensPath)
	if err != nil {
		return nil, err
	}

	bar := progressbar.Default(int64(len(addresses)), "collecting")
	defer bar.Finish()

	collector, err := ingestion.NewCollector(ingestion.CollectorOptions{
		Source:       client,
		History:      cfg.MarketData.History,
		SnapshotPath: cfg.Paths.RawSnapshot,
		OnProgress: func(done, total int) {
			_ = bar.Set(done)
		},
		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return collector.Collect(ctx, addresses)
}

// loadRaw returns freshly collected rows when fresh is set, otherwise the
// raw snapshot.
func loadRaw(ctx context.Context, m *observability.Metrics, fresh bool) ([]*domain.RawCandle, []*domain.TokenResult, error) {
	if fresh {
		res, err := collect(ctx, m, "")
		if err != nil {
			return nil, nil, err
		}
		return res.Raw, res.Results, nil
	}
	raw, err := flatfile.ReadRawCandles(cfg.Paths.RawSnapshot)
	if err != nil {
		return nil, nil, fmt.Errorf("%w (run `surgelab collect` first)", err)
	}
	logger.Info().Str("path", cfg.Paths.RawSnapshot).Int("rows", len(raw)).Msg("raw snapshot loaded")
	return raw, nil, nil
}

func newPredictor(m *observability.Metrics) (*predictor.Predictor, error) {
	client, err := newMarketClient(m)
	if err != nil {
		return nil, err
	}
	eng, err := newEngineer()
	if err != nil {
		return nil, err
	}
	artifact, err := model.LoadArtifact(cfg.Paths.Model)
	if err != nil {
		return nil, err
	}
	var scaler *model.StandardScaler
	if artifact.Scaled {
		if scaler, err = model.LoadScaler(cfg.Paths.Scaler); err != nil {
			return nil, err
		}
	}
	logger.Info().
		Str("run_id", artifact.RunID).
		Time("trained_at", artifact.TrainedAt).
		Float64("threshold", artifact.Threshold).
		Msg("model loaded")

	return predictor.New(predictor.Options{
		Source:       client,
		Listings:     client,
		ListingLimit: cfg.MarketData.ListingLimit,
		Engineer:     eng,
		Artifact:     artifact,
		Scaler:       scaler,
		Lookback:     cfg.Predictor.Lookback,
		MinRows:      cfg.Predictor.MinRows,
		Metrics:      m,
		Logger:       logger,
	})
}

// newAlerter builds the Telegram alerter with a Redis cooldown when
// configured, in-memory otherwise.
func newAlerter(m *observability.Metrics) (*notify.Alerter, func(), error) {
	if err := cfg.RequireTelegram(); err != nil {
		return nil, nil, err
	}
	tg, err := notify.NewTelegram(notify.TelegramOptions{
		Token:   cfg.Telegram.BotToken,
		ChatID:  cfg.Telegram.ChatID,
		APIURL:  cfg.Telegram.APIURL,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {}
	var cooldown notify.Cooldown
	switch {
	case cfg.Predictor.AlertCooldown <= 0:
	case cfg.Redis.Addr != "":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closeFn = func() { _ = rdb.Close() }
		cooldown = notify.NewRedisCooldown(rdb, cfg.Predictor.AlertCooldown, "surgelab:alert:")
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis alert cooldown")
	default:
		cooldown = notify.NewMemoryCooldown(cfg.Predictor.AlertCooldown)
	}

	a, err := notify.NewAlerter(notify.AlerterOptions{
		Notifier: tg,
		Cooldown: cooldown,
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return a, closeFn, nil
}

func printOut(s string) {
	fmt.Fprint(os.Stdout, s)
}
