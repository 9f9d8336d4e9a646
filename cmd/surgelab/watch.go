package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/anyongjin/cron"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"solana-surge-lab/internal/notify"
	"solana-surge-lab/internal/observability"
	"solana-surge-lab/internal/predictor"
)

var watchNoAlert bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Score new listings on a schedule and alert on positives",
	Long: `watch runs the predictor on predictor.schedule (cron syntax or
"@every 15m"), sends one Telegram alert per run for positive tokens that are
not in cooldown, and serves Prometheus metrics on metrics.addr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		reg := prometheus.NewRegistry()
		m := newMetrics(reg)

		p, err := newPredictor(m)
		if err != nil {
			return err
		}
		var alerter *notify.Alerter
		if !watchNoAlert {
			a, closeFn, err := newAlerter(m)
			if err != nil {
				return err
			}
			defer closeFn()
			alerter = a
		}

		job := newWatchJob(ctx, p, alerter, m)

		if cfg.Metrics.Addr != "" {
			srv := &http.Server{
				Addr:              cfg.Metrics.Addr,
				Handler:           metricsMux(reg, job),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error().Err(err).Msg("metrics server failed")
				}
			}()
			defer func() {
				shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				_ = srv.Shutdown(shutdownCtx)
			}()
			logger.Info().Str("addr", cfg.Metrics.Addr).Msg("serving metrics")
		}

		c := cron.New()
		if _, err := c.Add(cfg.Predictor.Schedule, job.run); err != nil {
			return err
		}
		c.Start()
		defer c.Stop()
		logger.Info().Str("schedule", cfg.Predictor.Schedule).Msg("watching new listings")

		// First pass immediately rather than waiting for the first tick.
		job.run()

		<-ctx.Done()
		job.wait()
		return nil
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoAlert, "no-alert", false, "Score and log only, without Telegram alerts")
}

func metricsMux(reg *prometheus.Registry, job *watchJob) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler(reg))
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(job.status())
	})
	return mux
}

// watchStatus is the JSON body of /status.
type watchStatus struct {
	Status        string    `json:"status"`
	Uptime        string    `json:"uptime"`
	LastRun       time.Time `json:"last_run,omitempty"`
	LastRunID     string    `json:"last_run_id,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	Runs          int       `json:"runs"`
	LastScored    int       `json:"last_scored"`
	LastPositives int       `json:"last_positives"`
	Running       bool      `json:"running"`
}

// watchJob runs one prediction pass at a time; a tick that arrives while a
// pass is running is dropped.
type watchJob struct {
	ctx     context.Context
	p       *predictor.Predictor
	alerter *notify.Alerter
	metrics *observability.Metrics

	mu sync.Mutex // held for the duration of a pass

	stateMu sync.Mutex
	started time.Time
	state   watchStatus
}

func newWatchJob(ctx context.Context, p *predictor.Predictor, alerter *notify.Alerter, m *observability.Metrics) *watchJob {
	return &watchJob{ctx: ctx, p: p, alerter: alerter, metrics: m, started: time.Now()}
}

func (j *watchJob) status() watchStatus {
	j.stateMu.Lock()
	defer j.stateMu.Unlock()
	st := j.state
	st.Status = "ok"
	st.Uptime = time.Since(j.started).Round(time.Second).String()
	return st
}

func (j *watchJob) setRunning(running bool) {
	j.stateMu.Lock()
	j.state.Running = running
	j.stateMu.Unlock()
}

func (j *watchJob) run() {
	if j.ctx.Err() != nil {
		return
	}
	if !j.mu.TryLock() {
		logger.Warn().Msg("previous run still in progress, skipping tick")
		return
	}
	defer j.mu.Unlock()
	j.setRunning(true)
	defer j.setRunning(false)

	start := time.Now()
	res, err := predictOnce(j.ctx, j.p, j.alerter, nil)
	status := "success"
	if err != nil {
		status = "error"
		logger.Error().Err(err).Msg("prediction run failed")
	}
	j.metrics.RecordRun("predict", status, time.Since(start))
	j.record(start, res, err)
	if res != nil {
		logger.Info().
			Str("run_id", res.RunID).
			Int("scored", len(res.Predictions)).
			Int("positive", len(res.Positives)).
			Dur("elapsed", time.Since(start)).
			Msg("watch tick complete")
	}
}

func (j *watchJob) record(start time.Time, res *predictor.Result, err error) {
	j.stateMu.Lock()
	defer j.stateMu.Unlock()
	j.state.Runs++
	j.state.LastRun = start
	j.state.LastError = ""
	if err != nil {
		j.state.LastError = err.Error()
	}
	if res != nil {
		j.state.LastRunID = res.RunID
		j.state.LastScored = len(res.Predictions)
		j.state.LastPositives = len(res.Positives)
	}
}

// wait blocks until a running pass returns.
func (j *watchJob) wait() {
	j.mu.Lock()
	defer j.mu.Unlock()
}
