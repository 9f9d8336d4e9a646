// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Per-token loop outcomes by stage (collect, train, predict) and status.
	TokensProcessed *prometheus.CounterVec

	// Market data metrics
	CandlesFetched  prometheus.Counter
	RequestLatency  *prometheus.HistogramVec
	RequestErrors   *prometheus.CounterVec
	ListingsFetched prometheus.Counter

	// Detection and prediction metrics
	EventsDetected *prometheus.CounterVec
	Predictions    *prometheus.CounterVec

	// Alert metrics
	AlertsSent       prometheus.Counter
	AlertsSuppressed prometheus.Counter
	AlertErrors      prometheus.Counter

	// Run metrics
	RunsTotal     *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	LastRunUnix   *prometheus.GaugeVec
	ModelAccuracy prometheus.Gauge
	ModelROCAUC   prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "surge_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		TokensProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "tokens_processed_total",
			Help:      "Tokens processed by stage and result status",
		}, []string{"stage", "status"}),

		CandlesFetched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "candles_fetched_total",
			Help:      "Total number of raw candles fetched",
		}),
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "request_latency_seconds",
			Help:      "Market data request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		RequestErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "request_errors_total",
			Help:      "Market data request errors by endpoint",
		}, []string{"endpoint"}),
		ListingsFetched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "listings_fetched_total",
			Help:      "Total number of new listings fetched",
		}),

		EventsDetected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "events_detected_total",
			Help:      "Price increase events by window size",
		}, []string{"window"}),
		Predictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "predictor",
			Name:      "predictions_total",
			Help:      "Predictions by outcome",
		}, []string{"outcome"}),

		AlertsSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "alerts_sent_total",
			Help:      "Total number of alert messages sent",
		}),
		AlertsSuppressed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "alerts_suppressed_total",
			Help:      "Tokens skipped because of the alert cooldown",
		}),
		AlertErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "alert_errors_total",
			Help:      "Total number of failed alert deliveries",
		}),

		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of runs by phase and status",
		}, []string{"phase", "status"}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		LastRunUnix: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful run by phase",
		}, []string{"phase"}),
		ModelAccuracy: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "accuracy",
			Help:      "Accuracy of the last trained model on its test split",
		}),
		ModelROCAUC: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "roc_auc",
			Help:      "ROC-AUC of the last trained model on its test split",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint of g.
// A nil g serves the default registry.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordToken counts one per-token outcome.
func (m *Metrics) RecordToken(stage, status string) {
	if m == nil {
		return
	}
	m.TokensProcessed.WithLabelValues(stage, status).Inc()
}

// RecordCandles adds n fetched candles.
func (m *Metrics) RecordCandles(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CandlesFetched.Add(float64(n))
}

// RecordListings adds n fetched listings.
func (m *Metrics) RecordListings(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ListingsFetched.Add(float64(n))
}

// ObserveRequest records one market data request. Its signature matches
// marketdata.RequestObserver.
func (m *Metrics) ObserveRequest(endpoint string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.RequestLatency.WithLabelValues(endpoint).Observe(d.Seconds())
	if err != nil {
		m.RequestErrors.WithLabelValues(endpoint).Inc()
	}
}

// RecordEvents adds n events detected with the given window.
func (m *Metrics) RecordEvents(window time.Duration, n int) {
	if m == nil {
		return
	}
	m.EventsDetected.WithLabelValues(window.String()).Add(float64(n))
}

// RecordPrediction counts one prediction.
func (m *Metrics) RecordPrediction(positive bool) {
	if m == nil {
		return
	}
	outcome := "negative"
	if positive {
		outcome = "positive"
	}
	m.Predictions.WithLabelValues(outcome).Inc()
}

// RecordAlert records the outcome of one alert dispatch.
func (m *Metrics) RecordAlert(sent, suppressed int, err error) {
	if m == nil {
		return
	}
	m.AlertsSent.Add(float64(sent))
	m.AlertsSuppressed.Add(float64(suppressed))
	if err != nil {
		m.AlertErrors.Inc()
	}
}

// RecordModel records the evaluation of a freshly trained model.
func (m *Metrics) RecordModel(accuracy, rocAUC float64) {
	if m == nil {
		return
	}
	m.ModelAccuracy.Set(accuracy)
	m.ModelROCAUC.Set(rocAUC)
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(phase, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(phase, status).Inc()
	m.RunDuration.WithLabelValues(phase).Observe(d.Seconds())
	if status == "success" {
		m.LastRunUnix.WithLabelValues(phase).Set(float64(time.Now().Unix()))
	}
}
