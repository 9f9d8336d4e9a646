package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-surge-lab/internal/config"
	"solana-surge-lab/internal/observability"
)

func TestNewLogger(t *testing.T) {
	l, err := newLogger(config.LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, l.GetLevel())

	_, err = newLogger(config.LogConfig{Level: "loud", Format: "console"})
	assert.Error(t, err)
}

func TestMetricsMux(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics("surge_lab", reg)
	m.RecordRun("predict", "success", time.Second)

	job := newWatchJob(context.Background(), nil, nil, m)
	job.record(time.Unix(1_700_000_000, 0), nil, errors.New("listings: http 503"))

	srv := httptest.NewServer(metricsMux(reg, job))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `surge_lab_pipeline_runs_total{phase="predict",status="success"} 1`), string(body))

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	var st watchStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "ok", st.Status)
	assert.Equal(t, 1, st.Runs)
	assert.Equal(t, "listings: http 503", st.LastError)
	assert.False(t, st.Running)
}

func TestWatchJob_SkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job := newWatchJob(ctx, nil, nil, nil)
	job.run() // returns before touching the nil predictor
	job.wait()
	assert.Equal(t, 0, job.status().Runs)
}

func TestRootCommandWiring(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"collect", "train", "events", "predict", "watch"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
