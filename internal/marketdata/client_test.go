package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddr = "So11111111111111111111111111111111111111112"

func newTestClient(url string, opts ...ClientOption) *HTTPClient {
	base := []ClientOption{
		WithBaseURL(url),
		WithRequestDelay(0),
		WithTimeout(2 * time.Second),
	}
	return NewHTTPClient("test-key", append(base, opts...)...)
}

func TestHTTPClient_FetchCandles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/public/coin/"+testAddr+"/candlestick" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		if got := r.URL.Query().Get("interval"); got != "1m" {
			t.Errorf("expected interval 1m, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"candles":[
			{"t":1700000000,"o":1.0,"h":1.2,"l":0.9,"c":1.1,"v":100},
			{"t":1700000060,"o":"1.1","h":"1.3","l":"1.0","c":"1.2","v":"bad"},
			{"t":1700000120,"o":1.2,"h":1.2,"l":1.2,"c":null,"v":5}
		]}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	from := time.Unix(1700000000, 0)
	to := time.Unix(1700000120, 0)

	rows, err := client.FetchCandles(context.Background(), testAddr, from, to)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, testAddr, rows[0].Address)
	assert.Equal(t, "1700000000", rows[0].Timestamp)
	assert.Equal(t, "1.1", rows[0].Close)
	assert.Equal(t, "1.2", rows[1].Close, "string values are unquoted")
	assert.Equal(t, "bad", rows[1].Volume)
	assert.Equal(t, "", rows[2].Close, "null becomes missing")
}

func TestHTTPClient_FetchCandles_Paginates(t *testing.T) {
	var pages [][2]int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.ParseInt(r.URL.Query().Get("start_time"), 10, 64)
		end, _ := strconv.ParseInt(r.URL.Query().Get("end_time"), 10, 64)
		pages = append(pages, [2]int64{start, end})
		w.Write([]byte(`{"data":{"candles":[{"t":` + strconv.FormatInt(start, 10) + `,"o":1,"h":1,"l":1,"c":1,"v":1}]}}`))
	}))
	defer server.Close()

	// 3 intervals per page over 7 minutes: [0,179] [180,359] [360,420]
	client := newTestClient(server.URL, WithPageSize(3))
	rows, err := client.FetchCandles(context.Background(), testAddr, time.Unix(0, 0), time.Unix(420, 0))
	require.NoError(t, err)

	require.Equal(t, [][2]int64{{0, 179}, {180, 359}, {360, 420}}, pages)
	require.Len(t, rows, 3)
	assert.Equal(t, "180", rows[1].Timestamp)
}

func TestHTTPClient_FetchCandles_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchCandles(context.Background(), testAddr, time.Unix(0, 0), time.Unix(60, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHTTPStatus))
}

func TestHTTPClient_FetchCandles_Malformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchCandles(context.Background(), testAddr, time.Unix(0, 0), time.Unix(60, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestHTTPClient_FetchCandles_EmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"candles":[]}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	rows, err := client.FetchCandles(context.Background(), testAddr, time.Unix(0, 0), time.Unix(60, 0))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestHTTPClient_UnknownInterval(t *testing.T) {
	client := NewHTTPClient("k", WithInterval("7m"))
	_, err := client.FetchCandles(context.Background(), testAddr, time.Unix(0, 0), time.Unix(60, 0))
	assert.True(t, errors.Is(err, ErrUnknownInterval))
}

func TestHTTPClient_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL, WithBreaker(2, time.Hour))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.FetchCandles(ctx, testAddr, time.Unix(0, 0), time.Unix(60, 0))
		require.True(t, errors.Is(err, ErrHTTPStatus))
	}

	_, err := client.FetchCandles(ctx, testAddr, time.Unix(0, 0), time.Unix(60, 0))
	require.True(t, errors.Is(err, ErrCircuitOpen), "got %v", err)
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not hit the server")
}

func TestHTTPClient_BreakerIgnoresPerTokenErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n%2 == 0 {
			w.Write([]byte(`not json`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL, WithBreaker(2, time.Hour))
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := client.FetchCandles(ctx, testAddr, time.Unix(0, 0), time.Unix(60, 0))
		require.Error(t, err)
		require.False(t, errors.Is(err, ErrCircuitOpen), "call %d: %v", i, err)
	}
	assert.Equal(t, int32(6), calls.Load())
}

func TestHTTPClient_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchCandles(context.Background(), testAddr, time.Unix(0, 0), time.Unix(60, 0))
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.True(t, apiFailure(err))
	assert.False(t, apiFailure(&StatusError{Code: http.StatusBadRequest}))
	assert.True(t, apiFailure(&StatusError{Code: http.StatusServiceUnavailable}))
}

func TestHTTPClient_NoRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchCandles(context.Background(), testAddr, time.Unix(0, 0), time.Unix(60, 0))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPClient_RequestDelay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"candles":[]}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, WithRequestDelay(50*time.Millisecond))
	started := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.FetchCandles(context.Background(), testAddr, time.Unix(0, 0), time.Unix(60, 0))
		require.NoError(t, err)
	}
	// First request is immediate, the next two wait one delay each.
	assert.GreaterOrEqual(t, time.Since(started), 90*time.Millisecond)
}

func TestHTTPClient_NewListings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/defi/v2/tokens/new_listing" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("expected limit 2, got %q", got)
		}
		w.Write([]byte(`{"success":true,"data":{"items":[
			{"address":"` + testAddr + `","name":"Moon","symbol":"MOON","liquidity":1234.5,"liquidityAddedAt":"2024-10-18T12:00:00"},
			{"address":"","name":"broken"},
			{"address":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","symbol":"USDC","liquidityAddedAt":1700000000}
		]}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	listings, err := client.NewListings(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, "Moon", listings[0].DisplayName())
	assert.Equal(t, 1234.5, listings[0].Liquidity)
	assert.Equal(t, time.Date(2024, 10, 18, 12, 0, 0, 0, time.UTC).UnixMilli(), listings[0].ListedAtMs)
	assert.Equal(t, "USDC", listings[1].DisplayName())
	assert.Equal(t, int64(1700000000000), listings[1].ListedAtMs)
}

func TestHTTPClient_Observer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"items":[]}}`))
	}))
	defer server.Close()

	var endpoints []string
	client := newTestClient(server.URL, WithObserver(func(endpoint string, d time.Duration, err error) {
		endpoints = append(endpoints, endpoint)
	}))
	_, err := client.NewListings(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"new_listing"}, endpoints)
}
