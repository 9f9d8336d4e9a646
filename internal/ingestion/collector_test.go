package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-surge-lab/internal/domain"
	"solana-surge-lab/internal/marketdata"
	"solana-surge-lab/internal/storage/flatfile"
)

type call struct {
	address  string
	from, to time.Time
}

type fakeSource struct {
	rows   map[string][]*domain.RawCandle
	errs   map[string]error
	calls  []call
	onCall func(address string)
}

func (f *fakeSource) FetchCandles(_ context.Context, address string, from, to time.Time) ([]*domain.RawCandle, error) {
	f.calls = append(f.calls, call{address, from, to})
	if f.onCall != nil {
		f.onCall(address)
	}
	if err := f.errs[address]; err != nil {
		return nil, err
	}
	return f.rows[address], nil
}

func raw(ts string) *domain.RawCandle {
	return &domain.RawCandle{Timestamp: ts, Open: "1", High: "1", Low: "1", Close: "1", Volume: "1"}
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestCollector(t *testing.T, src *fakeSource, opts CollectorOptions) *Collector {
	t.Helper()
	opts.Source = src
	opts.Now = func() time.Time { return fixedNow }
	opts.Logger = zerolog.Nop()
	c, err := NewCollector(opts)
	require.NoError(t, err)
	return c
}

func TestCollector_PartialFailure(t *testing.T) {
	src := &fakeSource{
		rows: map[string][]*domain.RawCandle{
			"a": {raw("1700000000"), raw("1700000060")},
			"c": {raw("1700000000")},
		},
		errs: map[string]error{"b": errors.New("status 500")},
	}
	c := newTestCollector(t, src, CollectorOptions{History: time.Hour})

	res, err := c.Collect(context.Background(), []string{"a", "b", "c", "d"})
	require.NoError(t, err)

	require.Len(t, res.Results, 4)
	assert.Equal(t, domain.OK("a", 2), res.Results[0])
	assert.Equal(t, domain.ResultFailed, res.Results[1].Status)
	assert.Equal(t, "status 500", res.Results[1].Reason)
	assert.Equal(t, domain.OK("c", 1), res.Results[2])
	assert.Equal(t, domain.Skipped("d", domain.ReasonNoData), res.Results[3])

	assert.Equal(t, domain.ResultSummary{OK: 2, Skipped: 1, Failed: 1, Rows: 3}, res.Summary)
	require.Len(t, res.Raw, 3)
	assert.Equal(t, "a", res.Raw[0].Address)
	assert.Equal(t, "c", res.Raw[2].Address)

	// Every token was requested over the same range.
	require.Len(t, src.calls, 4)
	for _, cl := range src.calls {
		assert.Equal(t, fixedNow.Add(-time.Hour), cl.from)
		assert.Equal(t, fixedNow, cl.to)
	}
}

func TestCollector_ProgressAndDefaults(t *testing.T) {
	src := &fakeSource{}
	var seen [][2]int
	c := newTestCollector(t, src, CollectorOptions{
		OnProgress: func(done, total int) { seen = append(seen, [2]int{done, total}) },
	})

	res, err := c.Collect(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, seen)
	assert.Equal(t, fixedNow.Add(-7*24*time.Hour), res.From)
}

func TestCollector_CancellationAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{
		rows: map[string][]*domain.RawCandle{"a": {raw("1")}, "b": {raw("1")}},
	}
	src.onCall = func(address string) {
		if address == "a" {
			cancel()
		}
	}
	c := newTestCollector(t, src, CollectorOptions{})

	res, err := c.Collect(ctx, []string{"a", "b", "c"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, src.calls, 1)
	assert.Empty(t, res.Results)
}

func TestCollector_WritesSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw", "snapshot.csv")
	src := &fakeSource{
		rows: map[string][]*domain.RawCandle{"a": {raw("1700000000")}},
	}
	c := newTestCollector(t, src, CollectorOptions{SnapshotPath: path})

	_, err := c.Collect(context.Background(), []string{"a"})
	require.NoError(t, err)

	rows, err := flatfile.ReadRawCandles(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].Address)
	assert.Equal(t, "1700000000", rows[0].Timestamp)
}

func TestNewCollector_RequiresSource(t *testing.T) {
	_, err := NewCollector(CollectorOptions{})
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestCollector_UnknownTokensDoNotBlockOthers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/bad") {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"success":false,"message":"invalid address"}`))
			return
		}
		w.Write([]byte(`{"data":{"candles":[{"t":1714564800,"o":1,"h":1,"l":1,"c":1,"v":1}]}}`))
	}))
	defer server.Close()

	client := marketdata.NewHTTPClient("k",
		marketdata.WithBaseURL(server.URL),
		marketdata.WithRequestDelay(0),
		marketdata.WithBreaker(5, time.Hour),
	)
	c, err := NewCollector(CollectorOptions{
		Source:  client,
		History: time.Hour,
		Now:     func() time.Time { return fixedNow },
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)

	res, err := c.Collect(context.Background(), []string{"bad1", "bad2", "bad3", "bad4", "bad5", "good"})
	require.NoError(t, err)
	require.Len(t, res.Results, 6)
	for _, r := range res.Results[:5] {
		assert.Equal(t, domain.ResultFailed, r.Status)
	}
	assert.Equal(t, domain.OK("good", 1), res.Results[5], "reason: %s", res.Results[5].Reason)
}
