package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"solana-surge-lab/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL         = "https://public-api.birdeye.so"
	DefaultTimeout         = 30 * time.Second
	DefaultInterval        = domain.Interval1Min
	DefaultPageSize        = 1000
	DefaultRequestDelay    = 1 * time.Second
	DefaultBreakerFailures = 5
	DefaultBreakerCooldown = 1 * time.Minute
	DefaultChain           = "solana"
)

const (
	candlesPath  = "/public/coin/%s/candlestick"
	listingsPath = "/defi/v2/tokens/new_listing"
)

var (
	// ErrHTTPStatus is returned for non-2xx responses.
	ErrHTTPStatus = errors.New("unexpected http status")

	// ErrMalformedResponse is returned when the body is not the expected JSON.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = errors.New("market data circuit open")

	// ErrUnknownInterval is returned for intervals without a known length.
	ErrUnknownInterval = errors.New("unknown candle interval")
)

// StatusError is a non-2xx response. It matches ErrHTTPStatus.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %d: %s", ErrHTTPStatus, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrHTTPStatus }

// RequestObserver receives one callback per HTTP attempt.
type RequestObserver func(endpoint string, d time.Duration, err error)

// HTTPClient implements Source over the market-data REST API.
// Requests are spaced by a fixed delay and never retried.
type HTTPClient struct {
	baseURL  string
	apiKey   string
	chain    string
	interval string
	pageSize int
	client   *http.Client

	requestDelay    time.Duration
	breakerFailures uint32
	breakerCooldown time.Duration

	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	observer RequestObserver
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *HTTPClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithInterval sets the candle interval ("1m", "5m", ...).
func WithInterval(interval string) ClientOption {
	return func(c *HTTPClient) {
		c.interval = interval
	}
}

// WithPageSize sets the number of intervals requested per page.
func WithPageSize(n int) ClientOption {
	return func(c *HTTPClient) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithRequestDelay sets the fixed delay between consecutive requests.
// Zero disables spacing.
func WithRequestDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.requestDelay = d
	}
}

// WithBreaker sets consecutive failures to trip and the open-state cooldown.
func WithBreaker(failures uint32, cooldown time.Duration) ClientOption {
	return func(c *HTTPClient) {
		if failures > 0 {
			c.breakerFailures = failures
		}
		if cooldown > 0 {
			c.breakerCooldown = cooldown
		}
	}
}

// WithChain sets the x-chain header value.
func WithChain(chain string) ClientOption {
	return func(c *HTTPClient) {
		c.chain = chain
	}
}

// WithObserver registers a per-request callback (metrics).
func WithObserver(o RequestObserver) ClientOption {
	return func(c *HTTPClient) {
		c.observer = o
	}
}

// NewHTTPClient creates a new market-data client.
func NewHTTPClient(apiKey string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:         DefaultBaseURL,
		apiKey:          apiKey,
		chain:           DefaultChain,
		interval:        DefaultInterval,
		pageSize:        DefaultPageSize,
		client:          &http.Client{Timeout: DefaultTimeout},
		requestDelay:    DefaultRequestDelay,
		breakerFailures: DefaultBreakerFailures,
		breakerCooldown: DefaultBreakerCooldown,
	}
	for _, opt := range opts {
		opt(c)
	}

	limit := rate.Inf
	if c.requestDelay > 0 {
		limit = rate.Every(c.requestDelay)
	}
	c.limiter = rate.NewLimiter(limit, 1)

	failures := c.breakerFailures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "marketdata",
		Timeout: c.breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return !apiFailure(err)
		},
	})
	return c
}

var _ Source = (*HTTPClient)(nil)

// candlesResponse is the raw body of the candlestick endpoint.
type candlesResponse struct {
	Data *struct {
		Candles []rawCandle `json:"candles"`
	} `json:"data"`
}

// rawCandle keeps every field as raw JSON so numbers and strings both survive.
type rawCandle struct {
	T json.RawMessage `json:"t"`
	O json.RawMessage `json:"o"`
	H json.RawMessage `json:"h"`
	L json.RawMessage `json:"l"`
	C json.RawMessage `json:"c"`
	V json.RawMessage `json:"v"`
}

// listingsResponse is the raw body of the new listing endpoint.
type listingsResponse struct {
	Data *struct {
		Items []listingItem `json:"items"`
	} `json:"data"`
}

type listingItem struct {
	Address          string          `json:"address"`
	Name             string          `json:"name"`
	Symbol           string          `json:"symbol"`
	Liquidity        float64         `json:"liquidity"`
	LiquidityAddedAt json.RawMessage `json:"liquidityAddedAt"`
}

// FetchCandles requests [from, to] in pages of pageSize intervals.
// Any page failure fails the whole fetch.
func (c *HTTPClient) FetchCandles(ctx context.Context, address string, from, to time.Time) ([]*domain.RawCandle, error) {
	step := domain.IntervalSeconds(c.interval)
	if step == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInterval, c.interval)
	}

	start, end := from.Unix(), to.Unix()
	span := step * int64(c.pageSize)

	var out []*domain.RawCandle
	for pageStart := start; pageStart <= end; pageStart += span {
		pageEnd := pageStart + span - 1
		if pageEnd > end {
			pageEnd = end
		}

		query := url.Values{}
		query.Set("interval", c.interval)
		query.Set("start_time", strconv.FormatInt(pageStart, 10))
		query.Set("end_time", strconv.FormatInt(pageEnd, 10))

		var resp candlesResponse
		if err := c.get(ctx, "candles", fmt.Sprintf(candlesPath, url.PathEscape(address)), query, &resp); err != nil {
			return nil, fmt.Errorf("candles %s [%d,%d]: %w", address, pageStart, pageEnd, err)
		}
		if resp.Data == nil {
			continue
		}

		for _, rc := range resp.Data.Candles {
			out = append(out, &domain.RawCandle{
				Address:   address,
				Timestamp: rawText(rc.T),
				Open:      rawText(rc.O),
				High:      rawText(rc.H),
				Low:       rawText(rc.L),
				Close:     rawText(rc.C),
				Volume:    rawText(rc.V),
			})
		}
	}
	return out, nil
}

// NewListings returns the newest token listings.
func (c *HTTPClient) NewListings(ctx context.Context, limit int) ([]*domain.TokenListing, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp listingsResponse
	if err := c.get(ctx, "new_listing", listingsPath, query, &resp); err != nil {
		return nil, fmt.Errorf("new listings: %w", err)
	}
	if resp.Data == nil {
		return nil, nil
	}

	out := make([]*domain.TokenListing, 0, len(resp.Data.Items))
	for _, it := range resp.Data.Items {
		if it.Address == "" {
			continue
		}
		out = append(out, &domain.TokenListing{
			Address:    it.Address,
			Name:       it.Name,
			Symbol:     it.Symbol,
			Liquidity:  it.Liquidity,
			ListedAtMs: parseListedAt(it.LiquidityAddedAt),
		})
	}
	return out, nil
}

// get waits for the limiter, then performs one GET through the breaker.
func (c *HTTPClient) get(ctx context.Context, endpoint, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	started := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.doGet(ctx, path, query, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if c.observer != nil {
		c.observer(endpoint, time.Since(started), err)
	}
	return err
}

func (c *HTTPClient) doGet(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-API-KEY", c.apiKey)
	if c.chain != "" {
		req.Header.Set("x-chain", c.chain)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// apiFailure reports whether err says the API itself is unhealthy.
// Answers about a single token (unknown address, bad body) and caller
// cancellation do not count.
func apiFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrMalformedResponse) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code >= 500:
			return true
		case se.Code == http.StatusUnauthorized, se.Code == http.StatusForbidden, se.Code == http.StatusTooManyRequests:
			return true
		default:
			return false
		}
	}
	return true
}

// rawText renders a raw JSON scalar as text. null and absent become "".
func rawText(m json.RawMessage) string {
	if len(m) == 0 || string(m) == "null" {
		return ""
	}
	if m[0] == '"' {
		var s string
		if err := json.Unmarshal(m, &s); err != nil {
			return ""
		}
		return s
	}
	return string(m)
}

// parseListedAt accepts unix seconds or an ISO timestamp; unknown → 0.
func parseListedAt(m json.RawMessage) int64 {
	s := rawText(m)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n * 1000
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
