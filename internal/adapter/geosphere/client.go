package geosphere

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/nwp-forecast-service/internal/domain"
	"github.com/couchcryptid/nwp-forecast-service/internal/observability"
)

const (
	DefaultBaseURL = "https://dataset.api.hub.geosphere.at"
	DefaultModel   = "nwp-v1-1h-2500m"
	DefaultTimeout = 10 * time.Second
)

// maxBodyBytes bounds how much of a response is read. A 90 hour window with
// all parameters is well under 100 KiB.
const maxBodyBytes = 8 << 20

// Client fetches point forecasts from the GeoSphere Austria dataset API.
type Client struct {
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client // borrowed; nil means a private transport per request
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	sink       DiagnosticSink
	metrics    *observability.Metrics
	logger     *slog.Logger

	requests atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithModel selects the forecast model id.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithTimeout bounds each request. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient makes the client borrow hc for every request. The caller
// keeps ownership and is responsible for closing it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit limits outgoing requests to rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithBreaker opens a circuit after maxFailures consecutive failures and
// lets a trial request through after openTimeout.
func WithBreaker(maxFailures uint32, openTimeout time.Duration) Option {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "geosphere",
			MaxRequests: 1,
			Timeout:     openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}
}

// WithDiagnosticSink receives every raw body and parsed forecast.
func WithDiagnosticSink(sink DiagnosticSink) Option {
	return func(c *Client) { c.sink = sink }
}

// WithMetrics records request outcomes and latency.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a GeoSphere client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch requests the forecast window described by q and parses it.
// Transport failures, timeouts and an open breaker are reported as
// *domain.ConnectionError; unexpected statuses and unusable bodies as
// *domain.ProviderError.
func (c *Client) Fetch(ctx context.Context, q domain.ForecastQuery) (*domain.Forecast, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.observe("rate_limited", 0)
			return nil, &domain.ConnectionError{Op: "wait for rate limiter", Err: err}
		}
	}

	start := time.Now()
	forecast, err := c.execute(ctx, q)
	c.observe(outcome(err), time.Since(start))
	if err != nil {
		c.logger.Warn("forecast request failed",
			"lat", q.Coordinates.Latitude, "lon", q.Coordinates.Longitude,
			"kind", domain.ErrorKind(err), "error", err)
		return nil, err
	}

	c.logger.Debug("forecast fetched",
		"lat", q.Coordinates.Latitude, "lon", q.Coordinates.Longitude,
		"hours", forecast.Len(), "series", len(forecast.Series))
	return forecast, nil
}

func (c *Client) execute(ctx context.Context, q domain.ForecastQuery) (*domain.Forecast, error) {
	if c.breaker == nil {
		return c.fetch(ctx, q)
	}
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, q)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &domain.ConnectionError{Op: "fetch forecast", Err: err}
	}
	if err != nil {
		return nil, err
	}
	return res.(*domain.Forecast), nil
}

func (c *Client) fetch(ctx context.Context, q domain.ForecastQuery) (*domain.Forecast, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = withRequestID(ctx, c.requests.Add(1))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(q), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	hc, release := c.acquire()
	defer release()

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &domain.ConnectionError{Op: "fetch forecast", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.ConnectionError{Op: "read forecast body", Err: err}
	}
	if c.sink != nil {
		c.sink.RawResponse(ctx, q, resp.StatusCode, body)
	}

	// 301 is accepted as-is; the dataset API has answered with it while
	// still sending the payload.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusMovedPermanently {
		provErr := &domain.ProviderError{StatusCode: resp.StatusCode, Message: "unexpected status"}
		if detail := bytes.TrimSpace(truncate(body, 512)); len(detail) > 0 {
			provErr.Err = errors.New(string(detail))
		}
		return nil, provErr
	}

	forecast, err := parseForecast(body)
	if err != nil {
		return nil, err
	}
	if c.sink != nil {
		c.sink.ParsedForecast(ctx, q, forecast)
	}
	return forecast, nil
}

// acquire returns the HTTP client for one request and a release func. A
// borrowed client is left alone; a private one is torn down on release.
func (c *Client) acquire() (*http.Client, func()) {
	if c.httpClient != nil {
		return c.httpClient, func() {}
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	hc := &http.Client{Transport: transport, Timeout: c.timeout}
	return hc, transport.CloseIdleConnections
}

func (c *Client) buildURL(q domain.ForecastQuery) string {
	u := fmt.Sprintf("%s/v1/timeseries/forecast/%s", c.baseURL, url.PathEscape(c.model))
	params := url.Values{
		"lat_lon":       {formatPoint(q.Coordinates)},
		"parameters":    ParameterKeys(),
		"start":         {formatTime(q.Start)},
		"end":           {formatTime(q.End)},
		"output_format": {"geojson"},
	}
	return u + "?" + params.Encode()
}

func (c *Client) observe(result string, d time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.ProviderRequests.WithLabelValues(result).Inc()
	if d > 0 {
		c.metrics.ProviderDuration.Observe(d.Seconds())
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsConnectionError(err):
		return "connection"
	case domain.IsProviderError(err):
		return "provider"
	default:
		return "error"
	}
}

func formatPoint(p domain.Coordinates) string {
	return strconv.FormatFloat(p.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(p.Longitude, 'f', -1, 64)
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
