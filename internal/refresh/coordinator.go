package refresh

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/nwp-forecast-service/internal/domain"
	"github.com/couchcryptid/nwp-forecast-service/internal/observability"
)

// Fetcher retrieves a forecast for a query window.
type Fetcher interface {
	Fetch(ctx context.Context, q domain.ForecastQuery) (*domain.Forecast, error)
}

// Publisher hands a fresh snapshot to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, s domain.Snapshot) error
}

// ErrRefreshInProgress is returned when a refresh is requested while another
// one is still running. The request is dropped, not queued.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// UpdateFailedError is the uniform failure of one refresh cycle. Err keeps
// the cause: domain.ErrLocationNotFound, *domain.ConnectionError or
// *domain.ProviderError.
type UpdateFailedError struct {
	Location string
	Err      error
}

func (e *UpdateFailedError) Error() string {
	return fmt.Sprintf("update failed for %q: %v", e.Location, e.Err)
}

func (e *UpdateFailedError) Unwrap() error { return e.Err }

// SetupError reports that the first refresh failed, so there is no value to
// serve at all.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string { return "setup failed: " + e.Err.Error() }

func (e *SetupError) Unwrap() error { return e.Err }

// Coordinator owns the latest forecast for one location and is its only
// mutator. At most one refresh runs at a time.
type Coordinator struct {
	location  string
	resolver  domain.LocationResolver
	fetcher   Fetcher
	publisher Publisher
	clock     clockwork.Clock
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics

	inFlight atomic.Bool

	mu          sync.RWMutex
	state       State
	snapshot    *domain.Snapshot
	lastErr     error
	lastAttempt time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithPublisher publishes every successful refresh.
func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithTimeout bounds a whole refresh cycle, resolve and fetch included.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// New creates a Coordinator for the location reference.
func New(location string, resolver domain.LocationResolver, fetcher Fetcher, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Coordinator {
	c := &Coordinator{
		location: location,
		resolver: resolver,
		fetcher:  fetcher,
		clock:    clockwork.NewRealClock(),
		logger:   logger.With("location", location),
		metrics:  metrics,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Setup performs the first refresh. Any failure is fatal because there is no
// earlier forecast to fall back on.
func (c *Coordinator) Setup(ctx context.Context) (*domain.Forecast, error) {
	f, err := c.RefreshNow(ctx)
	if err != nil {
		return nil, &SetupError{Err: err}
	}
	return f, nil
}

// RefreshNow runs one refresh cycle. It returns ErrRefreshInProgress when a
// cycle is already running, or an *UpdateFailedError when this one fails. On
// failure the previously stored forecast stays available.
func (c *Coordinator) RefreshNow(ctx context.Context) (*domain.Forecast, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.metrics.Refreshes.WithLabelValues("coalesced").Inc()
		c.logger.Debug("refresh skipped, another is in flight")
		return nil, ErrRefreshInProgress
	}
	defer c.inFlight.Store(false)

	return c.refresh(ctx)
}

func (c *Coordinator) refresh(ctx context.Context) (*domain.Forecast, error) {
	start := c.clock.Now()
	c.mu.Lock()
	c.state = StateRefreshing
	c.lastAttempt = start
	c.mu.Unlock()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	coords, err := c.resolver.Resolve(ctx, c.location)
	if err != nil {
		return nil, c.fail(err)
	}

	q := domain.NewForecastQuery(coords, start.UTC())
	c.logger.Debug("fetching forecast", "lat", coords.Latitude, "lon", coords.Longitude, "start", q.Start, "end", q.End)

	f, err := c.fetcher.Fetch(ctx, q)
	if err != nil {
		return nil, c.fail(err)
	}
	if f == nil || f.Len() == 0 {
		return nil, c.fail(&domain.ProviderError{Message: "malformed response: empty forecast"})
	}

	snap := domain.Snapshot{
		Location:    c.location,
		Coordinates: coords,
		FetchedAt:   c.clock.Now().UTC(),
		Forecast:    f,
	}
	c.mu.Lock()
	c.snapshot = &snap
	c.state = StateReady
	c.lastErr = nil
	c.mu.Unlock()

	c.metrics.Refreshes.WithLabelValues("success").Inc()
	c.metrics.RefreshDuration.Observe(c.clock.Since(start).Seconds())
	c.metrics.LastSuccess.Set(float64(snap.FetchedAt.Unix()))
	c.metrics.ForecastHours.Set(float64(f.Len()))
	c.metrics.ForecastStale.Set(0)
	c.logger.Info("forecast refreshed", "hours", f.Len(), "series", len(f.Series))

	c.publish(ctx, snap)
	return f, nil
}

func (c *Coordinator) fail(cause error) error {
	err := &UpdateFailedError{Location: c.location, Err: cause}
	kind := domain.ErrorKind(cause)

	c.mu.Lock()
	c.state = StateFailed
	c.lastErr = err
	stale := c.snapshot != nil
	c.mu.Unlock()

	c.metrics.Refreshes.WithLabelValues(kind).Inc()
	if stale {
		c.metrics.ForecastStale.Set(1)
		c.logger.Warn("refresh failed, serving previous forecast", "kind", kind, "error", cause)
	} else {
		c.logger.Warn("refresh failed, no forecast available", "kind", kind, "error", cause)
	}
	return err
}

func (c *Coordinator) publish(ctx context.Context, snap domain.Snapshot) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, snap); err != nil {
		c.metrics.PublishErrors.Inc()
		c.logger.Warn("publish snapshot failed", "error", err)
	}
}

// LastValue returns the last successfully fetched forecast, or nil.
func (c *Coordinator) LastValue() *domain.Forecast {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return nil
	}
	return c.snapshot.Forecast
}

// Snapshot returns the stored forecast together with where and when it was
// fetched.
func (c *Coordinator) Snapshot() (domain.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return domain.Snapshot{}, false
	}
	return *c.snapshot, true
}

// LastError returns the failure of the most recent refresh, or nil if it
// succeeded.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// State returns the current refresh state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Status summarizes the coordinator for health and diagnostics.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Status{
		Location:    c.location,
		State:       c.state,
		LastAttempt: c.lastAttempt,
		ErrorKind:   domain.ErrorKind(c.lastErr),
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	if c.snapshot != nil {
		s.FetchedAt = c.snapshot.FetchedAt
		s.Hours = c.snapshot.Forecast.Len()
		s.Stale = c.lastErr != nil
	}
	return s
}

// CheckReadiness returns nil once a forecast is available.
func (c *Coordinator) CheckReadiness(_ context.Context) error {
	if c.LastValue() == nil {
		if err := c.LastError(); err != nil {
			return fmt.Errorf("no forecast available: %w", err)
		}
		return errors.New("no forecast available yet")
	}
	return nil
}

// Condition returns the current weather condition.
func (c *Coordinator) Condition() domain.Condition {
	return domain.CurrentCondition(c.LastValue())
}

// NativeTemperature returns the current temperature in °C.
func (c *Coordinator) NativeTemperature() (float64, bool) {
	return domain.Temperature(c.LastValue(), 0)
}

// NativeWindSpeed returns the current wind speed in m/s.
func (c *Coordinator) NativeWindSpeed() (float64, bool) {
	return domain.WindSpeed(c.LastValue(), 0)
}

// NativePressure returns the current surface pressure in hPa.
func (c *Coordinator) NativePressure() (float64, bool) {
	return domain.Pressure(c.LastValue(), 0)
}

// Current returns the projection of the first forecast hour.
func (c *Coordinator) Current() (domain.CurrentConditions, bool) {
	return domain.Current(c.LastValue())
}

// HourlyForecast yields the stored forecast hours that are not yet past.
func (c *Coordinator) HourlyForecast() iter.Seq[domain.HourlyForecast] {
	return domain.HourlySeries(c.LastValue(), c.clock.Now())
}
