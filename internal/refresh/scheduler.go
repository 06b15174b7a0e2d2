package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/couchcryptid/nwp-forecast-service/internal/domain"
	"github.com/couchcryptid/nwp-forecast-service/internal/observability"
)

// Refresher is the entry point a Scheduler ticks.
type Refresher interface {
	RefreshNow(ctx context.Context) (*domain.Forecast, error)
}

// TickResult is the outcome of one scheduled refresh. Err is nil on success
// and ErrRefreshInProgress when the tick was coalesced.
type TickResult struct {
	At       time.Time
	Forecast *domain.Forecast
	Err      error
}

// Scheduler triggers a Refresher at a fixed interval. The first tick fires
// one interval after Start; callers run the initial refresh themselves.
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	cron      *gocron.Scheduler
	results   chan TickResult
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewScheduler creates a Scheduler. Results of the most recent ticks are
// buffered on Results; older ones are dropped when nobody reads them.
func NewScheduler(r Refresher, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		refresher: r,
		interval:  interval,
		cron:      gocron.NewScheduler(time.UTC),
		results:   make(chan TickResult, 8),
		logger:    logger,
		metrics:   metrics,
	}
}

// Start schedules periodic refreshes until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.Every(s.interval).WaitForSchedule().SingletonMode().Do(func() {
		if ctx.Err() != nil {
			return
		}
		s.Tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}

	s.cron.StartAsync()
	s.metrics.SchedulerRunning.Set(1)
	s.logger.Info("refresh scheduler started", "interval", s.interval)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop cancels future ticks. It is safe to call more than once.
func (s *Scheduler) Stop() {
	if !s.cron.IsRunning() {
		return
	}
	s.cron.Stop()
	s.metrics.SchedulerRunning.Set(0)
	s.logger.Info("refresh scheduler stopped")
}

// Tick runs one refresh and reports its result.
func (s *Scheduler) Tick(ctx context.Context) TickResult {
	f, err := s.refresher.RefreshNow(ctx)
	res := TickResult{At: time.Now(), Forecast: f, Err: err}

	switch {
	case err == nil:
	case errors.Is(err, ErrRefreshInProgress):
		s.logger.Debug("scheduled refresh coalesced")
	default:
		// Stale data stays in place; the next tick retries.
		s.logger.Warn("scheduled refresh failed", "kind", domain.ErrorKind(err), "error", err)
	}

	select {
	case s.results <- res:
	default:
		// Drop the oldest result to make room.
		select {
		case <-s.results:
		default:
		}
		select {
		case s.results <- res:
		default:
		}
	}
	return res
}

// Results delivers tick outcomes for callers that want to react to them.
func (s *Scheduler) Results() <-chan TickResult {
	return s.results
}
