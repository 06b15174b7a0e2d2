package http

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/nwp-forecast-service/internal/domain"
	"github.com/couchcryptid/nwp-forecast-service/internal/refresh"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ForecastService is the read and refresh surface of the coordinator.
type ForecastService interface {
	ReadinessChecker
	Current() (domain.CurrentConditions, bool)
	HourlyForecast() iter.Seq[domain.HourlyForecast]
	Snapshot() (domain.Snapshot, bool)
	Status() refresh.Status
	RefreshNow(ctx context.Context) (*domain.Forecast, error)
}

// Server exposes forecast, health, readiness, and metrics HTTP endpoints.
type Server struct {
	httpServer *http.Server
	forecasts  ForecastService
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the /v1 forecast routes plus
// /healthz, /readyz, and /metrics.
func NewServer(addr string, forecasts ForecastService, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		forecasts: forecasts,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(forecasts))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/weather/current", s.handleCurrent)
	mux.HandleFunc("GET /v1/weather/hourly", s.handleHourly)
	mux.HandleFunc("GET /v1/forecast", s.handleForecast)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("POST /v1/refresh", s.handleRefresh)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

type currentResponse struct {
	Location  string                   `json:"location"`
	FetchedAt time.Time                `json:"fetched_at"`
	Stale     bool                     `json:"stale"`
	Current   domain.CurrentConditions `json:"current"`
}

func (s *Server) handleCurrent(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.forecasts.Snapshot()
	if !ok {
		writeUnavailable(w, s.forecasts.Status())
		return
	}
	current, ok := s.forecasts.Current()
	if !ok {
		writeUnavailable(w, s.forecasts.Status())
		return
	}
	writeJSON(w, http.StatusOK, currentResponse{
		Location:  snap.Location,
		FetchedAt: snap.FetchedAt,
		Stale:     s.forecasts.Status().Stale,
		Current:   current,
	})
}

type hourlyResponse struct {
	Location  string                  `json:"location"`
	FetchedAt time.Time               `json:"fetched_at"`
	Stale     bool                    `json:"stale"`
	Hours     []domain.HourlyForecast `json:"hours"`
}

func (s *Server) handleHourly(w http.ResponseWriter, r *http.Request) {
	limit := -1
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	snap, ok := s.forecasts.Snapshot()
	if !ok {
		writeUnavailable(w, s.forecasts.Status())
		return
	}

	hours := make([]domain.HourlyForecast, 0)
	for h := range s.forecasts.HourlyForecast() {
		if limit >= 0 && len(hours) >= limit {
			break
		}
		hours = append(hours, h)
	}
	writeJSON(w, http.StatusOK, hourlyResponse{
		Location:  snap.Location,
		FetchedAt: snap.FetchedAt,
		Stale:     s.forecasts.Status().Stale,
		Hours:     hours,
	})
}

func (s *Server) handleForecast(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.forecasts.Snapshot()
	if !ok {
		writeUnavailable(w, s.forecasts.Status())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.forecasts.Status())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	_, err := s.forecasts.RefreshNow(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.forecasts.Status())
	case errors.Is(err, refresh.ErrRefreshInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		s.logger.Warn("manual refresh failed", "kind", domain.ErrorKind(err), "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":  err.Error(),
			"kind":   domain.ErrorKind(err),
			"status": s.forecasts.Status(),
		})
	}
}

func writeUnavailable(w http.ResponseWriter, status refresh.Status) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]any{
		"error":  "no forecast available",
		"status": status,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
