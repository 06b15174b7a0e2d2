package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/nwp-forecast-service/internal/adapter/geosphere"
	httpadapter "github.com/couchcryptid/nwp-forecast-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/nwp-forecast-service/internal/adapter/kafka"
	"github.com/couchcryptid/nwp-forecast-service/internal/adapter/location"
	"github.com/couchcryptid/nwp-forecast-service/internal/config"
	"github.com/couchcryptid/nwp-forecast-service/internal/domain"
	"github.com/couchcryptid/nwp-forecast-service/internal/observability"
	"github.com/couchcryptid/nwp-forecast-service/internal/refresh"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Configured names first, then geocoding of free-form addresses when enabled.
	static := location.NewStaticResolver(cfg.Locations)
	resolver := location.ChainResolver{static}
	if cfg.GeocodingEnabled() {
		resolver = append(resolver, location.NewGeocodingResolver(cfg.GeocoderAPIKey, cfg.GeocoderCacheSize, metrics, logger))
		logger.Info("geocoding enabled", "cache_size", cfg.GeocoderCacheSize)
	}
	logger.Info("locations configured", "names", static.Names(), "forecast_location", cfg.ForecastLocation)

	client := geosphere.NewClient(
		geosphere.WithBaseURL(cfg.GeoSphereBaseURL),
		geosphere.WithModel(cfg.GeoSphereModel),
		geosphere.WithTimeout(cfg.GeoSphereTimeout),
		geosphere.WithRateLimit(cfg.GeoSphereRateLimit, cfg.GeoSphereRateBurst),
		geosphere.WithBreaker(cfg.BreakerMaxFailures, cfg.BreakerOpenTimeout),
		geosphere.WithDiagnosticSink(geosphere.LogSink{Logger: logger}),
		geosphere.WithMetrics(metrics),
		geosphere.WithLogger(logger),
	)

	opts := []refresh.Option{refresh.WithTimeout(cfg.RefreshTimeout)}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled() {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, refresh.WithPublisher(writer))
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	coord := refresh.New(cfg.ForecastLocation, resolver, client, logger, metrics, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Without a first forecast there is nothing to serve.
	if _, err := coord.Setup(ctx); err != nil {
		logger.Error("setup failed", "kind", domain.ErrorKind(err), "error", err)
		closeWriter(writer, logger)
		os.Exit(1)
	}

	scheduler := refresh.NewScheduler(coord, cfg.RefreshInterval, logger, metrics)
	if err := scheduler.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		closeWriter(writer, logger)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, coord, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	scheduler.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	closeWriter(writer, logger)

	logger.Info("shutdown complete")
}

func closeWriter(w *kafkaadapter.Writer, logger *slog.Logger) {
	if w == nil {
		return
	}
	if err := w.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
}
