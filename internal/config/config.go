package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/nwp-forecast-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" validate:"required"`
	LogLevel        string        `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat       string        `env:"LOG_FORMAT" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" validate:"gt=0"`

	// ForecastLocation names the entry of Locations (or an address when
	// geocoding is enabled) that the service forecasts for.
	ForecastLocation string                        `env:"FORECAST_LOCATION" validate:"required"`
	Locations        map[string]domain.Coordinates `env:"LOCATIONS"`

	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" validate:"gte=1m"`
	RefreshTimeout  time.Duration `env:"REFRESH_TIMEOUT" validate:"gt=0"`

	// GeoSphere Austria dataset API.
	GeoSphereBaseURL   string        `env:"GEOSPHERE_BASE_URL" validate:"required,url"`
	GeoSphereModel     string        `env:"GEOSPHERE_MODEL" validate:"required"`
	GeoSphereTimeout   time.Duration `env:"GEOSPHERE_TIMEOUT" validate:"gt=0"`
	GeoSphereRateLimit float64       `env:"GEOSPHERE_RATE_LIMIT" validate:"gt=0"`
	GeoSphereRateBurst int           `env:"GEOSPHERE_RATE_BURST" validate:"gte=1"`

	BreakerMaxFailures uint32        `env:"BREAKER_MAX_FAILURES" validate:"gte=1"`
	BreakerOpenTimeout time.Duration `env:"BREAKER_OPEN_TIMEOUT" validate:"gt=0"`

	// Kafka publishing is enabled when KafkaBrokers is non-empty.
	KafkaBrokers []string `env:"KAFKA_BROKERS"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" validate:"required_with=KafkaBrokers"`

	// Geocoding of address references is enabled when GeocoderAPIKey is set.
	GeocoderAPIKey    string `env:"GEOCODER_API_KEY"`
	GeocoderCacheSize int    `env:"GEOCODER_CACHE_SIZE" validate:"gte=1"`
}

// KafkaEnabled reports whether snapshots should be published.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// GeocodingEnabled reports whether address references may be geocoded.
func (c *Config) GeocodingEnabled() bool { return c.GeocoderAPIKey != "" }

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first when present; variables
// already set in the environment take precedence over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ForecastLocation: sharedcfg.EnvOrDefault("FORECAST_LOCATION", "home"),
		GeoSphereBaseURL: sharedcfg.EnvOrDefault("GEOSPHERE_BASE_URL", "https://dataset.api.hub.geosphere.at"),
		GeoSphereModel:   sharedcfg.EnvOrDefault("GEOSPHERE_MODEL", "nwp-v1-1h-2500m"),
		KafkaTopic:       sharedcfg.EnvOrDefault("KAFKA_TOPIC", "nwp-forecasts"),
		GeocoderAPIKey:   os.Getenv("GEOCODER_API_KEY"),
		ShutdownTimeout:  shutdownTimeout,
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"REFRESH_INTERVAL", "30m", &cfg.RefreshInterval},
		{"REFRESH_TIMEOUT", "30s", &cfg.RefreshTimeout},
		{"GEOSPHERE_TIMEOUT", "10s", &cfg.GeoSphereTimeout},
		{"BREAKER_OPEN_TIMEOUT", "1m", &cfg.BreakerOpenTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = parseDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	if cfg.GeoSphereRateLimit, err = parseFloat("GEOSPHERE_RATE_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.GeoSphereRateBurst, err = parseInt("GEOSPHERE_RATE_BURST", 1); err != nil {
		return nil, err
	}
	if cfg.GeocoderCacheSize, err = parseInt("GEOCODER_CACHE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.BreakerMaxFailures, err = parseUint32("BREAKER_MAX_FAILURES", 5); err != nil {
		return nil, err
	}

	if cfg.Locations, err = ParseLocations(sharedcfg.EnvOrDefault("LOCATIONS", "home=48.2082,16.3738")); err != nil {
		return nil, fmt.Errorf("invalid LOCATIONS: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, describeValidation(err)
	}
	if _, ok := cfg.Locations[cfg.ForecastLocation]; !ok && !cfg.GeocodingEnabled() {
		return nil, fmt.Errorf("FORECAST_LOCATION %q is not in LOCATIONS and GEOCODER_API_KEY is not set", cfg.ForecastLocation)
	}

	return cfg, nil
}

// ParseLocations parses "name=lat,lon;name=lat,lon" into named coordinates.
func ParseLocations(s string) (map[string]domain.Coordinates, error) {
	locs := make(map[string]domain.Coordinates)
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, point, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("entry %q: want name=lat,lon", entry)
		}
		latStr, lonStr, ok := strings.Cut(point, ",")
		if !ok {
			return nil, fmt.Errorf("entry %q: want name=lat,lon", entry)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("entry %q: invalid latitude", entry)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("entry %q: invalid longitude", entry)
		}
		locs[strings.TrimSpace(name)] = domain.Coordinates{Latitude: lat, Longitude: lon}
	}
	return locs, nil
}

var validate = newValidator()

// newValidator reports struct fields by their env var name so validation
// errors point at the setting to fix.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("invalid %s: must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("invalid %s: must satisfy %s", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseUint32(key string, def uint32) (uint32, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return uint32(n), nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
