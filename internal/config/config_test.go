package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nwp-forecast-service/internal/domain"
)

const testGeocoderKey = "test-geocoder-key"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "home", cfg.ForecastLocation)
	assert.Equal(t, map[string]domain.Coordinates{"home": {Latitude: 48.2082, Longitude: 16.3738}}, cfg.Locations)
	assert.Equal(t, 30*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 30*time.Second, cfg.RefreshTimeout)
	assert.Equal(t, "https://dataset.api.hub.geosphere.at", cfg.GeoSphereBaseURL)
	assert.Equal(t, "nwp-v1-1h-2500m", cfg.GeoSphereModel)
	assert.Equal(t, 10*time.Second, cfg.GeoSphereTimeout)
	assert.Equal(t, 5.0, cfg.GeoSphereRateLimit)
	assert.Equal(t, 1, cfg.GeoSphereRateBurst)
	assert.Equal(t, uint32(5), cfg.BreakerMaxFailures)
	assert.Equal(t, time.Minute, cfg.BreakerOpenTimeout)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled())
	assert.Equal(t, "nwp-forecasts", cfg.KafkaTopic)
	assert.False(t, cfg.GeocodingEnabled())
	assert.Equal(t, 100, cfg.GeocoderCacheSize)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("FORECAST_LOCATION", "cabin")
	t.Setenv("LOCATIONS", "home=48.2082,16.3738; cabin=47.2692,11.4041")
	t.Setenv("REFRESH_INTERVAL", "1h")
	t.Setenv("REFRESH_TIMEOUT", "45s")
	t.Setenv("GEOSPHERE_BASE_URL", "http://localhost:8081")
	t.Setenv("GEOSPHERE_MODEL", "nwp-v1-1h-1km")
	t.Setenv("GEOSPHERE_TIMEOUT", "3s")
	t.Setenv("GEOSPHERE_RATE_LIMIT", "0.5")
	t.Setenv("GEOSPHERE_RATE_BURST", "2")
	t.Setenv("BREAKER_MAX_FAILURES", "3")
	t.Setenv("BREAKER_OPEN_TIMEOUT", "2m")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-forecasts")
	t.Setenv("GEOCODER_API_KEY", testGeocoderKey)
	t.Setenv("GEOCODER_CACHE_SIZE", "20")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "cabin", cfg.ForecastLocation)
	assert.Len(t, cfg.Locations, 2)
	assert.Equal(t, domain.Coordinates{Latitude: 47.2692, Longitude: 11.4041}, cfg.Locations["cabin"])
	assert.Equal(t, time.Hour, cfg.RefreshInterval)
	assert.Equal(t, 45*time.Second, cfg.RefreshTimeout)
	assert.Equal(t, "http://localhost:8081", cfg.GeoSphereBaseURL)
	assert.Equal(t, "nwp-v1-1h-1km", cfg.GeoSphereModel)
	assert.Equal(t, 3*time.Second, cfg.GeoSphereTimeout)
	assert.Equal(t, 0.5, cfg.GeoSphereRateLimit)
	assert.Equal(t, 2, cfg.GeoSphereRateBurst)
	assert.Equal(t, uint32(3), cfg.BreakerMaxFailures)
	assert.Equal(t, 2*time.Minute, cfg.BreakerOpenTimeout)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, "custom-forecasts", cfg.KafkaTopic)
	assert.True(t, cfg.GeocodingEnabled())
	assert.Equal(t, testGeocoderKey, cfg.GeocoderAPIKey)
	assert.Equal(t, 20, cfg.GeocoderCacheSize)
}

func TestLoad_InvalidDurations(t *testing.T) {
	for _, key := range []string{"SHUTDOWN_TIMEOUT", "REFRESH_INTERVAL", "REFRESH_TIMEOUT", "GEOSPHERE_TIMEOUT", "BREAKER_OPEN_TIMEOUT"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "not-a-duration")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_RefreshIntervalTooShort(t *testing.T) {
	t.Setenv("REFRESH_INTERVAL", "10s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REFRESH_INTERVAL")
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}

func TestLoad_InvalidBaseURL(t *testing.T) {
	t.Setenv("GEOSPHERE_BASE_URL", "not a url")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEOSPHERE_BASE_URL")
}

func TestLoad_InvalidNumbers(t *testing.T) {
	for _, key := range []string{"GEOSPHERE_RATE_LIMIT", "GEOSPHERE_RATE_BURST", "BREAKER_MAX_FAILURES", "GEOCODER_CACHE_SIZE"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "abc")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_BreakerMaxFailuresOutOfRange(t *testing.T) {
	for _, v := range []string{"-1", "4294967297"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("BREAKER_MAX_FAILURES", v)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "BREAKER_MAX_FAILURES")
		})
	}
}

func TestLoad_ZeroRateBurst(t *testing.T) {
	t.Setenv("GEOSPHERE_RATE_BURST", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEOSPHERE_RATE_BURST")
}

func TestLoad_UnknownLocationWithoutGeocoder(t *testing.T) {
	t.Setenv("FORECAST_LOCATION", "Innsbruck, Austria")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FORECAST_LOCATION")
}

func TestLoad_UnknownLocationWithGeocoder(t *testing.T) {
	t.Setenv("FORECAST_LOCATION", "Innsbruck, Austria")
	t.Setenv("GEOCODER_API_KEY", testGeocoderKey)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Innsbruck, Austria", cfg.ForecastLocation)
}

func TestLoad_InvalidLocations(t *testing.T) {
	t.Setenv("LOCATIONS", "home=north,east")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOCATIONS")
}

func TestParseLocations(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]domain.Coordinates
		wantErr string
	}{
		{
			name:  "single",
			input: "home=48.2082,16.3738",
			want:  map[string]domain.Coordinates{"home": {Latitude: 48.2082, Longitude: 16.3738}},
		},
		{
			name:  "multiple with whitespace and trailing separator",
			input: " home = 48.2 , 16.4 ; graz=47.07,15.44;",
			want: map[string]domain.Coordinates{
				"home": {Latitude: 48.2, Longitude: 16.4},
				"graz": {Latitude: 47.07, Longitude: 15.44},
			},
		},
		{
			name:  "empty",
			input: "",
			want:  map[string]domain.Coordinates{},
		},
		{name: "missing name", input: "=48,16", wantErr: "want name=lat,lon"},
		{name: "missing longitude", input: "home=48", wantErr: "want name=lat,lon"},
		{name: "latitude out of range", input: "home=91,16", wantErr: "invalid latitude"},
		{name: "longitude out of range", input: "home=48,181", wantErr: "invalid longitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLocations(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
