package location

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kelvins/geocoder"

	"github.com/couchcryptid/nwp-forecast-service/internal/domain"
	"github.com/couchcryptid/nwp-forecast-service/internal/observability"
)

// geocodeFunc matches geocoder.Geocoding.
type geocodeFunc func(geocoder.Address) (geocoder.Location, error)

// GeocodingResolver resolves free-form addresses ("Innsbruck, Austria")
// through the Google Geocoding API, caching successful lookups.
type GeocodingResolver struct {
	geocode geocodeFunc
	cache   *lruCache[domain.Coordinates]
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewGeocodingResolver creates a resolver using apiKey. The geocoder library
// keeps the key in package state, so all resolvers share it.
func NewGeocodingResolver(apiKey string, cacheSize int, metrics *observability.Metrics, logger *slog.Logger) *GeocodingResolver {
	geocoder.ApiKey = apiKey
	return newGeocodingResolver(geocoder.Geocoding, cacheSize, metrics, logger)
}

func newGeocodingResolver(fn geocodeFunc, cacheSize int, metrics *observability.Metrics, logger *slog.Logger) *GeocodingResolver {
	return &GeocodingResolver{
		geocode: fn,
		cache:   newLRUCache[domain.Coordinates](cacheSize),
		metrics: metrics,
		logger:  logger,
	}
}

type geocodeResult struct {
	loc geocoder.Location
	err error
}

func (r *GeocodingResolver) Resolve(ctx context.Context, ref string) (domain.Coordinates, error) {
	key := normalize(ref)
	if key == "" {
		return domain.Coordinates{}, fmt.Errorf("empty location: %w", domain.ErrLocationNotFound)
	}
	if c, ok := r.cache.get(key); ok {
		r.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return c, nil
	}
	r.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	// The geocoder library takes no context; the lookup is abandoned, not
	// cancelled, when ctx ends first.
	done := make(chan geocodeResult, 1)
	go func() {
		loc, err := r.geocode(parseAddress(ref))
		done <- geocodeResult{loc: loc, err: err}
	}()

	var res geocodeResult
	select {
	case <-ctx.Done():
		r.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.Coordinates{}, &domain.ConnectionError{Op: "geocode " + ref, Err: ctx.Err()}
	case res = <-done:
	}

	if res.err != nil {
		if isNoResults(res.err) {
			r.metrics.GeocodeRequests.WithLabelValues("not_found").Inc()
			return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", ref, domain.ErrLocationNotFound)
		}
		r.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		r.logger.Warn("geocoding failed", "location", ref, "error", res.err)
		return domain.Coordinates{}, &domain.ConnectionError{Op: "geocode " + ref, Err: res.err}
	}
	if res.loc.Latitude == 0 && res.loc.Longitude == 0 {
		r.metrics.GeocodeRequests.WithLabelValues("not_found").Inc()
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", ref, domain.ErrLocationNotFound)
	}

	r.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	c := domain.Coordinates{Latitude: res.loc.Latitude, Longitude: res.loc.Longitude}
	r.cache.put(key, c)
	r.logger.Info("location geocoded", "location", ref, "lat", c.Latitude, "lon", c.Longitude)
	return c, nil
}

// parseAddress splits "street, city, country" style references. A single
// part is treated as a city.
func parseAddress(ref string) geocoder.Address {
	var parts []string
	for _, p := range strings.Split(ref, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 0:
		return geocoder.Address{}
	case 1:
		return geocoder.Address{City: parts[0]}
	case 2:
		return geocoder.Address{City: parts[0], Country: parts[1]}
	default:
		return geocoder.Address{
			Street:  strings.Join(parts[:len(parts)-2], ", "),
			City:    parts[len(parts)-2],
			Country: parts[len(parts)-1],
		}
	}
}

func isNoResults(err error) bool {
	msg := strings.ToUpper(err.Error())
	return strings.Contains(msg, "ZERO_RESULTS") || strings.Contains(msg, "NOT FOUND")
}
