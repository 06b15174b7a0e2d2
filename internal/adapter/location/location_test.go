package location

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nwp-forecast-service/internal/domain"
	"github.com/couchcryptid/nwp-forecast-service/internal/observability"
)

var (
	vienna    = domain.Coordinates{Latitude: 48.2082, Longitude: 16.3738}
	innsbruck = domain.Coordinates{Latitude: 47.2692, Longitude: 11.4041}
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- StaticResolver ---

func TestStaticResolver_Resolve(t *testing.T) {
	r := NewStaticResolver(map[string]domain.Coordinates{"Home": vienna})

	got, err := r.Resolve(context.Background(), "  home ")
	require.NoError(t, err)
	assert.Equal(t, vienna, got)

	_, err = r.Resolve(context.Background(), "office")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLocationNotFound)
	assert.Contains(t, err.Error(), "office")
}

func TestStaticResolver_Names(t *testing.T) {
	r := NewStaticResolver(map[string]domain.Coordinates{"home": vienna, "cabin": innsbruck})
	assert.Equal(t, []string{"cabin", "home"}, r.Names())
}

// --- ChainResolver ---

type stubResolver struct {
	coords domain.Coordinates
	err    error
	calls  int
}

func (s *stubResolver) Resolve(context.Context, string) (domain.Coordinates, error) {
	s.calls++
	return s.coords, s.err
}

func TestChainResolver_FallsThroughOnNotFound(t *testing.T) {
	first := &stubResolver{err: domain.ErrLocationNotFound}
	second := &stubResolver{coords: innsbruck}

	got, err := ChainResolver{first, second}.Resolve(context.Background(), "Innsbruck, Austria")
	require.NoError(t, err)
	assert.Equal(t, innsbruck, got)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestChainResolver_StopsOnOtherErrors(t *testing.T) {
	boom := &domain.ConnectionError{Op: "geocode", Err: errors.New("dial tcp: refused")}
	first := &stubResolver{err: boom}
	second := &stubResolver{coords: innsbruck}

	_, err := ChainResolver{first, second}.Resolve(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, domain.IsConnectionError(err))
	assert.Equal(t, 0, second.calls)
}

func TestChainResolver_AllMiss(t *testing.T) {
	_, err := ChainResolver{&stubResolver{err: domain.ErrLocationNotFound}}.Resolve(context.Background(), "nowhere")
	assert.ErrorIs(t, err, domain.ErrLocationNotFound)

	_, err = ChainResolver{}.Resolve(context.Background(), "nowhere")
	assert.ErrorIs(t, err, domain.ErrLocationNotFound)
}

// --- GeocodingResolver ---

type fakeGeocoder struct {
	calls atomic.Int32
	last  atomic.Pointer[geocoder.Address]
	loc   geocoder.Location
	err   error
	delay time.Duration
}

func (f *fakeGeocoder) geocode(a geocoder.Address) (geocoder.Location, error) {
	f.calls.Add(1)
	f.last.Store(&a)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.loc, f.err
}

func TestGeocodingResolver_CachesHits(t *testing.T) {
	fake := &fakeGeocoder{loc: geocoder.Location{Latitude: innsbruck.Latitude, Longitude: innsbruck.Longitude}}
	m := observability.NewMetricsForTesting()
	r := newGeocodingResolver(fake.geocode, 10, m, testLogger())

	got, err := r.Resolve(context.Background(), "Innsbruck, Austria")
	require.NoError(t, err)
	assert.Equal(t, innsbruck, got)

	got, err = r.Resolve(context.Background(), "innsbruck, austria")
	require.NoError(t, err)
	assert.Equal(t, innsbruck, got)

	assert.Equal(t, int32(1), fake.calls.Load(), "second lookup should be served from cache")
	assert.Equal(t, geocoder.Address{City: "Innsbruck", Country: "Austria"}, *fake.last.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("success")))
}

func TestGeocodingResolver_NoResults(t *testing.T) {
	fake := &fakeGeocoder{err: errors.New("geocoding failed: ZERO_RESULTS")}
	r := newGeocodingResolver(fake.geocode, 10, observability.NewMetricsForTesting(), testLogger())

	_, err := r.Resolve(context.Background(), "Atlantis")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLocationNotFound)

	// Misses are not cached.
	_, _ = r.Resolve(context.Background(), "Atlantis")
	assert.Equal(t, int32(2), fake.calls.Load())
}

func TestGeocodingResolver_ZeroLocationIsNotFound(t *testing.T) {
	fake := &fakeGeocoder{}
	r := newGeocodingResolver(fake.geocode, 10, observability.NewMetricsForTesting(), testLogger())

	_, err := r.Resolve(context.Background(), "somewhere")
	assert.ErrorIs(t, err, domain.ErrLocationNotFound)
}

func TestGeocodingResolver_TransportError(t *testing.T) {
	fake := &fakeGeocoder{err: errors.New("Get \"https://maps.googleapis.com\": dial tcp: i/o timeout")}
	r := newGeocodingResolver(fake.geocode, 10, observability.NewMetricsForTesting(), testLogger())

	_, err := r.Resolve(context.Background(), "Graz")
	require.Error(t, err)
	assert.True(t, domain.IsConnectionError(err))
	assert.NotErrorIs(t, err, domain.ErrLocationNotFound)
}

func TestGeocodingResolver_ContextCancelled(t *testing.T) {
	fake := &fakeGeocoder{loc: geocoder.Location{Latitude: 1, Longitude: 1}, delay: time.Second}
	r := newGeocodingResolver(fake.geocode, 10, observability.NewMetricsForTesting(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Resolve(ctx, "Linz")
	require.Error(t, err)
	assert.True(t, domain.IsConnectionError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGeocodingResolver_EmptyReference(t *testing.T) {
	fake := &fakeGeocoder{}
	r := newGeocodingResolver(fake.geocode, 10, observability.NewMetricsForTesting(), testLogger())

	_, err := r.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrLocationNotFound)
	assert.Equal(t, int32(0), fake.calls.Load())
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in   string
		want geocoder.Address
	}{
		{"Salzburg", geocoder.Address{City: "Salzburg"}},
		{"Graz, Austria", geocoder.Address{City: "Graz", Country: "Austria"}},
		{"Stephansplatz 1, Wien, Austria", geocoder.Address{Street: "Stephansplatz 1", City: "Wien", Country: "Austria"}},
		{" , ", geocoder.Address{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseAddress(tt.in), tt.in)
	}
}

// --- lruCache ---

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newLRUCache[int](2)
	c.put("a", 1)
	c.put("b", 2)

	_, ok := c.get("a") // a becomes most recent
	require.True(t, ok)

	c.put("c", 3) // evicts b
	assert.Equal(t, 2, c.size())

	_, ok = c.get("b")
	assert.False(t, ok)
	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache[string](2)
	c.put("k", "old")
	c.put("k", "new")

	v, ok := c.get("k")
	require.True(t, ok)
	assert.Equal(t, "new", v)
	assert.Equal(t, 1, c.size())
}

func TestLRUCache_SingleEntry(t *testing.T) {
	c := newLRUCache[int](1)
	c.put("a", 1)
	c.put("b", 2)

	_, ok := c.get("a")
	assert.False(t, ok)
	v, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}
