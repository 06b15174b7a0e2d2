package kafka

import (
	"math"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nwp-forecast-service/internal/domain"
)

func testSnapshot(t *testing.T) domain.Snapshot {
	t.Helper()
	start := time.Date(2025, 9, 15, 15, 0, 0, 0, time.UTC)
	f := domain.NewForecast([]time.Time{start, start.Add(time.Hour)})
	require.NoError(t, f.SetSeries(domain.FieldTemperature, []float64{18.5, math.NaN()}))
	require.NoError(t, f.SetSeries(domain.FieldSymbol, []float64{2, 3}))
	return domain.Snapshot{
		Location:    "home",
		Coordinates: domain.Coordinates{Latitude: 48.2082, Longitude: 16.3738},
		FetchedAt:   start.Add(5 * time.Minute),
		Forecast:    f,
	}
}

func TestSerializeToMessage(t *testing.T) {
	snap := testSnapshot(t)

	msg, err := serializeToMessage(snap)
	require.NoError(t, err)

	assert.Equal(t, []byte("home"), msg.Key)
	assert.Contains(t, string(msg.Value), `"location":"home"`)
	assert.Contains(t, string(msg.Value), `"temperature":[18.5,null]`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "location", msg.Headers[0].Key)
	assert.Equal(t, []byte("home"), msg.Headers[0].Value)
	assert.Equal(t, "fetched_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2025-09-15T15:05:00Z"), msg.Headers[1].Value)
}

func TestDecodeMessage(t *testing.T) {
	snap := testSnapshot(t)
	msg, err := serializeToMessage(snap)
	require.NoError(t, err)

	got, err := DecodeMessage(msg)
	require.NoError(t, err)

	assert.Equal(t, snap.Location, got.Location)
	assert.Equal(t, snap.Coordinates, got.Coordinates)
	assert.True(t, snap.FetchedAt.Equal(got.FetchedAt))
	require.Equal(t, 2, got.Forecast.Len())

	v, ok := got.Forecast.Value(domain.FieldTemperature, 0)
	assert.True(t, ok)
	assert.Equal(t, 18.5, v)
	_, ok = got.Forecast.Value(domain.FieldTemperature, 1)
	assert.False(t, ok, "null sample should decode as missing")
	assert.False(t, got.Forecast.Has(domain.FieldSnowLimit))
}

func TestDecodeMessage_Invalid(t *testing.T) {
	_, err := DecodeMessage(kafkago.Message{Value: []byte("not json")})
	require.Error(t, err)

	_, err = DecodeMessage(kafkago.Message{Value: []byte(`{"location":"home"}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing forecast")
}
