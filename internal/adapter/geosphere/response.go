package geosphere

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/nwp-forecast-service/internal/domain"
)

// timeLayout is the minute-resolution, offset-aware format the dataset API
// uses for request windows and response timestamps.
const timeLayout = "2006-01-02T15:04Z07:00"

var nan = math.NaN()

// parameters maps each requested provider key to its normalized series.
// The order is the order in which keys are sent.
var parameters = []struct {
	key   string
	field domain.Field
}{
	{"grad", domain.FieldGlobalRadiation},
	{"mnt2m", domain.FieldMinimumTemperature},
	{"mxt2m", domain.FieldMaximumTemperature},
	{"rain_acc", domain.FieldRainAmount},
	{"rh2m", domain.FieldRelativeHumidity},
	{"rr_acc", domain.FieldPrecipitationAmount},
	{"snow_acc", domain.FieldSnowAmount},
	{"snowlmt", domain.FieldSnowLimit},
	{"sp", domain.FieldSurfacePressure},
	{"sundur_acc", domain.FieldSunDuration},
	{"sy", domain.FieldSymbol},
	{"t2m", domain.FieldTemperature},
	{"tcc", domain.FieldTotalCloudCover},
	{"u10m", domain.FieldWindspeedEastward},
	{"ugust", domain.FieldWindGustEastward},
	{"v10m", domain.FieldWindspeedNorthward},
	{"vgust", domain.FieldWindGustNorthward},
}

// ParameterKeys returns the provider keys sent with every request.
func ParameterKeys() []string {
	keys := make([]string, len(parameters))
	for i, p := range parameters {
		keys[i] = p.key
	}
	return keys
}

// GeoJSON timeseries response types.

type response struct {
	Timestamps []string  `json:"timestamps"`
	Features   []feature `json:"features"`
}

type feature struct {
	Properties struct {
		Parameters map[string]parameter `json:"parameters"`
	} `json:"properties"`
}

type parameter struct {
	Name string     `json:"name"`
	Unit string     `json:"unit"`
	Data []*float64 `json:"data"`
}

// parseForecast decodes a timeseries body into a Forecast. Only the first
// feature is read. Keys the provider did not deliver stay absent.
func parseForecast(body []byte) (*domain.Forecast, error) {
	if len(body) == 0 {
		return nil, malformed(errors.New("empty body"))
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(fmt.Errorf("decode: %w", err))
	}
	if len(resp.Features) == 0 {
		return nil, malformed(errors.New("no features"))
	}

	timestamps, err := parseTimestamps(resp.Timestamps)
	if err != nil {
		return nil, malformed(err)
	}
	if len(timestamps) == 0 {
		return nil, malformed(errors.New("no timestamps"))
	}

	f := domain.NewForecast(timestamps)
	params := resp.Features[0].Properties.Parameters
	for _, p := range parameters {
		raw, ok := params[p.key]
		if !ok || raw.Data == nil {
			continue
		}
		if err := f.SetSeries(p.field, values(raw.Data)); err != nil {
			return nil, malformed(fmt.Errorf("parameter %s: %w", p.key, err))
		}
	}
	if err := f.Validate(); err != nil {
		return nil, malformed(err)
	}
	return f, nil
}

func parseTimestamps(raw []string) ([]time.Time, error) {
	ts := make([]time.Time, len(raw))
	for i, s := range raw {
		t, err := parseTime(s)
		if err != nil {
			return nil, fmt.Errorf("timestamp %d: %w", i, err)
		}
		ts[i] = t
	}
	return ts, nil
}

// parseTime accepts both "+00:00" and "+0000" offsets.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err == nil {
		return t, nil
	}
	if t, err2 := time.Parse("2006-01-02T15:04-0700", s); err2 == nil {
		return t, nil
	}
	return time.Time{}, err
}

// values replaces JSON nulls (missing model output) with NaN so the series
// keeps its alignment.
func values(data []*float64) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		if v == nil {
			out[i] = nan
			continue
		}
		out[i] = *v
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func malformed(err error) error {
	return &domain.ProviderError{Message: "malformed response", Err: err}
}
