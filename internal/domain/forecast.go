package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ForecastHorizon is the fixed length of the request window.
const ForecastHorizon = 90 * time.Hour

// Field names one normalized forecast series.
type Field string

const (
	FieldGlobalRadiation     Field = "global_radiation"
	FieldMinimumTemperature  Field = "minimum_temperature"
	FieldMaximumTemperature  Field = "maximum_temperature"
	FieldRainAmount          Field = "rain_amount"
	FieldRelativeHumidity    Field = "relative_humidity"
	FieldPrecipitationAmount Field = "precipitation_amount"
	FieldSnowAmount          Field = "snow_amount"
	FieldSnowLimit           Field = "snow_limit"
	FieldSurfacePressure     Field = "surface_pressure"
	FieldSunDuration         Field = "sun_duration"
	FieldSymbol              Field = "symbol"
	FieldTemperature         Field = "temperature"
	FieldTotalCloudCover     Field = "total_cloud_cover"
	FieldWindspeedEastward   Field = "windspeed_eastward"
	FieldWindspeedNorthward  Field = "windspeed_northward"
	FieldWindGustEastward    Field = "ugust"
	FieldWindGustNorthward   Field = "vgust"
)

// Fields lists every series a Forecast can carry, in provider order.
var Fields = []Field{
	FieldGlobalRadiation,
	FieldMinimumTemperature,
	FieldMaximumTemperature,
	FieldRainAmount,
	FieldRelativeHumidity,
	FieldPrecipitationAmount,
	FieldSnowAmount,
	FieldSnowLimit,
	FieldSurfacePressure,
	FieldSunDuration,
	FieldSymbol,
	FieldTemperature,
	FieldTotalCloudCover,
	FieldWindspeedEastward,
	FieldWindGustEastward,
	FieldWindspeedNorthward,
	FieldWindGustNorthward,
}

// Forecast is a multi-hour prediction stored as index-aligned series.
// Index i of every present series refers to Timestamps[i]. A series missing
// from the map was not delivered by the provider and must be treated as
// unknown rather than zero.
type Forecast struct {
	Timestamps []time.Time         `json:"timestamps"`
	Series     map[Field][]float64 `json:"series"`
}

// NewForecast creates an empty forecast over the given hours.
func NewForecast(timestamps []time.Time) *Forecast {
	return &Forecast{
		Timestamps: timestamps,
		Series:     make(map[Field][]float64),
	}
}

// Len returns the number of hours covered.
func (f *Forecast) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Timestamps)
}

// SetSeries stores values for field. The length must match the timestamps.
func (f *Forecast) SetSeries(field Field, values []float64) error {
	if values == nil {
		return fmt.Errorf("series %s: nil values", field)
	}
	if len(values) != len(f.Timestamps) {
		return fmt.Errorf("series %s: %d values for %d timestamps", field, len(values), len(f.Timestamps))
	}
	if f.Series == nil {
		f.Series = make(map[Field][]float64)
	}
	f.Series[field] = values
	return nil
}

// Has reports whether the provider delivered field.
func (f *Forecast) Has(field Field) bool {
	_, ok := f.SeriesOf(field)
	return ok
}

// SeriesOf returns the values for field and whether it is present.
func (f *Forecast) SeriesOf(field Field) ([]float64, bool) {
	if f == nil {
		return nil, false
	}
	values, ok := f.Series[field]
	return values, ok
}

// Value returns the value of field at hour i. A sample the model did not
// produce (NaN) is reported as missing.
func (f *Forecast) Value(field Field, i int) (float64, bool) {
	values, ok := f.SeriesOf(field)
	if !ok || i < 0 || i >= len(values) || math.IsNaN(values[i]) {
		return 0, false
	}
	return values[i], true
}

// Validate checks that timestamps strictly increase and every series is aligned.
func (f *Forecast) Validate() error {
	for i := 1; i < len(f.Timestamps); i++ {
		if !f.Timestamps[i].After(f.Timestamps[i-1]) {
			return fmt.Errorf("timestamp %d (%s) does not follow %s", i,
				f.Timestamps[i].Format(time.RFC3339), f.Timestamps[i-1].Format(time.RFC3339))
		}
	}
	for field, values := range f.Series {
		if len(values) != len(f.Timestamps) {
			return fmt.Errorf("series %s: %d values for %d timestamps", field, len(values), len(f.Timestamps))
		}
	}
	return nil
}

type forecastJSON struct {
	Timestamps []time.Time          `json:"timestamps"`
	Series     map[Field][]*float64 `json:"series"`
}

// MarshalJSON encodes missing samples as null.
func (f *Forecast) MarshalJSON() ([]byte, error) {
	out := forecastJSON{
		Timestamps: f.Timestamps,
		Series:     make(map[Field][]*float64, len(f.Series)),
	}
	for field, values := range f.Series {
		encoded := make([]*float64, len(values))
		for i := range values {
			if !math.IsNaN(values[i]) {
				encoded[i] = &values[i]
			}
		}
		out.Series[field] = encoded
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes null samples as NaN.
func (f *Forecast) UnmarshalJSON(data []byte) error {
	var in forecastJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	f.Timestamps = in.Timestamps
	f.Series = make(map[Field][]float64, len(in.Series))
	for field, encoded := range in.Series {
		values := make([]float64, len(encoded))
		for i, v := range encoded {
			if v == nil {
				values[i] = math.NaN()
				continue
			}
			values[i] = *v
		}
		f.Series[field] = values
	}
	return nil
}

// Coordinates is a WGS-84 point in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ForecastQuery describes one request window for a point.
type ForecastQuery struct {
	Coordinates Coordinates
	Start       time.Time
	End         time.Time
}

// NewForecastQuery builds a query covering ForecastHorizon from start.
func NewForecastQuery(coords Coordinates, start time.Time) ForecastQuery {
	return ForecastQuery{
		Coordinates: coords,
		Start:       start,
		End:         start.Add(ForecastHorizon),
	}
}

// Snapshot is a stored forecast with the context it was fetched in.
// It is the payload handed to downstream publishers.
type Snapshot struct {
	Location    string      `json:"location"`
	Coordinates Coordinates `json:"coordinates"`
	FetchedAt   time.Time   `json:"fetched_at"`
	Forecast    *Forecast   `json:"forecast"`
}
