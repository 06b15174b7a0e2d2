package domain

import (
	"iter"
	"math"
	"time"
)

// CurrentConditions is the projection of hour 0 shown as "now".
type CurrentConditions struct {
	Time          time.Time `json:"datetime"`
	Condition     Condition `json:"condition"`
	Temperature   *float64  `json:"native_temperature,omitempty"`
	WindSpeed     *float64  `json:"native_wind_speed,omitempty"`
	WindGustSpeed *float64  `json:"native_wind_gust_speed,omitempty"`
	WindBearing   *float64  `json:"wind_bearing,omitempty"`
	Pressure      *float64  `json:"native_pressure,omitempty"`
	Humidity      *float64  `json:"humidity,omitempty"`
	CloudCoverage *float64  `json:"cloud_coverage,omitempty"`
}

// HourlyForecast is the projection of one forecast hour. Nil fields were not
// delivered by the provider.
type HourlyForecast struct {
	Time           time.Time  `json:"datetime"`
	Temperature    *float64   `json:"native_temperature,omitempty"`
	Condition      *Condition `json:"condition,omitempty"`
	Precipitation  *float64   `json:"native_precipitation,omitempty"`
	TemperatureLow *float64   `json:"native_templow,omitempty"`
	WindSpeed      *float64   `json:"native_wind_speed,omitempty"`
	WindGustSpeed  *float64   `json:"native_wind_gust_speed,omitempty"`
	WindBearing    *float64   `json:"wind_bearing,omitempty"`
	Pressure       *float64   `json:"native_pressure,omitempty"`
	Humidity       *float64   `json:"humidity,omitempty"`
	CloudCoverage  *float64   `json:"cloud_coverage,omitempty"`
}

// CurrentCondition maps symbol[0] to a condition, or ConditionUnknown.
func CurrentCondition(f *Forecast) Condition {
	return ConditionAt(f, 0)
}

// ConditionAt maps symbol[i] to a condition, or ConditionUnknown.
func ConditionAt(f *Forecast, i int) Condition {
	symbol, ok := f.Value(FieldSymbol, i)
	if !ok {
		return ConditionUnknown
	}
	return ConditionFor(symbol)
}

// Temperature returns the 2 m temperature at hour i in °C.
func Temperature(f *Forecast, i int) (float64, bool) {
	return f.Value(FieldTemperature, i)
}

// WindSpeed returns the 10 m wind speed at hour i in m/s, derived from the
// eastward and northward components.
func WindSpeed(f *Forecast, i int) (float64, bool) {
	return magnitude(f, FieldWindspeedEastward, FieldWindspeedNorthward, i)
}

// WindGustSpeed returns the gust speed at hour i in m/s.
func WindGustSpeed(f *Forecast, i int) (float64, bool) {
	return magnitude(f, FieldWindGustEastward, FieldWindGustNorthward, i)
}

// WindBearing returns the direction the wind blows from at hour i, in
// degrees clockwise from north. Calm air has no bearing.
func WindBearing(f *Forecast, i int) (float64, bool) {
	u, okU := f.Value(FieldWindspeedEastward, i)
	v, okV := f.Value(FieldWindspeedNorthward, i)
	if !okU || !okV || (u == 0 && v == 0) {
		return 0, false
	}
	deg := math.Atan2(-u, -v) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg, true
}

// Pressure returns the surface pressure at hour i in hPa.
func Pressure(f *Forecast, i int) (float64, bool) {
	sp, ok := f.Value(FieldSurfacePressure, i)
	if !ok {
		return 0, false
	}
	return sp / 100, true
}

// Humidity returns the relative humidity at hour i in percent.
func Humidity(f *Forecast, i int) (float64, bool) {
	return f.Value(FieldRelativeHumidity, i)
}

// CloudCoverage returns the total cloud cover at hour i in percent.
func CloudCoverage(f *Forecast, i int) (float64, bool) {
	tcc, ok := f.Value(FieldTotalCloudCover, i)
	if !ok {
		return 0, false
	}
	return tcc * 100, true
}

// Current projects hour 0 of f. It returns false for an empty forecast.
func Current(f *Forecast) (CurrentConditions, bool) {
	if f.Len() == 0 {
		return CurrentConditions{}, false
	}
	return CurrentConditions{
		Time:          f.Timestamps[0],
		Condition:     CurrentCondition(f),
		Temperature:   optional(Temperature(f, 0)),
		WindSpeed:     optional(WindSpeed(f, 0)),
		WindGustSpeed: optional(WindGustSpeed(f, 0)),
		WindBearing:   optional(WindBearing(f, 0)),
		Pressure:      optional(Pressure(f, 0)),
		Humidity:      optional(Humidity(f, 0)),
		CloudCoverage: optional(CloudCoverage(f, 0)),
	}, true
}

// HourlySeries yields one projection per hour at or after now, in ascending
// order. The sequence is lazy and can be ranged over more than once.
func HourlySeries(f *Forecast, now time.Time) iter.Seq[HourlyForecast] {
	return func(yield func(HourlyForecast) bool) {
		for i := 0; i < f.Len(); i++ {
			if f.Timestamps[i].Before(now) {
				continue
			}
			if !yield(hourAt(f, i)) {
				return
			}
		}
	}
}

func hourAt(f *Forecast, i int) HourlyForecast {
	h := HourlyForecast{
		Time:           f.Timestamps[i],
		Temperature:    optional(Temperature(f, i)),
		Precipitation:  optional(f.Value(FieldPrecipitationAmount, i)),
		TemperatureLow: optional(f.Value(FieldMinimumTemperature, i)),
		WindSpeed:      optional(WindSpeed(f, i)),
		WindGustSpeed:  optional(WindGustSpeed(f, i)),
		WindBearing:    optional(WindBearing(f, i)),
		Pressure:       optional(Pressure(f, i)),
		Humidity:       optional(Humidity(f, i)),
		CloudCoverage:  optional(CloudCoverage(f, i)),
	}
	if f.Has(FieldSymbol) {
		c := ConditionAt(f, i)
		h.Condition = &c
	}
	return h
}

func magnitude(f *Forecast, east, north Field, i int) (float64, bool) {
	u, okU := f.Value(east, i)
	v, okV := f.Value(north, i)
	if !okU || !okV {
		return 0, false
	}
	return math.Sqrt(u*u + v*v), true
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
