// Package domain models point forecasts from the GeoSphere Austria numerical
// weather prediction (NWP) dataset.
//
// # Data Source
//
// Forecasts come from the GeoSphere Austria Data Hub timeseries API, model
// "nwp-v1-1h-2500m": an hourly, 2.5 km grid run covering roughly four days.
// A request names a point, a list of parameters and a time window; the
// response is GeoJSON with one shared "timestamps" array and one data array
// per parameter.
//
// # Series Layout
//
// A [Forecast] keeps that shape: one timestamp slice plus one value slice per
// parameter, all index-aligned. Hour i is Timestamps[i] and Series[f][i] for
// every present field f. A field the provider did not deliver is absent from
// the map; consumers surface it as unknown, never as zero.
//
// # Units
//
//	temperature, minimum/maximum_temperature   °C at 2 m
//	precipitation/rain/snow_amount             kg m⁻² (mm), accumulated
//	relative_humidity                          %
//	surface_pressure                           Pa (divided by 100 for hPa)
//	total_cloud_cover                          fraction 0–1
//	windspeed_eastward/northward (u10m, v10m)  m/s at 10 m
//	ugust, vgust                               m/s gust components
//	global_radiation                           W m⁻², accumulated
//	sun_duration                               s, accumulated
//	snow_limit                                 m above sea level
//	symbol                                     weather symbol code 1–32
//
// Wind speed is derived from the u/v components as sqrt(u²+v²); the bearing
// is the direction the wind blows from, in degrees clockwise from north.
//
// # Weather Symbols
//
// The "sy" parameter is a GeoSphere symbol code. [ConditionFor] maps it to a
// condition name in the Home Assistant vocabulary (sunny, partlycloudy,
// cloudy, fog, rainy, pouring, snowy-rainy, snowy, lightning,
// lightning-rainy, hail). Codes outside the table map to [ConditionUnknown].
package domain
