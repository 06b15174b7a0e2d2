package domain

import "math"

// Condition is a normalized weather state.
type Condition string

const (
	ConditionUnknown        Condition = "unknown"
	ConditionSunny          Condition = "sunny"
	ConditionPartlyCloudy   Condition = "partlycloudy"
	ConditionCloudy         Condition = "cloudy"
	ConditionFog            Condition = "fog"
	ConditionRainy          Condition = "rainy"
	ConditionPouring        Condition = "pouring"
	ConditionSnowyRainy     Condition = "snowy-rainy"
	ConditionSnowy          Condition = "snowy"
	ConditionLightning      Condition = "lightning"
	ConditionLightningRainy Condition = "lightning-rainy"
	ConditionHail           Condition = "hail"
)

// symbolConditions maps GeoSphere "sy" codes to conditions.
var symbolConditions = map[int]Condition{
	1:  ConditionSunny,        // sunny
	2:  ConditionPartlyCloudy, // mostly sunny
	3:  ConditionPartlyCloudy, // partly cloudy
	4:  ConditionCloudy,       // mostly cloudy
	5:  ConditionCloudy,       // overcast
	6:  ConditionFog,          // fog
	7:  ConditionRainy,        // light rain
	8:  ConditionRainy,        // rain
	9:  ConditionPouring,      // heavy rain
	10: ConditionSnowyRainy,   // light sleet
	11: ConditionSnowyRainy,   // sleet
	12: ConditionSnowyRainy,   // heavy sleet
	13: ConditionSnowy,        // light snow
	14: ConditionSnowy,        // snow
	15: ConditionSnowy,        // heavy snow
	16: ConditionRainy,        // rain showers
	17: ConditionPouring,      // heavy rain showers
	18: ConditionSnowyRainy,   // sleet showers
	19: ConditionSnowyRainy,   // heavy sleet showers
	20: ConditionSnowy,        // snow showers
	21: ConditionSnowy,        // heavy snow showers
	22: ConditionLightning,    // thunderstorm
	23: ConditionLightningRainy,
	24: ConditionLightningRainy,
	25: ConditionLightningRainy,
	26: ConditionLightningRainy,
	27: ConditionLightningRainy,
	28: ConditionLightningRainy,
	29: ConditionLightningRainy,
	30: ConditionHail, // thunderstorm with hail
	31: ConditionHail,
	32: ConditionHail,
}

// ConditionFor maps a raw symbol value to a condition. The provider encodes
// codes as floats; non-integral values are not valid codes.
func ConditionFor(symbol float64) Condition {
	if math.IsNaN(symbol) || symbol != math.Trunc(symbol) {
		return ConditionUnknown
	}
	if c, ok := symbolConditions[int(symbol)]; ok {
		return c
	}
	return ConditionUnknown
}
