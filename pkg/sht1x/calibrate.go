package sht1x

import "math"

// Temperature conversion coefficients for 14 bit readings at 5V.
const (
	TemperatureOffset = -40.0
	SlopeCelsius      = 0.01
	SlopeFahrenheit   = 0.018
)

// Humidity conversion coefficients: c1..c3 for the 12 bit linear term,
// t1 and t2 for the temperature compensation.
const (
	c1 = -4.0
	c2 = 0.0405
	c3 = -0.0000028
	t1 = 0.01
	t2 = 0.00008
)

// CalibrateTemperature converts a raw temperature reading using slope
// (SlopeCelsius or SlopeFahrenheit).
func CalibrateTemperature(raw uint16, slope float64) float64 {
	return float64(raw)*slope + TemperatureOffset
}

// CalibrateHumidity converts a raw humidity reading to %RH, compensated for
// the difference between referenceC and 25°C.
func CalibrateHumidity(raw uint16, referenceC float64) float64 {
	v := float64(raw)
	linear := c1 + c2*v + c3*v*v
	return (referenceC-25.0)*(t1+t2*v) + linear
}

// DewPoint returns the dew point in °C for a temperature in °C and a relative
// humidity in percent.
func DewPoint(celsius, humidity float64) float64 {
	// Saturation vapor pressure.
	ratio := 373.15 / (273.15 + celsius)
	rhs := -7.90298 * (ratio - 1)
	rhs += 5.02808 * math.Log10(ratio)
	rhs += -1.3816e-7 * (math.Pow(10, 11.344*(1-1/ratio)) - 1)
	rhs += 8.1328e-3 * (math.Pow(10, -3.49149*(ratio-1)) - 1)
	rhs += math.Log10(1013.246)

	// -3 converts to kPa.
	vp := math.Pow(10, rhs-3) * humidity

	x := math.Log(vp / 0.61078)
	return 241.88 * x / (17.558 - x)
}
