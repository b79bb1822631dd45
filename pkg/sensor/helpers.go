package sensor

import (
	"time"

	"github.com/ericogr/sht15-to-mqtt/pkg/sht1x"
)

// readingFromSample converts a driver sample into a Reading stamped with now.
func readingFromSample(s sht1x.Sample, now time.Time) Reading {
	r := Reading{
		Celsius:        s.Celsius,
		Fahrenheit:     s.Fahrenheit,
		Humidity:       s.Humidity,
		DewPoint:       s.DewPoint,
		RawTemperature: s.RawTemperature,
		RawHumidity:    s.RawHumidity,
		Stale:          s.Stale,
		Timestamp:      now,
	}
	for _, f := range s.Faults {
		r.Faults = append(r.Faults, f.Code)
	}
	return r
}
