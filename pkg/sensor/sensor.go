package sensor

import (
	"context"
	"time"
)

// Reading is one calibrated temperature/humidity sample.
type Reading struct {
	Celsius        float64   `json:"celsius"`
	Fahrenheit     float64   `json:"fahrenheit"`
	Humidity       float64   `json:"humidity"`
	DewPoint       float64   `json:"dew_point"`
	RawTemperature uint16    `json:"raw_temperature"`
	RawHumidity    uint16    `json:"raw_humidity"`
	Stale          bool      `json:"stale"`
	Faults         []string  `json:"faults,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type Sensor interface {
	Read(ctx context.Context) (Reading, error)
	Close() error
}
