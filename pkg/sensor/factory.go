package sensor

import (
	"fmt"

	"github.com/ericogr/sht15-to-mqtt/pkg/config"
	"github.com/sirupsen/logrus"
)

// New returns the sensor selected by cfg.SensorType.
func New(cfg config.Config, logger logrus.FieldLogger) (Sensor, error) {
	switch cfg.SensorType {
	case config.SensorReal:
		return NewSHT1xSensor(cfg, logger)
	case config.SensorSimulation:
		return NewFakeSensor(), nil
	default:
		return nil, fmt.Errorf("unknown sensor type %q", cfg.SensorType)
	}
}
