package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/ericogr/sht15-to-mqtt/pkg/config"
	"github.com/ericogr/sht15-to-mqtt/pkg/sht1x"
	"github.com/sirupsen/logrus"
	"periph.io/x/host/v3"
)

type SHT1xSensor struct {
	dev *sht1x.Dev
}

// NewSHT1xSensor initializes the host drivers and opens the sensor on the
// configured pins.
func NewSHT1xSensor(cfg config.Config, logger logrus.FieldLogger) (Sensor, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	for _, d := range state.Loaded {
		logger.Debugf("periph driver loaded: %s", d)
	}
	for _, f := range state.Failed {
		logger.Debugf("periph driver failed: %s: %v", f.D, f.Err)
	}
	dev, err := sht1x.Open(cfg.Pins.Data, cfg.Pins.Clock, &sht1x.Opts{PollLimit: cfg.PollLimit, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("open sht1x: %w", err)
	}
	return newSHT1xSensor(dev), nil
}

func newSHT1xSensor(dev *sht1x.Dev) *SHT1xSensor {
	return &SHT1xSensor{dev: dev}
}

func (s *SHT1xSensor) Read(ctx context.Context) (Reading, error) {
	sample, err := s.dev.Sample(ctx)
	if err != nil {
		return Reading{}, fmt.Errorf("read sht1x: %w", err)
	}
	return readingFromSample(sample, time.Now()), nil
}

func (s *SHT1xSensor) Close() error {
	return s.dev.Halt()
}
