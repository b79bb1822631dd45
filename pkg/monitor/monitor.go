// Package monitor runs the periodic read, build and publish loop.
package monitor

import (
	"context"
	"time"

	"github.com/ericogr/sht15-to-mqtt/pkg/control"
	"github.com/ericogr/sht15-to-mqtt/pkg/engine"
	"github.com/ericogr/sht15-to-mqtt/pkg/output"
	"github.com/ericogr/sht15-to-mqtt/pkg/sensor"
	"github.com/sirupsen/logrus"
)

const DefaultInterval = 5 * time.Second

// Entry is an output with its own publish interval.
type Entry struct {
	Name       string
	Output     output.Output
	IntervalMs int
	every      int
}

// Monitor owns the sensor cadence and the maximum temperature. The maximum is
// only changed from inside Run, through control updates.
type Monitor struct {
	sensor   sensor.Sensor
	builder  *engine.Builder
	entries  []Entry
	interval time.Duration
	maximum  float64
	ticks    int
	log      logrus.FieldLogger
}

func New(s sensor.Sensor, b *engine.Builder, entries []Entry, interval time.Duration, maximum float64, logger logrus.FieldLogger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m := &Monitor{
		sensor:   s,
		builder:  b,
		entries:  entries,
		interval: interval,
		maximum:  maximum,
		log:      logger,
	}
	for i := range m.entries {
		m.entries[i].every = ticksFor(m.entries[i].IntervalMs, interval)
	}
	return m
}

// ticksFor rounds an output interval to a whole number of sensor ticks, at
// least one.
func ticksFor(intervalMs int, cadence time.Duration) int {
	d := time.Duration(intervalMs) * time.Millisecond
	n := int((d + cadence/2) / cadence)
	if n < 1 {
		n = 1
	}
	return n
}

// Run reads the sensor once immediately and then every interval until ctx is
// done. updates may be nil.
func (m *Monitor) Run(ctx context.Context, updates <-chan control.Update) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			m.maximum = u.MaximumTemperature
			m.log.WithField("maximum_temperature", u.MaximumTemperature).Info("maximum temperature has been set")
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	// the schedule advances even when the read fails
	defer func() { m.ticks++ }()

	r, err := m.sensor.Read(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.log.WithError(err).Error("sensor read failed")
		}
		return
	}
	if r.Stale {
		m.log.WithField("faults", r.Faults).Warn("sensor reading is stale")
	}

	rec := m.builder.Build(r, m.maximum)
	if rec.Warning {
		m.log.WithFields(logrus.Fields{
			"engine":              rec.EngineName,
			"temperature":         rec.Temperature,
			"maximum_temperature": m.maximum,
		}).Warn("engine temperature above maximum")
	}
	if rec.EngineWarning != 0 {
		m.log.WithFields(logrus.Fields{
			"engine":         rec.EngineName,
			"engine_warning": rec.EngineWarning,
		}).Warn("engine warning raised")
	}

	for i := range m.entries {
		e := &m.entries[i]
		if m.ticks%e.every != 0 {
			continue
		}
		if err := e.Output.Publish(rec); err != nil {
			m.log.WithError(err).WithField("output", e.Name).Error("publish failed")
		}
	}
}
