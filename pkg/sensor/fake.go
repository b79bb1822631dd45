package sensor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/ericogr/sht15-to-mqtt/pkg/sht1x"
)

// FakeSensor produces plausible raw values and runs them through the same
// calibration as the real sensor.
type FakeSensor struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewFakeSensor() Sensor {
	return &FakeSensor{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (f *FakeSensor) Read(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	// 15..35 °C and roughly 20..80 %RH
	rawT := uint16(5500 + f.rng.Intn(2000))
	rawH := uint16(700 + f.rng.Intn(1800))
	s := sht1x.Sample{
		Celsius:        sht1x.CalibrateTemperature(rawT, sht1x.SlopeCelsius),
		Fahrenheit:     sht1x.CalibrateTemperature(rawT, sht1x.SlopeFahrenheit),
		RawTemperature: rawT,
		RawHumidity:    rawH,
	}
	s.Humidity = sht1x.CalibrateHumidity(rawH, s.Celsius)
	s.DewPoint = sht1x.DewPoint(s.Celsius, s.Humidity)
	return readingFromSample(s, time.Now()), nil
}

func (f *FakeSensor) Close() error { return nil }
