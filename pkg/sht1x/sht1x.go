// Package sht1x drives a Sensirion SHT1x (SHT10, SHT11, SHT15) humidity and
// temperature sensor over two general purpose pins.
//
// The sensor uses a proprietary two-wire protocol that resembles I²C but is
// not compatible with it, so the protocol is bit-banged: the driver toggles
// the clock and data lines itself and samples the data line on every clock
// pulse.
//
// # Protocol errors
//
// A missing acknowledgement or a conversion that never completes does not
// abort a reading. The fault is logged with its diagnostic code and recorded
// in the Measurement, and the reading is returned anyway. Only pin
// acquisition (HardFailure) and misuse of the device (ErrBusy, ErrClosed,
// ErrWrongMode) are reported as errors.
//
// # Concurrency
//
// A Dev owns both of its pins. One exchange at a time may use them: a call
// made while another exchange is running fails with ErrBusy instead of
// corrupting it. Callers that read from several goroutines must serialize the
// calls themselves.
//
// # Datasheet
//
// https://sensirion.com/media/documents/BD45ECB5/61642783/Sensirion_Humidity_Sensors_SHT1x_Datasheet.pdf
package sht1x

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
)

// DefaultPollLimit is the number of data line reads spent waiting for a
// conversion before the reading is taken anyway.
const DefaultPollLimit = 20000

// Opts holds the optional configuration of a Dev.
type Opts struct {
	// PollLimit overrides DefaultPollLimit when > 0.
	PollLimit int
	// Logger receives protocol diagnostics. Defaults to the logrus standard
	// logger.
	Logger logrus.FieldLogger
}

// Dev is a SHT1x sensor connected to a data and a clock pin.
type Dev struct {
	mu     sync.Mutex
	data   *line
	clock  *line
	limit  int
	log    logrus.FieldLogger
	halted bool
}

// Sample is a full set of calibrated values from one temperature and one
// humidity exchange.
type Sample struct {
	Celsius        float64
	Fahrenheit     float64
	Humidity       float64
	DewPoint       float64
	RawTemperature uint16
	RawHumidity    uint16
	Stale          bool
	Faults         []Fault
}

// New returns a Dev using the given pins. The Dev owns the pins from then on
// and releases them in Halt.
func New(data, clock gpio.PinIO, opts *Opts) (*Dev, error) {
	if data == nil {
		return nil, &HardFailure{Pin: "data", Err: ErrPinUnavailable}
	}
	if clock == nil {
		return nil, &HardFailure{Pin: "clock", Err: ErrPinUnavailable}
	}
	if data.Name() == clock.Name() {
		return nil, &HardFailure{Pin: data.Name(), Err: fmt.Errorf("%w: data and clock share a pin", ErrPinUnavailable)}
	}
	d := &Dev{
		data:  newLine("data", data, gpio.High),
		clock: newLine("clock", clock, gpio.Low),
		limit: DefaultPollLimit,
		log:   logrus.StandardLogger(),
	}
	if opts != nil {
		if opts.PollLimit > 0 {
			d.limit = opts.PollLimit
		}
		if opts.Logger != nil {
			d.log = opts.Logger
		}
	}
	d.log = d.log.WithField("device", d.String())
	return d, nil
}

// Open looks both pins up by name in the host registry and returns a Dev
// using them. A pin acquired before a failure is released again.
func Open(dataName, clockName string, opts *Opts) (d *Dev, err error) {
	data := gpioreg.ByName(dataName)
	if data == nil {
		return nil, &HardFailure{Pin: dataName, Err: ErrPinUnavailable}
	}
	defer func() {
		if err != nil {
			_ = data.Halt()
		}
	}()
	clock := gpioreg.ByName(clockName)
	if clock == nil {
		return nil, &HardFailure{Pin: clockName, Err: ErrPinUnavailable}
	}
	return New(data, clock, opts)
}

func (d *Dev) String() string {
	return fmt.Sprintf("sht1x{data:%s, clock:%s}", d.data.pin.Name(), d.clock.pin.Name())
}

// ReadRawTemperature runs a temperature exchange.
func (d *Dev) ReadRawTemperature(ctx context.Context) (Measurement, error) {
	return d.exchange(ctx, CmdTemperature)
}

// ReadRawHumidity runs a humidity exchange.
func (d *Dev) ReadRawHumidity(ctx context.Context) (Measurement, error) {
	return d.exchange(ctx, CmdHumidity)
}

// ReadHumidity runs a humidity exchange and returns the relative humidity in
// percent, compensated with referenceC.
func (d *Dev) ReadHumidity(ctx context.Context, referenceC float64) (float64, error) {
	m, err := d.exchange(ctx, CmdHumidity)
	if err != nil {
		return 0, err
	}
	return CalibrateHumidity(m.Raw, referenceC), nil
}

// TemperatureCelsius runs a temperature exchange and returns °C.
func (d *Dev) TemperatureCelsius(ctx context.Context) (float64, error) {
	m, err := d.exchange(ctx, CmdTemperature)
	if err != nil {
		return 0, err
	}
	return CalibrateTemperature(m.Raw, SlopeCelsius), nil
}

// TemperatureFahrenheit runs a temperature exchange and returns °F.
func (d *Dev) TemperatureFahrenheit(ctx context.Context) (float64, error) {
	m, err := d.exchange(ctx, CmdTemperature)
	if err != nil {
		return 0, err
	}
	return CalibrateTemperature(m.Raw, SlopeFahrenheit), nil
}

// Sample reads the temperature, then the humidity compensated with that
// temperature.
func (d *Dev) Sample(ctx context.Context) (Sample, error) {
	t, err := d.exchange(ctx, CmdTemperature)
	if err != nil {
		return Sample{}, err
	}
	h, err := d.exchange(ctx, CmdHumidity)
	if err != nil {
		return Sample{}, err
	}
	s := Sample{
		Celsius:        CalibrateTemperature(t.Raw, SlopeCelsius),
		Fahrenheit:     CalibrateTemperature(t.Raw, SlopeFahrenheit),
		RawTemperature: t.Raw,
		RawHumidity:    h.Raw,
		Stale:          t.Stale || h.Stale,
		Faults:         append(append([]Fault(nil), t.Faults...), h.Faults...),
	}
	s.Humidity = CalibrateHumidity(h.Raw, s.Celsius)
	s.DewPoint = DewPoint(s.Celsius, s.Humidity)
	return s, nil
}

// Sense reads temperature and humidity. Pressure is not measured.
// Implements physic.SenseEnv without continuous sensing.
func (d *Dev) Sense(e *physic.Env) error {
	s, err := d.Sample(context.Background())
	if err != nil {
		return err
	}
	e.Temperature = physic.Temperature(s.Celsius*float64(physic.Kelvin)) + physic.ZeroCelsius
	e.Humidity = physic.RelativeHumidity(s.Humidity * float64(physic.PercentRH))
	e.Pressure = 0
	return nil
}

// Precision returns the resolution of 14 bit temperature and 12 bit humidity
// readings.
func (d *Dev) Precision(e *physic.Env) {
	e.Temperature = physic.Kelvin / 100
	e.Humidity = physic.PercentRH / 20
	e.Pressure = 0
}

// Halt releases both pins. Further reads fail with ErrClosed. Calling Halt
// more than once is a no-op.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return nil
	}
	d.halted = true
	errData := d.data.halt()
	errClock := d.clock.halt()
	if errData != nil {
		return fmt.Errorf("sht1x: halt data: %w", errData)
	}
	if errClock != nil {
		return fmt.Errorf("sht1x: halt clock: %w", errClock)
	}
	return nil
}

func (d *Dev) exchange(ctx context.Context, cmd Command) (Measurement, error) {
	if err := ctx.Err(); err != nil {
		return Measurement{Command: cmd}, err
	}
	if !d.mu.TryLock() {
		return Measurement{Command: cmd}, ErrBusy
	}
	defer d.mu.Unlock()
	if d.halted {
		return Measurement{Command: cmd}, ErrClosed
	}
	t := transaction{data: d.data, clock: d.clock, cmd: cmd, limit: d.limit, log: d.log}
	return t.run()
}
