package sht1x

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// Mode is the drive mode of a protocol line.
type Mode int

const (
	ModeUnset Mode = iota
	ModeInput
	ModeOutput
)

func (m Mode) String() string {
	switch m {
	case ModeInput:
		return "input"
	case ModeOutput:
		return "output"
	default:
		return "unset"
	}
}

// line wraps a host pin and remembers its drive mode, so the ordering of the
// protocol can be checked before the pin is touched.
type line struct {
	name  string
	pin   gpio.PinIO
	mode  Mode
	level gpio.Level
}

func newLine(name string, p gpio.PinIO, idle gpio.Level) *line {
	return &line{name: name, pin: p, level: idle}
}

// input releases the line so the sensor can drive it.
func (l *line) input() error {
	if l.mode == ModeInput {
		return nil
	}
	if err := l.pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return fmt.Errorf("sht1x: %s input: %w", l.name, err)
	}
	l.mode = ModeInput
	return nil
}

// output drives the line, holding the last level written to it.
func (l *line) output() error {
	if l.mode == ModeOutput {
		return nil
	}
	if err := l.pin.Out(l.level); err != nil {
		return fmt.Errorf("sht1x: %s output: %w", l.name, err)
	}
	l.mode = ModeOutput
	return nil
}

func (l *line) write(v gpio.Level) error {
	if err := l.require(ModeOutput); err != nil {
		return err
	}
	if err := l.pin.Out(v); err != nil {
		return fmt.Errorf("sht1x: %s write: %w", l.name, err)
	}
	l.level = v
	return nil
}

func (l *line) read() (gpio.Level, error) {
	if err := l.require(ModeInput); err != nil {
		return gpio.Low, err
	}
	return l.pin.Read(), nil
}

func (l *line) require(m Mode) error {
	if l.mode != m {
		return fmt.Errorf("%w: %s is %s, want %s", ErrWrongMode, l.name, l.mode, m)
	}
	return nil
}

func (l *line) halt() error {
	l.mode = ModeUnset
	return l.pin.Halt()
}
