package sht1x

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
)

// Command is a measurement command understood by the sensor.
type Command uint8

const (
	CmdTemperature Command = 0x03 // 00000011
	CmdHumidity    Command = 0x05 // 00000101
)

func (c Command) String() string {
	switch c {
	case CmdTemperature:
		return "temperature"
	case CmdHumidity:
		return "humidity"
	default:
		return fmt.Sprintf("command(0x%02x)", uint8(c))
	}
}

// State is a step of one command/response exchange.
type State int

const (
	StateIdle State = iota
	StateStartSequence
	StateCommandShiftOut
	StateAckCheck
	StateWaitForResult
	StateDataShiftInHigh
	StateIntermediateAck
	StateDataShiftInLow
	StateCrcSkip
)

var stateNames = [...]string{
	StateIdle:            "Idle",
	StateStartSequence:   "StartSequence",
	StateCommandShiftOut: "CommandShiftOut",
	StateAckCheck:        "AckCheck",
	StateWaitForResult:   "WaitForResult",
	StateDataShiftInHigh: "DataShiftInHigh",
	StateIntermediateAck: "IntermediateAck",
	StateDataShiftInLow:  "DataShiftInLow",
	StateCrcSkip:         "CrcSkip",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Measurement is the result of one exchange.
type Measurement struct {
	Command Command
	Raw     uint16
	// Stale is set when the sensor never signalled completion within the
	// poll limit; Raw is then whatever the data line produced.
	Stale bool
	// Polls is the number of data line reads spent waiting for completion.
	Polls  int
	Faults []Fault
}

// Soft returns the faults of the exchange as an error, or nil.
func (m Measurement) Soft() error {
	if len(m.Faults) == 0 {
		return nil
	}
	return &SoftFailure{Faults: m.Faults}
}

// transaction runs the state machine for a single command. It must only be
// used while the device lock is held.
type transaction struct {
	data  *line
	clock *line
	cmd   Command
	limit int
	log   logrus.FieldLogger

	state  State
	result Measurement
}

func (t *transaction) run() (Measurement, error) {
	t.result = Measurement{Command: t.cmd}
	t.state = StateStartSequence
	for t.state != StateIdle {
		next, err := t.advance()
		if err != nil {
			return t.result, fmt.Errorf("sht1x: %s: %w", t.state, err)
		}
		t.state = next
	}
	return t.result, nil
}

// advance performs the action of the current state and returns the next one.
func (t *transaction) advance() (State, error) {
	switch t.state {
	case StateStartSequence:
		return StateCommandShiftOut, t.start()
	case StateCommandShiftOut:
		return StateAckCheck, t.shiftOut()
	case StateAckCheck:
		return StateWaitForResult, t.checkAck()
	case StateWaitForResult:
		return StateDataShiftInHigh, t.waitForResult()
	case StateDataShiftInHigh:
		b, err := t.shiftIn()
		t.result.Raw = uint16(b) * 256
		return StateIntermediateAck, err
	case StateIntermediateAck:
		return StateDataShiftInLow, t.intermediateAck()
	case StateDataShiftInLow:
		b, err := t.shiftIn()
		t.result.Raw |= uint16(b)
		return StateCrcSkip, err
	case StateCrcSkip:
		return StateIdle, t.skipCRC()
	}
	return StateIdle, fmt.Errorf("unexpected state %s", t.state)
}

type toggle struct {
	l *line
	v gpio.Level
}

func (t *transaction) sequence(steps ...toggle) error {
	for _, s := range steps {
		if err := s.l.write(s.v); err != nil {
			return err
		}
	}
	return nil
}

func (t *transaction) pulse() error {
	return t.sequence(toggle{t.clock, gpio.High}, toggle{t.clock, gpio.Low})
}

func (t *transaction) drive() error {
	if err := t.data.output(); err != nil {
		return err
	}
	return t.clock.output()
}

// start emits the transmission start: data falls while clock is high, then
// rises again during the next clock high.
func (t *transaction) start() error {
	if err := t.drive(); err != nil {
		return err
	}
	return t.sequence(
		toggle{t.data, gpio.High},
		toggle{t.clock, gpio.High},
		toggle{t.data, gpio.Low},
		toggle{t.clock, gpio.Low},
		toggle{t.clock, gpio.High},
		toggle{t.data, gpio.High},
		toggle{t.clock, gpio.Low},
	)
}

func (t *transaction) shiftOut() error {
	if err := t.drive(); err != nil {
		return err
	}
	for i := 7; i >= 0; i-- {
		bit := gpio.Level(uint8(t.cmd)&(1<<uint(i)) != 0)
		if err := t.data.write(bit); err != nil {
			return err
		}
		if err := t.pulse(); err != nil {
			return err
		}
	}
	return nil
}

// release hands the data line to the sensor. The sensor only drives it
// while it is released, so no clock pulse may happen before this.
func (t *transaction) release() error {
	if err := t.data.input(); err != nil {
		return err
	}
	return t.data.require(ModeInput)
}

// checkAck expects the sensor to pull data low on the ninth clock and let
// it go when the clock falls.
func (t *transaction) checkAck() error {
	if err := t.release(); err != nil {
		return err
	}
	if err := t.clock.write(gpio.High); err != nil {
		return err
	}
	v, err := t.data.read()
	if err != nil {
		return err
	}
	if v != gpio.Low {
		t.fault(CodeAckLow)
	}
	if err := t.clock.write(gpio.Low); err != nil {
		return err
	}
	if v, err = t.data.read(); err != nil {
		return err
	}
	if v != gpio.High {
		t.fault(CodeAckHigh)
	}
	return nil
}

func (t *transaction) waitForResult() error {
	if err := t.release(); err != nil {
		return err
	}
	for t.result.Polls < t.limit {
		v, err := t.data.read()
		if err != nil {
			return err
		}
		t.result.Polls++
		if v == gpio.Low {
			return nil
		}
	}
	t.result.Stale = true
	t.fault(CodeTimeout)
	return nil
}

func (t *transaction) shiftIn() (uint8, error) {
	if err := t.release(); err != nil {
		return 0, err
	}
	if err := t.clock.output(); err != nil {
		return 0, err
	}
	var b uint8
	for i := 0; i < 8; i++ {
		if err := t.clock.write(gpio.High); err != nil {
			return 0, err
		}
		v, err := t.data.read()
		if err != nil {
			return 0, err
		}
		b <<= 1
		if v == gpio.High {
			b |= 1
		}
		if err := t.clock.write(gpio.Low); err != nil {
			return 0, err
		}
	}
	return b, nil
}

// intermediateAck tells the sensor to send the low byte.
func (t *transaction) intermediateAck() error {
	if err := t.data.output(); err != nil {
		return err
	}
	if err := t.sequence(toggle{t.data, gpio.High}, toggle{t.data, gpio.Low}); err != nil {
		return err
	}
	return t.pulse()
}

// skipCRC keeps data high through one clock so the sensor does not send the
// checksum byte.
func (t *transaction) skipCRC() error {
	if err := t.drive(); err != nil {
		return err
	}
	if err := t.data.write(gpio.High); err != nil {
		return err
	}
	return t.pulse()
}

func (t *transaction) fault(code string) {
	f := Fault{Code: code, State: t.state, Command: t.cmd}
	t.result.Faults = append(t.result.Faults, f)
	t.log.WithFields(logrus.Fields{
		"code":    code,
		"state":   t.state.String(),
		"command": t.cmd.String(),
	}).Warn("sht1x: sensor protocol fault")
}
