package sht1x

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPinUnavailable is wrapped by a HardFailure when a pin cannot be
	// acquired from the host.
	ErrPinUnavailable = errors.New("sht1x: pin unavailable")
	// ErrBusy is returned when another transaction already holds the pins.
	ErrBusy = errors.New("sht1x: transaction in progress")
	// ErrClosed is returned by reads after Halt.
	ErrClosed = errors.New("sht1x: device halted")
	// ErrWrongMode is returned when a line is accessed in the wrong drive mode.
	ErrWrongMode = errors.New("sht1x: line in wrong mode")
)

// Diagnostic codes for soft failures.
const (
	CodeAckLow  = "ack-low-expected-failed"
	CodeAckHigh = "ack-high-expected-failed"
	CodeTimeout = "wait-for-result-timeout"
)

// Fault is a protocol deviation observed during one exchange. The exchange
// continues after a fault; the reading it produces may be invalid.
type Fault struct {
	Code    string
	State   State
	Command Command
}

func (f Fault) String() string {
	return fmt.Sprintf("%s during %s (%s)", f.Code, f.State, f.Command)
}

// SoftFailure groups the faults of one or more exchanges. It is never
// returned as an error by the read operations; see Measurement.Soft.
type SoftFailure struct {
	Faults []Fault
}

func (s *SoftFailure) Error() string {
	parts := make([]string, 0, len(s.Faults))
	for _, f := range s.Faults {
		parts = append(parts, f.String())
	}
	return "sht1x: soft failure: " + strings.Join(parts, "; ")
}

// HardFailure is returned when the device cannot be constructed.
type HardFailure struct {
	Pin string
	Err error
}

func (h *HardFailure) Error() string {
	return fmt.Sprintf("sht1x: cannot acquire pin %q: %v", h.Pin, h.Err)
}

func (h *HardFailure) Unwrap() error { return h.Err }
