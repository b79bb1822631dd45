// Package sht1xtest provides a simulated pin pair for testing code that talks
// to a SHT1x sensor without hardware or timing dependence.
//
// The data line replays a script of levels, one per read; the bus records
// every pin operation so tests can check the order in which the lines were
// driven.
package sht1xtest

import (
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// Op is a kind of pin operation.
type Op int

const (
	OpIn Op = iota
	OpOut
	OpRead
	OpHalt
)

func (o Op) String() string {
	switch o {
	case OpIn:
		return "In"
	case OpOut:
		return "Out"
	case OpRead:
		return "Read"
	default:
		return "Halt"
	}
}

// Event is one operation on a simulated pin.
type Event struct {
	Pin   string
	Op    Op
	Level gpio.Level
}

// Edge describes the data line at a rising clock edge.
type Edge struct {
	// Driven is true when the data line was in output mode.
	Driven bool
	Data   gpio.Level
}

// Bus is a simulated data/clock pin pair.
type Bus struct {
	Data  *Pin
	Clock *Pin

	mu     sync.Mutex
	script []gpio.Level
	idle   gpio.Level
	events []Event
	// Violations counts reads on a line in output mode.
	violations int
}

// Pin is one line of a Bus. It implements gpio.PinIO.
type Pin struct {
	*gpiotest.Pin
	bus    *Bus
	output bool
	halts  int
}

// NewBus returns a Bus whose data line reads idle once its script is empty.
func NewBus(idle gpio.Level) *Bus {
	b := &Bus{idle: idle}
	b.Data = &Pin{Pin: &gpiotest.Pin{N: "SIM_DATA", Num: 24}, bus: b}
	b.Clock = &Pin{Pin: &gpiotest.Pin{N: "SIM_CLOCK", Num: 23}, bus: b}
	return b
}

// Script appends levels to be returned by successive data reads.
func (b *Bus) Script(levels ...gpio.Level) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.script = append(b.script, levels...)
}

// Respond scripts a well behaved sensor answering one command with raw:
// acknowledgement, immediate completion, high byte then low byte.
func (b *Bus) Respond(raw uint16) {
	b.Script(Response(raw)...)
}

// Response returns the data line levels of a well behaved exchange.
func Response(raw uint16) []gpio.Level {
	out := []gpio.Level{gpio.Low, gpio.High, gpio.Low}
	for i := 15; i >= 0; i-- {
		out = append(out, gpio.Level(raw&(1<<uint(i)) != 0))
	}
	return out
}

// Events returns a copy of the recorded operations.
func (b *Bus) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

// Reset forgets recorded operations.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
	b.violations = 0
}

// Reads returns the number of data line reads.
func (b *Bus) Reads() int {
	n := 0
	for _, e := range b.Events() {
		if e.Op == OpRead && e.Pin == b.Data.N {
			n++
		}
	}
	return n
}

// Remaining returns the number of scripted levels not read yet.
func (b *Bus) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.script)
}

// Violations returns the number of reads made on a line in output mode.
func (b *Bus) Violations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.violations
}

// Edges returns the state of the data line at every rising clock edge.
func (b *Bus) Edges() []Edge {
	var out []Edge
	clock := gpio.Low
	data := Edge{}
	for _, e := range b.Events() {
		switch {
		case e.Pin == b.Data.N && e.Op == OpOut:
			data = Edge{Driven: true, Data: e.Level}
		case e.Pin == b.Data.N && e.Op == OpIn:
			data.Driven = false
		case e.Pin == b.Clock.N && e.Op == OpOut:
			if clock == gpio.Low && e.Level == gpio.High {
				out = append(out, data)
			}
			clock = e.Level
		}
	}
	return out
}

// Halts returns how many times each line was halted.
func (b *Bus) Halts() (data, clock int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Data.halts, b.Clock.halts
}

func (b *Bus) record(p *Pin, op Op, l gpio.Level) {
	b.events = append(b.events, Event{Pin: p.N, Op: op, Level: l})
}

// In implements gpio.PinIn.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.bus.mu.Lock()
	p.output = false
	p.bus.record(p, OpIn, gpio.Low)
	p.bus.mu.Unlock()
	return p.Pin.In(pull, edge)
}

// Read implements gpio.PinIn. The data line returns the next scripted level.
func (p *Pin) Read() gpio.Level {
	b := p.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.output {
		b.violations++
	}
	l := p.Pin.L
	if p == b.Data {
		l = b.idle
		if len(b.script) > 0 {
			l = b.script[0]
			b.script = b.script[1:]
		}
	}
	b.record(p, OpRead, l)
	return l
}

// Out implements gpio.PinOut.
func (p *Pin) Out(l gpio.Level) error {
	p.bus.mu.Lock()
	p.output = true
	p.bus.record(p, OpOut, l)
	p.bus.mu.Unlock()
	return p.Pin.Out(l)
}

// Halt implements conn.Resource.
func (p *Pin) Halt() error {
	p.bus.mu.Lock()
	p.halts++
	p.bus.record(p, OpHalt, gpio.Low)
	p.bus.mu.Unlock()
	return nil
}

var _ gpio.PinIO = &Pin{}
