// Package engine packages sensor readings into the engine information record
// sent to the message bus.
package engine

import (
	"math/rand"
	"time"

	"github.com/ericogr/sht15-to-mqtt/pkg/sensor"
	"github.com/google/uuid"
)

// Record is the engine information published for every reading.
type Record struct {
	Identifier      uuid.UUID `json:"Identifier"`
	ShipName        string    `json:"ShipName"`
	EngineName      string    `json:"EngineName"`
	Temperature     float64   `json:"Temperature"`
	Humidity        float64   `json:"Humidity"`
	DewPoint        float64   `json:"DewPoint"`
	RPM             float64   `json:"RPM"`
	Warning         bool      `json:"Warning"`
	EngineWarning   int       `json:"EngineWarning"`
	Stale           bool      `json:"Stale"`
	CreatedDateTime time.Time `json:"CreatedDateTime"`
}

// Options describe the simulated engine.
type Options struct {
	ShipName   string
	EngineName string
	// Multiplier scales the sensor temperature into an engine temperature.
	Multiplier float64
	// WarningChance is the probability per record of raising the one-off
	// engine warning.
	WarningChance float64
}

// Builder turns readings into records. It is not safe for concurrent use.
type Builder struct {
	opts   Options
	rng    *rand.Rand
	warned bool
	now    func() time.Time
}

func NewBuilder(opts Options, rng *rand.Rand) *Builder {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Builder{opts: opts, rng: rng, now: time.Now}
}

// Build returns the record for r. Warning is set when the engine temperature
// exceeds maximum.
func (b *Builder) Build(r sensor.Reading, maximum float64) Record {
	temperature := r.Celsius * b.opts.Multiplier
	rec := Record{
		Identifier:      uuid.New(),
		ShipName:        b.opts.ShipName,
		EngineName:      b.opts.EngineName,
		Temperature:     temperature,
		Humidity:        r.Humidity,
		DewPoint:        r.DewPoint,
		RPM:             float64(400 + b.rng.Intn(600)),
		Warning:         temperature > maximum,
		Stale:           r.Stale,
		CreatedDateTime: b.now().UTC(),
	}
	if !b.warned && b.rng.Float64() < b.opts.WarningChance {
		rec.EngineWarning = 1 + b.rng.Intn(2)
		b.warned = true
	}
	return rec
}
