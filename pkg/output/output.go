package output

import "github.com/ericogr/sht15-to-mqtt/pkg/engine"

type Output interface {
	Publish(engine.Record) error
	Close() error
}

// helper constructors are in subpackages
