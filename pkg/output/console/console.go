package console

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ericogr/sht15-to-mqtt/pkg/engine"
	"github.com/ericogr/sht15-to-mqtt/pkg/output"
)

type ConsoleOutput struct {
	w io.Writer
}

func NewConsole() output.Output { return &ConsoleOutput{w: os.Stdout} }

func (c *ConsoleOutput) Publish(r engine.Record) error {
	_, err := fmt.Fprintf(c.w, "%s ship=%q engine=%q temperature=%.2f humidity=%.2f dew_point=%.2f rpm=%.0f warning=%t engine_warning=%d stale=%t\n",
		r.CreatedDateTime.Format(time.RFC3339), r.ShipName, r.EngineName, r.Temperature, r.Humidity, r.DewPoint, r.RPM, r.Warning, r.EngineWarning, r.Stale)
	return err
}

func (c *ConsoleOutput) Close() error { return nil }
