package main

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ericogr/sht15-to-mqtt/pkg/alert"
	"github.com/ericogr/sht15-to-mqtt/pkg/config"
	"github.com/ericogr/sht15-to-mqtt/pkg/monitor"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func TestComputeSensorInterval(t *testing.T) {
	if got := computeSensorInterval(config.Config{}); got != monitor.DefaultInterval {
		t.Fatalf("fallback interval: got %v want %v", got, monitor.DefaultInterval)
	}
	if got := computeSensorInterval(config.Config{IntervalMs: 2500}); got != 2500*time.Millisecond {
		t.Fatalf("configured interval: got %v", got)
	}
}

func TestInitOutputsSetsInterval(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	cfg := config.Config{Outputs: []config.OutputConfig{{Type: "console"}, {Type: "console", IntervalMs: 10000}}}
	entries, err := initOutputs(&cfg, 123, logger)
	if err != nil {
		t.Fatalf("initOutputs: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries len: %d", len(entries))
	}
	if cfg.Outputs[0].IntervalMs != 123 {
		t.Fatalf("cfg output interval not set, got %d", cfg.Outputs[0].IntervalMs)
	}
	if entries[0].IntervalMs != 123 {
		t.Fatalf("entry interval not set, got %d", entries[0].IntervalMs)
	}
	if entries[1].IntervalMs != 10000 {
		t.Fatalf("explicit interval overridden, got %d", entries[1].IntervalMs)
	}
}

func TestInitOutputsErrors(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	for _, outs := range [][]config.OutputConfig{
		{{Type: "kafka"}},
		{{Type: "mqtt"}},
	} {
		cfg := config.Config{Outputs: outs}
		if _, err := initOutputs(&cfg, 1000, logger); err == nil {
			t.Fatalf("expected error for %+v", outs)
		}
	}
}

func TestInitAlertersErrors(t *testing.T) {
	for _, alerts := range [][]config.AlertConfig{
		{{Type: "sms"}},
		{{Type: "mqtt"}},
		{{Type: "telegram"}},
	} {
		if _, err := initAlerters(config.Config{Alerts: alerts}); err == nil {
			t.Fatalf("expected error for %+v", alerts)
		}
	}
}

type alertRecorder struct {
	mu     sync.Mutex
	alerts []alert.Alert
	closed bool
}

func (r *alertRecorder) Send(a alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *alertRecorder) Close() error {
	r.closed = true
	return nil
}

func TestFinishDeliversStartupFailure(t *testing.T) {
	rec := &alertRecorder{}
	hook := alert.NewHook("Hydra", []alert.Alerter{rec}, 0, nil)
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	logger.AddHook(hook)

	if code := finish(errors.New("sensor: open sht1x: pin unavailable"), logger, hook); code != 1 {
		t.Fatalf("exit code: got %d want 1", code)
	}
	if !rec.closed {
		t.Fatalf("alerters not closed")
	}
	if len(rec.alerts) != 1 || rec.alerts[0].Level != "error" {
		t.Fatalf("alerts: %+v", rec.alerts)
	}
	if !strings.Contains(rec.alerts[0].Message, "pin unavailable") {
		t.Fatalf("alert message: %q", rec.alerts[0].Message)
	}
}

func TestFinishClean(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	if code := finish(nil, logger, nil); code != 0 {
		t.Fatalf("exit code: got %d want 0", code)
	}
}

func TestInitAlertHookNone(t *testing.T) {
	hook, err := initAlertHook(config.Config{}, logrus.New())
	if err != nil || hook != nil {
		t.Fatalf("expected no hook, got %v %v", hook, err)
	}
}
