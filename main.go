package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ericogr/sht15-to-mqtt/pkg/alert"
	alertmqtt "github.com/ericogr/sht15-to-mqtt/pkg/alert/mqtt"
	"github.com/ericogr/sht15-to-mqtt/pkg/alert/telegram"
	"github.com/ericogr/sht15-to-mqtt/pkg/config"
	"github.com/ericogr/sht15-to-mqtt/pkg/control"
	"github.com/ericogr/sht15-to-mqtt/pkg/engine"
	"github.com/ericogr/sht15-to-mqtt/pkg/monitor"
	"github.com/ericogr/sht15-to-mqtt/pkg/output/console"
	outmqtt "github.com/ericogr/sht15-to-mqtt/pkg/output/mqtt"
	"github.com/ericogr/sht15-to-mqtt/pkg/sensor"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatalf("log level: %v", err)
	}
	logger.SetLevel(level)

	hook, err := initAlertHook(cfg, logger)
	if err != nil {
		logger.Fatalf("alerts: %v", err)
	}
	os.Exit(finish(run(cfg, logger), logger, hook))
}

// initAlertHook attaches the configured alerters to logger. It returns nil
// when no alerts are configured.
func initAlertHook(cfg config.Config, logger *logrus.Logger) (*alert.Hook, error) {
	if len(cfg.Alerts) == 0 {
		return nil, nil
	}
	alerters, err := initAlerters(cfg)
	if err != nil {
		return nil, err
	}
	hook := alert.NewHook(cfg.Ship.Name, alerters, alert.DefaultQueueSize, os.Stderr)
	logger.AddHook(hook)
	return hook, nil
}

// finish logs the outcome of run, flushes pending alerts and returns the
// process exit code.
func finish(err error, logger logrus.FieldLogger, hook *alert.Hook) int {
	code := 0
	if err != nil {
		logger.WithError(err).Error("stopped")
		code = 1
	} else {
		logger.Info("shutdown complete")
	}
	if hook != nil {
		if err := hook.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "closing alerters: %v\n", err)
		}
	}
	return code
}

func run(cfg config.Config, logger *logrus.Logger) error {
	s, err := sensor.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("sensor: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.WithError(err).Warn("error during sensor shutdown")
		}
	}()

	interval := computeSensorInterval(cfg)
	entries, err := initOutputs(&cfg, int(interval/time.Millisecond), logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, e := range entries {
			if err := e.Output.Close(); err != nil {
				logger.WithError(err).WithField("output", e.Name).Warn("error closing output")
			}
		}
	}()

	var updates <-chan control.Update
	if cfg.Control != nil && cfg.Control.MQTT != nil {
		sub, err := control.NewSubscriber(*cfg.Control.MQTT, logger)
		if err != nil {
			return fmt.Errorf("control: %w", err)
		}
		defer sub.Close()
		updates = sub.Updates()
	}

	builder := engine.NewBuilder(engine.Options{
		ShipName:      cfg.Ship.Name,
		EngineName:    cfg.Ship.Engine,
		Multiplier:    cfg.TemperatureMultiplier,
		WarningChance: cfg.EngineWarningChance,
	}, nil)
	m := monitor.New(s, builder, entries, interval, cfg.MaximumTemperature, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(logrus.Fields{
		"ship":     cfg.Ship.Name,
		"engine":   cfg.Ship.Engine,
		"sensor":   cfg.SensorType,
		"interval": interval,
		"outputs":  len(entries),
	}).Info("starting")
	return m.Run(ctx, updates)
}

// computeSensorInterval returns the sensor cadence.
func computeSensorInterval(cfg config.Config) time.Duration {
	if cfg.IntervalMs <= 0 {
		return monitor.DefaultInterval
	}
	return time.Duration(cfg.IntervalMs) * time.Millisecond
}

// initOutputs builds the configured outputs. Outputs without an interval use
// the sensor interval, and none may publish faster than it.
func initOutputs(cfg *config.Config, intervalMs int, logger logrus.FieldLogger) ([]monitor.Entry, error) {
	entries := make([]monitor.Entry, 0, len(cfg.Outputs))
	for i := range cfg.Outputs {
		oc := &cfg.Outputs[i]
		if oc.IntervalMs < intervalMs {
			oc.IntervalMs = intervalMs
		}
		var e monitor.Entry
		switch strings.ToLower(oc.Type) {
		case config.OutputConsole:
			e = monitor.Entry{Name: config.OutputConsole, Output: console.NewConsole()}
		case config.OutputMQTT:
			if oc.MQTT == nil {
				return nil, fmt.Errorf("output %d: mqtt settings missing", i)
			}
			o, err := outmqtt.NewMQTT(*oc.MQTT, cfg.Ship.Name, logger)
			if err != nil {
				return nil, fmt.Errorf("output %d: %w", i, err)
			}
			e = monitor.Entry{Name: config.OutputMQTT, Output: o}
		default:
			return nil, fmt.Errorf("output %d: unknown type %q", i, oc.Type)
		}
		e.IntervalMs = oc.IntervalMs
		entries = append(entries, e)
	}
	return entries, nil
}

func initAlerters(cfg config.Config) ([]alert.Alerter, error) {
	alerters := make([]alert.Alerter, 0, len(cfg.Alerts))
	for i, ac := range cfg.Alerts {
		var (
			a   alert.Alerter
			err error
		)
		switch strings.ToLower(ac.Type) {
		case config.AlertMQTT:
			if ac.MQTT == nil {
				return nil, fmt.Errorf("alert %d: mqtt settings missing", i)
			}
			a, err = alertmqtt.New(*ac.MQTT)
		case config.AlertTelegram:
			if ac.Telegram == nil {
				return nil, fmt.Errorf("alert %d: telegram settings missing", i)
			}
			a, err = telegram.New(*ac.Telegram)
		default:
			err = fmt.Errorf("unknown type %q", ac.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("alert %d: %w", i, err)
		}
		alerters = append(alerters, a)
	}
	return alerters, nil
}
