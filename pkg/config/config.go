package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	SensorReal       = "real"
	SensorSimulation = "simulation"

	OutputConsole = "console"
	OutputMQTT    = "mqtt"

	AlertMQTT     = "mqtt"
	AlertTelegram = "telegram"
)

type MQTTConfig struct {
	Server            string `json:"server" yaml:"server"`
	Username          string `json:"username" yaml:"username"`
	Password          string `json:"password" yaml:"password"`
	ClientID          string `json:"client_id" yaml:"client_id"`
	Topic             string `json:"topic" yaml:"topic"`
	DiscoveryTopic    string `json:"discovery_topic,omitempty" yaml:"discovery_topic,omitempty"`
	DiscoveryName     string `json:"discovery_name,omitempty" yaml:"discovery_name,omitempty"`
	DiscoveryUniqueID string `json:"discovery_unique_id,omitempty" yaml:"discovery_unique_id,omitempty"`
}

type OutputConfig struct {
	Type       string      `json:"type" yaml:"type"`
	IntervalMs int         `json:"interval_ms,omitempty" yaml:"interval_ms,omitempty"`
	MQTT       *MQTTConfig `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
}

type TelegramConfig struct {
	Token  string `json:"token" yaml:"token"`
	ChatID int64  `json:"chat_id" yaml:"chat_id"`
}

type AlertConfig struct {
	Type     string          `json:"type" yaml:"type"`
	MQTT     *MQTTConfig     `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty" yaml:"telegram,omitempty"`
}

// ControlConfig describes where maximum temperature updates come from.
type ControlConfig struct {
	MQTT *MQTTConfig `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
}

type PinsConfig struct {
	Data  string `json:"data" yaml:"data"`
	Clock string `json:"clock" yaml:"clock"`
}

type ShipConfig struct {
	Name   string `json:"name" yaml:"name"`
	Engine string `json:"engine" yaml:"engine"`
}

type Config struct {
	Pins       PinsConfig `json:"pins" yaml:"pins"`
	SensorType string     `json:"sensor_type" yaml:"sensor_type"`
	IntervalMs int        `json:"interval_ms" yaml:"interval_ms"`
	PollLimit  int        `json:"poll_limit,omitempty" yaml:"poll_limit,omitempty"`
	Ship       ShipConfig `json:"ship" yaml:"ship"`
	// TemperatureMultiplier scales the sensor temperature into a simulated
	// engine temperature.
	TemperatureMultiplier float64        `json:"temperature_multiplier" yaml:"temperature_multiplier"`
	MaximumTemperature    float64        `json:"maximum_temperature" yaml:"maximum_temperature"`
	EngineWarningChance   float64        `json:"engine_warning_chance" yaml:"engine_warning_chance"`
	LogLevel              string         `json:"log_level" yaml:"log_level"`
	Outputs               []OutputConfig `json:"outputs" yaml:"outputs"`
	Control               *ControlConfig `json:"control,omitempty" yaml:"control,omitempty"`
	Alerts                []AlertConfig  `json:"alerts,omitempty" yaml:"alerts,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Pins:                  PinsConfig{Data: "GPIO24", Clock: "GPIO23"},
		SensorType:            SensorReal,
		IntervalMs:            5000,
		Ship:                  ShipConfig{Name: "Hydra", Engine: "Main Engine Port"},
		TemperatureMultiplier: 20,
		MaximumTemperature:    500,
		EngineWarningChance:   0.1,
		LogLevel:              "info",
		Outputs:               []OutputConfig{{Type: OutputConsole}},
	}
}

// Load reads configuration from a JSON or YAML file (optional, -config) and
// from flags. Flags override values present in the file.
func Load(fs *flag.FlagSet, args []string) (Config, error) {
	cfgPath := fs.String("config", "", "Path to JSON or YAML config file")
	flagDataPin := fs.String("data-pin", "", "Sensor data pin name (e.g. GPIO24)")
	flagClockPin := fs.String("clock-pin", "", "Sensor clock pin name (e.g. GPIO23)")
	flagSensorType := fs.String("sensor-type", "", "sensor type: real|simulation")
	flagInterval := fs.Int("interval-ms", -1, "Reading interval in ms")
	flagPollLimit := fs.Int("poll-limit", -1, "Data line reads while waiting for a conversion")
	flagShip := fs.String("ship", "", "Ship name")
	flagEngine := fs.String("engine", "", "Engine name")
	flagMultiplier := fs.Float64("temperature-multiplier", math.NaN(), "Engine temperature multiplier")
	flagMaxTemp := fs.Float64("maximum-temperature", math.NaN(), "Initial maximum engine temperature")
	flagLogLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	flagOutputs := fs.String("outputs", "", "Comma-separated outputs (console,mqtt)")
	flagOutputIntervals := fs.String("output-intervals", "", "Comma-separated output intervals e.g. console=1000,mqtt=5000")
	flagMQTTServer := fs.String("mqtt-server", "", "MQTT server (tcp://host:port)")
	flagMQTTUser := fs.String("mqtt-user", "", "MQTT username")
	flagMQTTPass := fs.String("mqtt-pass", "", "MQTT password")
	flagClientID := fs.String("mqtt-client-id", "", "MQTT client id")
	flagTopic := fs.String("mqtt-topic", "", "MQTT state topic, %s is replaced by the ship name")
	flagControlTopic := fs.String("control-topic", "", "MQTT topic carrying maximum temperature updates")
	flagAlertTopic := fs.String("alert-topic", "", "MQTT topic for errors and warnings")
	flagTelegramToken := fs.String("telegram-token", "", "Telegram bot token for alerts")
	flagTelegramChat := fs.Int64("telegram-chat-id", 0, "Telegram chat id for alerts")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()

	if *cfgPath != "" {
		b, err := os.ReadFile(*cfgPath)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := decode(*cfgPath, b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if *flagDataPin != "" {
		cfg.Pins.Data = *flagDataPin
	}
	if *flagClockPin != "" {
		cfg.Pins.Clock = *flagClockPin
	}
	if *flagSensorType != "" {
		cfg.SensorType = *flagSensorType
	}
	if *flagInterval != -1 {
		cfg.IntervalMs = *flagInterval
	}
	if *flagPollLimit != -1 {
		cfg.PollLimit = *flagPollLimit
	}
	if *flagShip != "" {
		cfg.Ship.Name = *flagShip
	}
	if *flagEngine != "" {
		cfg.Ship.Engine = *flagEngine
	}
	if !math.IsNaN(*flagMultiplier) {
		cfg.TemperatureMultiplier = *flagMultiplier
	}
	if !math.IsNaN(*flagMaxTemp) {
		cfg.MaximumTemperature = *flagMaxTemp
	}
	if *flagLogLevel != "" {
		cfg.LogLevel = *flagLogLevel
	}
	if *flagOutputs != "" {
		// convert simple CSV of types into structured OutputConfig entries
		parts := parseCSV(*flagOutputs)
		outs := make([]OutputConfig, 0, len(parts))
		for _, p := range parts {
			outs = append(outs, OutputConfig{Type: p, IntervalMs: cfg.IntervalMs})
		}
		cfg.Outputs = outs
	}
	if *flagOutputIntervals != "" {
		intervals, err := parseKeyIntMap(*flagOutputIntervals)
		if err != nil {
			return cfg, fmt.Errorf("output-intervals: %w", err)
		}
		for i := range cfg.Outputs {
			if v, ok := intervals[cfg.Outputs[i].Type]; ok {
				cfg.Outputs[i].IntervalMs = v
			}
		}
	}

	flagMQTT := MQTTConfig{
		Server:   *flagMQTTServer,
		Username: *flagMQTTUser,
		Password: *flagMQTTPass,
		ClientID: *flagClientID,
		Topic:    *flagTopic,
	}
	if flagMQTT != (MQTTConfig{}) {
		// Apply MQTT flags to all mqtt outputs; if none exist, create one.
		applied := false
		for i := range cfg.Outputs {
			if strings.ToLower(cfg.Outputs[i].Type) == OutputMQTT {
				if cfg.Outputs[i].MQTT == nil {
					cfg.Outputs[i].MQTT = &MQTTConfig{}
				}
				mergeMQTT(cfg.Outputs[i].MQTT, flagMQTT)
				applied = true
			}
		}
		if !applied {
			mqttOut := OutputConfig{Type: OutputMQTT, IntervalMs: cfg.IntervalMs, MQTT: &MQTTConfig{}}
			mergeMQTT(mqttOut.MQTT, flagMQTT)
			cfg.Outputs = append(cfg.Outputs, mqttOut)
		}
	}
	if *flagControlTopic != "" {
		if cfg.Control == nil {
			cfg.Control = &ControlConfig{}
		}
		if cfg.Control.MQTT == nil {
			cfg.Control.MQTT = cfg.brokerDefaults()
		}
		cfg.Control.MQTT.Topic = *flagControlTopic
	}
	if *flagAlertTopic != "" {
		m := cfg.brokerDefaults()
		m.Topic = *flagAlertTopic
		cfg.Alerts = append(cfg.Alerts, AlertConfig{Type: AlertMQTT, MQTT: m})
	}
	if *flagTelegramToken != "" {
		cfg.Alerts = append(cfg.Alerts, AlertConfig{
			Type:     AlertTelegram,
			Telegram: &TelegramConfig{Token: *flagTelegramToken, ChatID: *flagTelegramChat},
		})
	}

	// ensure outputs have interval default
	for i := range cfg.Outputs {
		if cfg.Outputs[i].IntervalMs == 0 {
			cfg.Outputs[i].IntervalMs = cfg.IntervalMs
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks the values that cannot be defaulted.
func (c Config) Validate() error {
	if c.IntervalMs <= 0 {
		return errors.New("interval-ms must be > 0")
	}
	if c.PollLimit < 0 {
		return errors.New("poll-limit must be >= 0")
	}
	switch c.SensorType {
	case SensorReal:
		if c.Pins.Data == "" || c.Pins.Clock == "" {
			return errors.New("data and clock pins are required for a real sensor")
		}
		if c.Pins.Data == c.Pins.Clock {
			return fmt.Errorf("data and clock pins must differ, both are %q", c.Pins.Data)
		}
	case SensorSimulation:
	default:
		return fmt.Errorf("unknown sensor type %q", c.SensorType)
	}
	if c.EngineWarningChance < 0 || c.EngineWarningChance > 1 {
		return errors.New("engine-warning-chance must be within [0, 1]")
	}
	for _, o := range c.Outputs {
		switch strings.ToLower(o.Type) {
		case OutputConsole:
		case OutputMQTT:
			if o.MQTT == nil || o.MQTT.Server == "" {
				return errors.New("mqtt output requires a server")
			}
		default:
			return fmt.Errorf("unknown output type %q", o.Type)
		}
	}
	if c.Control != nil && c.Control.MQTT != nil {
		if c.Control.MQTT.Server == "" || c.Control.MQTT.Topic == "" {
			return errors.New("control requires an mqtt server and topic")
		}
	}
	for _, a := range c.Alerts {
		switch strings.ToLower(a.Type) {
		case AlertMQTT:
			if a.MQTT == nil || a.MQTT.Server == "" || a.MQTT.Topic == "" {
				return errors.New("mqtt alert requires a server and topic")
			}
		case AlertTelegram:
			if a.Telegram == nil || a.Telegram.Token == "" || a.Telegram.ChatID == 0 {
				return errors.New("telegram alert requires a token and chat id")
			}
		default:
			return fmt.Errorf("unknown alert type %q", a.Type)
		}
	}
	return nil
}

// brokerDefaults returns a copy of the first mqtt output connection settings
// with an empty topic, so control and alerts reuse the same broker.
func (c Config) brokerDefaults() *MQTTConfig {
	for _, o := range c.Outputs {
		if strings.ToLower(o.Type) == OutputMQTT && o.MQTT != nil {
			return &MQTTConfig{
				Server:   o.MQTT.Server,
				Username: o.MQTT.Username,
				Password: o.MQTT.Password,
				ClientID: o.MQTT.ClientID,
			}
		}
	}
	return &MQTTConfig{}
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

func mergeMQTT(dst *MQTTConfig, src MQTTConfig) {
	if src.Server != "" {
		dst.Server = src.Server
	}
	if src.Username != "" {
		dst.Username = src.Username
	}
	if src.Password != "" {
		dst.Password = src.Password
	}
	if src.ClientID != "" {
		dst.ClientID = src.ClientID
	}
	if src.Topic != "" {
		dst.Topic = src.Topic
	}
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseKeyIntMap(s string) (map[string]int, error) {
	out := map[string]int{}
	for _, p := range parseCSV(s) {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid entry '%s'", p)
		}
		v, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid value in '%s': %w", p, err)
		}
		out[strings.TrimSpace(kv[0])] = v
	}
	return out, nil
}
