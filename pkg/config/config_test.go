package config

import (
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	fs := flag.NewFlagSet(t.Name(), flag.ContinueOnError)
	return Load(fs, args)
}

func TestParseKeyIntMap(t *testing.T) {
	tests := []struct {
		in   string
		want map[string]int
		ok   bool
	}{
		{"", map[string]int{}, true},
		{"console=1000,mqtt=5000", map[string]int{"console": 1000, "mqtt": 5000}, true},
		{" console = 250 , mqtt=10", map[string]int{"console": 250, "mqtt": 10}, true},
		{"bad", nil, false},
		{"mqtt=fast", nil, false},
	}
	for _, tt := range tests {
		got, err := parseKeyIntMap(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("parseKeyIntMap(%q) ok=%v err=%v", tt.in, tt.ok, err)
		}
		if tt.ok && !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("parseKeyIntMap(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)
	want := DefaultConfig()
	want.Outputs[0].IntervalMs = want.IntervalMs
	assert.Equal(t, want, cfg)
	assert.Equal(t, "GPIO24", cfg.Pins.Data)
	assert.Equal(t, "GPIO23", cfg.Pins.Clock)
	assert.Equal(t, 5000, cfg.IntervalMs)
	assert.Equal(t, 500.0, cfg.MaximumTemperature)
}

func TestLoadIntervalReachesDefaultOutput(t *testing.T) {
	for _, ms := range []int{1000, 10000} {
		cfg, err := load(t, "-interval-ms", strconv.Itoa(ms))
		require.NoError(t, err)
		require.Len(t, cfg.Outputs, 1)
		assert.Equal(t, OutputConsole, cfg.Outputs[0].Type)
		assert.Equal(t, ms, cfg.Outputs[0].IntervalMs)
	}
}

func TestLoadFlagsOverride(t *testing.T) {
	cfg, err := load(t,
		"-data-pin", "GPIO5", "-clock-pin", "GPIO6",
		"-interval-ms", "1000",
		"-outputs", "console,mqtt",
		"-output-intervals", "mqtt=3000",
		"-mqtt-server", "tcp://broker:1883", "-mqtt-topic", "ships/%s/engine",
		"-control-topic", "ships/Hydra/administration",
		"-maximum-temperature", "450",
	)
	require.NoError(t, err)
	assert.Equal(t, PinsConfig{Data: "GPIO5", Clock: "GPIO6"}, cfg.Pins)
	require.Len(t, cfg.Outputs, 2)
	assert.Equal(t, 1000, cfg.Outputs[0].IntervalMs)
	assert.Equal(t, 3000, cfg.Outputs[1].IntervalMs)
	require.NotNil(t, cfg.Outputs[1].MQTT)
	assert.Equal(t, "tcp://broker:1883", cfg.Outputs[1].MQTT.Server)
	assert.Equal(t, "ships/%s/engine", cfg.Outputs[1].MQTT.Topic)

	require.NotNil(t, cfg.Control)
	assert.Equal(t, "tcp://broker:1883", cfg.Control.MQTT.Server)
	assert.Equal(t, "ships/Hydra/administration", cfg.Control.MQTT.Topic)
	assert.Equal(t, 450.0, cfg.MaximumTemperature)
}

func TestLoadMQTTFlagsCreateOutput(t *testing.T) {
	cfg, err := load(t, "-mqtt-server", "tcp://broker:1883", "-alert-topic", "ships/errorsandwarnings")
	require.NoError(t, err)
	require.Len(t, cfg.Outputs, 2)
	assert.Equal(t, OutputMQTT, cfg.Outputs[1].Type)
	assert.Equal(t, cfg.IntervalMs, cfg.Outputs[1].IntervalMs)

	require.Len(t, cfg.Alerts, 1)
	assert.Equal(t, AlertMQTT, cfg.Alerts[0].Type)
	assert.Equal(t, "tcp://broker:1883", cfg.Alerts[0].MQTT.Server)
	assert.Equal(t, "ships/errorsandwarnings", cfg.Alerts[0].MQTT.Topic)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
pins:
  data: GPIO17
  clock: GPIO27
sensor_type: simulation
interval_ms: 2000
ship:
  name: Nautilus
  engine: Main Engine Starboard
outputs:
  - type: console
alerts:
  - type: telegram
    telegram:
      token: abc
      chat_id: 42
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := load(t, "-config", path, "-interval-ms", "3000")
	require.NoError(t, err)
	assert.Equal(t, "GPIO17", cfg.Pins.Data)
	assert.Equal(t, SensorSimulation, cfg.SensorType)
	assert.Equal(t, 3000, cfg.IntervalMs)
	assert.Equal(t, "Nautilus", cfg.Ship.Name)
	require.Len(t, cfg.Outputs, 1)
	assert.Equal(t, 3000, cfg.Outputs[0].IntervalMs, "outputs without an interval follow the reading interval")
	require.Len(t, cfg.Alerts, 1)
	assert.Equal(t, int64(42), cfg.Alerts[0].Telegram.ChatID)
	// untouched defaults survive
	assert.Equal(t, 20.0, cfg.TemperatureMultiplier)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"interval", func(c *Config) { c.IntervalMs = 0 }},
		{"poll limit", func(c *Config) { c.PollLimit = -1 }},
		{"sensor type", func(c *Config) { c.SensorType = "i2c" }},
		{"missing pin", func(c *Config) { c.Pins.Clock = "" }},
		{"same pin", func(c *Config) { c.Pins.Clock = c.Pins.Data }},
		{"warning chance", func(c *Config) { c.EngineWarningChance = 2 }},
		{"output type", func(c *Config) { c.Outputs = []OutputConfig{{Type: "amqp"}} }},
		{"mqtt output", func(c *Config) { c.Outputs = []OutputConfig{{Type: OutputMQTT}} }},
		{"control", func(c *Config) { c.Control = &ControlConfig{MQTT: &MQTTConfig{Server: "tcp://b:1883"}} }},
		{"telegram", func(c *Config) { c.Alerts = []AlertConfig{{Type: AlertTelegram, Telegram: &TelegramConfig{Token: "x"}}} }},
		{"alert type", func(c *Config) { c.Alerts = []AlertConfig{{Type: "pager"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}
