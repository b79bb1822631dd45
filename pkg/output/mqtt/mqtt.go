package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ericogr/sht15-to-mqtt/pkg/config"
	"github.com/ericogr/sht15-to-mqtt/pkg/engine"
	"github.com/ericogr/sht15-to-mqtt/pkg/output"
	"github.com/sirupsen/logrus"
)

const (
	// defaults
	DefaultServer     = "tcp://localhost:1883"
	DefaultClientID   = "sht15-client"
	DefaultStateTopic = "sht15/%s/engine"
	warningSuffix     = "/warning"
	// discovery payload keys/values
	keyName                = "name"
	keyStateTopic          = "state_topic"
	keyUnitOfMeasurement   = "unit_of_measurement"
	keyDeviceClass         = "device_class"
	keyStateClass          = "state_class"
	keyValueTemplate       = "value_template"
	keyJSONAttributesTopic = "json_attributes_topic"
	keyUniqueID            = "unique_id"
	stateClassMeasurement  = "measurement"
)

// quantity is one value of a record exposed through discovery.
type quantity struct {
	key         string
	label       string
	unit        string
	deviceClass string
	template    string
}

var quantities = []quantity{
	{"temperature", "Temperature", "°C", "temperature", "{{ value_json.Temperature }}"},
	{"humidity", "Humidity", "%", "humidity", "{{ value_json.Humidity }}"},
	{"dew_point", "Dew Point", "°C", "temperature", "{{ value_json.DewPoint }}"},
}

type MQTTOutput struct {
	client     mqtt.Client
	stateTopic string
	log        logrus.FieldLogger
}

func NewMQTT(cfg config.MQTTConfig, ship string, logger logrus.FieldLogger) (output.Output, error) {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return newMQTTOutput(client, cfg, ship, logger), nil
}

func newMQTTOutput(client mqtt.Client, cfg config.MQTTConfig, ship string, logger logrus.FieldLogger) *MQTTOutput {
	m := &MQTTOutput{
		client:     client,
		stateTopic: formatStateTopic(cfg.Topic, ship),
		log:        logger.WithField("output", "mqtt"),
	}

	// Publish Home Assistant discovery payload(s) if requested
	if cfg.DiscoveryTopic != "" {
		// per-quantity discovery when discoveryTopic contains a formatter
		if strings.Contains(cfg.DiscoveryTopic, "%s") {
			for _, q := range quantities {
				q := q
				dTopic := fmt.Sprintf(cfg.DiscoveryTopic, q.key)
				payload := baseDiscoveryPayload(discoveryName(cfg, ship, &q), m.stateTopic, discoveryUniqueID(cfg, &q), q)
				if err := publishJSON(client, dTopic, true, payload); err != nil {
					m.log.WithError(err).WithField("topic", dTopic).Error("mqtt discovery publish error")
				}
			}
		} else {
			payload := baseDiscoveryPayload(discoveryName(cfg, ship, nil), m.stateTopic, discoveryUniqueID(cfg, nil), quantities[0])
			if err := publishJSON(client, cfg.DiscoveryTopic, true, payload); err != nil {
				m.log.WithError(err).WithField("topic", cfg.DiscoveryTopic).Error("mqtt discovery publish error")
			}
		}
	}
	return m
}

// Publish sends the record to the state topic, and again to the warning
// topic when the temperature is above the maximum.
func (m *MQTTOutput) Publish(r engine.Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if err := m.PublishRaw(m.stateTopic, b, false); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", m.stateTopic, err)
	}
	if r.Warning {
		topic := m.stateTopic + warningSuffix
		if err := m.PublishRaw(topic, b, false); err != nil {
			return fmt.Errorf("mqtt publish %s: %w", topic, err)
		}
	}
	return nil
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}

// PublishRaw publishes a raw payload to the given topic. The caller can set the
// retain flag which is useful for discovery messages.
func (m *MQTTOutput) PublishRaw(topic string, payload []byte, retained bool) error {
	if m.client == nil {
		return fmt.Errorf("mqtt client not connected")
	}
	token := m.client.Publish(topic, 0, retained, payload)
	token.Wait()
	return token.Error()
}

// helper: format the state topic, substituting the ship name so all records
// of one ship land on the same topic
func formatStateTopic(base, ship string) string {
	if base == "" {
		base = DefaultStateTopic
	}
	if strings.Contains(base, "%s") {
		return fmt.Sprintf(base, ship)
	}
	return base
}

// helper: build a human-friendly discovery name; if q != nil append the quantity
func discoveryName(cfg config.MQTTConfig, ship string, q *quantity) string {
	name := cfg.DiscoveryName
	if name == "" {
		name = fmt.Sprintf("%s engine", ship)
	}
	if q != nil {
		name = fmt.Sprintf("%s %s", name, q.label)
	}
	return name
}

// helper: build a unique id for discovery; if q != nil append the quantity
func discoveryUniqueID(cfg config.MQTTConfig, q *quantity) string {
	uid := cfg.DiscoveryUniqueID
	if uid == "" {
		uid = cfg.ClientID
	}
	if uid != "" && q != nil {
		uid = fmt.Sprintf("%s_%s", uid, q.key)
	}
	return uid
}

// helper: base discovery payload map common to all entries
func baseDiscoveryPayload(name, stateTopic, uniqueID string, q quantity) map[string]interface{} {
	payload := map[string]interface{}{
		keyName:                name,
		keyStateTopic:          stateTopic,
		keyUnitOfMeasurement:   q.unit,
		keyDeviceClass:         q.deviceClass,
		keyStateClass:          stateClassMeasurement,
		keyValueTemplate:       q.template,
		keyJSONAttributesTopic: stateTopic,
	}
	if uniqueID != "" {
		payload[keyUniqueID] = uniqueID
	}
	return payload
}

// helper: marshal and publish JSON payload
func publishJSON(client mqtt.Client, topic string, retained bool, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token := client.Publish(topic, 0, retained, b)
	token.Wait()
	return token.Error()
}
