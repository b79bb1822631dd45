// Package control receives remote updates of the maximum engine temperature.
package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ericogr/sht15-to-mqtt/pkg/config"
	"github.com/sirupsen/logrus"
)

const (
	DefaultClientID = "sht15-control"
	keyMaximum      = "maximumtemperature"
	queueSize       = 8
)

var ErrNoMaximum = errors.New("control: payload has no maximumtemperature")

// Update carries a new maximum engine temperature.
type Update struct {
	MaximumTemperature float64
	Received           time.Time
}

// Subscriber listens on an MQTT topic and turns valid payloads into Updates.
type Subscriber struct {
	client  mqtt.Client
	topic   string
	updates chan Update
	log     logrus.FieldLogger
}

func NewSubscriber(cfg config.MQTTConfig, logger logrus.FieldLogger) (*Subscriber, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	} else {
		clientID += "-control"
	}
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	s := newSubscriber(cfg.Topic, logger)
	// resubscribe after reconnects
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(s.topic, 1, s.onMessage)
		if token.Wait() && token.Error() != nil {
			s.log.WithError(token.Error()).Error("mqtt subscribe failed")
		}
	})
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	s.client = client
	return s, nil
}

func newSubscriber(topic string, logger logrus.FieldLogger) *Subscriber {
	return &Subscriber{
		topic:   topic,
		updates: make(chan Update, queueSize),
		log:     logger.WithField("topic", topic),
	}
}

// Updates returns the channel on which updates are delivered.
func (s *Subscriber) Updates() <-chan Update {
	return s.updates
}

func (s *Subscriber) Close() error {
	if s.client != nil {
		s.client.Unsubscribe(s.topic).Wait()
		s.client.Disconnect(250)
	}
	return nil
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	s.handle(msg.Payload())
}

func (s *Subscriber) handle(payload []byte) {
	v, err := ParseMaximum(payload)
	if err != nil {
		s.log.WithError(err).Warn("ignoring control message")
		return
	}
	select {
	case s.updates <- Update{MaximumTemperature: v, Received: time.Now()}:
	default:
		s.log.WithField(keyMaximum, v).Warn("control queue full, dropping update")
	}
}

// ParseMaximum extracts the maximum temperature from a control payload: a
// JSON object with a maximumtemperature number or numeric string, or a bare
// number. The exact lowercase key wins over other spellings; several other
// spellings without it are rejected.
func ParseMaximum(payload []byte) (float64, error) {
	v, err := parseMaximum(payload)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("control: %s is not finite", keyMaximum)
	}
	return v, nil
}

func parseMaximum(payload []byte) (float64, error) {
	text := strings.TrimSpace(string(payload))
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return v, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return 0, fmt.Errorf("control: decode payload: %w", err)
	}
	raw, ok := m[keyMaximum]
	if !ok {
		var matches int
		for k, v := range m {
			if strings.EqualFold(k, keyMaximum) {
				raw = v
				matches++
			}
		}
		switch {
		case matches == 0:
			return 0, ErrNoMaximum
		case matches > 1:
			return 0, fmt.Errorf("control: %d spellings of %s", matches, keyMaximum)
		}
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("control: %s is neither number nor string", keyMaximum)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("control: %s: %w", keyMaximum, err)
	}
	return n, nil
}
