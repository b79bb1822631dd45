package mqtt

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ericogr/sht15-to-mqtt/pkg/alert"
	"github.com/ericogr/sht15-to-mqtt/pkg/config"
)

const DefaultClientID = "sht15-alerts"

// Alerter publishes alerts as JSON to a queue topic.
type Alerter struct {
	client mqtt.Client
	topic  string
}

func New(cfg config.MQTTConfig) (alert.Alerter, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	} else {
		clientID += "-alerts"
	}
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(clientID)
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
	return &Alerter{client: client, topic: cfg.Topic}, nil
}

func (a *Alerter) Send(al alert.Alert) error {
	b, err := json.Marshal(al)
	if err != nil {
		return err
	}
	// alerts are queued by the broker for offline consumers
	token := a.client.Publish(a.topic, 1, false, b)
	token.Wait()
	return token.Error()
}

func (a *Alerter) Close() error {
	if a.client != nil {
		a.client.Disconnect(250)
	}
	return nil
}
