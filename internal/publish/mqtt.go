package publish

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/banshee-data/motion.report/internal/motion"
)

// MQTTPublisher is the part of mqtt.Client used by MQTTSink.
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// StateTopic returns the retained topic carrying a device's latest state.
func StateTopic(deviceID string) string {
	return fmt.Sprintf("motion/%s/state", deviceID)
}

// MQTTSink publishes each state, retained, to StateTopic(deviceID).
type MQTTSink struct {
	client   MQTTPublisher
	deviceID string
	topic    string
	qos      byte
}

func NewMQTTSink(client MQTTPublisher, deviceID string, qos byte) *MQTTSink {
	return &MQTTSink{
		client:   client,
		deviceID: deviceID,
		topic:    StateTopic(deviceID),
		qos:      qos,
	}
}

// NewMQTTClient connects to broker with automatic reconnection.
func NewMQTTClient(broker, clientID, username, password string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	if username != "" {
		opts.SetUsername(username)
	}
	if password != "" {
		opts.SetPassword(password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Publish(ctx context.Context, st motion.MovementState) error {
	payload, err := Encode(s.deviceID, st)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	token := s.client.Publish(s.topic, s.qos, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to topic %s: %w", s.topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", s.topic, err)
	}
	return nil
}
