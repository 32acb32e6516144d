// Package telemetry publishes live snapshots to an MQTT broker.
package telemetry

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	// DefaultTopic is where snapshots are published when none is configured.
	DefaultTopic = "linkstation/live"
	// DefaultClientID identifies the publisher to the broker.
	DefaultClientID = "linkstation"

	publishTimeout = 5 * time.Second
	connectTimeout = 10 * time.Second
)

// ErrNoBroker is returned when no broker URL is configured.
var ErrNoBroker = errors.New("telemetry: MQTT broker is not configured")

// Config holds the broker connection settings.
type Config struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
}

// MQTTSink publishes retained QoS 0 messages through a paho client.
type MQTTSink struct {
	client mqtt.Client
}

// Dial connects to the broker. The client reconnects on its own after the
// first successful connection.
func Dial(cfg Config, logger *slog.Logger) (*MQTTSink, error) {
	if cfg.Broker == "" {
		return nil, ErrNoBroker
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("MQTT connected", "broker", cfg.Broker)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("telemetry: connect %s: %w", cfg.Broker, token.Error())
	}
	return &MQTTSink{client: client}, nil
}

// Publish sends payload to topic as a retained message.
func (s *MQTTSink) Publish(topic string, payload []byte) error {
	token := s.client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("telemetry: publish to %s timed out", topic)
	}
	return token.Error()
}

// Close disconnects, waiting up to 500 ms for in-flight messages.
func (s *MQTTSink) Close() {
	s.client.Disconnect(500)
}
