// v0
// internal/notify/mqtt.go
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// tokenPublisher is the subset of mqtt.Client used by MQTT.
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTConfig configures the broker connection of the MQTT notifier.
type MQTTConfig struct {
	Broker         string
	ClientID       string
	Topic          string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// MQTT publishes notifications as JSON on a broker topic so dashboards and
// other screens receive them as they happen.
type MQTT struct {
	client  tokenPublisher
	topic   string
	timeout time.Duration
	logger  *slog.Logger
	closeFn func()
}

// DialMQTT connects to the broker and returns a notifier bound to cfg.Topic.
func DialMQTT(cfg MQTTConfig, logger *slog.Logger) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker cannot be empty")
	}
	if cfg.Topic == "" {
		return nil, errors.New("mqtt topic cannot be empty")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	n := newMQTT(client, cfg.Topic, cfg.PublishTimeout, logger)
	n.closeFn = func() { client.Disconnect(250) }
	return n, nil
}

func newMQTT(client tokenPublisher, topic string, timeout time.Duration, logger *slog.Logger) *MQTT {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &MQTT{client: client, topic: topic, timeout: timeout, logger: logger}
}

// Notify publishes without waiting for the broker acknowledgement; delivery
// failures are only logged.
func (m *MQTT) Notify(n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		m.logger.Error("notification_marshal_failed", slog.Any("err", err))
		return
	}
	token := m.client.Publish(m.topic, 1, false, payload)
	go func() {
		if !token.WaitTimeout(m.timeout) {
			m.logger.Warn("notification_publish_timeout", slog.String("topic", m.topic))
			return
		}
		if err := token.Error(); err != nil {
			m.logger.Warn("notification_publish_failed", slog.String("topic", m.topic), slog.Any("err", err))
		}
	}()
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	if m.closeFn != nil {
		m.closeFn()
		m.closeFn = nil
	}
}
