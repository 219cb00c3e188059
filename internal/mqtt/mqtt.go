// Package mqtt publishes saved measurement records to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/camruler/camruler/internal/conf"
)

// Client defines the interface for MQTT client operations.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error
	// Publish sends payload to topic.
	Publish(ctx context.Context, topic string, payload []byte) error
	// IsConnected returns true if the client is currently connected.
	IsConnected() bool
	// Disconnect closes the connection to the broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // Default topic for publishing records
	Retain   bool   // true to retain messages at the broker
	// Connection timeouts
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
	MaxReconnect      time.Duration
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		ClientID:          "camruler",
		Topic:             "camruler/measurements",
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
		MaxReconnect:      5 * time.Minute,
	}
}

// ConfigFromSettings fills a Config from the mqtt settings section.
func ConfigFromSettings(settings *conf.MQTTSettings) Config {
	cfg := DefaultConfig()
	cfg.Broker = settings.Broker
	cfg.Username = settings.Username
	cfg.Password = settings.Password
	cfg.Retain = settings.Retain
	if settings.Topic != "" {
		cfg.Topic = settings.Topic
	}
	return cfg
}
