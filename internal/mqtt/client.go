package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/observability/metrics"
)

const componentName = "mqtt"

// client implements Client on top of paho. Reconnects are left to paho's
// auto-reconnect.
type client struct {
	config         Config
	internalClient paho.Client
	mu             sync.Mutex
	metrics        *metrics.MQTTMetrics
	log            logger.Logger
}

// NewClient creates a new MQTT client. m may be nil.
func NewClient(cfg Config, m *metrics.MQTTMetrics, log logger.Logger) Client {
	return &client{
		config:  cfg,
		metrics: m,
		log:     log.Module(componentName),
	}
}

// Connect resolves the broker host and then connects.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := url.Parse(c.config.Broker)
	if err != nil || u.Host == "" {
		return errors.Newf("invalid broker URL %q", c.config.Broker).
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return errors.New(err).
				Component(componentName).
				Category(errors.CategoryMQTTConnection).
				Context("host", host).
				Context("operation", "resolve_broker").
				Build()
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(c.config.MaxReconnect)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.internalClient = paho.NewClient(opts)

	token := c.internalClient.Connect()
	if err := waitToken(ctx, token, c.config.ConnectTimeout); err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryMQTTConnection).
			Context("operation", "connect").
			Build()
	}
	c.setConnected(true)
	return nil
}

// Publish sends payload to topic with QoS 1.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component(componentName).
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	started := time.Now()
	token := c.internalClient.Publish(topic, 1, c.config.Retain, payload)
	err := waitToken(ctx, token, c.config.PublishTimeout)
	if c.metrics != nil {
		c.metrics.ObservePublish(len(payload), started, err)
	}
	if err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	c.log.Debug("published", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

// waitToken waits for token within timeout or until ctx is done.
func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("timeout after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected()
}

func (c *client) isConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		c.setConnected(false)
	}
}

func (c *client) setConnected(connected bool) {
	if c.metrics != nil {
		c.metrics.SetConnected(connected)
	}
}

func (c *client) onConnect(_ paho.Client) {
	c.log.Info("connected to MQTT broker", logger.String("broker", c.config.Broker))
	c.setConnected(true)
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection to MQTT broker lost", logger.String("broker", c.config.Broker), logger.Error(err))
	c.setConnected(false)
	if c.metrics != nil {
		c.metrics.Disconnects.Inc()
	}
}

func (c *client) onReconnecting(_ paho.Client, _ *paho.ClientOptions) {
	if c.metrics != nil {
		c.metrics.Reconnects.Inc()
	}
}
