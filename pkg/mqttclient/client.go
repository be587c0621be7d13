// Package mqttclient wraps paho.mqtt.golang with the connect/retry
// lifecycle and JSON publish/subscribe helpers shared by the Meshtastic
// broker subscriber and the outbound alert/drift publishers.
package mqttclient

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/meshforge/meshforge-maps/pkg/logx"
)

// Config holds MQTT broker connection settings.
type Config struct {
	Broker      string `json:"broker"`
	Port        int    `json:"port"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
	Retain      bool   `json:"retain"`
	Enabled     bool   `json:"enabled"`
}

// DefaultConfig returns sensible MQTT defaults.
func DefaultConfig() Config {
	return Config{
		Broker:      "localhost",
		Port:        1883,
		ClientID:    "meshforged",
		TopicPrefix: "meshforge",
		QoS:         1,
		Retain:      false,
		Enabled:     false,
	}
}

// MessageHandler processes an incoming message on a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// Client wraps a paho MQTT client with reconnect handling and JSON
// publish/subscribe helpers.
type Client struct {
	mu        sync.RWMutex
	client    MQTT.Client
	config    Config
	log       *logx.Logger
	connected bool

	resubscribe map[string]MessageHandler
}

// New creates a Client bound to config; call Connect to actually dial
// the broker.
func New(config Config, log *logx.Logger) *Client {
	return &Client{
		config:      config,
		log:         log,
		resubscribe: make(map[string]MessageHandler),
	}
}

// Connect dials the broker with auto-reconnect enabled. It is a no-op
// returning nil when the client is disabled in config.
func (c *Client) Connect() error {
	if !c.config.Enabled {
		c.log.Debug("mqtt client disabled")
		return nil
	}

	opts := MQTT.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", c.config.Broker, c.config.Port))
	opts.SetClientID(c.config.ClientID)

	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(time.Minute)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.client = MQTT.NewClient(opts)

	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt: connect to broker: %w", token.Error())
	}

	c.log.Info("mqtt client connected", "broker", c.config.Broker, "port", c.config.Port)
	return nil
}

// Disconnect closes the connection, waiting up to 250ms to drain.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && c.connected {
		c.client.Disconnect(250)
		c.connected = false
		c.log.Info("mqtt client disconnected")
	}
}

func (c *Client) onConnect(client MQTT.Client) {
	c.mu.Lock()
	c.connected = true
	subs := make(map[string]MessageHandler, len(c.resubscribe))
	for topic, h := range c.resubscribe {
		subs[topic] = h
	}
	c.mu.Unlock()

	c.log.Info("mqtt connection established")
	for topic, handler := range subs {
		if err := c.subscribeNow(topic, handler); err != nil {
			c.log.Error("mqtt resubscribe failed", "topic", topic, "error", err.Error())
		}
	}
}

func (c *Client) onConnectionLost(client MQTT.Client, err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.log.Error("mqtt connection lost", "error", err.Error())
}

// Connected reports whether the client currently holds a live connection.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Subscribe registers handler for topic, both immediately (if connected)
// and on every future reconnect.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	c.mu.Lock()
	c.resubscribe[topic] = handler
	connected := c.connected
	c.mu.Unlock()

	if !connected {
		return nil
	}
	return c.subscribeNow(topic, handler)
}

func (c *Client) subscribeNow(topic string, handler MessageHandler) error {
	token := c.client.Subscribe(topic, c.config.QoS, func(_ MQTT.Client, msg MQTT.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", topic, token.Error())
	}
	return nil
}

// Unsubscribe removes topic from both the live subscription and the
// reconnect resubscribe table.
func (c *Client) Unsubscribe(topic string) error {
	c.mu.Lock()
	delete(c.resubscribe, topic)
	client := c.client
	connected := c.connected
	c.mu.Unlock()

	if !connected || client == nil {
		return nil
	}
	token := client.Unsubscribe(topic)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt: unsubscribe %s: %w", topic, token.Error())
	}
	return nil
}

// PublishJSON marshals v and publishes it to prefix/suffix. It is a
// no-op returning nil when the client is disabled or not yet connected,
// so callers don't need to guard every publish call.
func (c *Client) PublishJSON(suffix string, v interface{}) error {
	if !c.config.Enabled || !c.Connected() {
		return nil
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("mqtt: marshal payload: %w", err)
	}

	topic := fmt.Sprintf("%s/%s", c.config.TopicPrefix, suffix)
	token := c.client.Publish(topic, c.config.QoS, c.config.Retain, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, token.Error())
	}
	return nil
}

// PublishWithRetry attempts PublishJSON up to attempts times with a
// fixed delay between tries, for callers (e.g. the alert engine) that
// need stronger delivery effort than a single best-effort publish.
func (c *Client) PublishWithRetry(suffix string, v interface{}, attempts int, delay time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(delay)
		}
		if err := c.PublishJSON(suffix, v); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("mqtt: publish failed after %d attempts: %w", attempts, lastErr)
}
