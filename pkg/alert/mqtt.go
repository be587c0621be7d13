package alert

import (
	"context"
	"fmt"

	"github.com/meshforge/meshforge-maps/pkg/model"
	"github.com/meshforge/meshforge-maps/pkg/mqttclient"
)

// MQTTChannel publishes each alert to the broker twice: once on the
// base alerts topic and once on the per-severity subtopic, so
// subscribers can follow everything or just e.g. critical.
type MQTTChannel struct {
	client *mqttclient.Client
	base   string
}

// NewMQTTChannel creates the channel. base is the topic suffix under
// the client's configured prefix (e.g. "alerts").
func NewMQTTChannel(client *mqttclient.Client, base string) *MQTTChannel {
	if base == "" {
		base = "alerts"
	}
	return &MQTTChannel{client: client, base: base}
}

func (c *MQTTChannel) Name() string { return "mqtt" }

// Send publishes the alert to base and base/{severity}. A failure on
// either topic fails the send (the engine's retry covers both).
func (c *MQTTChannel) Send(ctx context.Context, alert model.Alert) error {
	if err := c.client.PublishJSON(c.base, alert); err != nil {
		return fmt.Errorf("publish %s: %w", c.base, err)
	}
	severityTopic := c.base + "/" + string(alert.Severity)
	if err := c.client.PublishJSON(severityTopic, alert); err != nil {
		return fmt.Errorf("publish %s: %w", severityTopic, err)
	}
	return nil
}
