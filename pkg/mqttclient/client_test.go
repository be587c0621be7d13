package mqttclient

import (
	"testing"

	"github.com/meshforge/meshforge-maps/pkg/logx"
)

func TestDisabledClientConnectIsNoOp(t *testing.T) {
	c := New(Config{Enabled: false}, logx.New("error"))
	if err := c.Connect(); err != nil {
		t.Fatalf("expected disabled Connect to be a no-op, got %v", err)
	}
	if c.Connected() {
		t.Fatalf("expected disabled client to report not connected")
	}
}

func TestPublishJSONNoOpWhenDisconnected(t *testing.T) {
	c := New(DefaultConfig(), logx.New("error"))
	if err := c.PublishJSON("nodes/test", map[string]string{"id": "n1"}); err != nil {
		t.Fatalf("expected publish to no-op without a connection, got %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.QoS != 1 || cfg.Broker == "" || cfg.TopicPrefix == "" {
		t.Fatalf("unexpected default config: %+v", cfg)
	}
}
