// Package alert evaluates threshold rules against node metrics and
// delivers alerts through pluggable channels with per-rule cooldowns.
package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/events"
	"github.com/meshforge/meshforge-maps/pkg/logx"
	"github.com/meshforge/meshforge-maps/pkg/model"
)

// Channel delivers an alert to some external system (MQTT, webhook,
// Pushover, ...). Implementations must be safe for concurrent Send.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert model.Alert) error
}

// Config controls engine-wide defaults.
type Config struct {
	DefaultCooldown time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
}

// DefaultConfig returns sensible alert-engine defaults.
func DefaultConfig() Config {
	return Config{
		DefaultCooldown: 5 * time.Minute,
		MaxRetries:      3,
		RetryBackoff:    30 * time.Second,
	}
}

// maxHistory bounds the in-memory alert history / api/alerts exposes;
// older alerts are trimmed oldest-first once the bound is reached.
const maxHistory = 5000

// Engine evaluates AlertRules against incoming metric samples, applies
// per-rule cooldowns, and fans out firing alerts to every registered
// Channel.
type Engine struct {
	config   Config
	log      *logx.Logger
	bus      *events.Bus
	mu       sync.RWMutex
	rules    map[string]model.AlertRule
	lastFire map[string]time.Time // ruleID+nodeID -> last fire time
	channels []Channel
	nextID   int64
	now      func() time.Time
	history  []model.Alert
}

// New creates an Engine. bus may be nil to disable TopicAlert
// notifications.
func New(config Config, bus *events.Bus, log *logx.Logger) *Engine {
	if config.DefaultCooldown <= 0 {
		config = DefaultConfig()
	}
	return &Engine{
		config:   config,
		log:      log,
		bus:      bus,
		rules:    make(map[string]model.AlertRule),
		lastFire: make(map[string]time.Time),
		now:      time.Now,
	}
}

// AddRule registers or replaces a rule by RuleID.
func (e *Engine) AddRule(rule model.AlertRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[rule.RuleID] = rule
}

// RemoveRule deletes a rule by RuleID.
func (e *Engine) RemoveRule(ruleID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rules, ruleID)
}

// Rules returns a snapshot of all currently registered rules.
func (e *Engine) Rules() []model.AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]model.AlertRule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r)
	}
	return out
}

// AddChannel registers a delivery channel. Every fired alert is sent
// to every registered channel.
func (e *Engine) AddChannel(ch Channel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.channels = append(e.channels, ch)
}

// Evaluate checks every enabled rule whose Network filter matches (or
// is empty) and whose Metric is present in metrics against value, and
// delivers an alert for each rule that fires and isn't in cooldown.
// metrics maps a metric name to its current value for nodeID.
func (e *Engine) Evaluate(ctx context.Context, nodeID string, network model.Network, metrics map[string]float64) []model.Alert {
	e.mu.RLock()
	rules := make([]model.AlertRule, 0, len(e.rules))
	for _, r := range e.rules {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	var fired []model.Alert
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if rule.Network != "" && rule.Network != network {
			continue
		}
		value, ok := metrics[rule.Metric]
		if !ok {
			continue
		}
		if !rule.Operator.Evaluate(value, rule.Threshold) {
			continue
		}
		if !e.allow(rule, nodeID) {
			continue
		}

		alert := model.Alert{
			AlertID:   e.nextAlertID(),
			RuleID:    rule.RuleID,
			NodeID:    nodeID,
			Metric:    rule.Metric,
			Value:     value,
			Threshold: rule.Threshold,
			Severity:  rule.Severity,
			Message:   fmt.Sprintf("%s %s %s %.2f (actual %.2f) on %s", rule.AlertType, rule.Metric, rule.Operator, rule.Threshold, value, nodeID),
			Timestamp: e.now(),
		}
		fired = append(fired, alert)
		e.record(alert)
		e.deliver(ctx, alert)
	}
	return fired
}

// record appends alert to the bounded history ring, trimming the oldest
// entry first once maxHistory is reached.
func (e *Engine) record(alert model.Alert) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, alert)
	if len(e.history) > maxHistory {
		e.history = e.history[len(e.history)-maxHistory:]
	}
}

// History returns alerts newest-first, optionally filtered by severity
// (empty = any) and nodeID (empty = any), bounded to limit entries (0 =
// unbounded).
func (e *Engine) History(severity model.Severity, nodeID string, limit int) []model.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []model.Alert
	for i := len(e.history) - 1; i >= 0; i-- {
		a := e.history[i]
		if severity != "" && a.Severity != severity {
			continue
		}
		if nodeID != "" && a.NodeID != nodeID {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Active returns every recorded alert not yet acknowledged, newest first.
func (e *Engine) Active() []model.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []model.Alert
	for i := len(e.history) - 1; i >= 0; i-- {
		if !e.history[i].Acknowledged {
			out = append(out, e.history[i])
		}
	}
	return out
}

// Acknowledge marks alertID as acknowledged, reporting whether it was
// found.
func (e *Engine) Acknowledge(alertID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.history {
		if e.history[i].AlertID == alertID {
			e.history[i].Acknowledged = true
			return true
		}
	}
	return false
}

// allow reports whether rule may fire for nodeID given its cooldown,
// recording the fire time as a side effect when it does.
func (e *Engine) allow(rule model.AlertRule, nodeID string) bool {
	cooldown := rule.Cooldown
	if cooldown <= 0 {
		cooldown = e.config.DefaultCooldown
	}
	key := rule.RuleID + ":" + nodeID

	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.lastFire[key]; ok {
		if e.now().Sub(last) < cooldown {
			return false
		}
	}
	e.lastFire[key] = e.now()
	return true
}

func (e *Engine) nextAlertID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	return e.nextID
}

// deliver publishes the alert on the event bus and sends it to every
// channel with a fixed retry/backoff, logging (not failing the caller
// on) per-channel errors so one bad channel can't block the others.
func (e *Engine) deliver(ctx context.Context, alert model.Alert) {
	if e.bus != nil {
		e.bus.Publish(events.Event{
			Topic:     events.TopicAlert,
			NodeID:    alert.NodeID,
			Timestamp: alert.Timestamp,
			Payload:   alert,
		})
	}

	e.mu.RLock()
	channels := append([]Channel(nil), e.channels...)
	e.mu.RUnlock()

	for _, ch := range channels {
		if err := e.sendWithRetry(ctx, ch, alert); err != nil {
			if e.log != nil {
				e.log.Warn("alert delivery failed", "channel", ch.Name(), "rule", alert.RuleID, "error", err.Error())
			}
		}
	}
}

func (e *Engine) sendWithRetry(ctx context.Context, ch Channel, alert model.Alert) error {
	var lastErr error
	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.config.RetryBackoff):
			}
		}
		if err := ch.Send(ctx, alert); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("channel %s failed after %d attempts: %w", ch.Name(), e.config.MaxRetries+1, lastErr)
}

// Clear publishes a TopicAlertCleared event for ruleID/nodeID without
// re-checking cooldown, so callers can notify "back to normal".
func (e *Engine) Clear(nodeID, ruleID string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Event{
		Topic:     events.TopicAlertCleared,
		NodeID:    nodeID,
		Timestamp: e.now(),
		Payload:   ruleID,
	})
}
