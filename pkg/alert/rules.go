package alert

import (
	"context"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/model"
)

// Metric name used by the health-degraded rule; callers pass the
// computed composite score under this key.
const MetricHealthScore = "health_score"

// DefaultRules returns the rule set the daemon ships with. Callers may
// replace or extend it via Engine.AddRule.
func DefaultRules() []model.AlertRule {
	return []model.AlertRule{
		{
			RuleID:    "battery_low",
			AlertType: "battery",
			Severity:  model.SeverityWarning,
			Metric:    model.PropBattery,
			Operator:  model.OpLTE,
			Threshold: 20,
			Cooldown:  10 * time.Minute,
			Enabled:   true,
		},
		{
			RuleID:    "battery_critical",
			AlertType: "battery",
			Severity:  model.SeverityCritical,
			Metric:    model.PropBattery,
			Operator:  model.OpLTE,
			Threshold: 5,
			Cooldown:  10 * time.Minute,
			Enabled:   true,
		},
		{
			RuleID:    "signal_poor",
			AlertType: "signal",
			Severity:  model.SeverityWarning,
			Metric:    model.PropSNR,
			Operator:  model.OpLTE,
			Threshold: -10,
			Cooldown:  10 * time.Minute,
			Enabled:   true,
		},
		{
			RuleID:    "congestion_high",
			AlertType: "congestion",
			Severity:  model.SeverityWarning,
			Metric:    model.PropChannelUtil,
			Operator:  model.OpGTE,
			Threshold: 75,
			Cooldown:  10 * time.Minute,
			Enabled:   true,
		},
		{
			RuleID:    "health_degraded",
			AlertType: "health",
			Severity:  model.SeverityWarning,
			Metric:    MetricHealthScore,
			Operator:  model.OpLTE,
			Threshold: 20,
			Cooldown:  10 * time.Minute,
			Enabled:   true,
		},
	}
}

// offlineRule is the absence-based rule EvaluateOffline applies. It
// lives outside the metric-driven rule table because silence has no
// metric sample to compare; the threshold is the allowed quiet period
// in seconds.
var offlineRule = model.AlertRule{
	RuleID:    "node_offline",
	AlertType: "offline",
	Severity:  model.SeverityWarning,
	Metric:    "seconds_since_seen",
	Operator:  model.OpGT,
	Threshold: (15 * time.Minute).Seconds(),
	Cooldown:  30 * time.Minute,
	Enabled:   true,
}

// EvaluateOffline fires the absence-based offline rule for nodeID when
// lastSeen is further in the past than the offline threshold, subject
// to the same cooldown bookkeeping as metric rules. It returns the
// alert fired, or nil when the node is current or still in cooldown.
func (e *Engine) EvaluateOffline(ctx context.Context, nodeID string, lastSeen time.Time) *model.Alert {
	quiet := e.now().Sub(lastSeen).Seconds()
	if !offlineRule.Operator.Evaluate(quiet, offlineRule.Threshold) {
		return nil
	}
	if !e.allow(offlineRule, nodeID) {
		return nil
	}

	alert := model.Alert{
		AlertID:   e.nextAlertID(),
		RuleID:    offlineRule.RuleID,
		NodeID:    nodeID,
		Metric:    offlineRule.Metric,
		Value:     quiet,
		Threshold: offlineRule.Threshold,
		Severity:  offlineRule.Severity,
		Message:   "node " + nodeID + " has not been seen within the offline threshold",
		Timestamp: e.now(),
	}
	e.record(alert)
	e.deliver(ctx, alert)
	return &alert
}
