// Package drift detects configuration changes across successive
// observations of the same node: region, radio preset, role, hardware,
// and naming fields that shouldn't normally change in place.
package drift

import (
	"sync"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/events"
	"github.com/meshforge/meshforge-maps/pkg/model"
)

// maxHistory bounds the in-memory drift history /api/config-drift reads
// from; older drifts are trimmed oldest-first once the bound is reached.
const maxHistory = 5000

// Detector keeps the last known NodeSnapshot per node and emits a Drift
// for every tracked field that changes between snapshots.
type Detector struct {
	mu        sync.Mutex
	snapshots map[string]model.NodeSnapshot
	bus       *events.Bus
	now       func() time.Time
	history   []model.Drift
}

// New creates a Detector. bus may be nil to disable TopicDrift
// notifications (tests, or callers that only want the returned slice).
func New(bus *events.Bus) *Detector {
	return &Detector{
		snapshots: make(map[string]model.NodeSnapshot),
		bus:       bus,
		now:       time.Now,
	}
}

// Observe compares the incoming snapshot against the last one recorded
// for nodeID, returns the drifts found, and stores the new snapshot as
// the baseline for the next call. The first observation for a node
// never produces drift since there's nothing to compare against.
func (d *Detector) Observe(nodeID string, snap model.NodeSnapshot) []model.Drift {
	d.mu.Lock()
	prev, ok := d.snapshots[nodeID]
	d.snapshots[nodeID] = snap
	d.mu.Unlock()

	if !ok {
		return nil
	}

	now := d.now()
	var drifts []model.Drift
	for _, field := range model.DriftTrackedFields {
		oldVal, newVal := fieldValue(prev, field), fieldValue(snap, field)
		if oldVal == newVal {
			continue
		}
		drift := model.Drift{
			NodeID:    nodeID,
			Field:     field,
			OldValue:  oldVal,
			NewValue:  newVal,
			Severity:  model.DriftSeverity(field),
			Timestamp: now,
		}
		drifts = append(drifts, drift)
		d.record(drift)
		d.publish(drift)
	}
	return drifts
}

// record appends drift to the bounded history ring, trimming the oldest
// entry first once maxHistory is reached.
func (d *Detector) record(drift model.Drift) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = append(d.history, drift)
	if len(d.history) > maxHistory {
		d.history = d.history[len(d.history)-maxHistory:]
	}
}

// History returns recorded drifts newest-first, optionally filtered to
// those at or after since (zero value = no lower bound) and matching
// severity (empty = any).
func (d *Detector) History(since time.Time, severity model.Severity) []model.Drift {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []model.Drift
	for i := len(d.history) - 1; i >= 0; i-- {
		drift := d.history[i]
		if !since.IsZero() && drift.Timestamp.Before(since) {
			continue
		}
		if severity != "" && drift.Severity != severity {
			continue
		}
		out = append(out, drift)
	}
	return out
}

// SnapshotFromFeature extracts the subset of f's properties the drift
// detector tracks.
func SnapshotFromFeature(f model.Feature) model.NodeSnapshot {
	get := func(key string) string {
		v, _ := f.GetString(key)
		return v
	}
	return model.NodeSnapshot{
		Region:      get(model.PropRegion),
		ModemPreset: get(model.PropModemPreset),
		ChannelName: get(model.PropChannelName),
		Role:        get(model.PropRole),
		Hardware:    get(model.PropHardware),
		Name:        get(model.PropName),
		ShortName:   get(model.PropShortName),
	}
}

// Forget drops the stored snapshot for nodeID, e.g. after the node
// store evicted it. Recorded drift history is kept.
func (d *Detector) Forget(nodeID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.snapshots, nodeID)
}

// LastSnapshot returns the most recently observed snapshot for nodeID.
func (d *Detector) LastSnapshot(nodeID string) (model.NodeSnapshot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap, ok := d.snapshots[nodeID]
	return snap, ok
}

func (d *Detector) publish(drift model.Drift) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(events.Event{
		Topic:     events.TopicDrift,
		NodeID:    drift.NodeID,
		Timestamp: drift.Timestamp,
		Payload:   drift,
	})
}

// fieldValue reads the named tracked field off a snapshot. The field
// names are the model.DriftTrackedFields string constants.
func fieldValue(s model.NodeSnapshot, field string) string {
	switch field {
	case "region":
		return s.Region
	case "modem_preset":
		return s.ModemPreset
	case "role":
		return s.Role
	case "hardware":
		return s.Hardware
	case "name":
		return s.Name
	case "short_name":
		return s.ShortName
	default:
		return ""
	}
}
