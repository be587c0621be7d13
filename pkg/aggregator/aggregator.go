// Package aggregator is the seam between ingestion (pkg/collector's
// polling sources and pkg/broker's MQTT push path) and the rest of the
// service: it owns the node store and wires every update through the
// connectivity state machine, the drift detector, and the alert
// engine, regardless of which network a node arrived from.
package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/alert"
	"github.com/meshforge/meshforge-maps/pkg/collector"
	"github.com/meshforge/meshforge-maps/pkg/drift"
	"github.com/meshforge/meshforge-maps/pkg/events"
	"github.com/meshforge/meshforge-maps/pkg/health"
	"github.com/meshforge/meshforge-maps/pkg/history"
	"github.com/meshforge/meshforge-maps/pkg/logx"
	"github.com/meshforge/meshforge-maps/pkg/model"
	"github.com/meshforge/meshforge-maps/pkg/nodestore"
	"github.com/meshforge/meshforge-maps/pkg/perf"
	"github.com/meshforge/meshforge-maps/pkg/state"
)

// metricKeys lists the Feature properties extracted into the numeric
// metrics map passed to the alert engine on every update.
var metricKeys = []string{
	model.PropBattery, model.PropSNR, model.PropRSSI, model.PropChannelUtil,
	model.PropAirUtilTx, model.PropHopsAway, model.PropTemperature,
	model.PropHumidity, model.PropPressure, model.PropIAQ,
}

// Aggregator owns the node store and keeps it in sync with every
// registered collector and broker subscriber, fanning each update out
// to the connectivity state machine, drift detector, and alert engine.
type Aggregator struct {
	Store  *nodestore.Store
	State  *state.Machine
	Drift  *drift.Detector
	Alerts *alert.Engine
	bus    *events.Bus
	log    *logx.Logger

	// History, when set, receives a throttled Observation for every
	// geolocated feature update. Perf, when set, has its node/link
	// gauges refreshed by Maintain. Both are optional and set by the
	// caller before any events flow.
	History *history.Store
	Perf    *perf.Recorder

	subID uint64

	overlayMu sync.RWMutex
	overlay   interface{}
}

// New creates an Aggregator wired to bus's TopicFeatureUpdated stream.
// store, stateMachine, driftDetector, and alertEngine are constructed
// by the caller (so they can share the same bus and config) and handed
// in ready to use.
func New(store *nodestore.Store, stateMachine *state.Machine, driftDetector *drift.Detector, alertEngine *alert.Engine, bus *events.Bus, log *logx.Logger) *Aggregator {
	a := &Aggregator{
		Store:  store,
		State:  stateMachine,
		Drift:  driftDetector,
		Alerts: alertEngine,
		bus:    bus,
		log:    log,
	}
	if bus != nil {
		a.subID = bus.Subscribe(events.TopicFeatureUpdated, a.onFeatureUpdated)
	}
	if store != nil {
		store.SetOnRemoved(a.onNodeRemoved)
	}
	return a
}

// onNodeRemoved is the store's eviction hook: it prunes the sibling
// trackers in a fixed order so an evicted node doesn't linger as a
// phantom in /api/node-states or the drift baseline.
func (a *Aggregator) onNodeRemoved(nodeID string) {
	if a.State != nil {
		a.State.Forget(nodeID)
	}
	if a.Drift != nil {
		a.Drift.Forget(nodeID)
	}
}

// Close unsubscribes from the event bus.
func (a *Aggregator) Close() {
	if a.bus != nil {
		a.bus.Unsubscribe(a.subID)
	}
}

// OnCollectorResult is passed to collector.BaseCollector.Run as the
// onResult callback: it upserts every feature and link the source
// produced. Downstream processing (state/drift/alert) happens via the
// TopicFeatureUpdated subscription the collector itself publishes to,
// not here, so collector-sourced and broker-sourced updates share one
// processing path.
func (a *Aggregator) OnCollectorResult(result collector.Result) {
	for _, f := range result.Features {
		a.Store.Upsert(f)
	}
	for _, link := range result.Links {
		a.Store.UpsertLink(link)
	}
}

// SetOverlay records the latest space-weather/propagation snapshot
// folded in from the propagation collector, for /api/overlay and
// /api/hamclock to serve without a full collection cycle.
func (a *Aggregator) SetOverlay(overlay interface{}) {
	a.overlayMu.Lock()
	defer a.overlayMu.Unlock()
	a.overlay = overlay
}

// Overlay returns the last snapshot SetOverlay recorded, or nil if none
// has arrived yet.
func (a *Aggregator) Overlay() interface{} {
	a.overlayMu.RLock()
	defer a.overlayMu.RUnlock()
	return a.overlay
}

// onFeatureUpdated is the bus handler driving connectivity state,
// drift detection, and alert evaluation for every updated node,
// independent of source network.
func (a *Aggregator) onFeatureUpdated(ev events.Event) {
	f, ok := ev.Payload.(model.Feature)
	if !ok {
		return
	}

	if a.State != nil {
		a.State.Observe(f.ID)
	}
	if a.Drift != nil {
		a.Drift.Observe(f.ID, drift.SnapshotFromFeature(f))
	}
	if a.Alerts != nil {
		metrics := extractMetrics(f)
		if score, status := health.Score(healthInputs(f, time.Now())); status != health.StatusUnknown {
			metrics[alert.MetricHealthScore] = score
		}
		network, _ := f.GetString(model.PropNetwork)
		a.Alerts.Evaluate(context.Background(), f.ID, model.Network(network), metrics)
	}
	if a.History != nil && f.Geometry != nil {
		a.recordObservation(f)
	}
}

// recordObservation appends a geolocated update to the history store;
// the store's own per-node throttle decides whether it actually lands.
func (a *Aggregator) recordObservation(f model.Feature) {
	network, _ := f.GetString(model.PropNetwork)
	obs := model.Observation{
		NodeID:    f.ID,
		Lat:       f.Geometry.Lat,
		Lon:       f.Geometry.Lon,
		Timestamp: time.Now().Unix(),
		Network:   model.Network(network),
	}
	if ts, ok := f.GetFloat(model.PropLastSeen); ok && ts > 0 {
		obs.Timestamp = int64(ts)
	}
	if v, ok := f.GetFloat(model.PropSNR); ok {
		obs.SNR = &v
	}
	if v, ok := f.GetFloat(model.PropBattery); ok {
		obs.Battery = &v
	}
	if err := a.History.Record(obs); err != nil && a.log != nil {
		a.log.Warn("record observation failed", "node_id", f.ID, "error", err.Error())
	}
}

// Maintain runs periodic housekeeping (stale-node eviction and
// connectivity-offline sweeps) until ctx is canceled. Intended to be
// run in its own goroutine by the caller.
func (a *Aggregator) Maintain(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := a.Store.SweepStale()
			var offline []string
			if a.State != nil {
				offline = a.State.Sweep()
			}
			if a.Alerts != nil {
				for _, nodeID := range offline {
					lastSeen := time.Time{}
					if f, ok := a.Store.Get(nodeID); ok {
						if ts, ok := f.GetFloat(model.PropLastSeen); ok && ts > 0 {
							lastSeen = time.Unix(int64(ts), 0)
						}
					}
					a.Alerts.EvaluateOffline(ctx, nodeID, lastSeen)
				}
			}
			if a.Perf != nil {
				for _, network := range []model.Network{model.NetworkMeshtastic, model.NetworkReticulum, model.NetworkAREDN, model.NetworkHamclock} {
					a.Perf.SetNodeCount(string(network), len(a.Store.ByNetwork(network)))
				}
				a.Perf.SetLinkCount(len(a.Store.AllLinks()))
			}
			if a.log != nil && (evicted > 0 || len(offline) > 0) {
				a.log.Info("aggregator maintenance sweep", "stale_evicted", evicted, "newly_offline", len(offline))
			}
		}
	}
}

// healthInputs builds the health scorer's inputs from whichever of f's
// properties are present.
func healthInputs(f model.Feature, now time.Time) health.Inputs {
	var in health.Inputs
	if v, ok := f.GetFloat(model.PropBattery); ok {
		in.BatteryPercent = &v
	}
	if v, ok := f.GetFloat(model.PropSNR); ok {
		in.SNR = &v
	}
	if ts, ok := f.GetFloat(model.PropLastSeen); ok && ts > 0 {
		age := now.Sub(time.Unix(int64(ts), 0)).Seconds()
		if age < 0 {
			age = 0
		}
		in.SecondsSinceSeen = &age
	}
	if v, ok := f.GetFloat(model.PropChannelUtil); ok {
		in.ChannelUtilPct = &v
	}
	return in
}

// extractMetrics pulls every known numeric metric off f's properties
// into a flat map suitable for alert.Engine.Evaluate.
func extractMetrics(f model.Feature) map[string]float64 {
	out := make(map[string]float64, len(metricKeys))
	for _, key := range metricKeys {
		if v, ok := f.GetFloat(key); ok {
			out[key] = v
		}
	}
	return out
}
