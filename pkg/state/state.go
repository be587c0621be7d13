// Package state tracks each node's connectivity state machine: new,
// stable, intermittent, or offline, driven by how recently and how
// consistently a node has been observed.
package state

import (
	"sync"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/events"
)

// Connectivity is one of the four connectivity states a node can be in.
type Connectivity string

const (
	StateNew          Connectivity = "new"
	StateStable       Connectivity = "stable"
	StateIntermittent Connectivity = "intermittent"
	StateOffline      Connectivity = "offline"
)

// Config controls the thresholds driving state transitions.
type Config struct {
	// StableAfter is how long a node must be continuously seen (no gap
	// longer than OfflineAfter) before it graduates from New to Stable.
	StableAfter time.Duration
	// OfflineAfter is the quiet period after which a node not seen is
	// considered Offline.
	OfflineAfter time.Duration
	// IntermittentWindow is the lookback window used to count recent
	// gaps when deciding Stable vs Intermittent.
	IntermittentWindow time.Duration
	// IntermittentGapThreshold is the number of observation gaps longer
	// than OfflineAfter/2 within IntermittentWindow that demote a node
	// from Stable to Intermittent.
	IntermittentGapThreshold int
}

// DefaultConfig returns sensible connectivity-tracking defaults.
func DefaultConfig() Config {
	return Config{
		StableAfter:              10 * time.Minute,
		OfflineAfter:             15 * time.Minute,
		IntermittentWindow:       time.Hour,
		IntermittentGapThreshold: 3,
	}
}

type nodeState struct {
	state      Connectivity
	firstSeen  time.Time
	lastSeen   time.Time
	recentGaps []time.Time // timestamps of gap detections within the window
}

// Machine tracks connectivity state for every known node ID.
type Machine struct {
	mu     sync.Mutex
	config Config
	nodes  map[string]*nodeState
	bus    *events.Bus
	now    func() time.Time
}

// New creates a Machine with config. bus may be nil to disable
// transition notifications.
func New(config Config, bus *events.Bus) *Machine {
	if config.StableAfter <= 0 {
		config.StableAfter = DefaultConfig().StableAfter
	}
	if config.OfflineAfter <= 0 {
		config.OfflineAfter = DefaultConfig().OfflineAfter
	}
	if config.IntermittentWindow <= 0 {
		config.IntermittentWindow = DefaultConfig().IntermittentWindow
	}
	if config.IntermittentGapThreshold <= 0 {
		config.IntermittentGapThreshold = DefaultConfig().IntermittentGapThreshold
	}
	return &Machine{
		config: config,
		nodes:  make(map[string]*nodeState),
		bus:    bus,
		now:    time.Now,
	}
}

// Observe records a fresh sighting of nodeID and returns its resulting
// connectivity state. A gap longer than OfflineAfter/2 since the
// previous sighting counts toward the intermittent-gap tally.
func (m *Machine) Observe(nodeID string) Connectivity {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n, ok := m.nodes[nodeID]
	if !ok {
		n = &nodeState{state: StateNew, firstSeen: now}
		m.nodes[nodeID] = n
	} else {
		gapThreshold := m.config.OfflineAfter / 2
		if !n.lastSeen.IsZero() && now.Sub(n.lastSeen) > gapThreshold {
			n.recentGaps = append(n.recentGaps, now)
		}
		if n.state == StateOffline || now.Sub(n.lastSeen) > m.config.OfflineAfter {
			n.firstSeen = now
		}
	}
	n.lastSeen = now
	n.recentGaps = pruneGaps(n.recentGaps, now, m.config.IntermittentWindow)

	prev := n.state
	next := m.computeState(n, now)
	n.state = next

	if next != prev {
		m.publish(nodeID, prev, next)
	}
	return next
}

// computeState derives the state for a node given its history, without
// mutating it. Caller must hold mu.
func (m *Machine) computeState(n *nodeState, now time.Time) Connectivity {
	if now.Sub(n.firstSeen) < m.config.StableAfter {
		return StateNew
	}
	if len(n.recentGaps) >= m.config.IntermittentGapThreshold {
		return StateIntermittent
	}
	return StateStable
}

// Sweep marks any node not seen within OfflineAfter as Offline,
// returning the node IDs that transitioned. Intended for a periodic
// maintenance loop since Observe alone can't detect silence.
func (m *Machine) Sweep() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var transitioned []string
	for id, n := range m.nodes {
		if n.state == StateOffline {
			continue
		}
		if now.Sub(n.lastSeen) > m.config.OfflineAfter {
			prev := n.state
			n.state = StateOffline
			transitioned = append(transitioned, id)
			m.publish(id, prev, StateOffline)
		}
	}
	return transitioned
}

// State returns the current connectivity state for nodeID, or false if
// it has never been observed.
func (m *Machine) State(nodeID string) (Connectivity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[nodeID]
	if !ok {
		return "", false
	}
	return n.state, true
}

// Forget drops all tracking for nodeID, e.g. after the node store
// evicted it. No transition event is published.
func (m *Machine) Forget(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, nodeID)
}

// All returns the current connectivity state of every known node.
func (m *Machine) All() map[string]Connectivity {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Connectivity, len(m.nodes))
	for id, n := range m.nodes {
		out[id] = n.state
	}
	return out
}

func (m *Machine) publish(nodeID string, from, to Connectivity) {
	if m.bus == nil {
		return
	}
	topic := events.TopicNodeOnline
	if to == StateOffline {
		topic = events.TopicNodeOffline
	}
	m.bus.Publish(events.Event{
		Topic:     topic,
		NodeID:    nodeID,
		Timestamp: m.now(),
		Payload:   map[string]Connectivity{"from": from, "to": to},
	})
}

// pruneGaps drops gap timestamps older than window.
func pruneGaps(gaps []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	out := gaps[:0]
	for _, g := range gaps {
		if g.After(cutoff) {
			out = append(out, g)
		}
	}
	return out
}
