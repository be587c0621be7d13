// Package history persists node observations to a local SQLite
// database so trajectories and trend analysis survive a restart.
package history

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meshforge/meshforge-maps/pkg/model"
)

// defaultThrottle is how often a single node's position may be recorded;
// a call within this window of the node's previous recorded observation
// is a silent no-op (spec'd write throttling, not an error condition).
const defaultThrottle = 60 * time.Second

// Store is a SQLite-backed append-only log of node observations.
type Store struct {
	db       *sql.DB
	throttle time.Duration
	now      func() time.Time

	mu           sync.Mutex
	lastRecorded map[string]time.Time
}

// Open creates (or reuses) a SQLite database at path and ensures its
// schema exists, throttling Record to at most once per defaultThrottle
// per node.
func Open(path string) (*Store, error) {
	return OpenWithThrottle(path, defaultThrottle)
}

// OpenWithThrottle is Open with an explicit per-node write throttle
// (pass 0 to disable throttling, e.g. in tests backfilling history).
func OpenWithThrottle(path string, throttle time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	s := &Store{
		db:           db,
		throttle:     throttle,
		now:          time.Now,
		lastRecorded: make(map[string]time.Time),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		node_id TEXT NOT NULL,
		network TEXT NOT NULL,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		snr REAL,
		battery REAL,
		timestamp INTEGER NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_observations_node_id ON observations(node_id);
	CREATE INDEX IF NOT EXISTS idx_observations_timestamp ON observations(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends obs to the observation log, unless obs.NodeID was last
// recorded less than the store's throttle ago -- in which case it is a
// silent no-op. The throttle check and the insert happen under the same
// lock so two concurrent callers for the same node can't both pass the
// check and double-insert.
func (s *Store) Record(obs model.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.throttle > 0 {
		if last, ok := s.lastRecorded[obs.NodeID]; ok && now.Sub(last) < s.throttle {
			return nil
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO observations (node_id, network, lat, lon, snr, battery, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		obs.NodeID, string(obs.Network), obs.Lat, obs.Lon,
		nullableFloat(obs.SNR), nullableFloat(obs.Battery), obs.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("record observation: %w", err)
	}
	s.lastRecorded[obs.NodeID] = now
	return nil
}

// Trajectory returns every observation for nodeID between since and
// now (epoch seconds), ordered oldest first.
func (s *Store) Trajectory(nodeID string, since time.Time) ([]model.Observation, error) {
	rows, err := s.db.Query(
		`SELECT node_id, network, lat, lon, snr, battery, timestamp
		 FROM observations WHERE node_id = ? AND timestamp >= ? ORDER BY timestamp ASC`,
		nodeID, since.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("query trajectory: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

// Recent returns the most recent limit observations across all nodes,
// newest first.
func (s *Store) Recent(limit int) ([]model.Observation, error) {
	rows, err := s.db.Query(
		`SELECT node_id, network, lat, lon, snr, battery, timestamp
		 FROM observations ORDER BY timestamp DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent observations: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

// Count returns the total number of stored observations.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM observations").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count observations: %w", err)
	}
	return n, nil
}

// Prune deletes observations older than cutoff, returning the number
// of rows removed.
func (s *Store) Prune(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM observations WHERE timestamp < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune observations: %w", err)
	}
	return result.RowsAffected()
}

// TrackedNode summarizes one node's presence in the observation log.
type TrackedNode struct {
	NodeID           string    `json:"node_id"`
	ObservationCount int       `json:"observation_count"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
}

// TrackedNodes returns every distinct node ID in the log with its
// observation count and first/last-seen timestamps.
func (s *Store) TrackedNodes() ([]TrackedNode, error) {
	rows, err := s.db.Query(
		`SELECT node_id, COUNT(*), MIN(timestamp), MAX(timestamp)
		 FROM observations GROUP BY node_id ORDER BY node_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query tracked nodes: %w", err)
	}
	defer rows.Close()

	var out []TrackedNode
	for rows.Next() {
		var n TrackedNode
		var first, last int64
		if err := rows.Scan(&n.NodeID, &n.ObservationCount, &first, &last); err != nil {
			return nil, fmt.Errorf("scan tracked node: %w", err)
		}
		n.FirstSeen = time.Unix(first, 0).UTC()
		n.LastSeen = time.Unix(last, 0).UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}

// Snapshot returns, for every node with at least one observation at or
// before at, that node's most recent such observation. Ties on
// timestamp are broken by the monotonic primary key (the highest id
// wins) so repeated observations sharing a timestamp never produce
// duplicate rows for the same node.
func (s *Store) Snapshot(at time.Time) ([]model.Observation, error) {
	rows, err := s.db.Query(
		`SELECT node_id, network, lat, lon, snr, battery, timestamp
		 FROM observations o
		 WHERE o.timestamp <= ? AND o.id = (
		   SELECT id FROM observations
		   WHERE node_id = o.node_id AND timestamp <= ?
		   ORDER BY timestamp DESC, id DESC LIMIT 1
		 )`,
		at.Unix(), at.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanObservations(rows *sql.Rows) ([]model.Observation, error) {
	var out []model.Observation
	for rows.Next() {
		var obs model.Observation
		var network string
		var snr, battery sql.NullFloat64
		if err := rows.Scan(&obs.NodeID, &network, &obs.Lat, &obs.Lon, &snr, &battery, &obs.Timestamp); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		obs.Network = model.Network(network)
		if snr.Valid {
			v := snr.Float64
			obs.SNR = &v
		}
		if battery.Valid {
			v := battery.Float64
			obs.Battery = &v
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
