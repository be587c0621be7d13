// Package lease provides a per-host, single-holder, timed lease used to
// serialize exclusive access to a collector's upstream (e.g. one AREDN
// node's HTTP API) across concurrent poll cycles.
package lease

import (
	"fmt"
	"sync"
	"time"
)

// ErrHeld is returned by Acquire when another holder currently owns the
// lease for that key.
var ErrHeld = fmt.Errorf("lease held by another owner")

// ErrNotHolder is returned by Release when the caller does not hold the
// lease it is trying to release.
var ErrNotHolder = fmt.Errorf("caller does not hold this lease")

type entry struct {
	holder    string
	expiresAt time.Time
}

// Manager grants timed, single-holder leases keyed by host/identifier.
// A lease held past its TTL is treated as abandoned and may be acquired
// by a new holder; Release always clears the entry for its own holder so
// a well-behaved caller never needs to wait out the TTL.
type Manager struct {
	mu      sync.Mutex
	leases  map[string]entry
	ttl     time.Duration
	nowFunc func() time.Time
}

// New creates a Manager granting leases with the given TTL.
func New(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Manager{
		leases:  make(map[string]entry),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Acquire grants holder exclusive use of key for the manager's TTL. It
// fails with ErrHeld if a different, non-expired holder already owns key.
// Acquiring again with the same holder renews the lease (idempotent).
func (m *Manager) Acquire(key, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()
	if e, ok := m.leases[key]; ok && e.holder != holder && now.Before(e.expiresAt) {
		return ErrHeld
	}
	m.leases[key] = entry{holder: holder, expiresAt: now.Add(m.ttl)}
	return nil
}

// Release gives up holder's lease on key, guaranteeing the key is free for
// the next caller regardless of remaining TTL. It is a no-op error if
// holder does not currently hold the lease (already expired or never
// acquired), so callers can always defer Release safely.
func (m *Manager) Release(key, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.leases[key]
	if !ok {
		return nil
	}
	if e.holder != holder {
		return ErrNotHolder
	}
	delete(m.leases, key)
	return nil
}

// Holder returns the current holder of key and whether the lease is
// currently live (non-expired).
func (m *Manager) Holder(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.leases[key]
	if !ok {
		return "", false
	}
	if !m.nowFunc().Before(e.expiresAt) {
		return "", false
	}
	return e.holder, true
}

// Sweep removes all expired lease entries, reclaiming memory for keys
// whose holders never called Release. Intended to run periodically from
// a background maintenance loop.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()
	removed := 0
	for key, e := range m.leases {
		if !now.Before(e.expiresAt) {
			delete(m.leases, key)
			removed++
		}
	}
	return removed
}
