package store

import (
	"context"
	"sync"
	"time"
)

type failureEntry struct {
	count     int
	expiresAt time.Time
}

type watermarkEntry struct {
	revokedAt time.Time
	expiresAt time.Time
}

// Memory is a process-local Store guarded by a single mutex. Expired
// entries are dropped lazily when they are next read or written; nothing
// runs in the background.
//
// State is not shared across processes. In a multi-instance deployment a
// revocation or lockout recorded here is invisible to other instances.
type Memory struct {
	mu        sync.Mutex
	blacklist map[string]time.Time
	failures  map[string]failureEntry
	sessions  map[string]map[string]time.Time
	revoked   map[string]watermarkEntry

	now func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		blacklist: make(map[string]time.Time),
		failures:  make(map[string]failureEntry),
		sessions:  make(map[string]map[string]time.Time),
		revoked:   make(map[string]watermarkEntry),
		now:       time.Now,
	}
}

// BlacklistAdd records token as revoked for ttl. A ttl <= 0 is a no-op.
func (m *Memory) BlacklistAdd(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blacklist[token] = m.now().Add(ttl)
	return nil
}

// IsBlacklisted reports whether token is currently blacklisted.
func (m *Memory) IsBlacklisted(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt, ok := m.blacklist[token]
	if !ok {
		return false, nil
	}
	if !m.now().Before(expiresAt) {
		delete(m.blacklist, token)
		return false, nil
	}
	return true, nil
}

// IncrementFailure bumps the counter for key inside its rolling window.
func (m *Memory) IncrementFailure(_ context.Context, key string, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, ok := m.failures[key]
	if !ok || !now.Before(entry.expiresAt) {
		entry = failureEntry{count: 1, expiresAt: now.Add(window)}
	} else {
		entry.count++
	}
	m.failures[key] = entry
	return entry.count, nil
}

// ClearFailure resets the counter for key.
func (m *Memory) ClearFailure(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, key)
	return nil
}

// AddRefreshSession registers rotationID for subject.
func (m *Memory) AddRefreshSession(_ context.Context, subject, rotationID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addSessionLocked(subject, rotationID, ttl)
	return nil
}

// RotateRefreshSession retires oldID and registers newID under one lock
// acquisition.
func (m *Memory) RotateRefreshSession(_ context.Context, subject, oldID, newID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if set, ok := m.sessions[subject]; ok {
		delete(set, oldID)
	}
	if ttl > 0 {
		m.addSessionLocked(subject, newID, ttl)
	}
	return nil
}

// RemoveRefreshSession retires a single rotation id.
func (m *Memory) RemoveRefreshSession(_ context.Context, subject, rotationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sessions[subject]
	if !ok {
		return nil
	}
	delete(set, rotationID)
	if len(set) == 0 {
		delete(m.sessions, subject)
	}
	return nil
}

// IsRefreshActive reports whether rotationID is live for subject.
func (m *Memory) IsRefreshActive(_ context.Context, subject, rotationID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sessions[subject]
	if !ok {
		return false, nil
	}
	expiresAt, ok := set[rotationID]
	if !ok {
		return false, nil
	}
	if !m.now().Before(expiresAt) {
		delete(set, rotationID)
		return false, nil
	}
	return true, nil
}

// RevokeAllRefresh retires every refresh session of subject.
func (m *Memory) RevokeAllRefresh(_ context.Context, subject string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, subject)
	return nil
}

// ListRefreshSessions returns the live rotation ids of subject.
func (m *Memory) ListRefreshSessions(_ context.Context, subject string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sessions[subject]
	if !ok {
		return nil, nil
	}

	now := m.now()
	ids := make([]string, 0, len(set))
	for id, expiresAt := range set {
		if !now.Before(expiresAt) {
			delete(set, id)
			continue
		}
		ids = append(ids, id)
	}
	if len(set) == 0 {
		delete(m.sessions, subject)
	}
	return ids, nil
}

// SetAccessRevokedAt records the watermark for subject.
func (m *Memory) SetAccessRevokedAt(_ context.Context, subject string, revokedAt time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[subject] = watermarkEntry{
		revokedAt: revokedAt,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

// AccessRevokedAt returns the watermark for subject, if one is live.
func (m *Memory) AccessRevokedAt(_ context.Context, subject string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.revoked[subject]
	if !ok {
		return time.Time{}, false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.revoked, subject)
		return time.Time{}, false, nil
	}
	return entry.revokedAt, true, nil
}

func (m *Memory) addSessionLocked(subject, rotationID string, ttl time.Duration) {
	set, ok := m.sessions[subject]
	if !ok {
		set = make(map[string]time.Time)
		m.sessions[subject] = set
	}
	set[rotationID] = m.now().Add(ttl)
}
