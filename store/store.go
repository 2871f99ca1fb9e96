// Package store holds the volatile shared state behind the engine: the
// token blacklist, login failure counters, active refresh-session sets, and
// access revocation watermarks. Two implementations exist: a Redis-backed
// store for shared deployments and an in-memory store for tests and
// single-process setups.
//
// Every entry carries a TTL and is allowed to expire on its own; neither
// implementation runs a background sweeper.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps every backend failure so callers can detect a
// degraded store with errors.Is.
var ErrUnavailable = errors.New("store backend unavailable")

// Store is the capability surface the engine needs from shared state.
// Implementations must be safe for concurrent use. Multi-step updates must
// be delivered together but need not be atomic across steps; TTLs make any
// partial write self-healing.
type Store interface {
	// BlacklistAdd records a token string as revoked for ttl. A ttl <= 0 is
	// a no-op: an entry that would expire immediately is simply absent.
	BlacklistAdd(ctx context.Context, token string, ttl time.Duration) error
	// IsBlacklisted reports whether token is currently blacklisted.
	IsBlacklisted(ctx context.Context, token string) (bool, error)

	// IncrementFailure bumps the failure counter for key and returns the new
	// count. The first increment starts a rolling window; the counter
	// expires window after that first failure.
	IncrementFailure(ctx context.Context, key string, window time.Duration) (int, error)
	// ClearFailure resets the failure counter for key.
	ClearFailure(ctx context.Context, key string) error

	// AddRefreshSession registers rotationID as an active refresh session
	// for subject, expiring after ttl.
	AddRefreshSession(ctx context.Context, subject, rotationID string, ttl time.Duration) error
	// RotateRefreshSession retires oldID and registers newID in one delivery.
	RotateRefreshSession(ctx context.Context, subject, oldID, newID string, ttl time.Duration) error
	// RemoveRefreshSession retires a single rotation id for subject.
	RemoveRefreshSession(ctx context.Context, subject, rotationID string) error
	// IsRefreshActive reports whether rotationID is a live session of subject.
	IsRefreshActive(ctx context.Context, subject, rotationID string) (bool, error)
	// RevokeAllRefresh retires every refresh session of subject.
	RevokeAllRefresh(ctx context.Context, subject string) error
	// ListRefreshSessions returns the live rotation ids of subject, pruning
	// any that have expired.
	ListRefreshSessions(ctx context.Context, subject string) ([]string, error)

	// SetAccessRevokedAt records the watermark: access tokens of subject
	// issued at or before revokedAt are rejected. The entry expires after
	// ttl, which callers set to the access token lifetime.
	SetAccessRevokedAt(ctx context.Context, subject string, revokedAt time.Time, ttl time.Duration) error
	// AccessRevokedAt returns the current watermark for subject, if any.
	AccessRevokedAt(ctx context.Context, subject string) (time.Time, bool, error)
}
