package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout. The refresh-session set mirrors the per-session keys so
// membership can be listed without scanning; per-session keys carry the
// authoritative TTL.
const (
	blacklistPrefix  = "blacklist:"
	failurePrefix    = "loginfail:"
	refreshPrefix    = "refresh:"
	refreshSetPrefix = "refreshset:"
	revokedPrefix    = "accessrevoked:"
)

// Redis is a Store backed by a Redis-compatible server. All failures wrap
// ErrUnavailable so the engine can distinguish backend outage from a
// negative answer.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis wraps an existing client. The caller keeps ownership of the
// client's lifecycle.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Dial connects to a redis:// URL with short socket timeouts and verifies
// the server with a ping. Intended for startup; the returned client is
// never re-dialed by this package.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	opts.DialTimeout = time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return client, nil
}

// BlacklistAdd records token as revoked for ttl. A ttl <= 0 is a no-op.
func (r *Redis) BlacklistAdd(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, blacklistPrefix+token, "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsBlacklisted reports whether token is currently blacklisted.
func (r *Redis) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, blacklistPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// IncrementFailure bumps the counter for key and starts the rolling window
// on the first failure.
func (r *Redis) IncrementFailure(ctx context.Context, key string, window time.Duration) (int, error) {
	count, err := r.client.Incr(ctx, failurePrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 && window > 0 {
		// TTL set on first failure only, so the window rolls from the
		// first attempt rather than sliding with each one.
		if err := r.client.Expire(ctx, failurePrefix+key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return int(count), nil
}

// ClearFailure resets the counter for key.
func (r *Redis) ClearFailure(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, failurePrefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// AddRefreshSession registers rotationID for subject.
func (r *Redis) AddRefreshSession(ctx context.Context, subject, rotationID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetEx(ctx, refreshKey(subject, rotationID), "1", ttl)
		pipe.SAdd(ctx, refreshSetPrefix+subject, rotationID)
		pipe.Expire(ctx, refreshSetPrefix+subject, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RotateRefreshSession retires oldID and registers newID in one pipeline.
// The steps are delivered together but are not atomic; a partial write
// only shortens a session's life and expires on its own.
func (r *Redis) RotateRefreshSession(ctx context.Context, subject, oldID, newID string, ttl time.Duration) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, refreshKey(subject, oldID))
		pipe.SRem(ctx, refreshSetPrefix+subject, oldID)
		if ttl > 0 {
			pipe.SetEx(ctx, refreshKey(subject, newID), "1", ttl)
			pipe.SAdd(ctx, refreshSetPrefix+subject, newID)
			pipe.Expire(ctx, refreshSetPrefix+subject, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RemoveRefreshSession retires a single rotation id for subject.
func (r *Redis) RemoveRefreshSession(ctx context.Context, subject, rotationID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, refreshKey(subject, rotationID))
		pipe.SRem(ctx, refreshSetPrefix+subject, rotationID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsRefreshActive reports whether rotationID is a live session of subject.
// The per-session key is authoritative; set membership may lag.
func (r *Redis) IsRefreshActive(ctx context.Context, subject, rotationID string) (bool, error) {
	n, err := r.client.Exists(ctx, refreshKey(subject, rotationID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// RevokeAllRefresh retires every refresh session of subject.
func (r *Redis) RevokeAllRefresh(ctx context.Context, subject string) error {
	ids, err := r.client.SMembers(ctx, refreshSetPrefix+subject).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, refreshKey(subject, id))
		}
		pipe.Del(ctx, refreshSetPrefix+subject)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ListRefreshSessions returns live rotation ids and prunes stale set
// members whose per-session keys have expired.
func (r *Redis) ListRefreshSessions(ctx context.Context, subject string) ([]string, error) {
	ids, err := r.client.SMembers(ctx, refreshSetPrefix+subject).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	live := make([]string, 0, len(ids))
	var stale []string
	for _, id := range ids {
		n, err := r.client.Exists(ctx, refreshKey(subject, id)).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if n > 0 {
			live = append(live, id)
		} else {
			stale = append(stale, id)
		}
	}

	if len(stale) > 0 {
		args := make([]interface{}, len(stale))
		for i, id := range stale {
			args[i] = id
		}
		if err := r.client.SRem(ctx, refreshSetPrefix+subject, args...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return live, nil
}

// SetAccessRevokedAt records the revocation watermark for subject as unix
// seconds.
func (r *Redis) SetAccessRevokedAt(ctx context.Context, subject string, revokedAt time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	value := strconv.FormatInt(revokedAt.Unix(), 10)
	if err := r.client.Set(ctx, revokedPrefix+subject, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// AccessRevokedAt returns the watermark for subject, if any.
func (r *Redis) AccessRevokedAt(ctx context.Context, subject string) (time.Time, bool, error) {
	raw, err := r.client.Get(ctx, revokedPrefix+subject).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: corrupt watermark %q", ErrUnavailable, raw)
	}
	return time.Unix(unix, 0), true, nil
}

func refreshKey(subject, rotationID string) string {
	return refreshPrefix + subject + ":" + rotationID
}
