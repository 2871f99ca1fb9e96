package trackauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/trackauth/password"
	"github.com/MrEthical07/trackauth/store"
	"github.com/MrEthical07/trackauth/token"
)

// Engine orchestrates authentication, token lifecycle, and revocation. It
// is constructed by a [Builder] and safe for concurrent use.
type Engine struct {
	config   Config
	provider PrincipalProvider
	codec    *token.Codec
	hasher   *password.Hasher
	store    store.Store
	metrics  *Metrics
	logger   *slog.Logger

	now func() time.Time
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil || e.codec == nil {
		return ErrEngineNotReady
	}
	return nil
}

// storeCtx bounds a single store operation. The engine never lets a slow
// backend stall a request longer than the configured deadline.
func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Store.OpTimeout)
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

/*
====================================
AUTHENTICATE
====================================
*/

// Authenticate checks credentials for username and returns the principal on
// success.
//
// Every attempt, successful or not, bumps the failure counter first; once
// the count inside the rolling window exceeds the lockout threshold the
// attempt is rejected with [ErrAccountLocked] before any credential
// comparison, so correct passwords probe nothing during a lockout. A
// successful verification clears the counter and stamps LastLogin.
//
// If the counter backend is unreachable the attempt proceeds unthrottled;
// the degradation is logged and counted, never silent.
func (e *Engine) Authenticate(ctx context.Context, username, passwordPlain string) (*Principal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	sctx, cancel := e.storeCtx(ctx)
	count, err := e.store.IncrementFailure(sctx, username, e.config.Lockout.Window)
	cancel()
	if err != nil {
		e.logger.Warn("failure counter unavailable, lockout disabled for attempt",
			"username", username, "error", err)
		e.metricInc(MetricStoreDegraded)
		count = 0
	}
	if count > e.config.Lockout.Threshold {
		e.metricInc(MetricLoginLocked)
		return nil, ErrAccountLocked
	}

	p, err := e.provider.GetPrincipalByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("principal lookup: %w", err)
	}
	if p == nil || !e.hasher.Verify(passwordPlain, p.PasswordHash) {
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}
	if !p.IsActive {
		e.metricInc(MetricLoginFailure)
		return nil, ErrInactiveAccount
	}

	sctx, cancel = e.storeCtx(ctx)
	if err := e.store.ClearFailure(sctx, username); err != nil {
		e.logger.Warn("failure counter clear failed", "username", username, "error", err)
		e.metricInc(MetricStoreDegraded)
	}
	cancel()

	p.LastLogin = e.now().UTC()
	if err := e.provider.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("principal save: %w", err)
	}

	e.metricInc(MetricLoginSuccess)
	return p, nil
}

/*
====================================
TOKEN ISSUANCE + REFRESH
====================================
*/

// IssueTokenPair mints an access/refresh pair for subject and registers the
// refresh token's rotation id as an active session.
func (e *Engine) IssueTokenPair(ctx context.Context, subject string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	access, err := e.codec.Issue(subject, token.TypeAccess, e.config.JWT.AccessTTL, "")
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	rotationID := uuid.NewString()
	refresh, err := e.codec.Issue(subject, token.TypeRefresh, e.config.JWT.RefreshTTL, rotationID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	if err := e.store.AddRefreshSession(sctx, subject, rotationID, e.config.JWT.RefreshTTL); err != nil {
		return nil, fmt.Errorf("register refresh session: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(e.config.JWT.AccessTTL.Seconds()),
	}, nil
}

// Refresh exchanges a live refresh token for a fresh pair. The presented
// token is single use: its rotation id is retired and the token string is
// blacklisted for its remaining lifetime, so a replay fails on either
// check. A rotation id that is no longer registered yields [ErrStaleToken];
// a blacklisted token yields [ErrTokenRevoked].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.codec.Verify(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Type != token.TypeRefresh {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrInvalidTokenType
	}

	sctx, cancel := e.storeCtx(ctx)
	active, err := e.store.IsRefreshActive(sctx, claims.Subject, claims.RotationID)
	cancel()
	if err != nil {
		return nil, err
	}
	if !active {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrStaleToken
	}

	sctx, cancel = e.storeCtx(ctx)
	revoked, err := e.store.IsBlacklisted(sctx, refreshToken)
	cancel()
	if err != nil {
		return nil, err
	}
	if revoked {
		e.metricInc(MetricRefreshReplay)
		e.metricInc(MetricRefreshFailure)
		return nil, ErrTokenRevoked
	}

	newID := uuid.NewString()
	sctx, cancel = e.storeCtx(ctx)
	err = e.store.RotateRefreshSession(sctx, claims.Subject, claims.RotationID, newID, e.config.JWT.RefreshTTL)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("rotate refresh session: %w", err)
	}

	access, err := e.codec.Issue(claims.Subject, token.TypeAccess, e.config.JWT.AccessTTL, "")
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := e.codec.Issue(claims.Subject, token.TypeRefresh, e.config.JWT.RefreshTTL, newID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	e.blacklistBestEffort(ctx, refreshToken, claims.ExpiresAt, "rotated refresh token")

	e.metricInc(MetricRefreshSuccess)
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(e.config.JWT.AccessTTL.Seconds()),
	}, nil
}

/*
====================================
LOGOUT
====================================
*/

// Logout ends the session identified by refreshToken and revokes the
// presented access token for its remaining lifetime.
//
// The access token is handled best-effort: an unparseable or absent access
// token never fails a logout. A refresh token that is already blacklisted
// makes Logout an idempotent success.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	if accessToken != "" {
		if claims, err := e.codec.Verify(accessToken); err == nil && claims.Type == token.TypeAccess {
			e.blacklistBestEffort(ctx, accessToken, claims.ExpiresAt, "access token on logout")
		}
	}

	claims, err := e.codec.Verify(refreshToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Type != token.TypeRefresh {
		return ErrInvalidTokenType
	}

	sctx, cancel := e.storeCtx(ctx)
	revoked, err := e.store.IsBlacklisted(sctx, refreshToken)
	cancel()
	if err != nil {
		return err
	}
	if revoked {
		// Already logged out.
		return nil
	}

	sctx, cancel = e.storeCtx(ctx)
	active, err := e.store.IsRefreshActive(sctx, claims.Subject, claims.RotationID)
	cancel()
	if err != nil {
		return err
	}
	if !active {
		return ErrStaleToken
	}

	e.blacklistBestEffort(ctx, refreshToken, claims.ExpiresAt, "refresh token on logout")

	sctx, cancel = e.storeCtx(ctx)
	if err := e.store.RemoveRefreshSession(sctx, claims.Subject, claims.RotationID); err != nil {
		e.logger.Warn("refresh session removal failed", "subject", claims.Subject, "error", err)
		e.metricInc(MetricStoreDegraded)
	}
	cancel()

	e.metricInc(MetricLogout)
	return nil
}

// LogoutAll revokes every session of subject: all refresh sessions are
// retired and a revocation watermark invalidates every access token issued
// up to now. The watermark has unix-second granularity; tokens minted
// within the same second are rejected too.
func (e *Engine) LogoutAll(ctx context.Context, subject string) error {
	if err := e.ready(); err != nil {
		return err
	}

	sctx, cancel := e.storeCtx(ctx)
	err := e.store.RevokeAllRefresh(sctx, subject)
	cancel()
	if err != nil {
		return err
	}

	watermark := time.Unix(e.now().Unix(), 0)
	sctx, cancel = e.storeCtx(ctx)
	err = e.store.SetAccessRevokedAt(sctx, subject, watermark, e.config.JWT.AccessTTL)
	cancel()
	if err != nil {
		return err
	}

	e.metricInc(MetricLogoutAll)
	return nil
}

/*
====================================
PASSWORD CHANGE
====================================
*/

// ChangePassword verifies the old password, stores a hash of the new one,
// and revokes every outstanding session of subject. Policy violations in
// the new password surface as [ErrWeakPassword].
func (e *Engine) ChangePassword(ctx context.Context, subject, oldPassword, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}

	p, err := e.provider.GetPrincipalByID(ctx, subject)
	if err != nil {
		return fmt.Errorf("principal lookup: %w", err)
	}
	if p == nil || !e.hasher.Verify(oldPassword, p.PasswordHash) {
		e.metricInc(MetricPasswordChangeFailure)
		return ErrInvalidCredentials
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, password.ErrTooWeak) || errors.Is(err, password.ErrTooLong) {
			e.metricInc(MetricPasswordChangeFailure)
			return fmt.Errorf("%w: %v", ErrWeakPassword, err)
		}
		return fmt.Errorf("hash password: %w", err)
	}

	p.PasswordHash = newHash
	if err := e.provider.Save(ctx, p); err != nil {
		return fmt.Errorf("principal save: %w", err)
	}

	if err := e.LogoutAll(ctx, subject); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	return nil
}

/*
====================================
ADMISSION
====================================
*/

// CheckAccessToken is the per-request admission check. The order is fixed:
// blacklist, signature and expiry, token type, principal liveness, then the
// revocation watermark. A token whose issued-at is at or before the
// watermark is rejected with [ErrTokenRevoked].
func (e *Engine) CheckAccessToken(ctx context.Context, tokenStr string) (*Principal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := e.now()
	defer func() {
		e.metrics.Observe(MetricCheckLatency, time.Since(start))
	}()

	sctx, cancel := e.storeCtx(ctx)
	revoked, err := e.store.IsBlacklisted(sctx, tokenStr)
	cancel()
	if err != nil {
		return nil, err
	}
	if revoked {
		e.metricInc(MetricCheckRejected)
		return nil, ErrTokenRevoked
	}

	claims, err := e.codec.Verify(tokenStr)
	if err != nil {
		e.metricInc(MetricCheckRejected)
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Type != token.TypeAccess {
		e.metricInc(MetricCheckRejected)
		return nil, ErrInvalidTokenType
	}

	p, err := e.provider.GetPrincipalByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("principal lookup: %w", err)
	}
	if p == nil || !p.IsActive {
		e.metricInc(MetricCheckRejected)
		return nil, ErrInactiveAccount
	}

	sctx, cancel = e.storeCtx(ctx)
	revokedAt, ok, err := e.store.AccessRevokedAt(sctx, claims.Subject)
	cancel()
	if err != nil {
		return nil, err
	}
	if ok && !claims.IssuedAt.After(revokedAt) {
		e.metricInc(MetricCheckRejected)
		return nil, ErrTokenRevoked
	}

	e.metricInc(MetricCheckSuccess)
	return p, nil
}

/*
====================================
INTROSPECTION
====================================
*/

// ActiveSessions lists the live refresh rotation ids of subject, e.g. for
// an active-devices view. Expired entries are pruned as a side effect.
func (e *Engine) ActiveSessions(ctx context.Context, subject string) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	return e.store.ListRefreshSessions(sctx, subject)
}

// MetricsSnapshot exposes the engine counters for exporters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}, Histograms: map[MetricID][]uint64{}}
	}
	return e.metrics.Snapshot()
}

// blacklistBestEffort blacklists a token string for its remaining lifetime.
// Failures are logged and counted, never returned: losing a blacklist
// write must not fail the surrounding operation.
func (e *Engine) blacklistBestEffort(ctx context.Context, tokenStr string, expiresAt time.Time, what string) {
	remaining := expiresAt.Sub(e.now())

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	if err := e.store.BlacklistAdd(sctx, tokenStr, remaining); err != nil {
		e.logger.Warn("blacklist write failed", "token", what, "error", err)
		e.metricInc(MetricStoreDegraded)
	}
}
