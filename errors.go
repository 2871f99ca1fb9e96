package trackauth

import "errors"

var (
	// ErrInvalidCredentials is returned when the username is unknown or the
	// password does not match. Callers must not be able to distinguish the two.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned when the failure counter for a username has
	// exceeded the lockout threshold inside the rolling window.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidTokenType is returned when a token of the wrong type is
	// presented, e.g. an access token at the refresh endpoint.
	ErrInvalidTokenType = errors.New("invalid token type")
	// ErrStaleToken is returned when a refresh token's rotation id is no longer
	// registered as an active session for its subject.
	ErrStaleToken = errors.New("stale refresh token")
	// ErrTokenRevoked is returned when a token has been blacklisted or was
	// issued before the subject's revocation watermark.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenInvalid is returned for malformed, expired, or tampered tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrWeakPassword is returned when a new password fails the length or
	// complexity policy, or exceeds the hasher's input limit.
	ErrWeakPassword = errors.New("password does not meet policy")
	// ErrInactiveAccount is returned when the token subject no longer resolves
	// to an active principal.
	ErrInactiveAccount = errors.New("inactive account")
	// ErrEngineNotReady is returned when an operation is invoked on a nil or
	// unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
