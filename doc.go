// Package trackauth is the authentication and session core for an issue
// tracker backend: stateless signed token pairs, single-use refresh
// rotation, server-side revocation, and brute-force lockout, on top of a
// pluggable shared store.
//
// The engine is storage-agnostic. User records live behind the
// [PrincipalProvider] interface the host application implements; volatile
// session state (token blacklist, failure counters, refresh-session sets,
// revocation watermarks) lives behind the store package, backed by Redis in
// production or by an in-memory map for tests and single-process setups.
//
// Boundaries: trackauth issues and checks tokens, it does not transport
// them. HTTP routing, cookie handling, and request middleware belong to the
// caller; see examples/http-minimal for a wiring demo.
//
// When the configured Redis backend is unreachable at Build time the engine
// falls back to the in-memory store and logs a warning. In that mode
// revocation and lockout state is process-local and is not shared across
// instances.
package trackauth
