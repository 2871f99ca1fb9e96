package trackauth

import (
	"errors"
	"time"
)

// Config carries every tunable of the engine. Zero values are filled from
// defaultConfig by the Builder; a Config passed to WithConfig is validated
// during Build and treated as immutable afterwards.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Lockout  LockoutConfig
	Store    StoreConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token issuance and verification.
//
// Key material may be supplied inline (PrivateKeyPEM/PublicKeyPEM) or via
// file paths; inline material wins. Paths are read exactly once at Build.
type JWTConfig struct {
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	Algorithm      string // "rs256" (default) or "ed25519"
	PrivateKeyPEM  []byte
	PublicKeyPEM   []byte
	PrivateKeyPath string
	PublicKeyPath  string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig controls the credential hashing policy.
type PasswordConfig struct {
	MinLength int
	// RequireClasses demands lowercase, uppercase, digit, and symbol
	// characters when true.
	RequireClasses bool
	Cost           int // bcrypt cost, 0 = library default
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls the brute-force failure counter.
//
// A login attempt is rejected before any credential comparison once the
// counter for the username exceeds Threshold within the rolling Window.
type LockoutConfig struct {
	Threshold int
	Window    time.Duration
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig controls shared-state backend selection and per-operation
// deadlines.
type StoreConfig struct {
	// BackendURL is a redis:// URL. Empty selects the in-memory store.
	BackendURL string
	// OpTimeout bounds every single store operation issued by the engine.
	OpTimeout time.Duration
}

// MetricsConfig enables in-process counters and the check-access latency
// histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Algorithm:  "rs256",
		},
		Password: PasswordConfig{
			MinLength:      8,
			RequireClasses: true,
			Cost:           0,
		},
		Lockout: LockoutConfig{
			Threshold: 10,
			Window:    15 * time.Minute,
		},
		Store: StoreConfig{
			BackendURL: "",
			OpTimeout:  time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKeyPEM = cloneBytes(cfg.JWT.PrivateKeyPEM)
	out.JWT.PublicKeyPEM = cloneBytes(cfg.JWT.PublicKeyPEM)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks internal consistency. It does not touch key files; key
// loading and parsing happen in the token codec during Build.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must exceed AccessTTL")
	}
	if c.JWT.Algorithm != "rs256" && c.JWT.Algorithm != "ed25519" {
		return errors.New("unsupported JWT Algorithm")
	}
	if len(c.JWT.PrivateKeyPEM) == 0 && c.JWT.PrivateKeyPath == "" {
		return errors.New("JWT private key material is required")
	}
	if len(c.JWT.PublicKeyPEM) == 0 && c.JWT.PublicKeyPath == "" {
		return errors.New("JWT public key material is required")
	}

	// Password
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.Cost < 0 {
		return errors.New("Password Cost must be >= 0")
	}

	// Lockout
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("Lockout Window must be > 0")
	}

	// Store
	if c.Store.OpTimeout <= 0 {
		return errors.New("Store OpTimeout must be > 0")
	}

	return nil
}
