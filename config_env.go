package trackauth

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type envConfig struct {
	AccessTTLMinutes       int    `env:"ACCESS_TTL_MINUTES" envDefault:"15"`
	RefreshTTLDays         int    `env:"REFRESH_TTL_DAYS" envDefault:"7"`
	SigningAlgorithm       string `env:"SIGNING_ALGORITHM" envDefault:"rs256"`
	PrivateKeyPath         string `env:"PRIVATE_KEY_PATH"`
	PublicKeyPath          string `env:"PUBLIC_KEY_PATH"`
	PasswordMinLength      int    `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
	PasswordComplexityRule bool   `env:"PASSWORD_COMPLEXITY_RULE" envDefault:"true"`
	LockoutThreshold       int    `env:"LOCKOUT_THRESHOLD" envDefault:"10"`
	LockoutWindowSeconds   int    `env:"LOCKOUT_WINDOW_SECONDS" envDefault:"900"`
	StoreBackendURL        string `env:"STORE_BACKEND_URL"`
}

// ConfigFromEnv builds a Config from environment variables, falling back to
// the same defaults as the Builder. The result still goes through Validate
// during Build.
func ConfigFromEnv() (Config, error) {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := defaultConfig()
	cfg.JWT.AccessTTL = time.Duration(e.AccessTTLMinutes) * time.Minute
	cfg.JWT.RefreshTTL = time.Duration(e.RefreshTTLDays) * 24 * time.Hour
	cfg.JWT.Algorithm = e.SigningAlgorithm
	cfg.JWT.PrivateKeyPath = e.PrivateKeyPath
	cfg.JWT.PublicKeyPath = e.PublicKeyPath
	cfg.Password.MinLength = e.PasswordMinLength
	cfg.Password.RequireClasses = e.PasswordComplexityRule
	cfg.Lockout.Threshold = e.LockoutThreshold
	cfg.Lockout.Window = time.Duration(e.LockoutWindowSeconds) * time.Second
	cfg.Store.BackendURL = e.StoreBackendURL

	return cfg, nil
}
