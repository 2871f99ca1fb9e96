package trackauth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/trackauth/password"
	"github.com/MrEthical07/trackauth/store"
	"github.com/MrEthical07/trackauth/token"
)

// Builder assembles an Engine. Each Builder builds at most once.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	store    store.Store
	provider PrincipalProvider
	logger   *slog.Logger

	built bool
}

// New returns a Builder preloaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis injects an existing Redis client as the session store backend.
// Takes precedence over Store.BackendURL.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore injects a ready store implementation, bypassing backend
// selection entirely. Intended for tests and custom backends.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithPrincipalProvider injects the host application's user storage bridge.
func (b *Builder) WithPrincipalProvider(p PrincipalProvider) *Builder {
	b.provider = p
	return b
}

// WithLogger injects a structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the admission latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, loads key material, selects the store
// backend, and returns a ready Engine.
//
// Backend selection: an explicit WithStore wins, then an injected Redis
// client, then a dial of Store.BackendURL. If the configured backend is
// unreachable the engine falls back to the in-memory store with a logged
// warning; the fallback decision is made once, here, never at request time.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.provider == nil {
		return nil, errors.New("principal provider required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	codec, err := token.NewCodec(token.Config{
		Algorithm:      cfg.JWT.Algorithm,
		PrivateKeyPEM:  cloneBytes(cfg.JWT.PrivateKeyPEM),
		PublicKeyPEM:   cloneBytes(cfg.JWT.PublicKeyPEM),
		PrivateKeyPath: cfg.JWT.PrivateKeyPath,
		PublicKeyPath:  cfg.JWT.PublicKeyPath,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		MinLength:      cfg.Password.MinLength,
		RequireClasses: cfg.Password.RequireClasses,
		Cost:           cfg.Password.Cost,
	})
	if err != nil {
		return nil, err
	}

	st := b.store
	if st == nil && b.redis != nil {
		st = store.NewRedis(b.redis)
	}
	if st == nil && cfg.Store.BackendURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		client, err := store.Dial(ctx, cfg.Store.BackendURL)
		cancel()
		if err != nil {
			logger.Warn("store backend unreachable, falling back to in-memory store; "+
				"revocation and lockout state will be process-local",
				"url", cfg.Store.BackendURL, "error", err)
		} else {
			st = store.NewRedis(client)
		}
	}
	if st == nil {
		st = store.NewMemory()
	}

	engine := &Engine{
		config:   cfg,
		provider: b.provider,
		codec:    codec,
		hasher:   hasher,
		store:    st,
		metrics:  NewMetrics(cfg.Metrics),
		logger:   logger,
		now:      time.Now,
	}

	b.built = true
	return engine, nil
}
