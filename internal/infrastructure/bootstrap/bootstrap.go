// Package bootstrap wires the shared clients every binary starts from:
// configuration, logging, tracing, PostgreSQL and the optional Redis and
// Typesense connections.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/adapters/cache"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/adapters/search"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/providers"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/clients/postgres"
	redisclient "github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/clients/redis"
	tsclient "github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/clients/typesense"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/observability"
	"github.com/machikuchikomi/kuchikomi-cho/backend/pkg/config"
	"github.com/machikuchikomi/kuchikomi-cho/backend/pkg/secrets"
)

// Options selects which optional backends a binary wants
type Options struct {
	Service string
	// BatchLogging sends logs to stderr so a tool's stdout report stays clean
	BatchLogging  bool
	WithRedis     bool
	WithTypesense bool
}

// Env holds the opened clients. Redis and Typesense are nil when they are not
// configured or not reachable.
type Env struct {
	Config    *config.Config
	Postgres  *postgres.Client
	Redis     *redisclient.Client
	Typesense *tsclient.Client
	Metrics   *observability.Metrics

	closers []func() error
}

// Open loads configuration and connects. Failing to reach PostgreSQL is a
// setup error; the optional backends only log a warning.
func Open(ctx context.Context, opts Options) (*Env, error) {
	vault, err := secrets.LoadIntoEnv(ctx, secrets.VaultConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("failed to load secrets from vault: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.BatchLogging {
		observability.InitLoggerTo(os.Stderr, opts.Service, cfg.App.Env)
	} else {
		observability.InitLogger(opts.Service, cfg.App.Env)
	}

	if vault.Loaded > 0 || vault.Skipped > 0 {
		log.Info().Int("loaded", vault.Loaded).Int("skipped", vault.Skipped).Msg("applied vault secrets")
	}

	env := &Env{Config: cfg}

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, opts.Service, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			env.closers = append(env.closers, func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return shutdown(ctx)
			})
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	env.Metrics = metrics

	if err := cfg.ValidateDatabase(); err != nil {
		env.Close()
		return nil, err
	}
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Postgres = pgClient
	env.closers = append(env.closers, pgClient.Close)

	if opts.WithRedis && cfg.Redis.Enabled() {
		redisClient, err := redisclient.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, continuing without cache")
		} else {
			env.Redis = redisClient
			env.closers = append(env.closers, redisClient.Close)
		}
	}

	if opts.WithTypesense && cfg.Typesense.Enabled() {
		tsClient, err := tsclient.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable, continuing without search index")
		} else if err := tsClient.InitSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to init Typesense schema, continuing without search index")
		} else {
			env.Typesense = tsClient
		}
	}

	return env, nil
}

// Cache returns a Redis-backed cache namespaced by prefix, or nil without Redis
func (e *Env) Cache(prefix string) providers.CacheProvider {
	if e.Redis == nil {
		return nil
	}
	return cache.NewRedisAdapter(e.Redis, prefix)
}

// SearchRepo returns the facility index, or nil without Typesense
func (e *Env) SearchRepo() repositories.FacilitySearchRepository {
	if e.Typesense == nil {
		return nil
	}
	return search.NewTypesenseAdapter(e.Typesense)
}

// Close releases every opened client in reverse order
func (e *Env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			log.Warn().Err(err).Msg("error during shutdown")
		}
	}
	e.closers = nil
}

// Interrupted reports whether err comes from the operator stopping the run.
// Batch tools treat that as a clean exit once they have printed their progress.
func Interrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
