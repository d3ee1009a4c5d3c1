// Package app assembles adapters from configuration for the command
// entrypoints.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/courier-delay-etl/internal/adapter/postgres"
	"github.com/couchcryptid/courier-delay-etl/internal/adapter/rabbitmq"
	"github.com/couchcryptid/courier-delay-etl/internal/adapter/redis"
	"github.com/couchcryptid/courier-delay-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/courier-delay-etl/internal/adapter/weatherapi"
	"github.com/couchcryptid/courier-delay-etl/internal/config"
	"github.com/couchcryptid/courier-delay-etl/internal/domain"
	"github.com/couchcryptid/courier-delay-etl/internal/observability"
	"github.com/couchcryptid/courier-delay-etl/internal/pipeline"
)

// Resources opens shared connections on first use and closes them together.
type Resources struct {
	cfg     *config.Config
	metrics *observability.Metrics
	logger  *slog.Logger

	sqliteDB *sql.DB
	closers  []func() error
}

// New creates an empty Resources.
func New(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Resources {
	return &Resources{cfg: cfg, metrics: metrics, logger: logger}
}

// Close releases every opened connection in reverse order.
func (r *Resources) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	r.closers = nil
	r.sqliteDB = nil
	return errors.Join(errs...)
}

// SQLite opens the database at SQLITE_PATH once and reuses it.
func (r *Resources) SQLite(ctx context.Context) (*sql.DB, error) {
	if r.sqliteDB != nil {
		return r.sqliteDB, nil
	}
	db, err := sqlite.Open(ctx, r.cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	r.sqliteDB = db
	r.closers = append(r.closers, db.Close)
	return db, nil
}

// WeatherSource builds the weather chain: API client, then the configured
// persistent cache, then the in-memory LRU. It returns nil when weather is
// disabled.
func (r *Resources) WeatherSource(ctx context.Context) (domain.WeatherSource, error) {
	if !r.cfg.WeatherEnabled {
		r.metrics.WeatherEnabled.Set(0)
		r.logger.Info("weather enrichment disabled")
		return nil, nil
	}

	var src domain.WeatherSource = weatherapi.NewClient(
		r.cfg.WeatherAPIKey, r.cfg.WeatherBaseURL, r.cfg.WeatherTimeout, r.metrics, r.logger)

	switch r.cfg.WeatherCacheBackend {
	case config.CacheBackendRedis:
		client, err := redis.Connect(ctx, r.cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, client.Close)
		src = weatherapi.NewCachedSource(src, redis.NewWeatherStore(client, r.cfg.WeatherCacheTTL), "redis", r.metrics, r.logger)
	case config.CacheBackendSQLite:
		db, err := r.SQLite(ctx)
		if err != nil {
			return nil, err
		}
		src = weatherapi.NewCachedSource(src, sqlite.NewWeatherStore(db), "sqlite", r.metrics, r.logger)
	}

	if r.cfg.WeatherCacheSize > 0 {
		src = weatherapi.NewCachedSource(src, weatherapi.NewMemoryStore(r.cfg.WeatherCacheSize, r.cfg.WeatherCacheTTL), "memory", r.metrics, r.logger)
	}

	r.metrics.WeatherEnabled.Set(1)
	r.logger.Info("weather enrichment enabled",
		"location", r.cfg.WeatherLocation,
		"cache_backend", r.cfg.WeatherCacheBackend,
		"cache_size", r.cfg.WeatherCacheSize,
		"concurrency", r.cfg.WeatherConcurrency,
	)
	return src, nil
}

// Transformer builds the transform core with the configured weather chain and
// the default delay model.
func (r *Resources) Transformer(ctx context.Context) (*pipeline.DeliveryTransformer, error) {
	src, err := r.WeatherSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("weather source: %w", err)
	}
	weather := domain.NewWeatherEnricher(src, r.cfg.WeatherLocation, r.cfg.WeatherConcurrency,
		domain.RetryPolicy{MaxAttempts: r.cfg.WeatherRetryAttempts, Delay: r.cfg.WeatherRetryDelay}, r.logger)
	classifier := domain.NewClassifier(domain.DefaultCoefficients(), r.logger)
	return pipeline.NewTransformer(weather, classifier, r.logger), nil
}

// SQLiteSink returns a loader for the deliveries table.
func (r *Resources) SQLiteSink(ctx context.Context) (pipeline.NamedLoader, error) {
	db, err := r.SQLite(ctx)
	if err != nil {
		return pipeline.NamedLoader{}, err
	}
	return pipeline.NamedLoader{Name: "sqlite:" + r.cfg.SQLitePath, Loader: sqlite.NewDeliveryWriter(db)}, nil
}

// PostgresSink returns a loader for the warehouse table at POSTGRES_URL.
func (r *Resources) PostgresSink(ctx context.Context) (pipeline.NamedLoader, error) {
	if r.cfg.PostgresURL == "" {
		return pipeline.NamedLoader{}, errors.New("POSTGRES_URL is not set")
	}
	pool, err := postgres.Connect(ctx, r.cfg.PostgresURL)
	if err != nil {
		return pipeline.NamedLoader{}, err
	}
	r.closers = append(r.closers, func() error { pool.Close(); return nil })
	w, err := postgres.NewWriter(ctx, pool, r.logger)
	if err != nil {
		return pipeline.NamedLoader{}, err
	}
	return pipeline.NamedLoader{Name: "postgres", Loader: w}, nil
}

// OptionalSinks returns the database sinks switched on by configuration:
// SQLITE_SINK_ENABLED and a non-empty POSTGRES_URL.
func (r *Resources) OptionalSinks(ctx context.Context) (pipeline.MultiLoader, error) {
	var sinks pipeline.MultiLoader
	if r.cfg.SQLiteSinkEnabled {
		l, err := r.SQLiteSink(ctx)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, l)
	}
	if r.cfg.PostgresURL != "" {
		l, err := r.PostgresSink(ctx)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, l)
	}
	return sinks, nil
}

// Notifier connects to RABBITMQ_URL. It returns nil when no URL is set.
func (r *Resources) Notifier() (pipeline.Notifier, error) {
	if r.cfg.RabbitMQURL == "" {
		return nil, nil
	}
	p, err := rabbitmq.Dial(r.cfg.RabbitMQURL, r.cfg.RabbitMQExchange, r.logger)
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, p.Close)
	return p, nil
}
