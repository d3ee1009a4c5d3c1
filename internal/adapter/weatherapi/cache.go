package weatherapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/courier-delay-etl/internal/domain"
	"github.com/couchcryptid/courier-delay-etl/internal/observability"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store persists hourly conditions by key. Implementations live in the
// memory, redis and sqlite adapters.
type Store interface {
	Get(ctx context.Context, key string) ([]domain.HourlyCondition, bool, error)
	Put(ctx context.Context, key string, conditions []domain.HourlyCondition) error
}

// CachedSource wraps a WeatherSource with a Store. Store failures are logged
// and the inner source is used instead.
type CachedSource struct {
	inner   domain.WeatherSource
	store   Store
	tier    string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCachedSource creates a cache decorator around a weather source. tier
// labels the cache metrics.
func NewCachedSource(inner domain.WeatherSource, store Store, tier string, metrics *observability.Metrics, logger *slog.Logger) *CachedSource {
	return &CachedSource{
		inner:   inner,
		store:   store,
		tier:    tier,
		metrics: metrics,
		logger:  logger,
	}
}

// CacheKey identifies one location and date.
func CacheKey(location, date string) string {
	return "weather:" + location + "|" + date
}

func (c *CachedSource) HourlyConditions(ctx context.Context, location, date string) ([]domain.HourlyCondition, error) {
	key := CacheKey(location, date)
	conditions, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("weather cache read failed", "tier", c.tier, "key", key, "error", err)
	}
	if ok {
		c.metrics.WeatherCache.WithLabelValues(c.tier, "hit").Inc()
		return conditions, nil
	}
	c.metrics.WeatherCache.WithLabelValues(c.tier, "miss").Inc()

	conditions, err = c.inner.HourlyConditions(ctx, location, date)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so a day the API has no data for yet can be retried.
	if len(conditions) > 0 {
		if err := c.store.Put(ctx, key, conditions); err != nil {
			c.logger.Warn("weather cache write failed", "tier", c.tier, "key", key, "error", err)
		}
	}
	return conditions, nil
}

// MemoryStore is a thread-safe in-memory LRU Store whose entries expire
// after a TTL.
type MemoryStore struct {
	lru *expirable.LRU[string, []domain.HourlyCondition]
}

// NewMemoryStore creates a MemoryStore holding at most maxEntries dates for
// ttl each. A non-positive ttl keeps entries until they are evicted.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{lru: expirable.NewLRU[string, []domain.HourlyCondition](maxEntries, nil, ttl)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]domain.HourlyCondition, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, conditions []domain.HourlyCondition) error {
	m.lru.Add(key, conditions)
	return nil
}

// Len reports the number of cached dates.
func (m *MemoryStore) Len() int {
	return m.lru.Len()
}
