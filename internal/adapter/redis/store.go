package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/courier-delay-etl/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// WeatherStore is a shared weather cache backed by Redis. Entries expire
// after ttl. It implements weatherapi.Store.
type WeatherStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// Connect opens a Redis client and verifies the connection.
func Connect(ctx context.Context, addr string) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return client, nil
}

// NewWeatherStore creates a WeatherStore on an open client.
func NewWeatherStore(client *goredis.Client, ttl time.Duration) *WeatherStore {
	return &WeatherStore{client: client, ttl: ttl}
}

func (s *WeatherStore) Get(ctx context.Context, key string) ([]domain.HourlyCondition, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var conditions []domain.HourlyCondition
	if err := json.Unmarshal(data, &conditions); err != nil {
		return nil, false, fmt.Errorf("decode cached weather %s: %w", key, err)
	}
	return conditions, true, nil
}

func (s *WeatherStore) Put(ctx context.Context, key string, conditions []domain.HourlyCondition) error {
	data, err := json.Marshal(conditions)
	if err != nil {
		return fmt.Errorf("encode weather %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
