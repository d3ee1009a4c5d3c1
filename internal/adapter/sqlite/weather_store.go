package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/courier-delay-etl/internal/domain"
)

// WeatherStore caches hourly conditions in the weather_cache table across
// runs. It implements weatherapi.Store.
type WeatherStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewWeatherStore creates a WeatherStore on an open database.
func NewWeatherStore(db *sql.DB) *WeatherStore {
	return &WeatherStore{db: db, now: func() time.Time { return domain.Clock().Now() }}
}

func (s *WeatherStore) Get(ctx context.Context, key string) ([]domain.HourlyCondition, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT conditions FROM weather_cache WHERE cache_key = ?;`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get weather cache %s: %w", key, err)
	}

	var conditions []domain.HourlyCondition
	if err := json.Unmarshal([]byte(raw), &conditions); err != nil {
		return nil, false, fmt.Errorf("get weather cache %s: decode: %w", key, err)
	}
	return conditions, true, nil
}

func (s *WeatherStore) Put(ctx context.Context, key string, conditions []domain.HourlyCondition) error {
	data, err := json.Marshal(conditions)
	if err != nil {
		return fmt.Errorf("put weather cache %s: encode: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO weather_cache (cache_key, conditions, fetched_at)
	VALUES (?, ?, ?);`, key, string(data), s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("put weather cache %s: %w", key, err)
	}
	return nil
}
