// Package postgres loads enriched deliveries into a PostgreSQL warehouse table.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/courier-delay-etl/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTable = `
CREATE TABLE IF NOT EXISTS deliveries (
	delivery_id                  TEXT PRIMARY KEY,
	pickup_datetime              TIMESTAMPTZ NOT NULL,
	delivery_timestamp           TIMESTAMPTZ NOT NULL,
	package_type                 TEXT NOT NULL,
	distance                     DOUBLE PRECISION NOT NULL,
	delivery_zone                TEXT NOT NULL,
	hour                         SMALLINT NOT NULL,
	weekday                      TEXT NOT NULL,
	day_type                     TEXT NOT NULL,
	weather_condition            TEXT,
	actual_delivery_time_minutes DOUBLE PRECISION NOT NULL,
	actual_delivery_time_display TEXT NOT NULL,
	theoretical_time_minutes     DOUBLE PRECISION NOT NULL,
	status                       TEXT NOT NULL,
	loaded_at                    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertDelivery = `
INSERT INTO deliveries (
	delivery_id, pickup_datetime, delivery_timestamp, package_type, distance,
	delivery_zone, hour, weekday, day_type, weather_condition,
	actual_delivery_time_minutes, actual_delivery_time_display,
	theoretical_time_minutes, status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (delivery_id) DO UPDATE SET
	pickup_datetime = EXCLUDED.pickup_datetime,
	delivery_timestamp = EXCLUDED.delivery_timestamp,
	package_type = EXCLUDED.package_type,
	distance = EXCLUDED.distance,
	delivery_zone = EXCLUDED.delivery_zone,
	hour = EXCLUDED.hour,
	weekday = EXCLUDED.weekday,
	day_type = EXCLUDED.day_type,
	weather_condition = EXCLUDED.weather_condition,
	actual_delivery_time_minutes = EXCLUDED.actual_delivery_time_minutes,
	actual_delivery_time_display = EXCLUDED.actual_delivery_time_display,
	theoretical_time_minutes = EXCLUDED.theoretical_time_minutes,
	status = EXCLUDED.status,
	loaded_at = now()`

// Connect opens a pool and verifies the server is reachable.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Writer upserts enriched deliveries keyed by delivery ID.
// It implements pipeline.BatchLoader.
type Writer struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewWriter creates a Writer and ensures the deliveries table exists.
func NewWriter(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (*Writer, error) {
	if _, err := pool.Exec(ctx, createTable); err != nil {
		return nil, fmt.Errorf("create deliveries table: %w", err)
	}
	return &Writer{pool: pool, logger: logger}, nil
}

// LoadBatch sends all upserts in one pgx batch inside a transaction.
func (w *Writer) LoadBatch(ctx context.Context, rows []domain.EnrichedDelivery) error {
	if len(rows) == 0 {
		return nil
	}

	err := pgx.BeginFunc(ctx, w.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range rows {
			batch.Queue(upsertDelivery, rowArgs(r)...)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("upsert %d deliveries: %w", len(rows), err)
	}
	w.logger.Debug("upserted deliveries", "rows", len(rows))
	return nil
}

// rowArgs returns the upsert parameters in column order.
func rowArgs(r domain.EnrichedDelivery) []any {
	return []any{
		r.ID,
		r.PickupTime,
		r.DeliveryTime,
		r.PackageType,
		r.DistanceKm,
		r.Zone,
		int16(r.Hour),
		r.Weekday,
		r.DayType,
		r.WeatherCondition,
		r.ActualDeliveryMinutes,
		r.ActualDeliveryDisplay,
		r.TheoreticalMinutes,
		string(r.Status),
	}
}
