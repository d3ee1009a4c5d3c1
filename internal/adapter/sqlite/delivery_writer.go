package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/courier-delay-etl/internal/domain"
)

// DeliveryWriter upserts enriched deliveries into the deliveries table.
// It implements pipeline.BatchLoader.
type DeliveryWriter struct {
	db *sql.DB
}

// NewDeliveryWriter creates a DeliveryWriter on an open database.
func NewDeliveryWriter(db *sql.DB) *DeliveryWriter {
	return &DeliveryWriter{db: db}
}

// LoadBatch writes all rows in one transaction. A delivery ID already present
// is replaced.
func (w *DeliveryWriter) LoadBatch(ctx context.Context, rows []domain.EnrichedDelivery) error {
	if w.db == nil {
		return errors.New("sqlite delivery writer: db is nil")
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert deliveries: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO deliveries (
		delivery_id, pickup_datetime, delivery_timestamp, package_type, distance,
		delivery_zone, hour, weekday, day_type, weather_condition,
		actual_delivery_time_minutes, actual_delivery_time_display,
		theoretical_time_minutes, status
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("insert deliveries: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx,
			r.ID,
			r.PickupTime.Format(time.RFC3339),
			r.DeliveryTime.Format(time.RFC3339),
			r.PackageType,
			r.DistanceKm,
			r.Zone,
			r.Hour,
			r.Weekday,
			r.DayType,
			r.WeatherCondition,
			r.ActualDeliveryMinutes,
			r.ActualDeliveryDisplay,
			r.TheoreticalMinutes,
			string(r.Status),
		)
		if err != nil {
			return fmt.Errorf("insert delivery %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert deliveries: commit: %w", err)
	}
	return nil
}

// CountByStatus returns the number of stored deliveries per status.
func (w *DeliveryWriter) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := w.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM deliveries GROUP BY status;`)
	if err != nil {
		return nil, fmt.Errorf("count deliveries: %w", err)
	}
	defer rows.Close()

	out := map[domain.Status]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("count deliveries: scan: %w", err)
		}
		out[domain.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count deliveries: row iteration: %w", err)
	}
	return out, nil
}
