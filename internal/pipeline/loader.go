package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/courier-delay-etl/internal/domain"
)

// NamedLoader pairs a BatchLoader with the output name recorded in manifests.
type NamedLoader struct {
	Name   string
	Loader BatchLoader
}

// MultiLoader writes every batch to each loader in order and stops at the
// first failure.
type MultiLoader []NamedLoader

// LoadBatch implements BatchLoader.
func (m MultiLoader) LoadBatch(ctx context.Context, rows []domain.EnrichedDelivery) error {
	for _, l := range m {
		if err := l.Loader.LoadBatch(ctx, rows); err != nil {
			return fmt.Errorf("load %s: %w", l.Name, err)
		}
	}
	return nil
}

// Names lists the loader names in order.
func (m MultiLoader) Names() []string {
	names := make([]string, len(m))
	for i, l := range m {
		names[i] = l.Name
	}
	return names
}

// PreviewLoader logs the first rows of each batch instead of persisting them.
type PreviewLoader struct {
	logger *slog.Logger
	rows   int
}

// NewPreviewLoader creates a PreviewLoader that logs up to rows rows per batch.
func NewPreviewLoader(logger *slog.Logger, rows int) *PreviewLoader {
	return &PreviewLoader{logger: logger, rows: rows}
}

// LoadBatch implements BatchLoader.
func (p *PreviewLoader) LoadBatch(_ context.Context, rows []domain.EnrichedDelivery) error {
	n := min(p.rows, len(rows))
	for _, row := range rows[:n] {
		p.logger.Info("preview",
			"delivery_id", row.ID,
			"pickup", row.PickupTime,
			"package_type", row.PackageType,
			"zone", row.Zone,
			"distance_km", row.DistanceKm,
			"weather", row.WeatherConditionOrEmpty(),
			"actual_minutes", row.ActualDeliveryMinutes,
			"theoretical_minutes", row.TheoreticalMinutes,
			"status", row.Status,
		)
	}
	p.logger.Info("preview complete", "shown", n, "total", len(rows))
	return nil
}
