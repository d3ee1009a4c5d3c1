package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/courier-delay-etl/internal/domain"
)

// DeliveryTransformer implements Transformer by running the domain stages in
// their fixed order: temporal, weather, duration, classification.
type DeliveryTransformer struct {
	weather    *domain.WeatherEnricher
	classifier *domain.Classifier
	logger     *slog.Logger
}

// NewTransformer creates a DeliveryTransformer. Pass a nil weather enricher to
// run without weather data.
func NewTransformer(weather *domain.WeatherEnricher, classifier *domain.Classifier, logger *slog.Logger) *DeliveryTransformer {
	if weather == nil {
		weather = domain.NewWeatherEnricher(nil, "", 0, domain.RetryPolicy{}, logger)
	}
	return &DeliveryTransformer{
		weather:    weather,
		classifier: classifier,
		logger:     logger,
	}
}

// Transform enriches and classifies a batch. An empty batch is returned as is
// without running any stage. Only precondition violations and context expiry
// are returned as errors; in both cases no rows are returned.
func (t *DeliveryTransformer) Transform(ctx context.Context, records []domain.DeliveryRecord) (domain.TransformResult, error) {
	if len(records) == 0 {
		return domain.TransformResult{Rows: []domain.EnrichedDelivery{}}, nil
	}

	batch := domain.NewBatch(records)
	if err := domain.CheckRequiredFields(batch); err != nil {
		return domain.TransformResult{}, fmt.Errorf("required fields: %w", err)
	}

	batch, err := domain.AddTemporalFeatures(batch)
	if err != nil {
		return domain.TransformResult{}, fmt.Errorf("temporal features: %w", err)
	}

	batch, coverage, err := t.weather.Enrich(ctx, batch)
	if err != nil {
		return domain.TransformResult{}, err
	}

	batch, err = domain.AddDeliveryDurations(batch)
	if err != nil {
		return domain.TransformResult{}, fmt.Errorf("delivery durations: %w", err)
	}

	batch, stats := t.classifier.ClassifyBatch(batch)

	summary := domain.Summary{
		Rows:                  len(batch),
		OnTime:                stats.OnTime,
		Delayed:               stats.Delayed,
		WeatherDatesRequested: coverage.DatesRequested,
		WeatherDatesFailed:    coverage.DatesFailed,
		RowsWithoutWeather:    coverage.RowsWithoutWeather,
	}
	if len(stats.UnknownPackageTypes) > 0 {
		summary.UnknownPackageTypes = stats.UnknownPackageTypes
	}
	if len(stats.UnknownZones) > 0 {
		summary.UnknownZones = stats.UnknownZones
	}

	t.logger.Debug("batch transformed",
		"rows", summary.Rows,
		"on_time", summary.OnTime,
		"delayed", summary.Delayed,
		"rows_without_weather", summary.RowsWithoutWeather,
	)
	return domain.TransformResult{Rows: batch, Summary: summary}, nil
}
