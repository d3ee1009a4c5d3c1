package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/courier-delay-etl/internal/domain"
	"github.com/couchcryptid/courier-delay-etl/internal/observability"
)

// Extractor produces every record for a one-shot run.
type Extractor interface {
	Extract(ctx context.Context) ([]domain.DeliveryRecord, error)
	// Describe names the source for the run manifest.
	Describe() string
}

// ManifestWriter persists the manifest of a completed run.
type ManifestWriter interface {
	WriteManifest(ctx context.Context, m domain.Manifest) error
}

// Notifier announces a completed run. Failures are logged and do not fail the run.
type Notifier interface {
	PublishManifest(ctx context.Context, m domain.Manifest) error
}

// Runner executes a single extract-transform-load pass and records its manifest.
type Runner struct {
	extractor        Extractor
	transformer      Transformer
	loaders          MultiLoader
	manifests        ManifestWriter
	notifier         Notifier
	weatherLocation  string
	transformTimeout time.Duration
	logger           *slog.Logger
	metrics          *observability.Metrics
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithManifestWriter persists the run manifest.
func WithManifestWriter(w ManifestWriter) RunnerOption {
	return func(r *Runner) { r.manifests = w }
}

// WithNotifier publishes the run manifest after it is written.
func WithNotifier(n Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// WithWeatherLocation records the weather location in the manifest.
func WithWeatherLocation(location string) RunnerOption {
	return func(r *Runner) { r.weatherLocation = location }
}

// WithTransformTimeout bounds the transform stage. Zero means no limit.
func WithTransformTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.transformTimeout = d }
}

// NewRunner creates a Runner.
func NewRunner(e Extractor, t Transformer, loaders MultiLoader, logger *slog.Logger, metrics *observability.Metrics, opts ...RunnerOption) *Runner {
	r := &Runner{
		extractor:   e,
		transformer: t,
		loaders:     loaders,
		logger:      logger,
		metrics:     metrics,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run extracts, transforms and loads once, then writes and publishes the
// manifest. A transform failure aborts the run before anything is loaded.
func (r *Runner) Run(ctx context.Context) (domain.Manifest, error) {
	started := domain.Clock().Now()
	r.logger.Info("run started", "source", r.extractor.Describe(), "outputs", r.loaders.Names())

	records, err := r.extractor.Extract(ctx)
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("extract: %w", err)
	}
	r.metrics.RecordsConsumed.Add(float64(len(records)))
	r.metrics.BatchSize.Observe(float64(len(records)))

	tctx := ctx
	if r.transformTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, r.transformTimeout)
		defer cancel()
	}
	result, err := r.transformer.Transform(tctx, records)
	if err != nil {
		r.metrics.TransformErrors.Inc()
		return domain.Manifest{}, fmt.Errorf("transform: %w", err)
	}

	if err := r.loaders.LoadBatch(ctx, result.Rows); err != nil {
		return domain.Manifest{}, err
	}
	r.metrics.RecordsProduced.Add(float64(len(result.Rows)))
	r.metrics.DeliveriesByStatus.WithLabelValues(string(domain.StatusOnTime)).Add(float64(result.Summary.OnTime))
	r.metrics.DeliveriesByStatus.WithLabelValues(string(domain.StatusDelayed)).Add(float64(result.Summary.Delayed))
	r.metrics.RowsWithoutWeather.Add(float64(result.Summary.RowsWithoutWeather))

	manifest := domain.NewManifest(r.extractor.Describe(), r.loaders.Names(), r.weatherLocation, result.Summary, started)
	r.metrics.BatchProcessingDuration.Observe(manifest.ElapsedSeconds)

	if r.manifests != nil {
		if err := r.manifests.WriteManifest(ctx, manifest); err != nil {
			return manifest, fmt.Errorf("write manifest: %w", err)
		}
	}
	if r.notifier != nil {
		if err := r.notifier.PublishManifest(ctx, manifest); err != nil {
			r.logger.Warn("publish manifest failed", "run_id", manifest.RunID, "error", err)
		}
	}

	r.logger.Info("run complete",
		"run_id", manifest.RunID,
		"rows", manifest.Shape.Rows,
		"on_time", result.Summary.OnTime,
		"delayed", result.Summary.Delayed,
		"rows_without_weather", result.Summary.RowsWithoutWeather,
		"weather_dates_failed", result.Summary.WeatherDatesFailed,
		"elapsed_seconds", manifest.ElapsedSeconds,
	)
	return manifest, nil
}
