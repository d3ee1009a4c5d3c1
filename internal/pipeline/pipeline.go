package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/courier-delay-etl/internal/domain"
	"github.com/couchcryptid/courier-delay-etl/internal/observability"
	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a batch of delivery records into classified rows.
type Transformer interface {
	Transform(ctx context.Context, records []domain.DeliveryRecord) (domain.TransformResult, error)
}

// BatchLoader writes enriched deliveries to a destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, rows []domain.EnrichedDelivery) error
}

// Pipeline orchestrates the streaming extract-transform-load loop.
type Pipeline struct {
	extractor        BatchExtractor
	transformer      Transformer
	loader           BatchLoader
	logger           *slog.Logger
	metrics          *observability.Metrics
	ready            atomic.Bool
	batchSize        int
	transformTimeout time.Duration
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int, transformTimeout time.Duration) *Pipeline {
	return &Pipeline{
		extractor:        e,
		transformer:      t,
		loader:           l,
		logger:           logger,
		metrics:          metrics,
		batchSize:        batchSize,
		transformTimeout: transformTimeout,
	}
}

// CheckReadiness returns nil if the pipeline has loaded at least one batch,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any messages yet")
	}
	return nil
}

// Run executes the batch ETL loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize, "transform_timeout", p.transformTimeout)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-transform-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.RecordsConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	loaded, ok := p.transformAndLoad(ctx, rawBatch, backoff, maxBackoff)
	if !ok {
		return false
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// transformAndLoad parses the batch, transforms the parsable records as one
// batch, loads the result, and commits offsets. Records that fail parsing or a
// transform precondition are skipped and committed. Returns the number of
// loaded rows and false if the pipeline should stop.
func (p *Pipeline) transformAndLoad(ctx context.Context, rawBatch []domain.RawEvent, backoff *time.Duration, maxBackoff time.Duration) (int, bool) {
	records := make([]domain.DeliveryRecord, 0, len(rawBatch))
	accepted := make([]domain.RawEvent, 0, len(rawBatch))

	for _, raw := range rawBatch {
		rec, err := domain.ParseRawEvent(raw)
		if err != nil {
			p.logger.Warn("parse failed, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		records = append(records, rec)
		accepted = append(accepted, raw)
	}

	result, records, accepted, err := p.transformDroppingInvalid(ctx, records, accepted)
	if err != nil {
		p.logger.Error("transform batch failed", "error", err, "batch_size", len(records))
		return 0, p.backoffOrStop(ctx, backoff, maxBackoff)
	}
	if len(records) == 0 {
		return 0, true
	}

	if err := p.loader.LoadBatch(ctx, result.Rows); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_size", len(result.Rows))
		return 0, p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	p.metrics.RecordsProduced.Add(float64(len(result.Rows)))
	p.metrics.DeliveriesByStatus.WithLabelValues(string(domain.StatusOnTime)).Add(float64(result.Summary.OnTime))
	p.metrics.DeliveriesByStatus.WithLabelValues(string(domain.StatusDelayed)).Add(float64(result.Summary.Delayed))
	p.metrics.RowsWithoutWeather.Add(float64(result.Summary.RowsWithoutWeather))

	for _, raw := range accepted {
		p.commitOffset(ctx, raw)
	}

	return len(result.Rows), true
}

// transformDroppingInvalid transforms records under the transform timeout.
// When a precondition names offending rows, those records are committed as
// rejected and the rest of the batch is transformed again. Rows are matched by
// batch position, so a redelivered duplicate of a rejected ID is kept. Every
// retry removes at least one record, so the loop ends.
func (p *Pipeline) transformDroppingInvalid(ctx context.Context, records []domain.DeliveryRecord, raws []domain.RawEvent) (domain.TransformResult, []domain.DeliveryRecord, []domain.RawEvent, error) {
	for len(records) > 0 {
		tctx, cancel := context.WithTimeout(ctx, p.transformTimeout)
		result, err := p.transformer.Transform(tctx, records)
		cancel()
		if err == nil {
			return result, records, raws, nil
		}

		var perr *domain.PreconditionError
		if !errors.As(err, &perr) || len(perr.Rows) == 0 {
			return domain.TransformResult{}, records, raws, err
		}

		rejected := make(map[int]struct{}, len(perr.Rows))
		for _, row := range perr.Rows {
			rejected[row] = struct{}{}
		}
		p.logger.Warn("transform precondition failed, skipping deliveries",
			"rule", perr.Rule, "delivery_ids", perr.DeliveryIDs)

		keptRecords := records[:0:0]
		keptRaws := raws[:0:0]
		for i, rec := range records {
			if _, bad := rejected[i]; bad {
				p.logger.Debug("rejected delivery", "delivery_id", rec.ID,
					"topic", raws[i].Topic, "partition", raws[i].Partition, "offset", raws[i].Offset)
				p.metrics.TransformErrors.Inc()
				p.commitOffset(ctx, raws[i])
				continue
			}
			keptRecords = append(keptRecords, rec)
			keptRaws = append(keptRaws, raws[i])
		}
		if len(keptRecords) == len(records) {
			return domain.TransformResult{}, records, raws, err
		}
		records, raws = keptRecords, keptRaws
	}
	return domain.TransformResult{}, nil, nil, nil
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sharedretry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = sharedretry.NextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}
