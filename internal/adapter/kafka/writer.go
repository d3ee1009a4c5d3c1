package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/courier-delay-etl/internal/config"
	"github.com/couchcryptid/courier-delay-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces enriched deliveries to the sink topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch publishes every row in a single WriteMessages call. Messages are
// keyed by delivery ID so updates to one delivery stay on one partition.
func (w *Writer) LoadBatch(ctx context.Context, rows []domain.EnrichedDelivery) error {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := serializeToMessage(rows[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages: %w", len(msgs), err)
	}
	w.logger.Debug("produced batch", "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(row domain.EnrichedDelivery) (kafkago.Message, error) {
	ev, err := domain.SerializeDelivery(row)
	if err != nil {
		return kafkago.Message{}, err
	}
	headers := make([]kafkago.Header, 0, len(ev.Headers))
	for _, k := range []string{"status", "zone"} {
		if v, ok := ev.Headers[k]; ok {
			headers = append(headers, kafkago.Header{Key: k, Value: []byte(v)})
		}
	}
	return kafkago.Message{Key: ev.Key, Value: ev.Value, Headers: headers}, nil
}
