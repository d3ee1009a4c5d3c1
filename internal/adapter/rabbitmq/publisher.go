// Package rabbitmq announces completed runs by publishing their manifests to
// a topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/courier-delay-etl/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RoutingKey is used for every manifest message.
const RoutingKey = "courier.run.completed"

// Publisher sends run manifests with publisher confirms enabled.
// It implements pipeline.Notifier.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	acks     <-chan amqp.Confirmation
	logger   *slog.Logger

	mu sync.Mutex // one publish awaits its confirm at a time
}

// Dial connects to the broker, enables confirms and declares a durable topic
// exchange.
func Dial(url, exchange string, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &Publisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		acks:     ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
		logger:   logger,
	}, nil
}

// PublishManifest publishes m and waits for the broker to acknowledge it.
func (p *Publisher) PublishManifest(ctx context.Context, m domain.Manifest) error {
	msg, err := manifestMessage(m)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx, p.exchange, RoutingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish manifest %s: %w", m.RunID, err)
	}

	select {
	case conf, ok := <-p.acks:
		if !ok {
			return errors.New("publish manifest: channel closed before confirm")
		}
		if !conf.Ack {
			return fmt.Errorf("publish manifest %s: broker nack", m.RunID)
		}
		p.logger.Info("manifest published", "run_id", m.RunID, "exchange", p.exchange)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	return errors.Join(p.ch.Close(), p.conn.Close())
}

func manifestMessage(m domain.Manifest) (amqp.Publishing, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal manifest: %w", err)
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    m.RunID,
		Timestamp:    m.RunTimestamp,
		Headers: amqp.Table{
			"rows":    int64(m.Shape.Rows),
			"delayed": int64(m.Summary.Delayed),
		},
		Body: body,
	}, nil
}
