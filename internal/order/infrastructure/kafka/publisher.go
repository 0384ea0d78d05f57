package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/Exponent1/devops-order-system/internal/order/domain"
	"github.com/Exponent1/devops-order-system/pkg/redelivery"
	"github.com/Exponent1/devops-order-system/pkg/tracing"
)

// Spool receives events whose direct publish failed.
type Spool interface {
	Enqueue(ctx context.Context, ev domain.Event) error
}

// Publisher writes domain events to the broker, keyed by event id so
// consumers can de-duplicate redeliveries. A failed write is spooled rather
// than surfaced: once the order row exists the event must eventually go out,
// never unwind the order.
type Publisher struct {
	log    *slog.Logger
	writer redelivery.Producer
	topic  string
	spool  Spool
}

func NewPublisher(log *slog.Logger, writer redelivery.Producer, topic string, spool Spool) *Publisher {
	return &Publisher{log: log, writer: writer, topic: topic, spool: spool}
}

func (p *Publisher) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(ev.Type)},
	}
	headers = tracing.InjectKafkaHeaders(ctx, headers)

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(ev.EventID),
		Value:   payload,
		Headers: headers,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("publish failed, spooling for redelivery", "event_id", ev.EventID, "type", ev.Type, "err", err)
		if qerr := p.spool.Enqueue(ctx, ev); qerr != nil {
			return fmt.Errorf("publish: %v; spool: %w", err, qerr)
		}
		return nil
	}

	p.log.Info("event published", "event_id", ev.EventID, "type", ev.Type, "order_id", ev.OrderID)
	return nil
}
