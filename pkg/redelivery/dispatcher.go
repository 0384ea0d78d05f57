package redelivery

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic}
}

func (d *Dispatcher) Dispatch(ctx context.Context, p Pending) error {
	msg := kafka.Message{
		Topic: d.topic,
		Key:   []byte(p.EventID),
		Value: p.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(p.Type)},
		},
	}
	if err := d.producer.WriteMessages(ctx, msg); err != nil {
		d.log.Error("redelivery dispatch failed", "event_id", p.EventID, "retry_count", p.RetryCount, "err", err)
		return err
	}
	d.log.Info("event redelivered", "event_id", p.EventID, "type", p.Type)
	return nil
}
