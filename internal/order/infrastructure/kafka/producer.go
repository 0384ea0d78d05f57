package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Writer wraps a kafka-go writer configured for the order event topic.
type Writer struct {
	*kafka.Writer
}

// NewWriter builds a writer that waits for acks from all replicas, so an
// event reported as published is durable on the broker.
func NewWriter(brokers []string) *Writer {
	return &Writer{
		Writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (w *Writer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return w.Writer.WriteMessages(ctx, msgs...)
}
