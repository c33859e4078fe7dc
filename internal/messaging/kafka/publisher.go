// Package kafka publishes submitted orders to a Kafka topic.
package kafka

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/kart-pricing/internal/domain/order"
)

// Writer is the subset of *kafka.Writer used by Publisher.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ order.Publisher = (*Publisher)(nil)

// Publisher writes one message per order, keyed by order id.
type Publisher struct {
	w Writer
}

// NewWriter returns a writer for topic hashing keys across partitions.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// NewPublisher wraps w.
func NewPublisher(w Writer) *Publisher {
	return &Publisher{w: w}
}

// Publish sends the JSON order summary.
func (p *Publisher) Publish(ctx context.Context, o *order.Order) error {
	msg := kafka.Message{
		Key:   []byte(o.ID),
		Value: order.Marshal(o),
		Time:  o.CreatedAt,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish order %q", o.ID)
	}
	return nil
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.w.Close()
}
