package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-pricing/internal/domain/order"
)

// --- Mock implementations ---

type mockWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	w := &mockWriter{}
	p := NewPublisher(w)
	created := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, p.Publish(context.Background(), &order.Order{
		ID:         "order-1",
		FinalTotal: decimal.RequireFromString("410"),
		CreatedAt:  created,
	}))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "order-1", string(msg.Key))
	assert.Equal(t, created, msg.Time)
	assert.Contains(t, string(msg.Value), `"final_total":"410.00"`)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublisher_Error(t *testing.T) {
	p := NewPublisher(&mockWriter{err: errors.New("leader not available")})

	err := p.Publish(context.Background(), &order.Order{ID: "order-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `publish order "order-1"`)
}

func TestNewWriter(t *testing.T) {
	w := NewWriter([]string{"localhost:9092"}, "orders")
	assert.Equal(t, "orders", w.Topic)
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
}
