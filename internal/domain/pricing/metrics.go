package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics counts engine transitions. Attach it with Engine.Subscribe.
type Metrics struct {
	transitions metric.Int64Counter
	applyFailed metric.Int64Counter
}

// NewMetrics registers the pricing instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	transitions, err := meter.Int64Counter("kart.pricing.transitions",
		metric.WithDescription("Cart and coupon state transitions"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "transitions counter")
	}
	applyFailed, err := meter.Int64Counter("kart.pricing.coupon_rejections",
		metric.WithDescription("Manual coupon entries rejected by reason"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "rejections counter")
	}
	return &Metrics{transitions: transitions, applyFailed: applyFailed}, nil
}

// Observe is a Listener recording every event of c.
func (m *Metrics) Observe(ctx context.Context, c Change) {
	for _, ev := range c.Events {
		m.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", string(ev.Kind)),
		))
	}
}

// Rejected records a failed manual apply.
func (m *Metrics) Rejected(ctx context.Context, res ApplyResult) {
	if res.Success || res.Reason == nil {
		return
	}
	m.applyFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", res.Reason.Error()),
	))
}
