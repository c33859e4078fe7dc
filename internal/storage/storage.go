// Package storage persists pricing sessions on top of a byte key/value
// store.
package storage

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
)

// Keys under which a session stores its state.
const (
	CartKey      = "shopping_cart"
	SelectionKey = "applied_coupons_data"
)

// KV is a session-scoped byte store. Get reports ok=false for absent keys.
// Deleting an absent key is not an error.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

var _ pricing.Persistence = (*Session)(nil)

// Session implements pricing.Persistence over a KV.
type Session struct {
	kv  KV
	loc *time.Location
	lg  *zap.Logger
}

// NewSession wraps kv. loc is used for zone-less coupon expiry dates.
func NewSession(kv KV, loc *time.Location, lg *zap.Logger) *Session {
	if loc == nil {
		loc = time.UTC
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Session{kv: kv, loc: loc, lg: lg}
}

// LoadCart decodes the stored items. Entries without a product id or with a
// non-positive quantity are dropped.
func (s *Session) LoadCart(ctx context.Context) ([]cart.LineItem, error) {
	data, ok, err := s.kv.Get(ctx, CartKey)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if !ok || len(data) == 0 {
		return nil, nil
	}

	items, dropped, err := cart.Decode(data)
	if err != nil {
		return nil, errors.Wrap(pricing.ErrCorruptState, err.Error())
	}
	if dropped > 0 {
		s.lg.Warn("Dropped invalid stored cart items", zap.Int("dropped", dropped))
	}
	return items, nil
}

// SaveCart stores items. An empty cart removes the key.
func (s *Session) SaveCart(ctx context.Context, items []cart.LineItem) error {
	if len(items) == 0 {
		if err := s.kv.Delete(ctx, CartKey); err != nil {
			return errors.Wrap(err, "delete cart")
		}
		return nil
	}
	if err := s.kv.Set(ctx, CartKey, cart.Encode(items)); err != nil {
		return errors.Wrap(err, "set cart")
	}
	return nil
}

// LoadSelection decodes the stored coupon selection.
func (s *Session) LoadSelection(ctx context.Context) (coupon.Selection, error) {
	data, ok, err := s.kv.Get(ctx, SelectionKey)
	if err != nil {
		return coupon.Selection{}, errors.Wrap(err, "get selection")
	}
	if !ok || len(data) == 0 {
		return coupon.Selection{}, nil
	}

	sel, err := coupon.DecodeSelection(data, s.loc)
	if err != nil {
		return coupon.Selection{}, errors.Wrap(pricing.ErrCorruptState, err.Error())
	}
	return sel, nil
}

// SaveSelection stores sel. The zero selection removes the key.
func (s *Session) SaveSelection(ctx context.Context, sel coupon.Selection) error {
	if sel.IsZero() {
		if err := s.kv.Delete(ctx, SelectionKey); err != nil {
			return errors.Wrap(err, "delete selection")
		}
		return nil
	}
	if err := s.kv.Set(ctx, SelectionKey, coupon.EncodeSelection(sel)); err != nil {
		return errors.Wrap(err, "set selection")
	}
	return nil
}
