package pricing

import (
	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

// EventKind names a state transition of an engine.
type EventKind string

const (
	EventCartChanged     EventKind = "cart_changed"
	EventCustomerChanged EventKind = "customer_changed"
	// EventAutoApplied: the engine picked the best eligible coupon.
	EventAutoApplied EventKind = "auto_applied"
	// EventManualApplied: a user-entered code became the applied coupon.
	EventManualApplied EventKind = "manual_applied"
	// EventRemoved: the user removed the applied coupon.
	EventRemoved EventKind = "removed"
	// EventCleared: the applied coupon was dropped because the cart emptied
	// or no coupon is eligible any more.
	EventCleared EventKind = "cleared"
	// EventInvalidated: the applied or overriding coupon failed its checks.
	EventInvalidated EventKind = "invalidated"
)

// Event is a single transition. Code names the coupon involved, if any, and
// Reason holds the failed check for EventInvalidated.
type Event struct {
	Kind   EventKind
	Code   string
	Reason error
}

// Change is delivered to listeners after an operation. Items, Selection and
// Totals describe the state after the operation.
type Change struct {
	Events    []Event
	Items     []cart.LineItem
	Selection coupon.Selection
	Totals    Totals
}

// Has reports whether the change contains an event of kind k.
func (c Change) Has(k EventKind) bool {
	for _, ev := range c.Events {
		if ev.Kind == k {
			return true
		}
	}
	return false
}
