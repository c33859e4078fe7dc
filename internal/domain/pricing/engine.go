package pricing

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

// ErrCorruptState is returned by a Persistence when stored data cannot be
// decoded. The engine discards such data and starts from an empty state.
var ErrCorruptState = errors.New("corrupt persisted state")

// Persistence stores the cart and coupon selection of one session. Absent
// data loads as the zero value with a nil error.
type Persistence interface {
	LoadCart(ctx context.Context) ([]cart.LineItem, error)
	SaveCart(ctx context.Context, items []cart.LineItem) error
	LoadSelection(ctx context.Context) (coupon.Selection, error)
	SaveSelection(ctx context.Context, s coupon.Selection) error
}

// Listener receives a Change after each operation that produced events.
type Listener func(ctx context.Context, c Change)

// Snapshot is the read-only view handed to order placement.
type Snapshot struct {
	Items      []cart.LineItem
	Totals     Totals
	CouponCode string
	CustomerID *int64
}

// Engine prices one shopping session. All methods are safe for concurrent
// use; each call runs to completion under the engine lock, including
// persistence, before listeners are notified.
type Engine struct {
	cfg     Config
	catalog *coupon.Catalog
	store   Persistence
	lg      *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	cart     *cart.Cart
	sel      coupon.Selection
	customer *int64
	// resolved is set once the stored selection was checked against a
	// loaded catalog.
	resolved bool

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(lg *zap.Logger) Option {
	return func(e *Engine) { e.lg = lg }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCustomerID sets the initial customer.
func WithCustomerID(id int64) Option {
	return func(e *Engine) { e.customer = &id }
}

// New creates an engine with an empty cart. Call Restore to load persisted
// state.
func New(cfg Config, catalog *coupon.Catalog, store Persistence, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		catalog:   catalog,
		store:     store,
		lg:        zap.NewNop(),
		now:       time.Now,
		cart:      cart.New(nil),
		listeners: map[int]Listener{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Subscribe registers l and returns a function removing it.
func (e *Engine) Subscribe(l Listener) (unsubscribe func()) {
	e.lmu.Lock()
	defer e.lmu.Unlock()

	id := e.nextID
	e.nextID++
	e.listeners[id] = l
	return func() {
		e.lmu.Lock()
		defer e.lmu.Unlock()
		delete(e.listeners, id)
	}
}

// Restore loads the persisted cart and selection. Corrupt data is logged,
// discarded and overwritten with the empty state; only storage failures are
// returned.
func (e *Engine) Restore(ctx context.Context) error {
	return e.run(ctx, func(o *op) error {
		items, err := e.store.LoadCart(ctx)
		switch {
		case errors.Is(err, ErrCorruptState):
			e.lg.Warn("Discarding corrupt stored cart", zap.Error(err))
			items = nil
			o.cartDirty = true
		case err != nil:
			return errors.Wrap(err, "load cart")
		}
		e.cart.Replace(items)

		sel, err := e.store.LoadSelection(ctx)
		switch {
		case errors.Is(err, ErrCorruptState):
			e.lg.Warn("Discarding corrupt stored coupon selection", zap.Error(err))
			sel = coupon.Selection{}
			o.selDirty = true
		case err != nil:
			return errors.Wrap(err, "load coupon selection")
		}
		e.sel = sel
		e.resolved = false
		o.baseline = &sel
		return nil
	})
}

// Refresh re-runs reconciliation and re-validation without a mutation.
// Sessions call it once the catalog finished loading.
func (e *Engine) Refresh(ctx context.Context) error {
	return e.run(ctx, func(*op) error { return nil })
}

// WatchCatalog blocks until the catalog is loaded and then refreshes the
// engine. It returns early when ctx is done.
func (e *Engine) WatchCatalog(ctx context.Context) error {
	select {
	case <-e.catalog.Loaded():
		return e.Refresh(ctx)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddItem adds quantity units of p to the cart.
func (e *Engine) AddItem(ctx context.Context, p cart.Product, quantity int) error {
	return e.run(ctx, func(o *op) error {
		if err := e.cart.Add(p, quantity); err != nil {
			return err
		}
		o.cartChanged()
		return nil
	})
}

// RemoveItem drops the line for productID. Removing an absent product is
// not an error.
func (e *Engine) RemoveItem(ctx context.Context, productID int64) error {
	return e.run(ctx, func(o *op) error {
		e.cart.Remove(productID)
		o.cartChanged()
		return nil
	})
}

// UpdateQuantity sets the quantity of productID; a non-positive quantity
// removes the line.
func (e *Engine) UpdateQuantity(ctx context.Context, productID int64, quantity int) error {
	return e.run(ctx, func(o *op) error {
		e.cart.UpdateQuantity(productID, quantity)
		o.cartChanged()
		return nil
	})
}

// Clear empties the cart and the coupon selection together.
func (e *Engine) Clear(ctx context.Context) error {
	return e.run(ctx, func(o *op) error {
		e.clearLocked(o)
		return nil
	})
}

func (e *Engine) clearLocked(o *op) {
	e.cart.Clear()
	if code := e.sel.AppliedCode(); code != "" {
		o.emit(Event{Kind: EventCleared, Code: code})
	}
	e.sel = coupon.Selection{}
	o.cartDirty = true
	o.emit(Event{Kind: EventCartChanged})
}

// SetCustomerID changes the customer the coupons are evaluated for. Nil
// means anonymous.
func (e *Engine) SetCustomerID(ctx context.Context, id *int64) error {
	return e.run(ctx, func(o *op) error {
		if sameCustomer(e.customer, id) {
			return nil
		}
		if id == nil {
			e.customer = nil
		} else {
			v := *id
			e.customer = &v
		}
		o.emit(Event{Kind: EventCustomerChanged})
		return nil
	})
}

// RemoveCoupon removes the applied coupon when code matches it and pauses
// automatic selection until the cart changes. It reports whether a coupon
// was removed.
func (e *Engine) RemoveCoupon(ctx context.Context, code string) (bool, error) {
	removed := false
	err := e.run(ctx, func(o *op) error {
		if e.sel.Applied == nil || !e.sel.Applied.Matches(code) {
			e.lg.Debug("Coupon not applied, nothing to remove", zap.String("code", code))
			return nil
		}
		o.emit(Event{Kind: EventRemoved, Code: e.sel.Applied.Code})
		e.sel = coupon.Selection{SuppressAutoApply: true}
		removed = true
		return nil
	})
	return removed, err
}

// Totals runs the pricing pipeline. An applied coupon that no longer
// passes its checks is dropped as a side effect.
func (e *Engine) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := e.run(ctx, func(o *op) error {
		o.capture = &t
		return nil
	})
	return t, err
}

// Checkout prices the cart and hands the snapshot to submit while holding
// the engine, so no other change can land between pricing and clearing. The
// cart and selection are cleared only when submit succeeds; its error is
// returned as is. An empty cart yields ErrEmptyCart without calling submit.
func (e *Engine) Checkout(ctx context.Context, submit func(Snapshot) error) error {
	var submitErr error
	err := e.run(ctx, func(o *op) error {
		if e.cart.Len() == 0 {
			submitErr = ErrEmptyCart
			return nil
		}

		// Reconcile before pricing so the snapshot matches the cart shown
		// to the user.
		e.resolveStored(o)
		e.reconcile(o)
		s := Snapshot{
			Items:      e.cart.Items(),
			Totals:     e.totalsLocked(o),
			CouponCode: e.sel.AppliedCode(),
			CustomerID: cloneID(e.customer),
		}
		if submitErr = submit(s); submitErr != nil {
			return nil
		}
		e.clearLocked(o)
		return nil
	})
	if submitErr != nil {
		return submitErr
	}
	return err
}

// Items returns the current line items.
func (e *Engine) Items() []cart.LineItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Items()
}

// Selection returns the current coupon selection.
func (e *Engine) Selection() coupon.Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSelection(e.sel)
}

// CustomerID returns the current customer or nil.
func (e *Engine) CustomerID() *int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneID(e.customer)
}

// IsCouponActive reports whether code is the applied coupon.
func (e *Engine) IsCouponActive(code string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel.Applied != nil && e.sel.Applied.Matches(code)
}

// op collects the effects of one locked operation.
type op struct {
	events    []Event
	cartDirty bool
	selDirty  bool
	capture   *Totals
	// baseline replaces the pre-operation selection when fn loaded a new one.
	baseline *coupon.Selection
}

func (o *op) emit(ev Event) {
	o.events = append(o.events, ev)
}

func (o *op) cartChanged() {
	o.cartDirty = true
	o.emit(Event{Kind: EventCartChanged})
}

// run executes fn under the engine lock, then reconciles the coupon
// selection, re-validates it through the pipeline, persists what changed and
// notifies listeners after unlocking.
func (e *Engine) run(ctx context.Context, fn func(o *op) error) error {
	o := &op{}

	e.mu.Lock()
	before := cloneSelection(e.sel)
	if err := fn(o); err != nil {
		e.mu.Unlock()
		return err
	}
	if o.baseline != nil {
		before = cloneSelection(*o.baseline)
	}
	if o.cartDirty && o.baseline == nil {
		e.sel.SuppressAutoApply = false
	}

	e.resolveStored(o)
	e.reconcile(o)
	totals := e.totalsLocked(o)
	if o.capture != nil {
		*o.capture = totals
	}

	if !sameSelection(before, e.sel) {
		o.selDirty = true
	}
	err := e.persist(ctx, o)

	var change Change
	if len(o.events) > 0 {
		change = Change{
			Events:    o.events,
			Items:     e.cart.Items(),
			Selection: cloneSelection(e.sel),
			Totals:    totals,
		}
	}
	e.mu.Unlock()

	if len(o.events) > 0 {
		e.notify(ctx, change)
	}
	return err
}

func (e *Engine) persist(ctx context.Context, o *op) error {
	if o.cartDirty {
		if err := e.store.SaveCart(ctx, e.cart.Items()); err != nil {
			return errors.Wrap(err, "save cart")
		}
	}
	if o.selDirty {
		if err := e.store.SaveSelection(ctx, cloneSelection(e.sel)); err != nil {
			return errors.Wrap(err, "save coupon selection")
		}
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, c Change) {
	e.lmu.Lock()
	ids := make([]int, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, e.listeners[id])
	}
	e.lmu.Unlock()

	for _, l := range ls {
		l(ctx, c)
	}
}

func sameCustomer(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameSelection(a, b coupon.Selection) bool {
	return a.AppliedCode() == b.AppliedCode() &&
		a.ManualOverride == b.ManualOverride &&
		a.SuppressAutoApply == b.SuppressAutoApply
}

func cloneSelection(s coupon.Selection) coupon.Selection {
	if s.Applied != nil {
		c := *s.Applied
		s.Applied = &c
	}
	return s
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
