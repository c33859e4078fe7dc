package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/storage"
	"github.com/xenking/kart-pricing/internal/storage/memory"
)

// --- Mock implementations ---

// ctxStore fails every call made with a done context.
type ctxStore struct{}

func (ctxStore) Session(string) storage.KV { return ctxKV{} }

type ctxKV struct{}

func (ctxKV) Get(ctx context.Context, _ string) ([]byte, bool, error) {
	return nil, false, ctx.Err()
}

func (ctxKV) Set(ctx context.Context, _ string, _ []byte) error {
	return ctx.Err()
}

func (ctxKV) Delete(ctx context.Context, _ string) error {
	return ctx.Err()
}

var save10 = coupon.Coupon{
	Code:          "SAVE10",
	DiscountType:  coupon.DiscountPercentage,
	DiscountValue: decimal.NewFromInt(10),
	Visibility:    coupon.VisibilityPublic,
}

func newTestManager(t *testing.T, catalog *coupon.Catalog, store *memory.Store, idle time.Duration) *Manager {
	t.Helper()
	return NewManager(Config{Pricing: pricing.DefaultConfig(), IdleTimeout: idle}, catalog, store, zaptest.NewLogger(t))
}

func loadedCatalog(t *testing.T) *coupon.Catalog {
	t.Helper()
	c := coupon.NewCatalog(zaptest.NewLogger(t))
	require.NoError(t, c.Load(context.Background(), coupon.Static(save10)))
	return c
}

func TestManager_GetInvalidID(t *testing.T) {
	m := newTestManager(t, loadedCatalog(t), memory.NewStore(), 0)

	_, _, err := m.Acquire(context.Background(), "../etc/passwd")
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestManager_SameEngine(t *testing.T) {
	m := newTestManager(t, loadedCatalog(t), memory.NewStore(), 0)
	id := NewID()

	var (
		wg      sync.WaitGroup
		engines [8]*pricing.Engine
	)
	for i := range engines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, release, err := m.Acquire(context.Background(), id)
			if !assert.NoError(t, err) {
				return
			}
			defer release()
			engines[i] = e
		}()
	}
	wg.Wait()

	for _, e := range engines {
		assert.Same(t, engines[0], e)
	}
	assert.Equal(t, 1, m.Len())
}

func TestManager_EvictAndRestore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := newTestManager(t, loadedCatalog(t), store, time.Minute)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	id := NewID()
	e, release, err := m.Acquire(ctx, id)
	require.NoError(t, err)
	require.NoError(t, e.AddItem(ctx, cart.Product{ID: 1, SpecialPrice: "200.00"}, 2))
	release()

	now = now.Add(30 * time.Second)
	assert.Zero(t, m.Evict())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, m.Evict())
	assert.Zero(t, m.Len())

	restored, release, err := m.Acquire(ctx, id)
	require.NoError(t, err)
	defer release()
	assert.NotSame(t, e, restored)
	require.Len(t, restored.Items(), 1)
	assert.Equal(t, "SAVE10", restored.Selection().AppliedCode())
}

func TestManager_HeldEngineNotEvicted(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, loadedCatalog(t), memory.NewStore(), time.Minute)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	id := NewID()
	e, release, err := m.Acquire(ctx, id)
	require.NoError(t, err)

	// A slow request keeps the engine past the idle timeout.
	now = now.Add(5 * time.Minute)
	assert.Zero(t, m.Evict())

	again, releaseAgain, err := m.Acquire(ctx, id)
	require.NoError(t, err)
	assert.Same(t, e, again)
	releaseAgain()

	release()
	release()
	assert.Zero(t, m.Evict(), "release refreshes last use")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, m.Evict())
}

func TestManager_RestoreIgnoresCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewManager(Config{Pricing: pricing.DefaultConfig()}, loadedCatalog(t), ctxStore{}, zaptest.NewLogger(t))
	e, release, err := m.Acquire(ctx, NewID())
	require.NoError(t, err)
	defer release()
	assert.Empty(t, e.Items())
}

func TestManager_RefreshesAfterCatalogLoad(t *testing.T) {
	ctx := context.Background()
	catalog := coupon.NewCatalog(zaptest.NewLogger(t))
	m := newTestManager(t, catalog, memory.NewStore(), 0)

	e, release, err := m.Acquire(ctx, NewID())
	require.NoError(t, err)
	defer release()
	require.NoError(t, e.AddItem(ctx, cart.Product{ID: 1, SpecialPrice: "200.00"}, 2))
	assert.Nil(t, e.Selection().Applied)

	applied := make(chan struct{})
	var once sync.Once
	e.Subscribe(func(_ context.Context, c pricing.Change) {
		if c.Has(pricing.EventAutoApplied) {
			once.Do(func() { close(applied) })
		}
	})

	require.NoError(t, catalog.Load(ctx, coupon.Static(save10)))

	select {
	case <-applied:
	case <-time.After(time.Second):
		t.Fatal("engine not refreshed after catalog load")
	}
	assert.Equal(t, "SAVE10", e.Selection().AppliedCode())
}

func TestManager_Listeners(t *testing.T) {
	ctx := context.Background()
	var (
		mu    sync.Mutex
		kinds []pricing.EventKind
	)
	m := NewManager(Config{Pricing: pricing.DefaultConfig()}, loadedCatalog(t), memory.NewStore(), zaptest.NewLogger(t),
		func(_ context.Context, c pricing.Change) {
			mu.Lock()
			defer mu.Unlock()
			for _, ev := range c.Events {
				kinds = append(kinds, ev.Kind)
			}
		},
	)

	e, release, err := m.Acquire(ctx, NewID())
	require.NoError(t, err)
	defer release()
	require.NoError(t, e.AddItem(ctx, cart.Product{ID: 1, SpecialPrice: "50"}, 1))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []pricing.EventKind{pricing.EventCartChanged, pricing.EventAutoApplied}, kinds)
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	m := newTestManager(t, loadedCatalog(t), memory.NewStore(), time.Millisecond)
	_, release, err := m.Acquire(context.Background(), NewID())
	require.NoError(t, err)
	release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Zero(t, m.Len())
}
