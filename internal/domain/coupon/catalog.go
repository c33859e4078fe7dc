package coupon

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// Catalog caches the coupon list fetched from a Source. The list is loaded
// at most once; the loaded gate is raised whether the fetch succeeded or
// not, and a failed fetch leaves the catalog empty.
type Catalog struct {
	lg *zap.Logger

	once   sync.Once
	loaded chan struct{}

	mu      sync.RWMutex
	coupons []Coupon
	byCode  map[string]int
	loadErr error
}

// NewCatalog returns an unloaded catalog.
func NewCatalog(lg *zap.Logger) *Catalog {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Catalog{
		lg:     lg,
		loaded: make(chan struct{}),
		byCode: map[string]int{},
	}
}

// Load fetches the catalog from src. Only the first call fetches; later
// calls return the first call's error.
func (c *Catalog) Load(ctx context.Context, src Source) error {
	c.once.Do(func() {
		defer close(c.loaded)

		coupons, err := src.FetchAll(ctx)
		if err != nil {
			c.lg.Warn("Coupon catalog load failed, continuing without coupons", zap.Error(err))
			c.mu.Lock()
			c.loadErr = errors.Wrap(err, "fetch coupons")
			c.mu.Unlock()
			return
		}
		c.set(coupons)
		c.lg.Info("Coupon catalog loaded", zap.Int("coupons", len(c.coupons)))
	})

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadErr
}

func (c *Catalog) set(coupons []Coupon) {
	byCode := make(map[string]int, len(coupons))
	kept := make([]Coupon, 0, len(coupons))
	for _, cp := range coupons {
		key := normalizeCode(cp.Code)
		if key == "" {
			c.lg.Warn("Skipping coupon without code", zap.Int64("coupon_id", cp.ID))
			continue
		}
		if _, dup := byCode[key]; dup {
			c.lg.Warn("Skipping duplicate coupon code", zap.String("code", cp.Code))
			continue
		}
		byCode[key] = len(kept)
		kept = append(kept, cp)
	}

	c.mu.Lock()
	c.coupons = kept
	c.byCode = byCode
	c.mu.Unlock()
}

// Loaded returns a channel closed once the first load attempt finished.
func (c *Catalog) Loaded() <-chan struct{} {
	return c.loaded
}

// IsLoaded reports whether the loaded gate has been raised.
func (c *Catalog) IsLoaded() bool {
	select {
	case <-c.loaded:
		return true
	default:
		return false
	}
}

// Wait blocks until the catalog is loaded or ctx is done.
func (c *Catalog) Wait(ctx context.Context) error {
	select {
	case <-c.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Find looks up a coupon by code, ignoring case and surrounding spaces.
func (c *Catalog) Find(code string) (Coupon, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.byCode[normalizeCode(code)]
	if !ok {
		return Coupon{}, false
	}
	return c.coupons[i], true
}

// All returns the coupons in catalog order.
func (c *Catalog) All() []Coupon {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.coupons)
}

// Len returns the number of cached coupons.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.coupons)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
