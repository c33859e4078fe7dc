// Package session keeps one pricing engine per shopping session.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/storage"
)

// ErrInvalidID is returned for session ids that are not UUIDs.
var ErrInvalidID = errors.New("invalid session id")

// Store hands out the key/value view of a session.
type Store interface {
	Session(id string) storage.KV
}

// Config configures a Manager.
type Config struct {
	Pricing pricing.Config
	// IdleTimeout evicts engines unused for this long. Zero keeps them.
	IdleTimeout time.Duration
	// Location is used for zone-less coupon expiry dates in stored state.
	Location *time.Location
}

type entry struct {
	engine   *pricing.Engine
	lastUsed time.Time
	// refs counts requests holding the engine; held engines are not evicted.
	refs   int
	cancel context.CancelFunc
}

// Manager creates, restores and evicts engines.
type Manager struct {
	cfg       Config
	catalog   *coupon.Catalog
	store     Store
	lg        *zap.Logger
	listeners []pricing.Listener
	now       func() time.Time

	base  context.Context
	group singleflight.Group

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewManager returns a Manager. listeners are subscribed to every engine.
func NewManager(cfg Config, catalog *coupon.Catalog, store Store, lg *zap.Logger, listeners ...pricing.Listener) *Manager {
	if lg == nil {
		lg = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Manager{
		cfg:       cfg,
		catalog:   catalog,
		store:     store,
		lg:        lg,
		listeners: listeners,
		now:       time.Now,
		base:      context.Background(),
		sessions:  map[string]*entry{},
	}
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.New().String()
}

// ValidID reports whether id looks like a session id.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Acquire returns the engine of session id, restoring it from the store on
// first use. The engine is not evicted until release is called.
func (m *Manager) Acquire(ctx context.Context, id string) (e *pricing.Engine, release func(), err error) {
	if !ValidID(id) {
		return nil, nil, ErrInvalidID
	}
	if ent, ok := m.acquire(id); ok {
		return ent.engine, m.releaser(ent), nil
	}

	// Waiters share the restore, so it must not end with the first caller's
	// request.
	restoreCtx := context.WithoutCancel(ctx)
	_, err, _ = m.group.Do(id, func() (any, error) {
		m.mu.Lock()
		_, ok := m.sessions[id]
		m.mu.Unlock()
		if ok {
			return nil, nil
		}
		return nil, m.open(restoreCtx, id)
	})
	if err != nil {
		return nil, nil, err
	}

	ent, ok := m.acquire(id)
	if !ok {
		// Evicted between open and acquire.
		return m.Acquire(ctx, id)
	}
	return ent.engine, m.releaser(ent), nil
}

func (m *Manager) acquire(id string) (*entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	ent.refs++
	ent.lastUsed = m.now()
	return ent, true
}

func (m *Manager) releaser(ent *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			ent.refs--
			ent.lastUsed = m.now()
		})
	}
}

func (m *Manager) open(ctx context.Context, id string) error {
	lg := m.lg.With(zap.String("session", id))
	persist := storage.NewSession(m.store.Session(id), m.cfg.Location, lg)
	e := pricing.New(m.cfg.Pricing, m.catalog, persist, pricing.WithLogger(lg))
	for _, l := range m.listeners {
		e.Subscribe(l)
	}
	if err := e.Restore(ctx); err != nil {
		return errors.Wrapf(err, "restore session %q", id)
	}

	watchCtx, cancel := context.WithCancel(m.base)
	if !m.catalog.IsLoaded() {
		go func() {
			if err := e.WatchCatalog(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Warn("Refresh after catalog load failed", zap.Error(err))
			}
		}()
	}

	m.mu.Lock()
	m.sessions[id] = &entry{engine: e, lastUsed: m.now(), cancel: cancel}
	m.mu.Unlock()

	lg.Debug("Session opened", zap.Int("items", len(e.Items())))
	return nil
}

// Len returns the number of live engines.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Evict drops engines idle since before the timeout and returns how many
// were dropped. Engines held by a request are kept. Their state stays in the
// store.
func (m *Manager) Evict() int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, ent := range m.sessions {
		if ent.refs == 0 && ent.lastUsed.Before(cutoff) {
			ent.cancel()
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Run evicts idle engines periodically until ctx is done, then releases
// all engines.
func (m *Manager) Run(ctx context.Context) error {
	interval := m.cfg.IdleTimeout / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return nil
		case <-ticker.C:
			if n := m.Evict(); n > 0 {
				m.lg.Debug("Evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ent := range m.sessions {
		ent.cancel()
		delete(m.sessions, id)
	}
}
