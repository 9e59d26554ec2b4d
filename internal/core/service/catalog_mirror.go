package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const seedGuardKey = "seed:products"

// CatalogMirror keeps a read-only copy of the product collection. Every
// snapshot from the store replaces the copy wholesale.
type CatalogMirror struct {
	store     port.CatalogStore
	guard     port.CacheRepository
	presenter port.Presenter
	logger    *slog.Logger

	mu       sync.RWMutex
	products []domain.Product

	ready     chan struct{}
	readyOnce sync.Once

	started   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewCatalogMirror creates a mirror over store. guard may be nil when only
// one process ever seeds the store.
func NewCatalogMirror(store port.CatalogStore, guard port.CacheRepository, presenter port.Presenter, logger *slog.Logger) *CatalogMirror {
	if presenter == nil {
		presenter = port.NopPresenter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogMirror{
		store:     store,
		guard:     guard,
		presenter: presenter,
		logger:    logger,
		ready:     make(chan struct{}),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start subscribes to the store and applies snapshots in the background
// until Close is called.
func (m *CatalogMirror) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return errors.New("catalog mirror already started")
	}
	ctx, cancel := context.WithCancel(ctx)

	events, unsubscribe, err := m.store.SubscribeProducts(ctx)
	if err != nil {
		cancel()
		close(m.done)
		m.reportError(err)
		return fmt.Errorf("subscribe products: %w", err)
	}

	go func() {
		defer close(m.done)
		defer cancel()
		defer unsubscribe()

		for {
			select {
			case <-m.stop:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				m.apply(ctx, ev)
			}
		}
	}()

	return nil
}

// Close unsubscribes. A snapshot already received is applied before Close
// returns; nothing is applied afterwards.
func (m *CatalogMirror) Close() {
	m.closeOnce.Do(func() { close(m.stop) })
	if !m.started.Load() {
		return
	}
	<-m.done
}

// Ready is closed once the first snapshot has been applied.
func (m *CatalogMirror) Ready() <-chan struct{} {
	return m.ready
}

// Products returns a copy of the current snapshot.
func (m *CatalogMirror) Products() []domain.Product {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Product, len(m.products))
	copy(out, m.products)
	return out
}

func (m *CatalogMirror) Product(id string) (domain.Product, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (m *CatalogMirror) apply(ctx context.Context, ev port.ProductSnapshot) {
	if ev.Err != nil {
		m.reportError(ev.Err)
		return
	}

	products := make([]domain.Product, len(ev.Products))
	copy(products, ev.Products)

	m.mu.Lock()
	m.products = products
	m.mu.Unlock()
	m.readyOnce.Do(func() { close(m.ready) })
	if sp, ok := m.presenter.(port.CatalogStatusPresenter); ok {
		sp.CatalogLoaded()
	}

	m.logger.Debug("catalog snapshot applied", "products", len(products))

	if len(products) == 0 {
		m.seed(ctx)
	}
}

func (m *CatalogMirror) reportError(err error) {
	m.logger.Error("failed to load products", "error", err)
	if errors.Is(err, port.ErrPermissionDenied) {
		m.presenter.Advise(msgCatalogDenied)
		return
	}
	m.presenter.Advise(msgCatalogUnavailable)
}

// seed writes the demo products if the store is still empty. The mirrored
// snapshot may be stale, so emptiness is checked against the store.
func (m *CatalogMirror) seed(ctx context.Context) {
	if m.guard != nil {
		ok, err := m.guard.SetIdempotency(ctx, seedGuardKey)
		if err != nil {
			m.logger.Error("seed guard failed", "error", err)
			return
		}
		if !ok {
			m.logger.Info("catalog seeding already in progress elsewhere")
			return
		}
		defer func() {
			if err := m.guard.ReleaseIdempotency(context.WithoutCancel(ctx), seedGuardKey); err != nil {
				m.logger.Warn("failed to release seed guard", "error", err)
			}
		}()
	}

	existing, err := m.store.ListProducts(ctx)
	if err != nil {
		m.logger.Error("failed to check catalog before seeding", "error", err)
		return
	}
	if len(existing) > 0 {
		return
	}

	if err := SeedCatalog(ctx, m.store); err != nil {
		m.logger.Error("failed to seed catalog", "error", err)
		return
	}
	m.logger.Info("demo products added to catalog")
}

// SeedCatalog inserts the demo products unconditionally.
func SeedCatalog(ctx context.Context, store port.CatalogStore) error {
	for _, p := range domain.DemoProducts() {
		if _, err := store.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("create product %q: %w", p.Name, err)
		}
	}
	return nil
}
