package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Mock Presenter
type recordingPresenter struct {
	mu         sync.Mutex
	advisories []string
	views      []domain.View
}

func (p *recordingPresenter) Advise(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advisories = append(p.advisories, message)
}

func (p *recordingPresenter) Navigate(view domain.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.views = append(p.views, view)
}

func (p *recordingPresenter) last() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.advisories) == 0 {
		return ""
	}
	return p.advisories[len(p.advisories)-1]
}

func (p *recordingPresenter) lastView() domain.View {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.views) == 0 {
		return ""
	}
	return p.views[len(p.views)-1]
}

// Mock OrderStore
type mockOrderStore struct {
	mu     sync.Mutex
	orders []domain.Order
	calls  int
	err    error
}

func (m *mockOrderStore) CreateOrder(ctx context.Context, order domain.Order) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return "", m.err
	}
	order.ID = fmt.Sprintf("order-%d", len(m.orders)+1)
	m.orders = append(m.orders, order)
	return order.ID, nil
}

func (m *mockOrderStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, port.ErrNotFound
}

func (m *mockOrderStore) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Order
	for i := len(m.orders) - 1; i >= 0; i-- {
		if m.orders[i].UserID == userID {
			out = append(out, m.orders[i])
		}
	}
	return out, nil
}

func (m *mockOrderStore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Mock IdentityProvider
type mockIdentity struct {
	mu         sync.Mutex
	users      map[string]string
	tokens     map[string]*domain.Principal
	anonErr    error
	endErr     error
	nextID     int
	endedCalls int
}

func newMockIdentity() *mockIdentity {
	return &mockIdentity{
		users:  make(map[string]string),
		tokens: make(map[string]*domain.Principal),
	}
}

func (m *mockIdentity) issue(kind domain.PrincipalKind, email string) *domain.Principal {
	m.nextID++
	p := &domain.Principal{
		ID:    fmt.Sprintf("uid-%d", m.nextID),
		Kind:  kind,
		Email: email,
		Token: fmt.Sprintf("token-%d", m.nextID),
	}
	m.tokens[p.Token] = p
	return p
}

func (m *mockIdentity) CreateAnonymousSession(ctx context.Context) (*domain.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.anonErr != nil {
		return nil, m.anonErr
	}
	return m.issue(domain.PrincipalAnonymous, ""), nil
}

func (m *mockIdentity) CreateSession(ctx context.Context, email, password string) (*domain.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pw, ok := m.users[email]; !ok || pw != password {
		return nil, port.ErrInvalidCredentials
	}
	return m.issue(domain.PrincipalCredentialed, email), nil
}

func (m *mockIdentity) RegisterPrincipal(ctx context.Context, email, password string) (*domain.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[email]; ok {
		return nil, port.ErrEmailInUse
	}
	m.users[email] = password
	return m.issue(domain.PrincipalCredentialed, email), nil
}

func (m *mockIdentity) ResumeSession(ctx context.Context, token string) (*domain.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.tokens[token]
	if !ok {
		return nil, port.ErrSessionExpired
	}
	return p, nil
}

func (m *mockIdentity) EndSession(ctx context.Context, principal *domain.Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endedCalls++
	if m.endErr != nil {
		return m.endErr
	}
	delete(m.tokens, principal.Token)
	return nil
}

// Mock CatalogStore. Snapshots are pushed by the test through events.
type mockCatalogStore struct {
	mu           sync.Mutex
	events       chan port.ProductSnapshot
	subscribeErr error
	stored       []domain.Product
	listErr      error
	listCalls    int
	created      []domain.Product
	unsubscribed bool
}

func newMockCatalogStore() *mockCatalogStore {
	return &mockCatalogStore{events: make(chan port.ProductSnapshot)}
}

func (m *mockCatalogStore) SubscribeProducts(ctx context.Context) (<-chan port.ProductSnapshot, func(), error) {
	if m.subscribeErr != nil {
		return nil, nil, m.subscribeErr
	}
	return m.events, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.unsubscribed = true
	}, nil
}

func (m *mockCatalogStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.Product, len(m.stored))
	copy(out, m.stored)
	return out, nil
}

func (m *mockCatalogStore) CreateProduct(ctx context.Context, p domain.Product) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = fmt.Sprintf("prod-%d", len(m.created)+1)
	m.created = append(m.created, p)
	return p.ID, nil
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
	released       int
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{idempotencySet: make(map[string]bool)}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	m.released++
	return nil
}
