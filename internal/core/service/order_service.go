package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var (
	ErrEmptyCart   = errors.New("cart is empty")
	ErrNotSignedIn = errors.New("not signed in")
)

type OrderState string

const (
	OrderStateIdle       OrderState = "idle"
	OrderStateSubmitting OrderState = "submitting"
	OrderStateConfirmed  OrderState = "confirmed"
	OrderStateFailed     OrderState = "failed"
)

// PrincipalSource reports the principal that will own new orders.
type PrincipalSource interface {
	Principal() *domain.Principal
}

type OrderOption func(*OrderService)

// WithClock overrides the wall clock used to stamp orders.
func WithClock(now func() time.Time) OrderOption {
	return func(s *OrderService) { s.now = now }
}

// WithStateObserver registers fn to see every state transition.
func WithStateObserver(fn func(OrderState)) OrderOption {
	return func(s *OrderService) { s.observe = fn }
}

// OrderService turns the session's cart into an order with a single store
// write. There is no idempotency key and no submission lock: a retry after
// a failure that was really a late success creates a second order.
type OrderService struct {
	orders    port.OrderStore
	cart      *CartService
	session   PrincipalSource
	presenter port.Presenter
	logger    *slog.Logger
	now       func() time.Time
	observe   func(OrderState)

	mu    sync.Mutex
	state OrderState
	last  *domain.Order
}

func NewOrderService(orders port.OrderStore, cart *CartService, session PrincipalSource, presenter port.Presenter, logger *slog.Logger, opts ...OrderOption) *OrderService {
	if presenter == nil {
		presenter = port.NopPresenter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &OrderService{
		orders:    orders,
		cart:      cart,
		session:   session,
		presenter: presenter,
		logger:    logger,
		now:       time.Now,
		state:     OrderStateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder submits the current cart. On success the cart is emptied and
// the stored order is returned; on failure the cart is left as it was.
func (s *OrderService) PlaceOrder(ctx context.Context) (*domain.Order, error) {
	cart := s.cart.Cart()
	if cart.IsEmpty() {
		s.presenter.Advise(msgEmptyCart)
		return nil, ErrEmptyCart
	}

	principal := s.session.Principal()
	if principal == nil {
		s.presenter.Advise(msgLoginToOrder)
		return nil, ErrNotSignedIn
	}

	s.setState(OrderStateSubmitting)

	order := domain.NewOrder(*principal, cart, s.now())
	id, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		s.setState(OrderStateFailed)
		s.logger.Error("failed to place order", "user_id", principal.ID, "error", err)
		s.presenter.Advise(msgOrderFailed)
		s.setState(OrderStateIdle)
		return nil, fmt.Errorf("create order: %w", err)
	}
	order.ID = id

	s.cart.Clear()

	s.mu.Lock()
	s.last = &order
	s.mu.Unlock()
	s.setState(OrderStateConfirmed)

	s.logger.Info("order placed", "order_id", id, "user_id", principal.ID, "total", order.Total.String())
	s.presenter.Advise(msgOrderPlaced(id))
	s.presenter.Navigate(domain.ViewOrderConfirmation)

	return &order, nil
}

func (s *OrderService) State() OrderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastOrder returns the most recently confirmed order of this session.
func (s *OrderService) LastOrder() (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return domain.Order{}, false
	}
	return *s.last, true
}

// Order returns an order owned by the signed-in principal.
func (s *OrderService) Order(ctx context.Context, id string) (*domain.Order, error) {
	principal := s.session.Principal()
	if principal == nil {
		return nil, ErrNotSignedIn
	}

	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != principal.ID {
		return nil, port.ErrNotFound
	}
	return order, nil
}

// History lists the signed-in principal's orders, newest first.
func (s *OrderService) History(ctx context.Context) ([]domain.Order, error) {
	principal := s.session.Principal()
	if principal == nil {
		return nil, ErrNotSignedIn
	}
	return s.orders.ListOrders(ctx, principal.ID)
}

func (s *OrderService) setState(state OrderState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	if s.observe != nil {
		s.observe(state)
	}
}
