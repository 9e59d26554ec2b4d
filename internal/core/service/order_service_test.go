package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/core/domain"
)

type staticSession struct {
	principal *domain.Principal
}

func (s staticSession) Principal() *domain.Principal { return s.principal }

var anonymous = &domain.Principal{ID: "user-1", Kind: domain.PrincipalAnonymous}

func newOrderFixture(principal *domain.Principal, opts ...OrderOption) (*OrderService, *CartService, *mockOrderStore, *recordingPresenter) {
	presenter := &recordingPresenter{}
	store := &mockOrderStore{}
	cart := NewCartService(presenter)
	svc := NewOrderService(store, cart, staticSession{principal}, presenter, discardLogger(), opts...)
	return svc, cart, store, presenter
}

func TestPlaceOrder_Success(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	var states []OrderState
	svc, cart, store, presenter := newOrderFixture(anonymous,
		WithClock(func() time.Time { return now }),
		WithStateObserver(func(s OrderState) { states = append(states, s) }),
	)
	require.NoError(t, cart.AddItem(testProduct("p1", "One", "10.00"), 2))
	require.NoError(t, cart.AddItem(testProduct("p2", "Two", "5.00"), 1))
	before := cart.Total()

	order, err := svc.PlaceOrder(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "order-1", order.ID)
	assert.Equal(t, "user-1", order.UserID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.True(t, order.Total.Equal(before), "total %s, want %s", order.Total, before)
	assert.Equal(t, now, order.CreatedAt)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, 2, order.Lines[0].Quantity)

	assert.True(t, cart.Cart().IsEmpty())
	assert.Equal(t, OrderStateConfirmed, svc.State())
	assert.Equal(t, []OrderState{OrderStateSubmitting, OrderStateConfirmed}, states)
	assert.Equal(t, 1, store.callCount())
	assert.Equal(t, "Order placed successfully! Order ID: order-1", presenter.last())
	assert.Equal(t, domain.ViewOrderConfirmation, presenter.lastView())

	last, ok := svc.LastOrder()
	require.True(t, ok)
	assert.Equal(t, "order-1", last.ID)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	svc, _, store, presenter := newOrderFixture(anonymous)

	_, err := svc.PlaceOrder(context.Background())

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, 0, store.callCount())
	assert.Equal(t, OrderStateIdle, svc.State())
	assert.Equal(t, "Your cart is empty!", presenter.last())
}

func TestPlaceOrder_EmptyCartWithoutPrincipal(t *testing.T) {
	svc, _, store, presenter := newOrderFixture(nil)

	_, err := svc.PlaceOrder(context.Background())

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, 0, store.callCount())
	assert.Equal(t, OrderStateIdle, svc.State())
	assert.Equal(t, "Your cart is empty!", presenter.last())
}

func TestPlaceOrder_NotSignedIn(t *testing.T) {
	svc, cart, store, presenter := newOrderFixture(nil)
	require.NoError(t, cart.AddItem(testProduct("p1", "One", "10.00"), 1))

	_, err := svc.PlaceOrder(context.Background())

	assert.ErrorIs(t, err, ErrNotSignedIn)
	assert.Equal(t, 0, store.callCount())
	assert.Equal(t, OrderStateIdle, svc.State())
	assert.Equal(t, "Please log in to place an order.", presenter.last())
	assert.Equal(t, 1, cart.Cart().Len())
}

func TestPlaceOrder_StoreFailureLeavesCart(t *testing.T) {
	var states []OrderState
	svc, cart, store, presenter := newOrderFixture(anonymous,
		WithStateObserver(func(s OrderState) { states = append(states, s) }),
	)
	store.err = errors.New("unavailable")
	require.NoError(t, cart.AddItem(testProduct("p1", "One", "10.00"), 3))
	before := cart.Cart().Lines()

	order, err := svc.PlaceOrder(context.Background())

	require.Error(t, err)
	assert.Nil(t, order)
	assert.Equal(t, before, cart.Cart().Lines())
	assert.Equal(t, []OrderState{OrderStateSubmitting, OrderStateFailed, OrderStateIdle}, states)
	assert.Equal(t, OrderStateIdle, svc.State())
	assert.Equal(t, "Failed to place order. Please try again.", presenter.last())
	assert.Equal(t, 1, store.callCount())

	// resubmission after the failure is allowed
	store.err = nil
	order, err = svc.PlaceOrder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, order.Lines[0].Quantity)
	assert.Equal(t, 2, store.callCount())
}

func TestPlaceOrder_OrdersAreScopedToPrincipal(t *testing.T) {
	svc, cart, store, _ := newOrderFixture(anonymous)
	require.NoError(t, cart.AddItem(testProduct("p1", "One", "1.00"), 1))
	placed, err := svc.PlaceOrder(context.Background())
	require.NoError(t, err)

	store.orders = append(store.orders, domain.Order{ID: "foreign", UserID: "someone-else"})

	got, err := svc.Order(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, placed.ID, got.ID)

	_, err = svc.Order(context.Background(), "foreign")
	assert.Error(t, err)

	history, err := svc.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, placed.ID, history[0].ID)
}

// Concurrent submissions are not serialized; each one that reads a non-empty
// cart writes its own order.
func TestPlaceOrder_ConcurrentSubmissionsAreNotDeduplicated(t *testing.T) {
	release := make(chan struct{})
	presenter := &recordingPresenter{}
	store := &blockingOrderStore{release: release}
	cart := NewCartService(presenter)
	svc := NewOrderService(store, cart, staticSession{anonymous}, presenter, discardLogger())
	require.NoError(t, cart.AddItem(testProduct("p1", "One", "1.00"), 1))

	var wg sync.WaitGroup
	var successCount atomic.Int32
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.PlaceOrder(context.Background()); err == nil {
				successCount.Add(1)
			}
		}()
	}

	require.Eventually(t, func() bool { return store.waiting.Load() == 2 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(2), successCount.Load())
	assert.True(t, cart.Cart().IsEmpty())
}

type blockingOrderStore struct {
	mockOrderStore
	release chan struct{}
	waiting atomic.Int32
}

func (b *blockingOrderStore) CreateOrder(ctx context.Context, order domain.Order) (string, error) {
	b.waiting.Add(1)
	<-b.release
	return b.mockOrderStore.CreateOrder(ctx, order)
}
