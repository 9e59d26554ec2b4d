package port

import (
	"context"
	"errors"

	"github.com/rl1809/storefront/internal/core/domain"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
)

// ProductSnapshot is the full product collection at one point in time, or
// the error that prevented reading it.
type ProductSnapshot struct {
	Products []domain.Product
	Err      error
}

type CatalogStore interface {
	// SubscribeProducts delivers the current collection immediately and again
	// after every change, until unsubscribe is called or ctx is done
	SubscribeProducts(ctx context.Context) (<-chan ProductSnapshot, func(), error)

	// ListProducts reads the collection once
	ListProducts(ctx context.Context) ([]domain.Product, error)

	// CreateProduct inserts a product and returns its assigned id
	CreateProduct(ctx context.Context, product domain.Product) (string, error)
}

type OrderStore interface {
	// CreateOrder persists the order and returns its assigned id
	CreateOrder(ctx context.Context, order domain.Order) (string, error)

	// GetOrder returns ErrNotFound when no order has the id
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// ListOrders returns the orders owned by userID, newest first
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
}
