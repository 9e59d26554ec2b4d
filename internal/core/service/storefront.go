package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var ErrProductNotFound = errors.New("product not found")

// Storefront is the state of one browsing session: its principal, cart and
// checkout machine, plus the catalog shared by all sessions. View selection
// belongs to the presenter.
type Storefront struct {
	Catalog *CatalogMirror
	Cart    *CartService
	Session *SessionService
	Orders  *OrderService
}

func NewStorefront(catalog *CatalogMirror, orders port.OrderStore, identity port.IdentityProvider, presenter port.Presenter, logger *slog.Logger, opts ...OrderOption) *Storefront {
	cart := NewCartService(presenter)
	session := NewSessionService(identity, cart, presenter, logger)
	return &Storefront{
		Catalog: catalog,
		Cart:    cart,
		Session: session,
		Orders:  NewOrderService(orders, cart, session, presenter, logger, opts...),
	}
}

// AddToCart adds a catalog product by id.
func (s *Storefront) AddToCart(productID string, quantity int) error {
	p, ok := s.Catalog.Product(productID)
	if !ok {
		return ErrProductNotFound
	}
	return s.Cart.AddItem(p, quantity)
}

func (s *Storefront) PlaceOrder(ctx context.Context) (*domain.Order, error) {
	return s.Orders.PlaceOrder(ctx)
}
