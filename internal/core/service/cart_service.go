package service

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var ErrInvalidQuantity = errors.New("quantity must be a positive integer")

// CartService holds the cart of one browsing session. The cart lives only in
// memory. Unknown product ids are never an error.
type CartService struct {
	mu        sync.Mutex
	cart      domain.Cart
	presenter port.Presenter
}

func NewCartService(presenter port.Presenter) *CartService {
	if presenter == nil {
		presenter = port.NopPresenter{}
	}
	return &CartService{presenter: presenter}
}

// AddItem adds quantity units of product. Stock is not consulted.
func (s *CartService) AddItem(product domain.Product, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	s.cart = s.cart.Add(product, quantity)
	s.mu.Unlock()

	s.presenter.Advise(msgItemAdded(product.Name))
	return nil
}

// UpdateQuantity sets the quantity of a line. Zero or less removes it.
func (s *CartService) UpdateQuantity(productID string, quantity int) {
	if quantity <= 0 {
		s.RemoveItem(productID)
		return
	}

	s.mu.Lock()
	s.cart = s.cart.SetQuantity(productID, quantity)
	s.mu.Unlock()
}

func (s *CartService) RemoveItem(productID string) {
	s.mu.Lock()
	s.cart = s.cart.Remove(productID)
	s.mu.Unlock()

	s.presenter.Advise(msgItemRemoved)
}

// Total is the unrounded cart total.
func (s *CartService) Total() decimal.Decimal {
	return s.Cart().Total()
}

func (s *CartService) DisplayTotal() string {
	return s.Cart().DisplayTotal()
}

func (s *CartService) Clear() {
	s.mu.Lock()
	s.cart = domain.Cart{}
	s.mu.Unlock()
}

// Cart returns the current cart value. It is safe to keep.
func (s *CartService) Cart() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart
}
