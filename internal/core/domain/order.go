package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
)

type OrderLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Order is an immutable projection of a cart and its owner at checkout time.
type Order struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Lines     []OrderLine     `json:"items"`
	Total     decimal.Decimal `json:"total_amount"`
	Status    OrderStatus     `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewOrder snapshots cart for owner. The returned order has no ID until the
// store assigns one.
func NewOrder(owner Principal, cart Cart, now time.Time) Order {
	lines := make([]OrderLine, 0, cart.Len())
	for _, l := range cart.Lines() {
		lines = append(lines, OrderLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.Price,
			Quantity:  l.Quantity,
		})
	}

	return Order{
		UserID:    owner.ID,
		Lines:     lines,
		Total:     cart.Total(),
		Status:    OrderStatusPending,
		CreatedAt: now,
	}
}
