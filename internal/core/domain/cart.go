package domain

import "github.com/shopspring/decimal"

// CartLine is one product in a cart together with the product fields shown
// at the time it was added.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image_url"`
	Quantity  int             `json:"quantity"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an immutable ordered set of lines, at most one per product.
// Every operation returns a new Cart and never writes to the receiver's
// backing array, so older values stay valid.
type Cart struct {
	lines []CartLine
}

// Lines returns a copy of the lines in insertion order.
func (c Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c Cart) Len() int { return len(c.lines) }

func (c Cart) IsEmpty() bool { return len(c.lines) == 0 }

// Line returns the line for productID.
func (c Cart) Line(productID string) (CartLine, bool) {
	if i := c.index(productID); i >= 0 {
		return c.lines[i], true
	}
	return CartLine{}, false
}

// Add merges quantity into the line for p, appending a snapshot line when
// the product is not in the cart yet. quantity must be positive.
func (c Cart) Add(p Product, quantity int) Cart {
	if quantity <= 0 {
		return c
	}

	out := c.Lines()
	if i := c.index(p.ID); i >= 0 {
		out[i].Quantity += quantity
		return Cart{lines: out}
	}

	return Cart{lines: append(out, CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		ImageURL:  p.ImageURL,
		Quantity:  quantity,
	})}
}

// SetQuantity sets the line's quantity exactly. A quantity of zero or less
// removes the line. Unknown ids leave the cart unchanged.
func (c Cart) SetQuantity(productID string, quantity int) Cart {
	if quantity <= 0 {
		return c.Remove(productID)
	}

	i := c.index(productID)
	if i < 0 {
		return c
	}

	out := c.Lines()
	out[i].Quantity = quantity
	return Cart{lines: out}
}

// Remove drops the line for productID if present.
func (c Cart) Remove(productID string) Cart {
	i := c.index(productID)
	if i < 0 {
		return c
	}

	out := make([]CartLine, 0, len(c.lines)-1)
	out = append(out, c.lines[:i]...)
	out = append(out, c.lines[i+1:]...)
	return Cart{lines: out}
}

// Total is the exact sum of price × quantity over all lines.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// DisplayTotal is Total rounded to cents, e.g. "25.00".
func (c Cart) DisplayTotal() string {
	return c.Total().StringFixed(2)
}

func (c Cart) index(productID string) int {
	for i, l := range c.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}
