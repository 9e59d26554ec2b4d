package domain

// View names the page the presentation layer should show.
type View string

const (
	ViewHome              View = "home"
	ViewProductDetail     View = "product_detail"
	ViewCart              View = "cart"
	ViewCheckout          View = "checkout"
	ViewLogin             View = "login"
	ViewRegister          View = "register"
	ViewOrderConfirmation View = "order_confirmation"
)

func (v View) Valid() bool {
	switch v {
	case ViewHome, ViewProductDetail, ViewCart, ViewCheckout, ViewLogin, ViewRegister, ViewOrderConfirmation:
		return true
	}
	return false
}
