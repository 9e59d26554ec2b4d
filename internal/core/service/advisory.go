package service

// Advisory texts handed to the presenter.
const (
	msgItemRemoved        = "Item removed from cart."
	msgEmptyCart          = "Your cart is empty!"
	msgLoginToOrder       = "Please log in to place an order."
	msgOrderFailed        = "Failed to place order. Please try again."
	msgSignInFailed       = "Failed to sign in. Please refresh."
	msgRegistered         = "Registration successful! You are now logged in."
	msgLoggedIn           = "Login successful!"
	msgLoggedOut          = "Logged out successfully."
	msgCatalogDenied      = "Failed to load products. Please check your store permissions for the 'products' collection."
	msgCatalogUnavailable = "Failed to load products. Please try again later."
)

func msgItemAdded(name string) string {
	return name + " added to cart!"
}

func msgOrderPlaced(id string) string {
	return "Order placed successfully! Order ID: " + id
}
