package domain

import "github.com/shopspring/decimal"

// Product is a catalog entry. Only the remote store mutates it.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	Stock       int             `json:"stock"` // advisory only, never checked or decremented
}

// DemoProducts returns the dataset written to an empty catalog.
func DemoProducts() []Product {
	return []Product{
		{
			Name:        "Wireless Headphones",
			Description: "High-fidelity sound with comfortable earcups and long battery life. Perfect for music lovers.",
			Price:       decimal.RequireFromString("99.99"),
			ImageURL:    "https://placehold.co/300x200/4F46E5/ffffff?text=Headphones",
			Stock:       50,
		},
		{
			Name:        "Smartwatch Pro",
			Description: "Track your fitness, receive notifications, and make calls right from your wrist. Waterproof design.",
			Price:       decimal.RequireFromString("199.99"),
			ImageURL:    "https://placehold.co/300x200/EC4899/ffffff?text=Smartwatch",
			Stock:       30,
		},
		{
			Name:        "Portable Bluetooth Speaker",
			Description: "Compact and powerful speaker with rich bass. Ideal for outdoor adventures and parties.",
			Price:       decimal.RequireFromString("49.99"),
			ImageURL:    "https://placehold.co/300x200/10B981/ffffff?text=Speaker",
			Stock:       75,
		},
		{
			Name:        "Ergonomic Office Chair",
			Description: "Designed for ultimate comfort and support during long working hours. Adjustable features.",
			Price:       decimal.RequireFromString("249.99"),
			ImageURL:    "https://placehold.co/300x200/F59E0B/ffffff?text=Office+Chair",
			Stock:       20,
		},
		{
			Name:        "4K LED Smart TV",
			Description: "Experience stunning visuals and smart features with this immersive 4K television. Large display.",
			Price:       decimal.RequireFromString("799.99"),
			ImageURL:    "https://placehold.co/300x200/06B6D4/ffffff?text=4K+TV",
			Stock:       15,
		},
	}
}
