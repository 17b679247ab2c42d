package domain

import "github.com/shopspring/decimal"

// Product is a catalog entry. Prices are USD.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
}

var catalog = []Product{
	{
		ID:          1,
		Name:        "Dyson Airwrap",
		Description: "High-quality product with amazing features",
		Price:       decimal.RequireFromString("1.99"),
		Image:       "/products/product1.jpg",
	},
	{
		ID:          2,
		Name:        "Dyson Supersonic 2",
		Description: "Advanced features and premium quality",
		Price:       decimal.RequireFromString("0.78"),
		Image:       "/products/product2.jpg",
	},
}

// Catalog returns a copy of the product list in display order.
func Catalog() []Product {
	out := make([]Product, len(catalog))
	copy(out, catalog)
	return out
}

// FindProduct looks up a catalog entry by id.
func FindProduct(id int64) (Product, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
