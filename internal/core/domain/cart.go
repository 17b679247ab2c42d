package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CartItem is one line of a cart.
type CartItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns unit price times quantity.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart maps product id to line item. The zero value is an empty cart.
// A Cart is not safe for concurrent use; callers serialise access per session.
type Cart struct {
	Items map[int64]CartItem `json:"items"`
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{Items: make(map[int64]CartItem)}
}

// Add merges item into the cart, summing quantity when the product is already present.
// Non-positive quantities are ignored.
func (c *Cart) Add(item CartItem) {
	if item.Quantity <= 0 {
		return
	}
	if c.Items == nil {
		c.Items = make(map[int64]CartItem)
	}
	if existing, ok := c.Items[item.ProductID]; ok {
		existing.Quantity += item.Quantity
		c.Items[item.ProductID] = existing
		return
	}
	c.Items[item.ProductID] = item
}

// Remove deletes the line for productID. Unknown ids are a no-op.
func (c *Cart) Remove(productID int64) {
	delete(c.Items, productID)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = make(map[int64]CartItem)
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Total sums unit price times quantity over every line.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Lines returns the cart lines sorted by product id.
func (c *Cart) Lines() []CartItem {
	lines := make([]CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, item)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}

// ItemNames returns the product name of every line, in Lines order.
func (c *Cart) ItemNames() []string {
	lines := c.Lines()
	names := make([]string, len(lines))
	for i, l := range lines {
		names[i] = l.Name
	}
	return names
}

// Clone returns a deep copy of the cart.
func (c *Cart) Clone() *Cart {
	out := NewCart()
	for id, item := range c.Items {
		out.Items[id] = item
	}
	return out
}

// Deduct takes paid lines out of the cart. Each line loses the paid quantity and
// is dropped once nothing is left, so units added after pricing stay in the cart.
func (c *Cart) Deduct(paid []CartItem) {
	for _, p := range paid {
		existing, ok := c.Items[p.ProductID]
		if !ok {
			continue
		}
		existing.Quantity -= p.Quantity
		if existing.Quantity <= 0 {
			delete(c.Items, p.ProductID)
			continue
		}
		c.Items[p.ProductID] = existing
	}
}
