// Package cart holds the line items of a single shopping session.
package cart

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/money"
)

// ErrInvalidQuantity is returned when a line item would hold a non-positive quantity.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// Product is the product snapshot stored on a line item. Prices stay in
// their textual form and are parsed at pricing time. A negative ID marks a
// synthetic custom box assembled by the client.
type Product struct {
	ID           int64
	Name         string
	SpecialPrice string
	MRPPrice     string
	ImageURL     string
}

// IsCustomBox reports whether the product was assembled client side.
func (p Product) IsCustomBox() bool {
	return p.ID < 0
}

// UnitPrice returns the parsed special price.
func (p Product) UnitPrice() decimal.Decimal {
	return money.Parse(p.SpecialPrice)
}

// LineItem is a product with the quantity ordered.
type LineItem struct {
	Product  Product
	Quantity int
}

// Total returns quantity times the unit price.
func (li LineItem) Total() decimal.Decimal {
	return li.Product.UnitPrice().Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart is an ordered list of line items with at most one line per product.
// It is not safe for concurrent use.
type Cart struct {
	items []LineItem
}

// New returns a cart holding a copy of items.
func New(items []LineItem) *Cart {
	c := &Cart{}
	c.Replace(items)
	return c
}

// Add merges quantity into an existing line for the product or appends a
// new line.
func (c *Cart) Add(p Product, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if i := c.index(p.ID); i >= 0 {
		c.items[i].Quantity += quantity
		return nil
	}
	c.items = append(c.items, LineItem{Product: p, Quantity: quantity})
	return nil
}

// Remove drops the line for productID. It reports whether a line existed.
func (c *Cart) Remove(productID int64) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}

// UpdateQuantity sets the quantity of an existing line. A non-positive
// quantity removes the line. It reports whether a line existed.
func (c *Cart) UpdateQuantity(productID int64, quantity int) bool {
	if quantity <= 0 {
		return c.Remove(productID)
	}
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.items[i].Quantity = quantity
	return true
}

// Clear removes every line.
func (c *Cart) Clear() {
	c.items = nil
}

// Replace swaps the contents for a sanitized copy of items.
func (c *Cart) Replace(items []LineItem) {
	c.items, _ = Sanitize(items)
}

// Items returns a copy of the line items in insertion order.
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	return len(c.items)
}

// ItemsTotal returns the sum of quantity times unit price.
func (c *Cart) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range c.items {
		sum = sum.Add(li.Total())
	}
	return sum
}

func (c *Cart) index(productID int64) int {
	for i, li := range c.items {
		if li.Product.ID == productID {
			return i
		}
	}
	return -1
}

// Sanitize drops lines with a zero product id or a non-positive quantity and
// merges duplicate product lines. It returns the kept lines and the number
// of dropped ones.
func Sanitize(items []LineItem) ([]LineItem, int) {
	out := make([]LineItem, 0, len(items))
	seen := make(map[int64]int, len(items))
	dropped := 0
	for _, li := range items {
		if li.Product.ID == 0 || li.Quantity <= 0 {
			dropped++
			continue
		}
		if i, ok := seen[li.Product.ID]; ok {
			out[i].Quantity += li.Quantity
			continue
		}
		seen[li.Product.ID] = len(out)
		out = append(out, li)
	}
	return out, dropped
}
