// Package cart holds the shopping cart and the stock evaluator that guards
// every cart mutation against cataloged stock.
package cart

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/pos-checkout/internal/domain/product"
)

// Line is one product's aggregated quantity in the cart.
type Line struct {
	Product  product.Product
	Quantity int
}

// Amount returns price × quantity for the line.
func (l Line) Amount() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CapacityError reports a requested quantity above the available ceiling.
type CapacityError struct {
	ProductID string
	Requested int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("requested quantity %d for product %s exceeds available stock %d",
		e.Requested, e.ProductID, e.Available)
}

// InvalidQuantityError indicates a negative quantity was requested.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity %d for product %s must not be negative", e.Quantity, e.ProductID)
}

// Cart is an ordered set of lines with at most one line per product id.
// Lines keep insertion order; a line whose quantity reaches zero is removed.
//
// The zero value is an empty cart ready to use.
type Cart struct {
	lines []Line
}

// New returns a cart holding copies of the given lines. Lines with a
// non-positive quantity are dropped and duplicates are merged.
func New(lines ...Line) *Cart {
	c := &Cart{}
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		if i := c.index(l.Product.ID); i >= 0 {
			c.lines[i].Quantity += l.Quantity
			continue
		}
		c.lines = append(c.lines, l)
	}
	return c
}

func (c *Cart) index(productID string) int {
	for i, l := range c.lines {
		if l.Product.ID == productID {
			return i
		}
	}
	return -1
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len returns the number of lines.
func (c *Cart) Len() int { return len(c.lines) }

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

// Quantity returns the quantity held for productID, or 0.
func (c *Cart) Quantity(productID string) int {
	if i := c.index(productID); i >= 0 {
		return c.lines[i].Quantity
	}
	return 0
}

// Units returns the total number of units across all lines.
func (c *Cart) Units() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// ProductIDs returns the product ids in cart order.
func (c *Cart) ProductIDs() []string {
	out := make([]string, len(c.lines))
	for i, l := range c.lines {
		out[i] = l.Product.ID
	}
	return out
}

// Clone returns an independent copy of the cart.
func (c *Cart) Clone() *Cart {
	return &Cart{lines: c.Lines()}
}

// Add puts one more unit of p into the cart. bogoFreeID is the product
// currently reserved as a free BOGO unit, if any.
func (c *Cart) Add(p product.Product, bogoFreeID string) error {
	return c.SetQuantity(p, c.Quantity(p.ID)+1, bogoFreeID)
}

// SetQuantity sets the line quantity for p. Zero removes the line. A quantity
// above Ceiling is rejected with *CapacityError and the cart is unchanged.
// The stored product is refreshed to p so later pricing uses current data.
func (c *Cart) SetQuantity(p product.Product, qty int, bogoFreeID string) error {
	if qty < 0 {
		return &InvalidQuantityError{ProductID: p.ID, Quantity: qty}
	}
	if qty == 0 {
		c.Remove(p.ID)
		return nil
	}

	ceiling := Ceiling(p, bogoFreeID)
	if qty > ceiling {
		return &CapacityError{ProductID: p.ID, Requested: qty, Available: ceiling}
	}

	if i := c.index(p.ID); i >= 0 {
		c.lines[i] = Line{Product: p, Quantity: qty}
		return nil
	}
	c.lines = append(c.lines, Line{Product: p, Quantity: qty})
	return nil
}

// Remove deletes the line for productID. It reports whether a line existed.
func (c *Cart) Remove(productID string) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return true
}
