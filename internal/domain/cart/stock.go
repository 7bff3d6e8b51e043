package cart

import "github.com/xenking/pos-checkout/internal/domain/product"

// AvailableStock returns the units of p still sellable given what the cart
// already holds and whether p is the reserved BOGO free item. The result is
// never negative.
func AvailableStock(p product.Product, c *Cart, bogoFreeID string) int {
	stock := p.Stock
	if c != nil {
		stock -= c.Quantity(p.ID)
	}
	if bogoFreeID != "" && bogoFreeID == p.ID {
		stock--
	}
	return max(stock, 0)
}

// Ceiling is the largest quantity a line for p may hold: availability
// computed as if the line itself were not yet in the cart.
func Ceiling(p product.Product, bogoFreeID string) int {
	return AvailableStock(p, nil, bogoFreeID)
}
