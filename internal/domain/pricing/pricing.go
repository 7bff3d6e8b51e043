// Package pricing turns cart lines and an optional promotion into totals.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/pos-checkout/internal/domain/cart"
	"github.com/xenking/pos-checkout/internal/domain/promotion"
)

var hundred = decimal.NewFromInt(100)

// DefaultTaxRate is the sales tax rate used when none is configured.
var DefaultTaxRate = decimal.RequireFromString("0.12")

// Result holds the computed amounts. Values are exact; rounding happens only
// when rendering.
type Result struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Taxable  decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	// BOGOProductID is the resolved free item, empty when none applies.
	BOGOProductID string
}

// Resolver prices carts at a fixed tax rate applied to the discounted
// subtotal. A zero rate charges no tax.
type Resolver struct {
	TaxRate decimal.Decimal
}

// NewResolver returns a Resolver for the given rate.
func NewResolver(taxRate decimal.Decimal) Resolver {
	return Resolver{TaxRate: taxRate}
}

// Price computes subtotal, discount, tax and total for lines under promo.
// bogoProductID is the caller's free-item choice and is only honored when it
// names an eligible line; otherwise the first eligible line in cart order is
// used.
//
// A fixed discount is not clamped to the subtotal, so the total can go
// negative. A BOGO promotion never changes the amounts.
func (r Resolver) Price(lines []cart.Line, promo *promotion.Promotion, bogoProductID string) Result {
	var res Result
	res.Subtotal = Subtotal(lines)
	res.Discount = decimal.Zero

	if promo != nil {
		switch promo.Kind {
		case promotion.KindFixed:
			res.Discount = promo.Value
		case promotion.KindPercentage:
			res.Discount = res.Subtotal.Mul(promo.Value).Div(hundred)
		case promotion.KindBOGO:
			res.BOGOProductID = ResolveBOGO(lines, promo, bogoProductID)
		}
	}

	res.Taxable = res.Subtotal.Sub(res.Discount)
	res.Tax = res.Taxable.Mul(r.TaxRate)
	res.Total = res.Taxable.Add(res.Tax)
	return res
}

// Subtotal returns Σ price × quantity.
func Subtotal(lines []cart.Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Amount())
	}
	return sum
}

// BOGOCandidates returns the lines eligible to be the free BOGO item, in cart
// order.
func BOGOCandidates(lines []cart.Line, promo *promotion.Promotion) []cart.Line {
	if promo == nil || promo.Kind != promotion.KindBOGO {
		return nil
	}
	out := make([]cart.Line, 0, len(lines))
	for _, l := range lines {
		if promo.AppliesTo(l.Product.ID) {
			out = append(out, l)
		}
	}
	return out
}

// ResolveBOGO picks the free item: chosen when it is a candidate, else the
// first candidate, else "".
func ResolveBOGO(lines []cart.Line, promo *promotion.Promotion, chosen string) string {
	candidates := BOGOCandidates(lines, promo)
	if len(candidates) == 0 {
		return ""
	}
	if chosen != "" {
		for _, l := range candidates {
			if l.Product.ID == chosen {
				return chosen
			}
		}
	}
	return candidates[0].Product.ID
}
