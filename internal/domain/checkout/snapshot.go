// Package checkout drives a cart from building through payment and produces
// the transaction record.
package checkout

import (
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pos-checkout/internal/domain/cart"
	"github.com/xenking/pos-checkout/internal/domain/pricing"
	"github.com/xenking/pos-checkout/internal/domain/promotion"
)

// ErrEmptyCheckout is returned when a snapshot is requested for an empty cart.
var ErrEmptyCheckout = errors.New("cannot check out an empty cart")

// Snapshot is the frozen, priced order handed to the payment step. The
// payment step never recomputes it.
type Snapshot struct {
	Lines         []cart.Line
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	Promotion     *promotion.Promotion
	BOGOProductID string
	CreatedAt     time.Time
}

// BuildSnapshot freezes the cart with its pricing result. The lines and the
// promotion are copied so later edits cannot reach the snapshot.
func BuildSnapshot(c *cart.Cart, promo *promotion.Promotion, res pricing.Result, now time.Time) (Snapshot, error) {
	if c == nil || c.IsEmpty() {
		return Snapshot{}, ErrEmptyCheckout
	}

	snap := Snapshot{
		Lines:         c.Lines(),
		Subtotal:      res.Subtotal,
		Discount:      res.Discount,
		Tax:           res.Tax,
		Total:         res.Total,
		BOGOProductID: res.BOGOProductID,
		CreatedAt:     now,
	}
	if promo != nil {
		p := *promo
		p.Products = slices.Clone(promo.Products)
		snap.Promotion = &p
	}
	return snap, nil
}

// PromotionID returns the id of the applied promotion or "".
func (s Snapshot) PromotionID() string {
	if s.Promotion == nil {
		return ""
	}
	return s.Promotion.ID
}
