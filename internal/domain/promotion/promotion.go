package promotion

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported promotion strategies.
type Kind string

const (
	// KindPercentage takes Value percent off the subtotal.
	KindPercentage Kind = "percentage"
	// KindFixed takes Value currency units off the subtotal. The amount is
	// not capped at the subtotal.
	KindFixed Kind = "fixed"
	// KindBOGO marks one unit of a qualifying product as free. Value is the
	// advertised number of free units and is display-only.
	KindBOGO Kind = "bogo"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPercentage, KindFixed, KindBOGO:
		return true
	default:
		return false
	}
}

// ErrNotFound is returned when a promotion id is unknown.
var ErrNotFound = errors.New("promotion not found")

// Promotion is an offer fetched from the promotion catalog. It is treated as
// an immutable value.
type Promotion struct {
	ID    string
	Name  string
	Kind  Kind
	Value decimal.Decimal
	// Products restricts the promotion to these product ids. Empty means any
	// product qualifies.
	Products  []string
	StartDate time.Time
	EndDate   time.Time
	// Window optionally limits redemption to a time of day.
	Window *Window
}

// AppliesTo reports whether productID qualifies for the promotion.
func (p Promotion) AppliesTo(productID string) bool {
	return len(p.Products) == 0 || slices.Contains(p.Products, productID)
}

// Repository lists the promotion catalog.
type Repository interface {
	List(ctx context.Context) ([]Promotion, error)
}

// Find returns the promotion with the given id from promos.
func Find(promos []Promotion, id string) (Promotion, bool) {
	for _, p := range promos {
		if p.ID == id {
			return p, true
		}
	}
	return Promotion{}, false
}
