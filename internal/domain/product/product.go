package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// LowStockThreshold is the cataloged stock below which a product is flagged
// as running low.
const LowStockThreshold = 10

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item sold at the terminal. Products are owned
// by the catalog service; checkout code never mutates them.
type Product struct {
	ID         string
	Name       string
	Price      decimal.Decimal
	Category   string
	Barcode    string
	Stock      int
	Image      string
	BusinessID string
}

// LowStock reports whether the cataloged stock is under LowStockThreshold.
func (p Product) LowStock() bool {
	return p.Stock < LowStockThreshold
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}
