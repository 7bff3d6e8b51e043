package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is a line of a committed transaction.
type Item struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

// Amount returns price × quantity.
func (i Item) Amount() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Transaction is the immutable record of a completed payment.
type Transaction struct {
	ID            string
	Items         []Item
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	PromotionID   string
	BOGOProductID string
	Method        Method
	Reference     string
	CashTendered  decimal.Decimal
	Change        decimal.Decimal
	Cashier       string
	CreatedAt     time.Time
}

// Repository persists committed transactions and serves history.
type Repository interface {
	Create(ctx context.Context, tx *Transaction) error
	List(ctx context.Context, q HistoryQuery) (HistoryPage, error)
}

// Publisher announces completed transactions to other systems.
type Publisher interface {
	PublishCompleted(ctx context.Context, tx Transaction) error
}

// Assembler turns a paid snapshot into a transaction. It has no side effects.
type Assembler struct {
	newID func() string
	now   func() time.Time
}

// NewAssembler returns an Assembler using random UUIDs and the wall clock.
func NewAssembler() *Assembler {
	return &Assembler{
		newID: func() string { return uuid.New().String() },
		now:   time.Now,
	}
}

// Assemble builds the transaction for snap paid with tender. The tender must
// have been validated already.
func (a *Assembler) Assemble(snap Snapshot, tender Tender, cashier string) Transaction {
	items := make([]Item, len(snap.Lines))
	for i, l := range snap.Lines {
		items[i] = Item{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Price:     l.Product.Price,
			Quantity:  l.Quantity,
		}
	}

	tx := Transaction{
		ID:            a.newID(),
		Items:         items,
		Subtotal:      snap.Subtotal,
		Discount:      snap.Discount,
		Tax:           snap.Tax,
		Total:         snap.Total,
		PromotionID:   snap.PromotionID(),
		BOGOProductID: snap.BOGOProductID,
		Method:        tender.Method,
		Cashier:       cashier,
		CreatedAt:     a.now(),
	}
	switch tender.Method {
	case MethodDigital:
		tx.Reference = tender.Reference
	case MethodCash:
		tx.CashTendered = tender.CashTendered
		tx.Change = tender.Change(snap.Total)
	}
	return tx
}
