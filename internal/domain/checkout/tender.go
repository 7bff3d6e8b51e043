package checkout

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Method is the tender kind used to pay.
type Method string

const (
	MethodCash    Method = "cash"
	MethodDigital Method = "digital"
)

// Valid reports whether m is a supported tender kind.
func (m Method) Valid() bool {
	return m == MethodCash || m == MethodDigital
}

var (
	// ErrInvalidMethod is returned for an unknown tender kind.
	ErrInvalidMethod = errors.New("unsupported payment method")
	// ErrTenderReferenceRequired is returned when a digital payment has no
	// reference.
	ErrTenderReferenceRequired = errors.New("digital payment requires a reference")
	// ErrInsufficientCash is returned when the cash handed over is below the
	// total.
	ErrInsufficientCash = errors.New("cash tendered is less than the total")
	// ErrMethodMismatch is returned when confirming with a different method
	// than the one payment was started with.
	ErrMethodMismatch = errors.New("payment method does not match the pending payment")
)

// Tender is what the payment step collected.
type Tender struct {
	Method       Method
	Reference    string
	CashTendered decimal.Decimal
}

// Validate checks the tender against the amount due.
func (t Tender) Validate(total decimal.Decimal) error {
	switch t.Method {
	case MethodDigital:
		if strings.TrimSpace(t.Reference) == "" {
			return ErrTenderReferenceRequired
		}
	case MethodCash:
		if t.CashTendered.LessThan(total) {
			return ErrInsufficientCash
		}
	default:
		return ErrInvalidMethod
	}
	return nil
}

// Change returns the cash to hand back, never negative. Digital tenders get
// no change.
func (t Tender) Change(total decimal.Decimal) decimal.Decimal {
	if t.Method != MethodCash {
		return decimal.Zero
	}
	change := t.CashTendered.Sub(total)
	if change.IsNegative() {
		return decimal.Zero
	}
	return change
}
