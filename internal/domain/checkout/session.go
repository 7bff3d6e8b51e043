package checkout

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/pos-checkout/internal/domain/cart"
	"github.com/xenking/pos-checkout/internal/domain/pricing"
	"github.com/xenking/pos-checkout/internal/domain/product"
	"github.com/xenking/pos-checkout/internal/domain/promotion"
)

// State is a checkout lifecycle stage.
type State string

const (
	StateIdle              State = "idle"
	StateBuilding          State = "building"
	StatePromotionSelected State = "promotion_selected"
	StateSnapshotFrozen    State = "snapshot_frozen"
	StatePaymentPending    State = "payment_pending"
	StateCompleted         State = "completed"
)

var (
	// ErrCheckoutInProgress is returned for cart or promotion edits while a
	// snapshot is frozen.
	ErrCheckoutInProgress = errors.New("checkout in progress")
	// ErrPromotionNotEligible is returned when selecting a promotion that is
	// not currently redeemable against the cart.
	ErrPromotionNotEligible = errors.New("promotion is not eligible for this cart")
)

// StateError reports an operation attempted in the wrong lifecycle stage.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while checkout is %s", e.Op, e.State)
}

// Session owns one terminal's cart together with its promotion selection.
// All cart edits go through mutate, which clears the promotion and the BOGO
// choice in the same step.
//
// Session is not safe for concurrent use.
type Session struct {
	ID string

	state      State
	cart       *cart.Cart
	promo      *promotion.Promotion
	bogoChoice string
	snapshot   *Snapshot
	method     Method
}

// NewSession returns an idle session.
func NewSession(id string) *Session {
	return &Session{ID: id, state: StateIdle, cart: cart.New()}
}

// State returns the lifecycle stage.
func (s *Session) State() State { return s.state }

// Cart returns a copy of the cart.
func (s *Session) Cart() *cart.Cart { return s.cart.Clone() }

// Promotion returns the selected promotion, if any.
func (s *Session) Promotion() *promotion.Promotion { return s.promo }

// BOGOChoice returns the free item the cashier picked, if any.
func (s *Session) BOGOChoice() string { return s.bogoChoice }

// Snapshot returns the frozen order while checkout is in progress.
func (s *Session) Snapshot() *Snapshot { return s.snapshot }

// Method returns the tender kind chosen for the pending payment.
func (s *Session) Method() Method { return s.method }

// ReservedBOGO returns the product currently holding the free BOGO unit.
// It follows the selected promotion even after it expires, while Quote drops
// an expired promotion; the unit stays held until the selection is cleared.
func (s *Session) ReservedBOGO() string {
	return pricing.ResolveBOGO(s.cart.Lines(), s.promo, s.bogoChoice)
}

// Available returns the sellable stock of p given this session's cart.
func (s *Session) Available(p product.Product) int {
	return cart.AvailableStock(p, s.cart, s.ReservedBOGO())
}

func (s *Session) frozen() bool {
	return s.state == StateSnapshotFrozen || s.state == StatePaymentPending
}

// mutate applies fn to a copy of the cart. Capacity is evaluated against the
// BOGO reservation in effect before the edit. On success the copy replaces
// the cart and the promotion selection is dropped; on failure nothing changes.
func (s *Session) mutate(fn func(c *cart.Cart, bogoID string) error) error {
	if s.frozen() {
		return ErrCheckoutInProgress
	}
	next := s.cart.Clone()
	if err := fn(next, s.ReservedBOGO()); err != nil {
		return err
	}
	s.cart = next
	s.promo = nil
	s.bogoChoice = ""
	if s.cart.IsEmpty() {
		s.state = StateIdle
	} else {
		s.state = StateBuilding
	}
	return nil
}

// AddItem puts one more unit of p into the cart.
func (s *Session) AddItem(p product.Product) error {
	return s.mutate(func(c *cart.Cart, bogoID string) error {
		return c.Add(p, bogoID)
	})
}

// SetQuantity sets the quantity of p; zero removes the line.
func (s *Session) SetQuantity(p product.Product, qty int) error {
	return s.mutate(func(c *cart.Cart, bogoID string) error {
		return c.SetQuantity(p, qty, bogoID)
	})
}

// RemoveItem drops the line for productID. Removing a missing line is
// reported as product.ErrNotFound.
func (s *Session) RemoveItem(productID string) error {
	return s.mutate(func(c *cart.Cart, _ string) error {
		if !c.Remove(productID) {
			return product.ErrNotFound
		}
		return nil
	})
}

// SelectPromotion applies promo with an optional BOGO free-item choice. The
// promotion must be eligible right now.
func (s *Session) SelectPromotion(promo promotion.Promotion, bogoChoice string, now time.Time) error {
	if s.frozen() {
		return ErrCheckoutInProgress
	}
	if s.state != StateBuilding && s.state != StatePromotionSelected {
		return &StateError{Op: "select a promotion", State: s.state}
	}
	if !promo.EligibleAt(now, s.cart.ProductIDs()) {
		return ErrPromotionNotEligible
	}
	s.promo = &promo
	s.bogoChoice = ""
	if promo.Kind == promotion.KindBOGO {
		s.bogoChoice = bogoChoice
	}
	s.state = StatePromotionSelected
	return nil
}

// ClearPromotion drops any selected promotion.
func (s *Session) ClearPromotion() error {
	if s.frozen() {
		return ErrCheckoutInProgress
	}
	s.promo = nil
	s.bogoChoice = ""
	if s.state == StatePromotionSelected {
		s.state = StateBuilding
	}
	return nil
}

// effectivePromotion returns the selected promotion if it is still eligible.
// An expired selection degrades to no promotion without an error.
func (s *Session) effectivePromotion(now time.Time) *promotion.Promotion {
	if s.promo == nil || !s.promo.EligibleAt(now, s.cart.ProductIDs()) {
		return nil
	}
	return s.promo
}

// Quote prices the current cart.
func (s *Session) Quote(now time.Time, r pricing.Resolver) pricing.Result {
	return r.Price(s.cart.Lines(), s.effectivePromotion(now), s.bogoChoice)
}

// Freeze prices the cart and stores the snapshot for payment.
func (s *Session) Freeze(now time.Time, r pricing.Resolver) (Snapshot, error) {
	if s.frozen() {
		return Snapshot{}, ErrCheckoutInProgress
	}
	promo := s.effectivePromotion(now)
	snap, err := BuildSnapshot(s.cart, promo, r.Price(s.cart.Lines(), promo, s.bogoChoice), now)
	if err != nil {
		return Snapshot{}, err
	}
	s.snapshot = &snap
	s.state = StateSnapshotFrozen
	return snap, nil
}

// BeginPayment records the tender kind the customer chose.
func (s *Session) BeginPayment(m Method) error {
	if s.state != StateSnapshotFrozen && s.state != StatePaymentPending {
		return &StateError{Op: "begin payment", State: s.state}
	}
	if !m.Valid() {
		return ErrInvalidMethod
	}
	s.method = m
	s.state = StatePaymentPending
	return nil
}

// Cancel abandons the checkout. The cart and promotion selection are kept as
// they were before the snapshot was taken.
func (s *Session) Cancel() error {
	if !s.frozen() {
		return &StateError{Op: "cancel payment", State: s.state}
	}
	s.snapshot = nil
	s.method = ""
	if s.promo != nil {
		s.state = StatePromotionSelected
	} else {
		s.state = StateBuilding
	}
	return nil
}

// Settle validates the tender against the frozen snapshot and assembles the
// transaction. The session is unchanged until Complete is called.
func (s *Session) Settle(t Tender, a *Assembler, cashier string) (Transaction, error) {
	if s.state != StatePaymentPending {
		return Transaction{}, &StateError{Op: "confirm payment", State: s.state}
	}
	if t.Method != s.method {
		return Transaction{}, ErrMethodMismatch
	}
	if err := t.Validate(s.snapshot.Total); err != nil {
		return Transaction{}, err
	}
	return a.Assemble(*s.snapshot, t, cashier), nil
}

// Complete marks the checkout as done once the transaction is stored.
func (s *Session) Complete() error {
	if s.state != StatePaymentPending {
		return &StateError{Op: "complete", State: s.state}
	}
	s.state = StateCompleted
	return nil
}

// Reset starts a fresh checkout on the same terminal.
func (s *Session) Reset() {
	*s = *NewSession(s.ID)
}
