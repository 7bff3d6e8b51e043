package promotion

import (
	"slices"
	"time"
)

// ActiveAt reports whether now falls within the promotion's date range and
// time-of-day window. The end date is inclusive through the end of its
// calendar day in now's location.
func (p Promotion) ActiveAt(now time.Time) bool {
	if now.Before(p.StartDate) {
		return false
	}
	if now.After(endOfDay(p.EndDate, now.Location())) {
		return false
	}
	if p.Window != nil && !p.Window.Contains(now) {
		return false
	}
	return true
}

// Qualifies reports whether at least one cart product is covered, or the
// promotion is unrestricted.
func (p Promotion) Qualifies(cartProductIDs []string) bool {
	if len(p.Products) == 0 {
		return true
	}
	for _, id := range p.Products {
		if slices.Contains(cartProductIDs, id) {
			return true
		}
	}
	return false
}

// EligibleAt reports whether p is redeemable right now against the cart.
func (p Promotion) EligibleAt(now time.Time, cartProductIDs []string) bool {
	return p.Value.IsPositive() && p.ActiveAt(now) && p.Qualifies(cartProductIDs)
}

// Eligible returns the promotions currently redeemable against a cart with
// the given product ids, in source order.
func Eligible(all []Promotion, now time.Time, cartProductIDs []string) []Promotion {
	out := make([]Promotion, 0, len(all))
	for _, p := range all {
		if p.EligibleAt(now, cartProductIDs) {
			out = append(out, p)
		}
	}
	return out
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
}
