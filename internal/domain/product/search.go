package product

import (
	"slices"
	"strings"
)

// Filter narrows a catalog listing. Zero-valued fields match everything.
type Filter struct {
	// Term matches a case-insensitive substring of the name or a substring
	// of the barcode.
	Term       string
	Category   string
	BusinessID string
}

// Matches reports whether p satisfies every set field of f.
func (f Filter) Matches(p Product) bool {
	if f.Term != "" {
		term := strings.ToLower(f.Term)
		if !strings.Contains(strings.ToLower(p.Name), term) && !strings.Contains(p.Barcode, f.Term) {
			return false
		}
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.BusinessID != "" && p.BusinessID != f.BusinessID {
		return false
	}
	return true
}

// Search returns the products matching f, preserving catalog order.
func Search(products []Product, f Filter) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

// Categories returns the sorted set of distinct category labels.
func Categories(products []Product) []string {
	seen := make(map[string]struct{}, len(products))
	out := make([]string, 0)
	for _, p := range products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	slices.Sort(out)
	return out
}
