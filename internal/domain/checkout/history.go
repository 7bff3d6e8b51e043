package checkout

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPageSize is used when a query does not set one.
const DefaultPageSize = 10

// MaxPageSize bounds a single history page.
const MaxPageSize = 100

// HistoryQuery filters transaction history. Zero fields match everything.
type HistoryQuery struct {
	// Search matches a transaction id or any item name, case-insensitively.
	Search string
	Method Method
	// Date restricts results to one calendar day in Date's location.
	Date     time.Time
	Page     int
	PageSize int
}

// Normalize clamps paging to sane values.
func (q HistoryQuery) Normalize() HistoryQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// Offset returns the number of rows to skip.
func (q HistoryQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// DayRange returns the half-open [start, end) interval of the Date filter.
func (q HistoryQuery) DayRange() (time.Time, time.Time, bool) {
	if q.Date.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := q.Date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, q.Date.Location())
	return start, start.AddDate(0, 0, 1), true
}

// Matches reports whether tx passes every filter of q.
func (q HistoryQuery) Matches(tx Transaction) bool {
	if q.Method != "" && tx.Method != q.Method {
		return false
	}
	if start, end, ok := q.DayRange(); ok {
		if tx.CreatedAt.Before(start) || !tx.CreatedAt.Before(end) {
			return false
		}
	}
	if q.Search == "" {
		return true
	}
	term := strings.ToLower(q.Search)
	if strings.Contains(strings.ToLower(tx.ID), term) {
		return true
	}
	for _, it := range tx.Items {
		if strings.Contains(strings.ToLower(it.Name), term) {
			return true
		}
	}
	return false
}

// HistoryPage is one page of filtered history, most recent first.
type HistoryPage struct {
	Transactions []Transaction
	// TotalCount is the number of transactions matching the filters.
	TotalCount int
	// Revenue sums Total over every matching transaction, not just this page.
	Revenue  decimal.Decimal
	Page     int
	PageSize int
}

// Pages returns the number of pages for the filtered set.
func (p HistoryPage) Pages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.TotalCount + p.PageSize - 1) / p.PageSize
}

// FilterHistory applies q to an unordered slice of transactions.
func FilterHistory(all []Transaction, q HistoryQuery) HistoryPage {
	q = q.Normalize()

	matched := make([]Transaction, 0, len(all))
	revenue := decimal.Zero
	for _, tx := range all {
		if q.Matches(tx) {
			matched = append(matched, tx)
			revenue = revenue.Add(tx.Total)
		}
	}
	slices.SortStableFunc(matched, func(a, b Transaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	page := HistoryPage{
		Transactions: []Transaction{},
		TotalCount:   len(matched),
		Revenue:      revenue,
		Page:         q.Page,
		PageSize:     q.PageSize,
	}
	if off := q.Offset(); off < len(matched) {
		page.Transactions = matched[off:min(off+q.PageSize, len(matched))]
	}
	return page
}
