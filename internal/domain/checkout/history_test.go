package checkout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyFixture() []Transaction {
	day := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	return []Transaction{
		{ID: "aaa-1", Method: MethodCash, Total: d("10"), CreatedAt: day.Add(9 * time.Hour),
			Items: []Item{{Name: "Iced Latte"}}},
		{ID: "bbb-2", Method: MethodDigital, Total: d("20"), CreatedAt: day.Add(33 * time.Hour),
			Items: []Item{{Name: "Croissant"}}},
		{ID: "ccc-3", Method: MethodCash, Total: d("30.5"), CreatedAt: day.Add(34 * time.Hour),
			Items: []Item{{Name: "Hot Latte"}, {Name: "Muffin"}}},
		{ID: "ddd-4", Method: MethodDigital, Total: d("5"), CreatedAt: day.Add(23*time.Hour + 59*time.Minute)},
	}
}

func pageIDs(p HistoryPage) []string {
	out := make([]string, len(p.Transactions))
	for i, tx := range p.Transactions {
		out[i] = tx.ID
	}
	return out
}

func TestFilterHistory(t *testing.T) {
	all := historyFixture()
	tests := []struct {
		name    string
		q       HistoryQuery
		want    []string
		count   int
		revenue string
	}{
		{name: "everything newest first", q: HistoryQuery{}, want: []string{"ccc-3", "bbb-2", "ddd-4", "aaa-1"}, count: 4, revenue: "65.5"},
		{name: "by product name", q: HistoryQuery{Search: "latte"}, want: []string{"ccc-3", "aaa-1"}, count: 2, revenue: "40.5"},
		{name: "by id fragment", q: HistoryQuery{Search: "BBB"}, want: []string{"bbb-2"}, count: 1, revenue: "20"},
		{name: "by method", q: HistoryQuery{Method: MethodDigital}, want: []string{"bbb-2", "ddd-4"}, count: 2, revenue: "25"},
		{
			name:  "by date",
			q:     HistoryQuery{Date: time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)},
			want:  []string{"ddd-4", "aaa-1"}, count: 2, revenue: "15",
		},
		{name: "no match", q: HistoryQuery{Search: "tea"}, want: []string{}, count: 0, revenue: "0"},
		{name: "paged", q: HistoryQuery{Page: 2, PageSize: 3}, want: []string{"aaa-1"}, count: 4, revenue: "65.5"},
		{name: "past the end", q: HistoryQuery{Page: 9, PageSize: 3}, want: []string{}, count: 4, revenue: "65.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := FilterHistory(all, tt.q)
			assert.Equal(t, tt.want, pageIDs(page))
			assert.Equal(t, tt.count, page.TotalCount)
			assert.True(t, d(tt.revenue).Equal(page.Revenue), "revenue %s", page.Revenue)
		})
	}
}

func TestHistoryQuery_Normalize(t *testing.T) {
	q := HistoryQuery{Page: -1, PageSize: 1000, Search: "  x "}.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, MaxPageSize, q.PageSize)
	assert.Equal(t, "x", q.Search)
	assert.Equal(t, 0, q.Offset())

	q = HistoryQuery{}.Normalize()
	assert.Equal(t, DefaultPageSize, q.PageSize)
}

func TestHistoryPage_Pages(t *testing.T) {
	assert.Equal(t, 0, HistoryPage{}.Pages())
	assert.Equal(t, 3, HistoryPage{TotalCount: 21, PageSize: 10}.Pages())
	assert.Equal(t, 2, HistoryPage{TotalCount: 20, PageSize: 10}.Pages())
}

func TestHistoryQuery_DayRange(t *testing.T) {
	_, _, ok := HistoryQuery{}.DayRange()
	require.False(t, ok)

	start, end, ok := HistoryQuery{Date: time.Date(2025, 1, 31, 18, 30, 0, 0, time.UTC)}.DayRange()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), end)
}
