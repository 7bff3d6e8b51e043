package product

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func catalog() []Product {
	return []Product{
		{ID: "1", Name: "Apple iPhone 15", Price: decimal.NewFromInt(999), Category: "Electronics", Barcode: "1234567890123", Stock: 25, BusinessID: "bb-1"},
		{ID: "2", Name: "Samsung Galaxy S24", Price: decimal.NewFromInt(899), Category: "Electronics", Barcode: "1234567890124", Stock: 18, BusinessID: "bb-2"},
		{ID: "3", Name: "Nike Air Max 270", Price: decimal.RequireFromString("129.99"), Category: "Footwear", Barcode: "1234567890125", Stock: 4, BusinessID: "bb-1"},
		{ID: "4", Name: "Organic Coffee Beans", Price: decimal.RequireFromString("24.99"), Category: "Food", Barcode: "9876543210001", Stock: 0, BusinessID: "bb-3"},
	}
}

func ids(products []Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "empty filter returns everything", filter: Filter{}, want: []string{"1", "2", "3", "4"}},
		{name: "name match is case-insensitive", filter: Filter{Term: "galaxy"}, want: []string{"2"}},
		{name: "barcode substring", filter: Filter{Term: "98765"}, want: []string{"4"}},
		{name: "category", filter: Filter{Category: "Electronics"}, want: []string{"1", "2"}},
		{name: "business", filter: Filter{BusinessID: "bb-1"}, want: []string{"1", "3"}},
		{name: "combined filters", filter: Filter{Term: "nike", Category: "Footwear", BusinessID: "bb-1"}, want: []string{"3"}},
		{name: "no match", filter: Filter{Term: "tablet"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Search(catalog(), tt.filter)))
		})
	}
}

func TestCategories(t *testing.T) {
	assert.Equal(t, []string{"Electronics", "Food", "Footwear"}, Categories(catalog()))
	assert.Empty(t, Categories(nil))
}

func TestLowStock(t *testing.T) {
	products := catalog()
	assert.False(t, products[0].LowStock())
	assert.True(t, products[2].LowStock())
	assert.True(t, products[3].LowStock())
}
