package catalogfile

import (
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pos-checkout/db"
	"github.com/xenking/pos-checkout/internal/domain/promotion"
)

func TestDecode_BundledCatalog(t *testing.T) {
	c, err := Decode(db.Catalog, time.UTC)
	require.NoError(t, err)

	assert.NotEmpty(t, c.Branches)
	assert.NotEmpty(t, c.BranchBrands)
	require.NotEmpty(t, c.Products)
	require.NotEmpty(t, c.Promotions)

	first := c.Products[0]
	assert.Equal(t, "Apple iPhone 15", first.Name)
	assert.True(t, decimal.RequireFromString("999").Equal(first.Price))

	var bogo *promotion.Promotion
	for i := range c.Promotions {
		if c.Promotions[i].Kind == promotion.KindBOGO {
			bogo = &c.Promotions[i]
		}
	}
	require.NotNil(t, bogo)
	require.NotNil(t, bogo.Window)
	assert.Equal(t, "14:00", bogo.Window.Start.String())
}

func TestDecode(t *testing.T) {
	data := []byte(`{
		"products": [
			{"id": "1", "name": "Tea", "price": 12.5, "stock": 3, "business": "b1", "image": null, "extra": {"x": 1}}
		],
		"promotions": [
			{"id": "p", "name": "P", "type": "fixed", "value": "5", "startDate": "2025-01-01", "endDate": "2025-01-31T18:00:00Z"}
		],
		"unknown": [1, 2, 3]
	}`)
	loc := time.FixedZone("UTC+8", 8*60*60)
	c, err := Decode(data, loc)
	require.NoError(t, err)

	require.Len(t, c.Products, 1)
	assert.True(t, decimal.RequireFromString("12.5").Equal(c.Products[0].Price))
	assert.Equal(t, "b1", c.Products[0].BusinessID)

	require.Len(t, c.Promotions, 1)
	p := c.Promotions[0]
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, loc), p.StartDate)
	assert.True(t, p.EndDate.Equal(time.Date(2025, 1, 31, 18, 0, 0, 0, time.UTC)))
	assert.Nil(t, p.Window)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not an object", data: `[]`},
		{name: "negative stock", data: `{"products": [{"id": "1", "price": "1", "stock": -1}]}`},
		{name: "negative price", data: `{"products": [{"id": "1", "price": "-1", "stock": 1}]}`},
		{name: "missing id", data: `{"products": [{"price": "1", "stock": 1}]}`},
		{name: "bad price", data: `{"products": [{"id": "1", "price": "abc"}]}`},
		{name: "unknown promotion type", data: `{"promotions": [{"id": "p", "type": "bundle", "value": "1", "startDate": "2025-01-01", "endDate": "2025-01-02"}]}`},
		{name: "bad time frame", data: `{"promotions": [{"id": "p", "type": "fixed", "value": "1", "startDate": "2025-01-01", "endDate": "2025-01-02", "startTimeFrame": "25:00", "endTimeFrame": "26:00"}]}`},
		{name: "bad date", data: `{"promotions": [{"id": "p", "type": "fixed", "value": "1", "startDate": "01/01/2025"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), time.UTC)
			require.Error(t, err)
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	c, err := Decode(db.Catalog, time.UTC)
	require.NoError(t, err)

	again, err := Decode(Encode(c), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, c.Branches, again.Branches)
	assert.Equal(t, c.BranchBrands, again.BranchBrands)
	require.Len(t, again.Products, len(c.Products))
	for i := range c.Products {
		assert.Equal(t, c.Products[i].ID, again.Products[i].ID)
		assert.True(t, c.Products[i].Price.Equal(again.Products[i].Price))
	}
	require.Len(t, again.Promotions, len(c.Promotions))
	for i := range c.Promotions {
		assert.True(t, c.Promotions[i].EndDate.Equal(again.Promotions[i].EndDate))
		assert.Equal(t, c.Promotions[i].Window, again.Promotions[i].Window)
	}
}

func TestDecodeProduct_SingleLine(t *testing.T) {
	p, err := DecodeProduct(jx.DecodeStr(`{"id":"x","name":"X","price":"1.10","stock":2,"barcode":"123"}`))
	require.NoError(t, err)
	assert.Equal(t, "123", p.Barcode)
	assert.Equal(t, 2, p.Stock)
	assert.Equal(t, "1.10", p.Price.StringFixed(2))
}

func TestProduct_FeedLineRoundTrip(t *testing.T) {
	c, err := Decode(db.Catalog, time.UTC)
	require.NoError(t, err)

	for _, want := range c.Products {
		var e jx.Encoder
		EncodeProduct(&e, want)

		got, err := DecodeProduct(jx.DecodeBytes(e.Bytes()))
		require.NoError(t, err, want.ID)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Barcode, got.Barcode)
		assert.Equal(t, want.Stock, got.Stock)
		assert.Equal(t, want.BusinessID, got.BusinessID)
		assert.True(t, want.Price.Equal(got.Price), want.ID)
	}
}

func TestDecodeProduct_Invalid(t *testing.T) {
	for _, line := range []string{
		`{"id":"x","price":"1","stock":"three"}`,
		`{"id":"x","price":"1","stock":-2}`,
		`{"name":"no id","price":"1"}`,
		`not json`,
	} {
		_, err := DecodeProduct(jx.DecodeStr(line))
		assert.Error(t, err, line)
	}
}
