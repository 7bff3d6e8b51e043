package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pos-checkout/db"
	"github.com/xenking/pos-checkout/internal/catalogfile"
	"github.com/xenking/pos-checkout/internal/domain/auth"
	"github.com/xenking/pos-checkout/internal/domain/checkout"
	"github.com/xenking/pos-checkout/internal/domain/product"
)

func TestStore_Catalog(t *testing.T) {
	c, err := catalogfile.Decode(db.Catalog, time.UTC)
	require.NoError(t, err)
	s := NewStore(c)
	ctx := context.Background()

	products, err := s.Products.List(ctx)
	require.NoError(t, err)
	assert.Len(t, products, len(c.Products))

	products[0].Name = "mutated"
	p, err := s.Products.GetByID(ctx, c.Products[0].ID)
	require.NoError(t, err)
	assert.Equal(t, c.Products[0].Name, p.Name, "list returns a copy")

	_, err = s.Products.GetByID(ctx, "missing")
	require.ErrorIs(t, err, product.ErrNotFound)

	promos, err := s.Promotions.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, c.Promotions[0].ID, promos[0].ID)

	links, err := s.Business.ListBranchBrands(ctx)
	require.NoError(t, err)
	assert.Len(t, links, len(c.BranchBrands))
}

func TestTransactionRepository(t *testing.T) {
	repo := NewTransactionRepository()
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	tx := &checkout.Transaction{
		ID: "t1", Total: decimal.NewFromInt(10), Method: checkout.MethodCash, CreatedAt: now,
		Items: []checkout.Item{{ProductID: "1", Name: "Tea", Quantity: 1}},
	}
	require.NoError(t, repo.Create(ctx, tx))
	tx.Items[0].Name = "changed"

	var dup *DuplicateError
	require.ErrorAs(t, repo.Create(ctx, tx), &dup)

	require.NoError(t, repo.Create(ctx, &checkout.Transaction{
		ID: "t2", Total: decimal.NewFromInt(5), Method: checkout.MethodDigital, CreatedAt: now.Add(time.Hour),
	}))

	page, err := repo.List(ctx, checkout.HistoryQuery{Search: "tea"})
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, "t1", page.Transactions[0].ID)

	page, err = repo.List(ctx, checkout.HistoryQuery{})
	require.NoError(t, err)
	assert.Equal(t, "t2", page.Transactions[0].ID)
	assert.True(t, decimal.NewFromInt(15).Equal(page.Revenue))
}

func TestAPIKeyRepository(t *testing.T) {
	repo := NewAPIKeyRepository(auth.APIKeyInfo{ID: "k1", KeyHash: "h1", Name: "maria"})
	ctx := context.Background()

	info, err := repo.FindByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "maria", info.Name)

	_, err = repo.FindByHash(ctx, "h2")
	require.ErrorIs(t, err, auth.ErrKeyNotFound)

	require.NoError(t, repo.Upsert(ctx, auth.APIKeyInfo{ID: "k2", KeyHash: "h2", Name: "jose"}))
	info, err = repo.FindByHash(ctx, "h2")
	require.NoError(t, err)
	assert.Equal(t, "jose", info.Name)
}
