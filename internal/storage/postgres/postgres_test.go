//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/pos-checkout/internal/domain/auth"
	"github.com/xenking/pos-checkout/internal/domain/business"
	"github.com/xenking/pos-checkout/internal/domain/checkout"
	"github.com/xenking/pos-checkout/internal/domain/product"
	"github.com/xenking/pos-checkout/internal/domain/promotion"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("pos"),
		tcpostgres.WithUsername("pos"),
		tcpostgres.WithPassword("pos"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Schema must be re-runnable on every start.
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRepositories(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	t.Run("directory", func(t *testing.T) {
		repo := NewBusinessRepository(pool)
		require.NoError(t, repo.Upsert(ctx,
			[]business.Branch{{ID: "br1", Name: "Makati", Address: "Ayala"}},
			[]business.Brand{{ID: "bd1", Name: "Cuptolyo"}},
			[]business.BranchBrand{{ID: "bb1", BranchID: "br1", BrandID: "bd1", Name: "Cuptolyo Makati"}},
		))
		branches, err := repo.ListBranches(ctx)
		require.NoError(t, err)
		assert.Equal(t, []business.Branch{{ID: "br1", Name: "Makati", Address: "Ayala"}}, branches)
		links, err := repo.ListBranchBrands(ctx)
		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, "bd1", links[0].BrandID)
	})

	t.Run("products", func(t *testing.T) {
		repo := NewProductRepository(pool)
		require.NoError(t, repo.Upsert(ctx, []product.Product{
			{ID: "p1", Name: "Latte", Price: d("145.00"), Category: "Beverages", Barcode: "480001", Stock: 12, BusinessID: "bb1"},
			{ID: "p2", Name: "Muffin", Price: d("75.50"), Category: "Food", Stock: 3},
		}))
		require.NoError(t, repo.Upsert(ctx, []product.Product{
			{ID: "p2", Name: "Muffin", Price: d("80"), Category: "Food", Stock: 4},
		}))

		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "480001", all[0].Barcode)

		p, err := repo.GetByID(ctx, "p2")
		require.NoError(t, err)
		assert.True(t, d("80").Equal(p.Price))
		assert.Equal(t, 4, p.Stock)

		_, err = repo.GetByID(ctx, "missing")
		require.ErrorIs(t, err, product.ErrNotFound)
	})

	t.Run("promotions", func(t *testing.T) {
		repo := NewPromotionRepository(pool)
		start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
		require.NoError(t, repo.Upsert(ctx, []promotion.Promotion{
			{ID: "b", Name: "BOGO", Kind: promotion.KindBOGO, Value: d("1"), Products: []string{"p1"},
				StartDate: start, EndDate: end, Window: &promotion.Window{Start: 14 * 60, End: 17 * 60}},
			{ID: "a", Name: "Ten", Kind: promotion.KindPercentage, Value: d("10"), StartDate: start, EndDate: end},
		}))

		promos, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, promos, 2)
		assert.Equal(t, "b", promos[0].ID, "insertion order is kept")
		require.NotNil(t, promos[0].Window)
		assert.Equal(t, "14:00", promos[0].Window.Start.String())
		assert.Equal(t, []string{"p1"}, promos[0].Products)
		assert.Nil(t, promos[1].Window)
		assert.Empty(t, promos[1].Products)
		assert.True(t, promos[1].StartDate.Equal(start))
	})

	t.Run("api keys", func(t *testing.T) {
		repo := NewAPIKeyRepository(pool)
		require.NoError(t, repo.Upsert(ctx, auth.APIKeyInfo{ID: "k1", KeyHash: "abc", Name: "maria"}))
		info, err := repo.FindByHash(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "maria", info.Name)
		_, err = repo.FindByHash(ctx, "nope")
		require.ErrorIs(t, err, auth.ErrKeyNotFound)
	})

	t.Run("transactions", func(t *testing.T) {
		repo := NewTransactionRepository(pool)
		day := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
		txs := []checkout.Transaction{
			{ID: "tx-1", Subtotal: d("290"), Discount: d("0"), Tax: d("34.8"), Total: d("324.8"),
				Method: checkout.MethodCash, CashTendered: d("400"), Change: d("75.2"), Cashier: "maria",
				CreatedAt: day.Add(9 * time.Hour),
				Items: []checkout.Item{{ProductID: "p1", Name: "Latte", Price: d("145"), Quantity: 2}}},
			{ID: "tx-2", Subtotal: d("80"), Discount: d("8"), Tax: d("8.64"), Total: d("80.64"),
				PromotionID: "a", Method: checkout.MethodDigital, Reference: "GC-1",
				CreatedAt: day.Add(30 * time.Hour),
				Items: []checkout.Item{
					{ProductID: "p2", Name: "Muffin", Price: d("80"), Quantity: 1},
				}},
			{ID: "tx-3", Subtotal: d("225"), Discount: d("0"), Tax: d("27"), Total: d("252"),
				Method: checkout.MethodDigital, Reference: "GC-2",
				CreatedAt: day.Add(31 * time.Hour),
				Items: []checkout.Item{
					{ProductID: "p1", Name: "Latte", Price: d("145"), Quantity: 1},
					{ProductID: "p2", Name: "Muffin", Price: d("80"), Quantity: 1},
				}},
		}
		for i := range txs {
			require.NoError(t, repo.Create(ctx, &txs[i]))
		}
		require.Error(t, repo.Create(ctx, &txs[0]), "duplicate id")

		page, err := repo.List(ctx, checkout.HistoryQuery{})
		require.NoError(t, err)
		assert.Equal(t, 3, page.TotalCount)
		assert.True(t, d("657.44").Equal(page.Revenue))
		require.Len(t, page.Transactions, 3)
		assert.Equal(t, "tx-3", page.Transactions[0].ID)
		require.Len(t, page.Transactions[0].Items, 2)
		assert.Equal(t, "Latte", page.Transactions[0].Items[0].Name)
		assert.True(t, d("75.2").Equal(page.Transactions[2].Change))

		page, err = repo.List(ctx, checkout.HistoryQuery{Search: "latte", Method: checkout.MethodDigital})
		require.NoError(t, err)
		require.Len(t, page.Transactions, 1)
		assert.Equal(t, "tx-3", page.Transactions[0].ID)

		page, err = repo.List(ctx, checkout.HistoryQuery{Date: day})
		require.NoError(t, err)
		assert.Equal(t, 1, page.TotalCount)

		page, err = repo.List(ctx, checkout.HistoryQuery{Page: 2, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, page.TotalCount)
		require.Len(t, page.Transactions, 1)
		assert.Equal(t, "tx-1", page.Transactions[0].ID)

		page, err = repo.List(ctx, checkout.HistoryQuery{Search: "100%"})
		require.NoError(t, err)
		assert.Zero(t, page.TotalCount)
		assert.Empty(t, page.Transactions)
	})
}
