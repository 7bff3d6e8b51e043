//go:build integration

package app

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/pos-checkout/db"
	"github.com/xenking/pos-checkout/internal/catalogfile"
	"github.com/xenking/pos-checkout/internal/domain/auth"
	"github.com/xenking/pos-checkout/internal/storage/postgres"
)

func postgresURL(t *testing.T) string {
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
	return dsn
}

// seed loads the bundled catalog and the terminal key the way seed-db does.
func seed(t *testing.T, dsn string) {
	t.Helper()
	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, postgres.RunMigrations(ctx, pool))

	c, err := catalogfile.Decode(db.Catalog, time.UTC)
	require.NoError(t, err)
	require.NoError(t, postgres.NewBusinessRepository(pool).Upsert(ctx, c.Branches, c.Brands, c.BranchBrands))
	require.NoError(t, postgres.NewProductRepository(pool).Upsert(ctx, c.Products))
	require.NoError(t, postgres.NewPromotionRepository(pool).Upsert(ctx, c.Promotions))
	require.NoError(t, postgres.NewAPIKeyRepository(pool).Upsert(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey([]byte("pepper"), terminalKey),
		Name:    "maria",
		Scopes:  []string{"checkout"},
	}))
}

func TestServer_Postgres(t *testing.T) {
	dsn := postgresURL(t)
	seed(t, dsn)

	ts, _ := testServer(t, func(c *Config) {
		c.DatabaseURL = dsn
		c.TerminalKey = ""
	})

	resp := do(t, ts, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sess := decodeJSON[sessionResponse](t, do(t, ts, http.MethodPost, "/api/sessions", nil))
	base := "/api/sessions/" + sess.ID

	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, base+"/items", map[string]any{"productId": "3"}).StatusCode)
	require.Equal(t, http.StatusOK,
		do(t, ts, http.MethodPut, base+"/promotion", map[string]any{"promotionId": "promo-10off"}).StatusCode)
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, base+"/checkout", nil).StatusCode)
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, base+"/payment", map[string]any{"method": "digital"}).StatusCode)

	resp = do(t, ts, http.MethodPost, base+"/payment/confirm", map[string]any{"reference": "GC-1001"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tx := decodeJSON[transactionResponse](t, resp)
	// 129.99 less 12.999, plus 12% tax.
	assert.Equal(t, "131.03", tx.Total)

	history := decodeJSON[historyResponse](t, do(t, ts, http.MethodGet, "/api/transactions?method=digital", nil))
	assert.Equal(t, 1, history.TotalCount)
}
