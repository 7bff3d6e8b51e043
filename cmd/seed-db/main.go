package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/pos-checkout/db"
	"github.com/xenking/pos-checkout/internal/catalogfile"
	"github.com/xenking/pos-checkout/internal/domain/auth"
	"github.com/xenking/pos-checkout/internal/storage/postgres"
)

type options struct {
	databaseURL  string
	catalogFile  string
	timezone     string
	apiKey       string
	apiKeyPepper string
	cashier      string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.catalogFile, "catalog-file", "", "catalog JSON file; empty seeds the bundled demo catalog")
	flag.StringVar(&opts.timezone, "timezone", "Local", "IANA zone for date-only promotion bounds")
	flag.StringVar(&opts.apiKey, "api-key", "", "terminal API key to seed (or POS_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or POS_API_KEY_PEPPER env)")
	flag.StringVar(&opts.cashier, "cashier", "Default cashier", "cashier the seeded key is issued to")
	flag.Parse()

	lg := zap.Must(zap.NewDevelopment())
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if opts.apiKey == "" {
		opts.apiKey = os.Getenv("POS_SEED_API_KEY")
	}
	if opts.apiKey == "" {
		lg.Fatal("API key is required: set --api-key or POS_SEED_API_KEY")
	}
	if opts.apiKeyPepper == "" {
		opts.apiKeyPepper = os.Getenv("POS_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return errors.Wrapf(err, "load timezone %q", opts.timezone)
	}

	var c *catalogfile.Catalog
	if opts.catalogFile != "" {
		lg.Info("Reading catalog", zap.String("path", opts.catalogFile))
		c, err = catalogfile.Load(opts.catalogFile, loc)
	} else {
		lg.Info("Using bundled catalog")
		c, err = catalogfile.Decode(db.Catalog, loc)
	}
	if err != nil {
		return errors.Wrap(err, "load catalog")
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := postgres.NewBusinessRepository(pool).Upsert(ctx, c.Branches, c.Brands, c.BranchBrands); err != nil {
		return errors.Wrap(err, "seed directory")
	}
	lg.Info("Upserted directory",
		zap.Int("branches", len(c.Branches)),
		zap.Int("brands", len(c.Brands)),
		zap.Int("branch_brands", len(c.BranchBrands)),
	)

	if err := postgres.NewProductRepository(pool).Upsert(ctx, c.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	lg.Info("Upserted products", zap.Int("count", len(c.Products)))

	if err := postgres.NewPromotionRepository(pool).Upsert(ctx, c.Promotions); err != nil {
		return errors.Wrap(err, "seed promotions")
	}
	lg.Info("Upserted promotions", zap.Int("count", len(c.Promotions)))

	key := auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey([]byte(opts.apiKeyPepper), opts.apiKey),
		Name:    opts.cashier,
		Scopes:  []string{"checkout"},
	}
	if err := postgres.NewAPIKeyRepository(pool).Upsert(ctx, key); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	lg.Info("Upserted API key", zap.String("id", key.ID), zap.String("cashier", key.Name))

	return nil
}
