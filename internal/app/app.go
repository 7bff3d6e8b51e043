package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/pos-checkout/db"
	"github.com/xenking/pos-checkout/internal/catalogfile"
	"github.com/xenking/pos-checkout/internal/domain/auth"
	"github.com/xenking/pos-checkout/internal/domain/business"
	"github.com/xenking/pos-checkout/internal/domain/checkout"
	"github.com/xenking/pos-checkout/internal/domain/pricing"
	"github.com/xenking/pos-checkout/internal/domain/product"
	"github.com/xenking/pos-checkout/internal/domain/promotion"
	"github.com/xenking/pos-checkout/internal/handler"
	"github.com/xenking/pos-checkout/internal/publisher"
	"github.com/xenking/pos-checkout/internal/storage/memory"
	"github.com/xenking/pos-checkout/internal/storage/postgres"
	"github.com/xenking/pos-checkout/internal/storage/rediscache"
	"github.com/xenking/pos-checkout/pkg/health"
	"github.com/xenking/pos-checkout/pkg/httpmiddleware"
)

// repositories is the storage the service runs on.
type repositories struct {
	products     product.Repository
	promotions   promotion.Repository
	directory    business.Repository
	transactions checkout.Repository
	apikeys      auth.Repository
	close        func()
}

// openPostgres connects, migrates and registers the readiness check.
func openPostgres(ctx context.Context, cfg *Config, healthSvc *health.Health) (*repositories, error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))

	return &repositories{
		products:     postgres.NewProductRepository(pool),
		promotions:   postgres.NewPromotionRepository(pool),
		directory:    postgres.NewBusinessRepository(pool),
		transactions: postgres.NewTransactionRepository(pool),
		apikeys:      postgres.NewAPIKeyRepository(pool),
		close:        pool.Close,
	}, nil
}

// openMemory serves the catalog file, or the bundled catalog, from memory.
// Transactions live until the process exits.
func openMemory(cfg *Config, loc *time.Location) (*repositories, error) {
	var (
		c   *catalogfile.Catalog
		err error
	)
	if cfg.CatalogFile != "" {
		c, err = catalogfile.Load(cfg.CatalogFile, loc)
	} else {
		c, err = catalogfile.Decode(db.Catalog, loc)
	}
	if err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}

	store := memory.NewStore(c)
	pepper := []byte(cfg.APIKeyPepper)
	if err := store.APIKeys.Upsert(context.Background(), auth.APIKeyInfo{
		ID:      "terminal",
		KeyHash: auth.HashKey(pepper, cfg.TerminalKey),
		Name:    "terminal",
	}); err != nil {
		return nil, errors.Wrap(err, "register terminal key")
	}

	return &repositories{
		products:     store.Products,
		promotions:   store.Promotions,
		directory:    store.Business,
		transactions: store.Transactions,
		apikeys:      store.APIKeys,
		close:        func() {},
	}, nil
}

// withCache fronts the catalog with Redis and reports Redis as a degraded
// dependency.
func (r *repositories) withCache(cfg RedisConfig, healthSvc *health.Health) error {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	healthSvc.AddDegradedCheck("redis", 2*time.Second, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})

	r.products = rediscache.NewProductRepository(r.products, client, cfg.TTL)
	r.promotions = rediscache.NewPromotionRepository(r.promotions, client, cfg.TTL)
	closeStore := r.close
	r.close = func() {
		_ = client.Close()
		closeStore()
	}
	return nil
}

// server is the assembled HTTP surface and the resources behind it.
type server struct {
	handler http.Handler
	health  *health.Health
	close   func()
}

// build wires storage, the checkout service and the middleware chain.
func build(ctx context.Context, lg *zap.Logger, cfg *Config, t httpmiddleware.TelemetryProvider) (_ *server, err error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	rate, err := cfg.Rate()
	if err != nil {
		return nil, err
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddDegradedCheck("gc_pause", time.Second, health.GCMaxPauseCheck(250*time.Millisecond))

	// Repositories.
	var repos *repositories
	if cfg.MemoryMode() {
		repos, err = openMemory(cfg, loc)
	} else {
		repos, err = openPostgres(ctx, cfg, healthSvc)
	}
	if err != nil {
		return nil, err
	}
	closeAll := func() { repos.close() }
	defer func() {
		if err != nil {
			closeAll()
		}
	}()

	if cfg.Redis.URL != "" {
		if err := repos.withCache(cfg.Redis, healthSvc); err != nil {
			return nil, err
		}
	}

	// Transaction events.
	var events checkout.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		p := publisher.New(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		brokers := cfg.Kafka.Brokers
		healthSvc.AddDegradedCheck("kafka", 2*time.Second, func(ctx context.Context) error {
			return publisher.Ping(ctx, brokers...)
		})
		events = p
		closeAll = func() {
			if err := p.Close(); err != nil {
				lg.Warn("Close publisher", zap.Error(err))
			}
			repos.close()
		}
	}

	// Domain services.
	resolver := pricing.NewResolver(rate)
	checkoutSvc, err := checkout.NewService(repos.products, repos.promotions, repos.transactions, checkout.Options{
		Resolver:       &resolver,
		Publisher:      events,
		MeterProvider:  t.MeterProvider(),
		TracerProvider: t.TracerProvider(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create checkout service")
	}

	// HTTP handlers.
	h := handler.New(
		handler.Config{ImageBaseURL: cfg.ImageBaseURL, Location: loc},
		checkoutSvc,
		repos.products,
		repos.promotions,
		repos.directory,
	)
	security := handler.NewSecurity(repos.apikeys, []byte(cfg.APIKeyPepper))

	// Router: health endpoints + API routes on one server.
	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	router.Mount("/api", h.Routes(security.Middleware))
	routeFinder := httpmiddleware.MakeRouteFinder(router)

	return &server{
		handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.APIKeyHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				KeyFunc: httpmiddleware.KeyByHeader(handler.APIKeyHeader),
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Instrument("pos-api", routeFinder, t),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
		health: healthSvc,
		close:  closeAll,
	}, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.Bool("memory_mode", cfg.MemoryMode()),
	)

	srv, err := build(ctx, zctx.From(ctx), cfg, m)
	if err != nil {
		return err
	}
	defer srv.close()

	healthSvc := srv.health
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           srv.handler,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
