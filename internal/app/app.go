// Package app wires the pricing service together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-pricing/internal/catalog"
	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/order"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/handler"
	"github.com/xenking/kart-pricing/internal/messaging/kafka"
	"github.com/xenking/kart-pricing/internal/session"
	"github.com/xenking/kart-pricing/internal/storage/memory"
	"github.com/xenking/kart-pricing/internal/storage/postgres"
	redisstore "github.com/xenking/kart-pricing/internal/storage/redis"
	"github.com/xenking/kart-pricing/pkg/health"
	"github.com/xenking/kart-pricing/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pricingCfg, err := cfg.PricingConfig()
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(cfg.Catalog.Location)
	if err != nil {
		return errors.Wrap(err, "catalog location")
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New(lg.Named("health"))
	healthSvc.AddReadiness(health.Check{Name: "postgres", Timeout: 5 * time.Second, Func: health.PingCheck(pool)})
	healthSvc.AddLiveness(health.Check{Name: "goroutines", Func: health.GoroutineCountCheck(10000)})

	// Session state: Redis when configured, process memory otherwise.
	var sessions session.Store
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = client.Close() }()

		store := redisstore.NewStore(client, cfg.Redis.Prefix, cfg.Redis.SessionTTL)
		if err := store.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping redis")
		}
		healthSvc.AddReadiness(health.Check{Name: "redis", Timeout: 2 * time.Second, Func: health.PingCheck(store)})
		sessions = store
	} else {
		lg.Warn("Redis is not configured, carts are kept in memory")
		sessions = memory.NewStore()
	}

	// Coupon catalog, loaded once in the background. Sessions opened
	// before it finishes refresh when it does.
	var src coupon.Source = postgres.NewCouponStore(pool)
	if cfg.Catalog.Source == "http" {
		src = catalog.NewHTTPSource(nil, cfg.Catalog.URL, cfg.Catalog.Timeout, loc, lg.Named("catalog"))
	}
	coupons := coupon.NewCatalog(lg.Named("catalog"))
	healthSvc.AddReadiness(health.Check{Name: "coupons", FailureThreshold: 1, Func: health.LoadedCheck("coupon catalog", coupons)})

	metrics, err := pricing.NewMetrics(m.MeterProvider().Meter("kart/pricing"))
	if err != nil {
		return errors.Wrap(err, "create metrics")
	}

	manager := session.NewManager(session.Config{
		Pricing:     pricingCfg,
		IdleTimeout: cfg.Session.IdleTimeout,
		Location:    loc,
	}, coupons, sessions, lg.Named("session"), metrics.Observe)

	// Orders, with events when Kafka is configured.
	var publisher order.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		p := kafka.NewPublisher(kafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		defer func() {
			if err := p.Close(); err != nil {
				lg.Error("Close kafka writer", zap.Error(err))
			}
		}()
		publisher = p
	}
	orderService := order.NewService(postgres.NewOrderRepository(pool), publisher, lg.Named("order"))

	h := handler.NewHandler(
		handler.Config{ImageBaseURL: cfg.ImageBaseURL},
		postgres.NewProductRepository(pool),
		manager,
		orderService,
		metrics,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.SessionHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{handler.SessionHeader, httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				KeyFunc: httpmiddleware.HeaderKey(handler.SessionHeader),
			}),
			httpmiddleware.Instrument("kart-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()
	healthSvc.SetReady(true)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// A failed load is logged by the catalog and leaves it empty.
		_ = coupons.Load(gCtx, src)
		return nil
	})
	g.Go(func() error {
		return manager.Run(gCtx)
	})
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}
