// Package app wires the checkout service: configuration, storage, domain
// services, HTTP surface, and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/evercart/checkout/internal/domain/discount"
	"github.com/evercart/checkout/internal/domain/order"
	"github.com/evercart/checkout/internal/domain/payment"
	"github.com/evercart/checkout/internal/domain/pricing"
	"github.com/evercart/checkout/internal/gateway"
	"github.com/evercart/checkout/internal/handler"
	"github.com/evercart/checkout/internal/storage/postgres"
	storageredis "github.com/evercart/checkout/internal/storage/redis"
	"github.com/evercart/checkout/pkg/health"
	"github.com/evercart/checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis for the idempotency store.
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return errors.Wrap(err, "parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	// Health probes.
	healthSvc := health.NewService()
	healthSvc.AddReadiness("postgres", 5*time.Second, health.DatabaseCheck(pool))
	healthSvc.AddReadiness("redis", 5*time.Second, health.RedisCheck(redisClient))
	healthSvc.AddLiveness("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	// Repositories and storage-backed services.
	productRepo := postgres.NewProductRepository(pool)
	discountRepo := postgres.NewDiscountRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)
	ledger := postgres.NewInventoryLedger(pool, cfg.Reservation.TTL)
	idemStore := storageredis.NewIdempotencyStore(redisClient, cfg.Idempotency.TTL)

	// Domain services.
	validator := discount.NewRepoValidator(discountRepo)
	calc := pricing.NewCalculator(pricing.Params{
		FreeShippingThreshold: decimal.NewFromFloat(cfg.Shipping.FreeThreshold),
		FlatShippingRate:      decimal.NewFromFloat(cfg.Shipping.FlatRate),
	})
	charger := payment.NewRetryingGateway(
		gateway.NewHTTPGateway(&http.Client{}, cfg.Gateway.Endpoint, cfg.Gateway.APIKey),
		cfg.Gateway.Timeout,
	)
	metrics, err := order.NewMetrics(m.MeterProvider().Meter("checkout"))
	if err != nil {
		return errors.Wrap(err, "create metrics")
	}
	orchestrator := order.NewOrchestrator(
		validator, calc, ledger, charger, orderRepo, idemStore,
		cfg.Currency, metrics,
	)

	// Abandoned holds come back through the periodic expiry sweep.
	go sweepReservations(ctx, lg, ledger, cfg.Reservation.SweepInterval)

	// HTTP surface.
	h := handler.NewHandler(productRepo, orchestrator)
	requireKey := handler.RequireAPIKey(apikeyRepo, []byte(cfg.APIKeyPepper))

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", http.StripPrefix("/api", h.Routes(requireKey)))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowedOrigins: cfg.CORS.Origins,
				AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key", "X-User-ID", "X-Request-ID"},
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("checkout-api",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			httpmiddleware.LogRequests(),
		),
	}

	healthSvc.SetReady(true)

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

// sweepReservations periodically reclaims expired inventory holds.
func sweepReservations(ctx context.Context, lg *zap.Logger, ledger *postgres.InventoryLedger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			released, err := ledger.ReleaseExpired(ctx, now)
			if err != nil {
				lg.Warn("release expired reservations", zap.Error(err))
				continue
			}
			if released > 0 {
				lg.Info("released expired reservations", zap.Int("count", released))
			}
		}
	}
}
