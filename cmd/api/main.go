package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vendhub/vendhub-backend/api/routes"
	"github.com/vendhub/vendhub-backend/internal/checkout"
	"github.com/vendhub/vendhub-backend/internal/fulfillment"
	"github.com/vendhub/vendhub-backend/internal/inventory"
	"github.com/vendhub/vendhub-backend/internal/ledger"
	"github.com/vendhub/vendhub-backend/internal/loyalty"
	"github.com/vendhub/vendhub-backend/internal/machines"
	"github.com/vendhub/vendhub-backend/internal/orders"
	"github.com/vendhub/vendhub-backend/internal/products"
	"github.com/vendhub/vendhub-backend/internal/refunds"
	"github.com/vendhub/vendhub-backend/internal/users"
	"github.com/vendhub/vendhub-backend/pkg/config"
	"github.com/vendhub/vendhub-backend/pkg/db"
	"github.com/vendhub/vendhub-backend/pkg/logger"
	"github.com/vendhub/vendhub-backend/pkg/metrics"
	"github.com/vendhub/vendhub-backend/pkg/migrate"
	"github.com/vendhub/vendhub-backend/pkg/pickuptoken"
	"github.com/vendhub/vendhub-backend/pkg/redis"
	"github.com/vendhub/vendhub-backend/pkg/stripe"
)

const webhookGuardTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	tokenIssuer, err := pickuptoken.NewIssuer(cfg.Pickup.HMACSecret, cfg.Pickup.TTL())
	if err != nil {
		logg.Error(context.Background(), "failed to build pickup token issuer", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	ordersRepo := orders.NewRepository(conn)

	usersService, err := users.NewService(users.NewRepository(conn), stripeClient)
	if err != nil {
		fatal(logg, "users service", err)
	}
	productsService, err := products.NewService(products.NewRepository(conn))
	if err != nil {
		fatal(logg, "products service", err)
	}
	machinesService, err := machines.NewService(machines.NewRepository(conn))
	if err != nil {
		fatal(logg, "machines service", err)
	}
	inventoryService, err := inventory.NewService(inventory.NewRepository(conn))
	if err != nil {
		fatal(logg, "inventory service", err)
	}
	ledgerService, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		fatal(logg, "ledger service", err)
	}
	loyaltyService, err := loyalty.NewService(loyalty.NewRepository(conn))
	if err != nil {
		fatal(logg, "loyalty service", err)
	}
	refundsService, err := refunds.NewService(refunds.NewRepository(conn))
	if err != nil {
		fatal(logg, "refunds service", err)
	}

	ordersService, err := orders.NewService(orders.Params{
		Repo:           ordersRepo,
		TX:             dbClient,
		Products:       productsService,
		Machines:       machinesService,
		CheckoutWindow: cfg.Cron.CheckoutWindow,
	})
	if err != nil {
		fatal(logg, "orders service", err)
	}

	checkoutService, err := checkout.NewService(checkout.Params{
		OrdersRepo: ordersRepo,
		TX:         dbClient,
		Customers:  usersService,
		Gateway:    stripeClient,
	})
	if err != nil {
		fatal(logg, "checkout service", err)
	}

	fulfillmentService, err := fulfillment.NewService(fulfillment.Params{
		Events:     fulfillment.NewRepository(conn),
		OrdersRepo: ordersRepo,
		Ledger:     ledgerService,
		Inventory:  inventoryService,
		Loyalty:    loyaltyService,
		Refunds:    refundsService,
		Tokens:     tokenIssuer,
		TX:         dbClient,
		Logger:     logg,
	})
	if err != nil {
		fatal(logg, "fulfillment service", err)
	}

	webhookGuard, err := fulfillment.NewIdempotencyGuard(redisClient, webhookGuardTTL, "stripe-webhook")
	if err != nil {
		fatal(logg, "webhook guard", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:         cfg,
			Logger:         logg,
			Metrics:        registry,
			DB:             dbClient,
			Users:          usersService,
			Products:       productsService,
			Machines:       machinesService,
			Inventory:      inventoryService,
			Orders:         ordersService,
			Checkout:       checkoutService,
			Fulfillment:    fulfillmentService,
			WebhookGuard:   webhookGuard,
			WebhookMetrics: webhookMetrics,
			StripeClient:   stripeClient,
			TokenIssuer:    tokenIssuer,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func fatal(logg *logger.Logger, what string, err error) {
	logg.Error(context.Background(), "failed to create "+what, err)
	os.Exit(1)
}
