package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vendhub/vendhub-backend/api/controllers"
	webhookcontrollers "github.com/vendhub/vendhub-backend/api/controllers/webhooks"
	"github.com/vendhub/vendhub-backend/api/middleware"
	checkoutsvc "github.com/vendhub/vendhub-backend/internal/checkout"
	"github.com/vendhub/vendhub-backend/internal/fulfillment"
	"github.com/vendhub/vendhub-backend/internal/inventory"
	machinesvc "github.com/vendhub/vendhub-backend/internal/machines"
	ordersvc "github.com/vendhub/vendhub-backend/internal/orders"
	productsvc "github.com/vendhub/vendhub-backend/internal/products"
	usersvc "github.com/vendhub/vendhub-backend/internal/users"
	"github.com/vendhub/vendhub-backend/pkg/config"
	"github.com/vendhub/vendhub-backend/pkg/db"
	"github.com/vendhub/vendhub-backend/pkg/logger"
	"github.com/vendhub/vendhub-backend/pkg/metrics"
	"github.com/vendhub/vendhub-backend/pkg/pickuptoken"
	"github.com/vendhub/vendhub-backend/pkg/stripe"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *prometheus.Registry
	DB      db.Pinger

	Users     usersvc.Service
	Products  productsvc.Service
	Machines  machinesvc.Service
	Inventory inventory.Service
	Orders    ordersvc.Service
	Checkout  checkoutsvc.Service

	Fulfillment    fulfillment.Service
	WebhookGuard   *fulfillment.IdempotencyGuard
	WebhookMetrics *metrics.WebhookMetrics
	StripeClient   *stripe.Client
	TokenIssuer    *pickuptoken.Issuer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.Fulfillment, deps.StripeClient, deps.WebhookGuard, deps.WebhookMetrics, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.Register(deps.Users, cfg.JWT, logg))
	})

	// The machine firmware authenticates with a shared credential at the
	// edge, not a user JWT; verify stays outside the auth group.
	r.Post("/api/v1/pickup/verify", controllers.VerifyPickup(deps.TokenIssuer, deps.Orders, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/me", controllers.Me(deps.Users, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(deps.Orders, logg))
			r.Post("/{orderID}/payment-intent", controllers.CreatePaymentIntent(deps.Checkout, logg))
			r.Get("/{orderID}/status", controllers.OrderStatus(deps.Orders, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(deps.Products, logg))
			r.Post("/", controllers.CreateProduct(deps.Products, logg))
			r.Patch("/{productID}", controllers.UpdateProduct(deps.Products, logg))
		})

		r.Route("/machines", func(r chi.Router) {
			r.Get("/", controllers.ListMachines(deps.Machines, logg))
			r.Post("/", controllers.CreateMachine(deps.Machines, logg))
			r.Patch("/{machineID}", controllers.UpdateMachine(deps.Machines, logg))
			r.Get("/{machineID}/slots", controllers.ListMachineSlots(deps.Inventory, logg))
			r.Post("/{machineID}/slots/restock", controllers.RestockSlot(deps.Inventory, logg))
		})
	})

	return r
}
