package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stripe/stripe-go/v84"

	"github.com/vendhub/vendhub-backend/internal/fulfillment"
	"github.com/vendhub/vendhub-backend/pkg/config"
	"github.com/vendhub/vendhub-backend/pkg/logger"
	"github.com/vendhub/vendhub-backend/pkg/pickuptoken"
	stripeclient "github.com/vendhub/vendhub-backend/pkg/stripe"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubFulfillment struct{}

func (stubFulfillment) HandleEvent(context.Context, *stripe.Event) (fulfillment.Outcome, error) {
	return fulfillment.OutcomeIgnored, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Issuer = "vendhub-test"
	cfg.JWT.ExpirationMinutes = 60

	stripeClient, err := stripeclient.NewClient(context.Background(), config.StripeConfig{
		APIKey:         "sk_test_123",
		PublishableKey: "pk_test_123",
		WebhookSecret:  "whsec_test",
		Env:            "test",
	}, nil)
	if err != nil {
		t.Fatalf("stripe client: %v", err)
	}

	issuer, err := pickuptoken.NewIssuer("pickup-secret", 15*time.Minute)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}

	return NewRouter(Deps{
		Config:       cfg,
		Logger:       logger.New(logger.Options{ServiceName: "router-test"}),
		Metrics:      prometheus.NewRegistry(),
		Fulfillment:  stubFulfillment{},
		StripeClient: stripeClient,
		TokenIssuer:  issuer,
	})
}

func TestRouterHealthLive(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-VendHub-Env") != "test" {
		t.Fatalf("expected env header, got %q", rec.Header().Get("X-VendHub-Env"))
	}
}

func TestRouterHealthReadyProbesDB(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Env = "test"

	for _, tc := range []struct {
		name   string
		pinger stubPinger
		want   int
	}{
		{name: "reachable", pinger: stubPinger{}, want: http.StatusOK},
		{name: "unreachable", pinger: stubPinger{err: errors.New("refused")}, want: http.StatusServiceUnavailable},
	} {
		t.Run(tc.name, func(t *testing.T) {
			router := NewRouter(Deps{
				Config: cfg,
				Logger: logger.New(logger.Options{ServiceName: "router-test"}),
				DB:     tc.pinger,
			})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestRouterMetricsExposed(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouterProtectedRoutesRequireAuth(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/api/v1/orders/", "/api/v1/products/", "/api/v1/machines/"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{}"))
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s, got %d", path, rec.Code)
		}
	}
}

func TestRouterWebhookRejectsMissingSignature(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
