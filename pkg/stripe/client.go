package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/vendhub/vendhub-backend/pkg/config"
	"github.com/vendhub/vendhub-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	// ephemeralKeyAPIVersion pins the mobile SDK contract for ephemeral keys.
	ephemeralKeyAPIVersion = "2025-03-31.basil"
)

var (
	errAPIKeyRequired         = errors.New("stripe api key is required")
	errPublishableKeyRequired = errors.New("stripe publishable key is required")
	errSecretRequired         = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv       = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps Stripe's API client plus env-specific metadata. It is built
// once at process start and injected everywhere; no package-level mutable
// state beyond the SDK's own.
type Client struct {
	api            *stripe.Client
	environment    string
	signingSecret  string
	publishableKey string
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	publishableKey := strings.TrimSpace(cfg.PublishableKey)
	if publishableKey == "" {
		return nil, errPublishableKeyRequired
	}

	signingSecret := strings.TrimSpace(cfg.WebhookSecret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	api := stripe.NewClient(apiKey)

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		api:            api,
		environment:    env,
		signingSecret:  signingSecret,
		publishableKey: publishableKey,
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// PublishableKey returns the client-usable publishable key. The secret key
// is never exposed.
func (c *Client) PublishableKey() string {
	if c == nil {
		return ""
	}
	return c.publishableKey
}

// ConstructEvent verifies the raw webhook payload against the signature
// header and returns the typed event.
func (c *Client) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, c.signingSecret)
}

// CreateCustomer registers a gateway customer for the given user.
func (c *Client) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	customer, err := c.api.V1Customers.Create(ctx, &stripe.CustomerCreateParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return customer.ID, nil
}

// IntentParams carries everything needed to open a payment intent.
type IntentParams struct {
	AmountCents    int64
	Currency       string
	CustomerID     string
	OrderID        string
	IdempotencyKey string
}

// CreatePaymentIntent opens (or, under an idempotency-key replay, returns
// the previously opened) payment intent for an order.
func (c *Client) CreatePaymentIntent(ctx context.Context, params IntentParams) (*stripe.PaymentIntent, error) {
	create := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(params.Currency),
		Customer: stripe.String(params.CustomerID),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{"order_id": params.OrderID},
	}
	create.SetIdempotencyKey(params.IdempotencyKey)

	intent, err := c.api.V1PaymentIntents.Create(ctx, create)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return intent, nil
}

// CreateEphemeralKey mints a short-lived client credential for the
// customer.
func (c *Client) CreateEphemeralKey(ctx context.Context, customerID string) (string, error) {
	key, err := c.api.V1EphemeralKeys.Create(ctx, &stripe.EphemeralKeyCreateParams{
		Customer:      stripe.String(customerID),
		StripeVersion: stripe.String(ephemeralKeyAPIVersion),
	})
	if err != nil {
		return "", fmt.Errorf("create ephemeral key: %w", err)
	}
	return key.Secret, nil
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
