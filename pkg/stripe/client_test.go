package stripe

import (
	"context"
	"testing"

	"github.com/vendhub/vendhub-backend/pkg/config"
)

func validConfig() config.StripeConfig {
	return config.StripeConfig{
		APIKey:         "sk_test_abc",
		PublishableKey: "pk_test_abc",
		WebhookSecret:  "whsec_abc",
		Env:            "test",
	}
}

func TestNewClientValidConfig(t *testing.T) {
	client, err := NewClient(context.Background(), validConfig(), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.Environment() != "test" {
		t.Fatalf("unexpected env %q", client.Environment())
	}
	if client.SigningSecret() != "whsec_abc" {
		t.Fatalf("unexpected signing secret")
	}
	if client.PublishableKey() != "pk_test_abc" {
		t.Fatalf("unexpected publishable key")
	}
}

func TestNewClientRejectsMissingSecrets(t *testing.T) {
	cases := map[string]func(*config.StripeConfig){
		"api key":         func(c *config.StripeConfig) { c.APIKey = "" },
		"publishable key": func(c *config.StripeConfig) { c.PublishableKey = "" },
		"webhook secret":  func(c *config.StripeConfig) { c.WebhookSecret = "" },
	}
	for name, mutate := range cases {
		cfg := validConfig()
		mutate(&cfg)
		if _, err := NewClient(context.Background(), cfg, nil); err == nil {
			t.Fatalf("expected error for missing %s", name)
		}
	}
}

func TestNewClientRejectsKeyEnvMismatch(t *testing.T) {
	cfg := validConfig()
	cfg.Env = "live"
	if _, err := NewClient(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for test key in live env")
	}

	cfg = validConfig()
	cfg.APIKey = "sk_live_abc"
	if _, err := NewClient(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for live key in test env")
	}
}

func TestNewClientRejectsUnknownEnv(t *testing.T) {
	cfg := validConfig()
	cfg.Env = "staging"
	if _, err := NewClient(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown env")
	}
}
