package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vendhub/vendhub-backend/pkg/config"
)

func jwtConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "vendhub",
		ExpirationMinutes: 60,
	}
}

func TestMintAndParseRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := MintAccessToken(jwtConfig(), time.Now(), userID)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	claims, err := ParseAccessToken(jwtConfig(), token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("unexpected user id %s", claims.UserID)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := MintAccessToken(jwtConfig(), time.Now(), uuid.New())
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	cfg := jwtConfig()
	cfg.Secret = "different"
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected parse error for wrong secret")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := MintAccessToken(jwtConfig(), time.Now().Add(-2*time.Hour), uuid.New())
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	if _, err := ParseAccessToken(jwtConfig(), token); err == nil {
		t.Fatal("expected parse error for expired token")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	cfg := jwtConfig()
	cfg.Issuer = "someone-else"
	token, err := MintAccessToken(cfg, time.Now(), uuid.New())
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	if _, err := ParseAccessToken(jwtConfig(), token); err == nil {
		t.Fatal("expected parse error for wrong issuer")
	}
}
