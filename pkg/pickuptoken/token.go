package pickuptoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Verification failures are distinguishable so callers can tell a stale
// token from a forged one.
var (
	ErrFormat    = errors.New("pickup token: malformed token")
	ErrSignature = errors.New("pickup token: signature mismatch")
	ErrExpired   = errors.New("pickup token: expired")
)

// Payload binds a pickup credential to one order, user and machine.
type Payload struct {
	OrderID   uuid.UUID `json:"order_id"`
	UserID    uuid.UUID `json:"user_id"`
	MachineID uuid.UUID `json:"machine_id"`
}

// signedPart is what the HMAC covers: the payload plus expiry, marshaled in
// declaration order so the byte form is canonical.
type signedPart struct {
	Data Payload `json:"data"`
	Exp  int64   `json:"exp"`
}

type envelope struct {
	Data Payload `json:"data"`
	Exp  int64   `json:"exp"`
	Sig  string  `json:"sig"`
}

// Issuer mints and verifies self-contained pickup tokens. Tokens are not
// persisted; the signature plus expiry make them self-verifying, which is
// why a token must never be reissued with a longer TTL than the pickup
// window.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer builds an Issuer with the given HMAC secret and TTL.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("pickup token secret is required")
	}
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock overrides the time source; tests only.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue produces an opaque base64url token for the payload.
func (i *Issuer) Issue(payload Payload) (string, error) {
	if payload.OrderID == uuid.Nil || payload.UserID == uuid.Nil || payload.MachineID == uuid.Nil {
		return "", errors.New("pickup token payload requires order, user and machine ids")
	}

	exp := i.now().Add(i.ttl).Unix()
	sig, err := i.sign(signedPart{Data: payload, Exp: exp})
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(envelope{Data: payload, Exp: exp, Sig: sig})
	if err != nil {
		return "", fmt.Errorf("encode pickup token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Verify checks the signature in constant time before trusting the expiry,
// then checks the expiry. An expired but validly signed token fails with
// ErrExpired; a bad signature with ErrSignature; undecodable input with
// ErrFormat.
func (i *Issuer) Verify(token string) (*Payload, error) {
	env, err := decode(token)
	if err != nil {
		return nil, err
	}

	expected, err := i.sign(signedPart{Data: env.Data, Exp: env.Exp})
	if err != nil {
		return nil, err
	}
	if !hmac.Equal([]byte(expected), []byte(env.Sig)) {
		return nil, ErrSignature
	}

	if i.now().Unix() > env.Exp {
		return nil, ErrExpired
	}

	payload := env.Data
	return &payload, nil
}

// IsExpired reports whether the token's embedded expiry has passed. It does
// not validate the signature; undecodable tokens count as expired.
func (i *Issuer) IsExpired(token string) bool {
	env, err := decode(token)
	if err != nil {
		return true
	}
	return i.now().Unix() > env.Exp
}

func (i *Issuer) sign(part signedPart) (string, error) {
	canonical, err := json.Marshal(part)
	if err != nil {
		return "", fmt.Errorf("encode signed payload: %w", err)
	}
	mac := hmac.New(sha256.New, i.secret)
	mac.Write(canonical)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

func decode(token string) (*envelope, error) {
	if token == "" {
		return nil, ErrFormat
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrFormat
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, ErrFormat
	}
	if env.Sig == "" || env.Exp == 0 {
		return nil, ErrFormat
	}
	return &env, nil
}
