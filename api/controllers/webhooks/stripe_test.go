package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/vendhub/vendhub-backend/internal/fulfillment"
	pkgerrors "github.com/vendhub/vendhub-backend/pkg/errors"
	"github.com/vendhub/vendhub-backend/pkg/types"
)

type fakeWebhookService struct {
	calls   int
	outcome fulfillment.Outcome
	err     error
}

func (f *fakeWebhookService) HandleEvent(context.Context, *stripe.Event) (fulfillment.Outcome, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.outcome == "" {
		return fulfillment.OutcomeProcessed, nil
	}
	return f.outcome, nil
}

type fakeVerifier struct {
	err error
}

func (f *fakeVerifier) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if f.err != nil {
		return stripe.Event{}, f.err
	}
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return stripe.Event{}, err
	}
	return event, nil
}

type inMemoryStore struct {
	keys map[string]struct{}
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{keys: map[string]struct{}{}}
}

func (s *inMemoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = struct{}{}
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return "vendhub:idempotency:" + scope + ":" + id
}

func (s *inMemoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func eventPayload(t *testing.T, id string) []byte {
	t.Helper()

	event := &stripe.Event{
		ID:     id,
		Type:   stripe.EventTypePaymentIntentSucceeded,
		Object: "event",
		Data: &stripe.EventData{
			Raw: json.RawMessage(`{"id":"pi_1","amount":2500}`),
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func postEvent(handler http.HandlerFunc, payload []byte, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func newGuard(t *testing.T) *fulfillment.IdempotencyGuard {
	t.Helper()

	guard, err := fulfillment.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "stripe-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return guard
}

func TestStripeWebhook_AcknowledgesProcessedEvent(t *testing.T) {
	service := &fakeWebhookService{}
	handler := StripeWebhook(service, &fakeVerifier{}, newGuard(t), nil, nil)

	rec := postEvent(handler, eventPayload(t, "evt_1"), "t=1,v1=sig")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}

	var body types.SuccessEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	data, ok := body.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected payload %v", body.Data)
	}
	if data["received"] != true {
		t.Fatalf("expected received=true, got %v", data["received"])
	}
	if data["eventId"] != "evt_1" {
		t.Fatalf("unexpected event id %v", data["eventId"])
	}
	if data["eventType"] != string(stripe.EventTypePaymentIntentSucceeded) {
		t.Fatalf("unexpected event type %v", data["eventType"])
	}
}

func TestStripeWebhook_DuplicateShortCircuits(t *testing.T) {
	service := &fakeWebhookService{}
	handler := StripeWebhook(service, &fakeVerifier{}, newGuard(t), nil, nil)
	payload := eventPayload(t, "evt_1")

	if rec := postEvent(handler, payload, "t=1,v1=sig"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec := postEvent(handler, payload, "t=1,v1=sig")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected duplicate not processed, call count %d", service.calls)
	}
}

func TestStripeWebhook_MissingSignature(t *testing.T) {
	service := &fakeWebhookService{}
	handler := StripeWebhook(service, &fakeVerifier{}, newGuard(t), nil, nil)

	rec := postEvent(handler, eventPayload(t, "evt_1"), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatal("service should not be invoked without a signature")
	}
}

func TestStripeWebhook_MissingBody(t *testing.T) {
	service := &fakeWebhookService{}
	handler := StripeWebhook(service, &fakeVerifier{}, newGuard(t), nil, nil)

	rec := postEvent(handler, nil, "t=1,v1=sig")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d", rec.Code)
	}
}

func TestStripeWebhook_InvalidSignature(t *testing.T) {
	service := &fakeWebhookService{}
	verifier := &fakeVerifier{err: errors.New("signature mismatch")}
	handler := StripeWebhook(service, verifier, newGuard(t), nil, nil)

	rec := postEvent(handler, eventPayload(t, "evt_1"), "t=1,v1=bad")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatal("service should not be invoked on invalid signature")
	}
}

func TestStripeWebhook_HandlerFailureFreesRetry(t *testing.T) {
	service := &fakeWebhookService{err: errors.New("db down")}
	handler := StripeWebhook(service, &fakeVerifier{}, newGuard(t), nil, nil)
	payload := eventPayload(t, "evt_1")

	rec := postEvent(handler, payload, "t=1,v1=sig")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for handler failure, got %d", rec.Code)
	}

	// The redis mark was released, so the gateway's retry reaches the
	// service again.
	service.err = nil
	rec = postEvent(handler, payload, "t=1,v1=sig")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on retry, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 2 {
		t.Fatalf("expected retry to reach service, call count %d", service.calls)
	}
}

func TestStripeWebhook_BusinessRuleFailureAnswers500(t *testing.T) {
	service := &fakeWebhookService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock for slot A1")}
	handler := StripeWebhook(service, &fakeVerifier{}, newGuard(t), nil, nil)

	rec := postEvent(handler, eventPayload(t, "evt_1"), "t=1,v1=sig")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so the gateway retries, got %d", rec.Code)
	}

	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("expected internal error code, got %s", envelope.Error.Code)
	}
}
