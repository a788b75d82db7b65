package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/vendhub/vendhub-backend/api/responses"
	"github.com/vendhub/vendhub-backend/internal/fulfillment"
	pkgerrors "github.com/vendhub/vendhub-backend/pkg/errors"
	"github.com/vendhub/vendhub-backend/pkg/logger"
	"github.com/vendhub/vendhub-backend/pkg/metrics"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) (fulfillment.Outcome, error)
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type eventVerifier interface {
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// Ack is the acknowledgement body returned to the gateway.
type Ack struct {
	Received  bool   `json:"received"`
	EventID   string `json:"eventId"`
	EventType string `json:"eventType"`
}

// StripeWebhook receives payment gateway events, verifies their signature
// and hands them to the fulfillment pipeline. Anything acknowledged with
// 200 stops the gateway's retries, so failures that need a retry return
// an error status instead.
func StripeWebhook(svc StripeWebhookService, verifier eventVerifier, guard stripeWebhookGuard, mets *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}
		if len(payload) == 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body missing"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		event, err := verifier.ConstructEvent(payload, sigHeader)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "verify signature"))
			return
		}

		ack := Ack{Received: true, EventID: event.ID, EventType: string(event.Type)}

		if guard != nil {
			seen, err := guard.CheckAndMark(ctx, event.ID)
			if err != nil {
				// Redis being down must not drop events; fall through
				// to the durable database dedup.
				if logg != nil {
					logg.Error(ctx, "webhook idempotency check failed", err)
				}
			} else if seen {
				mets.IncHandled(string(event.Type), string(fulfillment.OutcomeDuplicate))
				responses.WriteSuccess(w, ack)
				return
			}
		}

		start := time.Now()
		outcome, err := svc.HandleEvent(ctx, &event)
		mets.ObserveDuration(string(event.Type), time.Since(start))
		if err != nil {
			if guard != nil {
				_ = guard.Delete(ctx, event.ID)
			}
			mets.IncFailed(string(event.Type))
			// Any handler failure answers 500 so the gateway retries the
			// delivery; business-rule codes stay out of the webhook reply.
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "handle webhook event"))
			return
		}

		mets.IncHandled(string(event.Type), string(outcome))
		if logg != nil {
			logCtx := logg.WithEventID(ctx, event.ID)
			logg.Info(logCtx, fmt.Sprintf("stripe event %s %s", event.Type, outcome))
		}
		responses.WriteSuccess(w, ack)
	}
}
