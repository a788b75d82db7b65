package controllers

import (
	"net/http"

	"github.com/vendhub/vendhub-backend/api/responses"
	checkoutsvc "github.com/vendhub/vendhub-backend/internal/checkout"
	pkgerrors "github.com/vendhub/vendhub-backend/pkg/errors"
	"github.com/vendhub/vendhub-backend/pkg/logger"
)

// CreatePaymentIntent prepares the gateway payment for an order. Safe to
// call repeatedly; the gateway-side idempotency key pins one intent per
// order.
func CreatePaymentIntent(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		intent, err := svc.CreateIntent(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, intent)
	}
}
