package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vendhub/vendhub-backend/api/responses"
	"github.com/vendhub/vendhub-backend/api/validators"
	ordersvc "github.com/vendhub/vendhub-backend/internal/orders"
	"github.com/vendhub/vendhub-backend/pkg/enums"
	pkgerrors "github.com/vendhub/vendhub-backend/pkg/errors"
	"github.com/vendhub/vendhub-backend/pkg/logger"
	"github.com/vendhub/vendhub-backend/pkg/pickuptoken"
)

type tokenVerifier interface {
	Verify(token string) (*pickuptoken.Payload, error)
}

type verifyPickupRequest struct {
	Token string `json:"token" validate:"required"`
}

type verifyPickupResponse struct {
	Valid     bool       `json:"valid"`
	OrderID   uuid.UUID  `json:"order_id"`
	MachineID uuid.UUID  `json:"machine_id"`
	UserID    uuid.UUID  `json:"user_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// VerifyPickup is the machine-facing check of a pickup credential. The
// machine trusts nothing but this endpoint's answer: the token must carry
// a valid signature, be unexpired, and match the token currently stored
// on a paid order.
func VerifyPickup(verifier tokenVerifier, orders ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if verifier == nil || orders == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pickup verifier unavailable"))
			return
		}

		var payload verifyPickupRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		claims, err := verifier.Verify(payload.Token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, mapTokenError(err))
			return
		}

		order, err := orders.Get(r.Context(), claims.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if order.Status != enums.OrderStatusPaid {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not paid"))
			return
		}
		// A reissued credential invalidates older ones even when their
		// signatures still verify.
		if order.PickupToken == nil || *order.PickupToken != payload.Token {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "pickup token superseded"))
			return
		}

		responses.WriteSuccess(w, verifyPickupResponse{
			Valid:     true,
			OrderID:   order.ID,
			MachineID: order.MachineID,
			UserID:    order.UserID,
			ExpiresAt: order.PickupTokenExpiresAt,
		})
	}
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, pickuptoken.ErrExpired):
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "pickup token expired")
	case errors.Is(err, pickuptoken.ErrSignature):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "pickup token signature mismatch")
	case errors.Is(err, pickuptoken.ErrFormat):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed pickup token")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify pickup token")
	}
}
