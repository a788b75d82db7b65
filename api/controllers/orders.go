package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vendhub/vendhub-backend/api/middleware"
	"github.com/vendhub/vendhub-backend/api/responses"
	"github.com/vendhub/vendhub-backend/api/validators"
	ordersvc "github.com/vendhub/vendhub-backend/internal/orders"
	"github.com/vendhub/vendhub-backend/pkg/db/models"
	"github.com/vendhub/vendhub-backend/pkg/enums"
	pkgerrors "github.com/vendhub/vendhub-backend/pkg/errors"
	"github.com/vendhub/vendhub-backend/pkg/logger"
)

type createOrderRequest struct {
	MachineID uuid.UUID              `json:"machine_id" validate:"required"`
	Currency  string                 `json:"currency" validate:"omitempty,oneof=usd"`
	Items     []createOrderLineInput `json:"items" validate:"required,min=1,dive"`
}

type createOrderLineInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,gt=0"`
}

type orderResponse struct {
	OrderID    uuid.UUID          `json:"order_id"`
	MachineID  uuid.UUID          `json:"machine_id"`
	Status     string             `json:"status"`
	Currency   string             `json:"currency"`
	TotalCents int                `json:"total_cents"`
	ExpiresAt  *time.Time         `json:"expires_at,omitempty"`
	Items      []lineItemResponse `json:"items"`
}

type lineItemResponse struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	Qty            int       `json:"qty"`
	UnitPriceCents int       `json:"unit_price_cents"`
	SubtotalCents  int       `json:"subtotal_cents"`
}

func newOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		OrderID:    order.ID,
		MachineID:  order.MachineID,
		Status:     string(order.Status),
		Currency:   string(order.Currency),
		TotalCents: order.TotalCents,
		ExpiresAt:  order.ExpiresAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, lineItemResponse{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			SubtotalCents:  item.SubtotalCents,
		})
	}
	return resp
}

// CreateOrder opens an order for the authenticated user at one machine.
func CreateOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		currency := enums.CurrencyUSD
		if payload.Currency != "" {
			parsed, err := enums.ParseCurrency(payload.Currency)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency"))
				return
			}
			currency = parsed
		}

		input := ordersvc.CreateOrderInput{
			UserID:    userID,
			MachineID: payload.MachineID,
			Currency:  currency,
		}
		for _, line := range payload.Items {
			input.Lines = append(input.Lines, ordersvc.CreateOrderLine{
				ProductID: line.ProductID,
				Qty:       line.Qty,
			})
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

// OrderStatus is the polling endpoint clients watch after paying.
func OrderStatus(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
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

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if order.UserID != userID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user"))
			return
		}

		status, err := svc.Status(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, status)
	}
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
