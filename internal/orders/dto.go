package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/vendhub/vendhub-backend/pkg/enums"
)

// CreateOrderLine is one requested product and quantity.
type CreateOrderLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Qty       int       `json:"qty"`
}

// CreateOrderInput carries everything needed to open an order.
type CreateOrderInput struct {
	UserID    uuid.UUID
	MachineID uuid.UUID
	Currency  enums.Currency
	Lines     []CreateOrderLine
}

// PickupDTO is the pickup credential exposed once an order is paid.
type PickupDTO struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StatusDTO is the polling view of an order. Pickup is present only while
// the order is paid and its token has not expired.
type StatusDTO struct {
	OrderID               uuid.UUID            `json:"order_id"`
	Status                enums.OrderStatus    `json:"status"`
	PaymentStatus         *enums.PaymentStatus `json:"payment_status,omitempty"`
	StripePaymentIntentID *string              `json:"stripe_payment_intent_id,omitempty"`
	TotalCents            int                  `json:"total_cents"`
	Currency              enums.Currency       `json:"currency"`
	PaidAt                *time.Time           `json:"paid_at,omitempty"`
	ReceiptRef            *string              `json:"receipt_ref,omitempty"`
	Pickup                *PickupDTO           `json:"pickup,omitempty"`
}
