package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vendhub/vendhub-backend/pkg/enums"
)

// Payment is the one-to-one gateway mirror for an order.
type Payment struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID               uuid.UUID           `gorm:"column:order_id;type:uuid;not null;unique"`
	StripePaymentIntentID string              `gorm:"column:stripe_payment_intent_id;not null;unique"`
	AmountCents           int                 `gorm:"column:amount_cents;not null"`
	Currency              enums.Currency      `gorm:"column:currency;not null;default:'usd'"`
	Status                enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	LastErrorCode         *string             `gorm:"column:last_error_code"`
	LastErrorMessage      *string             `gorm:"column:last_error_message"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
