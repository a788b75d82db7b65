package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vendhub/vendhub-backend/pkg/enums"
)

// Refund mirrors one gateway refund against a payment. Rows are upserted by
// StripeRefundID; the cumulative succeeded amount drives the order's
// refunded transition.
type Refund struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID      uuid.UUID          `gorm:"column:payment_id;type:uuid;not null;index"`
	StripeRefundID string             `gorm:"column:stripe_refund_id;not null;unique"`
	AmountCents    int                `gorm:"column:amount_cents;not null"`
	Status         enums.RefundStatus `gorm:"column:status;not null;default:'pending'"`
	Reason         *string            `gorm:"column:reason"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
