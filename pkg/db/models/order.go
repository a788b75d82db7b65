package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vendhub/vendhub-backend/pkg/enums"
)

// Order is a purchase placed against a single machine. TotalCents is always
// recomputed from the line-item subtotals before charging; the stored value
// is never trusted as an input to the gateway.
type Order struct {
	ID                   uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	MachineID            uuid.UUID         `gorm:"column:machine_id;type:uuid;not null;index"`
	Status               enums.OrderStatus `gorm:"column:status;not null;default:'pending'"`
	Currency             enums.Currency    `gorm:"column:currency;not null;default:'usd'"`
	TotalCents           int               `gorm:"column:total_cents;not null"`
	PickupToken          *string           `gorm:"column:pickup_token"`
	PickupTokenExpiresAt *time.Time        `gorm:"column:pickup_token_expires_at"`
	PaidAt               *time.Time        `gorm:"column:paid_at"`
	ReceiptRef           *string           `gorm:"column:receipt_ref"`
	ExpiresAt            *time.Time        `gorm:"column:expires_at"`
	Items                []OrderLineItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment              *Payment          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
