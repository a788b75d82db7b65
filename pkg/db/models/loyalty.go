package models

import (
	"time"

	"github.com/google/uuid"
)

// LoyaltyAccount holds a user's reward point balance.
type LoyaltyAccount struct {
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	PointsBalance int       `gorm:"column:points_balance;not null;default:0"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// LoyaltyTransaction is the audit record for one point credit.
type LoyaltyTransaction struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	Points    int       `gorm:"column:points;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
