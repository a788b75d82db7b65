package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a platform customer. StripeCustomerID is set exactly once the
// first time a payment intent is created for the user.
type User struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email            string    `gorm:"column:email;not null;unique"`
	Name             string    `gorm:"column:name;not null"`
	StripeCustomerID *string   `gorm:"column:stripe_customer_id;unique"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
