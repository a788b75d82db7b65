package models

import (
	"time"

	"github.com/google/uuid"
)

// Machine is a physical vending machine registered on the platform.
type Machine struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code      string    `gorm:"column:code;not null;unique"`
	Name      string    `gorm:"column:name;not null"`
	Location  string    `gorm:"column:location;not null"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	Slots     []StockSlot `gorm:"foreignKey:MachineID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
