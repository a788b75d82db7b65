package models

import (
	"time"

	"github.com/google/uuid"
)

// StockSlot tracks physical stock for one product in one machine slot.
// Quantity is mutated only inside the transaction that marks the owning
// order paid.
type StockSlot struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MachineID uuid.UUID `gorm:"column:machine_id;type:uuid;not null;uniqueIndex:idx_stock_slots_machine_code"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Code      string    `gorm:"column:code;not null;uniqueIndex:idx_stock_slots_machine_code"`
	Quantity  int       `gorm:"column:quantity;not null;default:0"`
	Capacity  int       `gorm:"column:capacity;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
