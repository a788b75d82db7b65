package models

import (
	"time"

	"github.com/google/uuid"
)

// UniqueActionLedgerOrderAction names the constraint that serializes
// once-per-order actions.
const UniqueActionLedgerOrderAction = "idx_action_ledger_order_action"

// ActionLedgerEntry marks that a named action has run for an order. The row
// is inserted in the same transaction as the action's side effects, so
// rolling back the action also rolls back the marker. A unique violation on
// insert means "already done", not an error.
type ActionLedgerEntry struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_action_ledger_order_action"`
	Action    string    `gorm:"column:action;not null;uniqueIndex:idx_action_ledger_order_action"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
