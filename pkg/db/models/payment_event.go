package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// UniquePaymentEventID names the constraint the deduplicator races on.
const UniquePaymentEventID = "idx_payment_events_event_id"

// PaymentEvent records a handled gateway webhook delivery. The existence of
// a row means the event's side effects are committed; the row is written in
// the same transaction as those side effects and never deleted.
type PaymentEvent struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID   string          `gorm:"column:event_id;not null;uniqueIndex:idx_payment_events_event_id"`
	EventType string          `gorm:"column:event_type;not null"`
	PaymentID *uuid.UUID      `gorm:"column:payment_id;type:uuid"`
	Payload   json.RawMessage `gorm:"column:payload;type:jsonb"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
