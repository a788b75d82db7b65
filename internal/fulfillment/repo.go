package fulfillment

import (
	"context"

	"gorm.io/gorm"

	"github.com/vendhub/vendhub-backend/pkg/db/models"
)

// Repository manages the durable webhook dedup memory. Rows are written in
// the same transaction as the event's side effects and never deleted.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ExistsByEventID(ctx context.Context, eventID string) (bool, error)
	Create(ctx context.Context, event *models.PaymentEvent) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment event repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ExistsByEventID(ctx context.Context, eventID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) Create(ctx context.Context, event *models.PaymentEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
