package refunds

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendhub/vendhub-backend/pkg/db/models"
	"github.com/vendhub/vendhub-backend/pkg/enums"
)

// Repository manages persistence for gateway refund mirrors.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByStripeRefundID(ctx context.Context, stripeRefundID string) (*models.Refund, error)
	Create(ctx context.Context, refund *models.Refund) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.RefundStatus, reason *string) error
	ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]models.Refund, error)
	SumSucceededByPaymentID(ctx context.Context, paymentID uuid.UUID) (int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a refund repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByStripeRefundID(ctx context.Context, stripeRefundID string) (*models.Refund, error) {
	var refund models.Refund
	if err := r.db.WithContext(ctx).
		Where("stripe_refund_id = ?", stripeRefundID).
		First(&refund).Error; err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *repository) Create(ctx context.Context, refund *models.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.RefundStatus, reason *string) error {
	updates := map[string]any{"status": status}
	if reason != nil {
		updates["reason"] = *reason
	}
	return r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]models.Refund, error) {
	var refunds []models.Refund
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}

func (r *repository) SumSucceededByPaymentID(ctx context.Context, paymentID uuid.UUID) (int, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("payment_id = ? AND status = ?", paymentID, enums.RefundStatusSucceeded).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}
