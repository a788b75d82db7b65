package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendhub/vendhub-backend/pkg/db/models"
	"github.com/vendhub/vendhub-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateOrderLineItems(ctx context.Context, items []models.OrderLineItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payment").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, receiptRef string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, []enums.OrderStatus{
			enums.OrderStatusPending,
			enums.OrderStatusRequiresPayment,
			enums.OrderStatusFailed,
		}).
		Updates(map[string]any{
			"status":      enums.OrderStatusPaid,
			"paid_at":     paidAt,
			"receipt_ref": receiptRef,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, []enums.OrderStatus{
			enums.OrderStatusPending,
			enums.OrderStatusRequiresPayment,
		}).
		Update("status", enums.OrderStatusFailed)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkRefunded(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPaid).
		Update("status", enums.OrderStatusRefunded)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, []enums.OrderStatus{
			enums.OrderStatusPending,
			enums.OrderStatusRequiresPayment,
		}).
		Update("status", enums.OrderStatusExpired)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	q := r.db.WithContext(ctx).
		Where("status IN ? AND expires_at IS NOT NULL AND expires_at < ?", []enums.OrderStatus{
			enums.OrderStatusPending,
			enums.OrderStatusRequiresPayment,
		}, cutoff).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *repository) UpdatePaymentForOrder(ctx context.Context, orderID uuid.UUID, intentID string, amountCents int) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ?", orderID).
		Updates(map[string]any{
			"stripe_payment_intent_id": intentID,
			"amount_cents":             amountCents,
			"status":                   enums.PaymentStatusPending,
			"last_error_code":          nil,
			"last_error_message":       nil,
		}).Error
}

func (r *repository) FindPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindPaymentByStripeIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("stripe_payment_intent_id = ?", intentID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, errorCode, errorMessage *string) error {
	updates := map[string]any{"status": status}
	if errorCode != nil {
		updates["last_error_code"] = *errorCode
	}
	if errorMessage != nil {
		updates["last_error_message"] = *errorMessage
	}
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(updates).Error
}
