package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendhub/vendhub-backend/pkg/db/models"
)

// Repository manages persistence for machine stock slots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListByMachineProduct(ctx context.Context, machineID, productID uuid.UUID) ([]models.StockSlot, error)
	ListByMachine(ctx context.Context, machineID uuid.UUID) ([]models.StockSlot, error)
	GetByMachineCode(ctx context.Context, machineID uuid.UUID, code string) (*models.StockSlot, error)
	// DecrementQuantity subtracts qty from a slot only when enough stock
	// remains. It reports whether a row was updated, so callers can tell a
	// shortage apart from success without a prior read.
	DecrementQuantity(ctx context.Context, slotID uuid.UUID, qty int) (bool, error)
	SetQuantity(ctx context.Context, slotID uuid.UUID, qty int) error
	Create(ctx context.Context, slot *models.StockSlot) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock slot repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListByMachineProduct(ctx context.Context, machineID, productID uuid.UUID) ([]models.StockSlot, error) {
	var slots []models.StockSlot
	if err := r.db.WithContext(ctx).
		Where("machine_id = ? AND product_id = ?", machineID, productID).
		Order("code ASC").
		Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *repository) ListByMachine(ctx context.Context, machineID uuid.UUID) ([]models.StockSlot, error) {
	var slots []models.StockSlot
	if err := r.db.WithContext(ctx).
		Where("machine_id = ?", machineID).
		Order("code ASC").
		Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *repository) GetByMachineCode(ctx context.Context, machineID uuid.UUID, code string) (*models.StockSlot, error) {
	var slot models.StockSlot
	if err := r.db.WithContext(ctx).
		Where("machine_id = ? AND code = ?", machineID, code).
		First(&slot).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *repository) DecrementQuantity(ctx context.Context, slotID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockSlot{}).
		Where("id = ? AND quantity >= ?", slotID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) SetQuantity(ctx context.Context, slotID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.StockSlot{}).
		Where("id = ?", slotID).
		Update("quantity", qty).Error
}

func (r *repository) Create(ctx context.Context, slot *models.StockSlot) error {
	return r.db.WithContext(ctx).Create(slot).Error
}
