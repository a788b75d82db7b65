package machines

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendhub/vendhub-backend/pkg/db/models"
)

// Repository manages persistence for vending machines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, machine *models.Machine) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Machine, error)
	GetByCode(ctx context.Context, code string) (*models.Machine, error)
	List(ctx context.Context) ([]models.Machine, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a machine repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, machine *models.Machine) error {
	return r.db.WithContext(ctx).Create(machine).Error
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Machine{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Machine, error) {
	var machine models.Machine
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&machine).Error; err != nil {
		return nil, err
	}
	return &machine, nil
}

func (r *repository) GetByCode(ctx context.Context, code string) (*models.Machine, error) {
	var machine models.Machine
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&machine).Error; err != nil {
		return nil, err
	}
	return &machine, nil
}

func (r *repository) List(ctx context.Context) ([]models.Machine, error) {
	var machines []models.Machine
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&machines).Error; err != nil {
		return nil, err
	}
	return machines, nil
}
