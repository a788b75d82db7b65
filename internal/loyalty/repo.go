package loyalty

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vendhub/vendhub-backend/pkg/db/models"
)

// Repository manages persistence for loyalty accounts and their audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetAccount(ctx context.Context, userID uuid.UUID) (*models.LoyaltyAccount, error)
	// AddPoints increments the user's balance, creating the account row on
	// first credit.
	AddPoints(ctx context.Context, userID uuid.UUID, points int) error
	CreateTransaction(ctx context.Context, txn *models.LoyaltyTransaction) error
	ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.LoyaltyTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a loyalty repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetAccount(ctx context.Context, userID uuid.UUID) (*models.LoyaltyAccount, error) {
	var account models.LoyaltyAccount
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) AddPoints(ctx context.Context, userID uuid.UUID, points int) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"points_balance": gorm.Expr("loyalty_accounts.points_balance + ?", points),
			}),
		}).
		Create(&models.LoyaltyAccount{
			UserID:        userID,
			PointsBalance: points,
		}).Error
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.LoyaltyTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.LoyaltyTransaction, error) {
	var txns []models.LoyaltyTransaction
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
