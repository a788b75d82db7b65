package loyalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendhub/vendhub-backend/pkg/db/models"
)

// CentsPerPoint is the earn rate: one point per 50 cents spent, rounded down.
const CentsPerPoint = 50

// PointsForAmount converts a charge amount to earned points.
func PointsForAmount(amountCents int) int {
	if amountCents <= 0 {
		return 0
	}
	return amountCents / CentsPerPoint
}

// Service credits reward points for paid orders.
type Service interface {
	// CreditForOrder credits the points earned by an order and records the
	// audit transaction. It runs inside the caller's transaction and is not
	// idempotent on its own; the caller guards it with the action ledger.
	// Orders too small to earn a point credit nothing and return 0.
	CreditForOrder(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, amountCents int) (int, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (int, error)
	ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.LoyaltyTransaction, error)
}

type service struct {
	repo Repository
}

// NewService wires a loyalty service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("loyalty repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreditForOrder(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, amountCents int) (int, error) {
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}
	if userID == uuid.Nil {
		return 0, fmt.Errorf("user id is required")
	}
	if orderID == uuid.Nil {
		return 0, fmt.Errorf("order id is required")
	}

	points := PointsForAmount(amountCents)
	if points == 0 {
		return 0, nil
	}

	repo := s.repo.WithTx(tx)
	if err := repo.AddPoints(ctx, userID, points); err != nil {
		return 0, fmt.Errorf("credit %d points to user %s: %w", points, userID, err)
	}
	txn := &models.LoyaltyTransaction{
		ID:      uuid.New(),
		UserID:  userID,
		OrderID: orderID,
		Points:  points,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return 0, fmt.Errorf("record loyalty transaction for order %s: %w", orderID, err)
	}
	return points, nil
}

func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	if userID == uuid.Nil {
		return 0, fmt.Errorf("user id is required")
	}
	account, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return account.PointsBalance, nil
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.LoyaltyTransaction, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	return s.repo.ListTransactions(ctx, userID)
}
