package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendhub/vendhub-backend/pkg/db"
	"github.com/vendhub/vendhub-backend/pkg/db/models"
)

// Actions recorded against the ledger. Each one runs at most once per order.
const (
	ActionIssuePickupToken = "issue_pickup_token"
	ActionCreditLoyalty    = "credit_loyalty"
	ActionSendReceipt      = "send_receipt"
)

// Service serializes once-per-order side effects through the action ledger.
type Service interface {
	// RunOnce inserts the (orderID, action) marker and, if this caller won
	// the insert, runs fn inside the same transaction. It returns false
	// without running fn when another transaction already recorded the
	// action. A failure inside fn aborts the transaction, which also rolls
	// back the marker, so a later delivery may retry the action.
	RunOnce(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, action string, fn func(tx *gorm.DB) error) (bool, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.ActionLedgerEntry, error)
}

type service struct {
	repo Repository
}

// NewService wires an action ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) RunOnce(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, action string, fn func(tx *gorm.DB) error) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}
	if orderID == uuid.Nil {
		return false, fmt.Errorf("order id is required")
	}
	if action == "" {
		return false, fmt.Errorf("action is required")
	}

	entry := &models.ActionLedgerEntry{
		ID:      uuid.New(),
		OrderID: orderID,
		Action:  action,
	}
	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, models.UniqueActionLedgerOrderAction) {
			return false, nil
		}
		return false, fmt.Errorf("record action %q for order %s: %w", action, orderID, err)
	}

	if fn != nil {
		if err := fn(tx); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *service) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.ActionLedgerEntry, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	return s.repo.ListByOrderID(ctx, orderID)
}
