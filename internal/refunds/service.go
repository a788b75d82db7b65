package refunds

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendhub/vendhub-backend/pkg/db/models"
	"github.com/vendhub/vendhub-backend/pkg/enums"
)

// UpsertInput mirrors one refund notification from the gateway.
type UpsertInput struct {
	PaymentID      uuid.UUID
	StripeRefundID string
	AmountCents    int
	Status         enums.RefundStatus
	Reason         *string
}

// Service reconciles gateway refunds against local payment state.
type Service interface {
	// Upsert records or updates the refund keyed by its gateway id. Refund
	// events arrive out of order and repeat, so the row converges on the
	// latest status rather than erroring on replay.
	Upsert(ctx context.Context, tx *gorm.DB, input UpsertInput) (*models.Refund, error)
	// TotalSucceeded returns the cumulative succeeded refund amount for a
	// payment. The caller compares it against the charged amount to decide
	// whether the order is fully refunded.
	TotalSucceeded(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID) (int, error)
	ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]models.Refund, error)
}

type service struct {
	repo Repository
}

// NewService wires a refund service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("refunds repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Upsert(ctx context.Context, tx *gorm.DB, input UpsertInput) (*models.Refund, error) {
	if input.PaymentID == uuid.Nil {
		return nil, fmt.Errorf("payment id is required")
	}
	if input.StripeRefundID == "" {
		return nil, fmt.Errorf("stripe refund id is required")
	}
	if input.AmountCents < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	if !input.Status.IsValid() {
		return nil, fmt.Errorf("invalid refund status %q", input.Status)
	}

	repo := s.repo.WithTx(tx)

	existing, err := repo.GetByStripeRefundID(ctx, input.StripeRefundID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load refund %s: %w", input.StripeRefundID, err)
	}

	if existing != nil {
		if existing.Status == input.Status {
			return existing, nil
		}
		if err := repo.UpdateStatus(ctx, existing.ID, input.Status, input.Reason); err != nil {
			return nil, fmt.Errorf("update refund %s: %w", input.StripeRefundID, err)
		}
		existing.Status = input.Status
		if input.Reason != nil {
			existing.Reason = input.Reason
		}
		return existing, nil
	}

	refund := &models.Refund{
		ID:             uuid.New(),
		PaymentID:      input.PaymentID,
		StripeRefundID: input.StripeRefundID,
		AmountCents:    input.AmountCents,
		Status:         input.Status,
		Reason:         input.Reason,
	}
	if err := repo.Create(ctx, refund); err != nil {
		return nil, fmt.Errorf("create refund %s: %w", input.StripeRefundID, err)
	}
	return refund, nil
}

func (s *service) TotalSucceeded(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID) (int, error) {
	if paymentID == uuid.Nil {
		return 0, fmt.Errorf("payment id is required")
	}
	return s.repo.WithTx(tx).SumSucceededByPaymentID(ctx, paymentID)
}

func (s *service) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]models.Refund, error) {
	if paymentID == uuid.Nil {
		return nil, fmt.Errorf("payment id is required")
	}
	return s.repo.ListByPaymentID(ctx, paymentID)
}
