package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendhub/vendhub-backend/pkg/db/models"
	pkgerrors "github.com/vendhub/vendhub-backend/pkg/errors"
)

// ShortageDetail reports which line could not be covered by machine stock.
type ShortageDetail struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// Service mutates physical machine stock.
type Service interface {
	// DecrementForOrder subtracts every line item's quantity from the
	// machine's slots. It must run inside the transaction that marks the
	// order paid; a shortage on any line returns an error so the whole
	// transaction aborts and stock is never partially consumed.
	DecrementForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error
	RestockSlot(ctx context.Context, machineID uuid.UUID, code string, qty int) (*models.StockSlot, error)
	ListByMachine(ctx context.Context, machineID uuid.UUID) ([]models.StockSlot, error)
}

type service struct {
	repo Repository
}

// NewService wires an inventory service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) DecrementForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	if order == nil {
		return fmt.Errorf("order is required")
	}
	if len(order.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order has no line items")
	}

	repo := s.repo.WithTx(tx)
	for _, item := range order.Items {
		if item.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "line item quantity must be positive")
		}
		if err := decrementAcrossSlots(ctx, repo, order.MachineID, item); err != nil {
			return err
		}
	}
	return nil
}

// decrementAcrossSlots drains slots holding the product in slot code order
// until the requested quantity is covered.
func decrementAcrossSlots(ctx context.Context, repo Repository, machineID uuid.UUID, item models.OrderLineItem) error {
	slots, err := repo.ListByMachineProduct(ctx, machineID, item.ProductID)
	if err != nil {
		return fmt.Errorf("load slots for product %s: %w", item.ProductID, err)
	}

	available := 0
	for _, slot := range slots {
		available += slot.Quantity
	}
	if available < item.Qty {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
			WithDetails(ShortageDetail{
				ProductID: item.ProductID,
				Requested: item.Qty,
				Available: available,
			})
	}

	remaining := item.Qty
	for _, slot := range slots {
		if remaining == 0 {
			break
		}
		take := remaining
		if take > slot.Quantity {
			take = slot.Quantity
		}
		if take == 0 {
			continue
		}
		ok, err := repo.DecrementQuantity(ctx, slot.ID, take)
		if err != nil {
			return fmt.Errorf("decrement slot %s: %w", slot.ID, err)
		}
		if !ok {
			// A concurrent writer drained the slot between the read and
			// the guarded update. Abort so the caller's transaction
			// retries from a consistent view.
			return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
				WithDetails(ShortageDetail{
					ProductID: item.ProductID,
					Requested: item.Qty,
					Available: available - (item.Qty - remaining),
				})
		}
		remaining -= take
	}
	return nil
}

func (s *service) RestockSlot(ctx context.Context, machineID uuid.UUID, code string, qty int) (*models.StockSlot, error) {
	if machineID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "machine id is required")
	}
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slot code is required")
	}
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	slot, err := s.repo.GetByMachineCode(ctx, machineID, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock slot not found")
		}
		return nil, fmt.Errorf("load slot %s/%s: %w", machineID, code, err)
	}
	if qty > slot.Capacity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds slot capacity")
	}

	if err := s.repo.SetQuantity(ctx, slot.ID, qty); err != nil {
		return nil, fmt.Errorf("set slot quantity: %w", err)
	}
	slot.Quantity = qty
	return slot, nil
}

func (s *service) ListByMachine(ctx context.Context, machineID uuid.UUID) ([]models.StockSlot, error) {
	if machineID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "machine id is required")
	}
	return s.repo.ListByMachine(ctx, machineID)
}
