package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendhub/vendhub-backend/pkg/db/models"
	"github.com/vendhub/vendhub-backend/pkg/enums"
	pkgerrors "github.com/vendhub/vendhub-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Status(ctx context.Context, id uuid.UUID) (*StatusDTO, error)
}

type service struct {
	repo           Repository
	tx             txRunner
	products       ProductCatalog
	machines       MachineDirectory
	checkoutWindow time.Duration
	now            func() time.Time
}

// Params wires the orders service dependencies.
type Params struct {
	Repo           Repository
	TX             txRunner
	Products       ProductCatalog
	Machines       MachineDirectory
	CheckoutWindow time.Duration
}

// NewService builds an orders service from its dependencies.
func NewService(p Params) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.TX == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Products == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if p.Machines == nil {
		return nil, fmt.Errorf("machine directory required")
	}
	if p.CheckoutWindow <= 0 {
		return nil, fmt.Errorf("checkout window must be positive")
	}
	return &service{
		repo:           p.Repo,
		tx:             p.TX,
		products:       p.Products,
		machines:       p.Machines,
		checkoutWindow: p.CheckoutWindow,
		now:            time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.MachineID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "machine id is required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", input.Currency))
	}

	machine, err := s.machines.GetByID(ctx, input.MachineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "machine not found")
		}
		if typed := pkgerrors.As(err); typed != nil {
			return nil, err
		}
		return nil, fmt.Errorf("load machine %s: %w", input.MachineID, err)
	}
	if !machine.Active {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "machine is not accepting orders")
	}

	ids := make([]uuid.UUID, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required on every line")
		}
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
		ids = append(ids, line.ProductID)
	}

	catalog, err := s.products.ListActiveByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[uuid.UUID]models.Product, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}

	now := s.now()
	expires := now.Add(s.checkoutWindow)
	order := &models.Order{
		ID:        uuid.New(),
		UserID:    input.UserID,
		MachineID: input.MachineID,
		Status:    enums.OrderStatusPending,
		Currency:  currency,
		ExpiresAt: &expires,
	}

	items := make([]models.OrderLineItem, 0, len(input.Lines))
	total := 0
	for _, line := range input.Lines {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found or inactive").
				WithDetails(map[string]string{"product_id": line.ProductID.String()})
		}
		subtotal := product.PriceCents * line.Qty
		items = append(items, models.OrderLineItem{
			ID:             uuid.New(),
			OrderID:        order.ID,
			ProductID:      product.ID,
			Name:           product.Name,
			Qty:            line.Qty,
			UnitPriceCents: product.PriceCents,
			SubtotalCents:  subtotal,
		})
		total += subtotal
	}
	order.TotalCents = total

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := repo.CreateOrderLineItems(ctx, items); err != nil {
			return fmt.Errorf("create line items: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return order, nil
}

func (s *service) Status(ctx context.Context, id uuid.UUID) (*StatusDTO, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	dto := &StatusDTO{
		OrderID:    order.ID,
		Status:     order.Status,
		TotalCents: order.TotalCents,
		Currency:   order.Currency,
		PaidAt:     order.PaidAt,
		ReceiptRef: order.ReceiptRef,
	}
	if order.Payment != nil {
		dto.PaymentStatus = &order.Payment.Status
		dto.StripePaymentIntentID = &order.Payment.StripePaymentIntentID
	}
	if order.Status == enums.OrderStatusPaid &&
		order.PickupToken != nil &&
		order.PickupTokenExpiresAt != nil &&
		order.PickupTokenExpiresAt.After(s.now()) {
		dto.Pickup = &PickupDTO{
			Token:     *order.PickupToken,
			ExpiresAt: *order.PickupTokenExpiresAt,
		}
	}
	return dto, nil
}
