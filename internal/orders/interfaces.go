package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendhub/vendhub-backend/pkg/db/models"
	"github.com/vendhub/vendhub-backend/pkg/enums"
)

// Repository manages persistence for orders, line items, and the payment
// rows that mirror the gateway.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderLineItems(ctx context.Context, items []models.OrderLineItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	// The Mark* methods are guarded transitions: each updates the row only
	// from the states the state machine allows and reports whether a row
	// changed, so concurrent deliveries race on the database instead of on
	// in-process state.
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, receiptRef string) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (bool, error)
	MarkRefunded(ctx context.Context, id uuid.UUID) (bool, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)

	CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	// UpdatePaymentForOrder repoints an order's payment row at a fresh
	// gateway intent. Checkout retries land here when the gateway rotated
	// the intent after the idempotency key aged out; the stored intent id
	// must track the one the client is about to confirm.
	UpdatePaymentForOrder(ctx context.Context, orderID uuid.UUID, intentID string, amountCents int) error
	FindPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindPaymentByStripeIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, errorCode, errorMessage *string) error
}

// ProductCatalog resolves the products an order snapshots at creation time.
type ProductCatalog interface {
	ListActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// MachineDirectory resolves the machine an order is placed against.
type MachineDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Machine, error)
}
