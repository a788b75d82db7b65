package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	stripesdk "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/vendhub/vendhub-backend/internal/orders"
	"github.com/vendhub/vendhub-backend/pkg/db"
	dbmodels "github.com/vendhub/vendhub-backend/pkg/db/models"
	"github.com/vendhub/vendhub-backend/pkg/enums"
	pkgerrors "github.com/vendhub/vendhub-backend/pkg/errors"
	stripeclient "github.com/vendhub/vendhub-backend/pkg/stripe"
)

// IntentIdempotencyKey derives the gateway idempotency key from the order
// id. Every attempt for the same order sends the same key, so the gateway
// returns one intent no matter how many times the client retries.
func IntentIdempotencyKey(orderID uuid.UUID) string {
	return "pi-order-" + orderID.String()
}

// IntentGateway is the slice of the payment gateway checkout needs.
type IntentGateway interface {
	CreatePaymentIntent(ctx context.Context, params stripeclient.IntentParams) (*stripesdk.PaymentIntent, error)
	CreateEphemeralKey(ctx context.Context, customerID string) (string, error)
	PublishableKey() string
}

// CustomerEnsurer resolves a user's gateway customer, creating it on first use.
type CustomerEnsurer interface {
	EnsureStripeCustomer(ctx context.Context, id uuid.UUID) (string, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// IntentDTO is what the mobile client needs to confirm a payment.
type IntentDTO struct {
	PaymentIntentID string         `json:"payment_intent_id"`
	ClientSecret    string         `json:"client_secret"`
	EphemeralKey    string         `json:"ephemeral_key"`
	CustomerID      string         `json:"customer_id"`
	PublishableKey  string         `json:"publishable_key"`
	AmountCents     int            `json:"amount_cents"`
	Currency        enums.Currency `json:"currency"`
}

// Service opens payment intents for orders.
type Service interface {
	CreateIntent(ctx context.Context, orderID, userID uuid.UUID) (*IntentDTO, error)
}

type service struct {
	ordersRepo orders.Repository
	tx         txRunner
	customers  CustomerEnsurer
	gateway    IntentGateway
	now        func() time.Time
}

// Params wires the checkout service dependencies.
type Params struct {
	OrdersRepo orders.Repository
	TX         txRunner
	Customers  CustomerEnsurer
	Gateway    IntentGateway
}

// NewService builds a checkout service from its dependencies.
func NewService(p Params) (Service, error) {
	if p.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.TX == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Customers == nil {
		return nil, fmt.Errorf("customer ensurer required")
	}
	if p.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &service{
		ordersRepo: p.OrdersRepo,
		tx:         p.TX,
		customers:  p.Customers,
		gateway:    p.Gateway,
		now:        time.Now,
	}, nil
}

func (s *service) CreateIntent(ctx context.Context, orderID, userID uuid.UUID) (*IntentDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	order, err := s.ordersRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}

	switch order.Status {
	case enums.OrderStatusPending, enums.OrderStatusRequiresPayment, enums.OrderStatusFailed:
		// A failed order may retry; it moves back to requires_payment below.
	case enums.OrderStatusPaid:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is %s and can no longer be paid", order.Status))
	}
	if order.ExpiresAt != nil && order.ExpiresAt.Before(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout window has closed")
	}

	// The charged amount is always recomputed from the line item snapshots;
	// the stored total is display data.
	amount := 0
	for _, item := range order.Items {
		amount += item.SubtotalCents
	}
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has nothing to charge")
	}

	customerID, err := s.customers.EnsureStripeCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, stripeclient.IntentParams{
		AmountCents:    int64(amount),
		Currency:       order.Currency.String(),
		CustomerID:     customerID,
		OrderID:        order.ID.String(),
		IdempotencyKey: IntentIdempotencyKey(order.ID),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open payment intent")
	}

	ephemeralKey, err := s.gateway.CreateEphemeralKey(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mint ephemeral key")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.ordersRepo.WithTx(tx)

		payment := &dbmodels.Payment{
			ID:                    uuid.New(),
			OrderID:               order.ID,
			StripePaymentIntentID: intent.ID,
			AmountCents:           amount,
			Currency:              order.Currency,
			Status:                enums.PaymentStatusPending,
		}
		if _, err := repo.CreatePayment(ctx, payment); err != nil {
			if !db.IsUniqueViolation(err, "") {
				return fmt.Errorf("create payment row: %w", err)
			}
			// Retry: refresh the earlier attempt's row. The gateway rotates
			// the intent once the idempotency key ages out, and the
			// succeeded event is matched on the stored intent id.
			if err := repo.UpdatePaymentForOrder(ctx, order.ID, intent.ID, amount); err != nil {
				return fmt.Errorf("refresh payment row: %w", err)
			}
		}

		updates := map[string]any{"total_cents": amount}
		if order.Status != enums.OrderStatusRequiresPayment {
			updates["status"] = enums.OrderStatusRequiresPayment
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &IntentDTO{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		EphemeralKey:    ephemeralKey,
		CustomerID:      customerID,
		PublishableKey:  s.gateway.PublishableKey(),
		AmountCents:     amount,
		Currency:        order.Currency,
	}, nil
}
