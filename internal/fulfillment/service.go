package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	stripesdk "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/vendhub/vendhub-backend/internal/inventory"
	"github.com/vendhub/vendhub-backend/internal/ledger"
	"github.com/vendhub/vendhub-backend/internal/loyalty"
	"github.com/vendhub/vendhub-backend/internal/orders"
	"github.com/vendhub/vendhub-backend/internal/refunds"
	"github.com/vendhub/vendhub-backend/pkg/db"
	"github.com/vendhub/vendhub-backend/pkg/db/models"
	"github.com/vendhub/vendhub-backend/pkg/enums"
	pkgerrors "github.com/vendhub/vendhub-backend/pkg/errors"
	"github.com/vendhub/vendhub-backend/pkg/logger"
	"github.com/vendhub/vendhub-backend/pkg/pickuptoken"
)

// Outcome categorizes how a webhook delivery was resolved. Everything but
// a handler error acknowledges the event so the gateway stops retrying.
type Outcome string

const (
	// OutcomeProcessed means side effects ran and committed in this call.
	OutcomeProcessed Outcome = "processed"
	// OutcomeDuplicate means the event id was already recorded; nothing ran.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeIgnored means the event type carries no side effects here.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeUnmatched means the event referenced a payment this system
	// does not know. Acknowledged without recording, so a late-arriving
	// retry can still land once the payment exists.
	OutcomeUnmatched Outcome = "unmatched"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type tokenIssuer interface {
	Issue(payload pickuptoken.Payload) (string, error)
	TTL() time.Duration
}

// Service is the fulfillment orchestrator: it receives verified gateway
// events and drives every per-order side effect inside one transaction.
type Service interface {
	HandleEvent(ctx context.Context, event *stripesdk.Event) (Outcome, error)
}

type service struct {
	events     Repository
	ordersRepo orders.Repository
	ledger     ledger.Service
	inventory  inventory.Service
	loyalty    loyalty.Service
	refunds    refunds.Service
	tokens     tokenIssuer
	tx         txRunner
	log        *logger.Logger
	now        func() time.Time
}

// Params wires the orchestrator dependencies.
type Params struct {
	Events     Repository
	OrdersRepo orders.Repository
	Ledger     ledger.Service
	Inventory  inventory.Service
	Loyalty    loyalty.Service
	Refunds    refunds.Service
	Tokens     tokenIssuer
	TX         txRunner
	Logger     *logger.Logger
}

// NewService builds the orchestrator from its dependencies.
func NewService(p Params) (Service, error) {
	if p.Events == nil {
		return nil, fmt.Errorf("payment events repository required")
	}
	if p.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("action ledger required")
	}
	if p.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if p.Loyalty == nil {
		return nil, fmt.Errorf("loyalty service required")
	}
	if p.Refunds == nil {
		return nil, fmt.Errorf("refunds service required")
	}
	if p.Tokens == nil {
		return nil, fmt.Errorf("pickup token issuer required")
	}
	if p.TX == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		events:     p.Events,
		ordersRepo: p.OrdersRepo,
		ledger:     p.Ledger,
		inventory:  p.Inventory,
		loyalty:    p.Loyalty,
		refunds:    p.Refunds,
		tokens:     p.Tokens,
		tx:         p.TX,
		log:        p.Logger,
		now:        time.Now,
	}, nil
}

func (s *service) HandleEvent(ctx context.Context, event *stripesdk.Event) (Outcome, error) {
	if event == nil || event.ID == "" || event.Data == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stripe event with id and data required")
	}

	switch event.Type {
	case stripesdk.EventTypePaymentIntentSucceeded:
		var intent stripesdk.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
		}
		return s.handlePaymentSucceeded(ctx, event, &intent)
	case stripesdk.EventTypePaymentIntentPaymentFailed:
		var intent stripesdk.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
		}
		return s.handlePaymentFailed(ctx, event, &intent)
	case stripesdk.EventTypeChargeRefunded:
		var charge stripesdk.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge event")
		}
		return s.handleChargeRefunded(ctx, event, &charge)
	case stripesdk.EventTypeRefundUpdated:
		var refund stripesdk.Refund
		if err := json.Unmarshal(event.Data.Raw, &refund); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode refund event")
		}
		return s.handleRefundUpdated(ctx, event, &refund)
	default:
		return OutcomeIgnored, nil
	}
}

func (s *service) handlePaymentSucceeded(ctx context.Context, event *stripesdk.Event, intent *stripesdk.PaymentIntent) (Outcome, error) {
	if intent.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing from event")
	}

	outcome := OutcomeProcessed
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		seen, err := s.events.WithTx(tx).ExistsByEventID(ctx, event.ID)
		if err != nil {
			return fmt.Errorf("check dedup for event %s: %w", event.ID, err)
		}
		if seen {
			outcome = OutcomeDuplicate
			return nil
		}

		repo := s.ordersRepo.WithTx(tx)
		payment, err := repo.FindPaymentByStripeIntentID(ctx, intent.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.logUnmatched(ctx, event, intent.ID)
				outcome = OutcomeUnmatched
				return nil
			}
			return fmt.Errorf("load payment for intent %s: %w", intent.ID, err)
		}

		// Refunded is terminal for the payment row. A late success event
		// arriving after full refund reconciliation must not flip it back.
		if payment.Status != enums.PaymentStatusRefunded {
			if err := repo.UpdatePaymentStatus(ctx, payment.ID, enums.PaymentStatusSucceeded, nil, nil); err != nil {
				return fmt.Errorf("mark payment succeeded: %w", err)
			}
		}

		won, err := repo.MarkPaid(ctx, payment.OrderID, s.now().UTC(), receiptRef(intent))
		if err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}
		if won {
			order, err := repo.FindByID(ctx, payment.OrderID)
			if err != nil {
				return fmt.Errorf("load order %s: %w", payment.OrderID, err)
			}
			if err := s.inventory.DecrementForOrder(ctx, tx, order); err != nil {
				return err
			}
			token, err := s.tokens.Issue(pickuptoken.Payload{
				OrderID:   order.ID,
				UserID:    order.UserID,
				MachineID: order.MachineID,
			})
			if err != nil {
				return fmt.Errorf("issue pickup token: %w", err)
			}
			tokenExp := s.now().UTC().Add(s.tokens.TTL())
			if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
				"pickup_token":            token,
				"pickup_token_expires_at": tokenExp,
			}); err != nil {
				return fmt.Errorf("persist pickup token: %w", err)
			}
		}

		// Loyalty runs under the action ledger, not under the paid
		// transition, so a distinct trigger (manual reconciliation, a
		// second gateway event) can never credit twice.
		order, err := repo.FindByID(ctx, payment.OrderID)
		if err != nil {
			return fmt.Errorf("load order %s: %w", payment.OrderID, err)
		}
		_, err = s.ledger.RunOnce(ctx, tx, order.ID, ledger.ActionCreditLoyalty, func(tx *gorm.DB) error {
			_, err := s.loyalty.CreditForOrder(ctx, tx, order.UserID, order.ID, payment.AmountCents)
			return err
		})
		if err != nil {
			return err
		}

		return s.recordEvent(ctx, tx, event, &payment.ID)
	})
	if err != nil {
		if lostEventRace(err) {
			return OutcomeDuplicate, nil
		}
		return "", err
	}
	return outcome, nil
}

func (s *service) handlePaymentFailed(ctx context.Context, event *stripesdk.Event, intent *stripesdk.PaymentIntent) (Outcome, error) {
	if intent.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing from event")
	}

	outcome := OutcomeProcessed
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		seen, err := s.events.WithTx(tx).ExistsByEventID(ctx, event.ID)
		if err != nil {
			return fmt.Errorf("check dedup for event %s: %w", event.ID, err)
		}
		if seen {
			outcome = OutcomeDuplicate
			return nil
		}

		repo := s.ordersRepo.WithTx(tx)
		payment, err := repo.FindPaymentByStripeIntentID(ctx, intent.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.logUnmatched(ctx, event, intent.ID)
				outcome = OutcomeUnmatched
				return nil
			}
			return fmt.Errorf("load payment for intent %s: %w", intent.ID, err)
		}

		errCode, errMsg := gatewayError(intent)
		if err := repo.UpdatePaymentStatus(ctx, payment.ID, enums.PaymentStatusFailed, errCode, errMsg); err != nil {
			return fmt.Errorf("mark payment failed: %w", err)
		}
		if _, err := repo.MarkFailed(ctx, payment.OrderID); err != nil {
			return fmt.Errorf("mark order failed: %w", err)
		}

		return s.recordEvent(ctx, tx, event, &payment.ID)
	})
	if err != nil {
		if lostEventRace(err) {
			return OutcomeDuplicate, nil
		}
		return "", err
	}
	return outcome, nil
}

// refundInput is one refund notification extracted from an event.
type refundInput struct {
	intentID string
	refund   *stripesdk.Refund
}

func (s *service) handleChargeRefunded(ctx context.Context, event *stripesdk.Event, charge *stripesdk.Charge) (Outcome, error) {
	if charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "charge event has no payment intent")
	}
	var inputs []refundInput
	if charge.Refunds != nil {
		for _, r := range charge.Refunds.Data {
			if r != nil && r.ID != "" {
				inputs = append(inputs, refundInput{intentID: charge.PaymentIntent.ID, refund: r})
			}
		}
	}
	return s.reconcileRefunds(ctx, event, charge.PaymentIntent.ID, inputs)
}

func (s *service) handleRefundUpdated(ctx context.Context, event *stripesdk.Event, refund *stripesdk.Refund) (Outcome, error) {
	if refund.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "refund id missing from event")
	}
	if refund.PaymentIntent == nil || refund.PaymentIntent.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "refund event has no payment intent")
	}
	inputs := []refundInput{{intentID: refund.PaymentIntent.ID, refund: refund}}
	return s.reconcileRefunds(ctx, event, refund.PaymentIntent.ID, inputs)
}

func (s *service) reconcileRefunds(ctx context.Context, event *stripesdk.Event, intentID string, inputs []refundInput) (Outcome, error) {
	outcome := OutcomeProcessed
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		seen, err := s.events.WithTx(tx).ExistsByEventID(ctx, event.ID)
		if err != nil {
			return fmt.Errorf("check dedup for event %s: %w", event.ID, err)
		}
		if seen {
			outcome = OutcomeDuplicate
			return nil
		}

		repo := s.ordersRepo.WithTx(tx)
		payment, err := repo.FindPaymentByStripeIntentID(ctx, intentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.logUnmatched(ctx, event, intentID)
				outcome = OutcomeUnmatched
				return nil
			}
			return fmt.Errorf("load payment for intent %s: %w", intentID, err)
		}

		for _, in := range inputs {
			status, err := enums.ParseRefundStatus(string(in.refund.Status))
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "map refund status")
			}
			var reason *string
			if in.refund.Reason != "" {
				r := string(in.refund.Reason)
				reason = &r
			}
			if _, err := s.refunds.Upsert(ctx, tx, refunds.UpsertInput{
				PaymentID:      payment.ID,
				StripeRefundID: in.refund.ID,
				AmountCents:    int(in.refund.Amount),
				Status:         status,
				Reason:         reason,
			}); err != nil {
				return err
			}
		}

		total, err := s.refunds.TotalSucceeded(ctx, tx, payment.ID)
		if err != nil {
			return fmt.Errorf("sum refunds for payment %s: %w", payment.ID, err)
		}
		if total >= payment.AmountCents {
			if _, err := repo.MarkRefunded(ctx, payment.OrderID); err != nil {
				return fmt.Errorf("mark order refunded: %w", err)
			}
			if err := repo.UpdatePaymentStatus(ctx, payment.ID, enums.PaymentStatusRefunded, nil, nil); err != nil {
				return fmt.Errorf("mark payment refunded: %w", err)
			}
		}

		return s.recordEvent(ctx, tx, event, &payment.ID)
	})
	if err != nil {
		if lostEventRace(err) {
			return OutcomeDuplicate, nil
		}
		return "", err
	}
	return outcome, nil
}

func (s *service) recordEvent(ctx context.Context, tx *gorm.DB, event *stripesdk.Event, paymentID *uuid.UUID) error {
	row := &models.PaymentEvent{
		ID:        uuid.New(),
		EventID:   event.ID,
		EventType: string(event.Type),
		PaymentID: paymentID,
		Payload:   json.RawMessage(event.Data.Raw),
	}
	if err := s.events.WithTx(tx).Create(ctx, row); err != nil {
		return fmt.Errorf("record payment event %s: %w", event.ID, err)
	}
	return nil
}

// lostEventRace reports whether err is the unique violation raised when a
// concurrent delivery committed the same event id first. By the time the
// event insert collides every write this attempt made was a guarded no-op,
// so the rollback discards nothing and the delivery is already done.
func lostEventRace(err error) bool {
	return db.IsUniqueViolation(err, models.UniquePaymentEventID)
}

func (s *service) logUnmatched(ctx context.Context, event *stripesdk.Event, intentID string) {
	if s.log == nil {
		return
	}
	ctx = s.log.WithEventID(ctx, event.ID)
	s.log.Warn(ctx, fmt.Sprintf("webhook %s references unknown payment intent %s", event.Type, intentID))
}

func receiptRef(intent *stripesdk.PaymentIntent) string {
	if intent.LatestCharge != nil && intent.LatestCharge.ReceiptURL != "" {
		return intent.LatestCharge.ReceiptURL
	}
	return intent.ID
}

func gatewayError(intent *stripesdk.PaymentIntent) (*string, *string) {
	if intent.LastPaymentError == nil {
		return nil, nil
	}
	var code, msg *string
	if intent.LastPaymentError.Code != "" {
		c := string(intent.LastPaymentError.Code)
		code = &c
	}
	if intent.LastPaymentError.Msg != "" {
		m := intent.LastPaymentError.Msg
		msg = &m
	}
	return code, msg
}
