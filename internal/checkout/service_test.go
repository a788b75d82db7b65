package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	stripesdk "github.com/stripe/stripe-go/v84"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vendhub/vendhub-backend/internal/orders"
	"github.com/vendhub/vendhub-backend/pkg/db"
	"github.com/vendhub/vendhub-backend/pkg/db/models"
	"github.com/vendhub/vendhub-backend/pkg/enums"
	pkgerrors "github.com/vendhub/vendhub-backend/pkg/errors"
	stripeclient "github.com/vendhub/vendhub-backend/pkg/stripe"
)

type fakeGateway struct {
	intents   map[string]*stripesdk.PaymentIntent
	calls     int
	intentErr error
	// rotate mints a fresh intent on every call, as the gateway does once
	// an idempotency key has aged out.
	rotate bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: map[string]*stripesdk.PaymentIntent{}}
}

func (f *fakeGateway) CreatePaymentIntent(ctx context.Context, params stripeclient.IntentParams) (*stripesdk.PaymentIntent, error) {
	if f.intentErr != nil {
		return nil, f.intentErr
	}
	f.calls++
	if !f.rotate {
		if intent, ok := f.intents[params.IdempotencyKey]; ok {
			return intent, nil
		}
	}
	intent := &stripesdk.PaymentIntent{
		ID:           fmt.Sprintf("pi_%d", len(f.intents)+1),
		ClientSecret: fmt.Sprintf("pi_%d_secret", len(f.intents)+1),
		Amount:       params.AmountCents,
	}
	f.intents[params.IdempotencyKey] = intent
	return intent, nil
}

func (f *fakeGateway) CreateEphemeralKey(ctx context.Context, customerID string) (string, error) {
	return "ek_test", nil
}

func (f *fakeGateway) PublishableKey() string {
	return "pk_test_123"
}

type fakeCustomers struct {
	id  string
	err error
}

func (f *fakeCustomers) EnsureStripeCustomer(ctx context.Context, id uuid.UUID) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.id, nil
}

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ordersDDL := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  machine_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  currency TEXT NOT NULL DEFAULT 'usd',
  total_cents INTEGER NOT NULL,
  pickup_token TEXT,
  pickup_token_expires_at DATETIME,
  paid_at DATETIME,
  receipt_ref TEXT,
  expires_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	itemsDDL := `
CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  qty INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  subtotal_cents INTEGER NOT NULL,
  created_at DATETIME
);`
	paymentsDDL := `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  stripe_payment_intent_id TEXT NOT NULL UNIQUE,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'usd',
  status TEXT NOT NULL DEFAULT 'pending',
  last_error_code TEXT,
  last_error_message TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, conn.Exec(ordersDDL).Error)
	require.NoError(t, conn.Exec(itemsDDL).Error)
	require.NoError(t, conn.Exec(paymentsDDL).Error)
	return conn
}

func seedCheckoutOrder(t *testing.T, conn *gorm.DB, userID uuid.UUID, status enums.OrderStatus, expiresAt *time.Time) *models.Order {
	t.Helper()

	repo := orders.NewRepository(conn)
	ctx := context.Background()

	order := &models.Order{
		ID:         uuid.New(),
		UserID:     userID,
		MachineID:  uuid.New(),
		Status:     status,
		Currency:   enums.CurrencyUSD,
		TotalCents: 425,
		ExpiresAt:  expiresAt,
	}
	_, err := repo.CreateOrder(ctx, order)
	require.NoError(t, err)

	items := []models.OrderLineItem{
		{ID: uuid.New(), OrderID: order.ID, ProductID: uuid.New(), Name: "Cola", Qty: 1, UnitPriceCents: 250, SubtotalCents: 250},
		{ID: uuid.New(), OrderID: order.ID, ProductID: uuid.New(), Name: "Chips", Qty: 1, UnitPriceCents: 175, SubtotalCents: 175},
	}
	require.NoError(t, repo.CreateOrderLineItems(ctx, items))
	return order
}

func newCheckoutService(t *testing.T, conn *gorm.DB, gateway IntentGateway, customers CustomerEnsurer) Service {
	t.Helper()

	svc, err := NewService(Params{
		OrdersRepo: orders.NewRepository(conn),
		TX:         db.FromConn(conn),
		Customers:  customers,
		Gateway:    gateway,
	})
	require.NoError(t, err)
	return svc
}

func TestCreateIntent(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	gateway := newFakeGateway()
	userID := uuid.New()
	future := time.Now().Add(30 * time.Minute)
	order := seedCheckoutOrder(t, conn, userID, enums.OrderStatusPending, &future)

	svc := newCheckoutService(t, conn, gateway, &fakeCustomers{id: "cus_1"})

	dto, err := svc.CreateIntent(context.Background(), order.ID, userID)
	require.NoError(t, err)
	require.Equal(t, "pi_1", dto.PaymentIntentID)
	require.Equal(t, "pi_1_secret", dto.ClientSecret)
	require.Equal(t, "cus_1", dto.CustomerID)
	require.Equal(t, "pk_test_123", dto.PublishableKey)
	require.Equal(t, 425, dto.AmountCents)

	repo := orders.NewRepository(conn)
	loaded, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusRequiresPayment, loaded.Status)
	require.NotNil(t, loaded.Payment)
	require.Equal(t, "pi_1", loaded.Payment.StripePaymentIntentID)
}

func TestCreateIntent_RetryReusesIntent(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	gateway := newFakeGateway()
	userID := uuid.New()
	future := time.Now().Add(30 * time.Minute)
	order := seedCheckoutOrder(t, conn, userID, enums.OrderStatusPending, &future)

	svc := newCheckoutService(t, conn, gateway, &fakeCustomers{id: "cus_1"})
	ctx := context.Background()

	first, err := svc.CreateIntent(ctx, order.ID, userID)
	require.NoError(t, err)
	second, err := svc.CreateIntent(ctx, order.ID, userID)
	require.NoError(t, err)
	require.Equal(t, first.PaymentIntentID, second.PaymentIntentID)

	// One payment row, even after the retry.
	var count int64
	require.NoError(t, conn.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCreateIntent_GatewayRotatedIntentUpdatesPayment(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	gateway := newFakeGateway()
	gateway.rotate = true
	userID := uuid.New()
	future := time.Now().Add(30 * time.Minute)
	order := seedCheckoutOrder(t, conn, userID, enums.OrderStatusPending, &future)

	svc := newCheckoutService(t, conn, gateway, &fakeCustomers{id: "cus_1"})
	ctx := context.Background()
	repo := orders.NewRepository(conn)

	first, err := svc.CreateIntent(ctx, order.ID, userID)
	require.NoError(t, err)
	require.Equal(t, "pi_1", first.PaymentIntentID)

	// The card declines and the retry lands after the gateway stopped
	// honoring the original idempotency key.
	payment, err := repo.FindPaymentByOrderID(ctx, order.ID)
	require.NoError(t, err)
	declined := "card_declined"
	require.NoError(t, repo.UpdatePaymentStatus(ctx, payment.ID, enums.PaymentStatusFailed, &declined, nil))
	_, err = repo.MarkFailed(ctx, order.ID)
	require.NoError(t, err)

	second, err := svc.CreateIntent(ctx, order.ID, userID)
	require.NoError(t, err)
	require.Equal(t, "pi_2", second.PaymentIntentID)

	// The payment row follows the rotated intent so the succeeded webhook
	// for pi_2 matches; the old error state is gone.
	payment, err = repo.FindPaymentByOrderID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "pi_2", payment.StripePaymentIntentID)
	require.Equal(t, enums.PaymentStatusPending, payment.Status)
	require.Equal(t, 425, payment.AmountCents)
	require.Nil(t, payment.LastErrorCode)

	var count int64
	require.NoError(t, conn.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCreateIntent_FailedOrderMayRetry(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	gateway := newFakeGateway()
	userID := uuid.New()
	future := time.Now().Add(30 * time.Minute)
	order := seedCheckoutOrder(t, conn, userID, enums.OrderStatusFailed, &future)

	svc := newCheckoutService(t, conn, gateway, &fakeCustomers{id: "cus_1"})

	_, err := svc.CreateIntent(context.Background(), order.ID, userID)
	require.NoError(t, err)

	loaded, err := orders.NewRepository(conn).FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusRequiresPayment, loaded.Status)
}

func TestCreateIntent_Failures(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	userID := uuid.New()
	future := time.Now().Add(30 * time.Minute)
	past := time.Now().Add(-time.Minute)

	pending := seedCheckoutOrder(t, conn, userID, enums.OrderStatusPending, &future)
	paid := seedCheckoutOrder(t, conn, userID, enums.OrderStatusPaid, &future)
	cancelled := seedCheckoutOrder(t, conn, userID, enums.OrderStatusCancelled, &future)
	lapsed := seedCheckoutOrder(t, conn, userID, enums.OrderStatusPending, &past)

	ctx := context.Background()

	t.Run("unknown order", func(t *testing.T) {
		svc := newCheckoutService(t, conn, newFakeGateway(), &fakeCustomers{id: "cus_1"})
		_, err := svc.CreateIntent(ctx, uuid.New(), userID)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	})

	t.Run("wrong user", func(t *testing.T) {
		svc := newCheckoutService(t, conn, newFakeGateway(), &fakeCustomers{id: "cus_1"})
		_, err := svc.CreateIntent(ctx, pending.ID, uuid.New())
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		require.Equal(t, pkgerrors.CodeForbidden, typed.Code())
	})

	t.Run("already paid", func(t *testing.T) {
		svc := newCheckoutService(t, conn, newFakeGateway(), &fakeCustomers{id: "cus_1"})
		_, err := svc.CreateIntent(ctx, paid.ID, userID)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	})

	t.Run("terminal status", func(t *testing.T) {
		svc := newCheckoutService(t, conn, newFakeGateway(), &fakeCustomers{id: "cus_1"})
		_, err := svc.CreateIntent(ctx, cancelled.ID, userID)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	})

	t.Run("checkout window closed", func(t *testing.T) {
		svc := newCheckoutService(t, conn, newFakeGateway(), &fakeCustomers{id: "cus_1"})
		_, err := svc.CreateIntent(ctx, lapsed.ID, userID)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	})

	t.Run("gateway down", func(t *testing.T) {
		gateway := newFakeGateway()
		gateway.intentErr = errors.New("stripe 503")
		svc := newCheckoutService(t, conn, gateway, &fakeCustomers{id: "cus_1"})
		_, err := svc.CreateIntent(ctx, pending.ID, userID)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		require.Equal(t, pkgerrors.CodeDependency, typed.Code())
	})

	t.Run("customer ensure fails", func(t *testing.T) {
		svc := newCheckoutService(t, conn, newFakeGateway(), &fakeCustomers{err: pkgerrors.New(pkgerrors.CodeDependency, "register gateway customer")})
		_, err := svc.CreateIntent(ctx, pending.ID, userID)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		require.Equal(t, pkgerrors.CodeDependency, typed.Code())
	})
}
