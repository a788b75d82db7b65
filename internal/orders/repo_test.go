package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vendhub/vendhub-backend/pkg/db/models"
	"github.com/vendhub/vendhub-backend/pkg/enums"
)

func seedOrder(t *testing.T, repo Repository, status enums.OrderStatus, expiresAt *time.Time) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		MachineID:  uuid.New(),
		Status:     status,
		Currency:   enums.CurrencyUSD,
		TotalCents: 300,
		ExpiresAt:  expiresAt,
	}
	_, err := repo.CreateOrder(context.Background(), order)
	require.NoError(t, err)
	return order
}

func TestListExpiredPending(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	overdue := seedOrder(t, repo, enums.OrderStatusPending, &past)
	seedOrder(t, repo, enums.OrderStatusPending, &future)
	seedOrder(t, repo, enums.OrderStatusPaid, &past)
	seedOrder(t, repo, enums.OrderStatusPending, nil)

	expired, err := repo.ListExpiredPending(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, overdue.ID, expired[0].ID)
}

func TestMarkExpired_OnlyWhileAwaitingPayment(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	pending := seedOrder(t, repo, enums.OrderStatusPending, &past)
	paid := seedOrder(t, repo, enums.OrderStatusPaid, &past)

	changed, err := repo.MarkExpired(ctx, pending.ID)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = repo.MarkExpired(ctx, paid.ID)
	require.NoError(t, err)
	require.False(t, changed)

	loaded, err := repo.FindByID(ctx, pending.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusExpired, loaded.Status)

	// A second sweep sees no pending row.
	changed, err = repo.MarkExpired(ctx, pending.ID)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestPaymentLookups(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	order := seedOrder(t, repo, enums.OrderStatusPending, nil)
	payment := &models.Payment{
		ID:                    uuid.New(),
		OrderID:               order.ID,
		StripePaymentIntentID: "pi_abc",
		AmountCents:           300,
		Currency:              enums.CurrencyUSD,
		Status:                enums.PaymentStatusPending,
	}
	_, err := repo.CreatePayment(ctx, payment)
	require.NoError(t, err)

	byOrder, err := repo.FindPaymentByOrderID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, payment.ID, byOrder.ID)

	byIntent, err := repo.FindPaymentByStripeIntentID(ctx, "pi_abc")
	require.NoError(t, err)
	require.Equal(t, payment.ID, byIntent.ID)

	code := "card_declined"
	msg := "Your card was declined."
	require.NoError(t, repo.UpdatePaymentStatus(ctx, payment.ID, enums.PaymentStatusFailed, &code, &msg))

	updated, err := repo.FindPaymentByOrderID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusFailed, updated.Status)
	require.NotNil(t, updated.LastErrorCode)
	require.Equal(t, code, *updated.LastErrorCode)
}
