package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS action_ledger_entries (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  action TEXT NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	require.NoError(t, db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_action_ledger_order_action ON action_ledger_entries (order_id, action);`,
	).Error)
	return db
}

func newLedgerService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc
}

func TestRunOnce_FirstCallerWins(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	ctx := context.Background()
	orderID := uuid.New()

	ran := false
	err := db.Transaction(func(tx *gorm.DB) error {
		did, err := svc.RunOnce(ctx, tx, orderID, ActionIssuePickupToken, func(tx *gorm.DB) error {
			ran = true
			return nil
		})
		require.NoError(t, err)
		require.True(t, did)
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)

	entries, err := svc.ListByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ActionIssuePickupToken, entries[0].Action)
}

func TestRunOnce_SecondCallIsNoOp(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	ctx := context.Background()
	orderID := uuid.New()

	for i := 0; i < 2; i++ {
		wantRun := i == 0
		err := db.Transaction(func(tx *gorm.DB) error {
			ran := false
			did, err := svc.RunOnce(ctx, tx, orderID, ActionCreditLoyalty, func(tx *gorm.DB) error {
				ran = true
				return nil
			})
			require.NoError(t, err)
			require.Equal(t, wantRun, did)
			require.Equal(t, wantRun, ran)
			return nil
		})
		require.NoError(t, err)
	}

	entries, err := svc.ListByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRunOnce_SameOrderDifferentActions(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	ctx := context.Background()
	orderID := uuid.New()

	for _, action := range []string{ActionIssuePickupToken, ActionCreditLoyalty, ActionSendReceipt} {
		err := db.Transaction(func(tx *gorm.DB) error {
			did, err := svc.RunOnce(ctx, tx, orderID, action, nil)
			require.NoError(t, err)
			require.True(t, did)
			return nil
		})
		require.NoError(t, err)
	}

	entries, err := svc.ListByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestRunOnce_FailedActionRollsBackMarker(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	ctx := context.Background()
	orderID := uuid.New()

	boom := errors.New("receipt provider down")
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.RunOnce(ctx, tx, orderID, ActionSendReceipt, func(tx *gorm.DB) error {
			return boom
		})
		return err
	})
	require.ErrorIs(t, err, boom)

	entries, err := svc.ListByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.Empty(t, entries)

	// The rollback frees the action for a later retry.
	err = db.Transaction(func(tx *gorm.DB) error {
		did, err := svc.RunOnce(ctx, tx, orderID, ActionSendReceipt, nil)
		require.NoError(t, err)
		require.True(t, did)
		return nil
	})
	require.NoError(t, err)
}

func TestRunOnce_ValidatesInput(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	ctx := context.Background()

	_, err := svc.RunOnce(ctx, nil, uuid.New(), ActionCreditLoyalty, nil)
	require.Error(t, err)

	_, err = svc.RunOnce(ctx, db, uuid.Nil, ActionCreditLoyalty, nil)
	require.Error(t, err)

	_, err = svc.RunOnce(ctx, db, uuid.New(), "", nil)
	require.Error(t, err)
}
