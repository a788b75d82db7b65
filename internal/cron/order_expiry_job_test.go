package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vendhub/vendhub-backend/pkg/db/models"
	"github.com/vendhub/vendhub-backend/pkg/logger"
)

type fakeExpiredOrderStore struct {
	pending   []models.Order
	listErr   error
	markErr   map[uuid.UUID]error
	lost      map[uuid.UUID]bool
	marked    []uuid.UUID
	listCalls int
}

func (f *fakeExpiredOrderStore) ListExpiredPending(_ context.Context, _ time.Time, limit int) ([]models.Order, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.pending) <= limit {
		out := f.pending
		f.pending = nil
		return out, nil
	}
	out := f.pending[:limit]
	f.pending = f.pending[limit:]
	return out, nil
}

func (f *fakeExpiredOrderStore) MarkExpired(_ context.Context, id uuid.UUID) (bool, error) {
	if err, ok := f.markErr[id]; ok {
		return false, err
	}
	f.marked = append(f.marked, id)
	return !f.lost[id], nil
}

func makePendingOrders(n int) []models.Order {
	out := make([]models.Order, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Order{ID: uuid.New()})
	}
	return out
}

func newExpiryJob(t *testing.T, store *fakeExpiredOrderStore, batchSize int) *orderExpiryJob {
	t.Helper()

	job, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test"}),
		Orders:    store,
		BatchSize: batchSize,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	return job.(*orderExpiryJob)
}

func TestOrderExpiryJob_ExpiresInBatches(t *testing.T) {
	store := &fakeExpiredOrderStore{pending: makePendingOrders(5)}
	job := newExpiryJob(t, store, 2)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.marked) != 5 {
		t.Fatalf("expected 5 orders expired, got %d", len(store.marked))
	}
	// 2 + 2 + 1; the short final batch ends the sweep.
	if store.listCalls != 3 {
		t.Fatalf("expected 3 batch queries, got %d", store.listCalls)
	}
}

func TestOrderExpiryJob_TolerantOfLostTransitions(t *testing.T) {
	orders := makePendingOrders(2)
	store := &fakeExpiredOrderStore{
		pending: orders,
		lost:    map[uuid.UUID]bool{orders[0].ID: true},
	}
	job := newExpiryJob(t, store, 10)

	// A webhook racing the sweep wins the transition; the job still
	// succeeds and moves on.
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.marked) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(store.marked))
	}
}

func TestOrderExpiryJob_AggregatesErrors(t *testing.T) {
	orders := makePendingOrders(3)
	store := &fakeExpiredOrderStore{
		pending: orders,
		markErr: map[uuid.UUID]error{orders[1].ID: errors.New("db down")},
	}
	job := newExpiryJob(t, store, 10)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	// The failure of one row does not stop the rest of the batch.
	if len(store.marked) != 2 {
		t.Fatalf("expected 2 orders expired, got %d", len(store.marked))
	}
}

func TestOrderExpiryJob_ListErrorSurfaces(t *testing.T) {
	store := &fakeExpiredOrderStore{listErr: errors.New("db down")}
	job := newExpiryJob(t, store, 10)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewOrderExpiryJob_Validation(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	if _, err := NewOrderExpiryJob(OrderExpiryJobParams{Orders: &fakeExpiredOrderStore{}}); err == nil {
		t.Fatal("expected error without logger")
	}
	if _, err := NewOrderExpiryJob(OrderExpiryJobParams{Logger: logg}); err == nil {
		t.Fatal("expected error without store")
	}
}
