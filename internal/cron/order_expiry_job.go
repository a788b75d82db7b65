package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/vendhub/vendhub-backend/pkg/db/models"
	"github.com/vendhub/vendhub-backend/pkg/logger"
)

const defaultExpiryBatchSize = 100

// expiredOrderStore is the slice of the orders repository the job needs.
type expiredOrderStore interface {
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
}

// OrderExpiryJobParams configure the stale checkout sweeper.
type OrderExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    expiredOrderStore
	BatchSize int
}

// NewOrderExpiryJob builds the cron job that expires checkouts whose
// payment window lapsed before a terminal webhook arrived.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders store required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultExpiryBatchSize
	}
	return &orderExpiryJob{
		logg:      params.Logger,
		orders:    params.Orders,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg      *logger.Logger
	orders    expiredOrderStore
	batchSize int
	now       func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	expired := 0
	var errs []error

	for {
		batch, err := j.orders.ListExpiredPending(ctx, cutoff, j.batchSize)
		if err != nil {
			errs = append(errs, fmt.Errorf("query expired orders: %w", err))
			break
		}
		for _, order := range batch {
			won, err := j.orders.MarkExpired(ctx, order.ID)
			if err != nil {
				errs = append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
				continue
			}
			// Losing the guarded transition means a webhook landed
			// between the sweep query and the update; leave it be.
			if won {
				expired++
			}
		}
		// A failed row would be re-selected next batch; stop rather
		// than spin on it.
		if len(errs) > 0 || len(batch) < j.batchSize {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": expired})
	j.logg.Info(logCtx, "order expiry sweep complete")
	return multierr.Combine(errs...)
}
