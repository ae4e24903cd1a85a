// Package jobs defines River Queue job types for background port work.
//
// Jobs carry no payload: each run reads current state from the database, so
// a duplicate or late run is harmless.
//
// Import Path: bizportal.io/portal/internal/jobs
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"go.uber.org/zap"

	apperrors "bizportal.io/portal/internal/pkg/errors"
	"bizportal.io/portal/internal/pkg/logger"
	"bizportal.io/portal/internal/pkg/worker"
	"bizportal.io/portal/internal/usecase"
)

// DefaultSweepBatchSize caps the subscriptions retried per sweep.
const DefaultSweepBatchSize = 100

// Allocator is the slice of the allocation engine the sweep drives.
type Allocator interface {
	HasAvailablePorts(ctx context.Context) (bool, error)
	ListSubscriptionsNeedingAllocation(ctx context.Context, limit int) ([]string, error)
	AllocatePortToSubscription(ctx context.Context, subscriptionID, performedBy string) (usecase.AllocationResult, error)
}

// PendingAllocationArgs retries allocation for ACTIVE subscriptions that
// have no port, typically because the pool was empty at purchase time.
type PendingAllocationArgs struct{}

// Kind returns the job kind identifier.
func (PendingAllocationArgs) Kind() string { return "port_pending_allocation_sweep" }

// InsertOpts keeps at most one sweep per minute in the queue.
func (PendingAllocationArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: time.Minute,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// TxInserter enqueues jobs inside a caller's transaction. *river.Client
// satisfies it.
type TxInserter interface {
	InsertTx(ctx context.Context, tx pgx.Tx, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// SweepOnPortFreed returns a hook that enqueues a sweep in the transaction
// that freed a port, so the job exists iff the port really went back. The
// inserter is resolved per call; nil skips the enqueue. Unique insert
// options collapse bursts into one job.
func SweepOnPortFreed(inserter func() TxInserter) usecase.PortFreedHook {
	return func(ctx context.Context, tx pgx.Tx) error {
		client := inserter()
		if client == nil {
			return nil
		}
		if _, err := client.InsertTx(ctx, tx, PendingAllocationArgs{}, nil); err != nil {
			return fmt.Errorf("enqueue pending allocation sweep: %w", err)
		}
		return nil
	}
}

// SweepStats summarizes one sweep run.
type SweepStats struct {
	Candidates int
	Allocated  int64
	Exhausted  int64
	Failed     int64
}

// PendingAllocationWorker runs the sweep on the allocation worker pool.
type PendingAllocationWorker struct {
	river.WorkerDefaults[PendingAllocationArgs]
	allocator Allocator
	pool      *worker.Pool
	batchSize int
}

// NewPendingAllocationWorker creates a sweep worker. Non-positive batchSize
// falls back to DefaultSweepBatchSize.
func NewPendingAllocationWorker(allocator Allocator, pool *worker.Pool, batchSize int) *PendingAllocationWorker {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	return &PendingAllocationWorker{
		allocator: allocator,
		pool:      pool,
		batchSize: batchSize,
	}
}

// Work allocates ports to waiting subscriptions, oldest first.
func (w *PendingAllocationWorker) Work(ctx context.Context, _ *river.Job[PendingAllocationArgs]) error {
	_, err := w.Sweep(ctx)
	return err
}

// Sweep performs one pass and reports what happened. Allocation failures for
// individual subscriptions are logged, not returned.
func (w *PendingAllocationWorker) Sweep(ctx context.Context) (SweepStats, error) {
	if w == nil || w.allocator == nil || w.pool == nil {
		return SweepStats{}, fmt.Errorf("pending allocation worker is not initialized")
	}

	available, err := w.allocator.HasAvailablePorts(ctx)
	if err != nil {
		return SweepStats{}, fmt.Errorf("check pool availability: %w", err)
	}
	if !available {
		logger.Debug("pending allocation sweep skipped: pool is empty")
		return SweepStats{}, nil
	}

	ids, err := w.allocator.ListSubscriptionsNeedingAllocation(ctx, w.batchSize)
	if err != nil {
		return SweepStats{}, fmt.Errorf("list subscriptions needing allocation: %w", err)
	}
	stats := SweepStats{Candidates: len(ids)}
	if len(ids) == 0 {
		return stats, nil
	}

	var exhausted atomic.Bool
	tasks := make([]worker.Task, 0, len(ids))
	for _, id := range ids {
		id := id
		tasks = append(tasks, func(ctx context.Context) {
			if exhausted.Load() {
				atomic.AddInt64(&stats.Exhausted, 1)
				return
			}
			res, err := w.allocator.AllocatePortToSubscription(ctx, id, "")
			switch {
			case err != nil:
				atomic.AddInt64(&stats.Failed, 1)
				logger.Warn("pending allocation failed",
					zap.String("subscription_id", id),
					zap.Error(err),
				)
			case res.Success:
				atomic.AddInt64(&stats.Allocated, 1)
			case res.Error != nil && res.Error.Code == apperrors.CodeNoAvailablePorts:
				exhausted.Store(true)
				atomic.AddInt64(&stats.Exhausted, 1)
			default:
				atomic.AddInt64(&stats.Failed, 1)
				logger.Warn("pending allocation rejected",
					zap.String("subscription_id", id),
					zap.String("code", res.Error.Code),
				)
			}
		})
	}

	if err := w.pool.Run(ctx, tasks); err != nil {
		return stats, fmt.Errorf("run pending allocations: %w", err)
	}

	logger.Info("pending allocation sweep completed",
		zap.Int("candidates", stats.Candidates),
		zap.Int64("allocated", stats.Allocated),
		zap.Int64("exhausted", stats.Exhausted),
		zap.Int64("failed", stats.Failed),
	)
	return stats, nil
}
