package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"bizportal.io/portal/internal/domain"
	"bizportal.io/portal/internal/pkg/logger"
	"bizportal.io/portal/internal/pkg/worker"
)

// PoolCounter reports pool and backlog sizes.
type PoolCounter interface {
	CountByStatus(ctx context.Context) (map[domain.PortStatus]int64, error)
}

// BacklogCounter reports how many subscriptions wait for a port.
type BacklogCounter interface {
	CountSubscriptionsNeedingAllocation(ctx context.Context) (int64, error)
}

// AvailabilityReportArgs logs a snapshot of pool capacity.
type AvailabilityReportArgs struct{}

// Kind returns the job kind identifier.
func (AvailabilityReportArgs) Kind() string { return "port_availability_report" }

// InsertOpts keeps at most one report per five minutes.
func (AvailabilityReportArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: 5 * time.Minute,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// AvailabilityReport is one capacity snapshot.
type AvailabilityReport struct {
	ByStatus map[domain.PortStatus]int64
	Backlog  int64
}

// Exhausted reports whether subscriptions are waiting on an empty pool.
func (r AvailabilityReport) Exhausted() bool {
	return r.ByStatus[domain.PortStatusAvailable] == 0 && r.Backlog > 0
}

// AvailabilityReportWorker logs pool capacity and warns when it runs dry.
type AvailabilityReportWorker struct {
	river.WorkerDefaults[AvailabilityReportArgs]
	ports   PoolCounter
	backlog BacklogCounter
	pool    *worker.Pool
}

// NewAvailabilityReportWorker creates a report worker. With a pool the two
// counts run concurrently on it; a nil pool runs them in turn.
func NewAvailabilityReportWorker(ports PoolCounter, backlog BacklogCounter, pool *worker.Pool) *AvailabilityReportWorker {
	return &AvailabilityReportWorker{ports: ports, backlog: backlog, pool: pool}
}

// Work takes and logs one snapshot.
func (w *AvailabilityReportWorker) Work(ctx context.Context, _ *river.Job[AvailabilityReportArgs]) error {
	_, err := w.Report(ctx)
	return err
}

// Report takes one snapshot and logs it.
func (w *AvailabilityReportWorker) Report(ctx context.Context) (AvailabilityReport, error) {
	if w == nil || w.ports == nil || w.backlog == nil {
		return AvailabilityReport{}, fmt.Errorf("availability report worker is not initialized")
	}

	var (
		byStatus              map[domain.PortStatus]int64
		backlog               int64
		statusErr, backlogErr error
	)
	tasks := []worker.Task{
		func(ctx context.Context) { byStatus, statusErr = w.ports.CountByStatus(ctx) },
		func(ctx context.Context) { backlog, backlogErr = w.backlog.CountSubscriptionsNeedingAllocation(ctx) },
	}
	if w.pool != nil {
		if err := w.pool.Run(ctx, tasks); err != nil {
			return AvailabilityReport{}, fmt.Errorf("run availability counts: %w", err)
		}
		// Run skips tasks whose context was cancelled while queued.
		if err := ctx.Err(); err != nil {
			return AvailabilityReport{}, err
		}
	} else {
		for _, task := range tasks {
			task(ctx)
		}
	}
	if statusErr != nil {
		return AvailabilityReport{}, fmt.Errorf("count ports by status: %w", statusErr)
	}
	if backlogErr != nil {
		return AvailabilityReport{}, fmt.Errorf("count allocation backlog: %w", backlogErr)
	}

	report := AvailabilityReport{ByStatus: byStatus, Backlog: backlog}
	fields := []zap.Field{
		zap.Int64("available", byStatus[domain.PortStatusAvailable]),
		zap.Int64("assigned", byStatus[domain.PortStatusAssigned]),
		zap.Int64("reserved", byStatus[domain.PortStatusReserved]),
		zap.Int64("disabled", byStatus[domain.PortStatusDisabled]),
		zap.Int64("awaiting_allocation", backlog),
	}
	if report.Exhausted() {
		logger.Warn("port pool exhausted with subscriptions waiting", fields...)
	} else {
		logger.Info("port pool availability", fields...)
	}
	return report, nil
}
