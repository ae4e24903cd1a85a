// Package worker provides goroutine pool management.
//
// Naked goroutines are not used for background work: everything goes through
// a named ants pool with context propagation and panic recovery.
//
// Import Path: bizportal.io/portal/internal/pkg/worker
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"bizportal.io/portal/internal/pkg/logger"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Pool names, as reported by Metrics.
const (
	PoolGeneral    = "general"
	PoolAllocation = "allocation"
)

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission.
type Pool struct {
	pool *ants.Pool
	name string
}

// Pools is the worker pool collection.
type Pools struct {
	General *Pool
	// Allocation bounds concurrent allocation transactions so background
	// sweeps cannot exhaust the database pool.
	Allocation *Pool
}

// PoolConfig contains worker pool configuration.
type PoolConfig struct {
	GeneralPoolSize    int
	AllocationPoolSize int
}

// DefaultPoolConfig returns default configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		GeneralPoolSize:    50,
		AllocationPoolSize: 8,
	}
}

// NewPools creates the worker pool collection.
func NewPools(cfg PoolConfig) (*Pools, error) {
	panicHandler := func(p interface{}) {
		logger.Error("Worker panic recovered",
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	generalAnts, err := ants.NewPool(cfg.GeneralPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		return nil, err
	}

	allocationAnts, err := ants.NewPool(cfg.AllocationPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(30*time.Second),
	)
	if err != nil {
		generalAnts.Release()
		return nil, err
	}

	return &Pools{
		General:    &Pool{pool: generalAnts, name: PoolGeneral},
		Allocation: &Pool{pool: allocationAnts, name: PoolAllocation},
	}, nil
}

// Submit submits a context-aware task.
// If ctx is already cancelled, returns ctx.Err() without submitting. A task
// whose ctx is cancelled while queued is skipped.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	return p.submit(ctx, task, nil)
}

// Run submits every task and blocks until each has finished or been skipped.
// It returns the first submission error; tasks submitted before it still run.
func (p *Pool) Run(ctx context.Context, tasks []Task) error {
	var (
		wg       sync.WaitGroup
		firstErr error
	)
	for _, task := range tasks {
		task := task
		wg.Add(1)
		err := p.submit(ctx, func(ctx context.Context) {
			defer wg.Done()
			task(ctx)
		}, wg.Done)
		if err != nil {
			wg.Done()
			firstErr = err
			break
		}
	}
	wg.Wait()
	return firstErr
}

func (p *Pool) submit(ctx context.Context, task Task, onSkip func()) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := p.pool.Submit(func() {
		select {
		case <-ctx.Done():
			logger.Debug("Task skipped: context cancelled",
				zap.String("pool", p.name),
				zap.Error(ctx.Err()),
			)
			if onSkip != nil {
				onSkip()
			}
			return
		default:
		}
		task(ctx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Cap returns the pool's worker limit.
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Shutdown waits up to 30s for running tasks, then releases both pools.
func (p *Pools) Shutdown() {
	const shutdownTimeout = 30 * time.Second
	if err := p.General.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("General pool shutdown timeout", zap.Error(err))
	}
	if err := p.Allocation.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("Allocation pool shutdown timeout", zap.Error(err))
	}
}

// Metrics returns pool metrics for observability.
func (p *Pools) Metrics() map[string]interface{} {
	return map[string]interface{}{
		PoolGeneral:    poolMetrics(p.General),
		PoolAllocation: poolMetrics(p.Allocation),
	}
}

func poolMetrics(p *Pool) map[string]int {
	return map[string]int{
		"running": p.pool.Running(),
		"free":    p.pool.Free(),
		"cap":     p.pool.Cap(),
	}
}
