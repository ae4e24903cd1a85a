// Package usecase provides the port allocation use cases.
//
// Every state change runs in one pgx.Tx that also writes the matching audit
// entry, so an entry exists iff its change committed.
//
// Import Path: bizportal.io/portal/internal/usecase
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "bizportal.io/portal/internal/pkg/errors"
	sqlcrepo "bizportal.io/portal/internal/repository/sqlc"
)

// SQLSTATEs that abort a transaction on lock contention.
const (
	sqlStateLockNotAvailable     = "55P03"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateSerializationFailure = "40001"
)

// PortFreedHook runs inside the transaction that returned a port to the
// pool, just before it commits. An error rolls the whole change back.
type PortFreedHook func(ctx context.Context, tx pgx.Tx) error

// txRunner opens transactions with a bounded lock wait.
type txRunner struct {
	pool        *pgxpool.Pool
	queries     *sqlcrepo.Queries
	lockTimeout time.Duration
	onPortFreed PortFreedHook
}

func newTxRunner(pool *pgxpool.Pool, lockTimeout time.Duration) txRunner {
	return txRunner{
		pool:        pool,
		queries:     sqlcrepo.New(pool),
		lockTimeout: lockTimeout,
	}
}

// inTx runs fn in a transaction and commits when fn returns nil. Any error
// rolls back every write made by fn.
func (r txRunner) inTx(ctx context.Context, name string, fn func(q *sqlcrepo.Queries) error) error {
	return r.run(ctx, name, fn, nil)
}

// inTxFreeing is inTx for changes that may put a port back in the pool. When
// freed reports true after fn succeeds, the port-freed hook joins the
// transaction.
func (r txRunner) inTxFreeing(ctx context.Context, name string, fn func(q *sqlcrepo.Queries) error, freed func() bool) error {
	return r.run(ctx, name, fn, freed)
}

func (r txRunner) run(ctx context.Context, name string, fn func(q *sqlcrepo.Queries) error, freed func() bool) error {
	if r.pool == nil {
		return fmt.Errorf("%s: database pool is not initialized", name)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	qtx := r.queries.WithTx(tx)
	if err := qtx.SetLockTimeout(ctx, lockTimeoutSetting(r.lockTimeout)); err != nil {
		return fmt.Errorf("set lock timeout for %s: %w", name, err)
	}

	if err := fn(qtx); err != nil {
		return classifyTxError(err)
	}

	if freed != nil && r.onPortFreed != nil && freed() {
		if err := r.onPortFreed(ctx, tx); err != nil {
			return classifyTxError(fmt.Errorf("%s: port freed hook: %w", name, err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyTxError(fmt.Errorf("commit %s tx: %w", name, err))
	}
	return nil
}

func lockTimeoutSetting(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("%dms", ms)
}

// classifyTxError turns lock contention aborts into a retryable LOCK_TIMEOUT
// and passes every other error through.
func classifyTxError(err error) error {
	if _, ok := apperrors.IsAppError(err); ok {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateLockNotAvailable, sqlStateDeadlockDetected, sqlStateSerializationFailure:
			return apperrors.ErrLockTimeoutf(err)
		}
	}
	return err
}
