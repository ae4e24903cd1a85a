package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"bizportal.io/portal/internal/domain"
	"bizportal.io/portal/internal/governance/audit"
	apperrors "bizportal.io/portal/internal/pkg/errors"
	"bizportal.io/portal/internal/pkg/logger"
	sqlcrepo "bizportal.io/portal/internal/repository/sqlc"
)

// AllocationResult is the outcome of allocate and reassign. Expected business
// failures are reported in Error with Success=false; the returned error is
// reserved for infrastructure failures.
type AllocationResult struct {
	Success bool                `json:"success"`
	Port    *domain.Port        `json:"port,omitempty"`
	Error   *apperrors.AppError `json:"error,omitempty"`
}

// AllocationEngine binds pooled ports to subscriptions.
type AllocationEngine struct {
	tx    txRunner
	trail *audit.Trail

	// onPortLocked runs after a pool port is locked and before it is assigned.
	onPortLocked func(ctx context.Context, subscriptionID, portID string)
}

// NewAllocationEngine creates an AllocationEngine. lockTimeout bounds how long
// a targeted row lock may wait.
func NewAllocationEngine(pool *pgxpool.Pool, trail *audit.Trail, lockTimeout time.Duration) *AllocationEngine {
	return &AllocationEngine{
		tx:    newTxRunner(pool, lockTimeout),
		trail: trail,
	}
}

// SetPortFreedHook installs h to run in every transaction that returns an
// assigned port to the pool: a release, or the old port of a reassignment.
func (e *AllocationEngine) SetPortFreedHook(h PortFreedHook) {
	e.tx.onPortFreed = h
}

// AllocatePortToSubscription binds the oldest AVAILABLE port to an ACTIVE
// subscription. A subscription that already holds a port gets it back
// unchanged.
func (e *AllocationEngine) AllocatePortToSubscription(ctx context.Context, subscriptionID, performedBy string) (AllocationResult, error) {
	var port *domain.Port

	err := e.tx.inTx(ctx, "allocate port", func(q *sqlcrepo.Queries) error {
		sub, err := lockActiveSubscription(ctx, q, subscriptionID)
		if err != nil {
			return err
		}

		if sub.AssignedPortID.Valid {
			held, err := q.GetPort(ctx, sub.AssignedPortID.String)
			if err != nil {
				return fmt.Errorf("get held port %s: %w", sub.AssignedPortID.String, err)
			}
			port = toDomainPort(held)
			return nil
		}

		candidate, err := q.LockOneAvailablePort(ctx)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNoAvailablePortsf()
		}
		if err != nil {
			return fmt.Errorf("lock available port: %w", err)
		}

		if e.onPortLocked != nil {
			e.onPortLocked(ctx, subscriptionID, candidate.ID)
		}

		assigned, err := e.assign(ctx, q, sub, candidate.ID, domain.ActionAssigned, performedBy, "")
		if err != nil {
			return err
		}
		port = assigned
		return nil
	})
	if result, handled := asResult(err); handled {
		return result, nil
	}
	if err != nil {
		return AllocationResult{}, err
	}

	logger.Info("Port allocated",
		zap.String("subscription_id", subscriptionID),
		zap.String("port_id", port.ID),
		zap.String("actor", actorOrSystem(performedBy)),
	)
	return AllocationResult{Success: true, Port: port}, nil
}

// ReleasePort returns the subscription's port to the pool. Releasing a
// subscription without a port succeeds without writing anything.
func (e *AllocationEngine) ReleasePort(ctx context.Context, subscriptionID, performedBy string) error {
	var (
		releasedPortID string
		freed          bool
	)

	err := e.tx.inTxFreeing(ctx, "release port", func(q *sqlcrepo.Queries) error {
		sub, err := q.LockSubscription(ctx, subscriptionID)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrSubscriptionNotFoundf(subscriptionID)
		}
		if err != nil {
			return fmt.Errorf("lock subscription %s: %w", subscriptionID, err)
		}
		if !sub.AssignedPortID.Valid {
			return nil
		}

		portID := sub.AssignedPortID.String
		released, err := e.unassign(ctx, q, sub, portID, domain.ActionReleased, performedBy, "")
		if err != nil {
			return err
		}
		if err := setSubscriptionPort(ctx, q, sub.ID, ""); err != nil {
			return err
		}
		releasedPortID = portID
		freed = released != nil
		return nil
	}, func() bool { return freed })
	if err != nil {
		return err
	}

	if releasedPortID != "" {
		logger.Info("Port released",
			zap.String("subscription_id", subscriptionID),
			zap.String("port_id", releasedPortID),
			zap.String("actor", actorOrSystem(performedBy)),
		)
	}
	return nil
}

// ReassignPort moves a subscription from its current port to newPortID in
// one transaction. If newPortID cannot be taken, nothing changes.
func (e *AllocationEngine) ReassignPort(ctx context.Context, subscriptionID, newPortID, performedBy string) (AllocationResult, error) {
	var (
		port      *domain.Port
		oldPortID string
		freed     bool
	)

	err := e.tx.inTxFreeing(ctx, "reassign port", func(q *sqlcrepo.Queries) error {
		sub, err := lockActiveSubscription(ctx, q, subscriptionID)
		if err != nil {
			return err
		}

		if sub.AssignedPortID.Valid {
			oldPortID = sub.AssignedPortID.String
		}
		if oldPortID == newPortID {
			held, err := q.GetPort(ctx, newPortID)
			if err != nil {
				return fmt.Errorf("get held port %s: %w", newPortID, err)
			}
			port = toDomainPort(held)
			return nil
		}

		locked, err := lockPortsInOrder(ctx, q, oldPortID, newPortID)
		if err != nil {
			return err
		}

		target, ok := locked[newPortID]
		if !ok {
			return apperrors.ErrPortNotFoundf(newPortID)
		}
		switch domain.PortStatus(target.Status) {
		case domain.PortStatusAvailable:
		case domain.PortStatusAssigned:
			return apperrors.ErrPortInUsef(newPortID)
		default:
			return apperrors.ErrInvalidTransitionf(target.Status, string(domain.PortStatusAssigned))
		}

		notes := ""
		if oldPortID != "" {
			previous, err := e.unassign(ctx, q, sub, oldPortID, domain.ActionUnassigned, performedBy,
				"reassigned to port "+newPortID)
			if err != nil {
				return err
			}
			freed = previous != nil
			notes = "reassigned from port " + oldPortID
		}

		assigned, err := e.assign(ctx, q, sub, newPortID, domain.ActionReassigned, performedBy, notes)
		if err != nil {
			return err
		}
		port = assigned
		return nil
	}, func() bool { return freed })
	if result, handled := asResult(err); handled {
		return result, nil
	}
	if err != nil {
		return AllocationResult{}, err
	}

	if oldPortID != newPortID {
		logger.Info("Port reassigned",
			zap.String("subscription_id", subscriptionID),
			zap.String("from_port_id", oldPortID),
			zap.String("to_port_id", newPortID),
			zap.String("actor", actorOrSystem(performedBy)),
		)
	}
	return AllocationResult{Success: true, Port: port}, nil
}

// HasAvailablePorts is an unlocked hint. A true result does not reserve
// anything; only AllocatePortToSubscription takes a port.
func (e *AllocationEngine) HasAvailablePorts(ctx context.Context) (bool, error) {
	n, err := e.tx.queries.CountAvailablePorts(ctx)
	if err != nil {
		return false, fmt.Errorf("count available ports: %w", err)
	}
	return n > 0, nil
}

// ListSubscriptionsNeedingAllocation returns ACTIVE subscriptions without a
// port, oldest first.
func (e *AllocationEngine) ListSubscriptionsNeedingAllocation(ctx context.Context, limit int) ([]string, error) {
	ids, err := e.tx.queries.ListSubscriptionsNeedingAllocation(ctx, clampInt32(limit))
	if err != nil {
		return nil, fmt.Errorf("list subscriptions needing allocation: %w", err)
	}
	return ids, nil
}

// CountSubscriptionsNeedingAllocation counts ACTIVE subscriptions without a port.
func (e *AllocationEngine) CountSubscriptionsNeedingAllocation(ctx context.Context) (int64, error) {
	n, err := e.tx.queries.CountSubscriptionsNeedingAllocation(ctx)
	if err != nil {
		return 0, fmt.Errorf("count subscriptions needing allocation: %w", err)
	}
	return n, nil
}

// assign binds portID (already locked and AVAILABLE) to sub and records action.
func (e *AllocationEngine) assign(
	ctx context.Context, q *sqlcrepo.Queries, sub sqlcrepo.Subscription,
	portID string, action domain.AllocationAction, performedBy, notes string,
) (*domain.Port, error) {
	row, err := q.AssignPort(ctx, sqlcrepo.AssignPortParams{ID: portID, SubscriptionID: sub.ID})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrPortInUsef(portID)
	}
	if err != nil {
		return nil, fmt.Errorf("assign port %s: %w", portID, err)
	}

	if _, err := e.trail.Record(ctx, q, audit.Entry{
		Action:         action,
		PortID:         portID,
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID.String,
		PerformedBy:    performedBy,
		Notes:          notes,
	}); err != nil {
		return nil, err
	}

	if err := setSubscriptionPort(ctx, q, sub.ID, portID); err != nil {
		return nil, err
	}
	return toDomainPort(row), nil
}

// unassign locks portID and returns it to the pool, recording action. The
// subscription's own reference is left to the caller.
func (e *AllocationEngine) unassign(
	ctx context.Context, q *sqlcrepo.Queries, sub sqlcrepo.Subscription,
	portID string, action domain.AllocationAction, performedBy, notes string,
) (*domain.Port, error) {
	current, err := q.LockPortByID(ctx, portID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lock port %s: %w", portID, err)
	}
	if errors.Is(err, pgx.ErrNoRows) || current.AssignedSubscriptionID.String != sub.ID {
		// The port side no longer points back; only the subscription
		// reference is stale.
		logger.Warn("Subscription referenced a port it does not hold",
			zap.String("subscription_id", sub.ID),
			zap.String("port_id", portID),
		)
		return nil, nil
	}

	row, err := q.UnassignPort(ctx, portID)
	if err != nil {
		return nil, fmt.Errorf("unassign port %s: %w", portID, err)
	}

	if _, err := e.trail.Record(ctx, q, audit.Entry{
		Action:         action,
		PortID:         portID,
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID.String,
		PerformedBy:    performedBy,
		Notes:          notes,
	}); err != nil {
		return nil, err
	}
	return toDomainPort(row), nil
}

func lockActiveSubscription(ctx context.Context, q *sqlcrepo.Queries, subscriptionID string) (sqlcrepo.Subscription, error) {
	sub, err := q.LockSubscription(ctx, subscriptionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return sub, apperrors.ErrSubscriptionNotFoundf(subscriptionID)
	}
	if err != nil {
		return sub, fmt.Errorf("lock subscription %s: %w", subscriptionID, err)
	}
	if domain.SubscriptionStatus(sub.Status) != domain.SubscriptionStatusActive {
		return sub, apperrors.ErrInvalidTransitionf(sub.Status, string(domain.PortStatusAssigned))
	}
	return sub, nil
}

// lockPortsInOrder locks the given ports by ascending id so concurrent
// reassignments cannot deadlock. Missing ports are absent from the map.
func lockPortsInOrder(ctx context.Context, q *sqlcrepo.Queries, ids ...string) (map[string]sqlcrepo.Port, error) {
	ordered := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			ordered = append(ordered, id)
		}
	}
	sort.Strings(ordered)

	locked := make(map[string]sqlcrepo.Port, len(ordered))
	for _, id := range ordered {
		p, err := q.LockPortByID(ctx, id)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lock port %s: %w", id, err)
		}
		locked[id] = p
	}
	return locked, nil
}

func setSubscriptionPort(ctx context.Context, q *sqlcrepo.Queries, subscriptionID, portID string) error {
	n, err := q.SetSubscriptionPort(ctx, sqlcrepo.SetSubscriptionPortParams{
		ID:             subscriptionID,
		AssignedPortID: text(portID),
	})
	if err != nil {
		return fmt.Errorf("set subscription %s port: %w", subscriptionID, err)
	}
	if n == 0 {
		return apperrors.ErrSubscriptionNotFoundf(subscriptionID)
	}
	return nil
}

// asResult folds expected business failures into a result value.
func asResult(err error) (AllocationResult, bool) {
	if err == nil {
		return AllocationResult{}, false
	}
	appErr, ok := apperrors.IsAppError(err)
	if !ok {
		return AllocationResult{}, false
	}
	return AllocationResult{Success: false, Error: appErr}, true
}

func actorOrSystem(performedBy string) string {
	if performedBy == "" {
		return "system"
	}
	return performedBy
}
