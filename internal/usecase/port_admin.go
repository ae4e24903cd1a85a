package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"bizportal.io/portal/internal/domain"
	"bizportal.io/portal/internal/governance/audit"
	apperrors "bizportal.io/portal/internal/pkg/errors"
	"bizportal.io/portal/internal/pkg/logger"
	sqlcrepo "bizportal.io/portal/internal/repository/sqlc"
)

// CreatePortInput describes a new pool port.
type CreatePortInput struct {
	InstanceURL       string
	DBName            string
	DBHost            string
	ServerRegion      string
	Status            domain.PortStatus
	SetupInstructions *string
	Notes             string
}

// UpdatePortInput patches port details. Nil fields are left unchanged.
type UpdatePortInput struct {
	InstanceURL       *string
	DBName            *string
	DBHost            *string
	ServerRegion      *string
	SetupInstructions *string
	Notes             *string
}

// PortPage is one page of ports plus pool-wide counts.
type PortPage struct {
	Ports    []*domain.Port              `json:"ports"`
	Total    int64                       `json:"total"`
	ByStatus map[domain.PortStatus]int64 `json:"by_status"`
}

// PortAdmin implements administrative port operations. Each state change
// is a locked read-modify-write plus one audit entry.
type PortAdmin struct {
	tx    txRunner
	trail *audit.Trail
}

// NewPortAdmin creates a PortAdmin.
func NewPortAdmin(pool *pgxpool.Pool, trail *audit.Trail, lockTimeout time.Duration) *PortAdmin {
	return &PortAdmin{
		tx:    newTxRunner(pool, lockTimeout),
		trail: trail,
	}
}

// SetPortFreedHook installs h to run in every transaction that leaves a port
// AVAILABLE: creation as AVAILABLE, enable, make-available and status changes
// into AVAILABLE.
func (a *PortAdmin) SetPortFreedHook(h PortFreedHook) {
	a.tx.onPortFreed = h
}

// CreatePort adds a port to the pool as AVAILABLE (default) or RESERVED.
func (a *PortAdmin) CreatePort(ctx context.Context, in CreatePortInput, performedBy string) (*domain.Port, error) {
	if in.Status == "" {
		in.Status = domain.PortStatusAvailable
	}
	if in.Status != domain.PortStatusAvailable && in.Status != domain.PortStatusReserved {
		return nil, apperrors.BadRequest(apperrors.CodeValidationFailed,
			"a new port must be AVAILABLE or RESERVED").
			WithParams(map[string]interface{}{"status": string(in.Status)})
	}
	if strings.TrimSpace(in.InstanceURL) == "" {
		return nil, apperrors.BadRequest(apperrors.CodeValidationFailed, "instance_url is required")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate port id: %w", err)
	}

	var created *domain.Port
	err = a.tx.inTxFreeing(ctx, "create port", func(q *sqlcrepo.Queries) error {
		row, err := q.CreatePort(ctx, sqlcrepo.CreatePortParams{
			ID:                id.String(),
			InstanceUrl:       strings.TrimSpace(in.InstanceURL),
			DbName:            in.DBName,
			DbHost:            in.DBHost,
			ServerRegion:      in.ServerRegion,
			Status:            string(in.Status),
			SetupInstructions: optionalText(in.SetupInstructions),
			Notes:             in.Notes,
		})
		if err != nil {
			return fmt.Errorf("insert port: %w", err)
		}
		if _, err := a.trail.Record(ctx, q, audit.Entry{
			Action:      domain.ActionCreated,
			PortID:      row.ID,
			PerformedBy: performedBy,
			Notes:       in.Notes,
		}); err != nil {
			return err
		}
		created = toDomainPort(row)
		return nil
	}, func() bool { return in.Status == domain.PortStatusAvailable })
	if err != nil {
		return nil, err
	}

	logger.Info("Port created",
		zap.String("port_id", created.ID),
		zap.String("status", string(created.Status)),
		zap.String("actor", actorOrSystem(performedBy)),
	)
	return created, nil
}

// GetPort returns a port by id.
func (a *PortAdmin) GetPort(ctx context.Context, id string) (*domain.Port, error) {
	row, err := a.tx.queries.GetPort(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrPortNotFoundf(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get port %s: %w", id, err)
	}
	return toDomainPort(row), nil
}

// ListPorts returns ports oldest first, optionally filtered by status.
func (a *PortAdmin) ListPorts(ctx context.Context, status domain.PortStatus, limit, offset int) (*PortPage, error) {
	filter := pgtype.Text{String: string(status), Valid: status != ""}

	rows, err := a.tx.queries.ListPorts(ctx, sqlcrepo.ListPortsParams{
		Status: filter,
		Limit:  clampInt32(limit),
		Offset: clampInt32(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	total, err := a.tx.queries.CountPorts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count ports: %w", err)
	}
	byStatus, err := a.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	page := &PortPage{Ports: make([]*domain.Port, 0, len(rows)), Total: total, ByStatus: byStatus}
	for _, r := range rows {
		page.Ports = append(page.Ports, toDomainPort(r))
	}
	return page, nil
}

// NextAvailable returns up to limit AVAILABLE ports in the order the
// allocator hands them out.
func (a *PortAdmin) NextAvailable(ctx context.Context, limit int) ([]*domain.Port, error) {
	rows, err := a.tx.queries.ListAvailablePorts(ctx, clampInt32(limit))
	if err != nil {
		return nil, fmt.Errorf("list available ports: %w", err)
	}
	out := make([]*domain.Port, 0, len(rows))
	for _, r := range rows {
		out = append(out, toDomainPort(r))
	}
	return out, nil
}

// CountByStatus returns the number of ports in every status, zero-filled.
func (a *PortAdmin) CountByStatus(ctx context.Context) (map[domain.PortStatus]int64, error) {
	rows, err := a.tx.queries.CountPortsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count ports by status: %w", err)
	}
	counts := map[domain.PortStatus]int64{
		domain.PortStatusAvailable: 0,
		domain.PortStatusReserved:  0,
		domain.PortStatusAssigned:  0,
		domain.PortStatusDisabled:  0,
	}
	for _, r := range rows {
		counts[domain.PortStatus(r.Status)] = r.Count
	}
	return counts, nil
}

// UpdatePort edits connection details. Status is never changed here and no
// audit entry is written.
func (a *PortAdmin) UpdatePort(ctx context.Context, id string, in UpdatePortInput) (*domain.Port, error) {
	if in.InstanceURL != nil && strings.TrimSpace(*in.InstanceURL) == "" {
		return nil, apperrors.BadRequest(apperrors.CodeValidationFailed, "instance_url cannot be empty")
	}

	row, err := a.tx.queries.UpdatePortDetails(ctx, sqlcrepo.UpdatePortDetailsParams{
		ID:                id,
		InstanceUrl:       optionalText(in.InstanceURL),
		DbName:            optionalText(in.DBName),
		DbHost:            optionalText(in.DBHost),
		ServerRegion:      optionalText(in.ServerRegion),
		SetupInstructions: optionalText(in.SetupInstructions),
		Notes:             optionalText(in.Notes),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrPortNotFoundf(id)
	}
	if err != nil {
		return nil, fmt.Errorf("update port %s: %w", id, err)
	}
	return toDomainPort(row), nil
}

// DeletePort hard-deletes a port that is not ASSIGNED. The port's audit
// history is kept.
func (a *PortAdmin) DeletePort(ctx context.Context, id, performedBy string) error {
	err := a.tx.inTx(ctx, "delete port", func(q *sqlcrepo.Queries) error {
		port, err := q.LockPortByID(ctx, id)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrPortNotFoundf(id)
		}
		if err != nil {
			return fmt.Errorf("lock port %s: %w", id, err)
		}
		if domain.PortStatus(port.Status) == domain.PortStatusAssigned {
			return apperrors.ErrPortInUsef(id)
		}

		n, err := q.DeletePort(ctx, id)
		if err != nil {
			return fmt.Errorf("delete port %s: %w", id, err)
		}
		if n == 0 {
			return apperrors.ErrPortInUsef(id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Port deleted",
		zap.String("port_id", id),
		zap.String("actor", actorOrSystem(performedBy)),
	)
	return nil
}

// DisablePort takes an AVAILABLE or RESERVED port out of service. An
// ASSIGNED port is rejected with PORT_IN_USE; release it first.
func (a *PortAdmin) DisablePort(ctx context.Context, id, performedBy, notes string) (*domain.Port, error) {
	return a.transition(ctx, id, domain.PortStatusDisabled, domain.ActionDisabled, performedBy, notes,
		domain.PortStatusAvailable, domain.PortStatusReserved)
}

// EnablePort returns a DISABLED port to the pool.
func (a *PortAdmin) EnablePort(ctx context.Context, id, performedBy, notes string) (*domain.Port, error) {
	return a.transition(ctx, id, domain.PortStatusAvailable, domain.ActionEnabled, performedBy, notes,
		domain.PortStatusDisabled)
}

// ReservePort holds an AVAILABLE port back from automatic allocation.
func (a *PortAdmin) ReservePort(ctx context.Context, id, performedBy, notes string) (*domain.Port, error) {
	return a.transition(ctx, id, domain.PortStatusReserved, domain.ActionReserved, performedBy, notes,
		domain.PortStatusAvailable)
}

// MakeAvailable returns a RESERVED port to the pool.
func (a *PortAdmin) MakeAvailable(ctx context.Context, id, performedBy, notes string) (*domain.Port, error) {
	return a.transition(ctx, id, domain.PortStatusAvailable, domain.ActionMadeAvailable, performedBy, notes,
		domain.PortStatusReserved)
}

// ChangeStatus applies any legal administrative edge and records
// STATUS_CHANGED. ASSIGNED is only entered or left through the engine.
func (a *PortAdmin) ChangeStatus(ctx context.Context, id string, to domain.PortStatus, performedBy, notes string) (*domain.Port, error) {
	if !to.Valid() {
		return nil, apperrors.BadRequest(apperrors.CodeValidationFailed, "unknown port status").
			WithParams(map[string]interface{}{"status": string(to)})
	}
	return a.transition(ctx, id, to, domain.ActionStatusChanged, performedBy, notes,
		domain.PortStatusAvailable, domain.PortStatusReserved, domain.PortStatusDisabled)
}

func (a *PortAdmin) transition(
	ctx context.Context, id string, to domain.PortStatus, action domain.AllocationAction,
	performedBy, notes string, allowedFrom ...domain.PortStatus,
) (*domain.Port, error) {
	var (
		updated *domain.Port
		from    domain.PortStatus
	)

	err := a.tx.inTxFreeing(ctx, strings.ToLower(string(action))+" port", func(q *sqlcrepo.Queries) error {
		port, err := q.LockPortByID(ctx, id)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrPortNotFoundf(id)
		}
		if err != nil {
			return fmt.Errorf("lock port %s: %w", id, err)
		}
		from = domain.PortStatus(port.Status)

		if from == domain.PortStatusAssigned {
			if to == domain.PortStatusDisabled {
				return apperrors.ErrPortInUsef(id)
			}
			return apperrors.ErrInvalidTransitionf(string(from), string(to))
		}
		if to == domain.PortStatusAssigned || !statusIn(from, allowedFrom) || !domain.CanTransition(from, to) {
			return apperrors.ErrInvalidTransitionf(string(from), string(to))
		}

		row, err := q.UpdatePortStatus(ctx, sqlcrepo.UpdatePortStatusParams{
			ID:         id,
			FromStatus: string(from),
			ToStatus:   string(to),
		})
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrInvalidTransitionf(string(from), string(to))
		}
		if err != nil {
			return fmt.Errorf("update port %s status: %w", id, err)
		}

		if _, err := a.trail.Record(ctx, q, audit.Entry{
			Action:      action,
			PortID:      id,
			PerformedBy: performedBy,
			Notes:       transitionNotes(action, from, to, notes),
		}); err != nil {
			return err
		}
		updated = toDomainPort(row)
		return nil
	}, func() bool { return to == domain.PortStatusAvailable })
	if err != nil {
		return nil, err
	}

	logger.Info("Port status changed",
		zap.String("port_id", id),
		zap.String("action", string(action)),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", actorOrSystem(performedBy)),
	)
	return updated, nil
}

func statusIn(s domain.PortStatus, set []domain.PortStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// transitionNotes prefixes STATUS_CHANGED entries with the edge taken, since
// the action alone does not say where the port ended up.
func transitionNotes(action domain.AllocationAction, from, to domain.PortStatus, notes string) string {
	if action != domain.ActionStatusChanged {
		return notes
	}
	edge := fmt.Sprintf("%s -> %s", from, to)
	if notes == "" {
		return edge
	}
	return edge + ": " + notes
}

// clampInt32 bounds n to the non-negative int32 range used by LIMIT/OFFSET.
func clampInt32(n int) int32 {
	return int32(max(0, min(n, math.MaxInt32)))
}
