// Package audit implements the port allocation audit trail.
//
// Entries are append-only: they are written in the same transaction as the
// state change they describe and are never updated or deleted afterwards.
//
// Import Path: bizportal.io/portal/internal/governance/audit
package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"bizportal.io/portal/internal/domain"
	"bizportal.io/portal/internal/pkg/logger"
	"bizportal.io/portal/internal/repository/sqlc"
)

// Entry is one audit record to write. Empty ids are stored as NULL;
// an empty PerformedBy marks a system action.
type Entry struct {
	Action         domain.AllocationAction
	PortID         string
	SubscriptionID string
	CustomerID     string
	PerformedBy    string
	Notes          string
}

// Trail writes and reads allocation log entries.
type Trail struct {
	db sqlc.DBTX
}

// NewTrail creates a Trail that reads through db. Writes always go through
// the caller's transaction-bound Queries.
func NewTrail(db sqlc.DBTX) *Trail {
	return &Trail{db: db}
}

// Record appends e using q, which must be bound to the transaction that
// performs the matching state change.
func (t *Trail) Record(ctx context.Context, q *sqlc.Queries, e Entry) (sqlc.PortAllocationLog, error) {
	if !e.Action.Valid() {
		return sqlc.PortAllocationLog{}, fmt.Errorf("record audit entry: unknown action %q", e.Action)
	}

	row, err := q.InsertAllocationLog(ctx, sqlc.InsertAllocationLogParams{
		ID:             generateLogID(),
		PortID:         nullable(e.PortID),
		SubscriptionID: nullable(e.SubscriptionID),
		CustomerID:     nullable(e.CustomerID),
		Action:         string(e.Action),
		PerformedBy:    nullable(e.PerformedBy),
		Notes:          e.Notes,
	})
	if err != nil {
		logger.Error("Failed to write allocation log",
			zap.String("action", string(e.Action)),
			zap.String("port_id", e.PortID),
			zap.String("subscription_id", e.SubscriptionID),
			zap.Error(err),
		)
		return sqlc.PortAllocationLog{}, fmt.Errorf("record audit entry: %w", err)
	}
	return row, nil
}

// PortHistory returns every entry that references portID, oldest first.
func (t *Trail) PortHistory(ctx context.Context, portID string) ([]sqlc.PortAllocationLog, error) {
	rows, err := sqlc.New(t.db).ListAllocationLogsByPort(ctx, portID)
	if err != nil {
		return nil, fmt.Errorf("list history for port %s: %w", portID, err)
	}
	return rows, nil
}

func generateLogID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func nullable(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
