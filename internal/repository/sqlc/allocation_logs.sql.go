package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const allocationLogColumns = `id, port_id, subscription_id, customer_id, action, performed_by, notes, created_at`

func scanAllocationLog(row interface{ Scan(...any) error }) (PortAllocationLog, error) {
	var i PortAllocationLog
	err := row.Scan(
		&i.ID,
		&i.PortID,
		&i.SubscriptionID,
		&i.CustomerID,
		&i.Action,
		&i.PerformedBy,
		&i.Notes,
		&i.CreatedAt,
	)
	return i, err
}

const insertAllocationLog = `-- name: InsertAllocationLog :one
INSERT INTO port_allocation_logs (id, port_id, subscription_id, customer_id, action, performed_by, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + allocationLogColumns

type InsertAllocationLogParams struct {
	ID             string      `json:"id"`
	PortID         pgtype.Text `json:"port_id"`
	SubscriptionID pgtype.Text `json:"subscription_id"`
	CustomerID     pgtype.Text `json:"customer_id"`
	Action         string      `json:"action"`
	PerformedBy    pgtype.Text `json:"performed_by"`
	Notes          string      `json:"notes"`
}

func (q *Queries) InsertAllocationLog(ctx context.Context, arg InsertAllocationLogParams) (PortAllocationLog, error) {
	return scanAllocationLog(q.db.QueryRow(ctx, insertAllocationLog,
		arg.ID,
		arg.PortID,
		arg.SubscriptionID,
		arg.CustomerID,
		arg.Action,
		arg.PerformedBy,
		arg.Notes,
	))
}

const listAllocationLogsByPort = `-- name: ListAllocationLogsByPort :many
SELECT ` + allocationLogColumns + ` FROM port_allocation_logs
WHERE port_id = $1
ORDER BY created_at, id
`

// ListAllocationLogsByPort returns a port's history oldest-first.
func (q *Queries) ListAllocationLogsByPort(ctx context.Context, portID string) ([]PortAllocationLog, error) {
	rows, err := q.db.Query(ctx, listAllocationLogsByPort, portID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PortAllocationLog
	for rows.Next() {
		i, err := scanAllocationLog(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
