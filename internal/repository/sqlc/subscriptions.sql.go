package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const subscriptionColumns = `id, customer_id, plan_id, status, assigned_port_id, created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (Subscription, error) {
	var i Subscription
	err := row.Scan(
		&i.ID,
		&i.CustomerID,
		&i.PlanID,
		&i.Status,
		&i.AssignedPortID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const countSubscriptionsNeedingAllocation = `-- name: CountSubscriptionsNeedingAllocation :one
SELECT count(*) FROM subscriptions WHERE status = 'ACTIVE' AND assigned_port_id IS NULL
`

func (q *Queries) CountSubscriptionsNeedingAllocation(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countSubscriptionsNeedingAllocation)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getSubscription = `-- name: GetSubscription :one
SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1
`

func (q *Queries) GetSubscription(ctx context.Context, id string) (Subscription, error) {
	return scanSubscription(q.db.QueryRow(ctx, getSubscription, id))
}

const listSubscriptionsNeedingAllocation = `-- name: ListSubscriptionsNeedingAllocation :many
SELECT id FROM subscriptions
WHERE status = 'ACTIVE' AND assigned_port_id IS NULL
ORDER BY created_at, id
LIMIT $1
`

func (q *Queries) ListSubscriptionsNeedingAllocation(ctx context.Context, limit int32) ([]string, error) {
	rows, err := q.db.Query(ctx, listSubscriptionsNeedingAllocation, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const lockSubscription = `-- name: LockSubscription :one
SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1 FOR UPDATE
`

func (q *Queries) LockSubscription(ctx context.Context, id string) (Subscription, error) {
	return scanSubscription(q.db.QueryRow(ctx, lockSubscription, id))
}

const setSubscriptionPort = `-- name: SetSubscriptionPort :execrows
UPDATE subscriptions SET assigned_port_id = $2, updated_at = now() WHERE id = $1
`

type SetSubscriptionPortParams struct {
	ID             string      `json:"id"`
	AssignedPortID pgtype.Text `json:"assigned_port_id"`
}

func (q *Queries) SetSubscriptionPort(ctx context.Context, arg SetSubscriptionPortParams) (int64, error) {
	result, err := q.db.Exec(ctx, setSubscriptionPort, arg.ID, arg.AssignedPortID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
