package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const portColumns = `id, instance_url, db_name, db_host, server_region, status, assigned_subscription_id, assigned_at, setup_instructions, notes, created_at, updated_at`

func scanPort(row interface{ Scan(...any) error }) (Port, error) {
	var i Port
	err := row.Scan(
		&i.ID,
		&i.InstanceUrl,
		&i.DbName,
		&i.DbHost,
		&i.ServerRegion,
		&i.Status,
		&i.AssignedSubscriptionID,
		&i.AssignedAt,
		&i.SetupInstructions,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const assignPort = `-- name: AssignPort :one
UPDATE ports
SET status = 'ASSIGNED',
    assigned_subscription_id = $2,
    assigned_at = now(),
    updated_at = now()
WHERE id = $1 AND status = 'AVAILABLE'
RETURNING ` + portColumns

type AssignPortParams struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscription_id"`
}

// AssignPort binds an AVAILABLE port. pgx.ErrNoRows means the port was not
// AVAILABLE; callers hold the row lock already.
func (q *Queries) AssignPort(ctx context.Context, arg AssignPortParams) (Port, error) {
	return scanPort(q.db.QueryRow(ctx, assignPort, arg.ID, arg.SubscriptionID))
}

const countAvailablePorts = `-- name: CountAvailablePorts :one
SELECT count(*) FROM ports WHERE status = 'AVAILABLE'
`

func (q *Queries) CountAvailablePorts(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countAvailablePorts)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countPorts = `-- name: CountPorts :one
SELECT count(*) FROM ports WHERE ($1::text IS NULL OR status = $1::text)
`

func (q *Queries) CountPorts(ctx context.Context, status pgtype.Text) (int64, error) {
	row := q.db.QueryRow(ctx, countPorts, status)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countPortsByStatus = `-- name: CountPortsByStatus :many
SELECT status, count(*) AS count FROM ports GROUP BY status ORDER BY status
`

type CountPortsByStatusRow struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

func (q *Queries) CountPortsByStatus(ctx context.Context) ([]CountPortsByStatusRow, error) {
	rows, err := q.db.Query(ctx, countPortsByStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CountPortsByStatusRow
	for rows.Next() {
		var i CountPortsByStatusRow
		if err := rows.Scan(&i.Status, &i.Count); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createPort = `-- name: CreatePort :one
INSERT INTO ports (id, instance_url, db_name, db_host, server_region, status, setup_instructions, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + portColumns

type CreatePortParams struct {
	ID                string      `json:"id"`
	InstanceUrl       string      `json:"instance_url"`
	DbName            string      `json:"db_name"`
	DbHost            string      `json:"db_host"`
	ServerRegion      string      `json:"server_region"`
	Status            string      `json:"status"`
	SetupInstructions pgtype.Text `json:"setup_instructions"`
	Notes             string      `json:"notes"`
}

func (q *Queries) CreatePort(ctx context.Context, arg CreatePortParams) (Port, error) {
	return scanPort(q.db.QueryRow(ctx, createPort,
		arg.ID,
		arg.InstanceUrl,
		arg.DbName,
		arg.DbHost,
		arg.ServerRegion,
		arg.Status,
		arg.SetupInstructions,
		arg.Notes,
	))
}

const deletePort = `-- name: DeletePort :execrows
DELETE FROM ports WHERE id = $1 AND status <> 'ASSIGNED'
`

// DeletePort never removes an ASSIGNED port; zero rows means missing or in use.
func (q *Queries) DeletePort(ctx context.Context, id string) (int64, error) {
	result, err := q.db.Exec(ctx, deletePort, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getPort = `-- name: GetPort :one
SELECT ` + portColumns + ` FROM ports WHERE id = $1
`

func (q *Queries) GetPort(ctx context.Context, id string) (Port, error) {
	return scanPort(q.db.QueryRow(ctx, getPort, id))
}

const listAvailablePorts = `-- name: ListAvailablePorts :many
SELECT ` + portColumns + ` FROM ports
WHERE status = 'AVAILABLE'
ORDER BY created_at, id
LIMIT $1
`

func (q *Queries) ListAvailablePorts(ctx context.Context, limit int32) ([]Port, error) {
	return q.listPorts(ctx, listAvailablePorts, limit)
}

const listPorts = `-- name: ListPorts :many
SELECT ` + portColumns + ` FROM ports
WHERE ($1::text IS NULL OR status = $1::text)
ORDER BY created_at, id
LIMIT $2 OFFSET $3
`

type ListPortsParams struct {
	Status pgtype.Text `json:"status"`
	Limit  int32       `json:"limit"`
	Offset int32       `json:"offset"`
}

func (q *Queries) ListPorts(ctx context.Context, arg ListPortsParams) ([]Port, error) {
	return q.listPorts(ctx, listPorts, arg.Status, arg.Limit, arg.Offset)
}

func (q *Queries) listPorts(ctx context.Context, query string, args ...interface{}) ([]Port, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Port
	for rows.Next() {
		i, err := scanPort(rows)
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

const lockOneAvailablePort = `-- name: LockOneAvailablePort :one
SELECT ` + portColumns + ` FROM ports
WHERE status = 'AVAILABLE'
ORDER BY created_at, id
LIMIT 1
FOR UPDATE SKIP LOCKED
`

// LockOneAvailablePort locks the oldest AVAILABLE port that no other
// transaction holds. pgx.ErrNoRows means the pool is exhausted.
func (q *Queries) LockOneAvailablePort(ctx context.Context) (Port, error) {
	return scanPort(q.db.QueryRow(ctx, lockOneAvailablePort))
}

const lockPortByID = `-- name: LockPortByID :one
SELECT ` + portColumns + ` FROM ports WHERE id = $1 FOR UPDATE
`

func (q *Queries) LockPortByID(ctx context.Context, id string) (Port, error) {
	return scanPort(q.db.QueryRow(ctx, lockPortByID, id))
}

const setLockTimeout = `-- name: SetLockTimeout :exec
SELECT set_config('lock_timeout', $1, true)
`

// SetLockTimeout bounds row-lock waits for the rest of the current transaction.
func (q *Queries) SetLockTimeout(ctx context.Context, timeout string) error {
	_, err := q.db.Exec(ctx, setLockTimeout, timeout)
	return err
}

const unassignPort = `-- name: UnassignPort :one
UPDATE ports
SET status = 'AVAILABLE',
    assigned_subscription_id = NULL,
    assigned_at = NULL,
    updated_at = now()
WHERE id = $1 AND status = 'ASSIGNED'
RETURNING ` + portColumns

func (q *Queries) UnassignPort(ctx context.Context, id string) (Port, error) {
	return scanPort(q.db.QueryRow(ctx, unassignPort, id))
}

const updatePortDetails = `-- name: UpdatePortDetails :one
UPDATE ports
SET instance_url = COALESCE($2, instance_url),
    db_name = COALESCE($3, db_name),
    db_host = COALESCE($4, db_host),
    server_region = COALESCE($5, server_region),
    setup_instructions = COALESCE($6, setup_instructions),
    notes = COALESCE($7, notes),
    updated_at = now()
WHERE id = $1
RETURNING ` + portColumns

type UpdatePortDetailsParams struct {
	ID                string      `json:"id"`
	InstanceUrl       pgtype.Text `json:"instance_url"`
	DbName            pgtype.Text `json:"db_name"`
	DbHost            pgtype.Text `json:"db_host"`
	ServerRegion      pgtype.Text `json:"server_region"`
	SetupInstructions pgtype.Text `json:"setup_instructions"`
	Notes             pgtype.Text `json:"notes"`
}

func (q *Queries) UpdatePortDetails(ctx context.Context, arg UpdatePortDetailsParams) (Port, error) {
	return scanPort(q.db.QueryRow(ctx, updatePortDetails,
		arg.ID,
		arg.InstanceUrl,
		arg.DbName,
		arg.DbHost,
		arg.ServerRegion,
		arg.SetupInstructions,
		arg.Notes,
	))
}

const updatePortStatus = `-- name: UpdatePortStatus :one
UPDATE ports
SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2 AND $3 <> 'ASSIGNED' AND $2 <> 'ASSIGNED'
RETURNING ` + portColumns

type UpdatePortStatusParams struct {
	ID         string `json:"id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}

// UpdatePortStatus moves a port between the administrative states. Moves into
// or out of ASSIGNED go through AssignPort/UnassignPort instead; pgx.ErrNoRows
// means the row was not in FromStatus.
func (q *Queries) UpdatePortStatus(ctx context.Context, arg UpdatePortStatusParams) (Port, error) {
	return scanPort(q.db.QueryRow(ctx, updatePortStatus, arg.ID, arg.FromStatus, arg.ToStatus))
}
