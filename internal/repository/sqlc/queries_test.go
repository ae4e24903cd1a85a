package sqlc

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"bizportal.io/portal/internal/domain"
	"bizportal.io/portal/internal/testutil"
)

func newSQLCTestQueries(t *testing.T, prefix string) (*Queries, *pgxpool.Pool) {
	t.Helper()
	pool := testutil.OpenMigratedPool(t, prefix)
	return New(pool), pool
}

func text(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: true}
}

func TestQueries_CreateAndGetPort(t *testing.T) {
	ctx := context.Background()
	q, _ := newSQLCTestQueries(t, "create_port")

	id := uuid.NewString()
	created, err := q.CreatePort(ctx, CreatePortParams{
		ID:                id,
		InstanceUrl:       "https://erp-01.example.com",
		DbName:            "erp01",
		DbHost:            "db-01.internal",
		ServerRegion:      "eu-west",
		Status:            string(domain.PortStatusReserved),
		SetupInstructions: text("login as admin"),
		Notes:             "rack 4",
	})
	require.NoError(t, err)
	require.Equal(t, "RESERVED", created.Status)
	require.False(t, created.AssignedSubscriptionID.Valid)
	require.False(t, created.AssignedAt.Valid)

	got, err := q.GetPort(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "https://erp-01.example.com", got.InstanceUrl)
	require.Equal(t, "login as admin", got.SetupInstructions.String)

	_, err = q.GetPort(ctx, "missing")
	require.True(t, errors.Is(err, pgx.ErrNoRows))
}

func TestQueries_LockOneAvailablePort_OldestFirstAndSkipsLocked(t *testing.T) {
	ctx := context.Background()
	q, pool := newSQLCTestQueries(t, "lock_one_available")

	first := testutil.SeedPort(t, pool, "https://a", domain.PortStatusAvailable)
	second := testutil.SeedPort(t, pool, "https://b", domain.PortStatusAvailable)
	testutil.SeedPort(t, pool, "https://c", domain.PortStatusDisabled)

	txA, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = txA.Rollback(ctx) }()

	lockedA, err := q.WithTx(txA).LockOneAvailablePort(ctx)
	require.NoError(t, err)
	require.Equal(t, first, lockedA.ID)

	txB, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = txB.Rollback(ctx) }()

	lockedB, err := q.WithTx(txB).LockOneAvailablePort(ctx)
	require.NoError(t, err)
	require.Equal(t, second, lockedB.ID, "a locked row must be skipped, not waited on")

	txC, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = txC.Rollback(ctx) }()

	_, err = q.WithTx(txC).LockOneAvailablePort(ctx)
	require.True(t, errors.Is(err, pgx.ErrNoRows))
}

func TestQueries_AssignAndUnassignPort(t *testing.T) {
	ctx := context.Background()
	q, pool := newSQLCTestQueries(t, "assign_unassign")

	portID := testutil.SeedPort(t, pool, "https://a", domain.PortStatusAvailable)
	subID := testutil.SeedSubscription(t, pool, "", "", domain.SubscriptionStatusActive)

	assigned, err := q.AssignPort(ctx, AssignPortParams{ID: portID, SubscriptionID: subID})
	require.NoError(t, err)
	require.Equal(t, "ASSIGNED", assigned.Status)
	require.Equal(t, subID, assigned.AssignedSubscriptionID.String)
	require.True(t, assigned.AssignedAt.Valid)

	_, err = q.AssignPort(ctx, AssignPortParams{ID: portID, SubscriptionID: subID})
	require.True(t, errors.Is(err, pgx.ErrNoRows), "an ASSIGNED port must not be assigned again")

	released, err := q.UnassignPort(ctx, portID)
	require.NoError(t, err)
	require.Equal(t, "AVAILABLE", released.Status)
	require.False(t, released.AssignedSubscriptionID.Valid)
	require.False(t, released.AssignedAt.Valid)
}

func TestQueries_UpdatePortStatus_IsConditional(t *testing.T) {
	ctx := context.Background()
	q, pool := newSQLCTestQueries(t, "update_port_status")

	portID := testutil.SeedPort(t, pool, "https://a", domain.PortStatusAvailable)

	got, err := q.UpdatePortStatus(ctx, UpdatePortStatusParams{ID: portID, FromStatus: "AVAILABLE", ToStatus: "DISABLED"})
	require.NoError(t, err)
	require.Equal(t, "DISABLED", got.Status)

	_, err = q.UpdatePortStatus(ctx, UpdatePortStatusParams{ID: portID, FromStatus: "AVAILABLE", ToStatus: "RESERVED"})
	require.True(t, errors.Is(err, pgx.ErrNoRows), "stale from-status must not match")

	_, err = q.UpdatePortStatus(ctx, UpdatePortStatusParams{ID: portID, FromStatus: "DISABLED", ToStatus: "ASSIGNED"})
	require.True(t, errors.Is(err, pgx.ErrNoRows), "ASSIGNED is only reachable through AssignPort")
}

func TestQueries_DeletePort_GuardsAssigned(t *testing.T) {
	ctx := context.Background()
	q, pool := newSQLCTestQueries(t, "delete_port_guard")

	portID := testutil.SeedPort(t, pool, "https://a", domain.PortStatusAvailable)
	subID := testutil.SeedSubscription(t, pool, "", "", domain.SubscriptionStatusActive)
	_, err := q.AssignPort(ctx, AssignPortParams{ID: portID, SubscriptionID: subID})
	require.NoError(t, err)

	rows, err := q.DeletePort(ctx, portID)
	require.NoError(t, err)
	require.EqualValues(t, 0, rows)

	_, err = q.UnassignPort(ctx, portID)
	require.NoError(t, err)

	rows, err = q.DeletePort(ctx, portID)
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)
}

func TestQueries_UpdatePortDetails_PatchesOnlyProvidedFields(t *testing.T) {
	ctx := context.Background()
	q, pool := newSQLCTestQueries(t, "update_port_details")

	portID := testutil.SeedPort(t, pool, "https://old", domain.PortStatusAvailable)

	got, err := q.UpdatePortDetails(ctx, UpdatePortDetailsParams{
		ID:          portID,
		InstanceUrl: text("https://new"),
		Notes:       text("moved"),
	})
	require.NoError(t, err)
	require.Equal(t, "https://new", got.InstanceUrl)
	require.Equal(t, "moved", got.Notes)
	require.Equal(t, "portal", got.DbName)
	require.Equal(t, "AVAILABLE", got.Status)
}

func TestQueries_ListAndCountPorts(t *testing.T) {
	ctx := context.Background()
	q, pool := newSQLCTestQueries(t, "list_ports")

	testutil.SeedPort(t, pool, "https://a", domain.PortStatusAvailable)
	testutil.SeedPort(t, pool, "https://b", domain.PortStatusAvailable)
	testutil.SeedPort(t, pool, "https://c", domain.PortStatusReserved)

	all, err := q.ListPorts(ctx, ListPortsParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "https://a", all[0].InstanceUrl)

	reserved, err := q.ListPorts(ctx, ListPortsParams{Status: text("RESERVED"), Limit: 10})
	require.NoError(t, err)
	require.Len(t, reserved, 1)

	total, err := q.CountPorts(ctx, pgtype.Text{})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)

	available, err := q.CountAvailablePorts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, available)

	byStatus, err := q.CountPortsByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, []CountPortsByStatusRow{{Status: "AVAILABLE", Count: 2}, {Status: "RESERVED", Count: 1}}, byStatus)

	oldest, err := q.ListAvailablePorts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, oldest, 1)
	require.Equal(t, "https://a", oldest[0].InstanceUrl)
}

func TestQueries_SubscriptionPortAndNeedingAllocation(t *testing.T) {
	ctx := context.Background()
	q, pool := newSQLCTestQueries(t, "subscription_port")

	active := testutil.SeedSubscription(t, pool, "", "", domain.SubscriptionStatusActive)
	testutil.SeedSubscription(t, pool, "", "", domain.SubscriptionStatusCancelled)
	portID := testutil.SeedPort(t, pool, "https://a", domain.PortStatusAvailable)

	ids, err := q.ListSubscriptionsNeedingAllocation(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []string{active}, ids)

	rows, err := q.SetSubscriptionPort(ctx, SetSubscriptionPortParams{ID: active, AssignedPortID: text(portID)})
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	sub, err := q.GetSubscription(ctx, active)
	require.NoError(t, err)
	require.Equal(t, portID, sub.AssignedPortID.String)

	count, err := q.CountSubscriptionsNeedingAllocation(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestQueries_AllocationLogs(t *testing.T) {
	ctx := context.Background()
	q, _ := newSQLCTestQueries(t, "allocation_logs")

	for _, action := range []domain.AllocationAction{domain.ActionCreated, domain.ActionAssigned, domain.ActionReleased} {
		_, err := q.InsertAllocationLog(ctx, InsertAllocationLogParams{
			ID:     uuid.Must(uuid.NewV7()).String(),
			PortID: text("port-1"),
			Action: string(action),
		})
		require.NoError(t, err)
	}

	history, err := q.ListAllocationLogsByPort(ctx, "port-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, "CREATED", history[0].Action)
	require.Equal(t, "RELEASED", history[2].Action)
	require.False(t, history[0].PerformedBy.Valid)
}

func TestQueries_SetLockTimeout_BoundsLockWait(t *testing.T) {
	ctx := context.Background()
	q, pool := newSQLCTestQueries(t, "lock_timeout")

	portID := testutil.SeedPort(t, pool, "https://a", domain.PortStatusAvailable)

	holder, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = holder.Rollback(ctx) }()
	_, err = q.WithTx(holder).LockPortByID(ctx, portID)
	require.NoError(t, err)

	waiter, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = waiter.Rollback(ctx) }()

	wq := q.WithTx(waiter)
	require.NoError(t, wq.SetLockTimeout(ctx, "100ms"))
	_, err = wq.LockPortByID(ctx, portID)
	require.ErrorContains(t, err, "55P03")
}
