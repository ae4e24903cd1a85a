package usecase

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"bizportal.io/portal/internal/domain"
	apperrors "bizportal.io/portal/internal/pkg/errors"
	sqlcrepo "bizportal.io/portal/internal/repository/sqlc"
	"bizportal.io/portal/internal/testutil"
)

func strPtr(s string) *string { return &s }

func TestPortAdmin_CreatePort(t *testing.T) {
	ctx := context.Background()
	_, admin, pool := newTestEngine(t, "admin_create_port")

	port, err := admin.CreatePort(ctx, CreatePortInput{
		InstanceURL:       " https://erp-01.example.com ",
		DBName:            "erp01",
		DBHost:            "db-01.internal",
		ServerRegion:      "eu-west",
		SetupInstructions: strPtr("use SSO"),
		Notes:             "new rack",
	}, "admin-1")
	require.NoError(t, err)
	require.Equal(t, domain.PortStatusAvailable, port.Status)
	require.Equal(t, "https://erp-01.example.com", port.InstanceURL)
	require.Equal(t, "use SSO", *port.SetupInstructions)
	require.Equal(t, 1, countLogs(t, pool, domain.ActionCreated, port.ID))

	reserved, err := admin.CreatePort(ctx, CreatePortInput{InstanceURL: "https://b", Status: domain.PortStatusReserved}, "")
	require.NoError(t, err)
	require.Equal(t, domain.PortStatusReserved, reserved.Status)

	for _, status := range []domain.PortStatus{domain.PortStatusAssigned, domain.PortStatusDisabled, "BOGUS"} {
		_, err := admin.CreatePort(ctx, CreatePortInput{InstanceURL: "https://c", Status: status}, "")
		require.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed), status)
	}

	_, err = admin.CreatePort(ctx, CreatePortInput{InstanceURL: "  "}, "")
	require.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestPortAdmin_Transitions(t *testing.T) {
	ctx := context.Background()
	_, admin, pool := newTestEngine(t, "admin_transitions")

	portID := testutil.SeedPort(t, pool, "https://p1", domain.PortStatusAvailable)

	steps := []struct {
		name   string
		op     func() (*domain.Port, error)
		want   domain.PortStatus
		code   string
		action domain.AllocationAction
	}{
		{"enable an available port", func() (*domain.Port, error) { return admin.EnablePort(ctx, portID, "a", "") }, "", apperrors.CodeInvalidStateTransition, ""},
		{"reserve", func() (*domain.Port, error) { return admin.ReservePort(ctx, portID, "a", "vip") }, domain.PortStatusReserved, "", domain.ActionReserved},
		{"reserve twice", func() (*domain.Port, error) { return admin.ReservePort(ctx, portID, "a", "") }, "", apperrors.CodeInvalidStateTransition, ""},
		{"make available", func() (*domain.Port, error) { return admin.MakeAvailable(ctx, portID, "a", "") }, domain.PortStatusAvailable, "", domain.ActionMadeAvailable},
		{"disable", func() (*domain.Port, error) { return admin.DisablePort(ctx, portID, "a", "maintenance") }, domain.PortStatusDisabled, "", domain.ActionDisabled},
		{"reserve a disabled port", func() (*domain.Port, error) { return admin.ReservePort(ctx, portID, "a", "") }, "", apperrors.CodeInvalidStateTransition, ""},
		{"change status into assigned", func() (*domain.Port, error) {
			return admin.ChangeStatus(ctx, portID, domain.PortStatusAssigned, "a", "")
		}, "", apperrors.CodeInvalidStateTransition, ""},
		{"enable", func() (*domain.Port, error) { return admin.EnablePort(ctx, portID, "a", "") }, domain.PortStatusAvailable, "", domain.ActionEnabled},
		{"change status to reserved", func() (*domain.Port, error) {
			return admin.ChangeStatus(ctx, portID, domain.PortStatusReserved, "a", "manual")
		}, domain.PortStatusReserved, "", domain.ActionStatusChanged},
		{"change status to unknown", func() (*domain.Port, error) { return admin.ChangeStatus(ctx, portID, "LOST", "a", "") }, "", apperrors.CodeValidationFailed, ""},
		{"missing port", func() (*domain.Port, error) { return admin.DisablePort(ctx, "missing", "a", "") }, "", apperrors.CodePortNotFound, ""},
	}

	for _, step := range steps {
		port, err := step.op()
		if step.code != "" {
			require.True(t, apperrors.HasCode(err, step.code), "%s: got %v", step.name, err)
			continue
		}
		require.NoError(t, err, step.name)
		require.Equal(t, step.want, port.Status, step.name)
		require.Equal(t, 1, countLogs(t, pool, step.action, portID), step.name)
	}

	var notes string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT notes FROM port_allocation_logs WHERE action = 'STATUS_CHANGED' AND port_id = $1`, portID,
	).Scan(&notes))
	require.Equal(t, "AVAILABLE -> RESERVED: manual", notes)
}

func TestPortAdmin_AssignedPortIsGuarded(t *testing.T) {
	ctx := context.Background()
	engine, admin, pool := newTestEngine(t, "admin_assigned_guard")

	portID := testutil.SeedPort(t, pool, "https://p1", domain.PortStatusAvailable)
	sub := testutil.SeedSubscription(t, pool, "", "", domain.SubscriptionStatusActive)
	res, err := engine.AllocatePortToSubscription(ctx, sub, "")
	require.NoError(t, err)
	require.True(t, res.Success)

	_, err = admin.DisablePort(ctx, portID, "a", "")
	require.True(t, apperrors.HasCode(err, apperrors.CodePortInUse), "got %v", err)

	err = admin.DeletePort(ctx, portID, "a")
	require.True(t, apperrors.HasCode(err, apperrors.CodePortInUse), "got %v", err)

	_, err = admin.ChangeStatus(ctx, portID, domain.PortStatusAvailable, "a", "")
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidStateTransition), "got %v", err)

	_, err = admin.ReservePort(ctx, portID, "a", "")
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidStateTransition), "got %v", err)

	status, holder := portState(t, pool, portID)
	require.Equal(t, domain.PortStatusAssigned, status)
	require.Equal(t, sub, holder.String)
	require.Zero(t, countLogs(t, pool, domain.ActionDisabled, portID))

	require.NoError(t, engine.ReleasePort(ctx, sub, "a"))
	_, err = admin.DisablePort(ctx, portID, "a", "")
	require.NoError(t, err)
}

func TestPortAdmin_DeletePort(t *testing.T) {
	ctx := context.Background()
	_, admin, pool := newTestEngine(t, "admin_delete_port")

	for _, status := range []domain.PortStatus{domain.PortStatusAvailable, domain.PortStatusReserved, domain.PortStatusDisabled} {
		port, err := admin.CreatePort(ctx, CreatePortInput{InstanceURL: "https://p"}, "a")
		require.NoError(t, err)
		if status == domain.PortStatusReserved {
			_, err = admin.ReservePort(ctx, port.ID, "a", "")
			require.NoError(t, err)
		}
		if status == domain.PortStatusDisabled {
			_, err = admin.DisablePort(ctx, port.ID, "a", "")
			require.NoError(t, err)
		}

		require.NoError(t, admin.DeletePort(ctx, port.ID, "a"), status)
		_, err = admin.GetPort(ctx, port.ID)
		require.True(t, apperrors.HasCode(err, apperrors.CodePortNotFound))
		require.Equal(t, 1, countLogs(t, pool, domain.ActionCreated, port.ID), "history survives deletion")
	}

	err := admin.DeletePort(ctx, "missing", "a")
	require.True(t, apperrors.HasCode(err, apperrors.CodePortNotFound))
}

func TestPortAdmin_UpdateAndList(t *testing.T) {
	ctx := context.Background()
	_, admin, pool := newTestEngine(t, "admin_update_list")

	p1 := testutil.SeedPort(t, pool, "https://p1", domain.PortStatusAvailable)
	testutil.SeedPort(t, pool, "https://p2", domain.PortStatusReserved)
	testutil.SeedPort(t, pool, "https://p3", domain.PortStatusDisabled)

	updated, err := admin.UpdatePort(ctx, p1, UpdatePortInput{DBHost: strPtr("db-9.internal")})
	require.NoError(t, err)
	require.Equal(t, "db-9.internal", updated.DBHost)
	require.Equal(t, "https://p1", updated.InstanceURL)

	_, err = admin.UpdatePort(ctx, "missing", UpdatePortInput{Notes: strPtr("x")})
	require.True(t, apperrors.HasCode(err, apperrors.CodePortNotFound))

	_, err = admin.UpdatePort(ctx, p1, UpdatePortInput{InstanceURL: strPtr("")})
	require.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	page, err := admin.ListPorts(ctx, "", 2, 0)
	require.NoError(t, err)
	require.Len(t, page.Ports, 2)
	require.EqualValues(t, 3, page.Total)
	require.EqualValues(t, 1, page.ByStatus[domain.PortStatusReserved])
	require.EqualValues(t, 0, page.ByStatus[domain.PortStatusAssigned])

	page, err = admin.ListPorts(ctx, domain.PortStatusDisabled, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Ports, 1)
	require.EqualValues(t, 1, page.Total)

	page, err = admin.ListPorts(ctx, "", 200, (20_000_000-1)*200)
	require.NoError(t, err)
	require.Empty(t, page.Ports)
	require.EqualValues(t, 3, page.Total)
}

func TestPortAdmin_NextAvailable(t *testing.T) {
	ctx := context.Background()
	engine, admin, pool := newTestEngine(t, "admin_next_available")

	a1 := testutil.SeedPort(t, pool, "https://a1", domain.PortStatusAvailable)
	testutil.SeedPort(t, pool, "https://r1", domain.PortStatusReserved)
	a2 := testutil.SeedPort(t, pool, "https://a2", domain.PortStatusAvailable)
	a3 := testutil.SeedPort(t, pool, "https://a3", domain.PortStatusAvailable)

	next, err := admin.NextAvailable(ctx, 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(next))
	for _, p := range next {
		require.Equal(t, domain.PortStatusAvailable, p.Status)
		ids = append(ids, p.ID)
	}
	require.ElementsMatch(t, []string{a1, a2, a3}, ids)

	next, err = admin.NextAvailable(ctx, 1)
	require.NoError(t, err)
	require.Len(t, next, 1)

	// The head of the queue is what the allocator hands out.
	sub := testutil.SeedSubscription(t, pool, "", "", domain.SubscriptionStatusActive)
	res, err := engine.AllocatePortToSubscription(ctx, sub, "")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, next[0].ID, res.Port.ID)

	next, err = admin.NextAvailable(ctx, 10)
	require.NoError(t, err)
	require.Len(t, next, 2)
}

func TestClampInt32(t *testing.T) {
	tests := []struct {
		in   int
		want int32
	}{
		{0, 0},
		{-5, 0},
		{500, 500},
		{math.MaxInt32, math.MaxInt32},
		{4_000_000_000, math.MaxInt32},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, clampInt32(tt.in), "clampInt32(%d)", tt.in)
	}
}

func TestPortHistory_ReconstructsValidTransitions(t *testing.T) {
	ctx := context.Background()
	engine, admin, pool := newTestEngine(t, "port_history")

	port, err := admin.CreatePort(ctx, CreatePortInput{InstanceURL: "https://p1"}, "a")
	require.NoError(t, err)
	other, err := admin.CreatePort(ctx, CreatePortInput{InstanceURL: "https://p2", Status: domain.PortStatusReserved}, "a")
	require.NoError(t, err)
	sub := testutil.SeedSubscription(t, pool, "", "", domain.SubscriptionStatusActive)

	_, err = admin.ReservePort(ctx, port.ID, "a", "")
	require.NoError(t, err)
	_, err = admin.MakeAvailable(ctx, port.ID, "a", "")
	require.NoError(t, err)
	res, err := engine.AllocatePortToSubscription(ctx, sub, "")
	require.NoError(t, err)
	require.Equal(t, port.ID, res.Port.ID)
	_, err = admin.MakeAvailable(ctx, other.ID, "a", "")
	require.NoError(t, err)
	res, err = engine.ReassignPort(ctx, sub, other.ID, "a")
	require.NoError(t, err)
	require.True(t, res.Success)
	_, err = admin.DisablePort(ctx, port.ID, "a", "")
	require.NoError(t, err)
	_, err = admin.EnablePort(ctx, port.ID, "a", "")
	require.NoError(t, err)

	history, err := sqlcrepo.New(pool).ListAllocationLogsByPort(ctx, port.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"CREATED", "RESERVED", "MADE_AVAILABLE", "ASSIGNED", "UNASSIGNED", "DISABLED", "ENABLED"},
		actionsOf(history))

	status := domain.PortStatusAvailable
	for _, entry := range history[1:] {
		next, ok := domain.AllocationAction(entry.Action).ResultingStatus()
		require.True(t, ok, entry.Action)
		require.True(t, domain.CanTransition(status, next), "%s -> %s via %s", status, next, entry.Action)
		status = next
	}
	require.Equal(t, domain.PortStatusAvailable, status)
}

func actionsOf(logs []sqlcrepo.PortAllocationLog) []string {
	out := make([]string, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.Action)
	}
	return out
}

func TestSubscriptionGateway(t *testing.T) {
	ctx := context.Background()
	engine, _, pool := newTestEngine(t, "subscription_gateway")
	gw := NewSubscriptionGateway(pool)

	portID := testutil.SeedPort(t, pool, "https://p1", domain.PortStatusAvailable)
	sub := testutil.SeedSubscription(t, pool, "", "", domain.SubscriptionStatusActive)

	current, err := gw.CurrentPort(ctx, sub)
	require.NoError(t, err)
	require.Nil(t, current)

	res, err := engine.AllocatePortToSubscription(ctx, sub, "")
	require.NoError(t, err)
	require.True(t, res.Success)

	got, err := gw.GetSubscription(ctx, sub)
	require.NoError(t, err)
	require.True(t, got.AssignedPortID != nil && *got.AssignedPortID == portID)
	require.False(t, got.NeedsAllocation())

	current, err = gw.CurrentPort(ctx, sub)
	require.NoError(t, err)
	require.Equal(t, portID, current.ID)

	_, err = gw.GetSubscription(ctx, "missing")
	require.True(t, apperrors.HasCode(err, apperrors.CodeSubscriptionNotFound))
}
