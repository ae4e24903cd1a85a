package migrations_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"bizportal.io/portal/internal/infrastructure/migrations"
	"bizportal.io/portal/internal/testutil"
)

func TestApply_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := testutil.OpenMigratedPool(t, "migrations_idempotent")

	require.NoError(t, migrations.Apply(ctx, pool))

	versions, err := migrations.Versions()
	require.NoError(t, err)

	var recorded int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM schema_migrations`).Scan(&recorded))
	require.Equal(t, len(versions), recorded)
}

func TestAllocationLogs_AreAppendOnly(t *testing.T) {
	ctx := context.Background()
	pool := testutil.OpenMigratedPool(t, "migrations_append_only")

	_, err := pool.Exec(ctx, `INSERT INTO port_allocation_logs (id, action) VALUES ('log-1', 'CREATED')`)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `UPDATE port_allocation_logs SET notes = 'x' WHERE id = 'log-1'`)
	require.ErrorContains(t, err, "append-only")

	_, err = pool.Exec(ctx, `DELETE FROM port_allocation_logs WHERE id = 'log-1'`)
	require.ErrorContains(t, err, "append-only")
}

func TestPorts_AssignmentMustMatchStatus(t *testing.T) {
	ctx := context.Background()
	pool := testutil.OpenMigratedPool(t, "migrations_port_check")

	_, err := pool.Exec(ctx, `INSERT INTO ports (id, instance_url, db_name, db_host, server_region, status)
		VALUES ('p1', 'https://a', 'db', 'h', 'r', 'ASSIGNED')`)
	require.Error(t, err)

	_, err = pool.Exec(ctx, `INSERT INTO ports (id, instance_url, db_name, db_host, server_region, status, assigned_subscription_id)
		VALUES ('p2', 'https://b', 'db', 'h', 'r', 'AVAILABLE', 'sub-1')`)
	require.Error(t, err)
}
