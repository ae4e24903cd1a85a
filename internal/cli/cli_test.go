package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizportal.io/portal/internal/domain"
	"bizportal.io/portal/internal/governance/audit"
	apperrors "bizportal.io/portal/internal/pkg/errors"
	"bizportal.io/portal/internal/pkg/logger"
	"bizportal.io/portal/internal/testutil"
	"bizportal.io/portal/internal/usecase"
)

func init() {
	_ = logger.Init("error", "json")
	color.NoColor = true
}

func testOptions(pool *pgxpool.Pool) *Options {
	return &Options{
		Open: func(ctx context.Context, o *Options) (*Services, func(), error) {
			trail := audit.NewTrail(pool)
			return &Services{
				Engine:   usecase.NewAllocationEngine(pool, trail, 2*time.Second),
				Ports:    usecase.NewPortAdmin(pool, trail, 2*time.Second),
				Trail:    trail,
				Exporter: audit.NewExporter(trail, 0),
			}, func() {}, nil
		},
	}
}

func runPortctl(t *testing.T, o *Options, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewPortctlCmd(o)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPortctl_PortLifecycle(t *testing.T) {
	pool := testutil.OpenMigratedPool(t, "cli_port_lifecycle")
	o := testOptions(pool)

	out, err := runPortctl(t, o, "ports", "create", "--url", "https://erp-09.example.com", "--region", "eu-west", "--notes", "rack 9")
	require.NoError(t, err)
	assert.Contains(t, out, "Created port")
	assert.Contains(t, out, "AVAILABLE")

	svc, _, err := o.Open(context.Background(), o)
	require.NoError(t, err)
	ports, err := svc.Ports.ListPorts(context.Background(), "", 10, 0)
	require.NoError(t, err)
	require.Len(t, ports.Ports, 1)
	id := ports.Ports[0].ID

	out, err = runPortctl(t, o, "ports", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "https://erp-09.example.com")
	assert.Contains(t, out, "1 of 1 shown. Pool: 1 available")

	for _, step := range []struct {
		args []string
		want string
	}{
		{[]string{"ports", "reserve", id}, "Reserved port " + id + " (RESERVED)"},
		{[]string{"ports", "make-available", id}, "Made available port " + id + " (AVAILABLE)"},
		{[]string{"ports", "disable", id, "--notes", "maintenance"}, "Disabled port " + id + " (DISABLED)"},
		{[]string{"ports", "enable", id}, "Enabled port " + id + " (AVAILABLE)"},
		{[]string{"ports", "status", id, "reserved"}, "Changed port " + id + " to RESERVED"},
		{[]string{"ports", "status", id, "AVAILABLE"}, "Changed port " + id + " to AVAILABLE"},
	} {
		out, err := runPortctl(t, o, step.args...)
		require.NoError(t, err, strings.Join(step.args, " "))
		assert.Contains(t, out, step.want)
	}

	_, err = runPortctl(t, o, "ports", "enable", id)
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidStateTransition), "enable on AVAILABLE: %v", err)

	out, err = runPortctl(t, o, "ports", "history", id)
	require.NoError(t, err)
	for _, label := range []string{"Created", "Reserved", "Made Available", "Disabled", "Enabled", "Status Changed"} {
		assert.Contains(t, out, label)
	}
	assert.Contains(t, out, "portctl")

	out, err = runPortctl(t, o, "ports", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "rack 9")

	out, err = runPortctl(t, o, "ports", "delete", id, "--actor", "ops@portal.test")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted port "+id)

	_, err = runPortctl(t, o, "ports", "show", id)
	require.True(t, apperrors.HasCode(err, apperrors.CodePortNotFound), "show deleted port: %v", err)
}

func TestPortctl_AllocationCommands(t *testing.T) {
	pool := testutil.OpenMigratedPool(t, "cli_allocation")
	o := testOptions(pool)

	customer := testutil.SeedCustomer(t, pool, "Acme Ltd", "ops@acme.test")
	plan := testutil.SeedPlan(t, pool, "Enterprise")
	sub := testutil.SeedSubscription(t, pool, customer, plan, domain.SubscriptionStatusActive)

	_, err := runPortctl(t, o, "allocate", sub)
	require.True(t, apperrors.HasCode(err, apperrors.CodeNoAvailablePorts), "allocate from empty pool: %v", err)

	out, err := runPortctl(t, o, "availability")
	require.NoError(t, err)
	assert.Contains(t, out, "Subscriptions waiting for a port: 1")
	assert.Contains(t, out, "Next to allocate:\n  (none)")

	first := testutil.SeedPort(t, pool, "https://erp-01.example.com", domain.PortStatusAvailable)
	out, err = runPortctl(t, o, "allocate", sub)
	require.NoError(t, err)
	assert.Contains(t, out, "Allocated")
	assert.Contains(t, out, first)

	second := testutil.SeedPort(t, pool, "https://erp-02.example.com", domain.PortStatusAvailable)
	out, err = runPortctl(t, o, "reassign", sub, second)
	require.NoError(t, err)
	assert.Contains(t, out, "Reassigned")
	assert.Contains(t, out, second)

	_, err = runPortctl(t, o, "reassign", sub, "missing-port")
	require.True(t, apperrors.HasCode(err, apperrors.CodePortNotFound), "reassign to missing port: %v", err)

	out, err = runPortctl(t, o, "release", sub)
	require.NoError(t, err)
	assert.Contains(t, out, "Released port of subscription "+sub)

	// A released subscription that is still ACTIVE waits for a port again.
	out, err = runPortctl(t, o, "availability")
	require.NoError(t, err)
	assert.Contains(t, out, "Subscriptions waiting for a port: 1")
	assert.Contains(t, out, "AVAILABLE  2")
	assert.Contains(t, out, "Next to allocate:")
	assert.Contains(t, out, first)
	assert.Contains(t, out, second)

	out, err = runPortctl(t, o, "availability", "--next", "0")
	require.NoError(t, err)
	assert.NotContains(t, out, "Next to allocate:")
}

func TestPortctl_LogsExport(t *testing.T) {
	pool := testutil.OpenMigratedPool(t, "cli_logs_export")
	o := testOptions(pool)

	testutil.SeedPort(t, pool, "https://erp-01.example.com", domain.PortStatusAvailable)
	_, err := runPortctl(t, o, "ports", "create", "--url", "https://erp-02.example.com", "--status", "reserved")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "logs.csv")
	out, err := runPortctl(t, o, "logs", "export", "--output", path, "--action", "created")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 1 entries to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("\uFEFF")), "missing byte order mark")
	lines := strings.Split(strings.TrimSpace(string(data[3:])), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Timestamp,Action,Port URL"))
	assert.Contains(t, lines[1], "https://erp-02.example.com")

	out, err = runPortctl(t, o, "logs", "export", "-o", "-", "--action", "ASSIGNED")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(strings.TrimPrefix(out, "\uFEFF")), "\n"), 1, "header only")

	_, err = runPortctl(t, o, "logs", "export", "-o", "-", "--action", "EXPLODED")
	require.ErrorContains(t, err, "unknown action")
}

func TestPortctl_Seed(t *testing.T) {
	pool := testutil.OpenMigratedPool(t, "cli_seed")
	o := testOptions(pool)
	testutil.SeedPort(t, pool, "https://erp-01.example.com", domain.PortStatusAvailable)

	path := filepath.Join(t.TempDir(), "ports.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ports:
  - instance_url: https://erp-01.example.com
  - instance_url: https://erp-02.example.com
    db_name: erp02
    status: reserved
    setup_instructions: Log in with the emailed credentials.
`), 0o600))

	out, err := runPortctl(t, o, "seed", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created 1 ports, skipped 1 existing")

	out, err = runPortctl(t, o, "seed", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created 0 ports, skipped 2 existing")

	out, err = runPortctl(t, o, "ports", "list", "--status", "reserved")
	require.NoError(t, err)
	assert.Contains(t, out, "https://erp-02.example.com")
	assert.NotContains(t, out, "https://erp-01.example.com")
}

func TestPortctl_FlagValidation(t *testing.T) {
	o := &Options{Open: func(context.Context, *Options) (*Services, func(), error) {
		return nil, nil, errors.New("database opened for an invalid invocation")
	}}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown status", []string{"ports", "list", "--status", "bogus"}, "unknown status"},
		{"unknown target status", []string{"ports", "status", "port-1", "bogus"}, "unknown status"},
		{"bad page", []string{"ports", "list", "--page", "0"}, "must be positive"},
		{"create without url", []string{"ports", "create"}, `required flag(s) "url" not set`},
		{"reassign arity", []string{"reassign", "sub-1"}, "accepts 2 arg(s)"},
		{"bad from", []string{"logs", "export", "--from", "yesterday"}, "--from"},
		{"to before from", []string{"logs", "export", "--from", "2026-03-02", "--to", "2026-03-01"}, "--to must not be before --from"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runPortctl(t, o, tt.args...)
			require.ErrorContains(t, err, tt.want)
		})
	}
}
