// Package cli implements portctl and the seed command. Both run the
// allocation use cases directly against the database, so every change they
// make is locked and audited exactly like an API call.
//
// Import Path: bizportal.io/portal/internal/cli
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"bizportal.io/portal/internal/config"
	"bizportal.io/portal/internal/governance/audit"
	"bizportal.io/portal/internal/infrastructure"
	"bizportal.io/portal/internal/jobs"
	"bizportal.io/portal/internal/pkg/logger"
	"bizportal.io/portal/internal/usecase"
)

// Recorded as performed_by when --actor is not given.
const (
	DefaultActor     = "portctl"
	DefaultSeedActor = "seed"
)

// Services are the use cases a command drives.
type Services struct {
	Engine   *usecase.AllocationEngine
	Ports    *usecase.PortAdmin
	Trail    *audit.Trail
	Exporter *audit.Exporter
}

// Opener connects to the database and returns the services plus a close func.
type Opener func(ctx context.Context, o *Options) (*Services, func(), error)

// Options are the persistent flags shared by every command.
type Options struct {
	ConfigPath string
	Actor      string
	Verbose    bool
	NoColor    bool

	// Open defaults to OpenDatabase.
	Open Opener
}

// OpenDatabase loads configuration the same way the server does and wires
// the use cases on a fresh pool.
func OpenDatabase(ctx context.Context, o *Options) (*Services, func(), error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadFrom(o.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	if err := logger.Init(level, "console"); err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.InitInsertOnlyRiverClient(); err != nil {
		db.Close()
		return nil, nil, err
	}

	trail := audit.NewTrail(db.Pool)
	svc := &Services{
		Engine:   usecase.NewAllocationEngine(db.Pool, trail, cfg.Allocation.LockTimeout),
		Ports:    usecase.NewPortAdmin(db.Pool, trail, cfg.Allocation.LockTimeout),
		Trail:    trail,
		Exporter: audit.NewExporter(trail, cfg.Export.MaxRows),
	}
	// Ports freed from the command line wake the server's pending sweep.
	hook := jobs.SweepOnPortFreed(func() jobs.TxInserter { return db.RiverClient })
	svc.Engine.SetPortFreedHook(hook)
	svc.Ports.SetPortFreedHook(hook)
	return svc, db.Close, nil
}

// NewPortctlCmd creates the portctl root command.
func NewPortctlCmd(o *Options) *cobra.Command {
	if o.Open == nil {
		o.Open = OpenDatabase
	}

	cmd := &cobra.Command{
		Use:   "portctl",
		Short: "Operate the port pool",
		Long: `portctl manages the pool of provisioned instances ("ports") and their
binding to subscriptions. Every change is written to the allocation log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			applyColor(o.NoColor)
		},
	}

	addPersistentFlags(cmd, o, DefaultActor)
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.AddCommand(newPortsCmd(o))
	cmd.AddCommand(newAvailabilityCmd(o))
	cmd.AddCommand(newAllocateCmd(o))
	cmd.AddCommand(newReleaseCmd(o))
	cmd.AddCommand(newReassignCmd(o))
	cmd.AddCommand(newLogsCmd(o))
	cmd.AddCommand(newSeedCmd(o))

	return cmd
}

func addPersistentFlags(cmd *cobra.Command, o *Options, actor string) {
	cmd.PersistentFlags().StringVarP(&o.ConfigPath, "config", "c", "", "Path to config.yaml (default: search ./, ./config, /etc/bizportal)")
	cmd.PersistentFlags().StringVar(&o.Actor, "actor", actor, "Recorded as performed_by in the allocation log")
	cmd.PersistentFlags().BoolVarP(&o.Verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&o.NoColor, "no-color", false, "Disable colored output")
}

// withServices opens the services for the duration of fn.
func withServices(cmd *cobra.Command, o *Options, fn func(ctx context.Context, svc *Services) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := o.Open(ctx, o)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, svc)
}
