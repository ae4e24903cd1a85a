package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bizportal.io/portal/internal/domain"
	"bizportal.io/portal/internal/usecase"
)

func newPortsCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ports",
		Aliases: []string{"port"},
		Short:   "Manage pool ports",
	}

	cmd.AddCommand(newPortsListCmd(o))
	cmd.AddCommand(newPortsShowCmd(o))
	cmd.AddCommand(newPortsCreateCmd(o))
	cmd.AddCommand(newPortsDeleteCmd(o))
	cmd.AddCommand(newPortsHistoryCmd(o))
	for _, t := range portTransitions {
		cmd.AddCommand(newPortTransitionCmd(o, t))
	}
	cmd.AddCommand(newPortsStatusCmd(o))
	return cmd
}

func newPortsListCmd(o *Options) *cobra.Command {
	var (
		status  string
		page    int
		perPage int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ports, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := domain.PortStatus(strings.ToUpper(status))
			if st != "" && !st.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}
			if page < 1 || perPage < 1 {
				return fmt.Errorf("--page and --per-page must be positive")
			}
			return withServices(cmd, o, func(ctx context.Context, svc *Services) error {
				result, err := svc.Ports.ListPorts(ctx, st, perPage, (page-1)*perPage)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(result.Ports) == 0 {
					fmt.Fprintln(out, "No ports found")
				} else if err := printPortTable(out, result.Ports); err != nil {
					return err
				}
				fmt.Fprintf(out, "\n%d of %d shown. Pool: %d available, %d reserved, %d assigned, %d disabled\n",
					len(result.Ports), result.Total,
					result.ByStatus[domain.PortStatusAvailable],
					result.ByStatus[domain.PortStatusReserved],
					result.ByStatus[domain.PortStatusAssigned],
					result.ByStatus[domain.PortStatusDisabled],
				)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only ports in this status")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&perPage, "per-page", 50, "Ports per page")
	return cmd
}

func newPortsShowCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <port-id>",
		Short: "Show one port",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, o, func(ctx context.Context, svc *Services) error {
				port, err := svc.Ports.GetPort(ctx, args[0])
				if err != nil {
					return err
				}
				printPort(cmd.OutOrStdout(), port)
				return nil
			})
		},
	}
}

func newPortsCreateCmd(o *Options) *cobra.Command {
	var (
		in     usecase.CreatePortInput
		status string
		setup  string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a port to the pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Status = domain.PortStatus(strings.ToUpper(status))
			if cmd.Flags().Changed("setup-instructions") {
				in.SetupInstructions = &setup
			}
			return withServices(cmd, o, func(ctx context.Context, svc *Services) error {
				port, err := svc.Ports.CreatePort(ctx, in, o.Actor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Created port\n", green("✓"))
				printPort(cmd.OutOrStdout(), port)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in.InstanceURL, "url", "", "Instance URL (required)")
	cmd.Flags().StringVar(&in.DBName, "db-name", "", "Database name")
	cmd.Flags().StringVar(&in.DBHost, "db-host", "", "Database host")
	cmd.Flags().StringVar(&in.ServerRegion, "region", "", "Server region")
	cmd.Flags().StringVar(&status, "status", string(domain.PortStatusAvailable), "Initial status: AVAILABLE or RESERVED")
	cmd.Flags().StringVar(&setup, "setup-instructions", "", "Instructions shown to the customer")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "Operator notes")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newPortsDeleteCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <port-id>",
		Short: "Delete a port that is not assigned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, o, func(ctx context.Context, svc *Services) error {
				if err := svc.Ports.DeletePort(ctx, args[0], o.Actor); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted port %s\n", green("✓"), args[0])
				return nil
			})
		},
	}
}

func newPortsHistoryCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "history <port-id>",
		Short: "Show the allocation log of one port, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, o, func(ctx context.Context, svc *Services) error {
				entries, err := svc.Trail.PortHistory(ctx, args[0])
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No history")
					return nil
				}
				return printHistory(cmd.OutOrStdout(), entries)
			})
		},
	}
}

// portTransition is one of the single-purpose status commands.
type portTransition struct {
	use   string
	short string
	done  string
	run   func(a *usecase.PortAdmin, ctx context.Context, id, performedBy, notes string) (*domain.Port, error)
}

var portTransitions = []portTransition{
	{"disable", "Take a port out of service", "Disabled", (*usecase.PortAdmin).DisablePort},
	{"enable", "Return a disabled port to the pool", "Enabled", (*usecase.PortAdmin).EnablePort},
	{"reserve", "Hold an available port back from allocation", "Reserved", (*usecase.PortAdmin).ReservePort},
	{"make-available", "Release a reserved port into the pool", "Made available", (*usecase.PortAdmin).MakeAvailable},
}

func newPortTransitionCmd(o *Options, t portTransition) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   t.use + " <port-id>",
		Short: t.short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, o, func(ctx context.Context, svc *Services) error {
				port, err := t.run(svc.Ports, ctx, args[0], o.Actor, notes)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s port %s (%s)\n", green("✓"), t.done, port.ID, statusText(port.Status))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "Recorded in the allocation log")
	return cmd
}

func newPortsStatusCmd(o *Options) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "status <port-id> <STATUS>",
		Short: "Move a port to any status it can legally reach",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to := domain.PortStatus(strings.ToUpper(args[1]))
			if !to.Valid() {
				return fmt.Errorf("unknown status %q", args[1])
			}
			return withServices(cmd, o, func(ctx context.Context, svc *Services) error {
				port, err := svc.Ports.ChangeStatus(ctx, args[0], to, o.Actor, notes)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Changed port %s to %s\n", green("✓"), port.ID, statusText(port.Status))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "Recorded in the allocation log")
	return cmd
}
