package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bizportal.io/portal/internal/domain"
	"bizportal.io/portal/internal/governance/audit"
)

func newLogsCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Read the port allocation log",
	}
	cmd.AddCommand(newLogsExportCmd(o))
	return cmd
}

// logFilterFlags are the filters shared by log commands.
type logFilterFlags struct {
	action     string
	planID     string
	customerID string
	portID     string
	from       string
	to         string
	search     string
}

func (f *logFilterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.action, "action", "", "Only this action, e.g. ASSIGNED")
	cmd.Flags().StringVar(&f.planID, "plan", "", "Only entries for subscriptions on this plan")
	cmd.Flags().StringVar(&f.customerID, "customer", "", "Only entries for this customer")
	cmd.Flags().StringVar(&f.portID, "port", "", "Only entries for this port")
	cmd.Flags().StringVar(&f.from, "from", "", "Entries at or after this time (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "Entries at or before this time (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVarP(&f.search, "query", "q", "", "Free-text search")
}

func (f *logFilterFlags) filter() (audit.Filter, error) {
	out := audit.Filter{
		PlanID:     f.planID,
		CustomerID: f.customerID,
		PortID:     f.portID,
		Search:     strings.TrimSpace(f.search),
	}
	if f.action != "" {
		action := domain.AllocationAction(strings.ToUpper(f.action))
		if !action.Valid() {
			return audit.Filter{}, fmt.Errorf("unknown action %q", f.action)
		}
		out.Action = action
	}

	var err error
	if out.From, err = parseTimeFlag("from", f.from, false); err != nil {
		return audit.Filter{}, err
	}
	if out.To, err = parseTimeFlag("to", f.to, true); err != nil {
		return audit.Filter{}, err
	}
	if out.From != nil && out.To != nil && out.To.Before(*out.From) {
		return audit.Filter{}, fmt.Errorf("--to must not be before --from")
	}
	return out, nil
}

// parseTimeFlag accepts RFC 3339 or a bare date. A bare --to date covers the
// whole day.
func parseTimeFlag(name, value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, fmt.Errorf("--%s: expected RFC 3339 or YYYY-MM-DD, got %q", name, value)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func newLogsExportCmd(o *Options) *cobra.Command {
	var (
		flags  logFilterFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export allocation log entries as CSV",
		Long: `Writes matching allocation log entries, newest first, as UTF-8 CSV with a
byte order mark. Without --output a timestamped file is created in the
current directory; use --output - for stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			if output == "" {
				output = audit.ExportFilename(time.Now())
			}
			return withServices(cmd, o, func(ctx context.Context, svc *Services) error {
				if output == "-" {
					_, err := svc.Exporter.Export(ctx, cmd.OutOrStdout(), filter)
					return err
				}

				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				n, err := svc.Exporter.Export(ctx, f, filter)
				if closeErr := f.Close(); err == nil && closeErr != nil {
					err = fmt.Errorf("close %s: %w", output, closeErr)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s Wrote %d entries to %s\n", green("✓"), n, output)
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, or - for stdout")
	return cmd
}
