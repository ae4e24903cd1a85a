package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"bizportal.io/portal/internal/usecase"
)

func newAvailabilityCmd(o *Options) *cobra.Command {
	var next int
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Show pool capacity and the allocation backlog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, o, func(ctx context.Context, svc *Services) error {
				counts, err := svc.Ports.CountByStatus(ctx)
				if err != nil {
					return err
				}
				backlog, err := svc.Engine.CountSubscriptionsNeedingAllocation(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				tw := newTable(out)
				fmt.Fprintln(tw, "STATUS\tPORTS")
				for _, st := range portStatusOrder {
					fmt.Fprintf(tw, "%s\t%d\n", statusText(st), counts[st])
				}
				if err := tw.Flush(); err != nil {
					return err
				}

				waiting := fmt.Sprintf("%d", backlog)
				if backlog > 0 {
					waiting = yellow(waiting)
				}
				fmt.Fprintf(out, "\nSubscriptions waiting for a port: %s\n", waiting)

				if next <= 0 {
					return nil
				}
				queue, err := svc.Ports.NextAvailable(ctx, next)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "\nNext to allocate:")
				if len(queue) == 0 {
					fmt.Fprintln(out, "  (none)")
					return nil
				}
				tw = newTable(out)
				fmt.Fprintln(tw, "ID\tINSTANCE URL\tREGION")
				for _, p := range queue {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.InstanceURL, p.ServerRegion)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&next, "next", 5, "list this many ports in allocation order (0 to skip)")
	return cmd
}

func newAllocateCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "allocate <subscription-id>",
		Short: "Bind the oldest available port to a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, o, func(ctx context.Context, svc *Services) error {
				result, err := svc.Engine.AllocatePortToSubscription(ctx, args[0], o.Actor)
				if err != nil {
					return err
				}
				return reportResult(cmd, "Allocated", result)
			})
		},
	}
}

func newReleaseCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "release <subscription-id>",
		Short: "Return a subscription's port to the pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, o, func(ctx context.Context, svc *Services) error {
				if err := svc.Engine.ReleasePort(ctx, args[0], o.Actor); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Released port of subscription %s\n", green("✓"), args[0])
				return nil
			})
		},
	}
}

func newReassignCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "reassign <subscription-id> <port-id>",
		Short: "Move a subscription to a specific available port",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, o, func(ctx context.Context, svc *Services) error {
				result, err := svc.Engine.ReassignPort(ctx, args[0], args[1], o.Actor)
				if err != nil {
					return err
				}
				return reportResult(cmd, "Reassigned", result)
			})
		},
	}
}

// reportResult prints a successful result or turns a failed one into the
// command's error.
func reportResult(cmd *cobra.Command, verb string, result usecase.AllocationResult) error {
	if !result.Success {
		return result.Error
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", green("✓"), verb)
	printPort(out, result.Port)
	return nil
}
