package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"bizportal.io/portal/internal/domain"
	"bizportal.io/portal/internal/repository/sqlc"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

var portStatusOrder = []domain.PortStatus{
	domain.PortStatusAvailable,
	domain.PortStatusReserved,
	domain.PortStatusAssigned,
	domain.PortStatusDisabled,
}

func applyColor(disabled bool) {
	if disabled {
		color.NoColor = true
	}
}

func statusText(s domain.PortStatus) string {
	switch s {
	case domain.PortStatusAvailable:
		return green(s)
	case domain.PortStatusReserved:
		return yellow(s)
	case domain.PortStatusAssigned:
		return cyan(s)
	case domain.PortStatusDisabled:
		return red(s)
	}
	return string(s)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printPortTable(w io.Writer, ports []*domain.Port) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSTATUS\tINSTANCE URL\tREGION\tSUBSCRIPTION")
	for _, p := range ports {
		sub := "-"
		if p.AssignedSubscriptionID != nil {
			sub = *p.AssignedSubscriptionID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, statusText(p.Status), p.InstanceURL, orDash(p.ServerRegion), sub)
	}
	return tw.Flush()
}

func printPort(w io.Writer, p *domain.Port) {
	fmt.Fprintf(w, "%s (%s)\n", bold(p.ID), statusText(p.Status))
	fmt.Fprintf(w, "  URL:      %s\n", p.InstanceURL)
	fmt.Fprintf(w, "  Database: %s @ %s\n", orDash(p.DBName), orDash(p.DBHost))
	fmt.Fprintf(w, "  Region:   %s\n", orDash(p.ServerRegion))
	if p.AssignedSubscriptionID != nil {
		fmt.Fprintf(w, "  Assigned: %s", *p.AssignedSubscriptionID)
		if p.AssignedAt != nil {
			fmt.Fprintf(w, " since %s", p.AssignedAt.UTC().Format(time.RFC3339))
		}
		fmt.Fprintln(w)
	}
	if p.Notes != "" {
		fmt.Fprintf(w, "  Notes:    %s\n", p.Notes)
	}
}

func printHistory(w io.Writer, entries []sqlc.PortAllocationLog) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "TIME\tACTION\tSUBSCRIPTION\tBY\tNOTES")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Time.UTC().Format(time.RFC3339),
			domain.AllocationAction(e.Action).Label(),
			orDash(e.SubscriptionID.String),
			orDash(e.PerformedBy.String),
			e.Notes,
		)
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
