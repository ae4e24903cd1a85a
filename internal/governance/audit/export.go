package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// ExportHeader is the fixed column order of the CSV export.
var ExportHeader = []string{
	"Timestamp", "Action", "Port URL", "Port Status", "Customer Name", "Customer Email", "Plan",
	"Subscription ID", "Performed By", "Performer Email", "Notes", "Log ID", "Port ID", "Customer ID",
}

const (
	deletedLabel    = "Deleted"
	timestampLayout = "2006-01-02 15:04:05"
	exportPageSize  = 500
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Exporter streams filtered log entries as CSV.
type Exporter struct {
	trail   *Trail
	maxRows int
}

// NewExporter creates an Exporter that stops after maxRows rows.
// A non-positive maxRows means no cap.
func NewExporter(trail *Trail, maxRows int) *Exporter {
	return &Exporter{trail: trail, maxRows: maxRows}
}

// Export writes every entry matching f to w, newest first, and returns the
// number of data rows written. Pages are keyed on (created_at, id), so
// entries logged while the export runs neither shift nor repeat rows.
func (e *Exporter) Export(ctx context.Context, w io.Writer, f Filter) (int, error) {
	cw, err := newCSVWriter(w)
	if err != nil {
		return 0, err
	}

	var (
		written int
		cur     *pageCursor
	)
	for {
		limit := exportPageSize
		if e.maxRows > 0 && e.maxRows-written < limit {
			limit = e.maxRows - written
		}
		if limit <= 0 {
			break
		}

		page, err := e.trail.findAfter(ctx, f, cur, limit)
		if err != nil {
			return written, err
		}
		for _, rec := range page {
			if err := cw.Write(Row(rec)); err != nil {
				return written, fmt.Errorf("write csv row: %w", err)
			}
		}
		written += len(page)
		if len(page) < limit {
			break
		}
		cur = cursorOf(page[len(page)-1])
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return written, fmt.Errorf("flush csv: %w", err)
	}
	return written, nil
}

func newCSVWriter(w io.Writer) (*csv.Writer, error) {
	if _, err := w.Write(utf8BOM); err != nil {
		return nil, fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return cw, nil
}

// Row renders one record in ExportHeader order.
func Row(rec LogRecord) []string {
	var portURL, portStatus, portID string
	if p := rec.Port; p != nil {
		portID = p.ID
		portURL = deletedLabel
		if p.Exists {
			portURL = p.InstanceURL
			portStatus = string(p.Status)
		}
	}

	var subID, plan string
	if s := rec.Subscription; s != nil {
		subID = s.ID
		switch {
		case !s.Exists:
			plan = deletedLabel
		case rec.Plan != nil:
			plan = refName(rec.Plan)
		}
	}

	var customerID string
	if rec.Customer != nil {
		customerID = rec.Customer.ID
	}

	return []string{
		rec.CreatedAt.UTC().Format(timestampLayout),
		rec.Action.Label(),
		portURL,
		portStatus,
		refName(rec.Customer),
		refEmail(rec.Customer),
		plan,
		subID,
		refName(rec.Performer),
		refEmail(rec.Performer),
		rec.Notes,
		rec.ID,
		portID,
		customerID,
	}
}

func refName(r *Ref) string {
	switch {
	case r == nil:
		return ""
	case !r.Exists:
		return deletedLabel
	}
	return r.Name
}

func refEmail(r *Ref) string {
	if r == nil || !r.Exists {
		return ""
	}
	return r.Email
}

// ExportFilename names an export produced at now.
func ExportFilename(now time.Time) string {
	return "port-allocation-logs-" + now.UTC().Format("20060102-150405") + ".csv"
}
