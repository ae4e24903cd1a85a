package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"bizportal.io/portal/internal/domain"
)

// Filter narrows FindAllWithRelations. Zero values are ignored.
type Filter struct {
	Action     domain.AllocationAction
	PlanID     string
	CustomerID string
	PortID     string
	From       *time.Time
	To         *time.Time
	// Search matches notes, port URL, customer, plan, performer and
	// subscription id, case-insensitively.
	Search string
}

// Ref is a related row as seen from a log entry. ID is the id the log
// entry carries; Exists is false when that row has since been deleted.
type Ref struct {
	ID     string `json:"id"`
	Exists bool   `json:"exists"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

// LogRecord is a log entry joined with the rows it references.
type LogRecord struct {
	ID           string                  `json:"id"`
	Action       domain.AllocationAction `json:"action"`
	Notes        string                  `json:"notes"`
	CreatedAt    time.Time               `json:"created_at"`
	Port         *PortRef                `json:"port,omitempty"`
	Subscription *SubscriptionRef        `json:"subscription,omitempty"`
	Customer     *Ref                    `json:"customer,omitempty"`
	Plan         *Ref                    `json:"plan,omitempty"`
	Performer    *Ref                    `json:"performer,omitempty"`
}

// PortRef is the port side of a log entry.
type PortRef struct {
	ID          string            `json:"id"`
	Exists      bool              `json:"exists"`
	InstanceURL string            `json:"instance_url,omitempty"`
	Status      domain.PortStatus `json:"status,omitempty"`
}

// SubscriptionRef is the subscription side of a log entry.
type SubscriptionRef struct {
	ID     string `json:"id"`
	Exists bool   `json:"exists"`
}

const selectWithRelations = `
SELECT l.id, l.action, l.notes, l.created_at,
       l.port_id, p.id, p.instance_url, p.status,
       l.subscription_id, s.id, s.plan_id,
       l.customer_id, c.id, c.name, c.email,
       pl.id, pl.name,
       l.performed_by, u.id, u.name, u.email
FROM port_allocation_logs l
LEFT JOIN ports p ON p.id = l.port_id
LEFT JOIN subscriptions s ON s.id = l.subscription_id
LEFT JOIN customers c ON c.id = l.customer_id
LEFT JOIN plans pl ON pl.id = s.plan_id
LEFT JOIN users u ON u.id = l.performed_by
WHERE 1=1`

const countWithRelations = `
SELECT COUNT(*)
FROM port_allocation_logs l
LEFT JOIN ports p ON p.id = l.port_id
LEFT JOIN subscriptions s ON s.id = l.subscription_id
LEFT JOIN customers c ON c.id = l.customer_id
LEFT JOIN plans pl ON pl.id = s.plan_id
LEFT JOIN users u ON u.id = l.performed_by
WHERE 1=1`

// FindAllWithRelations returns log entries matching f, newest first, and
// the total number of matches ignoring limit/offset.
func (t *Trail) FindAllWithRelations(ctx context.Context, f Filter, limit, offset int) ([]LogRecord, int, error) {
	where, args := f.clauses()

	var total int
	if err := t.db.QueryRow(ctx, countWithRelations+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count allocation logs: %w", err)
	}

	if offset < 0 {
		offset = 0
	}
	tail := fmt.Sprintf(" ORDER BY l.created_at DESC, l.id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	records, err := t.queryRecords(ctx, where+tail, append(args, limit, offset))
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// pageCursor is the position of the last entry of a page in
// (created_at DESC, id DESC) order.
type pageCursor struct {
	createdAt time.Time
	id        string
}

func cursorOf(rec LogRecord) *pageCursor {
	return &pageCursor{createdAt: rec.CreatedAt, id: rec.ID}
}

// findAfter returns up to limit entries matching f that sort after cur,
// newest first. A nil cur starts from the newest entry. Entries written after
// the first page was read sort before it and are never returned.
func (t *Trail) findAfter(ctx context.Context, f Filter, cur *pageCursor, limit int) ([]LogRecord, error) {
	where, args := f.clauses()
	if cur != nil {
		args = append(args, cur.createdAt, cur.id)
		where += fmt.Sprintf(" AND (l.created_at, l.id) < ($%d, $%d)", len(args)-1, len(args))
	}
	args = append(args, limit)
	where += fmt.Sprintf(" ORDER BY l.created_at DESC, l.id DESC LIMIT $%d", len(args))
	return t.queryRecords(ctx, where, args)
}

func (t *Trail) queryRecords(ctx context.Context, tail string, args []any) ([]LogRecord, error) {
	rows, err := t.db.Query(ctx, selectWithRelations+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query allocation logs: %w", err)
	}
	defer rows.Close()

	var records []LogRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan allocation log: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allocation logs: %w", err)
	}
	return records, nil
}

func (f Filter) clauses() (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		fmt.Fprintf(&sb, " AND "+cond, len(args))
	}

	if f.Action != "" {
		add("l.action = $%d", string(f.Action))
	}
	if f.PlanID != "" {
		add("s.plan_id = $%d", f.PlanID)
	}
	if f.CustomerID != "" {
		add("l.customer_id = $%d", f.CustomerID)
	}
	if f.PortID != "" {
		add("l.port_id = $%d", f.PortID)
	}
	if f.From != nil {
		add("l.created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("l.created_at <= $%d", *f.To)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		n := len(args)
		fmt.Fprintf(&sb, ` AND (l.notes ILIKE $%[1]d OR p.instance_url ILIKE $%[1]d OR c.name ILIKE $%[1]d
			OR c.email ILIKE $%[1]d OR pl.name ILIKE $%[1]d OR u.name ILIKE $%[1]d OR u.email ILIKE $%[1]d
			OR l.subscription_id ILIKE $%[1]d)`, n)
	}
	return sb.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanRecord(row interface{ Scan(...any) error }) (LogRecord, error) {
	var (
		rec                                   LogRecord
		action                                string
		createdAt                             pgtype.Timestamptz
		logPortID, portID, portURL, portStat  pgtype.Text
		logSubID, subID, subPlanID            pgtype.Text
		logCustID, custID, custName, custMail pgtype.Text
		planID, planName                      pgtype.Text
		logUserID, userID, userName, userMail pgtype.Text
	)
	if err := row.Scan(
		&rec.ID, &action, &rec.Notes, &createdAt,
		&logPortID, &portID, &portURL, &portStat,
		&logSubID, &subID, &subPlanID,
		&logCustID, &custID, &custName, &custMail,
		&planID, &planName,
		&logUserID, &userID, &userName, &userMail,
	); err != nil {
		return LogRecord{}, err
	}

	rec.Action = domain.AllocationAction(action)
	rec.CreatedAt = createdAt.Time

	if logPortID.Valid {
		rec.Port = &PortRef{
			ID:          logPortID.String,
			Exists:      portID.Valid,
			InstanceURL: portURL.String,
			Status:      domain.PortStatus(portStat.String),
		}
	}
	if logSubID.Valid {
		rec.Subscription = &SubscriptionRef{ID: logSubID.String, Exists: subID.Valid}
		if subPlanID.Valid {
			rec.Plan = &Ref{ID: subPlanID.String, Exists: planID.Valid, Name: planName.String}
		}
	}
	if logCustID.Valid {
		rec.Customer = &Ref{ID: logCustID.String, Exists: custID.Valid, Name: custName.String, Email: custMail.String}
	}
	if logUserID.Valid {
		rec.Performer = &Ref{ID: logUserID.String, Exists: userID.Valid, Name: userName.String, Email: userMail.String}
	}
	return rec, nil
}
