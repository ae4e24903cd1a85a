package usecase

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"bizportal.io/portal/internal/domain"
	sqlcrepo "bizportal.io/portal/internal/repository/sqlc"
)

func toDomainPort(p sqlcrepo.Port) *domain.Port {
	return &domain.Port{
		ID:                     p.ID,
		InstanceURL:            p.InstanceUrl,
		DBName:                 p.DbName,
		DBHost:                 p.DbHost,
		ServerRegion:           p.ServerRegion,
		Status:                 domain.PortStatus(p.Status),
		AssignedSubscriptionID: textPtr(p.AssignedSubscriptionID),
		AssignedAt:             timePtr(p.AssignedAt),
		SetupInstructions:      textPtr(p.SetupInstructions),
		Notes:                  p.Notes,
		CreatedAt:              p.CreatedAt.Time,
		UpdatedAt:              p.UpdatedAt.Time,
	}
}

func toDomainSubscription(s sqlcrepo.Subscription) *domain.Subscription {
	return &domain.Subscription{
		ID:             s.ID,
		CustomerID:     textPtr(s.CustomerID),
		PlanID:         textPtr(s.PlanID),
		Status:         domain.SubscriptionStatus(s.Status),
		AssignedPortID: textPtr(s.AssignedPortID),
	}
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func optionalText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func text(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
