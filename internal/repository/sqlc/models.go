package sqlc

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Port struct {
	ID                     string             `json:"id"`
	InstanceUrl            string             `json:"instance_url"`
	DbName                 string             `json:"db_name"`
	DbHost                 string             `json:"db_host"`
	ServerRegion           string             `json:"server_region"`
	Status                 string             `json:"status"`
	AssignedSubscriptionID pgtype.Text        `json:"assigned_subscription_id"`
	AssignedAt             pgtype.Timestamptz `json:"assigned_at"`
	SetupInstructions      pgtype.Text        `json:"setup_instructions"`
	Notes                  string             `json:"notes"`
	CreatedAt              pgtype.Timestamptz `json:"created_at"`
	UpdatedAt              pgtype.Timestamptz `json:"updated_at"`
}

type PortAllocationLog struct {
	ID             string             `json:"id"`
	PortID         pgtype.Text        `json:"port_id"`
	SubscriptionID pgtype.Text        `json:"subscription_id"`
	CustomerID     pgtype.Text        `json:"customer_id"`
	Action         string             `json:"action"`
	PerformedBy    pgtype.Text        `json:"performed_by"`
	Notes          string             `json:"notes"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
}

type Subscription struct {
	ID             string             `json:"id"`
	CustomerID     pgtype.Text        `json:"customer_id"`
	PlanID         pgtype.Text        `json:"plan_id"`
	Status         string             `json:"status"`
	AssignedPortID pgtype.Text        `json:"assigned_port_id"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
	UpdatedAt      pgtype.Timestamptz `json:"updated_at"`
}
