package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"bizportal.io/portal/internal/domain"
)

// SeedCustomer inserts a customer and returns its id.
func SeedCustomer(t *testing.T, pool *pgxpool.Pool, name, email string) string {
	t.Helper()
	id := uuid.NewString()
	mustExec(t, pool, `INSERT INTO customers (id, name, email) VALUES ($1, $2, $3)`, id, name, email)
	return id
}

// SeedPlan inserts a plan and returns its id.
func SeedPlan(t *testing.T, pool *pgxpool.Pool, name string) string {
	t.Helper()
	id := uuid.NewString()
	mustExec(t, pool, `INSERT INTO plans (id, name) VALUES ($1, $2)`, id, name)
	return id
}

// SeedUser inserts a staff user and returns its id.
func SeedUser(t *testing.T, pool *pgxpool.Pool, name, email string) string {
	t.Helper()
	id := uuid.NewString()
	mustExec(t, pool, `INSERT INTO users (id, name, email) VALUES ($1, $2, $3)`, id, name, email)
	return id
}

// SeedSubscription inserts a subscription with no port and returns its id.
// Empty customerID/planID are stored as NULL.
func SeedSubscription(t *testing.T, pool *pgxpool.Pool, customerID, planID string, status domain.SubscriptionStatus) string {
	t.Helper()
	id := uuid.NewString()
	mustExec(t, pool,
		`INSERT INTO subscriptions (id, customer_id, plan_id, status) VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4)`,
		id, customerID, planID, string(status))
	return id
}

// SeedPort inserts a port in the given status with no subscription and
// returns its id. ASSIGNED ports must be created through the engine.
func SeedPort(t *testing.T, pool *pgxpool.Pool, instanceURL string, status domain.PortStatus) string {
	t.Helper()
	id := uuid.NewString()
	mustExec(t, pool,
		`INSERT INTO ports (id, instance_url, db_name, db_host, server_region, status)
		 VALUES ($1, $2, 'portal', 'db.internal', 'eu-west', $3)`,
		id, instanceURL, string(status))
	return id
}

func mustExec(t *testing.T, pool *pgxpool.Pool, sql string, args ...any) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), sql, args...); err != nil {
		t.Fatalf("seed: %v", err)
	}
}
