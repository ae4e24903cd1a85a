package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bizportal.io/portal/internal/domain"
	apperrors "bizportal.io/portal/internal/pkg/errors"
	sqlcrepo "bizportal.io/portal/internal/repository/sqlc"
)

// SubscriptionGateway is the read side of the subscription lifecycle that
// the port subsystem depends on. Writes to assigned_port_id happen inside
// the engine's transactions, not through this interface.
type SubscriptionGateway interface {
	GetSubscription(ctx context.Context, id string) (*domain.Subscription, error)
	CurrentPort(ctx context.Context, subscriptionID string) (*domain.Port, error)
}

// PostgresSubscriptionGateway reads subscriptions from the shared database.
type PostgresSubscriptionGateway struct {
	queries *sqlcrepo.Queries
}

// NewSubscriptionGateway creates a PostgresSubscriptionGateway.
func NewSubscriptionGateway(pool *pgxpool.Pool) *PostgresSubscriptionGateway {
	return &PostgresSubscriptionGateway{queries: sqlcrepo.New(pool)}
}

// GetSubscription returns the subscription or SUBSCRIPTION_NOT_FOUND.
func (g *PostgresSubscriptionGateway) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	row, err := g.queries.GetSubscription(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrSubscriptionNotFoundf(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", id, err)
	}
	return toDomainSubscription(row), nil
}

// CurrentPort returns the port the subscription holds, or nil when it holds none.
func (g *PostgresSubscriptionGateway) CurrentPort(ctx context.Context, subscriptionID string) (*domain.Port, error) {
	sub, err := g.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.AssignedPortID == nil {
		return nil, nil
	}
	row, err := g.queries.GetPort(ctx, *sub.AssignedPortID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get port %s: %w", *sub.AssignedPortID, err)
	}
	return toDomainPort(row), nil
}
