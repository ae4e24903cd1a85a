// Package domain provides the port pool domain model: port and subscription
// states, audit actions and the legal state transitions between them.
//
// Import Path: bizportal.io/portal/internal/domain
package domain

import "time"

// PortStatus is the lifecycle state of a pooled backend instance.
type PortStatus string

const (
	PortStatusAvailable PortStatus = "AVAILABLE"
	PortStatusReserved  PortStatus = "RESERVED"
	PortStatusAssigned  PortStatus = "ASSIGNED"
	PortStatusDisabled  PortStatus = "DISABLED"
)

// Valid reports whether s is a known port status.
func (s PortStatus) Valid() bool {
	switch s {
	case PortStatusAvailable, PortStatusReserved, PortStatusAssigned, PortStatusDisabled:
		return true
	}
	return false
}

// Port is a provisioned backend instance that can be bound to at most one
// subscription. AssignedSubscriptionID is non-nil iff Status is ASSIGNED.
type Port struct {
	ID                     string     `json:"id"`
	InstanceURL            string     `json:"instance_url"`
	DBName                 string     `json:"db_name"`
	DBHost                 string     `json:"db_host"`
	ServerRegion           string     `json:"server_region"`
	Status                 PortStatus `json:"status"`
	AssignedSubscriptionID *string    `json:"assigned_subscription_id"`
	AssignedAt             *time.Time `json:"assigned_at,omitempty"`
	SetupInstructions      *string    `json:"setup_instructions,omitempty"`
	Notes                  string     `json:"notes"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// SubscriptionStatus mirrors the status column owned by the subscription
// lifecycle. Only ACTIVE subscriptions may hold a port.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPending   SubscriptionStatus = "PENDING"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionStatusExpired   SubscriptionStatus = "EXPIRED"
)

// Subscription is the slice of the subscription entity this service reads
// and writes.
type Subscription struct {
	ID             string             `json:"id"`
	CustomerID     *string            `json:"customer_id,omitempty"`
	PlanID         *string            `json:"plan_id,omitempty"`
	Status         SubscriptionStatus `json:"status"`
	AssignedPortID *string            `json:"assigned_port_id"`
}

// NeedsAllocation reports whether the subscription is ACTIVE without a port.
// There is no separate pending marker: this condition is the signal.
func (s Subscription) NeedsAllocation() bool {
	return s.Status == SubscriptionStatusActive && s.AssignedPortID == nil
}

// transitions lists the administrative and engine-driven edges of the port
// state machine. ASSIGNED → ASSIGNED (reassignment to a different
// subscription) is handled by the engine and is not a status change.
var transitions = map[PortStatus][]PortStatus{
	PortStatusAvailable: {PortStatusAssigned, PortStatusReserved, PortStatusDisabled},
	PortStatusReserved:  {PortStatusAvailable, PortStatusDisabled},
	PortStatusAssigned:  {PortStatusAvailable},
	PortStatusDisabled:  {PortStatusAvailable},
}

// CanTransition reports whether a port may move from one status to another.
func CanTransition(from, to PortStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
