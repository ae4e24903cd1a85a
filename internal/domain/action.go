package domain

// AllocationAction labels one entry in the port allocation audit trail.
type AllocationAction string

const (
	ActionCreated       AllocationAction = "CREATED"
	ActionAssigned      AllocationAction = "ASSIGNED"
	ActionReassigned    AllocationAction = "REASSIGNED"
	ActionReleased      AllocationAction = "RELEASED"
	ActionUnassigned    AllocationAction = "UNASSIGNED"
	ActionDisabled      AllocationAction = "DISABLED"
	ActionEnabled       AllocationAction = "ENABLED"
	ActionReserved      AllocationAction = "RESERVED"
	ActionMadeAvailable AllocationAction = "MADE_AVAILABLE"
	ActionStatusChanged AllocationAction = "STATUS_CHANGED"
)

var actionLabels = map[AllocationAction]string{
	ActionCreated:       "Created",
	ActionAssigned:      "Assigned",
	ActionReassigned:    "Reassigned",
	ActionReleased:      "Released",
	ActionUnassigned:    "Unassigned",
	ActionDisabled:      "Disabled",
	ActionEnabled:       "Enabled",
	ActionReserved:      "Reserved",
	ActionMadeAvailable: "Made Available",
	ActionStatusChanged: "Status Changed",
}

// AllActions returns every audit action in declaration order.
func AllActions() []AllocationAction {
	return []AllocationAction{
		ActionCreated, ActionAssigned, ActionReassigned, ActionReleased, ActionUnassigned,
		ActionDisabled, ActionEnabled, ActionReserved, ActionMadeAvailable, ActionStatusChanged,
	}
}

// Valid reports whether a is a known action.
func (a AllocationAction) Valid() bool {
	_, ok := actionLabels[a]
	return ok
}

// Label returns the display label used in reports. Unknown codes render as-is.
func (a AllocationAction) Label() string {
	if label, ok := actionLabels[a]; ok {
		return label
	}
	return string(a)
}

// ResultingStatus returns the port status an action leaves behind, and false
// for actions that do not imply a fixed status (CREATED, STATUS_CHANGED).
func (a AllocationAction) ResultingStatus() (PortStatus, bool) {
	switch a {
	case ActionAssigned, ActionReassigned:
		return PortStatusAssigned, true
	case ActionReleased, ActionUnassigned, ActionEnabled, ActionMadeAvailable:
		return PortStatusAvailable, true
	case ActionDisabled:
		return PortStatusDisabled, true
	case ActionReserved:
		return PortStatusReserved, true
	}
	return "", false
}
