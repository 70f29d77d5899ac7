package resolver

import "context"

// Actor is a person known to the organisation directory.
type Actor struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name,omitempty" yaml:"name,omitempty"`
	Active       bool     `json:"active" yaml:"active"`
	ManagerID    string   `json:"managerId,omitempty" yaml:"managerId,omitempty"`
	OrgUnit      string   `json:"orgUnit,omitempty" yaml:"orgUnit,omitempty"`
	Roles        []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
}

// CapabilityHRManager marks actors that approve HR steps.
const CapabilityHRManager = "hr_manager"

// Directory is the read-only organisation lookup the resolver depends on.
// Lookups of unknown identifiers return empty results, not errors; errors are
// reserved for the directory being unavailable.
type Directory interface {
	// Actor returns the actor or nil when unknown.
	Actor(ctx context.Context, id string) (*Actor, error)

	// ManagerOf returns the direct manager id of actorID or "".
	ManagerOf(ctx context.Context, actorID string) (string, error)

	// HRManagers returns actors holding the HR manager capability for orgUnit.
	HRManagers(ctx context.Context, orgUnit string) ([]string, error)

	// RoleMembers returns actors currently holding role.
	RoleMembers(ctx context.Context, role string) ([]string, error)

	// GovernanceMembers returns the member set of a committee or board.
	GovernanceMembers(ctx context.Context, body string) ([]string, error)
}
