package tenancy

import (
	"context"
	"time"
)

// TenantStore persists tenants.
type TenantStore interface {
	CreateTenant(ctx context.Context, t *Tenant) error
	GetTenant(ctx context.Context, id string) (Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)
	// ListTenantsByID returns the known tenants among ids, ordered by ID.
	ListTenantsByID(ctx context.Context, ids []string) ([]Tenant, error)
	SetTenantActive(ctx context.Context, id string, active bool) error
}

// AssignmentStore persists admin to tenant assignments.
type AssignmentStore interface {
	// Assign is idempotent on (principalID, tenantID).
	Assign(ctx context.Context, principalID, tenantID string) error
	Unassign(ctx context.Context, principalID, tenantID string) (bool, error)
	TenantIDsFor(ctx context.Context, principalID string) ([]string, error)
}

// SessionStore persists active tenant selections.
type SessionStore interface {
	// ActiveSession returns the active session of principalID, if any.
	ActiveSession(ctx context.Context, principalID string) (Session, bool, error)
	// Activate deactivates any other active session of principalID and marks
	// the session for tenantID active in one unit of work.
	Activate(ctx context.Context, principalID, tenantID string, at time.Time) (Session, error)
	// Deactivate clears sessionID, or the active session when sessionID is
	// empty, and reports whether a session was active.
	Deactivate(ctx context.Context, principalID, sessionID string, at time.Time) (bool, error)
}

// Store is the persistence surface the resolver needs.
type Store interface {
	TenantStore
	AssignmentStore
	SessionStore
}
