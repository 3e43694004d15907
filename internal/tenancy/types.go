// Package tenancy resolves the tenant context a principal operates in and
// persists the principal's active tenant selection.
package tenancy

import "time"

// Tenant is an isolated administrative unit (a hostel).
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Assignment grants an admin principal administrative scope over a tenant.
type Assignment struct {
	PrincipalID string    `json:"principal_id"`
	TenantID    string    `json:"tenant_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session records the tenant a principal has selected.
type Session struct {
	ID          string    `json:"id"`
	PrincipalID string    `json:"principal_id"`
	TenantID    string    `json:"tenant_id"`
	Active      bool      `json:"active"`
	UpdatedAt   time.Time `json:"updated_at"`
}
