// Package audit records privileged actions in an append-only trail.
package audit

import (
	"context"
	"net/http"
	"time"

	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/tenancy"
)

// Record is one append-only audit entry.
type Record struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	TenantID  string         `json:"tenant_id,omitempty"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Query narrows a listing. Filter is mandatory and comes from the reader's scope.
type Query struct {
	Filter  tenancy.Filter
	ActorID string
	Action  string
	Limit   int
}

// MaxLimit caps a single listing page.
const MaxLimit = 200

// Store persists audit records. Implementations never update or delete.
type Store interface {
	Append(ctx context.Context, r *Record) error
	// List returns matching records newest first.
	List(ctx context.Context, q Query) ([]Record, error)
}

// Policy decides which requests leave a trace.
type Policy struct {
	IncludeReads bool
}

// ShouldRecord reports whether a request with the given method by role, in
// a scope with or without tenant bypass, must be audited. Mutations by staff
// and above are always recorded; bypass requests are recorded even for reads
// so cross-tenant access stays visible.
func (p Policy) ShouldRecord(role auth.Role, method string, bypass bool) bool {
	if role.Level() < auth.RoleStaff.Level() {
		return false
	}
	if !IsRead(method) {
		return true
	}
	return bypass || p.IncludeReads
}

// IsRead reports whether method is an idempotent read.
func IsRead(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
