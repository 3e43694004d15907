package tenancy

import (
	"context"
	"fmt"
	"slices"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/auth"
)

// Scope is the resolved tenant context of one request. It is a value and is
// never mutated after resolution.
type Scope struct {
	PrincipalID    string
	Role           auth.Role
	ActiveTenantID string
	Accessible     []string
	Bypass         bool
	FailClosed     bool
}

// FilterKind enumerates the tenant predicates a query may carry.
type FilterKind int

const (
	// FilterNone applies no predicate. Only bypass scopes produce it.
	FilterNone FilterKind = iota
	FilterEquals
	FilterIn
	// FilterDeny matches nothing.
	FilterDeny
)

func (k FilterKind) String() string {
	switch k {
	case FilterNone:
		return "none"
	case FilterEquals:
		return "equals"
	case FilterIn:
		return "in"
	default:
		return "deny"
	}
}

// Filter is a tenant predicate.
type Filter struct {
	Kind      FilterKind
	TenantIDs []string
}

// Filter derives the tenant predicate every query in this scope must carry.
func (s Scope) Filter() (Filter, error) {
	switch {
	case s.Bypass:
		return Filter{Kind: FilterNone}, nil
	case s.ActiveTenantID != "":
		return Filter{Kind: FilterEquals, TenantIDs: []string{s.ActiveTenantID}}, nil
	case len(s.Accessible) > 0:
		return Filter{Kind: FilterIn, TenantIDs: slices.Clone(s.Accessible)}, nil
	case s.FailClosed:
		return Filter{Kind: FilterDeny}, nil
	default:
		return Filter{}, apperr.Denied("no tenant context")
	}
}

// CanAccess reports whether tenantID lies within the accessible set.
func (s Scope) CanAccess(tenantID string) bool {
	if s.Bypass {
		return true
	}
	return tenantID != "" && slices.Contains(s.Accessible, tenantID)
}

// TenantForWrite picks the tenant a new or updated row belongs to. An explicit
// tenant must be accessible; an empty one defaults to the active tenant.
func (s Scope) TenantForWrite(explicit string) (string, error) {
	if explicit != "" {
		if !s.CanAccess(explicit) {
			return "", apperr.Denied("tenant outside accessible scope")
		}
		return explicit, nil
	}
	if s.ActiveTenantID == "" {
		return "", apperr.Invalid("tenant_id is required without an active tenant")
	}
	return s.ActiveTenantID, nil
}

// BypassTenantFilter mirrors Bypass for audit details.
func (s Scope) BypassTenantFilter() bool { return s.Bypass }

// Matches reports whether a row owned by tenantID passes the filter.
func (f Filter) Matches(tenantID string) bool {
	switch f.Kind {
	case FilterNone:
		return true
	case FilterEquals, FilterIn:
		return slices.Contains(f.TenantIDs, tenantID)
	default:
		return false
	}
}

// SQL renders the filter as a boolean expression on column using
// positional parameters starting at argStart.
func (f Filter) SQL(column string, argStart int) (string, []any) {
	switch f.Kind {
	case FilterNone:
		return "true", nil
	case FilterEquals:
		return fmt.Sprintf("%s = $%d", column, argStart), []any{f.TenantIDs[0]}
	case FilterIn:
		return fmt.Sprintf("%s = any($%d)", column, argStart), []any{slices.Clone(f.TenantIDs)}
	default:
		return "false", nil
	}
}

type scopeContextKey struct{}

// ContextWithScope attaches a resolved scope to ctx.
func ContextWithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, s)
}

// ScopeFromContext returns the scope resolved for the request.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	if ctx == nil {
		return Scope{}, false
	}
	s, ok := ctx.Value(scopeContextKey{}).(Scope)
	return s, ok
}
