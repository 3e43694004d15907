package tenancy

import (
	"context"
	"errors"
	"time"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/auth"
)

// Resolver computes accessible and active tenants for principals.
type Resolver struct {
	store      Store
	failClosed bool
	now        func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFailClosed selects whether scopes without any tenant context resolve to
// an always-false filter (true) or to an access error (false).
func WithFailClosed(v bool) Option {
	return func(r *Resolver) { r.failClosed = v }
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewResolver constructs a resolver over store.
func NewResolver(store Store, opts ...Option) *Resolver {
	r := &Resolver{store: store, failClosed: true, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store exposes the underlying tenant persistence.
func (r *Resolver) Store() Store { return r.store }

// AccessibleTenants lists the tenants p may observe or mutate. Inactive
// tenants are only visible to bypass principals.
func (r *Resolver) AccessibleTenants(ctx context.Context, p auth.Principal) ([]Tenant, error) {
	switch {
	case p.Role.Bypass():
		list, err := r.store.ListTenants(ctx)
		return list, apperr.Infra(err)
	case p.Role.UsesAssignments():
		tenantIDs, err := r.store.TenantIDsFor(ctx, p.ID)
		if err != nil {
			return nil, apperr.Infra(err)
		}
		return r.activeTenants(ctx, tenantIDs)
	case p.HomeTenantID != "":
		return r.activeTenants(ctx, []string{p.HomeTenantID})
	default:
		return []Tenant{}, nil
	}
}

func (r *Resolver) activeTenants(ctx context.Context, tenantIDs []string) ([]Tenant, error) {
	if len(tenantIDs) == 0 {
		return []Tenant{}, nil
	}
	list, err := r.store.ListTenantsByID(ctx, tenantIDs)
	if err != nil {
		return nil, apperr.Infra(err)
	}
	out := list[:0]
	for _, t := range list {
		if t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

// AccessibleTenantIDs is AccessibleTenants reduced to identifiers.
func (r *Resolver) AccessibleTenantIDs(ctx context.Context, p auth.Principal) ([]string, error) {
	list, err := r.AccessibleTenants(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(list))
	for _, t := range list {
		out = append(out, t.ID)
	}
	return out, nil
}

// ActiveTenant returns the persisted selection of p, falling back to the home
// tenant. An empty result means no single active tenant.
func (r *Resolver) ActiveTenant(ctx context.Context, p auth.Principal) (string, error) {
	sess, ok, err := r.store.ActiveSession(ctx, p.ID)
	if err != nil {
		return "", apperr.Infra(err)
	}
	if ok {
		return sess.TenantID, nil
	}
	return p.HomeTenantID, nil
}

// Switch makes tenantID the active tenant of p. Re-asserting the current
// target is a no-op.
func (r *Resolver) Switch(ctx context.Context, p auth.Principal, tenantID string) (Session, error) {
	if tenantID == "" {
		return Session{}, apperr.Invalid("tenant_id is required")
	}
	ok, err := r.canReach(ctx, p, tenantID)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, apperr.Denied("tenant not accessible")
	}
	sess, err := r.store.Activate(ctx, p.ID, tenantID, r.now().UTC())
	if err != nil {
		return Session{}, apperr.Infra(err)
	}
	return sess, nil
}

// Deactivate clears the active session of p, or sessionID when given.
func (r *Resolver) Deactivate(ctx context.Context, p auth.Principal, sessionID string) (bool, error) {
	ok, err := r.store.Deactivate(ctx, p.ID, sessionID, r.now().UTC())
	if err != nil {
		return false, apperr.Infra(err)
	}
	return ok, nil
}

func (r *Resolver) canReach(ctx context.Context, p auth.Principal, tenantID string) (bool, error) {
	if p.Role.Bypass() {
		_, err := r.store.GetTenant(ctx, tenantID)
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return err == nil, apperr.Infra(err)
	}
	tenantIDs, err := r.AccessibleTenantIDs(ctx, p)
	if err != nil {
		return false, err
	}
	for _, id := range tenantIDs {
		if id == tenantID {
			return true, nil
		}
	}
	return false, nil
}

// Resolve builds the request scope of p. A non-empty hint overrides the
// persisted active tenant for this request only and must be accessible.
// A persisted selection that is no longer accessible is ignored.
func (r *Resolver) Resolve(ctx context.Context, p auth.Principal, hint string) (Scope, error) {
	scope := Scope{
		PrincipalID: p.ID,
		Role:        p.Role,
		Bypass:      p.Role.Bypass(),
		FailClosed:  r.failClosed,
	}
	if !scope.Bypass {
		accessible, err := r.AccessibleTenantIDs(ctx, p)
		if err != nil {
			return Scope{}, err
		}
		scope.Accessible = accessible
	}

	if hint != "" {
		ok := scope.CanAccess(hint)
		if scope.Bypass {
			var err error
			if ok, err = r.canReach(ctx, p, hint); err != nil {
				return Scope{}, err
			}
		}
		if !ok {
			return Scope{}, apperr.Denied("tenant not accessible")
		}
		scope.ActiveTenantID = hint
		return scope, nil
	}

	active, err := r.ActiveTenant(ctx, p)
	if err != nil {
		return Scope{}, err
	}
	if active != "" && (scope.Bypass || scope.CanAccess(active)) {
		scope.ActiveTenantID = active
	}
	return scope, nil
}
