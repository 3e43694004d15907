package repo

import (
	"context"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/tenancy"
)

// Principals is the tenant-filtered view of the principal directory. A
// principal belongs to its home tenant.
type Principals struct {
	store auth.PrincipalStore
	scope tenancy.Scope
}

// NewPrincipals binds the directory to one request scope.
func NewPrincipals(store auth.PrincipalStore, scope tenancy.Scope) *Principals {
	return &Principals{store: store, scope: scope}
}

// List returns principals whose home tenant passes the scope filter.
func (p *Principals) List(ctx context.Context) ([]auth.Principal, error) {
	f, err := p.scope.Filter()
	if err != nil {
		return nil, err
	}
	var list []auth.Principal
	switch f.Kind {
	case tenancy.FilterDeny:
		return []auth.Principal{}, nil
	case tenancy.FilterNone:
		list, err = p.store.ListByHomeTenant(ctx, nil)
	default:
		list, err = p.store.ListByHomeTenant(ctx, f.TenantIDs)
	}
	if err != nil {
		return nil, apperr.Infra(err)
	}
	out := make([]auth.Principal, 0, len(list))
	for _, pr := range list {
		if f.Matches(pr.HomeTenantID) {
			out = append(out, pr)
		}
	}
	return out, nil
}

// Get returns a principal in scope. Principals outside it read as absent.
func (p *Principals) Get(ctx context.Context, id string) (auth.Principal, error) {
	f, err := p.scope.Filter()
	if err != nil {
		return auth.Principal{}, err
	}
	pr, err := p.store.Get(ctx, id)
	if err != nil {
		return auth.Principal{}, apperr.Infra(err)
	}
	if !f.Matches(pr.HomeTenantID) || !p.scope.CanAccess(pr.HomeTenantID) {
		return auth.Principal{}, apperr.NotFound("principal")
	}
	return pr, nil
}

// Create provisions a principal homed in an accessible tenant. Top admins
// may leave the home tenant empty for global accounts.
func (p *Principals) Create(ctx context.Context, pr *auth.Principal) error {
	if !pr.Role.Valid() {
		return apperr.Invalid("unknown role")
	}
	if pr.HomeTenantID != "" || !p.scope.Bypass {
		tenantID, err := p.scope.TenantForWrite(pr.HomeTenantID)
		if err != nil {
			return err
		}
		pr.HomeTenantID = tenantID
	}
	if err := p.store.Create(ctx, pr); err != nil {
		return apperr.Infra(err)
	}
	return nil
}

// Anonymize soft-deletes a principal in scope.
func (p *Principals) Anonymize(ctx context.Context, id string) (auth.Principal, error) {
	pr, err := p.Get(ctx, id)
	if err != nil {
		return auth.Principal{}, err
	}
	if err := p.store.Anonymize(ctx, id, nowUTC()); err != nil {
		return auth.Principal{}, apperr.Infra(err)
	}
	return pr, nil
}
