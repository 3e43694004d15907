// Package repo provides tenant-filtered data access for domain entities.
// No query leaves a Repository without a tenant predicate derived from the
// request scope.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/tenancy"
)

const tenantColumn = "tenant_id"

// TenantScope turns a tenant filter into a gorm scope on column.
func TenantScope(f tenancy.Filter, column string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch f.Kind {
		case tenancy.FilterNone:
			return db
		case tenancy.FilterEquals:
			return db.Where(column+" = ?", f.TenantIDs[0])
		case tenancy.FilterIn:
			return db.Where(column+" IN ?", f.TenantIDs)
		default:
			return db.Where("1 = 0")
		}
	}
}

// ListOptions pages and narrows a listing.
type ListOptions struct {
	Limit  int
	Offset int
	// Where holds column equality conditions on top of the tenant predicate.
	Where map[string]any
}

const maxListLimit = 200

// Repository is a tenant-filtered CRUD surface over entity T.
type Repository[T any, P interface {
	*T
	TenantBound
}] struct {
	db    *gorm.DB
	scope tenancy.Scope
	kind  string
}

// New binds a repository for T to one request scope.
func New[T any, P interface {
	*T
	TenantBound
}](db *gorm.DB, scope tenancy.Scope, kind string) *Repository[T, P] {
	return &Repository[T, P]{db: db, scope: scope, kind: kind}
}

// Rooms returns the room repository for scope.
func Rooms(db *gorm.DB, scope tenancy.Scope) *Repository[Room, *Room] {
	return New[Room, *Room](db, scope, "room")
}

// Complaints returns the complaint repository for scope.
func Complaints(db *gorm.DB, scope tenancy.Scope) *Repository[Complaint, *Complaint] {
	return New[Complaint, *Complaint](db, scope, "complaint")
}

func (r *Repository[T, P]) scoped(ctx context.Context, db *gorm.DB) (*gorm.DB, error) {
	f, err := r.scope.Filter()
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx).Model(new(T)).Scopes(TenantScope(f, tenantColumn)), nil
}

// List returns entities visible in scope.
func (r *Repository[T, P]) List(ctx context.Context, opts ListOptions) ([]T, error) {
	q, err := r.scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}
	for col, v := range opts.Where {
		q = q.Where(map[string]any{col: v})
	}
	limit := opts.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	out := make([]T, 0)
	if err := q.Order("created_at asc, id asc").Limit(limit).Offset(opts.Offset).Find(&out).Error; err != nil {
		return nil, r.translate(err)
	}
	return out, nil
}

// Get returns one entity. Rows outside scope read as absent.
func (r *Repository[T, P]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	q, err := r.scoped(ctx, r.db)
	if err != nil {
		return zero, err
	}
	var out T
	if err := q.Where("id = ?", id).Take(&out).Error; err != nil {
		return zero, r.translate(err)
	}
	return out, nil
}

// Create inserts entity. An explicit tenant must be accessible; an empty one
// defaults to the active tenant.
func (r *Repository[T, P]) Create(ctx context.Context, entity P) error {
	if _, err := r.scope.Filter(); err != nil {
		return err
	}
	tenantID, err := r.scope.TenantForWrite(entity.TenantKey())
	if err != nil {
		return err
	}
	entity.SetTenantKey(tenantID)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return r.translate(err)
	}
	return nil
}

// Update loads id within scope, applies mutate and saves the result in one
// transaction. Moving a row to another tenant requires access to it.
func (r *Repository[T, P]) Update(ctx context.Context, id string, mutate func(P) error) (T, error) {
	var out T
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := r.scoped(ctx, tx)
		if err != nil {
			return err
		}
		var row T
		if err := q.Where("id = ?", id).Take(&row).Error; err != nil {
			return r.translate(err)
		}
		p := P(&row)
		if !r.scope.CanAccess(p.TenantKey()) {
			return apperr.NotFound(r.kind)
		}
		original := p.TenantKey()
		if err := mutate(p); err != nil {
			return err
		}
		if p.EntityID() != id {
			return apperr.Invalid("id is immutable")
		}
		if p.TenantKey() != original && !r.scope.CanAccess(p.TenantKey()) {
			return apperr.Denied("tenant outside accessible scope")
		}
		if err := tx.Save(p).Error; err != nil {
			return r.translate(err)
		}
		out = row
		return nil
	})
	if err != nil {
		return out, err
	}
	return out, nil
}

// Delete removes id within scope.
func (r *Repository[T, P]) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := r.scoped(ctx, tx)
		if err != nil {
			return err
		}
		var row T
		if err := q.Where("id = ?", id).Take(&row).Error; err != nil {
			return r.translate(err)
		}
		if !r.scope.CanAccess(P(&row).TenantKey()) {
			return apperr.NotFound(r.kind)
		}
		if err := tx.Delete(P(&row)).Error; err != nil {
			return r.translate(err)
		}
		return nil
	})
}

func (r *Repository[T, P]) translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(r.kind)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.ErrConflict
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return apperr.Invalid("%s references an unknown row", r.kind)
	default:
		return apperr.Infra(err)
	}
}
