package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/ids"
	"hostelhub.org/internal/tenancy"
)

// TenancyStore implements tenancy.Store.
type TenancyStore struct {
	db *sql.DB
}

var _ tenancy.Store = (*TenancyStore)(nil)

func (s *TenancyStore) CreateTenant(ctx context.Context, t *tenancy.Tenant) error {
	if t.Name == "" {
		return apperr.Invalid("tenant name is required")
	}
	if t.ID == "" {
		t.ID = ids.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into tenants(id, name, address, active, created_at) values ($1,$2,$3,$4,$5)
	`, t.ID, t.Name, t.Address, t.Active, t.CreatedAt)
	if isUniqueViolation(err) {
		return apperr.ErrConflict
	}
	return err
}

func scanTenant(row rowScanner) (tenancy.Tenant, error) {
	var t tenancy.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Address, &t.Active, &t.CreatedAt); err != nil {
		return tenancy.Tenant{}, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func (s *TenancyStore) GetTenant(ctx context.Context, id string) (tenancy.Tenant, error) {
	t, err := scanTenant(s.db.QueryRowContext(ctx,
		`select id, name, address, active, created_at from tenants where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return tenancy.Tenant{}, apperr.NotFound("tenant")
	}
	return t, err
}

func (s *TenancyStore) ListTenants(ctx context.Context) ([]tenancy.Tenant, error) {
	return s.queryTenants(ctx, `select id, name, address, active, created_at from tenants order by id`)
}

func (s *TenancyStore) ListTenantsByID(ctx context.Context, tenantIDs []string) ([]tenancy.Tenant, error) {
	if len(tenantIDs) == 0 {
		return []tenancy.Tenant{}, nil
	}
	return s.queryTenants(ctx,
		`select id, name, address, active, created_at from tenants where id = any($1) order by id`, tenantIDs)
}

func (s *TenancyStore) queryTenants(ctx context.Context, query string, args ...any) ([]tenancy.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]tenancy.Tenant, 0)
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *TenancyStore) SetTenantActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `update tenants set active = $2 where id = $1`, id, active)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("tenant")
	}
	return nil
}

func (s *TenancyStore) Assign(ctx context.Context, principalID, tenantID string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into tenant_assignments(principal_id, tenant_id) values ($1,$2)
		on conflict do nothing
	`, principalID, tenantID)
	if isForeignKeyViolation(err) {
		return apperr.NotFound("tenant")
	}
	return err
}

func (s *TenancyStore) Unassign(ctx context.Context, principalID, tenantID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from tenant_assignments where principal_id = $1 and tenant_id = $2`, principalID, tenantID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *TenancyStore) TenantIDsFor(ctx context.Context, principalID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select tenant_id from tenant_assignments where principal_id = $1 order by tenant_id`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

const sessionColumns = `id, principal_id, tenant_id, active, updated_at`

func scanSession(row rowScanner) (tenancy.Session, error) {
	var sess tenancy.Session
	if err := row.Scan(&sess.ID, &sess.PrincipalID, &sess.TenantID, &sess.Active, &sess.UpdatedAt); err != nil {
		return tenancy.Session{}, err
	}
	sess.UpdatedAt = sess.UpdatedAt.UTC()
	return sess, nil
}

func (s *TenancyStore) ActiveSession(ctx context.Context, principalID string) (tenancy.Session, bool, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`select `+sessionColumns+` from active_sessions where principal_id = $1 and active limit 1`, principalID))
	if errors.Is(err, sql.ErrNoRows) {
		return tenancy.Session{}, false, nil
	}
	if err != nil {
		return tenancy.Session{}, false, err
	}
	return sess, true, nil
}

// Activate serializes switches of one principal with a transaction-scoped
// advisory lock, then flips the prior active row and upserts the target.
func (s *TenancyStore) Activate(ctx context.Context, principalID, tenantID string, at time.Time) (tenancy.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return tenancy.Session{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `select pg_advisory_xact_lock(hashtext($1))`, principalID); err != nil {
		return tenancy.Session{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		update active_sessions set active = false, updated_at = $3
		where principal_id = $1 and active and tenant_id <> $2
	`, principalID, tenantID, at); err != nil {
		return tenancy.Session{}, err
	}
	sess, err := scanSession(tx.QueryRowContext(ctx, `
		insert into active_sessions(id, principal_id, tenant_id, active, updated_at)
		values ($4, $1, $2, true, $3)
		on conflict (principal_id, tenant_id) do update
		set active = true,
			updated_at = case when active_sessions.active then active_sessions.updated_at else excluded.updated_at end
		returning `+sessionColumns, principalID, tenantID, at, ids.New()))
	if err != nil {
		if isForeignKeyViolation(err) {
			return tenancy.Session{}, apperr.NotFound("tenant")
		}
		return tenancy.Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return tenancy.Session{}, err
	}
	return sess, nil
}

func (s *TenancyStore) Deactivate(ctx context.Context, principalID, sessionID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		update active_sessions set active = false, updated_at = $3
		where principal_id = $1 and active and ($2 = '' or id = $2)
	`, principalID, sessionID, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
