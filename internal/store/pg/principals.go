package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/ids"
)

// PrincipalStore implements auth.PrincipalStore.
type PrincipalStore struct {
	db *sql.DB
}

var _ auth.PrincipalStore = (*PrincipalStore)(nil)

const principalColumns = `id, email, phone, display_name, role, home_tenant_id, active,
	email_verified, phone_verified, password_hash, created_at, updated_at, deleted_at`

func scanPrincipal(row rowScanner) (auth.Principal, error) {
	var (
		p                        auth.Principal
		email, phone, home, hash sql.NullString
		role                     string
		deleted                  sql.NullTime
	)
	if err := row.Scan(&p.ID, &email, &phone, &p.DisplayName, &role, &home, &p.Active,
		&p.EmailVerified, &p.PhoneVerified, &hash, &p.CreatedAt, &p.UpdatedAt, &deleted); err != nil {
		return auth.Principal{}, err
	}
	r, err := auth.ParseRole(role)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("principal %s: %w", p.ID, err)
	}
	p.Role = r
	p.Email = email.String
	p.Phone = phone.String
	p.HomeTenantID = home.String
	p.PasswordHash = hash.String
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	p.DeletedAt = timePtr(deleted)
	return p, nil
}

func (s *PrincipalStore) Create(ctx context.Context, p *auth.Principal) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	p.Email = auth.NormalizeEmail(p.Email)
	p.Phone = auth.NormalizePhone(p.Phone)
	if p.Email == "" && p.Phone == "" {
		return apperr.Invalid("principal needs an email or phone")
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		insert into principals(id, email, phone, display_name, role, home_tenant_id, active,
			email_verified, phone_verified, password_hash, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, p.ID, nullIfEmpty(p.Email), nullIfEmpty(p.Phone), p.DisplayName, string(p.Role),
		nullIfEmpty(p.HomeTenantID), p.Active, p.EmailVerified, p.PhoneVerified,
		nullIfEmpty(p.PasswordHash), p.CreatedAt, p.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return apperr.ErrConflict
	case isForeignKeyViolation(err):
		return apperr.Invalid("unknown home tenant")
	default:
		return err
	}
}

func (s *PrincipalStore) Get(ctx context.Context, id string) (auth.Principal, error) {
	row := s.db.QueryRowContext(ctx, `select `+principalColumns+` from principals where id=$1`, id)
	p, err := scanPrincipal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Principal{}, apperr.NotFound("principal")
	}
	return p, err
}

func (s *PrincipalStore) FindByIdentifier(ctx context.Context, identifier string) (auth.Principal, error) {
	kind, value := auth.ParseIdentifier(identifier)
	if value == "" {
		return auth.Principal{}, apperr.NotFound("principal")
	}
	column := "email"
	if kind == auth.IdentifierPhone {
		column = "phone"
	}
	row := s.db.QueryRowContext(ctx, `
		select `+principalColumns+` from principals
		where deleted_at is null and `+column+` = $1
	`, value)
	p, err := scanPrincipal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Principal{}, apperr.NotFound("principal")
	}
	return p, err
}

func (s *PrincipalStore) ListByHomeTenant(ctx context.Context, tenantIDs []string) ([]auth.Principal, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if len(tenantIDs) == 0 {
		rows, err = s.db.QueryContext(ctx, `select `+principalColumns+` from principals order by id`)
	} else {
		rows, err = s.db.QueryContext(ctx, `select `+principalColumns+` from principals where home_tenant_id = any($1) order by id`, tenantIDs)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]auth.Principal, 0)
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PrincipalStore) Anonymize(ctx context.Context, id string, at time.Time) error {
	at = at.UTC()
	res, err := s.db.ExecContext(ctx, `
		update principals
		set email = $2, phone = null, display_name = 'deleted principal', password_hash = null,
			active = false, deleted_at = $3, updated_at = $3
		where id = $1 and deleted_at is null
	`, id, "deleted+"+id+"@invalid", at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("principal")
	}
	return nil
}
