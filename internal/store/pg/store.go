// Package pg implements the core persistence interfaces on PostgreSQL
// through database/sql and the pgx driver.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store bundles the PostgreSQL-backed stores over one pool.
type Store struct {
	db *sql.DB
}

// Open connects with tuned pool defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle (tests, shared pools).
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping reports whether the database answers within ctx.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	return s.db.PingContext(ctx)
}

// Principals returns the principal store.
func (s *Store) Principals() *PrincipalStore { return &PrincipalStore{db: s.db} }

// RefreshTokens returns the refresh token store.
func (s *Store) RefreshTokens() *RefreshTokenStore { return &RefreshTokenStore{db: s.db} }

// Tenancy returns the tenant, assignment and session store.
func (s *Store) Tenancy() *TenancyStore { return &TenancyStore{db: s.db} }

// Approvals returns the approval request store.
func (s *Store) Approvals() *ApprovalStore { return &ApprovalStore{db: s.db} }

// Audit returns the audit record store.
func (s *Store) Audit() *AuditStore { return &AuditStore{db: s.db} }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func isUniqueViolation(err error) bool {
	pgErr, ok := maybePgError(err)
	return ok && pgErr.Code == pgErrUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	pgErr, ok := maybePgError(err)
	return ok && pgErr.Code == pgErrForeignKeyViolation
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

type rowScanner interface {
	Scan(dest ...any) error
}
