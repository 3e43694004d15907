package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/auth"
)

// RefreshTokenStore implements auth.RefreshTokenStore.
type RefreshTokenStore struct {
	db *sql.DB
}

var _ auth.RefreshTokenStore = (*RefreshTokenStore)(nil)

func (s *RefreshTokenStore) Create(ctx context.Context, rec auth.RefreshToken) error {
	_, err := s.db.ExecContext(ctx, `
		insert into refresh_tokens(token, principal_id, expires_at, revoked, remember, created_at)
		values ($1,$2,$3,$4,$5,$6)
	`, rec.Token, rec.PrincipalID, rec.ExpiresAt, rec.Revoked, rec.Remember, rec.CreatedAt)
	if isUniqueViolation(err) {
		return apperr.ErrConflict
	}
	return err
}

func (s *RefreshTokenStore) Find(ctx context.Context, token string) (auth.RefreshToken, error) {
	rec := auth.RefreshToken{Token: token}
	err := s.db.QueryRowContext(ctx, `
		select principal_id, expires_at, revoked, remember, created_at
		from refresh_tokens where token = $1
	`, token).Scan(&rec.PrincipalID, &rec.ExpiresAt, &rec.Revoked, &rec.Remember, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.RefreshToken{}, apperr.NotFound("refresh token")
	}
	return rec, err
}

func (s *RefreshTokenStore) Consume(ctx context.Context, token string, now time.Time) (auth.RefreshToken, error) {
	rec := auth.RefreshToken{Token: token, Revoked: true}
	err := s.db.QueryRowContext(ctx, `
		update refresh_tokens set revoked = true
		where token = $1 and revoked = false and expires_at > $2
		returning principal_id, expires_at, remember, created_at
	`, token, now).Scan(&rec.PrincipalID, &rec.ExpiresAt, &rec.Remember, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.RefreshToken{}, apperr.ErrInvalidCredential
	}
	return rec, err
}

func (s *RefreshTokenStore) Revoke(ctx context.Context, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `update refresh_tokens set revoked = true where token = $1`, token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *RefreshTokenStore) RevokeAll(ctx context.Context, principalID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		update refresh_tokens set revoked = true
		where principal_id = $1 and revoked = false
	`, principalID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *RefreshTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `delete from refresh_tokens where expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
