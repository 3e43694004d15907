package auth

import (
	"context"
	"time"
)

// PrincipalStore persists principals.
type PrincipalStore interface {
	// Create inserts p, assigning an ID when empty. Duplicate email or phone
	// yields apperr.ErrConflict.
	Create(ctx context.Context, p *Principal) error
	Get(ctx context.Context, id string) (Principal, error)
	// FindByIdentifier matches an email or phone number.
	FindByIdentifier(ctx context.Context, identifier string) (Principal, error)
	// ListByHomeTenant returns principals of the given home tenants; an empty
	// slice of tenant IDs means every principal.
	ListByHomeTenant(ctx context.Context, tenantIDs []string) ([]Principal, error)
	// Anonymize soft-deletes a principal, scrubbing its identifiers.
	Anonymize(ctx context.Context, id string, at time.Time) error
}

// RefreshTokenStore persists refresh token records.
type RefreshTokenStore interface {
	Create(ctx context.Context, rec RefreshToken) error
	Find(ctx context.Context, token string) (RefreshToken, error)
	// Consume revokes token only if it is unrevoked and unexpired at now and
	// returns the record. Exactly one concurrent caller succeeds.
	Consume(ctx context.Context, token string, now time.Time) (RefreshToken, error)
	// Revoke marks token revoked and reports whether it was known.
	Revoke(ctx context.Context, token string) (bool, error)
	RevokeAll(ctx context.Context, principalID string) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
