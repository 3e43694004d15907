package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/obs"
	"hostelhub.org/internal/tenancy"
)

// bootstrapSettings names the first top admin and, optionally, a first tenant.
type bootstrapSettings struct {
	AdminEmail    string
	AdminPassword string
	TenantName    string
}

// seedBootstrap creates the top admin when no principal holds the email yet,
// and the tenant when the tenant store is empty. An empty password is
// replaced by a generated one, which is returned so it can be shown once.
func seedBootstrap(ctx context.Context, principals auth.PrincipalStore, tenants tenancy.Store, s bootstrapSettings) (generatedPassword string, err error) {
	if s.AdminEmail == "" {
		return "", errors.New("bootstrap admin email is required")
	}
	if s.TenantName != "" {
		existing, err := tenants.ListTenants(ctx)
		if err != nil {
			return "", fmt.Errorf("list tenants: %w", err)
		}
		if len(existing) == 0 {
			t := &tenancy.Tenant{Name: s.TenantName, Active: true}
			if err := tenants.CreateTenant(ctx, t); err != nil {
				return "", fmt.Errorf("create bootstrap tenant: %w", err)
			}
			obs.Logger().Info().Str("tenant_id", t.ID).Str("name", t.Name).Msg("bootstrap tenant created")
		}
	}

	if _, err := principals.FindByIdentifier(ctx, s.AdminEmail); err == nil {
		obs.Logger().Info().Str("email", auth.NormalizeEmail(s.AdminEmail)).Msg("bootstrap admin already exists")
		return "", nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return "", fmt.Errorf("look up bootstrap admin: %w", err)
	}

	password := s.AdminPassword
	if password == "" {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		password = base64.RawURLEncoding.EncodeToString(buf)
		generatedPassword = password
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	p := &auth.Principal{
		Email:         s.AdminEmail,
		DisplayName:   "Top Admin",
		Role:          auth.RoleTopAdmin,
		Active:        true,
		EmailVerified: true,
		PasswordHash:  hash,
	}
	if err := principals.Create(ctx, p); err != nil {
		return "", fmt.Errorf("create bootstrap admin: %w", err)
	}
	obs.Logger().Info().Str("principal_id", p.ID).Str("email", p.Email).Msg("bootstrap admin created")
	return generatedPassword, nil
}
