package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/tenancy"
)

func TestSeedBootstrapCreatesLoginableAdmin(t *testing.T) {
	ctx := context.Background()
	principals := auth.NewMemoryPrincipalStore()
	tenants := tenancy.NewMemoryStore()

	generated, err := seedBootstrap(ctx, principals, tenants, bootstrapSettings{
		AdminEmail:    "Root@Hostel.test",
		AdminPassword: "Secret123",
		TenantName:    "Main Hostel",
	})
	require.NoError(t, err)
	assert.Empty(t, generated)

	tokens, err := auth.NewTokenService(principals, auth.NewMemoryRefreshTokenStore(), "bootstrap-secret-0123")
	require.NoError(t, err)
	pair, p, err := tokens.Login(ctx, "root@hostel.test", "Secret123", false)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Equal(t, auth.RoleTopAdmin, p.Role)

	list, err := tenants.ListTenants(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Main Hostel", list[0].Name)
}

func TestSeedBootstrapIsIdempotent(t *testing.T) {
	ctx := context.Background()
	principals := auth.NewMemoryPrincipalStore()
	tenants := tenancy.NewMemoryStore()
	settings := bootstrapSettings{AdminEmail: "root@hostel.test", TenantName: "Main Hostel"}

	generated, err := seedBootstrap(ctx, principals, tenants, settings)
	require.NoError(t, err)
	require.NotEmpty(t, generated)

	again, err := seedBootstrap(ctx, principals, tenants, settings)
	require.NoError(t, err)
	assert.Empty(t, again)

	listed, err := principals.ListByHomeTenant(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
	list, err := tenants.ListTenants(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	tokens, err := auth.NewTokenService(principals, auth.NewMemoryRefreshTokenStore(), "bootstrap-secret-0123")
	require.NoError(t, err)
	_, _, err = tokens.Login(ctx, "root@hostel.test", generated, false)
	require.NoError(t, err)
}

func TestSeedBootstrapRequiresEmail(t *testing.T) {
	_, err := seedBootstrap(context.Background(), auth.NewMemoryPrincipalStore(), tenancy.NewMemoryStore(), bootstrapSettings{})
	require.Error(t, err)
}
