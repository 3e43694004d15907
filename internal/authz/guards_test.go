package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/auth"
)

func TestRequireRoles(t *testing.T) {
	staff := auth.Principal{ID: "22", Role: auth.RoleStaff}
	require.NoError(t, RequireRoles(staff, auth.RoleAdmin, auth.RoleStaff))

	err := RequireRoles(staff, auth.RoleAdmin, auth.RoleTopAdmin)
	require.ErrorIs(t, err, apperr.ErrAccessDenied)
	assert.Contains(t, err.Error(), "admin or top_admin")
}

func TestRequirePermission(t *testing.T) {
	require.NoError(t, RequirePermission(auth.Principal{Role: auth.RoleStaff}, auth.PermRoomWrite))
	require.ErrorIs(t, RequirePermission(auth.Principal{Role: auth.RoleGuest}, auth.PermRoomWrite), apperr.ErrAccessDenied)
	require.ErrorIs(t, RequirePermission(auth.Principal{Role: "forged"}, auth.PermRoomRead), apperr.ErrAccessDenied)
}

func TestRequireLevelAndManage(t *testing.T) {
	admin := auth.Principal{Role: auth.RoleAdmin}
	require.NoError(t, RequireLevel(admin, 4))
	require.ErrorIs(t, RequireLevel(admin, 5), apperr.ErrAccessDenied)
	require.NoError(t, RequireManage(admin, auth.RoleStaff))
	require.ErrorIs(t, RequireManage(admin, auth.RoleAdmin), apperr.ErrAccessDenied)
}
