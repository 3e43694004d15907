package tenancy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/auth"
)

func TestFilterSQL(t *testing.T) {
	cases := []struct {
		name   string
		filter Filter
		clause string
		args   []any
	}{
		{"none", Filter{Kind: FilterNone}, "true", nil},
		{"equals", Filter{Kind: FilterEquals, TenantIDs: []string{"3"}}, "tenant_id = $2", []any{"3"}},
		{"in", Filter{Kind: FilterIn, TenantIDs: []string{"3", "5"}}, "tenant_id = any($2)", []any{[]string{"3", "5"}}},
		{"deny", Filter{Kind: FilterDeny}, "false", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clause, args := tc.filter.SQL("tenant_id", 2)
			assert.Equal(t, tc.clause, clause)
			assert.Equal(t, tc.args, args)
		})
	}
}

func TestFilterMatches(t *testing.T) {
	assert.True(t, Filter{Kind: FilterNone}.Matches("anything"))
	assert.True(t, Filter{Kind: FilterEquals, TenantIDs: []string{"3"}}.Matches("3"))
	assert.False(t, Filter{Kind: FilterEquals, TenantIDs: []string{"3"}}.Matches("5"))
	assert.True(t, Filter{Kind: FilterIn, TenantIDs: []string{"3", "5"}}.Matches("5"))
	assert.False(t, Filter{Kind: FilterDeny}.Matches("3"))
}

func TestTenantForWrite(t *testing.T) {
	scope := Scope{Role: auth.RoleAdmin, ActiveTenantID: "3", Accessible: []string{"3", "5"}}
	got, err := scope.TenantForWrite("")
	require.NoError(t, err)
	assert.Equal(t, "3", got)

	got, err = scope.TenantForWrite("5")
	require.NoError(t, err)
	assert.Equal(t, "5", got)

	_, err = scope.TenantForWrite("9")
	require.ErrorIs(t, err, apperr.ErrAccessDenied)

	_, err = Scope{Role: auth.RoleAdmin, Accessible: []string{"3"}}.TenantForWrite("")
	require.ErrorIs(t, err, apperr.ErrInvalidRequest)

	got, err = Scope{Role: auth.RoleTopAdmin, Bypass: true}.TenantForWrite("any")
	require.NoError(t, err)
	assert.Equal(t, "any", got)
}

func TestScopeContext(t *testing.T) {
	_, ok := ScopeFromContext(context.Background())
	assert.False(t, ok)

	in := Scope{PrincipalID: "1", Bypass: true}
	out, ok := ScopeFromContext(ContextWithScope(context.Background(), in))
	require.True(t, ok)
	assert.True(t, out.BypassTenantFilter())
	assert.Equal(t, "1", out.PrincipalID)
}
