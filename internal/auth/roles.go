package auth

import (
	"fmt"
	"sort"
	"strings"
)

// Role is a closed, level-ordered principal category.
type Role string

const (
	RoleTopAdmin Role = "top_admin"
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleMember   Role = "member"
	RoleGuest    Role = "guest"
)

// MaxLevel is the level of the highest role.
const MaxLevel = 5

var roleLevels = map[Role]int{
	RoleTopAdmin: 5,
	RoleAdmin:    4,
	RoleStaff:    3,
	RoleMember:   2,
	RoleGuest:    1,
}

// Level returns the role's position in the hierarchy; unknown roles are 0.
func (r Role) Level() int {
	return roleLevels[r]
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r.Level() > 0
}

// Bypass reports whether the role sees every tenant without filtering.
func (r Role) Bypass() bool {
	return r.Level() == MaxLevel
}

// UsesAssignments reports whether the role's tenant scope comes from tenant
// assignments instead of a single home tenant.
func (r Role) UsesAssignments() bool {
	return r == RoleAdmin
}

func (r Role) String() string { return string(r) }

// ParseRole converts external input into a Role. It is meant for request
// decoding and row scanning only; decisions compare levels.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}

// CanManage reports whether manager strictly outranks target.
func CanManage(manager, target Role) bool {
	return manager.Level() > target.Level()
}

// AllRoles returns every role, highest level first.
func AllRoles() []Role {
	out := make([]Role, 0, len(roleLevels))
	for r := range roleLevels {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level() > out[j].Level() })
	return out
}
