// Package authz decides whether a principal may perform an action now,
// only after approval, or not at all.
package authz

import (
	"strings"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/obs"
)

// RequireRoles passes iff p holds one of roles.
func RequireRoles(p auth.Principal, roles ...auth.Role) error {
	for _, r := range roles {
		if p.Role == r {
			obs.ObserveAuthz("role", "allow")
			return nil
		}
	}
	obs.ObserveAuthz("role", "deny")
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return apperr.Denied("requires role %s", strings.Join(names, " or "))
}

// RequirePermission passes iff p's role carries perm.
func RequirePermission(p auth.Principal, perm auth.Permission) error {
	if auth.HasPermission(p.Role, perm) {
		obs.ObserveAuthz("permission", "allow")
		return nil
	}
	obs.ObserveAuthz("permission", "deny")
	return apperr.Denied("missing permission %s", perm)
}

// RequireLevel passes iff p's role level is at least min.
func RequireLevel(p auth.Principal, min int) error {
	if p.Role.Level() >= min {
		obs.ObserveAuthz("level", "allow")
		return nil
	}
	obs.ObserveAuthz("level", "deny")
	return apperr.Denied("requires role level %d", min)
}

// RequireManage passes iff p strictly outranks target.
func RequireManage(p auth.Principal, target auth.Role) error {
	if auth.CanManage(p.Role, target) {
		obs.ObserveAuthz("manage", "allow")
		return nil
	}
	obs.ObserveAuthz("manage", "deny")
	return apperr.Denied("cannot manage role %s", target)
}
