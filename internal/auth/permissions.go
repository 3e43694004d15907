package auth

import "sort"

// Permission is an atomic capability tag.
type Permission string

const (
	PermPrincipalRead   Permission = "principal.read"
	PermPrincipalCreate Permission = "principal.create"
	PermPrincipalDelete Permission = "principal.delete"
	PermTenantRead      Permission = "tenant.read"
	PermTenantCreate    Permission = "tenant.create"
	PermTenantDelete    Permission = "tenant.delete"
	PermTenantAssign    Permission = "tenant.assign"
	PermTenantSwitch    Permission = "tenant.switch"
	PermRoomRead        Permission = "room.read"
	PermRoomWrite       Permission = "room.write"
	PermRoomDelete      Permission = "room.delete"
	PermComplaintRead   Permission = "complaint.read"
	PermComplaintCreate Permission = "complaint.create"
	PermApprovalSubmit  Permission = "approval.submit"
	PermApprovalDecide  Permission = "approval.decide"
	PermAuditRead       Permission = "audit.read"
)

type permissionSet map[Permission]struct{}

func newPermissionSet(perms ...Permission) permissionSet {
	set := make(permissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

func (s permissionSet) union(perms ...Permission) permissionSet {
	out := make(permissionSet, len(s)+len(perms))
	for p := range s {
		out[p] = struct{}{}
	}
	for _, p := range perms {
		out[p] = struct{}{}
	}
	return out
}

// matrix is built once and never mutated afterwards.
var matrix = func() map[Role]permissionSet {
	guest := newPermissionSet(PermRoomRead)
	member := guest.union(PermTenantRead, PermComplaintRead, PermComplaintCreate)
	staff := member.union(PermPrincipalRead, PermRoomWrite, PermApprovalSubmit, PermAuditRead)
	admin := staff.union(
		PermPrincipalCreate, PermPrincipalDelete, PermTenantSwitch,
		PermRoomDelete, PermApprovalDecide,
	)
	top := admin.union(PermTenantCreate, PermTenantDelete, PermTenantAssign)
	return map[Role]permissionSet{
		RoleGuest:    guest,
		RoleMember:   member,
		RoleStaff:    staff,
		RoleAdmin:    admin,
		RoleTopAdmin: top,
	}
}()

// HasPermission reports whether role carries perm.
func HasPermission(role Role, perm Permission) bool {
	_, ok := matrix[role][perm]
	return ok
}

// PermissionsOf returns the sorted permission set of role.
func PermissionsOf(role Role) []Permission {
	set := matrix[role]
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
