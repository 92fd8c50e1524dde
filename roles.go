package aegisx

import "strings"

// UserRole is the user's role
type UserRole = string

const (
	// RoleGuest is a guest role (ie. view)
	RoleGuest UserRole = "guest"
	// RoleMember is a member (i.e. view, edit)
	RoleMember UserRole = "member"
	// RoleAdmin is an admin role (i.e. view, edit, create)
	RoleAdmin UserRole = "admin"
	// RoleOwner is an owner role (i.e. view, edit, create, delete)
	RoleOwner UserRole = "owner"
)

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleGuest, RoleMember, RoleAdmin, RoleOwner:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, IsValidRole(role)
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleGuest,
		RoleMember,
		RoleAdmin,
		RoleOwner,
	}
}

// RoleCanRead checks if this role can read resources
func RoleCanRead(r UserRole) bool {
	return IsValidRole(r)
}

// RoleCanEdit checks if this role can edit resources
func RoleCanEdit(r UserRole) bool {
	switch r {
	case RoleMember, RoleAdmin, RoleOwner:
		return true
	default:
		return false
	}
}

// RoleCanCreate checks if this role can create resources
func RoleCanCreate(r UserRole) bool {
	switch r {
	case RoleAdmin, RoleOwner:
		return true
	default:
		return false
	}
}

// RoleCanDelete checks if this role can delete resources
func RoleCanDelete(r UserRole) bool {
	return r == RoleOwner
}

// RoleIsAtLeast checks if the role meets the minimum required level
func RoleIsAtLeast(r, minRole UserRole) bool {
	roleHierarchy := map[UserRole]int{
		RoleGuest:  0,
		RoleMember: 1,
		RoleAdmin:  2,
		RoleOwner:  3,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// MatchPermission reports whether a granted permission string covers
// the requested one. Permissions use the "resource:action" form; a
// trailing "*" grants every action on the resource, and a bare "*"
// grants everything.
func MatchPermission(granted, requested string) bool {
	if granted == "" || requested == "" {
		return false
	}
	if granted == "*" || granted == requested {
		return true
	}
	if resource, ok := strings.CutSuffix(granted, ":*"); ok {
		return strings.HasPrefix(requested, resource+":")
	}
	return false
}
